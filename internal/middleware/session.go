// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/nexusbank/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userEmailContextKey はリクエストコンテキストにユーザーのメールアドレスを格納するためのキー。
	userEmailContextKey = contextKey("user_email")
	// userHolderContextKey はログ出力用に認証結果を外側へ伝えるholderのキー。
	userHolderContextKey = contextKey("user_holder")
)

// userHolder は内側のミドルウェアで判明したユーザーを外側のロギングミドルウェアへ渡す。
type userHolder struct {
	email string
}

func contextWithUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, userHolderContextKey, h)
}

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効性を検証するミドルウェアを返す。
// 認証済みユーザーのメールアドレスをリクエストコンテキストに注入する。
// 未認証リクエストには401と {"success":false,"message":"Not authenticated"} を返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, ok := lookupSession(r, sessionFinder)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserEmail(r.Context(), email)))
		})
	}
}

// NewOptionalSessionMiddleware は有効なセッションがあればメールアドレスを注入し、
// なければそのまま次へ渡すミドルウェアを返す。ページ配信のリダイレクト判定に使う。
func NewOptionalSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if email, ok := lookupSession(r, sessionFinder); ok {
				r = r.WithContext(ContextWithUserEmail(r.Context(), email))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// lookupSession はCookieのセッションIDから有効なセッションを引き、メールアドレスを返す。
func lookupSession(r *http.Request, sessionFinder SessionFinder) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to find session",
			slog.String("error", err.Error()),
		)
		return "", false
	}
	if session == nil || session.UserEmail == "" {
		return "", false
	}
	return session.UserEmail, true
}

// UserEmailFromContext はリクエストコンテキストからユーザーのメールアドレスを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserEmailFromContext(ctx context.Context) (string, error) {
	email, ok := ctx.Value(userEmailContextKey).(string)
	if !ok || email == "" {
		return "", fmt.Errorf("user email not found in context")
	}
	return email, nil
}

// ContextWithUserEmail はコンテキストにユーザーのメールアドレスを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserEmail(ctx context.Context, email string) context.Context {
	if h, ok := ctx.Value(userHolderContextKey).(*userHolder); ok {
		h.email = email
	}
	return context.WithValue(ctx, userEmailContextKey, email)
}
