package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/nexusbank/internal/model"
)

// RoleFinder はロール判定のためにユーザーを取得するインターフェース。
type RoleFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// RequireRole は指定ロールを持つユーザーのみ通過させるミドルウェアを返す。
// セッションミドルウェアの後に配置する。ロールが異なる場合は403を返す。
func RequireRole(finder RoleFinder, role model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, err := UserEmailFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			user, err := finder.FindByEmail(r.Context(), email)
			if err != nil {
				slog.Error("failed to find user for role check",
					slog.String("user_email", email),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
				return
			}
			if user.Role != role {
				slog.Warn("role check failed",
					slog.String("user_email", email),
					slog.String("required_role", string(role)),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
