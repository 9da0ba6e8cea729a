// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/nexusbank/internal/auth"
	"github.com/hitoshi/nexusbank/internal/metrics"
	"github.com/hitoshi/nexusbank/internal/middleware"
	"github.com/hitoshi/nexusbank/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) error
	Login(ctx context.Context, username, password string) (*model.Session, *model.User, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は登録・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, collector metrics.MetricsCollector) *AuthHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: collector,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginUser struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type loginResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	User    loginUser `json:"user"`
}

// Register は新規ユーザーを登録する。セッションは発行しない。
// POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}

	if err := h.service.Register(r.Context(), in); err != nil {
		h.metrics.RecordRegistration(metrics.ResultFailure)
		handleServiceError(w, err, "Error registering user")
		return
	}

	h.metrics.RecordRegistration(metrics.ResultSuccess)
	writeSuccess(w, "Registration successful! Please login.", nil)
}

// Login は資格情報を検証し、セッションCookieを設定する。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, user, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.RecordLogin(metrics.ResultFailure)
		handleServiceError(w, err, "Error logging in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.metrics.RecordLogin(metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Message: "Login successful",
		User: loginUser{
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Email:     user.Email,
		},
	})
}

// Logout はセッションを破棄しCookieをクリアする。セッションがなくても成功する。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var sessionID string
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		sessionID = cookie.Value
	}

	if err := h.service.Logout(r.Context(), sessionID); err != nil {
		handleServiceError(w, err, "Error logging out")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeSuccess(w, "Logged out successfully", nil)
}
