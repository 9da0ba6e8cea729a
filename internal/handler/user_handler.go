package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/nexusbank/internal/model"
	"github.com/hitoshi/nexusbank/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Profile(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, email string, in user.ProfileUpdate) error
	ChangePassword(ctx context.Context, email string, in user.PasswordChange) error
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// UserHandler はプロフィールと管理者向けユーザー一覧のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// GetProfile はログインユーザーのプロフィールを返す。パスワードダイジェストは含まない。
// GET /api/user/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	email, ok := currentUserEmail(w, r)
	if !ok {
		return
	}

	u, err := h.service.Profile(r.Context(), email)
	if err != nil {
		handleServiceError(w, err, "Error fetching profile")
		return
	}

	writeSuccess(w, "", u)
}

// UpdateProfile はプロフィールを部分更新する。
// PUT /api/user/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	email, ok := currentUserEmail(w, r)
	if !ok {
		return
	}

	var in user.ProfileUpdate
	if !decodeJSON(w, r, &in) {
		return
	}

	if err := h.service.UpdateProfile(r.Context(), email, in); err != nil {
		handleServiceError(w, err, "Error updating profile")
		return
	}

	writeSuccess(w, "Profile updated successfully", nil)
}

// ChangePassword はパスワードを変更する。
// PUT /api/user/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	email, ok := currentUserEmail(w, r)
	if !ok {
		return
	}

	var in user.PasswordChange
	if !decodeJSON(w, r, &in) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), email, in); err != nil {
		handleServiceError(w, err, "Error changing password")
		return
	}

	writeSuccess(w, "Password changed successfully", nil)
}

// ListUsers は全ユーザーを返す。管理者ロールのみ。
// GET /api/admin/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, err, "Error fetching users")
		return
	}

	writeSuccess(w, "", users)
}
