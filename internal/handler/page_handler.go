package handler

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/hitoshi/nexusbank/internal/middleware"
	"github.com/hitoshi/nexusbank/internal/model"
)

// PageHandler は埋め込みHTMLページを配信する。
// 一部のページはセッションやロールに応じてリダイレクトする。
type PageHandler struct {
	pages fs.FS
	users middleware.RoleFinder
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(pages fs.FS, users middleware.RoleFinder) *PageHandler {
	return &PageHandler{
		pages: pages,
		users: users,
	}
}

// Page は認証不要のページを返す。
func (h *PageHandler) Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serve(w, name, http.StatusOK)
	}
}

// ProtectedPage はセッションがなければ /login へリダイレクトするページを返す。
// OptionalSessionMiddlewareの後に配置する。
func (h *PageHandler) ProtectedPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := middleware.UserEmailFromContext(r.Context()); err != nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		h.serve(w, name, http.StatusOK)
	}
}

// AdminPage は管理者ロールでなければ /dashboard へリダイレクトするページを返す。
func (h *PageHandler) AdminPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.isAdmin(r) {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		h.serve(w, name, http.StatusOK)
	}
}

// NotFound は未定義ルートに404を返す。/api/ 配下はJSONで返す。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	if middleware.IsAPIPath(r.URL.Path) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
		return
	}
	h.serve(w, "404.html", http.StatusNotFound)
}

// ServerError は500ページを返す。リカバリーミドルウェアから呼ばれる。
func (h *PageHandler) ServerError(w http.ResponseWriter, r *http.Request) {
	h.serve(w, "500.html", http.StatusInternalServerError)
}

func (h *PageHandler) isAdmin(r *http.Request) bool {
	email, err := middleware.UserEmailFromContext(r.Context())
	if err != nil {
		return false
	}
	u, err := h.users.FindByEmail(r.Context(), email)
	if err != nil {
		slog.Error("failed to find user for admin page", slog.String("error", err.Error()))
		return false
	}
	return u != nil && u.IsAdmin()
}

func (h *PageHandler) serve(w http.ResponseWriter, name string, status int) {
	body, err := fs.ReadFile(h.pages, name)
	if err != nil {
		slog.Error("failed to read page", slog.String("page", name), slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}
