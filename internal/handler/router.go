package handler

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/nexusbank/internal/metrics"
	"github.com/hitoshi/nexusbank/internal/middleware"
	"github.com/hitoshi/nexusbank/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	UserFinder        middleware.RoleFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFEnabled       bool
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// メトリクス（Gathererがnilなら /metrics を公開しない）
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー・口座
	UserService    UserServiceInterface
	AccountService AccountServiceInterface

	// ページと静的アセット
	Pages  fs.FS
	Static fs.FS

	StartedAt time.Time
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Metrics → Recovery → SecurityHeaders → CORS → (CSRF)
//
// 認証が必要なAPIには Session → RateLimit(General) を追加し、
// 管理者APIにはさらに RequireRole(admin) を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pageHandler := NewPageHandler(deps.Pages, deps.UserFinder)
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, collector)
	userHandler := NewUserHandler(deps.UserService)
	accountHandler := NewAccountHandler(deps.AccountService, collector)
	healthHandler := NewHealthHandler(deps.StartedAt)

	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(metrics.Middleware(collector))
	r.Use(middleware.NewRecoveryMiddleware(http.HandlerFunc(pageHandler.ServerError)))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.CSRFEnabled {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
	}

	r.NotFound(pageHandler.NotFound)
	r.MethodNotAllowed(pageHandler.NotFound)

	// --- 認証不要のAPI ---
	r.Get("/api/health", healthHandler.Health)
	r.Post("/api/register", authHandler.Register)
	r.With(loginLimit(deps.RateLimiter)).Post("/api/login", authHandler.Login)
	r.Post("/api/logout", authHandler.Logout)
	if deps.CSRFEnabled {
		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
	}

	// --- 認証が必要なAPI ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(generalLimit(deps.RateLimiter))

		r.Route("/api/user", func(r chi.Router) {
			r.Get("/profile", userHandler.GetProfile)
			r.Put("/profile", userHandler.UpdateProfile)
			r.Put("/password", userHandler.ChangePassword)
		})

		r.Get("/api/accounts/summary", accountHandler.Summary)
		r.Get("/api/transactions", accountHandler.ListTransactions)
		r.Post("/api/transfer", accountHandler.Transfer)

		r.With(middleware.RequireRole(deps.UserFinder, model.RoleAdmin)).
			Get("/api/admin/users", userHandler.ListUsers)
	})

	// --- ページ ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))

		r.Get("/", pageHandler.Page("index.html"))
		r.Get("/login", pageHandler.Page("login.html"))
		r.Get("/register", pageHandler.Page("register.html"))

		r.Get("/dashboard", pageHandler.ProtectedPage("dashboard.html"))
		r.Get("/transfer", pageHandler.ProtectedPage("transfer.html"))
		r.Get("/transactions", pageHandler.ProtectedPage("transactions.html"))
		r.Get("/settings", pageHandler.ProtectedPage("settings.html"))

		r.Get("/admin", pageHandler.AdminPage("admin.html"))
	})

	if deps.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(deps.Static)))
	}

	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	return r
}

func passThrough(next http.Handler) http.Handler { return next }

func generalLimit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return passThrough
	}
	return rl.GeneralMiddleware()
}

func loginLimit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return passThrough
	}
	return rl.LoginMiddleware()
}
