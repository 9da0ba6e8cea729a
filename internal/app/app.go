// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/nexusbank/internal/account"
	"github.com/hitoshi/nexusbank/internal/auth"
	"github.com/hitoshi/nexusbank/internal/config"
	"github.com/hitoshi/nexusbank/internal/database"
	"github.com/hitoshi/nexusbank/internal/handler"
	"github.com/hitoshi/nexusbank/internal/logger"
	"github.com/hitoshi/nexusbank/internal/metrics"
	"github.com/hitoshi/nexusbank/internal/middleware"
	"github.com/hitoshi/nexusbank/internal/repository"
	"github.com/hitoshi/nexusbank/internal/security"
	"github.com/hitoshi/nexusbank/internal/user"
	"github.com/hitoshi/nexusbank/internal/web"
	"github.com/hitoshi/nexusbank/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// envFile は起動時に読み込む.envファイルのパス。
const envFile = ".env"

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（既存の環境変数が優先される）
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3000"
		}
		return runHealthcheck("http://localhost:" + port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("env", cfg.AppEnv),
		slog.String("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageDriver),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// Server は全依存関係をワイヤリングしたHTTPハンドラーと、その後始末を保持する。
type Server struct {
	Handler http.Handler

	rateLimiter    *middleware.RateLimiter
	sessionCleanup *cleanup.SessionCleanupJob
	db             *sql.DB
}

// NewServer は設定に従ってストア、サービス、ルーターを構築する。
// 管理者アカウントが未作成なら作成する。
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	srv := &Server{}

	// 1. ストレージの初期化
	userRepo, sessionRepo, err := srv.openStores(cfg)
	if err != nil {
		return nil, err
	}

	srv.sessionCleanup = cleanup.NewSessionCleanupJob(sessionRepo, slog.Default(), cfg.SessionCleanupInterval)

	// 2. セキュリティサービスの初期化
	hasher, err := security.NewHasher(cfg.PasswordHasher)
	if err != nil {
		srv.Close()
		return nil, err
	}
	sanitizer := security.NewTextSanitizer()

	// 3. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, hasher, sanitizer,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	userService := user.NewService(userRepo, hasher, sanitizer)
	accountService := account.NewService(userRepo, sanitizer)

	if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		srv.Close()
		return nil, fmt.Errorf("failed to seed admin user: %w", err)
	}

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 5. ルーターの構築
	srv.rateLimiter = middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)

	srv.Handler = handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     sessionRepo,
		UserFinder:        userRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       srv.rateLimiter,
		CSRFEnabled:       cfg.CSRFEnabled,
		CSRFConfig:        middleware.CSRFConfig{CookieSecure: cfg.CookieSecure},
		Logger:            slog.Default(),

		Metrics:         collector,
		MetricsGatherer: registry,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		UserService:    userService,
		AccountService: accountService,

		Pages:  web.Pages(),
		Static: web.Static(),

		StartedAt: time.Now(),
	})

	return srv, nil
}

// openStores はSTORAGE_DRIVERに応じたリポジトリを返す。
// postgresの場合は接続確認とマイグレーションを行う。
func (s *Server) openStores(cfg *config.Config) (repository.UserRepository, repository.SessionRepository, error) {
	if cfg.StorageDriver != config.StoragePostgres {
		slog.Info("using in-memory storage")
		return repository.NewMemoryUserRepo(), repository.NewMemorySessionRepo(), nil
	}

	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if err := db.Ping(); err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}

	return repository.NewPostgresUserRepo(db), repository.NewPostgresSessionRepo(db), nil
}

// StartBackground は期限切れセッションの定期削除を開始する。ctxのキャンセルで停止する。
func (s *Server) StartBackground(ctx context.Context) {
	go s.sessionCleanup.Start(ctx)
}

// Close はレートリミッターのクリーンアップとDB接続を停止する。
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("failed to close database", slog.String("error", err.Error()))
		}
		s.db = nil
	}
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := NewServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	srv.StartBackground(ctx)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /api/health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
