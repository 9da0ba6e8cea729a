// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ストレージドライバー
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// EnvDevelopment は開発環境を示すAPP_ENVの値。
const EnvDevelopment = "development"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	AppEnv     string
	ServerPort string

	// Storage
	StorageDriver string
	DatabaseURL   string

	// Session
	SessionMaxAge          int
	SessionCleanupInterval time.Duration

	// Auth
	PasswordHasher string
	AdminEmail     string
	AdminPassword  string

	// Rate Limit（毎分のリクエスト数）
	RateLimitGeneral int
	RateLimitLogin   int

	// Logging
	LogLevel string

	// Cookie
	CookieSecure bool

	// CORS / CSRF
	CORSAllowedOrigin string
	CSRFEnabled       bool
}

// LoadEnvFile は.envファイルを読み込み環境変数に反映する。
// 既に設定済みの環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 設定値の組み合わせが不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.AppEnv = getEnvString("APP_ENV", EnvDevelopment)
	cfg.ServerPort = getEnvString("SERVER_PORT", "3000")

	cfg.StorageDriver = strings.ToLower(getEnvString("STORAGE_DRIVER", StorageMemory))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	switch cfg.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("required environment variables are not set: [DATABASE_URL]")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER: %s", cfg.StorageDriver)
	}

	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 1800)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 10*time.Minute)
	cfg.PasswordHasher = strings.ToLower(getEnvString("PASSWORD_HASHER", "sha256"))
	cfg.AdminEmail = getEnvString("ADMIN_EMAIL", "admin@nexusbank.com")
	cfg.AdminPassword = getEnvString("ADMIN_PASSWORD", "Admin123!")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CookieSecure = cfg.AppEnv != EnvDevelopment
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")
	cfg.CSRFEnabled = getEnvBool("CSRF_ENABLED", false)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
