// Package auth はパスワード認証による登録・ログイン・ログアウトとセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/nexusbank/internal/model"
	"github.com/hitoshi/nexusbank/internal/repository"
	"github.com/hitoshi/nexusbank/internal/security"
	"github.com/hitoshi/nexusbank/internal/validate"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// RegisterInput は新規登録リクエストの入力。
type RegisterInput struct {
	FirstName       string `json:"firstName" validate:"required"`
	LastName        string `json:"lastName" validate:"required"`
	Email           string `json:"email" validate:"required"`
	Phone           string `json:"phone" validate:"required"`
	Address         string `json:"address" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	hasher      security.Hasher
	sanitizer   security.TextSanitizer
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	hasher security.Hasher,
	sanitizer security.TextSanitizer,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		sanitizer:   sanitizer,
		config:      config,
		now:         time.Now,
	}
}

// Register は新規ユーザーを登録する。
// 検証は 必須項目 → メール形式 → パスワード長 → 確認一致 → 重複 の順に行う。
// 自由入力欄はサニタイズ後の値で必須判定する。登録成功時もセッションは発行しない。
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	in.FirstName = s.sanitizer.Sanitize(in.FirstName)
	in.LastName = s.sanitizer.Sanitize(in.LastName)
	in.Phone = s.sanitizer.Sanitize(in.Phone)
	in.Address = s.sanitizer.Sanitize(in.Address)

	if ok, _ := validate.Complete(in); !ok {
		return model.NewValidationError("All fields are required")
	}
	if !validate.Email(in.Email) {
		return model.NewValidationError("Invalid email format")
	}
	if !validate.PasswordLength(in.Password) {
		return model.NewValidationError("Password must be at least 8 characters long")
	}
	if in.Password != in.ConfirmPassword {
		return model.NewValidationError("Passwords do not match")
	}

	existing, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return model.NewUserExistsError()
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		Address:      in.Address,
		PasswordHash: digest,
		Role:         model.RoleUser,
		CreatedAt:    s.now().UTC(),
		Accounts:     seedAccounts(),
		Transactions: seedTransactions(),
	}

	// 存在確認と作成の間に同じメールで登録された場合もここで弾かれる
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return model.NewUserExistsError()
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("email", user.Email))
	return nil
}

// Login はメールアドレスとパスワードを検証し、セッションを発行する。
// 未登録とパスワード不一致は区別せず同じエラーを返す。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, *model.User, error) {
	if username == "" || password == "" {
		return nil, nil, model.NewValidationError("Username and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !s.hasher.Verify(user.PasswordHash, password) {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("email", user.Email))
	return session, user, nil
}

// Logout はセッションを破棄する。セッションIDが空の場合は何もしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// EnsureAdmin は管理者ユーザーが存在しなければ作成する。既に存在する場合は何もしない。
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find admin: %w", err)
	}
	if existing != nil {
		return nil
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &model.User{
		FirstName:    "Admin",
		LastName:     "User",
		Email:        email,
		Phone:        "0000000000",
		Address:      "NexusBank HQ",
		PasswordHash: digest,
		Role:         model.RoleAdmin,
		CreatedAt:    s.now().UTC(),
		Accounts:     seedAccounts(),
		Transactions: seedTransactions(),
	}

	if err := s.userRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}

	slog.Info("admin user seeded", slog.String("email", email))
	return nil
}

// createSession はセッションを作成し永続化する。
// 有効期限は作成時刻から固定で、アクセスしても延長しない。
func (s *Service) createSession(ctx context.Context, email string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:           sessionID,
		UserEmail:    email,
		CreatedAt:    now,
		LastAccessAt: now,
		ExpiresAt:    now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
