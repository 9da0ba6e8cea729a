// Package user はプロフィール管理とパスワード変更、管理者向けユーザー一覧のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/nexusbank/internal/model"
	"github.com/hitoshi/nexusbank/internal/repository"
	"github.com/hitoshi/nexusbank/internal/security"
	"github.com/hitoshi/nexusbank/internal/validate"
)

// ProfileUpdate はプロフィール更新の入力。空文字のフィールドは変更しない。
type ProfileUpdate struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// PasswordChange はパスワード変更の入力。
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	hasher    security.Hasher
	sanitizer security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	hasher security.Hasher,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		userRepo:  userRepo,
		hasher:    hasher,
		sanitizer: sanitizer,
	}
}

// Profile はユーザーのプロフィールを取得する。
func (s *Service) Profile(ctx context.Context, email string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateProfile はプロフィールを部分更新する。
// 入力はマークアップを除去してから反映し、除去後に空になった項目も変更しない。
func (s *Service) UpdateProfile(ctx context.Context, email string, in ProfileUpdate) error {
	firstName := s.sanitizer.Sanitize(in.FirstName)
	lastName := s.sanitizer.Sanitize(in.LastName)
	phone := s.sanitizer.Sanitize(in.Phone)
	address := s.sanitizer.Sanitize(in.Address)

	err := s.userRepo.Update(ctx, email, func(u *model.User) error {
		if firstName != "" {
			u.FirstName = firstName
		}
		if lastName != "" {
			u.LastName = lastName
		}
		if phone != "" {
			u.Phone = phone
		}
		if address != "" {
			u.Address = address
		}
		return nil
	})
	if err != nil {
		return mapUpdateError(err, "プロフィールの更新に失敗しました")
	}

	slog.Info("プロフィールを更新しました", slog.String("email", email))
	return nil
}

// ChangePassword はパスワードを変更する。
// 検証は 現在のパスワード → 新パスワード長 → 確認一致 の順に行い、失敗時はダイジェストを変更しない。
func (s *Service) ChangePassword(ctx context.Context, email string, in PasswordChange) error {
	err := s.userRepo.Update(ctx, email, func(u *model.User) error {
		if !s.hasher.Verify(u.PasswordHash, in.CurrentPassword) {
			return model.NewIncorrectPasswordError()
		}
		if !validate.PasswordLength(in.NewPassword) {
			return model.NewValidationError("New password must be at least 8 characters long")
		}
		if in.NewPassword != in.ConfirmPassword {
			return model.NewValidationError("New passwords do not match")
		}

		digest, err := s.hasher.Hash(in.NewPassword)
		if err != nil {
			return fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
		}
		u.PasswordHash = digest
		return nil
	})
	if err != nil {
		return mapUpdateError(err, "パスワードの変更に失敗しました")
	}

	slog.Info("パスワードを変更しました", slog.String("email", email))
	return nil
}

// ListUsers は全ユーザーを返す。管理者向け。
func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// mapUpdateError はUpdateのエラーをAPIErrorまたはラップ済みエラーに変換する。
func mapUpdateError(err error, msg string) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		return model.NewUserNotFoundError()
	}
	return fmt.Errorf("%s: %w", msg, err)
}
