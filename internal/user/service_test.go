package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/nexusbank/internal/model"
	"github.com/hitoshi/nexusbank/internal/repository"
	"github.com/hitoshi/nexusbank/internal/security"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	updateFn      func(ctx context.Context, email string, fn repository.UserMutator) error
	listFn        func(ctx context.Context) ([]*model.User, error)
}

func (m *mockUserRepo) Create(_ context.Context, _ *model.User) error { return nil }

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Update(ctx context.Context, email string, fn repository.UserMutator) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, email, fn)
	}
	return nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

// --- ヘルパー ---

func seedUser(t *testing.T, repo *repository.MemoryUserRepo) {
	t.Helper()
	digest, _ := security.SHA256Hasher{}.Hash("password1")
	err := repo.Create(context.Background(), &model.User{
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        "jane@x.com",
		Phone:        "1234567890",
		Address:      "1 Main St",
		PasswordHash: digest,
		Role:         model.RoleUser,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func newTestService(repo repository.UserRepository) *Service {
	return NewService(repo, security.SHA256Hasher{}, security.NewTextSanitizer())
}

func apiErrorCode(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// --- Profile ---

func TestService_Profile(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	seedUser(t, repo)
	svc := newTestService(repo)

	user, err := svc.Profile(context.Background(), "jane@x.com")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if user.Email != "jane@x.com" {
		t.Errorf("email = %q, want %q", user.Email, "jane@x.com")
	}
}

func TestService_Profile_UserNotFound(t *testing.T) {
	svc := newTestService(repository.NewMemoryUserRepo())

	_, err := svc.Profile(context.Background(), "gone@x.com")
	if code := apiErrorCode(err); code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", code, model.ErrCodeUserNotFound)
	}
}

// --- UpdateProfile ---

func TestService_UpdateProfile_PartialUpdate(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	seedUser(t, repo)
	svc := newTestService(repo)
	ctx := context.Background()

	if err := svc.UpdateProfile(ctx, "jane@x.com", ProfileUpdate{Phone: "555"}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	user, _ := repo.FindByEmail(ctx, "jane@x.com")
	if user.Phone != "555" {
		t.Errorf("phone = %q, want %q", user.Phone, "555")
	}
	if user.FirstName != "Jane" || user.LastName != "Doe" || user.Address != "1 Main St" {
		t.Errorf("unspecified fields changed: %+v", user)
	}
}

func TestService_UpdateProfile_StripsMarkup(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	seedUser(t, repo)
	svc := newTestService(repo)
	ctx := context.Background()

	err := svc.UpdateProfile(ctx, "jane@x.com", ProfileUpdate{
		Address:   "<b>2 Elm St</b>",
		FirstName: "<script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	user, _ := repo.FindByEmail(ctx, "jane@x.com")
	if user.Address != "2 Elm St" {
		t.Errorf("address = %q, want %q", user.Address, "2 Elm St")
	}
	// マークアップのみの入力は空扱いとなり変更されない
	if user.FirstName != "Jane" {
		t.Errorf("first name = %q, want %q", user.FirstName, "Jane")
	}
}

func TestService_UpdateProfile_UserNotFound(t *testing.T) {
	svc := newTestService(repository.NewMemoryUserRepo())

	err := svc.UpdateProfile(context.Background(), "gone@x.com", ProfileUpdate{Phone: "1"})
	if code := apiErrorCode(err); code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", code, model.ErrCodeUserNotFound)
	}
}

func TestService_UpdateProfile_RepoError(t *testing.T) {
	svc := newTestService(&mockUserRepo{
		updateFn: func(ctx context.Context, email string, fn repository.UserMutator) error {
			return errors.New("db down")
		},
	})

	err := svc.UpdateProfile(context.Background(), "jane@x.com", ProfileUpdate{Phone: "1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if code := apiErrorCode(err); code != "" {
		t.Errorf("repository failure should not map to APIError, got %q", code)
	}
}

// --- ChangePassword ---

func TestService_ChangePassword(t *testing.T) {
	tests := []struct {
		name     string
		in       PasswordChange
		wantCode string
		wantMsg  string
		changed  bool
	}{
		{
			name:    "正常に変更できる",
			in:      PasswordChange{CurrentPassword: "password1", NewPassword: "newpassword", ConfirmPassword: "newpassword"},
			changed: true,
		},
		{
			name:     "現在のパスワードが違う",
			in:       PasswordChange{CurrentPassword: "wrong", NewPassword: "newpassword", ConfirmPassword: "newpassword"},
			wantCode: model.ErrCodeIncorrectPassword,
			wantMsg:  "Current password is incorrect",
		},
		{
			name:     "現在のパスワード違いは長さ不足より優先",
			in:       PasswordChange{CurrentPassword: "wrong", NewPassword: "short", ConfirmPassword: "other"},
			wantCode: model.ErrCodeIncorrectPassword,
			wantMsg:  "Current password is incorrect",
		},
		{
			name:     "新しいパスワードが短い",
			in:       PasswordChange{CurrentPassword: "password1", NewPassword: "short", ConfirmPassword: "short"},
			wantCode: model.ErrCodeValidation,
			wantMsg:  "New password must be at least 8 characters long",
		},
		{
			name:     "確認用が一致しない",
			in:       PasswordChange{CurrentPassword: "password1", NewPassword: "newpassword", ConfirmPassword: "newpassword2"},
			wantCode: model.ErrCodeValidation,
			wantMsg:  "New passwords do not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryUserRepo()
			seedUser(t, repo)
			svc := newTestService(repo)
			ctx := context.Background()

			err := svc.ChangePassword(ctx, "jane@x.com", tt.in)

			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("ChangePassword() error = %v", err)
				}
			} else {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error = %v, want APIError", err)
				}
				if apiErr.Code != tt.wantCode || apiErr.Message != tt.wantMsg {
					t.Errorf("error = %s/%q, want %s/%q", apiErr.Code, apiErr.Message, tt.wantCode, tt.wantMsg)
				}
			}

			user, _ := repo.FindByEmail(ctx, "jane@x.com")
			hasher := security.SHA256Hasher{}
			if tt.changed {
				if !hasher.Verify(user.PasswordHash, tt.in.NewPassword) {
					t.Error("digest should match the new password")
				}
			} else if !hasher.Verify(user.PasswordHash, "password1") {
				t.Error("digest must be unchanged on failure")
			}
		})
	}
}

// --- ListUsers ---

func TestService_ListUsers(t *testing.T) {
	repo := repository.NewMemoryUserRepo()
	seedUser(t, repo)
	svc := newTestService(repo)

	users, err := svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 1 || users[0].Email != "jane@x.com" {
		t.Errorf("users = %+v, want [jane@x.com]", users)
	}
}

func TestService_ListUsers_EmptyIsNotNil(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	users, err := svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if users == nil {
		t.Error("users should be an empty slice, not nil")
	}
}
