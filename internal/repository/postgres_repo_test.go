package repository_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/hitoshi/nexusbank/internal/database"
	"github.com/hitoshi/nexusbank/internal/model"
	"github.com/hitoshi/nexusbank/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ repository.UserRepository = (*repository.PostgresUserRepo)(nil)
}

// PostgresSessionRepoはSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ repository.SessionRepository = (*repository.PostgresSessionRepo)(nil)
}

// setupPostgres はマイグレーション済みのテスト用DBを返す。接続できない場合はスキップする。
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := database.Open(dbURL, database.DefaultPoolConfig())
	require.NoError(t, err)
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	_, err = db.Exec(`DROP TABLE IF EXISTS sessions, transactions, accounts, users, schema_migrations CASCADE`)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dbURL))

	t.Cleanup(func() { db.Close() })
	return db
}

func pgTestUser() *model.User {
	return &model.User{
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        "jane@x.com",
		Phone:        "1234567890",
		Address:      "1 Main St",
		PasswordHash: "digest",
		Role:         model.RoleUser,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		Accounts: map[string]*model.Account{
			model.AccountChecking: {Balance: decimal.RequireFromString("455432.10"), Number: "****1234", Type: "Checking"},
			model.AccountSavings:  {Balance: decimal.RequireFromString("15678.90"), Number: "****5678", Type: "Savings"},
		},
		Transactions: []model.Transaction{
			{ID: "T001", Date: "2024-03-15", Description: "Transfer to Sarah Johnson", Amount: decimal.RequireFromString("-250.00"), Type: "transfer", Status: "completed"},
			{ID: "T002", Date: "2024-03-14", Description: "Salary Deposit - ABC Corp", Amount: decimal.RequireFromString("3500.00"), Type: "deposit", Status: "completed"},
		},
	}
}

func TestPostgresUserRepo_RoundTrip(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	repo := repository.NewPostgresUserRepo(db)

	require.NoError(t, repo.Create(ctx, pgTestUser()))
	assert.ErrorIs(t, repo.Create(ctx, pgTestUser()), repository.ErrUserExists)

	got, err := repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jane", got.FirstName)
	assert.True(t, got.TotalBalance().Equal(decimal.RequireFromString("471111.00")))
	require.Len(t, got.Transactions, 2)
	assert.Equal(t, "T001", got.Transactions[0].ID, "most recent first")
}

func TestPostgresUserRepo_Update_PrependsTransaction(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	repo := repository.NewPostgresUserRepo(db)
	require.NoError(t, repo.Create(ctx, pgTestUser()))

	err := repo.Update(ctx, "jane@x.com", func(u *model.User) error {
		acc := u.Accounts[model.AccountChecking]
		acc.Balance = acc.Balance.Sub(decimal.NewFromInt(100))
		u.Transactions = append([]model.Transaction{{
			ID: "T-new", Date: "2024-04-01", Description: "Transfer to Bob",
			Amount: decimal.NewFromInt(-100), Type: "transfer", Status: "completed", Reference: "TRX-1",
		}}, u.Transactions...)
		return nil
	})
	require.NoError(t, err)

	got, err := repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	assert.True(t, got.Accounts[model.AccountChecking].Balance.Equal(decimal.RequireFromString("455332.10")))
	require.Len(t, got.Transactions, 3)
	assert.Equal(t, "T-new", got.Transactions[0].ID)
	assert.Equal(t, "TRX-1", got.Transactions[0].Reference)
}

func TestPostgresUserRepo_Update_NotFound(t *testing.T) {
	db := setupPostgres(t)
	repo := repository.NewPostgresUserRepo(db)

	err := repo.Update(context.Background(), "nobody@x.com", func(u *model.User) error { return nil })
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestPostgresSessionRepo_Lifecycle(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	users := repository.NewPostgresUserRepo(db)
	sessions := repository.NewPostgresSessionRepo(db)
	require.NoError(t, users.Create(ctx, pgTestUser()))

	now := time.Now()
	require.NoError(t, sessions.Create(ctx, &model.Session{
		ID: "live", UserEmail: "jane@x.com", CreatedAt: now, LastAccessAt: now, ExpiresAt: now.Add(30 * time.Minute),
	}))
	require.NoError(t, sessions.Create(ctx, &model.Session{
		ID: "dead", UserEmail: "jane@x.com", CreatedAt: now, LastAccessAt: now, ExpiresAt: now.Add(-time.Minute),
	}))

	live, err := sessions.FindByID(ctx, "live")
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, "jane@x.com", live.UserEmail)

	dead, err := sessions.FindByID(ctx, "dead")
	require.NoError(t, err)
	assert.Nil(t, dead)

	purged, err := sessions.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	require.NoError(t, sessions.DeleteByID(ctx, "live"))
	gone, _ := sessions.FindByID(ctx, "live")
	assert.Nil(t, gone)
}
