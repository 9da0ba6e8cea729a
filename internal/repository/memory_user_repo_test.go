package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hitoshi/nexusbank/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoTestUser(email string, checking string) *model.User {
	return &model.User{
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        email,
		PasswordHash: "digest",
		Role:         model.RoleUser,
		Accounts: map[string]*model.Account{
			model.AccountChecking: {Balance: decimal.RequireFromString(checking), Number: "****1234", Type: "Checking"},
		},
		Transactions: []model.Transaction{},
	}
}

func TestMemoryUserRepo_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()

	require.NoError(t, repo.Create(ctx, newRepoTestUser("jane@x.com", "100")))

	got, err := repo.FindByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jane", got.FirstName)
	assert.True(t, got.Accounts[model.AccountChecking].Balance.Equal(decimal.NewFromInt(100)))
}

func TestMemoryUserRepo_Create_Duplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()

	require.NoError(t, repo.Create(ctx, newRepoTestUser("jane@x.com", "100")))
	err := repo.Create(ctx, newRepoTestUser("jane@x.com", "1"))
	assert.ErrorIs(t, err, ErrUserExists)

	got, _ := repo.FindByEmail(ctx, "jane@x.com")
	assert.True(t, got.Accounts[model.AccountChecking].Balance.Equal(decimal.NewFromInt(100)),
		"duplicate create must not overwrite the existing record")
}

func TestMemoryUserRepo_FindByEmail_NotFound(t *testing.T) {
	got, err := NewMemoryUserRepo().FindByEmail(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryUserRepo_FindByEmail_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	require.NoError(t, repo.Create(ctx, newRepoTestUser("jane@x.com", "100")))

	got, _ := repo.FindByEmail(ctx, "jane@x.com")
	got.FirstName = "Mallory"
	got.Accounts[model.AccountChecking].Balance = decimal.Zero

	again, _ := repo.FindByEmail(ctx, "jane@x.com")
	assert.Equal(t, "Jane", again.FirstName)
	assert.False(t, again.Accounts[model.AccountChecking].Balance.IsZero())
}

func TestMemoryUserRepo_Update_Applies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	require.NoError(t, repo.Create(ctx, newRepoTestUser("jane@x.com", "100")))

	err := repo.Update(ctx, "jane@x.com", func(u *model.User) error {
		u.Phone = "999"
		u.Transactions = append([]model.Transaction{{ID: "T1"}}, u.Transactions...)
		return nil
	})
	require.NoError(t, err)

	got, _ := repo.FindByEmail(ctx, "jane@x.com")
	assert.Equal(t, "999", got.Phone)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "T1", got.Transactions[0].ID)
}

func TestMemoryUserRepo_Update_ErrorDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	require.NoError(t, repo.Create(ctx, newRepoTestUser("jane@x.com", "100")))

	boom := errors.New("boom")
	err := repo.Update(ctx, "jane@x.com", func(u *model.User) error {
		u.Accounts[model.AccountChecking].Balance = decimal.Zero
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, _ := repo.FindByEmail(ctx, "jane@x.com")
	assert.True(t, got.Accounts[model.AccountChecking].Balance.Equal(decimal.NewFromInt(100)))
}

func TestMemoryUserRepo_Update_KeepsEmailKey(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	require.NoError(t, repo.Create(ctx, newRepoTestUser("jane@x.com", "100")))

	require.NoError(t, repo.Update(ctx, "jane@x.com", func(u *model.User) error {
		u.Email = "other@x.com"
		return nil
	}))

	got, _ := repo.FindByEmail(ctx, "jane@x.com")
	require.NotNil(t, got)
	assert.Equal(t, "jane@x.com", got.Email)
}

func TestMemoryUserRepo_Update_NotFound(t *testing.T) {
	err := NewMemoryUserRepo().Update(context.Background(), "nobody@x.com", func(u *model.User) error {
		t.Fatal("mutator should not be called")
		return nil
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// TestMemoryUserRepo_Update_SerializesPerRecord は並行する残高チェック付き減算が
// 残高を負にしないことを検証する。
func TestMemoryUserRepo_Update_SerializesPerRecord(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	require.NoError(t, repo.Create(ctx, newRepoTestUser("jane@x.com", "1000")))

	insufficient := errors.New("insufficient")
	amount := decimal.NewFromInt(30)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Update(ctx, "jane@x.com", func(u *model.User) error {
				acc := u.Accounts[model.AccountChecking]
				if acc.Balance.LessThan(amount) {
					return insufficient
				}
				acc.Balance = acc.Balance.Sub(amount)
				return nil
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, _ := repo.FindByEmail(ctx, "jane@x.com")
	balance := got.Accounts[model.AccountChecking].Balance
	assert.Equal(t, 33, succeeded)
	assert.True(t, balance.Equal(decimal.NewFromInt(10)), "balance = %s", balance)
	assert.False(t, balance.IsNegative())
}

func TestMemoryUserRepo_List_SortedByEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	require.NoError(t, repo.Create(ctx, newRepoTestUser("zed@x.com", "1")))
	require.NoError(t, repo.Create(ctx, newRepoTestUser("amy@x.com", "1")))

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "amy@x.com", users[0].Email)
	assert.Equal(t, "zed@x.com", users[1].Email)
}
