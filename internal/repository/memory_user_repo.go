package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/nexusbank/internal/model"
)

// memoryUserEntry はレコード単位のロックとユーザー本体を保持する。
type memoryUserEntry struct {
	mu   sync.Mutex
	user *model.User
}

// MemoryUserRepo はプロセス内マップを使用したユーザーリポジトリ。
// マップ自体はRWMutexで、各レコードの更新はレコード単位のMutexで直列化する。
// プロセス終了とともにデータは失われる。
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]*memoryUserEntry
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users: make(map[string]*memoryUserEntry),
	}
}

// Create はユーザーを作成する。
func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.Email]; exists {
		return ErrUserExists
	}

	r.users[user.Email] = &memoryUserEntry{user: user.Clone()}
	return nil
}

// FindByEmail は指定メールアドレスのユーザーのコピーを返す。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	entry := r.entry(email)
	if entry == nil {
		return nil, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.user.Clone(), nil
}

// Update はレコードのロックを取得し、作業コピーにfnを適用してから差し替える。
// fnがエラーを返した場合は作業コピーを破棄する。
func (r *MemoryUserRepo) Update(ctx context.Context, email string, fn UserMutator) error {
	entry := r.entry(email)
	if entry == nil {
		return ErrUserNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	working := entry.user.Clone()
	if err := fn(working); err != nil {
		return err
	}
	// キーであるメールアドレスは変更させない
	working.Email = entry.user.Email
	entry.user = working
	return nil
}

// List は全ユーザーのコピーをメールアドレス順で返す。
func (r *MemoryUserRepo) List(ctx context.Context) ([]*model.User, error) {
	r.mu.RLock()
	entries := make([]*memoryUserEntry, 0, len(r.users))
	for _, e := range r.users {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	users := make([]*model.User, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		users = append(users, e.user.Clone())
		e.mu.Unlock()
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Email < users[j].Email
	})
	return users, nil
}

func (r *MemoryUserRepo) entry(email string) *memoryUserEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[email]
}

// compile-time interface check
var _ UserRepository = (*MemoryUserRepo)(nil)
