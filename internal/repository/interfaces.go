// Package repository はデータ永続化のインターフェースと実装を定義する。
// インメモリ実装とPostgreSQL実装を持ち、ハンドラーやサービスは実装を意識しない。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/nexusbank/internal/model"
)

var (
	// ErrUserExists は同じメールアドレスのユーザーが既に存在する場合に返る。
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound は更新対象のユーザーが存在しない場合に返る。
	ErrUserNotFound = errors.New("user not found")
)

// UserMutator はUpdate内でユーザーレコードを書き換える関数。
// エラーを返した場合、変更は一切反映されない。
type UserMutator func(user *model.User) error

// UserRepository はユーザーデータの永続化インターフェース。
// 返されるUserはコピーであり、書き換えてもストアには反映されない。
type UserRepository interface {
	// Create はユーザーを作成する。メールアドレスが重複する場合はErrUserExistsを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Update はレコード単位の排他ロックを保持したままfnを実行し、結果を保存する。
	// 残高チェックと減算のような読み取り→判定→書き込みを原子的に行うための唯一の更新経路。
	// 対象が存在しない場合はErrUserNotFoundを、fnがエラーを返した場合はそのエラーを返す。
	Update(ctx context.Context, email string, fn UserMutator) error

	// List は全ユーザーをメールアドレス順で返す。
	List(ctx context.Context) ([]*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。存在しないか期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しなくてもエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired はbefore時点で期限切れのセッションを一括削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
