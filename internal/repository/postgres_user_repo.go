package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/nexusbank/internal/model"
	"github.com/lib/pq"
)

// pgUniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const pgUniqueViolation = "23505"

// queryer は*sql.DBと*sql.Txの共通部分。
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// users、accounts、transactionsの3テーブルで1レコードを表す。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Create はユーザーと口座、取引履歴を同一トランザクションで作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (email, first_name, last_name, phone, address, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.Email, user.FirstName, user.LastName, user.Phone, user.Address,
		user.PasswordHash, string(user.Role), user.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return ErrUserExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if err := upsertAccounts(ctx, tx, user); err != nil {
		return err
	}

	// 履歴は新しい順で保持しているため、古いものから挿入してseqを昇順にする
	for i := len(user.Transactions) - 1; i >= 0; i-- {
		if err := insertTransaction(ctx, tx, user.Email, user.Transactions[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return loadUser(ctx, r.db, email, false)
}

// Update はusers行をSELECT ... FOR UPDATEでロックしてからfnを適用し、差分を書き戻す。
// fnがエラーを返した場合はロールバックする。
func (r *PostgresUserRepo) Update(ctx context.Context, email string, fn UserMutator) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	user, err := loadUser(ctx, tx, email, true)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	known := make(map[string]struct{}, len(user.Transactions))
	for _, t := range user.Transactions {
		known[t.ID] = struct{}{}
	}

	if err := fn(user); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users
		 SET first_name = $2, last_name = $3, phone = $4, address = $5, password_hash = $6, role = $7
		 WHERE email = $1`,
		email, user.FirstName, user.LastName, user.Phone, user.Address, user.PasswordHash, string(user.Role),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if err := upsertAccounts(ctx, tx, user); err != nil {
		return err
	}

	// 取引は追記のみ。先頭に追加された新規分を古い順に挿入する
	for i := len(user.Transactions) - 1; i >= 0; i-- {
		t := user.Transactions[i]
		if _, ok := known[t.ID]; ok {
			continue
		}
		if err := insertTransaction(ctx, tx, email, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List は全ユーザーをメールアドレス順で返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT email FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan user email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	rows.Close()

	users := make([]*model.User, 0, len(emails))
	for _, email := range emails {
		u, err := loadUser(ctx, r.db, email, false)
		if err != nil {
			return nil, err
		}
		if u != nil {
			users = append(users, u)
		}
	}
	return users, nil
}

// loadUser はユーザー本体、口座、取引履歴を読み込む。forUpdateの場合はusers行をロックする。
func loadUser(ctx context.Context, q queryer, email string, forUpdate bool) (*model.User, error) {
	query := `SELECT email, first_name, last_name, phone, address, password_hash, role, created_at
		 FROM users WHERE email = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	user := &model.User{}
	var role string
	err := q.QueryRowContext(ctx, query, email).Scan(
		&user.Email, &user.FirstName, &user.LastName, &user.Phone, &user.Address,
		&user.PasswordHash, &role, &user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	user.Role = model.Role(role)

	user.Accounts, err = loadAccounts(ctx, q, email)
	if err != nil {
		return nil, err
	}
	user.Transactions, err = loadTransactions(ctx, q, email)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func loadAccounts(ctx context.Context, q queryer, email string) (map[string]*model.Account, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT kind, balance, number, type FROM accounts WHERE user_email = $1`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[string]*model.Account)
	for rows.Next() {
		var kind string
		acc := &model.Account{}
		if err := rows.Scan(&kind, &acc.Balance, &acc.Number, &acc.Type); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts[kind] = acc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

func loadTransactions(ctx context.Context, q queryer, email string) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, date, description, amount, type, status, reference
		 FROM transactions WHERE user_email = $1 ORDER BY seq DESC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find transactions: %w", err)
	}
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.Date, &t.Description, &t.Amount, &t.Type, &t.Status, &t.Reference); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}

func upsertAccounts(ctx context.Context, q queryer, user *model.User) error {
	for kind, acc := range user.Accounts {
		_, err := q.ExecContext(ctx,
			`INSERT INTO accounts (user_email, kind, balance, number, type)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (user_email, kind)
			 DO UPDATE SET balance = EXCLUDED.balance, number = EXCLUDED.number, type = EXCLUDED.type`,
			user.Email, kind, acc.Balance, acc.Number, acc.Type,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert account %s: %w", kind, err)
		}
	}
	return nil
}

func insertTransaction(ctx context.Context, q queryer, email string, t model.Transaction) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO transactions (id, user_email, date, description, amount, type, status, reference)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, email, t.Date, t.Description, t.Amount, t.Type, t.Status, t.Reference,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
