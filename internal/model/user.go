// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// 金額はJSON上で数値として扱う（クライアントは number を前提にしている）
	decimal.MarshalJSONWithoutQuotes = true
}

// Role はユーザーの権限種別を表す。
type Role string

const (
	// RoleUser は一般ユーザー。
	RoleUser Role = "user"
	// RoleAdmin は管理者。管理画面と全ユーザー一覧にアクセスできる。
	RoleAdmin Role = "admin"
)

// 口座種別のキー
const (
	AccountChecking = "checking"
	AccountSavings  = "savings"
)

// 取引種別
const (
	TransactionTypeTransfer = "transfer"
	TransactionTypeDeposit  = "deposit"
	TransactionTypePayment  = "payment"
)

// TransactionStatusCompleted は完了済みの取引ステータス。
const TransactionStatusCompleted = "completed"

// User は銀行サービスの利用者レコードを表す。
// メールアドレスが一意キー。パスワードはダイジェストのみを保持し、JSONには出力しない。
type User struct {
	FirstName    string              `json:"firstName"`
	LastName     string              `json:"lastName"`
	Email        string              `json:"email"`
	Phone        string              `json:"phone"`
	Address      string              `json:"address"`
	PasswordHash string              `json:"-"`
	Role         Role                `json:"role"`
	CreatedAt    time.Time           `json:"createdAt"`
	Accounts     map[string]*Account `json:"accounts"`
	Transactions []Transaction       `json:"transactions"` // 新しい順
}

// IsAdmin は管理者ロールかどうかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Clone はUserのディープコピーを返す。
// ストアの内部状態を呼び出し側と共有しないために使う。
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Accounts = make(map[string]*Account, len(u.Accounts))
	for k, a := range u.Accounts {
		acc := *a
		c.Accounts[k] = &acc
	}
	c.Transactions = make([]Transaction, len(u.Transactions))
	copy(c.Transactions, u.Transactions)
	return &c
}

// TotalBalance は全口座の残高合計をリクエスト時点で計算する。
func (u *User) TotalBalance() decimal.Decimal {
	total := decimal.Zero
	for _, a := range u.Accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// Account はユーザーが保有する口座を表す。
type Account struct {
	Balance decimal.Decimal `json:"balance"`
	Number  string          `json:"number"` // 表示用のマスク済み口座番号
	Type    string          `json:"type"`
}

// Transaction は取引履歴の1件を表す。作成後に変更されることはない。
type Transaction struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"` // YYYY-MM-DD
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Reference   string          `json:"reference,omitempty"`
}

// Session はユーザーのログインセッションを表す。
// 有効期限は作成時点から固定で、アクセスによって延長されない。
type Session struct {
	ID           string
	UserEmail    string
	CreatedAt    time.Time
	LastAccessAt time.Time
	ExpiresAt    time.Time
}

// Expired はセッションが指定時刻において期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
