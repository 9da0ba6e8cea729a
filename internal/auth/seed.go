package auth

import (
	"github.com/hitoshi/nexusbank/internal/model"
	"github.com/shopspring/decimal"
)

// 登録直後のユーザーに付与するデモ用口座と取引履歴。
func seedAccounts() map[string]*model.Account {
	return map[string]*model.Account{
		model.AccountChecking: {
			Balance: decimal.RequireFromString("455432.10"),
			Number:  "****1234",
			Type:    "Checking",
		},
		model.AccountSavings: {
			Balance: decimal.RequireFromString("15678.90"),
			Number:  "****5678",
			Type:    "Savings",
		},
	}
}

// seedTransactions は新しい順に並んだデモ取引を返す。
func seedTransactions() []model.Transaction {
	return []model.Transaction{
		{
			ID:          "T001",
			Date:        "2024-03-15",
			Description: "Transfer to Sarah Johnson",
			Amount:      decimal.RequireFromString("-250.00"),
			Type:        model.TransactionTypeTransfer,
			Status:      model.TransactionStatusCompleted,
		},
		{
			ID:          "T002",
			Date:        "2024-03-14",
			Description: "Salary Deposit - ABC Corp",
			Amount:      decimal.RequireFromString("3500.00"),
			Type:        model.TransactionTypeDeposit,
			Status:      model.TransactionStatusCompleted,
		},
		{
			ID:          "T003",
			Date:        "2024-03-12",
			Description: "Online Purchase - Amazon",
			Amount:      decimal.RequireFromString("-89.99"),
			Type:        model.TransactionTypePayment,
			Status:      model.TransactionStatusCompleted,
		},
	}
}
