// Package account は口座残高の集計、取引履歴の検索、振込を提供する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/nexusbank/internal/model"
	"github.com/hitoshi/nexusbank/internal/repository"
	"github.com/hitoshi/nexusbank/internal/security"
	"github.com/shopspring/decimal"
)

// FilterAll は種別で絞り込まないことを示すfilter値。
const FilterAll = "all"

// Summary は口座一覧と合計残高。
type Summary struct {
	Accounts     map[string]*model.Account `json:"accounts"`
	TotalBalance decimal.Decimal           `json:"totalBalance"`
}

// TransferRequest は振込リクエストの入力。
// Descriptionは受け付けるが取引の説明には使わない。
type TransferRequest struct {
	RecipientName string          `json:"recipientName"`
	BankName      string          `json:"bankName"`
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

// TransferResult は振込結果。
type TransferResult struct {
	Transaction model.Transaction `json:"transaction"`
	NewBalance  decimal.Decimal   `json:"newBalance"`
}

// Service は口座に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{
		userRepo:  userRepo,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Summary は口座一覧と、リクエスト時点の残高合計を返す。
func (s *Service) Summary(ctx context.Context, email string) (*Summary, error) {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	accounts := user.Accounts
	if accounts == nil {
		accounts = map[string]*model.Account{}
	}
	return &Summary{
		Accounts:     accounts,
		TotalBalance: user.TotalBalance(),
	}, nil
}

// ListTransactions は取引履歴を新しい順に返す。
// filterは種別の完全一致（空または"all"なら絞り込まない）、searchは説明文の大文字小文字を区別しない部分一致。
// 該当がなくても空スライスを返す。
func (s *Service) ListTransactions(ctx context.Context, email, filter, search string) ([]model.Transaction, error) {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(search)
	result := make([]model.Transaction, 0, len(user.Transactions))
	for _, t := range user.Transactions {
		if filter != "" && filter != FilterAll && t.Type != filter {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(t.Description), needle) {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

// Transfer は当座預金から外部への振込を行う。
// 残高確認、減算、取引の追加はレコードロック内で一括して行い、
// 途中で失敗した場合は何も反映されない。
func (s *Service) Transfer(ctx context.Context, email string, req TransferRequest) (*TransferResult, error) {
	recipient := s.sanitizer.Sanitize(req.RecipientName)
	if recipient == "" || strings.TrimSpace(req.BankName) == "" ||
		strings.TrimSpace(req.AccountNumber) == "" || req.Amount.IsZero() {
		return nil, model.NewValidationError("All fields are required")
	}
	if req.Amount.IsNegative() {
		return nil, model.NewValidationError("Amount must be greater than 0")
	}
	// 残高は小数2桁で保存するため、それより細かい金額は受け付けない
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, model.NewValidationError("Amount must have at most 2 decimal places")
	}

	var result TransferResult
	err := s.userRepo.Update(ctx, email, func(u *model.User) error {
		checking, ok := u.Accounts[model.AccountChecking]
		if !ok || checking.Balance.LessThan(req.Amount) {
			return model.NewInsufficientFundsError()
		}

		tx := model.Transaction{
			ID:          "T" + uuid.New().String(),
			Date:        s.now().Format("2006-01-02"),
			Description: "Transfer to " + recipient,
			Amount:      req.Amount.Neg(),
			Type:        model.TransactionTypeTransfer,
			Status:      model.TransactionStatusCompleted,
			Reference:   "TRX-" + uuid.New().String(),
		}

		checking.Balance = checking.Balance.Sub(req.Amount)
		u.Transactions = append([]model.Transaction{tx}, u.Transactions...)

		result = TransferResult{Transaction: tx, NewBalance: checking.Balance}
		return nil
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("failed to transfer: %w", err)
	}

	slog.Info("transfer completed",
		slog.String("email", email),
		slog.String("reference", result.Transaction.Reference),
		slog.String("amount", req.Amount.StringFixed(2)),
	)
	return &result, nil
}

func (s *Service) findUser(ctx context.Context, email string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
