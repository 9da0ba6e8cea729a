package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/nexusbank/internal/account"
	"github.com/hitoshi/nexusbank/internal/metrics"
	"github.com/hitoshi/nexusbank/internal/model"
)

// AccountServiceInterface は口座ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Summary(ctx context.Context, email string) (*account.Summary, error)
	ListTransactions(ctx context.Context, email, filter, search string) ([]model.Transaction, error)
	Transfer(ctx context.Context, email string, req account.TransferRequest) (*account.TransferResult, error)
}

// AccountHandler は残高・取引履歴・振込のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
	metrics metrics.MetricsCollector
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, collector metrics.MetricsCollector) *AccountHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &AccountHandler{
		service: service,
		metrics: collector,
	}
}

// Summary は口座一覧と合計残高を返す。
// GET /api/accounts/summary
func (h *AccountHandler) Summary(w http.ResponseWriter, r *http.Request) {
	email, ok := currentUserEmail(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Summary(r.Context(), email)
	if err != nil {
		handleServiceError(w, err, "Error fetching account summary")
		return
	}

	writeSuccess(w, "", summary)
}

// ListTransactions は取引履歴を返す。
// GET /api/transactions?filter=deposit&search=amazon
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	email, ok := currentUserEmail(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	txs, err := h.service.ListTransactions(r.Context(), email, q.Get("filter"), q.Get("search"))
	if err != nil {
		handleServiceError(w, err, "Error fetching transactions")
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}

	writeSuccess(w, "", txs)
}

// Transfer は振込を実行する。
// POST /api/transfer
func (h *AccountHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	email, ok := currentUserEmail(w, r)
	if !ok {
		return
	}

	var req account.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Transfer(r.Context(), email, req)
	if err != nil {
		h.metrics.RecordTransfer(metrics.ResultFailure, 0)
		handleServiceError(w, err, "Error processing transfer")
		return
	}

	h.metrics.RecordTransfer(metrics.ResultSuccess, req.Amount.InexactFloat64())
	writeSuccess(w, "Transfer completed successfully", result)
}
