package handler

import (
	"net/http"
	"time"
)

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	startedAt time.Time
	now       func() time.Time
}

// NewHealthHandler はHealthHandlerを生成する。startedAtは稼働時間の起点。
func NewHealthHandler(startedAt time.Time) *HealthHandler {
	return &HealthHandler{
		startedAt: startedAt,
		now:       time.Now,
	}
}

type healthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

// Health は稼働状況を返す。認証不要。
// GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Uptime:    now.Sub(h.startedAt).Seconds(),
	})
}
