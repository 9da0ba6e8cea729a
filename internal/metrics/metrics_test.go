package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名・ラベルのメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if c := NewCollector(prometheus.NewRegistry()); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordLogin_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(ResultSuccess)
	c.RecordLogin(ResultFailure)
	c.RecordLogin(ResultFailure)

	if m := findMetric(t, reg, "nexusbank_logins_total", map[string]string{"result": "success"}); m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("success logins = %v, want 1", m)
	}
	if m := findMetric(t, reg, "nexusbank_logins_total", map[string]string{"result": "failure"}); m == nil || m.GetCounter().GetValue() != 2 {
		t.Errorf("failure logins = %v, want 2", m)
	}
}

func TestRecordRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRegistration(ResultSuccess)

	if m := findMetric(t, reg, "nexusbank_registrations_total", map[string]string{"result": "success"}); m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("registrations = %v, want 1", m)
	}
}

// 失敗した振込は件数のみ記録し、金額は観測しない
func TestRecordTransfer_ObservesAmountOnSuccessOnly(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTransfer(ResultSuccess, 100)
	c.RecordTransfer(ResultFailure, 999999)

	h := findMetric(t, reg, "nexusbank_transfer_amount", nil)
	if h == nil {
		t.Fatal("transfer amount histogram not found")
	}
	if got := h.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
	if got := h.GetHistogram().GetSampleSum(); got != 100 {
		t.Errorf("sample sum = %v, want 100", got)
	}
	if m := findMetric(t, reg, "nexusbank_transfers_total", map[string]string{"result": "failure"}); m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("failed transfers = %v, want 1", m)
	}
}

func TestMiddleware_RecordsStatusAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	handler := Middleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/user/profile", nil))

	if m := findMetric(t, reg, "nexusbank_http_status_total", map[string]string{"status_code": "401"}); m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("401 count = %v, want 1", m)
	}
	if m := findMetric(t, reg, "nexusbank_http_request_duration_seconds", nil); m == nil || m.GetHistogram().GetSampleCount() != 1 {
		t.Errorf("latency samples = %v, want 1", m)
	}
}

func TestNopCollector_DoesNotPanic(t *testing.T) {
	var c MetricsCollector = NopCollector{}
	c.RecordLogin(ResultSuccess)
	c.RecordRegistration(ResultFailure)
	c.RecordTransfer(ResultSuccess, 1)
	c.RecordHTTPStatus(200)
	c.RecordRequestLatency(time.Millisecond)
}
