package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// StatusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
// メトリクスミドルウェアからも利用する。
type StatusRecorder struct {
	http.ResponseWriter
	StatusCode int
	written    bool
}

// NewStatusRecorder はStatusRecorderを生成する。
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *StatusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.StatusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *StatusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.StatusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、user_email（認証済みの場合）を含む。
// ユーザーはセッションミドルウェアが内側のコンテキストに注入するため、
// 外側のこのミドルウェアから参照できるよう共有のholderを使う。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := NewStatusRecorder(w)
			holder := &userHolder{}
			r = r.WithContext(contextWithUserHolder(r.Context(), holder))

			next.ServeHTTP(rec, r)

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.StatusCode),
				slog.Float64("duration_ms", durationMs),
			}
			if holder.email != "" {
				args = append(args, slog.String("user_email", holder.email))
			}

			level := slog.LevelInfo
			if rec.StatusCode >= 500 {
				level = slog.LevelError
			} else if rec.StatusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
