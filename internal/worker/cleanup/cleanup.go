// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// 参照時の削除だけでは一度も再訪されないセッションが残り続けるため、
// 一定間隔でストア全体を掃除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval は掃除の実行間隔のデフォルト値。
const DefaultInterval = 10 * time.Minute

// ExpiredSessionPurger は期限切れセッションの一括削除を抽象化するインターフェース。
// インメモリとPostgreSQLのセッションリポジトリが満たす。
type ExpiredSessionPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SessionCleanupJob は期限切れセッションを削除するジョブ。
// 冪等で、削除対象がなくてもエラーにならない。
type SessionCleanupJob struct {
	sessions ExpiredSessionPurger
	logger   *slog.Logger
	Interval time.Duration
	now      func() time.Time
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
// intervalが0以下の場合はDefaultIntervalを使う。
func NewSessionCleanupJob(sessions ExpiredSessionPurger, logger *slog.Logger, interval time.Duration) *SessionCleanupJob {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &SessionCleanupJob{
		sessions: sessions,
		logger:   logger,
		Interval: interval,
		now:      time.Now,
	}
}

// Run は現在時刻で期限切れのセッションを削除する。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := j.now()

	deleted, err := j.sessions.DeleteExpired(ctx, start)
	if err != nil {
		j.logger.Error("session cleanup failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to purge expired sessions: %w", err)
	}

	j.logger.Info("session cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回、その後Interval毎にRunを実行する。
// ctxがキャンセルされるまでブロックする。失敗しても次の周期で再試行する。
func (j *SessionCleanupJob) Start(ctx context.Context) {
	_ = j.Run(ctx)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("session cleanup stopped")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
