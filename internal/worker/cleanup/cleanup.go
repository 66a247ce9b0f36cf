// Package cleanup はカタログから終了済みイベントを自動削除するジョブを提供する。
// 保持期間（デフォルト30日）を超過したイベントを定期的に削除する。
// 参加記録は参加時点のイベントのスナップショットを保持しているため影響を受けない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/sporthub/internal/metrics"
)

// EventPurger は開催日時がcutoffより前のイベントを削除するインターフェース。
// repository.EventRepositoryが実装する。
type EventPurger interface {
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は保持期間を超過したイベントの自動削除ジョブ。
// 冪等な削除処理のため、何度実行しても結果は変わらない。
type CleanupJob struct {
	events        EventPurger
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // イベントの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は30日。
func NewCleanupJob(events EventPurger, collector metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		events:        events,
		metrics:       collector,
		logger:        logger,
		now:           time.Now,
		RetentionDays: 30,
	}
}

// Run は保持期間を超過したイベントを削除し、削除件数を返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	cutoff := j.now().AddDate(0, 0, -j.RetentionDays)

	deleted, err := j.events.DeleteEndedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("イベントクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("イベントクリーンアップの実行に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordEventsPurged(int(deleted))
	}

	j.logger.Info("イベントクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deleted, nil
}

// Start は起動直後に1回実行し、以降intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。個々の実行の失敗はログに記録して継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

// runOnce はRunを実行する。失敗はRun内でログ出力済みのため無視する。
func (j *CleanupJob) runOnce(ctx context.Context) {
	_, _ = j.Run(ctx)
}
