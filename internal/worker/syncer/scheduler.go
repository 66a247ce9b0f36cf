// Package syncer はバックエンドからのカタログ同期をバックグラウンドで定期実行する。
// 失敗時は指数バックオフで再試行する。
package syncer

import (
	"context"
	"log/slog"
	"time"
)

// CatalogSyncer はカタログ同期の実行インターフェース。
// catalog.Serviceが実装する。
type CatalogSyncer interface {
	// Sync はバックエンドのイベントをカタログに反映し、反映件数を返す。
	Sync(ctx context.Context) (int, error)
}

// Scheduler はカタログ同期のスケジューリングを行う。
// 成功時はinterval後、失敗時はバックオフ後に次回の同期を実行する。
// Startは単一のgoroutineから呼び出すこと。
type Scheduler struct {
	syncer            CatalogSyncer
	logger            *slog.Logger
	interval          time.Duration
	initialBackoff    time.Duration
	consecutiveErrors int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// intervalが0以下の場合はデフォルト値15分を使用する。
func NewScheduler(syncer CatalogSyncer, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		syncer:         syncer,
		logger:         logger,
		interval:       interval,
		initialBackoff: defaultInitialBackoff,
	}
}

// Start は起動直後に1回同期し、以降はRunOnceが返す待機時間ごとに同期する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("カタログ同期スケジューラを開始しました",
		slog.Duration("interval", s.interval),
	)

	for {
		wait := s.RunOnce(ctx)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("カタログ同期スケジューラを停止しました")
			return
		case <-timer.C:
		}
	}
}

// RunOnce は同期を1回実行し、次回実行までの待機時間を返す。
func (s *Scheduler) RunOnce(ctx context.Context) time.Duration {
	start := time.Now()

	count, err := s.syncer.Sync(ctx)
	if err != nil {
		s.consecutiveErrors++
		delay := CalculateBackoff(s.consecutiveErrors-1, s.initialBackoff, s.interval)
		s.logger.Error("カタログ同期に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("consecutive_errors", s.consecutiveErrors),
			slog.Duration("retry_in", delay),
		)
		return delay
	}

	s.consecutiveErrors = 0
	s.logger.Info("カタログ同期が完了しました",
		slog.Int("event_count", count),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return s.interval
}
