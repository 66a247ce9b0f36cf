package syncer

import "time"

// defaultInitialBackoff は同期失敗後の初回再試行までの遅延。
const defaultInitialBackoff = 30 * time.Second

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// initialから2倍ずつ増加し、maxDelayで頭打ちになる。
// 通常の同期間隔をmaxDelayに渡すことで、再試行が定期実行より遅れないようにする。
func CalculateBackoff(consecutiveErrors int, initial, maxDelay time.Duration) time.Duration {
	delay := initial
	if delay > maxDelay {
		return maxDelay
	}
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxDelay {
			return maxDelay
		}
	}
	return delay
}
