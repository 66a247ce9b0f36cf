package session

import "time"

// Scheduler は遅延実行を行うインターフェース。
// テストでは手動で時間を進める実装に差し替える。
type Scheduler interface {
	// AfterFunc はd経過後にfを実行する。
	AfterFunc(d time.Duration, f func())
}

// Clock は現在時刻を返す関数。
type Clock func() time.Time

type timerScheduler struct{}

// NewTimerScheduler はtime.AfterFuncで遅延実行するSchedulerを返す。
func NewTimerScheduler() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// ImmediateScheduler は遅延を無視して即座に実行するScheduler。
// AUTH_SIMULATE_LATENCY=falseの場合に使用する。
type ImmediateScheduler struct{}

// AfterFunc はfを呼び出し元のゴルーチンで即座に実行する。
func (ImmediateScheduler) AfterFunc(_ time.Duration, f func()) {
	f()
}
