package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/sporthub/internal/repository"
)

// entry は管理中のHolderと最終アクセス時刻を保持する。
type entry struct {
	holder     *Holder
	start      sync.Once
	lastAccess time.Time
}

// Manager はクライアントIDごとのHolderを管理する。
// 一定時間アクセスのないHolderはメモリから破棄する。保存済みの状態は次回アクセス時に復元される。
type Manager struct {
	prefs   repository.PreferenceStore
	opts    Options
	idleTTL time.Duration

	mu      sync.Mutex
	holders map[string]*entry
}

// NewManager はManagerを生成する。
func NewManager(prefs repository.PreferenceStore, opts Options, idleTTL time.Duration) *Manager {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		prefs:   prefs,
		opts:    opts,
		idleTTL: idleTTL,
		holders: make(map[string]*entry),
	}
}

// Holder はクライアントのHolderを返す。存在しない場合は生成して復元を開始する。
func (m *Manager) Holder(ctx context.Context, clientID string) *Holder {
	m.mu.Lock()
	e, ok := m.holders[clientID]
	if !ok {
		e = &entry{holder: NewHolder(NewPreferenceStore(m.prefs, clientID), m.opts)}
		m.holders[clientID] = e
	}
	e.lastAccess = m.opts.Clock()
	m.mu.Unlock()

	e.start.Do(func() { e.holder.Start(ctx) })
	return e.holder
}

// Lookup は生成済みのHolderを返す。
func (m *Manager) Lookup(clientID string) (*Holder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.holders[clientID]
	if !ok {
		return nil, false
	}
	return e.holder, true
}

// Forget はクライアントのHolderを破棄する。
func (m *Manager) Forget(clientID string) {
	m.mu.Lock()
	delete(m.holders, clientID)
	m.mu.Unlock()
}

// Len は管理中のHolder数を返す。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.holders)
}

// Evict は最終アクセスからidleTTLを超えたHolderを破棄し、破棄した数を返す。
// フローが実行中のHolderは残す。
func (m *Manager) Evict() int {
	now := m.opts.Clock()

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for clientID, e := range m.holders {
		if now.Sub(e.lastAccess) <= m.idleTTL || e.holder.Busy() {
			continue
		}
		delete(m.holders, clientID)
		evicted++
	}
	return evicted
}

// Run はidleTTLの半分の間隔でEvictを実行する。ctxがキャンセルされるまで継続する。
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Evict(); n > 0 {
				m.opts.Logger.Info("idle sessions evicted",
					slog.Int("evicted", n),
					slog.Int("remaining", m.Len()),
				)
			}
		}
	}
}
