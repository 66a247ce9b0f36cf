package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/sporthub/internal/model"
)

// MemoryEventRepo はメモリ上にイベントを保持するリポジトリ。
// 挿入順を保持し、読み取り時はコピーを返す。
type MemoryEventRepo struct {
	mu     sync.RWMutex
	events []model.Event
	index  map[string]int
}

// NewMemoryEventRepo はMemoryEventRepoを生成する。
func NewMemoryEventRepo() *MemoryEventRepo {
	return &MemoryEventRepo{
		index: make(map[string]int),
	}
}

// List は全イベントを挿入順で返す。
func (r *MemoryEventRepo) List(_ context.Context) ([]model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Event, len(r.events))
	for i, e := range r.events {
		out[i] = copyEvent(e)
	}
	return out, nil
}

// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
func (r *MemoryEventRepo) FindByID(_ context.Context, id string) (*model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return nil, nil
	}
	e := copyEvent(r.events[i])
	return &e, nil
}

// Create はイベントを末尾に追加する。同じIDが既にある場合はErrDuplicateを返す。
func (r *MemoryEventRepo) Create(_ context.Context, event *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[event.ID]; ok {
		return ErrDuplicate
	}
	r.index[event.ID] = len(r.events)
	r.events = append(r.events, copyEvent(*event))
	return nil
}

// Upsert はIDが一致するイベントを差し替え、存在しなければ追加する。
func (r *MemoryEventRepo) Upsert(_ context.Context, event *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[event.ID]; ok {
		r.events[i] = copyEvent(*event)
		return nil
	}
	r.index[event.ID] = len(r.events)
	r.events = append(r.events, copyEvent(*event))
	return nil
}

// UpdateByID はロックを保持したままmutateを呼び出し、結果で差し替える。
func (r *MemoryEventRepo) UpdateByID(_ context.Context, id string, mutate EventMutator) (*model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return nil, ErrNotFound
	}

	next, err := mutate(copyEvent(r.events[i]))
	if err != nil {
		return nil, err
	}
	next.ID = id
	r.events[i] = copyEvent(next)

	out := copyEvent(next)
	return &out, nil
}

// DeleteEndedBefore は開催日時がcutoffより前のイベントを削除する。
func (r *MemoryEventRepo) DeleteEndedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0]
	var deleted int64
	for _, e := range r.events {
		if e.Date.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept

	r.index = make(map[string]int, len(r.events))
	for i, e := range r.events {
		r.index[e.ID] = i
	}
	return deleted, nil
}

// Count はイベント件数を返す。
func (r *MemoryEventRepo) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events), nil
}

// copyEvent はポインタフィールドを複製したEventを返す。
func copyEvent(e model.Event) model.Event {
	if e.Coordinates != nil {
		c := *e.Coordinates
		e.Coordinates = &c
	}
	return e
}

// compile-time interface check
var _ EventRepository = (*MemoryEventRepo)(nil)
