package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/sporthub/internal/model"
)

// MemoryActivityRepo はメモリ上に参加記録を保持するリポジトリ。
type MemoryActivityRepo struct {
	mu     sync.RWMutex
	byUser map[string][]model.UserActivity
}

// NewMemoryActivityRepo はMemoryActivityRepoを生成する。
func NewMemoryActivityRepo() *MemoryActivityRepo {
	return &MemoryActivityRepo{
		byUser: make(map[string][]model.UserActivity),
	}
}

// Append は参加記録を追加する。
func (r *MemoryActivityRepo) Append(_ context.Context, activity *model.UserActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := *activity
	a.Event = copyEvent(a.Event)
	r.byUser[a.UserID] = append(r.byUser[a.UserID], a)
	return nil
}

// ListByUserID はユーザーの参加記録を追加順で返す。
func (r *MemoryActivityRepo) ListByUserID(_ context.Context, userID string) ([]model.UserActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.byUser[userID]
	out := make([]model.UserActivity, len(src))
	for i, a := range src {
		a.Event = copyEvent(a.Event)
		out[i] = a
	}
	return out, nil
}

// DeleteByUserID はユーザーの参加記録を全て削除する。
func (r *MemoryActivityRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byUser, userID)
	return nil
}

// MemoryUserRepo はメモリ上にプロフィールを保持するリポジトリ。
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]model.User
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users: make(map[string]model.User),
	}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	u.Interests = append([]model.SportCategory(nil), u.Interests...)
	return &u, nil
}

// Save はユーザーを丸ごと保存する。
func (r *MemoryUserRepo) Save(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := *user
	u.Interests = append([]model.SportCategory(nil), u.Interests...)
	r.users[u.ID] = u
	return nil
}

// IncrementEventsJoined は参加イベント数を1増やす。
func (r *MemoryUserRepo) IncrementEventsJoined(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.TotalEventsJoined++
	r.users[id] = u
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
func (r *MemoryUserRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

// MemoryPreferenceStore はメモリ上のキーバリュー保存領域。
type MemoryPreferenceStore struct {
	mu     sync.RWMutex
	values map[string]map[string][]byte
}

// NewMemoryPreferenceStore はMemoryPreferenceStoreを生成する。
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{
		values: make(map[string]map[string][]byte),
	}
}

// Get は値を取得する。
func (s *MemoryPreferenceStore) Get(_ context.Context, clientID, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[clientID][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set は値を保存する。
func (s *MemoryPreferenceStore) Set(_ context.Context, clientID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.values[clientID]
	if !ok {
		m = make(map[string][]byte)
		s.values[clientID] = m
	}
	m[key] = append([]byte(nil), value...)
	return nil
}

// Delete は値を削除する。
func (s *MemoryPreferenceStore) Delete(_ context.Context, clientID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values[clientID], key)
	return nil
}

// DeleteClient はクライアントの全ての値を削除する。
func (s *MemoryPreferenceStore) DeleteClient(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, clientID)
	return nil
}

// compile-time interface checks
var (
	_ ActivityRepository = (*MemoryActivityRepo)(nil)
	_ UserRepository     = (*MemoryUserRepo)(nil)
	_ PreferenceStore    = (*MemoryPreferenceStore)(nil)
)
