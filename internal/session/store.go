package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/sporthub/internal/model"
	"github.com/hitoshi/sporthub/internal/repository"
)

// 保存領域のキー
const (
	keySavedUser                = "saved_user"
	keyHasCompletedIntroduction = "has_completed_introduction"
)

// Store は1クライアント分の認証情報の保存領域。
type Store interface {
	LoadUser(ctx context.Context) (*model.AuthUser, error)
	SaveUser(ctx context.Context, user model.AuthUser) error
	ClearUser(ctx context.Context) error
	LoadIntroduction(ctx context.Context) (bool, error)
	SaveIntroduction(ctx context.Context, done bool) error
	ClearIntroduction(ctx context.Context) error
}

// PreferenceStore はrepository.PreferenceStoreをクライアントIDで絞り込んだStore。
type PreferenceStore struct {
	prefs    repository.PreferenceStore
	clientID string
}

// NewPreferenceStore はPreferenceStoreを生成する。
func NewPreferenceStore(prefs repository.PreferenceStore, clientID string) *PreferenceStore {
	return &PreferenceStore{prefs: prefs, clientID: clientID}
}

// LoadUser は保存済みユーザーを返す。未保存または復元できない場合はnilを返す。
func (s *PreferenceStore) LoadUser(ctx context.Context) (*model.AuthUser, error) {
	data, found, err := s.prefs.Get(ctx, s.clientID, keySavedUser)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var user model.AuthUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, nil
	}
	return &user, nil
}

// SaveUser はユーザーをJSONとして保存する。
func (s *PreferenceStore) SaveUser(ctx context.Context, user model.AuthUser) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode saved user: %w", err)
	}
	return s.prefs.Set(ctx, s.clientID, keySavedUser, data)
}

// ClearUser は保存済みユーザーを削除する。
func (s *PreferenceStore) ClearUser(ctx context.Context) error {
	return s.prefs.Delete(ctx, s.clientID, keySavedUser)
}

// LoadIntroduction は紹介画面の完了フラグを返す。未保存はfalse。
func (s *PreferenceStore) LoadIntroduction(ctx context.Context) (bool, error) {
	data, found, err := s.prefs.Get(ctx, s.clientID, keyHasCompletedIntroduction)
	if err != nil || !found {
		return false, err
	}
	var done bool
	if err := json.Unmarshal(data, &done); err != nil {
		return false, nil
	}
	return done, nil
}

// SaveIntroduction は紹介画面の完了フラグを保存する。
func (s *PreferenceStore) SaveIntroduction(ctx context.Context, done bool) error {
	data, _ := json.Marshal(done)
	return s.prefs.Set(ctx, s.clientID, keyHasCompletedIntroduction, data)
}

// ClearIntroduction は紹介画面の完了フラグを削除する。
func (s *PreferenceStore) ClearIntroduction(ctx context.Context) error {
	return s.prefs.Delete(ctx, s.clientID, keyHasCompletedIntroduction)
}

var _ Store = (*PreferenceStore)(nil)
