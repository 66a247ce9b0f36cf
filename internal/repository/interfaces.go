// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/sporthub/internal/model"
)

// ErrNotFound は更新対象のレコードが存在しない場合に返される。
var ErrNotFound = errors.New("record not found")

// ErrDuplicate は同じIDのレコードが既に存在する場合に返される。
var ErrDuplicate = errors.New("record already exists")

// EventMutator はUpdateByIDに渡す差し替えレコード生成関数。
// エラーを返した場合は更新を中止し、そのエラーをそのまま呼び出し元に返す。
type EventMutator func(current model.Event) (model.Event, error)

// EventRepository はイベントカタログの永続化インターフェース。
type EventRepository interface {
	// List は全イベントを返す。順序は保証しない。
	List(ctx context.Context) ([]model.Event, error)

	// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Event, error)

	// Create はイベントを追加する。同じIDが既にある場合はErrDuplicateを返す。
	Create(ctx context.Context, event *model.Event) error

	// Upsert はIDが一致するイベントを差し替え、存在しなければ追加する。
	Upsert(ctx context.Context, event *model.Event) error

	// UpdateByID は現在のレコードをmutateに渡し、返されたレコードで差し替える。
	// 読み取りから書き込みまでを排他的に行う。存在しない場合はErrNotFoundを返す。
	UpdateByID(ctx context.Context, id string, mutate EventMutator) (*model.Event, error)

	// DeleteEndedBefore は開催日時がcutoffより前のイベントを削除し、削除件数を返す。
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Count はイベント件数を返す。
	Count(ctx context.Context) (int, error)
}

// ActivityRepository はユーザーの参加記録の永続化インターフェース。
// 記録は追記のみで、更新は行わない。
type ActivityRepository interface {
	// Append は参加記録を追加する。
	Append(ctx context.Context, activity *model.UserActivity) error

	// ListByUserID はユーザーの参加記録を追加順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.UserActivity, error)

	// DeleteByUserID はユーザーの参加記録を全て削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// UserRepository はユーザープロフィールの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Save はユーザーを丸ごと保存する（存在すれば差し替え）。
	Save(ctx context.Context, user *model.User) error

	// IncrementEventsJoined は参加イベント数を1増やす。存在しない場合はErrNotFoundを返す。
	IncrementEventsJoined(ctx context.Context, id string) error

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// PreferenceStore はクライアントごとのキーバリュー保存領域。
// スキーマのバージョン管理は行わない。
type PreferenceStore interface {
	// Get は値を取得する。存在しない場合はfound=falseを返す。
	Get(ctx context.Context, clientID, key string) (value []byte, found bool, err error)

	// Set は値を保存する。
	Set(ctx context.Context, clientID, key string, value []byte) error

	// Delete は値を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, clientID, key string) error

	// DeleteClient はクライアントの全ての値を削除する。
	DeleteClient(ctx context.Context, clientID string) error
}
