// Package backend はリモートバックエンドとの連携インターフェースを提供する。
// 現時点では接続先が未定のため、全メソッドが固定の応答を返すStubClientのみを持つ。
package backend

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/sporthub/internal/model"
)

// バックエンド呼び出しのエラー。メッセージはそのままユーザーに表示できる。
var (
	ErrUserNotFound       = errors.New("User not found")
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrNetwork            = errors.New("Network error. Please check your connection.")
	ErrUnknown            = errors.New("An unknown error occurred")
)

// Client はリモートバックエンドの操作を定義する。
type Client interface {
	SignUp(ctx context.Context, email, password, name string) (*model.AuthUser, error)
	SignIn(ctx context.Context, email, password string) (*model.AuthUser, error)
	SignOut(ctx context.Context) error
	CurrentUser(ctx context.Context) (*model.AuthUser, error)

	FetchEvents(ctx context.Context) ([]model.Event, error)
	CreateEvent(ctx context.Context, event model.Event) (model.Event, error)
	UpdateEvent(ctx context.Context, event model.Event) (model.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error

	CreateUser(ctx context.Context, user model.User) (model.User, error)
	UpdateUser(ctx context.Context, user model.User) (model.User, error)
	FetchUser(ctx context.Context, userID string) (*model.User, error)

	JoinEvent(ctx context.Context, eventID, userID string) error
	LeaveEvent(ctx context.Context, eventID, userID string) error
	FetchUserActivities(ctx context.Context, userID string) ([]model.UserActivity, error)
}

// StubClient はClientの仮実装。
// 一覧系は空、作成・更新系は入力をそのまま返し、認証系はErrUnknownを返す。
type StubClient struct {
	logger *slog.Logger
}

// NewStubClient はStubClientを生成する。
func NewStubClient(logger *slog.Logger) *StubClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubClient{logger: logger}
}

func (c *StubClient) trace(op string, attrs ...any) {
	c.logger.Debug("backend stub called", append([]any{slog.String("op", op)}, attrs...)...)
}

// SignUp は未実装のためErrUnknownを返す。
func (c *StubClient) SignUp(_ context.Context, email, _, _ string) (*model.AuthUser, error) {
	c.trace("sign_up", slog.String("email", email))
	return nil, ErrUnknown
}

// SignIn は未実装のためErrUnknownを返す。
func (c *StubClient) SignIn(_ context.Context, email, _ string) (*model.AuthUser, error) {
	c.trace("sign_in", slog.String("email", email))
	return nil, ErrUnknown
}

func (c *StubClient) SignOut(_ context.Context) error {
	c.trace("sign_out")
	return nil
}

func (c *StubClient) CurrentUser(_ context.Context) (*model.AuthUser, error) {
	c.trace("current_user")
	return nil, nil
}

func (c *StubClient) FetchEvents(_ context.Context) ([]model.Event, error) {
	c.trace("fetch_events")
	return []model.Event{}, nil
}

func (c *StubClient) CreateEvent(_ context.Context, event model.Event) (model.Event, error) {
	c.trace("create_event", slog.String("event_id", event.ID))
	return event, nil
}

func (c *StubClient) UpdateEvent(_ context.Context, event model.Event) (model.Event, error) {
	c.trace("update_event", slog.String("event_id", event.ID))
	return event, nil
}

func (c *StubClient) DeleteEvent(_ context.Context, eventID string) error {
	c.trace("delete_event", slog.String("event_id", eventID))
	return nil
}

func (c *StubClient) CreateUser(_ context.Context, user model.User) (model.User, error) {
	c.trace("create_user", slog.String("user_id", user.ID))
	return user, nil
}

func (c *StubClient) UpdateUser(_ context.Context, user model.User) (model.User, error) {
	c.trace("update_user", slog.String("user_id", user.ID))
	return user, nil
}

func (c *StubClient) FetchUser(_ context.Context, userID string) (*model.User, error) {
	c.trace("fetch_user", slog.String("user_id", userID))
	return nil, nil
}

func (c *StubClient) JoinEvent(_ context.Context, eventID, userID string) error {
	c.trace("join_event", slog.String("event_id", eventID), slog.String("user_id", userID))
	return nil
}

func (c *StubClient) LeaveEvent(_ context.Context, eventID, userID string) error {
	c.trace("leave_event", slog.String("event_id", eventID), slog.String("user_id", userID))
	return nil
}

func (c *StubClient) FetchUserActivities(_ context.Context, userID string) ([]model.UserActivity, error) {
	c.trace("fetch_user_activities", slog.String("user_id", userID))
	return []model.UserActivity{}, nil
}

// compile-time interface check
var _ Client = (*StubClient)(nil)
