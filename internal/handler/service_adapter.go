package handler

import (
	"context"

	"github.com/hitoshi/sporthub/internal/middleware"
	"github.com/hitoshi/sporthub/internal/model"
	"github.com/hitoshi/sporthub/internal/session"
)

// SessionManagerAdapter は session.Manager を SessionProvider と middleware.AuthUserResolver に適合させるアダプタ。
type SessionManagerAdapter struct {
	manager *session.Manager
}

// NewSessionManagerAdapter はSessionManagerAdapterを生成する。
func NewSessionManagerAdapter(manager *session.Manager) *SessionManagerAdapter {
	return &SessionManagerAdapter{manager: manager}
}

// Session はクライアントのHolderを返す。
func (a *SessionManagerAdapter) Session(ctx context.Context, clientID string) AuthSession {
	return a.manager.Holder(ctx, clientID)
}

// Forget はクライアントのHolderを破棄する。
func (a *SessionManagerAdapter) Forget(clientID string) {
	a.manager.Forget(clientID)
}

// AuthenticatedUser はサインイン済みのユーザーを返す。
// Onboarding中もユーザーは保持されているため認証済みとして扱う。
func (a *SessionManagerAdapter) AuthenticatedUser(ctx context.Context, clientID string) *model.AuthUser {
	snap := a.manager.Holder(ctx, clientID).Snapshot()
	switch snap.State.(type) {
	case session.Authenticated, session.Onboarding:
		return snap.User
	default:
		return nil
	}
}

// --- compile-time interface checks ---

var _ SessionProvider = (*SessionManagerAdapter)(nil)
var _ middleware.AuthUserResolver = (*SessionManagerAdapter)(nil)
var _ AuthSession = (*session.Holder)(nil)
