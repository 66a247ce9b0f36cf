package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/sporthub/internal/model"
)

// AuthUserResolver はクライアントIDから認証済みユーザーを解決するインターフェース。
type AuthUserResolver interface {
	// AuthenticatedUser はサインイン済みの場合にユーザーを返す。未サインインならnil。
	AuthenticatedUser(ctx context.Context, clientID string) *model.AuthUser
}

// NewRequireAuthMiddleware はサインイン済みのクライアントのみを通すミドルウェアを返す。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewRequireAuthMiddleware(resolver AuthUserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, err := ClientIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			user := resolver.AuthenticatedUser(r.Context(), clientID)
			if user == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			annotate(r.Context(), func(info *requestInfo) { info.userID = user.ID })
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), user.ID)))
		})
	}
}
