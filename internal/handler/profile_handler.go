package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/sporthub/internal/middleware"
	"github.com/hitoshi/sporthub/internal/model"
	"github.com/hitoshi/sporthub/internal/user"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, in user.ProfileInput) (*model.User, error)
	// Withdraw は参加記録、プロフィール、クライアントの保存領域を削除する。
	// イベントは共有カタログとして残す。
	Withdraw(ctx context.Context, userID, clientID string) error
}

// ProfileHandler はプロフィール管理のHTTPハンドラー。
type ProfileHandler struct {
	service  ProfileServiceInterface
	sessions SessionProvider
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface, sessions SessionProvider) *ProfileHandler {
	return &ProfileHandler{
		service:  service,
		sessions: sessions,
	}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	ProfileImageURL string   `json:"profile_image_url"`
	Interests       []string `json:"interests"`
	IsOrganizer     bool     `json:"is_organizer"`
}

// GetProfile はプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfile はプロフィールを差し替える。
// PUT /api/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	interests := make([]model.SportCategory, len(req.Interests))
	for i, s := range req.Interests {
		interests[i] = model.SportCategory(s)
	}

	profile, err := h.service.UpdateProfile(r.Context(), userID, user.ProfileInput{
		Name:            req.Name,
		Email:           req.Email,
		ProfileImageURL: req.ProfileImageURL,
		Interests:       interests,
		IsOrganizer:     req.IsOrganizer,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Withdraw は退会処理を実行し、クライアントの認証状態を破棄する。
// 削除の前にサインアウトして、実行中の認証フローがプロフィールを作り直さないようにする。
// DELETE /api/profile
func (h *ProfileHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	clientID, _ := middleware.ClientIDFromContext(r.Context())

	if clientID != "" {
		if err := h.sessions.Session(r.Context(), clientID).SignOut(r.Context()); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	if err := h.service.Withdraw(r.Context(), userID, clientID); err != nil {
		handleServiceError(w, err)
		return
	}
	if clientID != "" {
		h.sessions.Forget(clientID)
	}

	w.WriteHeader(http.StatusNoContent)
}
