package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/sporthub/internal/middleware"
	"github.com/hitoshi/sporthub/internal/model"
	"github.com/hitoshi/sporthub/internal/session"
)

// AuthSession は1クライアント分の認証状態を操作するインターフェース。
// session.Holderが実装する。
type AuthSession interface {
	Snapshot() session.Snapshot
	SignInWithEmail(ctx context.Context, email, password string) error
	SignUpWithEmail(ctx context.Context, email, password, name string) error
	SignInWithApple(ctx context.Context) error
	SignInWithGoogle(ctx context.Context) error
	SignOut(ctx context.Context) error
	CompleteOnboarding()
	CompleteIntroduction(ctx context.Context) error
}

// SessionProvider はクライアントIDに対応するAuthSessionを払い出すインターフェース。
type SessionProvider interface {
	// Session はクライアントの認証状態を取得する。なければ作成して復元を開始する。
	Session(ctx context.Context, clientID string) AuthSession
	// Forget はクライアントの認証状態を破棄する。
	Forget(clientID string)
}

// AuthHandler は認証フローのHTTPハンドラー。
// フローは非同期に進むため、開始系のエンドポイントは202と開始直後の状態を返す。
// クライアントはGET /auth/stateをポーリングして結果を確認する。
type AuthHandler struct {
	sessions SessionProvider
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(sessions SessionProvider) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// authStateResponse は認証状態のAPIレスポンス。
type authStateResponse struct {
	State                    session.Phase   `json:"state"`
	User                     *model.AuthUser `json:"user,omitempty"`
	ProviderName             string          `json:"provider_name,omitempty"`
	IsLoading                bool            `json:"is_loading"`
	ErrorMessage             string          `json:"error_message,omitempty"`
	HasCompletedIntroduction bool            `json:"has_completed_introduction"`
}

type emailSignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailSignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// State は現在の認証状態を返す。
// GET /auth/state
func (h *AuthHandler) State(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAuthStateResponse(s.Snapshot()))
}

// EmailSignIn はメールアドレスによるサインインを開始する。
// POST /auth/email/signin
func (h *AuthHandler) EmailSignIn(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req emailSignInRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	h.started(w, s, s.SignInWithEmail(r.Context(), req.Email, req.Password))
}

// EmailSignUp はメールアドレスによるアカウント作成を開始する。
// POST /auth/email/signup
func (h *AuthHandler) EmailSignUp(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req emailSignUpRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	h.started(w, s, s.SignUpWithEmail(r.Context(), req.Email, req.Password, req.Name))
}

// Apple はAppleサインインを開始する。
// POST /auth/apple
func (h *AuthHandler) Apple(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.started(w, s, s.SignInWithApple(r.Context()))
}

// Google はGoogleサインインを開始する。
// POST /auth/google
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.started(w, s, s.SignInWithGoogle(r.Context()))
}

// SignOut はサインアウトする。実行中のフローの結果は破棄される。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.SignOut(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthStateResponse(s.Snapshot()))
}

// CompleteOnboarding は初回設定に遷移する。
// POST /auth/onboarding
func (h *AuthHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.CompleteOnboarding()
	writeJSON(w, http.StatusOK, toAuthStateResponse(s.Snapshot()))
}

// CompleteIntroduction は紹介画面の完了を記録する。
// POST /auth/introduction
func (h *AuthHandler) CompleteIntroduction(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.CompleteIntroduction(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthStateResponse(s.Snapshot()))
}

// session はリクエストのクライアントIDに対応するAuthSessionを返す。
func (h *AuthHandler) session(w http.ResponseWriter, r *http.Request) (AuthSession, bool) {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}
	return h.sessions.Session(r.Context(), clientID), true
}

// started はフロー開始の結果を書き込む。
func (h *AuthHandler) started(w http.ResponseWriter, s AuthSession, err error) {
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toAuthStateResponse(s.Snapshot()))
}

func toAuthStateResponse(snap session.Snapshot) authStateResponse {
	resp := authStateResponse{
		State:                    snap.State.Phase(),
		User:                     snap.User,
		IsLoading:                snap.IsLoading,
		ErrorMessage:             snap.ErrorMessage,
		HasCompletedIntroduction: snap.HasCompletedIntroduction,
	}
	if snap.User != nil {
		resp.ProviderName = snap.User.AuthProvider.DisplayName()
	}
	return resp
}
