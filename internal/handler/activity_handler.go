package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/sporthub/internal/catalog"
	"github.com/hitoshi/sporthub/internal/model"
)

// ActivityServiceInterface は参加記録ハンドラーが必要とするサービスインターフェース。
type ActivityServiceInterface interface {
	ListActivities(ctx context.Context, userID string, view catalog.ActivityView) ([]model.UserActivity, error)
	Stats(ctx context.Context, userID string) (*model.ActivityStats, error)
}

// ActivityHandler は参加記録のHTTPハンドラー。
type ActivityHandler struct {
	service ActivityServiceInterface
}

// NewActivityHandler はActivityHandlerを生成する。
func NewActivityHandler(service ActivityServiceInterface) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// activityResponse は参加記録のAPIレスポンス。
type activityResponse struct {
	ID       string               `json:"id"`
	Event    eventResponse        `json:"event"`
	Status   model.ActivityStatus `json:"status"`
	JoinDate time.Time            `json:"join_date"`
	Notes    string               `json:"notes,omitempty"`
}

type activityListResponse struct {
	Activities []activityResponse   `json:"activities"`
	View       catalog.ActivityView `json:"view"`
}

// ListActivities は参加記録を返す。
// GET /api/activities?view=all|upcoming|past
func (h *ActivityHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	view, err := catalog.ParseActivityView(r.URL.Query().Get("view"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFilterError("view="+r.URL.Query().Get("view")))
		return
	}

	activities, err := h.service.ListActivities(r.Context(), userID, view)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := activityListResponse{
		Activities: make([]activityResponse, len(activities)),
		View:       view,
	}
	for i, a := range activities {
		resp.Activities[i] = toActivityResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Stats はホーム画面・プロフィール画面向けの集計値を返す。
// GET /api/activities/stats
func (h *ActivityHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func toActivityResponse(a model.UserActivity) activityResponse {
	return activityResponse{
		ID:       a.ID,
		Event:    toEventResponse(a.Event),
		Status:   a.Status,
		JoinDate: a.JoinDate,
		Notes:    a.Notes,
	}
}
