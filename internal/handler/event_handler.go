// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sporthub/internal/catalog"
	"github.com/hitoshi/sporthub/internal/middleware"
	"github.com/hitoshi/sporthub/internal/model"
)

// EventServiceInterface はイベントハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	// ListEvents は条件に一致するイベントを開催日時順で返す。
	ListEvents(ctx context.Context, q catalog.Query) ([]model.Event, error)
	// GetEvent はイベントを取得する。存在しない場合はEVENT_NOT_FOUNDを返す。
	GetEvent(ctx context.Context, eventID string) (*model.Event, error)
	// CreateEvent は主催者のイベントを作成する。
	CreateEvent(ctx context.Context, userID string, in catalog.CreateEventInput) (*model.Event, error)
	// JoinEvent はイベントに参加する。プロフィールがない場合はnil, nilを返す。
	JoinEvent(ctx context.Context, userID, eventID string) (*model.UserActivity, error)
}

// EventHandler はイベントカタログのHTTPハンドラー。
type EventHandler struct {
	service EventServiceInterface
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(service EventServiceInterface) *EventHandler {
	return &EventHandler{
		service: service,
	}
}

// eventResponse はイベントのAPIレスポンス。表示用の派生値を含む。
type eventResponse struct {
	model.Event
	CategoryLabel  string `json:"category_label"`
	AgeGroupLabel  string `json:"age_group_label"`
	IsAvailable    bool   `json:"is_available"`
	SpotsLeft      int    `json:"spots_left"`
	FormattedPrice string `json:"formatted_price"`
}

// eventListResponse はイベント一覧のAPIレスポンス。
type eventListResponse struct {
	Events []eventResponse `json:"events"`
	Count  int             `json:"count"`
}

// createEventRequest はイベント作成リクエストのボディ。
type createEventRequest struct {
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Category         string             `json:"category"`
	Date             time.Time          `json:"date"`
	Time             string             `json:"time"`
	Location         string             `json:"location"`
	Coordinates      *model.Coordinates `json:"coordinates"`
	Price            float64            `json:"price"`
	IsFree           bool               `json:"is_free"`
	MaxParticipants  int                `json:"max_participants"`
	ImageURL         string             `json:"image_url"`
	IsIndoor         bool               `json:"is_indoor"`
	AgeGroup         string             `json:"age_group"`
	IsFamilyFriendly bool               `json:"is_family_friendly"`
	ContactInfo      string             `json:"contact_info"`
	Requirements     string             `json:"requirements"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ListEvents はイベント一覧を返す。
// GET /api/events?category=&free=&age_group=&q=&order=
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q, apiErr := parseEventQuery(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	events, err := h.service.ListEvents(r.Context(), q)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := eventListResponse{
		Events: make([]eventResponse, len(events)),
		Count:  len(events),
	}
	for i, e := range events {
		resp.Events[i] = toEventResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseEventQuery はクエリパラメータから検索条件を組み立てる。
func parseEventQuery(r *http.Request) (catalog.Query, *model.APIError) {
	params := r.URL.Query()
	var q catalog.Query

	if v := params.Get("category"); v != "" {
		c, err := model.ParseSportCategory(v)
		if err != nil {
			return q, model.NewInvalidFilterError("category=" + v)
		}
		q.Filter.Category = &c
	}
	if v := params.Get("free"); v != "" {
		free, err := strconv.ParseBool(v)
		if err != nil {
			return q, model.NewInvalidFilterError("free=" + v)
		}
		q.Filter.IsFree = &free
	}
	if v := params.Get("age_group"); v != "" {
		g, err := model.ParseAgeGroup(v)
		if err != nil {
			return q, model.NewInvalidFilterError("age_group=" + v)
		}
		q.Filter.AgeGroup = &g
	}

	order, err := catalog.ParseSortOrder(params.Get("order"))
	if err != nil {
		return q, model.NewInvalidFilterError("order=" + params.Get("order"))
	}
	q.Order = order
	q.Text = params.Get("q")
	return q, nil
}

// GetEvent はイベント詳細を返す。
// GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(*event))
}

// CreateEvent はイベントを作成する。
// POST /api/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createEventRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	event, err := h.service.CreateEvent(r.Context(), userID, catalog.CreateEventInput{
		Title:            req.Title,
		Description:      req.Description,
		Category:         model.SportCategory(req.Category),
		Date:             req.Date,
		TimeLabel:        req.Time,
		Location:         req.Location,
		Coordinates:      req.Coordinates,
		Price:            req.Price,
		IsFree:           req.IsFree,
		MaxParticipants:  req.MaxParticipants,
		ImageURL:         req.ImageURL,
		IsIndoor:         req.IsIndoor,
		AgeGroup:         model.AgeGroup(req.AgeGroup),
		IsFamilyFriendly: req.IsFamilyFriendly,
		ContactInfo:      req.ContactInfo,
		Requirements:     req.Requirements,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventResponse(*event))
}

// JoinEvent はイベントに参加する。
// POST /api/events/{id}/join
// プロフィール未作成のユーザーは何も記録せず204を返す。
func (h *EventHandler) JoinEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	activity, err := h.service.JoinEvent(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if activity == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityResponse(*activity))
}

// toEventResponse はドメインのEventをAPIレスポンスに変換する。
func toEventResponse(e model.Event) eventResponse {
	return eventResponse{
		Event:          e,
		CategoryLabel:  e.Category.Label(),
		AgeGroupLabel:  e.AgeGroup.Label(),
		IsAvailable:    e.IsAvailable(),
		SpotsLeft:      e.SpotsLeft(),
		FormattedPrice: e.FormattedPrice(),
	}
}

// requireUserID はコンテキストから認証済みユーザーIDを取り出す。
// 取り出せない場合は401を書き込んでfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// decodeJSONBody はリクエストボディをJSONとしてデコードする。
// 失敗した場合は400を書き込んでfalseを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return false
	}
	return true
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeEventNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeEventFull, model.ErrCodeAuthInProgress:
		return http.StatusConflict
	case model.ErrCodeInvalidEvent, model.ErrCodeInvalidFilter, model.ErrCodeInvalidProfile,
		model.ErrCodeInvalidMediaURL, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeNotOrganizer:
		return http.StatusForbidden
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
