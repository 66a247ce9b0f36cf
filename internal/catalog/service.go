// Package catalog はイベントカタログの検索・参加・作成のドメインロジックを提供する。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/sporthub/internal/backend"
	"github.com/hitoshi/sporthub/internal/metrics"
	"github.com/hitoshi/sporthub/internal/model"
	"github.com/hitoshi/sporthub/internal/repository"
	"github.com/hitoshi/sporthub/internal/security"
)

// MediaChecker は画像URLの検査を行うインターフェース。
type MediaChecker interface {
	Check(ctx context.Context, rawURL string) error
}

// Query はイベント一覧の取得条件。
type Query struct {
	Filter Filter
	Text   string
	Order  SortOrder
}

// CreateEventInput は主催者が入力するイベント作成フォームの内容。
type CreateEventInput struct {
	Title            string
	Description      string
	Category         model.SportCategory
	Date             time.Time
	TimeLabel        string
	Location         string
	Coordinates      *model.Coordinates
	Price            float64
	IsFree           bool
	MaxParticipants  int
	ImageURL         string
	IsIndoor         bool
	AgeGroup         model.AgeGroup
	IsFamilyFriendly bool
	ContactInfo      string
	Requirements     string
}

// Options はServiceの動作設定。
type Options struct {
	// EnforceCapacity がfalseの場合、定員に達していても参加を受け付ける。
	EnforceCapacity bool
	// Now は現在時刻の取得関数。nilの場合はtime.Nowを使用する。
	Now func() time.Time
}

// Service はイベントカタログのサービス層。
type Service struct {
	events     repository.EventRepository
	activities repository.ActivityRepository
	users      repository.UserRepository
	backend    backend.Client
	sanitizer  security.TextSanitizerService
	media      MediaChecker
	metrics    metrics.MetricsCollector
	logger     *slog.Logger

	enforceCapacity bool
	now             func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	events repository.EventRepository,
	activities repository.ActivityRepository,
	users repository.UserRepository,
	client backend.Client,
	sanitizer security.TextSanitizerService,
	media MediaChecker,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	opts Options,
) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		events:          events,
		activities:      activities,
		users:           users,
		backend:         client,
		sanitizer:       sanitizer,
		media:           media,
		metrics:         collector,
		logger:          logger,
		enforceCapacity: opts.EnforceCapacity,
		now:             now,
	}
}

// ListEvents は条件に一致するイベントを開催日時順で返す。
func (s *Service) ListEvents(ctx context.Context, q Query) ([]model.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}

	order := q.Order
	if order == "" {
		order = SortAscending
	}
	return SortByDate(SearchEvents(FilterEvents(events, q.Filter), q.Text), order), nil
}

// GetEvent は指定IDのイベントを返す。
func (s *Service) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}
	if event == nil {
		return nil, model.NewEventNotFoundError(eventID)
	}
	return event, nil
}

// CreateEvent は主催者のイベントを検証してカタログに追加する。
func (s *Service) CreateEvent(ctx context.Context, userID string, in CreateEventInput) (*model.Event, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if !user.IsOrganizer {
		return nil, model.NewNotOrganizerError()
	}

	in = s.sanitizeInput(in)
	if err := validateEventInput(in); err != nil {
		return nil, err
	}
	if err := s.media.Check(ctx, in.ImageURL); err != nil {
		return nil, err
	}

	price := in.Price
	if in.IsFree {
		price = 0
	}
	now := s.now()

	event := &model.Event{
		ID:                  uuid.NewString(),
		Title:               in.Title,
		Description:         in.Description,
		Category:            in.Category,
		Date:                in.Date,
		TimeLabel:           in.TimeLabel,
		Location:            in.Location,
		Coordinates:         in.Coordinates,
		Price:               price,
		IsFree:              in.IsFree,
		MaxParticipants:     in.MaxParticipants,
		CurrentParticipants: 0,
		Organizer: model.Organizer{
			ID:              user.ID,
			Name:            user.Name,
			Email:           user.Email,
			Phone:           in.ContactInfo,
			ProfileImageURL: user.ProfileImageURL,
			Rating:          5.0,
			TotalEvents:     1,
			JoinDate:        now,
		},
		ImageURL:         in.ImageURL,
		IsIndoor:         in.IsIndoor,
		AgeGroup:         in.AgeGroup,
		IsFamilyFriendly: in.IsFamilyFriendly,
		ContactInfo:      in.ContactInfo,
		Requirements:     in.Requirements,
	}

	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("イベントの保存に失敗しました: %w", err)
	}
	if _, err := s.backend.CreateEvent(ctx, *event); err != nil {
		s.logger.Warn("backend create event failed",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
	}

	s.metrics.RecordEventCreated()
	s.logger.Info("event created",
		slog.String("event_id", event.ID),
		slog.String("user_id", userID),
		slog.String("category", string(event.Category)),
	)
	return event, nil
}

func (s *Service) sanitizeInput(in CreateEventInput) CreateEventInput {
	in.Title = s.sanitizer.Sanitize(in.Title)
	in.Description = s.sanitizer.Sanitize(in.Description)
	in.TimeLabel = s.sanitizer.Sanitize(in.TimeLabel)
	in.Location = s.sanitizer.Sanitize(in.Location)
	in.ContactInfo = s.sanitizer.Sanitize(in.ContactInfo)
	in.Requirements = s.sanitizer.Sanitize(in.Requirements)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	return in
}

func validateEventInput(in CreateEventInput) error {
	// maxが0の項目は長さを制限しない
	required := []struct {
		field string
		value string
		max   int
	}{
		{"title", in.Title, model.MaxTitleLength},
		{"description", in.Description, 0},
		{"time", in.TimeLabel, model.MaxTimeLabelLength},
		{"location", in.Location, model.MaxLocationLength},
		{"contact_info", in.ContactInfo, model.MaxContactInfoLength},
	}
	for _, r := range required {
		if r.value == "" {
			return model.NewInvalidEventError(r.field + " は必須です")
		}
		if r.max > 0 && utf8.RuneCountInString(r.value) > r.max {
			return model.NewInvalidEventError(fmt.Sprintf("%s は%d文字以内で指定してください", r.field, r.max))
		}
	}

	if _, err := model.ParseSportCategory(string(in.Category)); err != nil {
		return model.NewInvalidEventError(err.Error())
	}
	if _, err := model.ParseAgeGroup(string(in.AgeGroup)); err != nil {
		return model.NewInvalidEventError(err.Error())
	}
	if in.Date.IsZero() {
		return model.NewInvalidEventError("date は必須です")
	}
	if in.MaxParticipants <= 0 {
		return model.NewInvalidEventError("max_participants は1以上を指定してください")
	}
	if !in.IsFree && in.Price < 0 {
		return model.NewInvalidEventError("price は0以上を指定してください")
	}
	return nil
}

// JoinEvent はユーザーをイベントに参加させ、参加記録を返す。
// プロフィールが存在しないユーザーの場合は何もせずnil, nilを返す。
func (s *Service) JoinEvent(ctx context.Context, userID, eventID string) (*model.UserActivity, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		s.logger.Debug("join ignored: no profile",
			slog.String("user_id", userID),
			slog.String("event_id", eventID),
		)
		return nil, nil
	}

	var snapshot model.Event
	_, err = s.events.UpdateByID(ctx, eventID, func(cur model.Event) (model.Event, error) {
		if s.enforceCapacity && !cur.IsAvailable() {
			return cur, model.NewEventFullError(eventID)
		}
		snapshot = cur
		return cur.WithParticipants(cur.CurrentParticipants + 1), nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.RecordJoinRejected("not_found")
		return nil, model.NewEventNotFoundError(eventID)
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		s.metrics.RecordJoinRejected("full")
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("参加者数の更新に失敗しました: %w", err)
	}

	activity := &model.UserActivity{
		ID:       uuid.NewString(),
		UserID:   userID,
		Event:    snapshot,
		Status:   model.ActivityStatusGoing,
		JoinDate: s.now(),
	}
	if err := s.activities.Append(ctx, activity); err != nil {
		s.releaseSeat(ctx, eventID)
		return nil, fmt.Errorf("参加記録の保存に失敗しました: %w", err)
	}

	if err := s.users.IncrementEventsJoined(ctx, userID); err != nil {
		s.logger.Warn("failed to update joined count",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.backend.JoinEvent(ctx, eventID, userID); err != nil {
		s.logger.Warn("backend join event failed",
			slog.String("event_id", eventID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.metrics.RecordEventJoined()
	s.logger.Info("event joined",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
	)
	return activity, nil
}

// releaseSeat は参加記録の保存に失敗した場合に参加者数を戻す。
func (s *Service) releaseSeat(ctx context.Context, eventID string) {
	_, err := s.events.UpdateByID(ctx, eventID, func(cur model.Event) (model.Event, error) {
		if cur.CurrentParticipants == 0 {
			return cur, nil
		}
		return cur.WithParticipants(cur.CurrentParticipants - 1), nil
	})
	if err != nil {
		s.logger.Error("failed to release seat",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()),
		)
	}
}

// ListActivities はユーザーの参加記録を表示区分に従って返す。
func (s *Service) ListActivities(ctx context.Context, userID string, view ActivityView) ([]model.UserActivity, error) {
	activities, err := s.activities.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("参加記録の取得に失敗しました: %w", err)
	}

	switch view {
	case ViewUpcoming:
		return UpcomingActivities(activities, s.now()), nil
	case ViewPast:
		return PastActivities(activities, s.now()), nil
	default:
		return activities, nil
	}
}

// Stats はホーム画面・プロフィール画面向けの集計値を返す。
// UpcomingThisWeekはカタログ全体のうち今後7日以内に開催されるイベント数。
func (s *Service) Stats(ctx context.Context, userID string) (*model.ActivityStats, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}
	activities, err := s.activities.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("参加記録の取得に失敗しました: %w", err)
	}

	now := s.now()
	return &model.ActivityStats{
		TotalActivities:  len(activities),
		UpcomingThisWeek: CountInWindow(events, now, now.AddDate(0, 0, 7)),
		JoinedThisMonth:  CountJoinedInMonth(activities, now),
	}, nil
}

// Sync はバックエンドからイベントを取得してカタログに反映し、反映件数を返す。
func (s *Service) Sync(ctx context.Context) (int, error) {
	events, err := s.backend.FetchEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("バックエンドからのイベント取得に失敗しました: %w", err)
	}

	for i := range events {
		if err := s.events.Upsert(ctx, &events[i]); err != nil {
			return i, fmt.Errorf("イベントの反映に失敗しました: %w", err)
		}
	}

	s.metrics.RecordEventsSynced(len(events))
	s.logger.Info("catalog synced", slog.Int("count", len(events)))
	return len(events), nil
}

// Seed はカタログが空の場合にサンプルデータを投入し、投入件数を返す。
func (s *Service) Seed(ctx context.Context) (int, error) {
	count, err := s.events.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("イベント件数の取得に失敗しました: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	events, err := LoadSeed(s.now())
	if err != nil {
		return 0, err
	}
	for i := range events {
		if err := s.events.Create(ctx, &events[i]); err != nil {
			return i, fmt.Errorf("サンプルデータの投入に失敗しました: %w", err)
		}
	}

	s.logger.Info("catalog seeded", slog.Int("count", len(events)))
	return len(events), nil
}
