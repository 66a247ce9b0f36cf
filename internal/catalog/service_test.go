package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/sporthub/internal/backend"
	"github.com/hitoshi/sporthub/internal/model"
	"github.com/hitoshi/sporthub/internal/repository"
	"github.com/hitoshi/sporthub/internal/security"
)

// recordingCollector はテスト用のMetricsCollector。呼び出し回数のみ記録する。
type recordingCollector struct {
	mu       sync.Mutex
	joined   int
	rejected map[string]int
	created  int
	synced   int
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{rejected: make(map[string]int)}
}

func (c *recordingCollector) RecordEventJoined() { c.mu.Lock(); c.joined++; c.mu.Unlock() }
func (c *recordingCollector) RecordJoinRejected(reason string) {
	c.mu.Lock()
	c.rejected[reason]++
	c.mu.Unlock()
}
func (c *recordingCollector) RecordEventCreated()                { c.created++ }
func (c *recordingCollector) RecordEventsSynced(n int)           { c.synced += n }
func (c *recordingCollector) RecordEventsPurged(int)             {}
func (c *recordingCollector) RecordAuthAttempt(string, string)   {}
func (c *recordingCollector) RecordHTTPStatus(int)               {}
func (c *recordingCollector) RecordRequestLatency(time.Duration) {}

// mockMediaChecker はテスト用のMediaChecker。
type mockMediaChecker struct {
	checkFn func(ctx context.Context, rawURL string) error
}

func (m *mockMediaChecker) Check(ctx context.Context, rawURL string) error {
	if m.checkFn != nil {
		return m.checkFn(ctx, rawURL)
	}
	return nil
}

// mockBackend はFetchEventsとJoinEventのみ差し替え可能なbackend.Client。
type mockBackend struct {
	*backend.StubClient
	fetchEventsFn func(ctx context.Context) ([]model.Event, error)
	joinEventFn   func(ctx context.Context, eventID, userID string) error
}

func (m *mockBackend) FetchEvents(ctx context.Context) ([]model.Event, error) {
	if m.fetchEventsFn != nil {
		return m.fetchEventsFn(ctx)
	}
	return m.StubClient.FetchEvents(ctx)
}

func (m *mockBackend) JoinEvent(ctx context.Context, eventID, userID string) error {
	if m.joinEventFn != nil {
		return m.joinEventFn(ctx, eventID, userID)
	}
	return m.StubClient.JoinEvent(ctx, eventID, userID)
}

// failingActivityRepo はAppendが常に失敗するActivityRepository。
type failingActivityRepo struct {
	*repository.MemoryActivityRepo
}

func (r *failingActivityRepo) Append(context.Context, *model.UserActivity) error {
	return errors.New("disk full")
}

type testEnv struct {
	svc        *Service
	events     *repository.MemoryEventRepo
	activities repository.ActivityRepository
	users      *repository.MemoryUserRepo
	backend    *mockBackend
	media      *mockMediaChecker
	metrics    *recordingCollector
}

func newTestEnv(t *testing.T, enforce bool) *testEnv {
	t.Helper()
	env := &testEnv{
		events:     repository.NewMemoryEventRepo(),
		activities: repository.NewMemoryActivityRepo(),
		users:      repository.NewMemoryUserRepo(),
		backend:    &mockBackend{StubClient: backend.NewStubClient(nil)},
		media:      &mockMediaChecker{},
		metrics:    newRecordingCollector(),
	}
	env.build(enforce)
	return env
}

func (env *testEnv) build(enforce bool) {
	env.svc = NewService(env.events, env.activities, env.users, env.backend,
		security.NewTextSanitizer(), env.media, env.metrics, nil,
		Options{EnforceCapacity: enforce, Now: func() time.Time { return baseTime }})
}

func (env *testEnv) addEvent(t *testing.T, e model.Event) {
	t.Helper()
	if err := env.events.Create(context.Background(), &e); err != nil {
		t.Fatalf("Create event: %v", err)
	}
}

func (env *testEnv) addUser(t *testing.T, u model.User) {
	t.Helper()
	if err := env.users.Save(context.Background(), &u); err != nil {
		t.Fatalf("Save user: %v", err)
	}
}

func assertAPIError(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %T (%v)", code, err, err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}

func TestService_ListEvents_FilterSearchSort(t *testing.T) {
	env := newTestEnv(t, true)
	for _, e := range sampleEvents() {
		env.addEvent(t, e)
	}

	got, err := env.svc.ListEvents(context.Background(), Query{
		Filter: Filter{Category: ptr(model.CategoryYoga)},
		Text:   "park",
		Order:  SortDescending,
	})
	if err != nil {
		t.Fatalf("ListEvents error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "park-yoga" {
		t.Errorf("ListEvents = %v, want [park-yoga]", ids(got))
	}

	all, _ := env.svc.ListEvents(context.Background(), Query{})
	if len(all) != 5 || all[0].ID != "yoga" {
		t.Errorf("default order should be ascending by date, got %v", ids(all))
	}
}

func TestService_GetEvent_NotFound(t *testing.T) {
	env := newTestEnv(t, true)
	_, err := env.svc.GetEvent(context.Background(), "missing")
	assertAPIError(t, err, model.ErrCodeEventNotFound)
}

func TestService_JoinEvent_IncrementsAndAppends(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	env.addUser(t, model.User{ID: "user-1", Name: "Aisha"})
	env.addEvent(t, model.Event{ID: "e1", Title: "Futsal", MaxParticipants: 10, CurrentParticipants: 3, Date: baseTime.Add(time.Hour)})

	var notified string
	env.backend.joinEventFn = func(_ context.Context, eventID, userID string) error {
		notified = eventID + "/" + userID
		return nil
	}

	activity, err := env.svc.JoinEvent(ctx, "user-1", "e1")
	if err != nil {
		t.Fatalf("JoinEvent error: %v", err)
	}
	if activity == nil {
		t.Fatal("expected activity")
	}
	if activity.Status != model.ActivityStatusGoing || activity.UserID != "user-1" || activity.Event.ID != "e1" {
		t.Errorf("activity = %+v", activity)
	}
	if !activity.JoinDate.Equal(baseTime) {
		t.Errorf("JoinDate = %v, want %v", activity.JoinDate, baseTime)
	}

	event, _ := env.events.FindByID(ctx, "e1")
	if event.CurrentParticipants != 4 {
		t.Errorf("CurrentParticipants = %d, want 4", event.CurrentParticipants)
	}
	list, _ := env.activities.ListByUserID(ctx, "user-1")
	if len(list) != 1 {
		t.Errorf("activities = %d, want 1", len(list))
	}
	user, _ := env.users.FindByID(ctx, "user-1")
	if user.TotalEventsJoined != 1 {
		t.Errorf("TotalEventsJoined = %d, want 1", user.TotalEventsJoined)
	}
	if notified != "e1/user-1" {
		t.Errorf("backend notified with %q", notified)
	}
	if env.metrics.joined != 1 {
		t.Errorf("joined metric = %d, want 1", env.metrics.joined)
	}
}

func TestService_JoinEvent_NoProfileIsNoop(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	env.addEvent(t, model.Event{ID: "e1", MaxParticipants: 10})

	activity, err := env.svc.JoinEvent(ctx, "ghost", "e1")
	if err != nil || activity != nil {
		t.Fatalf("JoinEvent = %v, %v; want nil, nil", activity, err)
	}
	event, _ := env.events.FindByID(ctx, "e1")
	if event.CurrentParticipants != 0 {
		t.Errorf("CurrentParticipants = %d, want 0", event.CurrentParticipants)
	}
}

func TestService_JoinEvent_UnknownEvent(t *testing.T) {
	env := newTestEnv(t, true)
	env.addUser(t, model.User{ID: "user-1"})

	_, err := env.svc.JoinEvent(context.Background(), "user-1", "missing")
	assertAPIError(t, err, model.ErrCodeEventNotFound)
	if env.metrics.rejected["not_found"] != 1 {
		t.Errorf("rejected[not_found] = %d, want 1", env.metrics.rejected["not_found"])
	}
}

func TestService_JoinEvent_Capacity(t *testing.T) {
	t.Run("有効時は満員で拒否", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.addUser(t, model.User{ID: "user-1"})
		env.addEvent(t, model.Event{ID: "e1", MaxParticipants: 2, CurrentParticipants: 2})

		_, err := env.svc.JoinEvent(context.Background(), "user-1", "e1")
		assertAPIError(t, err, model.ErrCodeEventFull)

		event, _ := env.events.FindByID(context.Background(), "e1")
		if event.CurrentParticipants != 2 {
			t.Errorf("CurrentParticipants = %d, want 2", event.CurrentParticipants)
		}
		if list, _ := env.activities.ListByUserID(context.Background(), "user-1"); len(list) != 0 {
			t.Errorf("no activity should be appended, got %d", len(list))
		}
		if env.metrics.rejected["full"] != 1 {
			t.Errorf("rejected[full] = %d, want 1", env.metrics.rejected["full"])
		}
	})

	t.Run("無効時は定員を超えて加算", func(t *testing.T) {
		env := newTestEnv(t, false)
		env.addUser(t, model.User{ID: "user-1"})
		env.addEvent(t, model.Event{ID: "e1", MaxParticipants: 2, CurrentParticipants: 2})

		if _, err := env.svc.JoinEvent(context.Background(), "user-1", "e1"); err != nil {
			t.Fatalf("JoinEvent error: %v", err)
		}
		event, _ := env.events.FindByID(context.Background(), "e1")
		if event.CurrentParticipants != 3 {
			t.Errorf("CurrentParticipants = %d, want 3", event.CurrentParticipants)
		}
	})
}

func TestService_JoinEvent_ConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	env := newTestEnv(t, true)
	env.addEvent(t, model.Event{ID: "e1", MaxParticipants: 5})
	for i := 0; i < 20; i++ {
		env.addUser(t, model.User{ID: string(rune('a' + i))})
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			env.svc.JoinEvent(context.Background(), id, "e1")
		}(string(rune('a' + i)))
	}
	wg.Wait()

	event, _ := env.events.FindByID(context.Background(), "e1")
	if event.CurrentParticipants != 5 {
		t.Errorf("CurrentParticipants = %d, want 5", event.CurrentParticipants)
	}
}

func TestService_JoinEvent_ReleasesSeatWhenAppendFails(t *testing.T) {
	env := newTestEnv(t, true)
	env.activities = &failingActivityRepo{MemoryActivityRepo: repository.NewMemoryActivityRepo()}
	env.build(true)
	env.addUser(t, model.User{ID: "user-1"})
	env.addEvent(t, model.Event{ID: "e1", MaxParticipants: 5, CurrentParticipants: 1})

	if _, err := env.svc.JoinEvent(context.Background(), "user-1", "e1"); err == nil {
		t.Fatal("expected error")
	}
	event, _ := env.events.FindByID(context.Background(), "e1")
	if event.CurrentParticipants != 1 {
		t.Errorf("CurrentParticipants = %d, want 1", event.CurrentParticipants)
	}
}

func TestService_JoinEvent_BackendFailureIsLogged(t *testing.T) {
	env := newTestEnv(t, true)
	env.addUser(t, model.User{ID: "user-1"})
	env.addEvent(t, model.Event{ID: "e1", MaxParticipants: 5})
	env.backend.joinEventFn = func(context.Context, string, string) error { return backend.ErrNetwork }

	if _, err := env.svc.JoinEvent(context.Background(), "user-1", "e1"); err != nil {
		t.Errorf("backend failure should not fail the join: %v", err)
	}
}

func validInput() CreateEventInput {
	return CreateEventInput{
		Title:           "Evening Futsal",
		Description:     "Friendly 5v5",
		Category:        model.CategoryFootball,
		Date:            baseTime.AddDate(0, 0, 3),
		TimeLabel:       "8:00 PM",
		Location:        "Bangsar",
		Price:           12.5,
		IsFree:          true,
		MaxParticipants: 10,
		AgeGroup:        model.AgeGroupAdults,
		ContactInfo:     "+60111111111",
	}
}

func TestService_CreateEvent(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	env.addUser(t, model.User{ID: "org-1", Name: "Hafiz", Email: "hafiz@example.com", IsOrganizer: true})

	in := validInput()
	in.Title = "<b>Evening</b> Futsal"
	event, err := env.svc.CreateEvent(ctx, "org-1", in)
	if err != nil {
		t.Fatalf("CreateEvent error: %v", err)
	}
	if event.Title != "Evening Futsal" {
		t.Errorf("Title = %q, want markup stripped", event.Title)
	}
	if event.Price != 0 || !event.IsFree {
		t.Errorf("free event must have price 0, got %v/%v", event.Price, event.IsFree)
	}
	if event.CurrentParticipants != 0 {
		t.Errorf("CurrentParticipants = %d, want 0", event.CurrentParticipants)
	}
	if event.Organizer.Name != "Hafiz" || event.Organizer.Phone != "+60111111111" {
		t.Errorf("Organizer = %+v", event.Organizer)
	}
	if stored, _ := env.events.FindByID(ctx, event.ID); stored == nil {
		t.Error("event should be stored")
	}
	if env.metrics.created != 1 {
		t.Errorf("created metric = %d, want 1", env.metrics.created)
	}
}

func TestService_CreateEvent_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		mutate func(*CreateEventInput)
		code   string
	}{
		{"主催者以外", "member", func(*CreateEventInput) {}, model.ErrCodeNotOrganizer},
		{"未登録ユーザー", "ghost", func(*CreateEventInput) {}, model.ErrCodeUserNotFound},
		{"タイトル空", "org", func(in *CreateEventInput) { in.Title = "  " }, model.ErrCodeInvalidEvent},
		{"タグのみのタイトル", "org", func(in *CreateEventInput) { in.Title = "<script>x</script>" }, model.ErrCodeInvalidEvent},
		{"連絡先空", "org", func(in *CreateEventInput) { in.ContactInfo = "" }, model.ErrCodeInvalidEvent},
		{"定員0", "org", func(in *CreateEventInput) { in.MaxParticipants = 0 }, model.ErrCodeInvalidEvent},
		{"有料で負の価格", "org", func(in *CreateEventInput) { in.IsFree = false; in.Price = -1 }, model.ErrCodeInvalidEvent},
		{"未定義カテゴリ", "org", func(in *CreateEventInput) { in.Category = "curling" }, model.ErrCodeInvalidEvent},
		{"未定義年齢層", "org", func(in *CreateEventInput) { in.AgeGroup = "toddlers" }, model.ErrCodeInvalidEvent},
		{"日付なし", "org", func(in *CreateEventInput) { in.Date = time.Time{} }, model.ErrCodeInvalidEvent},
		{"タイトル長すぎ", "org", func(in *CreateEventInput) { in.Title = strings.Repeat("a", model.MaxTitleLength+1) }, model.ErrCodeInvalidEvent},
		{"時間表記長すぎ", "org", func(in *CreateEventInput) { in.TimeLabel = strings.Repeat("8", model.MaxTimeLabelLength+1) }, model.ErrCodeInvalidEvent},
		{"場所長すぎ", "org", func(in *CreateEventInput) { in.Location = strings.Repeat("場", model.MaxLocationLength+1) }, model.ErrCodeInvalidEvent},
		{"連絡先長すぎ", "org", func(in *CreateEventInput) { in.ContactInfo = strings.Repeat("1", model.MaxContactInfoLength+1) }, model.ErrCodeInvalidEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, true)
			env.addUser(t, model.User{ID: "org", IsOrganizer: true})
			env.addUser(t, model.User{ID: "member"})

			in := validInput()
			tt.mutate(&in)
			_, err := env.svc.CreateEvent(context.Background(), tt.userID, in)
			assertAPIError(t, err, tt.code)

			if n, _ := env.events.Count(context.Background()); n != 0 {
				t.Errorf("no event should be stored, got %d", n)
			}
		})
	}
}

// 上限ちょうどの長さは受け付ける。マルチバイト文字はバイト数ではなく文字数で数える。
func TestService_CreateEvent_LengthAtLimit(t *testing.T) {
	env := newTestEnv(t, true)
	env.addUser(t, model.User{ID: "org", IsOrganizer: true})

	in := validInput()
	in.Title = strings.Repeat("試", model.MaxTitleLength)
	in.Location = strings.Repeat("場", model.MaxLocationLength)
	event, err := env.svc.CreateEvent(context.Background(), "org", in)
	if err != nil {
		t.Fatalf("CreateEvent error: %v", err)
	}
	if event.Title != in.Title {
		t.Error("title at the limit should be stored unchanged")
	}
}

func TestService_CreateEvent_PaidKeepsPrice(t *testing.T) {
	env := newTestEnv(t, true)
	env.addUser(t, model.User{ID: "org", IsOrganizer: true})

	in := validInput()
	in.IsFree = false
	event, err := env.svc.CreateEvent(context.Background(), "org", in)
	if err != nil {
		t.Fatalf("CreateEvent error: %v", err)
	}
	if event.Price != 12.5 || event.FormattedPrice() != "RM12.50" {
		t.Errorf("Price = %v (%s)", event.Price, event.FormattedPrice())
	}
}

func TestService_CreateEvent_MediaRejected(t *testing.T) {
	env := newTestEnv(t, true)
	env.addUser(t, model.User{ID: "org", IsOrganizer: true})
	env.media.checkFn = func(_ context.Context, rawURL string) error {
		return model.NewInvalidMediaURLError(rawURL)
	}

	in := validInput()
	in.ImageURL = "http://10.0.0.1/a.png"
	_, err := env.svc.CreateEvent(context.Background(), "org", in)
	assertAPIError(t, err, model.ErrCodeInvalidMediaURL)
}

func TestService_ListActivitiesAndStats(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	env.addUser(t, model.User{ID: "user-1"})
	env.addEvent(t, model.Event{ID: "soon", MaxParticipants: 9, Date: baseTime.AddDate(0, 0, 2)})
	env.addEvent(t, model.Event{ID: "later", MaxParticipants: 9, Date: baseTime.AddDate(0, 0, 20)})
	env.addEvent(t, model.Event{ID: "done", MaxParticipants: 9, Date: baseTime.AddDate(0, 0, -2)})

	for _, id := range []string{"later", "done", "soon"} {
		if _, err := env.svc.JoinEvent(ctx, "user-1", id); err != nil {
			t.Fatalf("JoinEvent(%s): %v", id, err)
		}
	}

	all, _ := env.svc.ListActivities(ctx, "user-1", ViewAll)
	if len(all) != 3 || all[0].Event.ID != "later" {
		t.Errorf("ViewAll should keep insertion order, got %d items", len(all))
	}
	upcoming, _ := env.svc.ListActivities(ctx, "user-1", ViewUpcoming)
	if len(upcoming) != 2 || upcoming[0].Event.ID != "soon" {
		t.Errorf("ViewUpcoming = %+v", upcoming)
	}
	past, _ := env.svc.ListActivities(ctx, "user-1", ViewPast)
	if len(past) != 1 || past[0].Event.ID != "done" {
		t.Errorf("ViewPast = %+v", past)
	}

	stats, err := env.svc.Stats(ctx, "user-1")
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.TotalActivities != 3 || stats.UpcomingThisWeek != 1 || stats.JoinedThisMonth != 3 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestService_Sync(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	env.addEvent(t, model.Event{ID: "e1", Title: "Old"})

	env.backend.fetchEventsFn = func(context.Context) ([]model.Event, error) {
		return []model.Event{{ID: "e1", Title: "New"}, {ID: "e2", Title: "Added"}}, nil
	}
	n, err := env.svc.Sync(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Sync = %d, %v", n, err)
	}
	e1, _ := env.events.FindByID(ctx, "e1")
	if e1.Title != "New" {
		t.Errorf("e1.Title = %q, want New", e1.Title)
	}
	if count, _ := env.events.Count(ctx); count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}
	if env.metrics.synced != 2 {
		t.Errorf("synced metric = %d, want 2", env.metrics.synced)
	}
}

func TestService_Sync_StubReturnsNothing(t *testing.T) {
	env := newTestEnv(t, true)
	n, err := env.svc.Sync(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Sync = %d, %v; want 0, nil", n, err)
	}
}

func TestService_Seed_OnlyWhenEmpty(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	n, err := env.svc.Seed(ctx)
	if err != nil || n != 5 {
		t.Fatalf("Seed = %d, %v; want 5", n, err)
	}
	n, err = env.svc.Seed(ctx)
	if err != nil || n != 0 {
		t.Errorf("second Seed = %d, %v; want 0", n, err)
	}
	if count, _ := env.events.Count(ctx); count != 5 {
		t.Errorf("Count = %d, want 5", count)
	}
}
