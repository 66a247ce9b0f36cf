package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/sporthub/internal/model"
)

func newTestEvent(id string, date time.Time) model.Event {
	return model.Event{
		ID:              id,
		Title:           "Event " + id,
		Category:        model.CategoryRunning,
		Date:            date,
		Location:        "KLCC Park",
		Coordinates:     &model.Coordinates{Latitude: 3.1548, Longitude: 101.7147},
		IsFree:          true,
		MaxParticipants: 10,
		AgeGroup:        model.AgeGroupAll,
		Organizer:       model.Organizer{ID: "org-1", Name: "Organizer"},
	}
}

func TestMemoryEventRepo_CreateAndList_PreservesInsertionOrder(t *testing.T) {
	repo := NewMemoryEventRepo()
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"b", "a", "c"} {
		e := newTestEvent(id, now)
		if err := repo.Create(ctx, &e); err != nil {
			t.Fatalf("Create(%s) error: %v", id, err)
		}
	}

	events, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	var ids []string
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	if diff := cmp.Diff([]string{"b", "a", "c"}, ids); diff != "" {
		t.Errorf("List order mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryEventRepo_Create_RejectsDuplicateID(t *testing.T) {
	repo := NewMemoryEventRepo()
	ctx := context.Background()
	now := time.Now()

	first := newTestEvent("e1", now)
	if err := repo.Create(ctx, &first); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	dup := newTestEvent("e1", now.Add(time.Hour))
	dup.Title = "Duplicate"
	if err := repo.Create(ctx, &dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Create(duplicate) error = %v, want ErrDuplicate", err)
	}

	events, _ := repo.List(ctx)
	if len(events) != 1 {
		t.Fatalf("List returned %d events, want 1", len(events))
	}
	if events[0].Title == "Duplicate" {
		t.Error("duplicate create should not replace the stored event")
	}
}

func TestMemoryEventRepo_FindByID_ReturnsCopy(t *testing.T) {
	repo := NewMemoryEventRepo()
	ctx := context.Background()
	e := newTestEvent("e1", time.Now())
	repo.Create(ctx, &e)

	got, err := repo.FindByID(ctx, "e1")
	if err != nil || got == nil {
		t.Fatalf("FindByID = %v, %v", got, err)
	}
	got.Title = "mutated"
	got.Coordinates.Latitude = 0

	again, _ := repo.FindByID(ctx, "e1")
	if again.Title != "Event e1" {
		t.Errorf("stored title changed to %q", again.Title)
	}
	if again.Coordinates.Latitude != 3.1548 {
		t.Errorf("stored coordinates changed to %v", again.Coordinates.Latitude)
	}
}

func TestMemoryEventRepo_FindByID_Missing(t *testing.T) {
	repo := NewMemoryEventRepo()
	got, err := repo.FindByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestMemoryEventRepo_Upsert_ReplacesInPlace(t *testing.T) {
	repo := NewMemoryEventRepo()
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		e := newTestEvent(id, time.Now())
		repo.Create(ctx, &e)
	}

	updated := newTestEvent("a", time.Now())
	updated.Title = "Renamed"
	if err := repo.Upsert(ctx, &updated); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	added := newTestEvent("c", time.Now())
	repo.Upsert(ctx, &added)

	events, _ := repo.List(ctx)
	if len(events) != 3 {
		t.Fatalf("len = %d, want 3", len(events))
	}
	if events[0].ID != "a" || events[0].Title != "Renamed" {
		t.Errorf("events[0] = %s/%s, want a/Renamed", events[0].ID, events[0].Title)
	}
	if events[2].ID != "c" {
		t.Errorf("events[2].ID = %s, want c", events[2].ID)
	}
}

func TestMemoryEventRepo_UpdateByID(t *testing.T) {
	repo := NewMemoryEventRepo()
	ctx := context.Background()
	e := newTestEvent("e1", time.Now())
	repo.Create(ctx, &e)

	t.Run("差し替え", func(t *testing.T) {
		got, err := repo.UpdateByID(ctx, "e1", func(cur model.Event) (model.Event, error) {
			return cur.WithParticipants(cur.CurrentParticipants + 1), nil
		})
		if err != nil {
			t.Fatalf("UpdateByID error: %v", err)
		}
		if got.CurrentParticipants != 1 {
			t.Errorf("CurrentParticipants = %d, want 1", got.CurrentParticipants)
		}
	})

	t.Run("mutateのエラーで更新を中止", func(t *testing.T) {
		wantErr := errors.New("stop")
		_, err := repo.UpdateByID(ctx, "e1", func(cur model.Event) (model.Event, error) {
			return cur.WithParticipants(99), wantErr
		})
		if !errors.Is(err, wantErr) {
			t.Fatalf("err = %v, want %v", err, wantErr)
		}
		stored, _ := repo.FindByID(ctx, "e1")
		if stored.CurrentParticipants != 1 {
			t.Errorf("CurrentParticipants = %d, want 1", stored.CurrentParticipants)
		}
	})

	t.Run("存在しないID", func(t *testing.T) {
		_, err := repo.UpdateByID(ctx, "missing", func(cur model.Event) (model.Event, error) {
			return cur, nil
		})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestMemoryEventRepo_UpdateByID_ConcurrentIncrements(t *testing.T) {
	repo := NewMemoryEventRepo()
	ctx := context.Background()
	e := newTestEvent("e1", time.Now())
	e.MaxParticipants = 1000
	repo.Create(ctx, &e)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo.UpdateByID(ctx, "e1", func(cur model.Event) (model.Event, error) {
				return cur.WithParticipants(cur.CurrentParticipants + 1), nil
			})
		}()
	}
	wg.Wait()

	got, _ := repo.FindByID(ctx, "e1")
	if got.CurrentParticipants != 50 {
		t.Errorf("CurrentParticipants = %d, want 50", got.CurrentParticipants)
	}
}

func TestMemoryEventRepo_DeleteEndedBefore(t *testing.T) {
	repo := NewMemoryEventRepo()
	ctx := context.Background()
	now := time.Now()

	old := newTestEvent("old", now.Add(-48*time.Hour))
	recent := newTestEvent("recent", now.Add(-1*time.Hour))
	future := newTestEvent("future", now.Add(24*time.Hour))
	for _, e := range []*model.Event{&old, &recent, &future} {
		repo.Create(ctx, e)
	}

	n, err := repo.DeleteEndedBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteEndedBefore error: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	count, _ := repo.Count(ctx)
	if count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}
	if got, _ := repo.FindByID(ctx, "future"); got == nil {
		t.Error("future event should still be indexed after delete")
	}
	if got, _ := repo.FindByID(ctx, "old"); got != nil {
		t.Error("old event should be removed")
	}
}
