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

func TestMemoryActivityRepo_AppendAndList(t *testing.T) {
	repo := NewMemoryActivityRepo()
	ctx := context.Background()

	for _, id := range []string{"a1", "a2"} {
		a := &model.UserActivity{
			ID:       id,
			UserID:   "user-1",
			Event:    newTestEvent("e-"+id, time.Now()),
			Status:   model.ActivityStatusGoing,
			JoinDate: time.Now(),
		}
		if err := repo.Append(ctx, a); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}
	repo.Append(ctx, &model.UserActivity{ID: "other", UserID: "user-2"})

	got, err := repo.ListByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUserID error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a1" || got[1].ID != "a2" {
		t.Fatalf("ListByUserID = %+v, want [a1 a2]", got)
	}

	got[0].Event.Coordinates.Latitude = 0
	again, _ := repo.ListByUserID(ctx, "user-1")
	if again[0].Event.Coordinates.Latitude == 0 {
		t.Error("snapshot coordinates should not be shared with caller")
	}

	if err := repo.DeleteByUserID(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteByUserID error: %v", err)
	}
	if got, _ := repo.ListByUserID(ctx, "user-1"); len(got) != 0 {
		t.Errorf("expected no activities after delete, got %d", len(got))
	}
	if got, _ := repo.ListByUserID(ctx, "user-2"); len(got) != 1 {
		t.Errorf("other user's activities should remain, got %d", len(got))
	}
}

func TestMemoryUserRepo_SaveFindDelete(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	user := &model.User{
		ID:        "user-1",
		Name:      "Aisha",
		Email:     "aisha@example.com",
		Interests: []model.SportCategory{model.CategoryYoga},
	}
	if err := repo.Save(ctx, user); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	user.Interests[0] = model.CategoryGym

	got, err := repo.FindByID(ctx, "user-1")
	if err != nil || got == nil {
		t.Fatalf("FindByID = %v, %v", got, err)
	}
	if diff := cmp.Diff([]model.SportCategory{model.CategoryYoga}, got.Interests); diff != "" {
		t.Errorf("Interests mismatch (-want +got):\n%s", diff)
	}

	if err := repo.DeleteByID(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteByID error: %v", err)
	}
	if got, _ := repo.FindByID(ctx, "user-1"); got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
	if err := repo.DeleteByID(ctx, "user-1"); err != nil {
		t.Errorf("deleting a missing user should not fail: %v", err)
	}
}

func TestMemoryUserRepo_IncrementEventsJoined(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()
	repo.Save(ctx, &model.User{ID: "user-1", Name: "Aisha", TotalEventsJoined: 2})

	const joins = 50
	var wg sync.WaitGroup
	for range joins {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.IncrementEventsJoined(ctx, "user-1"); err != nil {
				t.Errorf("IncrementEventsJoined error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := repo.FindByID(ctx, "user-1")
	if got.TotalEventsJoined != 2+joins {
		t.Errorf("TotalEventsJoined = %d, want %d", got.TotalEventsJoined, 2+joins)
	}
	if got.Name != "Aisha" {
		t.Errorf("other fields should be kept, got %+v", got)
	}

	if err := repo.IncrementEventsJoined(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("IncrementEventsJoined(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryPreferenceStore(t *testing.T) {
	store := NewMemoryPreferenceStore()
	ctx := context.Background()

	if _, found, err := store.Get(ctx, "c1", "k"); err != nil || found {
		t.Fatalf("Get on empty store = found %v, err %v", found, err)
	}

	store.Set(ctx, "c1", "k", []byte("v1"))
	store.Set(ctx, "c1", "other", []byte("x"))
	store.Set(ctx, "c2", "k", []byte("v2"))

	v, found, _ := store.Get(ctx, "c1", "k")
	if !found || string(v) != "v1" {
		t.Errorf("Get(c1,k) = %q, %v", v, found)
	}

	store.Delete(ctx, "c1", "k")
	if _, found, _ := store.Get(ctx, "c1", "k"); found {
		t.Error("c1/k should be deleted")
	}
	if _, found, _ := store.Get(ctx, "c1", "other"); !found {
		t.Error("c1/other should remain")
	}

	store.DeleteClient(ctx, "c1")
	if _, found, _ := store.Get(ctx, "c1", "other"); found {
		t.Error("c1 values should be removed by DeleteClient")
	}
	if _, found, _ := store.Get(ctx, "c2", "k"); !found {
		t.Error("c2 values should remain")
	}
}
