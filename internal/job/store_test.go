package job

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestStore_Create(t *testing.T) {
	store := NewStore()

	j := store.Create([]WorkItem{
		{Platform: "instagram", Code: "abc123"},
		{Platform: "instagram", Code: "def456", Status: ItemSuccess},
	})

	if j.ID == (uuid.UUID{}) {
		t.Error("expected non-zero job ID")
	}
	if j.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, j.Status)
	}
	if j.Progress != 0 {
		t.Errorf("expected progress 0, got %d", j.Progress)
	}
	if len(j.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(j.Items))
	}
	// Item statuses are forced to waiting regardless of input.
	for i, item := range j.Items {
		if item.Status != ItemWaiting {
			t.Errorf("item %d: expected status %s, got %s", i, ItemWaiting, item.Status)
		}
	}
	if j.CreatedAt.IsZero() || j.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestStore_Get(t *testing.T) {
	store := NewStore()
	created := store.Create([]WorkItem{{Platform: "instagram", Code: "abc"}})

	got, ok := store.Get(created.ID)
	if !ok {
		t.Fatal("expected job to be found")
	}
	if got.ID != created.ID {
		t.Errorf("expected ID %s, got %s", created.ID, got.ID)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	store := NewStore()

	_, ok := store.Get(uuid.New())
	if ok {
		t.Error("expected unknown ID to not be found")
	}
}

func TestStore_Get_ReturnsClone(t *testing.T) {
	store := NewStore()
	created := store.Create([]WorkItem{{Platform: "instagram", Code: "abc"}})

	got, _ := store.Get(created.ID)
	got.Progress = 99
	got.Items[0].Status = ItemFailed
	got.Logs = append(got.Logs, LogEntry{Msg: "tampered"})

	original, _ := store.Get(created.ID)
	if original.Progress != 0 {
		t.Error("modifying returned job should not affect store")
	}
	if original.Items[0].Status != ItemWaiting {
		t.Error("modifying returned items should not affect store")
	}
	if len(original.Logs) != 0 {
		t.Error("modifying returned logs should not affect store")
	}
}

func TestStore_Apply(t *testing.T) {
	store := NewStore()
	created := store.Create([]WorkItem{{Platform: "instagram", Code: "abc"}})

	if err := store.Apply(created.ID, StatusPatch(StatusRunning)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Apply(created.ID, Patch{ProgressDelta: 50}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.Get(created.ID)
	if got.Status != StatusRunning {
		t.Errorf("expected status %s, got %s", StatusRunning, got.Status)
	}
	if got.Progress != 50 {
		t.Errorf("expected progress 50, got %d", got.Progress)
	}
}

func TestStore_Apply_NotFound(t *testing.T) {
	store := NewStore()

	err := store.Apply(uuid.New(), StatusPatch(StatusRunning))
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_ConcurrentPatches(t *testing.T) {
	store := NewStore()
	created := store.Create([]WorkItem{{Platform: "instagram", Code: "abc"}})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 10; k++ {
				_ = store.Apply(created.ID, Patch{ProgressDelta: 1})
				_, _ = store.Get(created.ID)
			}
		}()
	}
	wg.Wait()

	got, _ := store.Get(created.ID)
	if got.Progress != 100 {
		t.Errorf("expected progress 100 after 100 unit deltas, got %d", got.Progress)
	}
}
