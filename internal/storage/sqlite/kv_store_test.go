package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/playground/internal/domain"
	"github.com/felixgeelhaar/playground/internal/storage"
)

func TestKVStore_Put_Get(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(openTestDB(t))

	if err := store.Put(ctx, "level1Progress", []byte(`{"levelNumber":1}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "level1Progress")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"levelNumber":1}` {
		t.Errorf("Get() = %q", got)
	}
}

func TestKVStore_Put_Overwrites(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(openTestDB(t))

	store.Put(ctx, "totalProgress", []byte("10"))
	if err := store.Put(ctx, "totalProgress", []byte("20")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, _ := store.Get(ctx, "totalProgress")
	if string(got) != "20" {
		t.Errorf("Get() = %q; want 20", got)
	}
}

func TestKVStore_Get_NotFound(t *testing.T) {
	store := NewKVStore(openTestDB(t))

	_, err := store.Get(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v; want ErrNotFound", err)
	}
}

func TestKVStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(openTestDB(t))
	store.Put(ctx, "to-delete", []byte("1"))

	if err := store.Delete(ctx, "to-delete"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "to-delete"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete() error = %v; want ErrNotFound", err)
	}
}

func TestKVStore_Keys(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(openTestDB(t))
	for _, k := range []string{"level2Progress", "completedLevels", "level1Progress"} {
		store.Put(ctx, k, []byte("{}"))
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	want := []string{"completedLevels", "level1Progress", "level2Progress"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v; want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q; want %q", i, keys[i], want[i])
		}
	}
}

func TestKVStore_AdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter := storage.NewAdapter(NewKVStore(openTestDB(t)))

	want := domain.LevelProgress{
		LevelNumber: 2,
		Exercises: []domain.ExerciseRecord{
			{ID: 1, Name: "GET handler", Completed: true},
			{ID: 2, Name: "POST handler"},
		},
		Metrics: map[string]any{"requests": 120},
	}
	if err := adapter.Save(ctx, domain.ProgressKey(2), want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var got domain.LevelProgress
	if !adapter.Load(ctx, domain.ProgressKey(2), &got) {
		t.Fatal("Load() = false; want true")
	}
	if got.LevelNumber != 2 || len(got.Exercises) != 2 || !got.Exercises[0].Completed {
		t.Errorf("Load() = %+v", got)
	}
	if got.Metrics["requests"] != 120 {
		t.Errorf("Metrics[requests] = %v; want 120", got.Metrics["requests"])
	}
}
