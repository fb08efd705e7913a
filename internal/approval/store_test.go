package approval

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_LoadMissingFileReturnsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "queue.json"))

	queue, err := store.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(queue) != 0 {
		t.Fatalf("expected empty queue, got %d entries", len(queue))
	}
}

func TestStore_SaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "queue.json")
	store := NewStore(path)

	created := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	queue := []Request{
		{
			ID:        "APR-1",
			Kind:      "email_send",
			Amount:    120.50,
			Recipient: "a@b.com",
			Payload:   map[string]any{"to": "a@b.com"},
			CreatedAt: created,
			ExpiresAt: created.Add(24 * time.Hour),
			Status:    StatusPending,
		},
		{
			ID:        "APR-2",
			Kind:      "post_publish",
			CreatedAt: created,
			ExpiresAt: created.Add(24 * time.Hour),
			Status:    StatusRejected,
			Rejecter:  "admin",
			Reason:    "hold off",
			DecidedAt: created.Add(time.Hour),
		},
	}
	if err := store.Save(queue); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(loaded))
	}
	if loaded[0].ID != "APR-1" || loaded[0].Status != StatusPending {
		t.Fatalf("first entry did not round-trip: %+v", loaded[0])
	}
	if !loaded[0].CreatedAt.Equal(created) {
		t.Fatalf("created_at did not round-trip: %s", loaded[0].CreatedAt)
	}
	if loaded[1].Rejecter != "admin" || loaded[1].Reason != "hold off" {
		t.Fatalf("second entry did not round-trip: %+v", loaded[1])
	}
}

func TestStore_LoadCorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	if _, err := NewStore(path).Load(); err == nil {
		t.Fatal("expected error for corrupt queue file")
	}
}

func TestStore_SaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")
	store := NewStore(path)

	if err := store.Save([]Request{{ID: "APR-1", Status: StatusPending}}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := store.Save([]Request{{ID: "APR-2", Status: StatusPending}}); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "APR-2" {
		t.Fatalf("expected overwritten queue, got %+v", loaded)
	}

	// No temp files left behind.
	matches, err := filepath.Glob(filepath.Join(dir, "queue-*.tmp"))
	if err != nil {
		t.Fatalf("Glob error: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no temp files, got %v", matches)
	}
}
