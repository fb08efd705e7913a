package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestLog(t *testing.T, retentionDays int) *Log {
	t.Helper()
	return NewLog(filepath.Join(t.TempDir(), "audit.json"), "approval_workflow", true, retentionDays)
}

func TestLog_RecordAppends(t *testing.T) {
	log := newTestLog(t, 90)
	fixedNow := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return fixedNow }

	if err := log.Record("approval_requested", map[string]any{"request_id": "r1"}); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := log.Record("approval_executed", map[string]any{"request_id": "r1"}); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	entries, err := log.Entries()
	if err != nil {
		t.Fatalf("Entries error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].EventType != "approval_requested" {
		t.Fatalf("unexpected first event type: %q", entries[0].EventType)
	}
	if entries[0].Source != "approval_workflow" {
		t.Fatalf("unexpected source: %q", entries[0].Source)
	}
	if entries[1].Details["request_id"] != "r1" {
		t.Fatalf("unexpected details: %v", entries[1].Details)
	}
}

func TestLog_RetentionPrunesOldEntries(t *testing.T) {
	log := newTestLog(t, 30)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	log.now = func() time.Time { return base.AddDate(0, 0, -40) }
	if err := log.Record("approval_requested", nil); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	log.now = func() time.Time { return base }
	if err := log.Record("approval_rejected", nil); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	entries, err := log.Entries()
	if err != nil {
		t.Fatalf("Entries error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after pruning, got %d", len(entries))
	}
	if entries[0].EventType != "approval_rejected" {
		t.Fatalf("expected surviving entry to be the new one, got %q", entries[0].EventType)
	}
}

func TestLog_RetentionBoundaryExclusive(t *testing.T) {
	log := newTestLog(t, 30)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Exactly retentionDays old: timestamp equals the cutoff, must be dropped.
	log.now = func() time.Time { return base.AddDate(0, 0, -30) }
	if err := log.Record("approval_requested", nil); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	log.now = func() time.Time { return base }
	if err := log.Record("approval_timeout", nil); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	entries, err := log.Entries()
	if err != nil {
		t.Fatalf("Entries error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected boundary entry to be pruned, got %d entries", len(entries))
	}
	if entries[0].EventType != "approval_timeout" {
		t.Fatalf("unexpected surviving entry: %q", entries[0].EventType)
	}
}

func TestLog_DisabledIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.json")
	log := NewLog(path, "approval_workflow", false, 90)

	if err := log.Record("approval_requested", nil); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	entries, err := log.Entries()
	if err != nil {
		t.Fatalf("Entries error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries for disabled log, got %d", len(entries))
	}
}
