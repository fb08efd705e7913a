package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileDrop_ReportsDroppedFiles(t *testing.T) {
	dir := t.TempDir()
	src, err := NewFileDrop(dir)
	if err != nil {
		t.Fatalf("NewFileDrop error: %v", err)
	}
	defer src.Close()

	if err := os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		records, err := src.Poll(context.Background())
		if err != nil {
			t.Fatalf("Poll error: %v", err)
		}
		if len(records) > 0 {
			rec := records[0]
			if rec.Kind != "file_drop" || rec.ID != "report.pdf" {
				t.Fatalf("unexpected record: %+v", rec)
			}
			if rec.Payload["path"] != filepath.Join(dir, "report.pdf") {
				t.Fatalf("unexpected payload: %v", rec.Payload)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for file drop event")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestFileDrop_IgnoresHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	src, err := NewFileDrop(dir)
	if err != nil {
		t.Fatalf("NewFileDrop error: %v", err)
	}
	defer src.Close()

	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	records, err := src.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected hidden file to be ignored, got %+v", records)
	}
}

func TestFileDrop_MissingDirErrors(t *testing.T) {
	if _, err := NewFileDrop(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing inbox dir")
	}
}
