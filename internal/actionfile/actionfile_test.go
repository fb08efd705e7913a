package actionfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hbashir/aide/internal/event"
)

func TestWriteThenParse(t *testing.T) {
	dir := t.TempDir()
	received := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	meta := FrontMatter{
		Type:     "email",
		Source:   "gmail",
		ID:       "msg-123",
		From:     "a@b.com",
		Subject:  "Invoice overdue",
		Priority: "high",
		Received: received,
		Status:   StatusPending,
	}
	path, err := Write(dir, meta, "# Email Content\n\nPlease pay.")
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if filepath.Base(path) != "EMAIL_msg-123.md" {
		t.Fatalf("unexpected file name %s", filepath.Base(path))
	}

	parsed, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if parsed.Meta.Type != "email" || parsed.Meta.ID != "msg-123" {
		t.Fatalf("front matter did not round-trip: %+v", parsed.Meta)
	}
	if parsed.Meta.From != "a@b.com" || parsed.Meta.Priority != "high" {
		t.Fatalf("front matter did not round-trip: %+v", parsed.Meta)
	}
	if !parsed.Meta.Received.Equal(received) {
		t.Fatalf("received did not round-trip: %s", parsed.Meta.Received)
	}
	if parsed.Meta.Status != StatusPending {
		t.Fatalf("unexpected status %q", parsed.Meta.Status)
	}
	if !strings.Contains(parsed.Body, "Please pay.") {
		t.Fatalf("body did not round-trip:\n%s", parsed.Body)
	}
}

func TestWrite_DefaultsStatusToPending(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(dir, FrontMatter{Type: "file_drop", ID: "report.pdf"}, "dropped file")
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	parsed, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if parsed.Meta.Status != StatusPending {
		t.Fatalf("expected pending status, got %q", parsed.Meta.Status)
	}
}

func TestWrite_RequiresTypeAndID(t *testing.T) {
	dir := t.TempDir()

	if _, err := Write(dir, FrontMatter{ID: "x"}, ""); err == nil {
		t.Fatal("expected error for missing type")
	}
	if _, err := Write(dir, FrontMatter{Type: "email"}, ""); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestFileName_SanitizesID(t *testing.T) {
	name := FileName("file_drop", "my report (v2).pdf")
	if name != "FILE_DROP_my-report--v2-.pdf.md" {
		t.Fatalf("unexpected name %q", name)
	}
	if strings.ContainsAny(name, "/\\ ()") {
		t.Fatalf("unsafe characters in %q", name)
	}
}

func TestParse_RejectsMissingFrontMatter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "TASK_1.md")
	if err := os.WriteFile(path, []byte("just a body"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	if _, err := Parse(path); err == nil {
		t.Fatal("expected error for missing front matter")
	}
}

func TestFromRecord(t *testing.T) {
	rec := event.Record{
		ID:         "w-1",
		Kind:       "whatsapp",
		Source:     "whatsapp_bridge",
		From:       "+123456",
		Subject:    "urgent request",
		ReceivedAt: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
	}

	meta := FromRecord(rec)
	if meta.Type != "whatsapp" || meta.ID != "w-1" || meta.Source != "whatsapp_bridge" {
		t.Fatalf("unexpected front matter: %+v", meta)
	}
	if meta.Priority != "normal" {
		t.Fatalf("expected default priority, got %q", meta.Priority)
	}
	if meta.Status != StatusPending {
		t.Fatalf("expected pending, got %q", meta.Status)
	}
}
