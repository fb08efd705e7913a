package watcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

func startBridge(t *testing.T, frames []string) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// Keep the connection open until the client disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWhatsApp_BuffersBridgeMessages(t *testing.T) {
	url := startBridge(t, []string{
		`{"type":"message","id":"w-1","from":"+123456","from_name":"Ali","content":"need the report today"}`,
		`{"type":"status","id":"ignored"}`,
		`not json`,
	})

	src, err := NewWhatsApp(url)
	if err != nil {
		t.Fatalf("NewWhatsApp error: %v", err)
	}
	defer src.Close()

	deadline := time.Now().Add(3 * time.Second)
	for {
		records, err := src.Poll(context.Background())
		if err != nil {
			t.Fatalf("Poll error: %v", err)
		}
		if len(records) > 0 {
			if len(records) != 1 {
				t.Fatalf("expected only the message frame, got %d records", len(records))
			}
			rec := records[0]
			if rec.ID != "w-1" || rec.Kind != "whatsapp" || rec.From != "+123456" {
				t.Fatalf("unexpected record: %+v", rec)
			}
			if rec.Body != "need the report today" {
				t.Fatalf("unexpected body: %q", rec.Body)
			}
			if rec.Payload["from_name"] != "Ali" {
				t.Fatalf("unexpected payload: %v", rec.Payload)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for bridge message")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWhatsApp_TruncatesLongSubjects(t *testing.T) {
	long := strings.Repeat("a", 100)
	url := startBridge(t, []string{
		`{"type":"message","id":"w-2","from":"+1","content":"` + long + `"}`,
	})

	src, err := NewWhatsApp(url)
	if err != nil {
		t.Fatalf("NewWhatsApp error: %v", err)
	}
	defer src.Close()

	deadline := time.Now().Add(3 * time.Second)
	for {
		records, _ := src.Poll(context.Background())
		if len(records) > 0 {
			if got := records[0].Subject; len(got) != 63 || !strings.HasSuffix(got, "...") {
				t.Fatalf("unexpected subject %q", got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for bridge message")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWhatsApp_TruncatesOnRuneBoundary(t *testing.T) {
	w := &WhatsApp{now: time.Now}
	w.buffer(bridgeFrame{Type: "message", ID: "w-3", From: "+1", Content: strings.Repeat("ü", 100)})

	if len(w.pending) != 1 {
		t.Fatalf("expected 1 buffered record, got %d", len(w.pending))
	}
	got := w.pending[0].Subject
	if !utf8.ValidString(got) {
		t.Fatalf("subject is not valid UTF-8: %q", got)
	}
	if n := len([]rune(got)); n != 63 {
		t.Fatalf("expected 63 runes, got %d", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}

func TestWhatsApp_EmptyURLErrors(t *testing.T) {
	if _, err := NewWhatsApp(""); err == nil {
		t.Fatal("expected error for empty bridge url")
	}
}
