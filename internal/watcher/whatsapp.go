package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hbashir/aide/internal/event"
)

// WhatsApp receives message records from an external bridge process over
// a websocket. The bridge pushes JSON frames; this source buffers them and
// hands them to the runner on Poll.
type WhatsApp struct {
	conn *websocket.Conn
	now  func() time.Time

	mu        sync.Mutex
	pending   []event.Record
	cancelRun context.CancelFunc
	closed    bool
}

type bridgeFrame struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	From     string `json:"from"`
	FromName string `json:"from_name"`
	Content  string `json:"content"`
}

// NewWhatsApp connects to the bridge at bridgeURL.
func NewWhatsApp(bridgeURL string) (*WhatsApp, error) {
	if bridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridge url is empty")
	}

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(bridgeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to whatsapp bridge: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &WhatsApp{conn: conn, now: time.Now, cancelRun: cancel}
	go w.listen(ctx)

	slog.Info("whatsapp bridge connected")
	return w, nil
}

func (w *WhatsApp) Name() string { return "whatsapp" }

// Poll drains the buffered message records.
func (w *WhatsApp) Poll(_ context.Context) ([]event.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	records := w.pending
	w.pending = nil
	return records, nil
}

// Close disconnects from the bridge.
func (w *WhatsApp) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.cancelRun != nil {
		w.cancelRun()
		w.cancelRun = nil
	}
	w.mu.Unlock()
	return w.conn.Close()
}

func (w *WhatsApp) listen(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			closed := w.closed
			w.mu.Unlock()
			if closed {
				return
			}
			slog.Warn("whatsapp bridge read failed", "error", err)
			time.Sleep(2 * time.Second)
			continue
		}

		var frame bridgeFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			slog.Warn("whatsapp bridge decode failed", "error", err)
			continue
		}
		if frame.Type != "message" || frame.From == "" || frame.Content == "" {
			continue
		}

		w.buffer(frame)
	}
}

func (w *WhatsApp) buffer(frame bridgeFrame) {
	id := frame.ID
	if id == "" {
		id = event.NewRequestID()
	}

	subject := frame.Content
	if runes := []rune(subject); len(runes) > 60 {
		subject = string(runes[:60]) + "..."
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	w.pending = append(w.pending, event.Record{
		ID:         id,
		Kind:       "whatsapp",
		Source:     "whatsapp_bridge",
		From:       frame.From,
		Subject:    subject,
		Body:       frame.Content,
		Payload:    map[string]any{"from_name": frame.FromName},
		ReceivedAt: w.now().UTC(),
	})
}
