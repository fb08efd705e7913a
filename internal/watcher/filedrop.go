package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hbashir/aide/internal/event"
)

// FileDrop watches an inbox directory and reports files dropped into it.
// Events arrive from fsnotify on a background goroutine and are buffered
// until the next Poll.
type FileDrop struct {
	dir     string
	watcher *fsnotify.Watcher
	now     func() time.Time

	mu      sync.Mutex
	pending []event.Record
	closed  bool
}

// NewFileDrop starts watching dir for new files.
func NewFileDrop(dir string) (*FileDrop, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create inbox watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch inbox %s: %w", dir, err)
	}

	f := &FileDrop{dir: dir, watcher: w, now: time.Now}
	go f.listen()
	return f, nil
}

func (f *FileDrop) Name() string { return "filedrop" }

// Poll drains the buffered file-drop records.
func (f *FileDrop) Poll(_ context.Context) ([]event.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records := f.pending
	f.pending = nil
	return records, nil
}

// Close stops the underlying filesystem watcher.
func (f *FileDrop) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return f.watcher.Close()
}

func (f *FileDrop) listen() {
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") {
				continue
			}
			f.buffer(name)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("inbox watcher error", "error", err)
		}
	}
}

func (f *FileDrop) buffer(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	f.pending = append(f.pending, event.Record{
		ID:         name,
		Kind:       "file_drop",
		Source:     "filedrop",
		Subject:    name,
		Body:       fmt.Sprintf("The file %q was dropped into %s and needs to be handled.", name, f.dir),
		Payload:    map[string]any{"path": filepath.Join(f.dir, name)},
		ReceivedAt: f.now().UTC(),
	})
}
