package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hbashir/aide/internal/actionfile"
	"github.com/hbashir/aide/internal/event"
	"github.com/hbashir/aide/internal/vault"
)

const (
	defaultInterval = 60 * time.Second

	processedFileName = "processed_events.txt"
)

// Runner polls every registered source on a fixed interval and writes an
// action file into Needs_Action for each record not seen before.
type Runner struct {
	vlt      *vault.Vault
	sources  []Source
	interval time.Duration
	seen     *seenSet

	now func() time.Time

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped chan struct{}
	running bool
}

// NewRunner creates a runner over the given sources. The processed-ids file
// lives at the vault root.
func NewRunner(vlt *vault.Vault, sources []Source, interval time.Duration) (*Runner, error) {
	if interval <= 0 {
		interval = defaultInterval
	}

	seen, err := loadSeenSet(filepath.Join(vlt.Path(), processedFileName))
	if err != nil {
		return nil, err
	}

	return &Runner{
		vlt:      vlt,
		sources:  sources,
		interval: interval,
		seen:     seen,
		now:      time.Now,
	}, nil
}

// Start launches the poll loop.
func (r *Runner) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.stopCh = make(chan struct{})
	r.stopped = make(chan struct{})
	r.running = true
	r.mu.Unlock()

	go r.loop()

	names := make([]string, len(r.sources))
	for i, src := range r.sources {
		names[i] = src.Name()
	}
	slog.Info("watchers started", "sources", strings.Join(names, ","), "interval", r.interval.String())
}

// Stop signals the loop and waits for it to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	<-r.stopped
	slog.Info("watchers stopped")
}

func (r *Runner) loop() {
	defer close(r.stopped)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.RunOnce(context.Background())
		}
	}
}

// RunOnce polls every source a single time. Source failures are logged and
// do not stop the remaining sources.
func (r *Runner) RunOnce(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dirty := false
	for _, src := range r.sources {
		records, err := src.Poll(ctx)
		if err != nil {
			slog.Warn("source poll failed", "source", src.Name(), "error", err)
			continue
		}
		for _, rec := range records {
			if r.seen.has(rec.Key()) {
				continue
			}
			if err := r.writeActionFile(rec); err != nil {
				slog.Warn("failed to write action file",
					"source", src.Name(), "record", rec.Key(), "error", err)
				continue
			}
			r.seen.add(rec.Key())
			dirty = true
			slog.Info("action file created", "source", src.Name(), "kind", rec.Kind, "id", rec.ID)
		}
	}

	if dirty {
		if err := r.seen.save(); err != nil {
			slog.Warn("failed to persist processed ids", "error", err)
		}
	}
}

func (r *Runner) writeActionFile(rec event.Record) error {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = r.now().UTC()
	}
	meta := actionfile.FromRecord(rec)
	_, err := actionfile.Write(r.vlt.Dir(vault.FolderNeedsAction), meta, recordBody(rec))
	return err
}

// recordBody builds the markdown body with the record content and a
// review checklist.
func recordBody(rec event.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", titleFor(rec))
	if rec.Body != "" {
		b.WriteString(rec.Body)
		b.WriteString("\n\n")
	}

	b.WriteString("# Suggested Actions\n\n")
	b.WriteString("- [ ] Review the content\n")
	b.WriteString("- [ ] Determine appropriate response\n")
	b.WriteString("- [ ] Take required action\n")
	b.WriteString("- [ ] Move to appropriate folder after processing\n")

	if rec.From != "" || rec.Subject != "" {
		b.WriteString("\n# Details\n\n")
		if rec.From != "" {
			fmt.Fprintf(&b, "**From:** %s\n", rec.From)
		}
		if rec.Subject != "" {
			fmt.Fprintf(&b, "**Subject:** %s\n", rec.Subject)
		}
		fmt.Fprintf(&b, "**Source:** %s\n", rec.Source)
	}

	return b.String()
}

func titleFor(rec event.Record) string {
	if rec.Subject != "" {
		return rec.Subject
	}
	title := strings.ReplaceAll(rec.Kind, "_", " ")
	if title == "" {
		return "Incoming Item"
	}
	return strings.ToUpper(title[:1]) + title[1:]
}
