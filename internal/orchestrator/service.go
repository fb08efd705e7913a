// Package orchestrator turns action files in Needs_Action into plan files
// and moves processed tasks to Done.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hbashir/aide/internal/actionfile"
	"github.com/hbashir/aide/internal/vault"
)

const defaultInterval = 30 * time.Second

// Config controls the orchestrator loop.
type Config struct {
	Enabled  bool
	Interval time.Duration
}

// Service is the task processing loop over the vault.
type Service struct {
	vlt *vault.Vault
	cfg Config

	now func() time.Time

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped chan struct{}
	running bool
}

// NewService creates the orchestrator over the given vault.
func NewService(vlt *vault.Vault, cfg Config) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Service{vlt: vlt, cfg: cfg, now: time.Now}
}

// Start launches the processing loop.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.stopped = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	go s.loop()
	slog.Info("orchestrator started", "interval", s.cfg.Interval.String())
}

// Stop signals the loop and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	<-s.stopped
	slog.Info("orchestrator stopped")
}

func (s *Service) loop() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce processes every task currently in Needs_Action. A failing task is
// logged and left in place for the next pass.
func (s *Service) RunOnce(_ context.Context) {
	tasks, err := s.vlt.Markdown(vault.FolderNeedsAction)
	if err != nil {
		slog.Warn("failed to list tasks", "error", err)
		return
	}
	if len(tasks) > 0 {
		slog.Info("processing tasks", "count", len(tasks))
	}

	for _, task := range tasks {
		if err := s.processTask(task); err != nil {
			slog.Warn("task processing failed", "task", filepath.Base(task), "error", err)
			continue
		}
		if _, err := s.vlt.Move(task, vault.FolderDone); err != nil {
			slog.Warn("failed to archive task", "task", filepath.Base(task), "error", err)
		}
	}
}

// processTask writes PLAN_<stem>.md into Plans for one action file.
func (s *Service) processTask(path string) error {
	parsed, err := actionfile.Parse(path)
	if err != nil {
		return err
	}

	stem := strings.TrimSuffix(filepath.Base(path), ".md")
	planName := planNameFor(stem)
	planPath := filepath.Join(s.vlt.Dir(vault.FolderPlans), planName)

	content, err := renderPlan(planInput{
		Stem:     stem,
		TaskFile: filepath.Base(path),
		Meta:     parsed.Meta,
		Now:      s.now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(planPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write plan %s: %w", planName, err)
	}

	slog.Info("plan created", "plan", planName, "task", filepath.Base(path))
	return nil
}

// planNameFor maps an action file stem to its plan file name. A leading
// type prefix is replaced so FILE_report becomes PLAN_report.
func planNameFor(stem string) string {
	if i := strings.Index(stem, "_"); i > 0 {
		return "PLAN_" + stem[i+1:] + ".md"
	}
	return "PLAN_" + stem + ".md"
}

// Health reports the current vault folder counts.
func (s *Service) Health() (vault.Health, error) {
	return s.vlt.CheckHealth(s.now().UTC())
}
