package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hbashir/aide/internal/actionfile"
	"github.com/hbashir/aide/internal/vault"
)

func newTestService(t *testing.T) (*Service, *vault.Vault) {
	t.Helper()
	v := vault.New(t.TempDir())
	if err := v.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs error: %v", err)
	}
	svc := NewService(v, Config{Enabled: true, Interval: time.Minute})
	svc.now = func() time.Time { return time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC) }
	return svc, v
}

func writeTask(t *testing.T, v *vault.Vault, meta actionfile.FrontMatter, body string) string {
	t.Helper()
	path, err := actionfile.Write(v.Dir(vault.FolderNeedsAction), meta, body)
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	return path
}

func TestService_RunOnceCreatesPlanAndArchivesTask(t *testing.T) {
	svc, v := newTestService(t)
	writeTask(t, v, actionfile.FrontMatter{
		Type:    "email",
		Source:  "gmail",
		ID:      "msg-1",
		From:    "a@b.com",
		Subject: "Invoice overdue",
	}, "Please pay.")

	svc.RunOnce(context.Background())

	needsAction, err := v.Markdown(vault.FolderNeedsAction)
	if err != nil {
		t.Fatalf("Markdown error: %v", err)
	}
	if len(needsAction) != 0 {
		t.Fatalf("expected Needs_Action drained, got %v", needsAction)
	}

	done, err := v.Markdown(vault.FolderDone)
	if err != nil {
		t.Fatalf("Markdown error: %v", err)
	}
	if len(done) != 1 || filepath.Base(done[0]) != "EMAIL_msg-1.md" {
		t.Fatalf("expected task archived to Done, got %v", done)
	}

	plans, err := v.Markdown(vault.FolderPlans)
	if err != nil {
		t.Fatalf("Markdown error: %v", err)
	}
	if len(plans) != 1 || filepath.Base(plans[0]) != "PLAN_msg-1.md" {
		t.Fatalf("expected plan file, got %v", plans)
	}

	content, err := os.ReadFile(plans[0])
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	plan := string(content)
	for _, want := range []string{
		"task_type: email",
		"# Task Plan: Invoice overdue",
		"**From:** a@b.com",
		"## Action Plan",
		"## Approval Required",
	} {
		if !strings.Contains(plan, want) {
			t.Fatalf("plan missing %q:\n%s", want, plan)
		}
	}
}

func TestService_RunOnceLeavesBrokenTasksInPlace(t *testing.T) {
	svc, v := newTestService(t)

	broken := filepath.Join(v.Dir(vault.FolderNeedsAction), "TASK_broken.md")
	if err := os.WriteFile(broken, []byte("no front matter"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	writeTask(t, v, actionfile.FrontMatter{Type: "file_drop", ID: "report.pdf"}, "dropped")

	svc.RunOnce(context.Background())

	needsAction, err := v.Markdown(vault.FolderNeedsAction)
	if err != nil {
		t.Fatalf("Markdown error: %v", err)
	}
	if len(needsAction) != 1 || filepath.Base(needsAction[0]) != "TASK_broken.md" {
		t.Fatalf("expected broken task left behind, got %v", needsAction)
	}

	plans, err := v.Markdown(vault.FolderPlans)
	if err != nil {
		t.Fatalf("Markdown error: %v", err)
	}
	if len(plans) != 1 || filepath.Base(plans[0]) != "PLAN_report.pdf.md" {
		t.Fatalf("expected plan for healthy task, got %v", plans)
	}
}

func TestService_Health(t *testing.T) {
	svc, v := newTestService(t)
	writeTask(t, v, actionfile.FrontMatter{Type: "email", ID: "msg-1"}, "x")

	health, err := svc.Health()
	if err != nil {
		t.Fatalf("Health error: %v", err)
	}
	if health.Counts[vault.FolderNeedsAction] != 1 {
		t.Fatalf("unexpected counts: %v", health.Counts)
	}
	if health.Status != "healthy" {
		t.Fatalf("unexpected status %q", health.Status)
	}
}

func TestService_StartStop(t *testing.T) {
	svc, _ := newTestService(t)
	svc.cfg.Interval = 10 * time.Millisecond

	svc.Start()
	svc.Start() // no-op

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in time")
	}
	svc.Stop() // no-op
}

func TestPlanNameFor(t *testing.T) {
	cases := map[string]string{
		"FILE_report": "PLAN_report.md",
		"EMAIL_msg-1": "PLAN_msg-1.md",
		"noprefix":    "PLAN_noprefix.md",
		"_underscore": "PLAN__underscore.md",
		"A_B_C":       "PLAN_B_C.md",
	}
	for stem, want := range cases {
		if got := planNameFor(stem); got != want {
			t.Fatalf("planNameFor(%q) = %q, want %q", stem, got, want)
		}
	}
}
