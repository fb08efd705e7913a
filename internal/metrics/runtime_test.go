package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRuntimeMetrics_AggregatesExecutorAndNotifyStats(t *testing.T) {
	stateDir := t.TempDir()
	recorder := NewRuntimeMetrics(stateDir)

	snap, err := recorder.RecordExecution(120*time.Millisecond, false, "")
	if err != nil {
		t.Fatalf("RecordExecution success error: %v", err)
	}
	if snap.Executor.Total != 1 || snap.Executor.Errors != 0 || snap.Executor.Timeouts != 0 {
		t.Fatalf("unexpected first executor snapshot: %+v", snap.Executor)
	}

	_, _ = recorder.RecordExecution(250*time.Millisecond, true, "send email: connection refused")
	_, _ = recorder.RecordExecution(2*time.Second, true, "context deadline exceeded")
	snap, _ = recorder.RecordExecution(1500*time.Millisecond, true, "request timed out")

	if snap.Executor.Total != 4 {
		t.Fatalf("expected 4 executions, got %d", snap.Executor.Total)
	}
	if snap.Executor.Errors != 3 {
		t.Fatalf("expected 3 errors, got %d", snap.Executor.Errors)
	}
	if snap.Executor.Timeouts != 2 {
		t.Fatalf("expected 2 timeouts, got %d", snap.Executor.Timeouts)
	}
	if got := snap.Executor.ErrorRatio(); got < 0.74 || got > 0.76 {
		t.Fatalf("expected error ratio about 0.75, got %.4f", got)
	}
	if snap.Executor.MaxLatencyMs != 2000 {
		t.Fatalf("expected max latency 2000ms, got %d", snap.Executor.MaxLatencyMs)
	}
	if snap.Executor.LastLatencyMs != 1500 {
		t.Fatalf("expected last latency 1500ms, got %d", snap.Executor.LastLatencyMs)
	}

	snap, err = recorder.RecordNotification(true)
	if err != nil {
		t.Fatalf("RecordNotification error: %v", err)
	}
	snap, _ = recorder.RecordNotification(false)

	if snap.Notify.SendAttempts != 2 || snap.Notify.SendFailures != 1 {
		t.Fatalf("unexpected notify snapshot: %+v", snap.Notify)
	}
	if got := snap.Notify.FailureRatio(); got != 0.5 {
		t.Fatalf("expected failure ratio 0.5, got %.4f", got)
	}
	if !snap.HasData() {
		t.Fatal("expected HasData true")
	}
}

func TestRuntimeMetrics_PersistsAcrossReads(t *testing.T) {
	stateDir := t.TempDir()
	recorder := NewRuntimeMetrics(stateDir)

	if _, err := recorder.RecordExecution(50*time.Millisecond, false, ""); err != nil {
		t.Fatalf("RecordExecution: %v", err)
	}

	if _, err := os.Stat(filepath.Join(stateDir, "runtime_metrics.json")); err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}

	snap, err := ReadRuntimeSnapshot(stateDir)
	if err != nil {
		t.Fatalf("ReadRuntimeSnapshot: %v", err)
	}
	if snap.Executor.Total != 1 {
		t.Fatalf("expected 1 persisted execution, got %d", snap.Executor.Total)
	}
}

func TestReadRuntimeSnapshot_MissingFile(t *testing.T) {
	snap, err := ReadRuntimeSnapshot(t.TempDir())
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if snap.HasData() {
		t.Fatal("expected empty snapshot")
	}
}

func TestP95ProxyFromBuckets(t *testing.T) {
	recorder := NewRuntimeMetrics(t.TempDir())

	// 19 of 20 executions land in the fastest bucket, so the p95 proxy is
	// that bucket's upper bound.
	var snap RuntimeSnapshot
	for i := 0; i < 19; i++ {
		snap, _ = recorder.RecordExecution(5*time.Millisecond, false, "")
	}
	snap, _ = recorder.RecordExecution(900*time.Millisecond, false, "")

	if snap.Executor.P95ProxyLatencyMs != 10 {
		t.Fatalf("expected p95 proxy 10ms, got %d", snap.Executor.P95ProxyLatencyMs)
	}
}
