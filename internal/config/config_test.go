package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Approval.Workflow.TimeoutHours != 24 {
		t.Errorf("expected TimeoutHours=24, got %d", cfg.Approval.Workflow.TimeoutHours)
	}
	if cfg.Approval.Threshold.Amount != 100 {
		t.Errorf("expected Amount=100, got %f", cfg.Approval.Threshold.Amount)
	}
	if cfg.Approval.Audit.RetentionDays != 90 {
		t.Errorf("expected RetentionDays=90, got %d", cfg.Approval.Audit.RetentionDays)
	}
	if cfg.Gateway.Port != 18990 {
		t.Errorf("expected Port=18990, got %d", cfg.Gateway.Port)
	}
}

func TestLoadFromWritesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.Approval.Workflow.SweepIntervalMinutes != 5 {
		t.Fatalf("unexpected sweep interval %d", cfg.Approval.Workflow.SweepIntervalMinutes)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file written: %v", err)
	}
}

func TestLoadFromReadsSnakeCaseKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
  "approval": {
    "threshold": {"amount": 250, "new_recipients": false, "bulk_sends": 3},
    "workflow": {"timeout_hours": 48, "auto_reject_after_timeout": true},
    "notification": {"enabled": true, "methods": ["telegram", "webhook"]}
  },
  "gateway": {"port": 9000, "token": "secret"},
  "log": {"level": "DEBUG"}
}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.Approval.Threshold.Amount != 250 {
		t.Fatalf("expected amount 250, got %f", cfg.Approval.Threshold.Amount)
	}
	if cfg.Approval.Threshold.NewRecipients {
		t.Fatal("expected new_recipients=false")
	}
	if cfg.Approval.Workflow.TimeoutHours != 48 {
		t.Fatalf("expected timeout 48h, got %d", cfg.Approval.Workflow.TimeoutHours)
	}
	if cfg.Gateway.Port != 9000 || cfg.Gateway.Token != "secret" {
		t.Fatalf("gateway did not load: %+v", cfg.Gateway)
	}
	// Level normalizes to lowercase during validation.
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Log.Level)
	}
	if !cfg.NotificationMethodEnabled("telegram") || cfg.NotificationMethodEnabled("email") {
		t.Fatal("notification methods did not load")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateway.Port = 99999
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}

	cfg = DefaultConfig()
	cfg.Log.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}

	cfg = DefaultConfig()
	cfg.Approval.Notification.Methods = []string{"pager"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown notification method")
	}

	cfg = DefaultConfig()
	cfg.Approval.Workflow.TimeoutHours = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative timeout")
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := &Config{Gateway: GatewayConfig{Port: 18990}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if cfg.Approval.Workflow.TimeoutHours != 24 {
		t.Fatalf("expected default timeout, got %d", cfg.Approval.Workflow.TimeoutHours)
	}
	if cfg.Approval.Audit.RetentionDays != 90 {
		t.Fatalf("expected default retention, got %d", cfg.Approval.Audit.RetentionDays)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected default level, got %q", cfg.Log.Level)
	}
}

func TestVaultPathExpandsTilde(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vault.Path = "~/vault"

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := cfg.VaultPath(); got != filepath.Join(home, "vault") {
		t.Fatalf("unexpected vault path %q", got)
	}
}
