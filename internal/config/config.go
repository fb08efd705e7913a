package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration
type Config struct {
	Approval     ApprovalConfig     `mapstructure:"approval"`
	Vault        VaultConfig        `mapstructure:"vault"`
	Watchers     WatchersConfig     `mapstructure:"watchers"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	Log          LogConfig          `mapstructure:"log"`
}

// ApprovalConfig approval workflow settings
type ApprovalConfig struct {
	Threshold    ThresholdConfig    `mapstructure:"threshold"`
	Notification NotificationConfig `mapstructure:"notification"`
	Workflow     WorkflowConfig     `mapstructure:"workflow"`
	Audit        AuditConfig        `mapstructure:"audit"`
}

// ThresholdConfig sensitivity gates that force approval
type ThresholdConfig struct {
	Amount        float64 `mapstructure:"amount"`
	NewRecipients bool    `mapstructure:"new_recipients"`
	BulkSends     int     `mapstructure:"bulk_sends"`
}

// NotificationConfig approval notification channels
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Methods  []string       `mapstructure:"methods"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Email    EmailConfig    `mapstructure:"email"`
}

// TelegramConfig telegram bot settings
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// WebhookConfig webhook notification settings
type WebhookConfig struct {
	URL string `mapstructure:"url"`
}

// EmailConfig smtp notification settings
type EmailConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// WorkflowConfig approval lifecycle timing
type WorkflowConfig struct {
	TimeoutHours           int  `mapstructure:"timeout_hours"`
	EscalationHours        int  `mapstructure:"escalation_hours"`
	AutoRejectAfterTimeout bool `mapstructure:"auto_reject_after_timeout"`
	SweepIntervalMinutes   int  `mapstructure:"sweep_interval_minutes"`
}

// AuditConfig audit trail settings
type AuditConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	RetentionDays int  `mapstructure:"retention_days"`
}

// VaultConfig markdown workspace settings
type VaultConfig struct {
	Path string `mapstructure:"path"`
}

// WatchersConfig activity source settings
type WatchersConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Interval          int    `mapstructure:"interval"` // seconds
	Inbox             string `mapstructure:"inbox"`
	WhatsAppBridgeURL string `mapstructure:"whatsapp_bridge_url"`
}

// OrchestratorConfig task processing settings
type OrchestratorConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Interval int  `mapstructure:"interval"` // seconds
}

// SchedulerConfig scheduled job settings
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// GatewayConfig server settings
type GatewayConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Token string `mapstructure:"token"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to resolve home directory, using current directory as fallback", "error", err)
		homeDir = "."
	}
	return &Config{
		Approval: ApprovalConfig{
			Threshold: ThresholdConfig{
				Amount:        100,
				NewRecipients: true,
				BulkSends:     5,
			},
			Notification: NotificationConfig{
				Enabled: true,
				Methods: []string{},
			},
			Workflow: WorkflowConfig{
				TimeoutHours:           24,
				EscalationHours:        12,
				AutoRejectAfterTimeout: true,
				SweepIntervalMinutes:   5,
			},
			Audit: AuditConfig{
				Enabled:       true,
				RetentionDays: 90,
			},
		},
		Vault: VaultConfig{
			Path: filepath.Join(homeDir, ".aide", "vault"),
		},
		Watchers: WatchersConfig{
			Enabled:  true,
			Interval: 60,
			Inbox:    filepath.Join(homeDir, ".aide", "inbox"),
		},
		Orchestrator: OrchestratorConfig{
			Enabled:  true,
			Interval: 30,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
		},
		Gateway: GatewayConfig{
			Host:  "127.0.0.1",
			Port:  18990,
			Token: "",
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigDir returns the aide config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".aide")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads config from an explicit path, writing defaults on first run.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(configPath, cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("AIDE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to the default path
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo saves config to an explicit path
func SaveTo(configPath string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	a := &c.Approval

	if a.Threshold.Amount < 0 {
		return fmt.Errorf("approval.threshold.amount must not be negative, got %f", a.Threshold.Amount)
	}
	if a.Threshold.BulkSends < 0 {
		return fmt.Errorf("approval.threshold.bulk_sends must not be negative, got %d", a.Threshold.BulkSends)
	}

	for _, method := range a.Notification.Methods {
		switch strings.ToLower(strings.TrimSpace(method)) {
		case "telegram", "webhook", "email":
		default:
			return fmt.Errorf("approval.notification.methods must contain only telegram, webhook, email; got %q", method)
		}
	}

	if a.Workflow.TimeoutHours < 0 {
		return fmt.Errorf("approval.workflow.timeout_hours must not be negative, got %d", a.Workflow.TimeoutHours)
	}
	if a.Workflow.TimeoutHours == 0 {
		a.Workflow.TimeoutHours = 24
	}
	if a.Workflow.EscalationHours < 0 {
		return fmt.Errorf("approval.workflow.escalation_hours must not be negative, got %d", a.Workflow.EscalationHours)
	}
	if a.Workflow.EscalationHours == 0 {
		a.Workflow.EscalationHours = 12
	}
	if a.Workflow.SweepIntervalMinutes < 0 {
		return fmt.Errorf("approval.workflow.sweep_interval_minutes must not be negative, got %d", a.Workflow.SweepIntervalMinutes)
	}
	if a.Workflow.SweepIntervalMinutes == 0 {
		a.Workflow.SweepIntervalMinutes = 5
	}

	if a.Audit.RetentionDays < 0 {
		return fmt.Errorf("approval.audit.retention_days must not be negative, got %d", a.Audit.RetentionDays)
	}
	if a.Audit.RetentionDays == 0 {
		a.Audit.RetentionDays = 90
	}

	if c.Watchers.Interval < 0 {
		return fmt.Errorf("watchers.interval must not be negative, got %d", c.Watchers.Interval)
	}
	if c.Watchers.Interval == 0 {
		c.Watchers.Interval = 60
	}
	if c.Orchestrator.Interval < 0 {
		return fmt.Errorf("orchestrator.interval must not be negative, got %d", c.Orchestrator.Interval)
	}
	if c.Orchestrator.Interval == 0 {
		c.Orchestrator.Interval = 30
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	return nil
}

// VaultPath returns the expanded vault path.
func (c *Config) VaultPath() string {
	path := strings.TrimSpace(c.Vault.Path)
	if path == "" {
		return filepath.Join(ConfigDir(), "vault")
	}
	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(ConfigDir(), "vault")
		}
		rest := strings.TrimPrefix(path[1:], string(filepath.Separator))
		rest = strings.TrimPrefix(rest, "/")
		return filepath.Join(homeDir, rest)
	}
	return path
}

// NotificationMethodEnabled reports whether a channel is in the methods list.
func (c *Config) NotificationMethodEnabled(method string) bool {
	if !c.Approval.Notification.Enabled {
		return false
	}
	for _, m := range c.Approval.Notification.Methods {
		if strings.EqualFold(strings.TrimSpace(m), method) {
			return true
		}
	}
	return false
}
