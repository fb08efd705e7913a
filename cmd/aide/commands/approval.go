package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hbashir/aide/internal/approval"
	"github.com/hbashir/aide/internal/audit"
	"github.com/hbashir/aide/internal/config"
	"github.com/hbashir/aide/internal/executor"
	"github.com/hbashir/aide/internal/metrics"
	"github.com/hbashir/aide/internal/notify"
	"github.com/hbashir/aide/internal/vault"
	"github.com/spf13/cobra"
)

func NewApprovalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Manage approval requests",
	}

	cmd.AddCommand(
		newApprovalListCmd(),
		newApprovalApproveCmd(),
		newApprovalRejectCmd(),
		newApprovalHistoryCmd(),
	)

	return cmd
}

func newApprovalListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending approval requests",
		RunE:  runApprovalList,
	}
}

func newApprovalApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending request and execute its action",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalApprove,
	}
	cmd.Flags().String("by", "", "Decision maker")
	cmd.Flags().String("note", "", "Decision note")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func newApprovalRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalReject,
	}
	cmd.Flags().String("by", "", "Decision maker")
	cmd.Flags().String("reason", "", "Rejection reason")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func newApprovalHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent approval requests including resolved ones",
		RunE:  runApprovalHistory,
	}
	cmd.Flags().Int("limit", 20, "Maximum entries to show")
	return cmd
}

func runApprovalList(cmd *cobra.Command, args []string) error {
	eng, err := loadApprovalEngine()
	if err != nil {
		return err
	}

	pending := eng.Pending()
	if len(pending) == 0 {
		fmt.Println("No pending approvals.")
		return nil
	}

	for _, req := range pending {
		desc := req.Description
		if desc == "" {
			desc = "-"
		}
		fmt.Printf("%s  %-12s  expires %s  %s\n",
			req.ID, req.Kind, req.ExpiresAt.Local().Format("2006-01-02 15:04"), desc)
	}
	return nil
}

func runApprovalApprove(cmd *cobra.Command, args []string) error {
	eng, err := loadApprovalEngine()
	if err != nil {
		return err
	}

	by, _ := cmd.Flags().GetString("by")
	note, _ := cmd.Flags().GetString("note")
	if strings.TrimSpace(by) == "" {
		return fmt.Errorf("--by is required")
	}

	req, result, err := eng.Approve(cmd.Context(), args[0], by, note)
	if err != nil {
		return err
	}

	fmt.Printf("Approval %s approved by %s.\n", req.ID, req.Approver)
	fmt.Printf("Execution: %s", result.Status)
	if result.Message != "" {
		fmt.Printf(" (%s)", result.Message)
	}
	fmt.Println()
	return nil
}

func runApprovalReject(cmd *cobra.Command, args []string) error {
	eng, err := loadApprovalEngine()
	if err != nil {
		return err
	}

	by, _ := cmd.Flags().GetString("by")
	reason, _ := cmd.Flags().GetString("reason")
	if strings.TrimSpace(by) == "" {
		return fmt.Errorf("--by is required")
	}

	req, err := eng.Reject(args[0], by, reason)
	if err != nil {
		return err
	}

	fmt.Printf("Approval %s rejected by %s.\n", req.ID, req.Rejecter)
	return nil
}

func runApprovalHistory(cmd *cobra.Command, args []string) error {
	eng, err := loadApprovalEngine()
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	history := eng.History(limit)
	if len(history) == 0 {
		fmt.Println("No approval history.")
		return nil
	}

	for _, req := range history {
		decided := "-"
		if !req.DecidedAt.IsZero() {
			decided = req.DecidedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%s  %-12s  %-8s  decided %s\n", req.ID, req.Kind, req.Status, decided)
	}
	return nil
}

// loadApprovalEngine builds the engine the way the daemon does, minus the
// background sweep, so one-off CLI decisions run the same executors and
// write the same audit trail.
func loadApprovalEngine() (*approval.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return buildApprovalEngine(cfg)
}

func buildApprovalEngine(cfg *config.Config) (*approval.Engine, error) {
	store := approval.NewStore(approvalQueuePath())
	auditLog := audit.NewLog(auditLogPath(), "aide",
		cfg.Approval.Audit.Enabled, cfg.Approval.Audit.RetentionDays)
	recorder := metrics.NewRuntimeMetrics(stateDirPath())

	vlt := vault.New(cfg.VaultPath())
	registry, err := buildExecutors(cfg, vlt, recorder)
	if err != nil {
		return nil, err
	}

	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		return nil, err
	}
	for i, n := range notifiers {
		notifiers[i] = meteredNotifier{Notifier: n, rec: recorder}
	}

	return approval.NewEngine(store, registry, auditLog, notifiers, approval.Config{
		Timeout:                time.Duration(cfg.Approval.Workflow.TimeoutHours) * time.Hour,
		EscalationAfter:        time.Duration(cfg.Approval.Workflow.EscalationHours) * time.Hour,
		AutoRejectAfterTimeout: cfg.Approval.Workflow.AutoRejectAfterTimeout,
		SweepInterval:          time.Duration(cfg.Approval.Workflow.SweepIntervalMinutes) * time.Minute,
		Thresholds: approval.Thresholds{
			Amount:        cfg.Approval.Threshold.Amount,
			NewRecipients: cfg.Approval.Threshold.NewRecipients,
			BulkSends:     cfg.Approval.Threshold.BulkSends,
		},
	})
}

// buildExecutors registers the action kinds the engine can carry out once a
// request is approved. Every executor is instrumented so runs show up in the
// runtime metrics.
func buildExecutors(cfg *config.Config, vlt *vault.Vault, recorder *metrics.RuntimeMetrics) (*executor.Registry, error) {
	registry := executor.NewRegistry()

	if err := registry.Register("post_publish", instrumentExecutor(recorder, postPublishExecutor(vlt))); err != nil {
		return nil, err
	}

	email := cfg.Approval.Notification.Email
	if strings.TrimSpace(email.Host) != "" {
		addr := fmt.Sprintf("%s:%d", email.Host, email.Port)
		sender, err := notify.NewEmail(addr, email.User, email.Pass, email.From, email.To)
		if err != nil {
			return nil, fmt.Errorf("invalid email config: %w", err)
		}
		if err := registry.Register("email_send", instrumentExecutor(recorder, emailSendExecutor(sender))); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func buildNotifiers(cfg *config.Config) ([]approval.Notifier, error) {
	var notifiers []approval.Notifier

	if cfg.NotificationMethodEnabled("telegram") {
		tg, err := notify.NewTelegram(cfg.Approval.Notification.Telegram.Token,
			cfg.Approval.Notification.Telegram.ChatID)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram config: %w", err)
		}
		notifiers = append(notifiers, tg)
	}

	if cfg.NotificationMethodEnabled("webhook") {
		url := strings.TrimSpace(cfg.Approval.Notification.Webhook.URL)
		if url == "" {
			return nil, fmt.Errorf("webhook notification enabled but url is empty")
		}
		notifiers = append(notifiers, notify.NewWebhook(url))
	}

	if cfg.NotificationMethodEnabled("email") {
		email := cfg.Approval.Notification.Email
		addr := fmt.Sprintf("%s:%d", email.Host, email.Port)
		sender, err := notify.NewEmail(addr, email.User, email.Pass, email.From, email.To)
		if err != nil {
			return nil, fmt.Errorf("invalid email config: %w", err)
		}
		notifiers = append(notifiers, sender)
	}

	return notifiers, nil
}

func approvalQueuePath() string {
	return filepath.Join(config.ConfigDir(), "approvals", "queue.json")
}

func auditLogPath() string {
	return filepath.Join(config.ConfigDir(), "audit", "audit.json")
}

func scheduleStorePath() string {
	return filepath.Join(config.ConfigDir(), "schedule", "jobs.json")
}

func stateDirPath() string {
	return filepath.Join(config.ConfigDir(), "state")
}
