package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hbashir/aide/internal/config"
	"github.com/hbashir/aide/internal/metrics"
	"github.com/hbashir/aide/internal/schedule"
	"github.com/hbashir/aide/internal/vault"
	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Aide configuration status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("=== Aide Status ===")
	fmt.Println()

	fmt.Printf("Config: %s\n", config.ConfigPath())
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found (run 'aide init')")
	}

	fmt.Printf("\nVault: %s\n", cfg.VaultPath())
	vlt := vault.New(cfg.VaultPath())
	if health, err := vlt.CheckHealth(time.Now()); err == nil {
		fmt.Printf("  Status: %s\n", health.Status)
		fmt.Printf("  Needs_Action: %d, Plans: %d, Pending_Approval: %d, Done: %d\n",
			health.Counts[vault.FolderNeedsAction],
			health.Counts[vault.FolderPlans],
			health.Counts[vault.FolderPendingApproval],
			health.Counts[vault.FolderDone])
	} else {
		fmt.Println("  Status: Not found (run 'aide init')")
	}

	fmt.Println("\nNotifications:")
	if !cfg.Approval.Notification.Enabled {
		fmt.Println("  Disabled")
	} else if len(cfg.Approval.Notification.Methods) == 0 {
		fmt.Println("  Enabled, no channels configured")
	} else {
		for _, method := range cfg.Approval.Notification.Methods {
			fmt.Printf("  %s: enabled\n", strings.ToLower(strings.TrimSpace(method)))
		}
	}

	fmt.Println("\nApprovals:")
	if eng, err := buildApprovalEngine(cfg); err == nil {
		fmt.Printf("  Pending: %d\n", len(eng.Pending()))
		fmt.Printf("  Timeout: %dh, escalation after %dh\n",
			cfg.Approval.Workflow.TimeoutHours, cfg.Approval.Workflow.EscalationHours)
	} else {
		fmt.Printf("  Status: unavailable (%v)\n", err)
	}

	fmt.Println("\nWatchers:")
	if cfg.Watchers.Enabled {
		fmt.Printf("  Inbox: %s\n", cfg.Watchers.Inbox)
		bridge := strings.TrimSpace(cfg.Watchers.WhatsAppBridgeURL)
		if bridge == "" {
			bridge = "not configured"
		}
		fmt.Printf("  WhatsApp bridge: %s\n", bridge)
		fmt.Printf("  Poll interval: %ds\n", cfg.Watchers.Interval)
	} else {
		fmt.Println("  Disabled")
	}

	fmt.Println("\nScheduler:")
	if !cfg.Scheduler.Enabled {
		fmt.Println("  Disabled")
	} else {
		svc := schedule.NewService(scheduleStorePath(), nil)
		if err := svc.Start(); err == nil {
			jobs := svc.ListJobs(true)
			enabled := 0
			for _, j := range jobs {
				if j.Enabled {
					enabled++
				}
			}
			fmt.Printf("  Jobs: %d total, %d enabled\n", len(jobs), enabled)
			svc.Stop()
		} else {
			fmt.Println("  Status: unavailable")
		}
	}

	fmt.Println("\nRuntime:")
	if snap, err := metrics.ReadRuntimeSnapshot(stateDirPath()); err == nil && snap.HasData() {
		fmt.Printf("  Executions: %d total, %d errors (avg %.0fms)\n",
			snap.Executor.Total, snap.Executor.Errors, snap.Executor.AvgLatencyMs())
		fmt.Printf("  Notifications: %d sent, %d failed\n",
			snap.Notify.SendAttempts, snap.Notify.SendFailures)
	} else {
		fmt.Println("  No runtime data yet")
	}

	fmt.Println("\nGateway:")
	fmt.Printf("  Address: %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	if cfg.Gateway.Token != "" {
		fmt.Println("  Auth:    token configured")
	} else {
		fmt.Println("  Auth:    no token (open)")
	}

	return nil
}
