package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hbashir/aide/internal/actionfile"
	"github.com/hbashir/aide/internal/approval"
	"github.com/hbashir/aide/internal/config"
	"github.com/hbashir/aide/internal/event"
	"github.com/hbashir/aide/internal/executor"
	"github.com/hbashir/aide/internal/gateway"
	"github.com/hbashir/aide/internal/orchestrator"
	"github.com/hbashir/aide/internal/schedule"
	"github.com/hbashir/aide/internal/vault"
	"github.com/hbashir/aide/internal/watcher"
	"github.com/spf13/cobra"
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the Aide daemon",
		RunE:  runServer,
	}

	return cmd
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	vlt := vault.New(cfg.VaultPath())
	if err := vlt.EnsureDirs(); err != nil {
		return fmt.Errorf("invalid vault: %w", err)
	}

	eng, err := buildApprovalEngine(cfg)
	if err != nil {
		return err
	}
	eng.Start()

	// Scheduled jobs feed the approval queue or the vault inbox.
	var scheduler *schedule.Service
	if cfg.Scheduler.Enabled {
		scheduler = schedule.NewService(scheduleStorePath(), scheduleJobHandler(eng, vlt))
		if err := scheduler.Start(); err != nil {
			slog.Warn("scheduler failed to start", "error", err)
			scheduler = nil
		}
	}

	var runner *watcher.Runner
	var closers []interface{ Close() error }
	if cfg.Watchers.Enabled {
		sources, srcClosers, err := buildSources(cfg)
		if err != nil {
			return err
		}
		closers = srcClosers

		runner, err = watcher.NewRunner(vlt, sources, time.Duration(cfg.Watchers.Interval)*time.Second)
		if err != nil {
			return fmt.Errorf("failed to create watcher runner: %w", err)
		}
		runner.Start()
	}

	var orch *orchestrator.Service
	if cfg.Orchestrator.Enabled {
		orch = orchestrator.NewService(vlt, orchestrator.Config{
			Enabled:  true,
			Interval: time.Duration(cfg.Orchestrator.Interval) * time.Second,
		})
		orch.Start()
	}

	errCh := make(chan error, 1)
	gatewayServer := gateway.New(gateway.Config{
		Host:  cfg.Gateway.Host,
		Port:  cfg.Gateway.Port,
		Token: cfg.Gateway.Token,
	}, eng)
	go func() {
		if err := gatewayServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server failed: %w", err)
		}
	}()

	fmt.Printf("Aide running. Gateway: http://%s\nPress Ctrl+C to stop.\n", gatewayServer.Addr())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("server component failed", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down")
	if orch != nil {
		orch.Stop()
	}
	if runner != nil {
		runner.Stop()
	}
	for _, c := range closers {
		_ = c.Close()
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	eng.Stop()
	if err := gatewayServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("gateway shutdown failed", "error", err)
	}

	return runErr
}

// buildSources assembles the enabled activity sources.
func buildSources(cfg *config.Config) ([]watcher.Source, []interface{ Close() error }, error) {
	var sources []watcher.Source
	var closers []interface{ Close() error }

	inbox := strings.TrimSpace(cfg.Watchers.Inbox)
	if inbox != "" {
		if err := os.MkdirAll(inbox, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create inbox directory: %w", err)
		}
		fd, err := watcher.NewFileDrop(inbox)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to watch inbox: %w", err)
		}
		sources = append(sources, fd)
		closers = append(closers, fd)
	}

	bridgeURL := strings.TrimSpace(cfg.Watchers.WhatsAppBridgeURL)
	if bridgeURL != "" {
		wa, err := watcher.NewWhatsApp(bridgeURL)
		if err != nil {
			slog.Warn("whatsapp bridge unavailable, source disabled", "url", bridgeURL, "error", err)
		} else {
			sources = append(sources, wa)
			closers = append(closers, wa)
		}
	}

	return sources, closers, nil
}

// scheduleJobHandler routes a fired job by payload kind: reminders drop an
// action file into Needs_Action, email sends go through the sensitivity
// gate (sub-threshold sends execute directly), everything else joins the
// approval queue and executes once approved.
func scheduleJobHandler(eng *approval.Engine, vlt *vault.Vault) schedule.JobHandler {
	return func(job *schedule.Job) error {
		switch job.Payload.Kind {
		case "", "reminder":
			now := time.Now()
			rec := event.Record{
				ID:         job.ID + "-" + strconv.FormatInt(now.UnixMilli(), 10),
				Kind:       "reminder",
				Source:     "schedule",
				Subject:    job.Name,
				Body:       job.Payload.Message,
				ReceivedAt: now,
			}
			_, err := actionfile.Write(vlt.Dir(vault.FolderNeedsAction), actionfile.FromRecord(rec), job.Payload.Message)
			return err
		case "email_send":
			_, result, err := eng.Submit(context.Background(), approval.CreateInput{
				Kind:           job.Payload.Kind,
				Description:    job.Payload.Message,
				Justification:  fmt.Sprintf("scheduled job %s (%s)", job.Name, job.ID),
				Amount:         payloadAmount(job.Payload.Data),
				Recipients:     payloadRecipients(job.Payload.Data),
				KnownRecipient: payloadBool(job.Payload.Data, "known_recipient"),
				Payload:        job.Payload.Data,
			})
			if err != nil {
				return err
			}
			if result != nil && result.Status == executor.StatusError {
				return fmt.Errorf("direct execution failed: %s", result.Message)
			}
			return nil
		default:
			_, err := eng.RequestApproval(approval.CreateInput{
				Kind:          job.Payload.Kind,
				Description:   job.Payload.Message,
				Justification: fmt.Sprintf("scheduled job %s (%s)", job.Name, job.ID),
				Payload:       job.Payload.Data,
			})
			return err
		}
	}
}

func payloadAmount(data map[string]any) float64 {
	if data == nil {
		return 0
	}
	switch v := data["amount"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func payloadRecipients(data map[string]any) []string {
	if data == nil {
		return nil
	}
	switch v := data["recipients"].(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		if s, ok := data["recipient"].(string); ok && s != "" {
			return []string{s}
		}
		return nil
	}
}

func payloadBool(data map[string]any, key string) bool {
	if data == nil {
		return false
	}
	b, _ := data[key].(bool)
	return b
}
