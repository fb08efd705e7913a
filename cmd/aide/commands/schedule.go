package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/hbashir/aide/internal/config"
	"github.com/hbashir/aide/internal/schedule"
	"github.com/hbashir/aide/internal/vault"
	"github.com/spf13/cobra"
)

func NewScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled jobs",
	}

	cmd.AddCommand(
		newScheduleListCmd(),
		newScheduleAddCmd(),
		newScheduleRunCmd(),
		newScheduleRemoveCmd(),
		newScheduleEnableCmd(),
		newScheduleDisableCmd(),
	)

	return cmd
}

func newScheduleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all scheduled jobs",
		RunE:  runScheduleList,
	}
}

func newScheduleAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new scheduled job",
		RunE:  runScheduleAdd,
	}

	cmd.Flags().StringP("name", "n", "", "Job name (required)")
	cmd.Flags().StringP("message", "m", "", "Job description or post text (required)")
	cmd.Flags().String("kind", "reminder", "Payload kind (reminder|email_send|post_publish)")
	cmd.Flags().Int64("every", 0, "Repeat interval in seconds")
	cmd.Flags().String("cron", "", "Cron expression (e.g., '0 9 * * 1')")
	cmd.Flags().String("at", "", "One-shot timestamp (RFC3339)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("message")

	return cmd
}

func newScheduleRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job_id>",
		Short: "Run a scheduled job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runScheduleNow,
	}
}

func newScheduleRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job_id>",
		Short: "Remove a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE:  runScheduleRemove,
	}
}

func newScheduleEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <job_id>",
		Short: "Enable a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduleSetEnabled(args[0], true)
		},
	}
}

func newScheduleDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <job_id>",
		Short: "Disable a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduleSetEnabled(args[0], false)
		},
	}
}

func loadScheduleService(handler schedule.JobHandler) (*schedule.Service, error) {
	svc := schedule.NewService(scheduleStorePath(), handler)
	if err := svc.Start(); err != nil {
		return nil, err
	}
	return svc, nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	svc, err := loadScheduleService(nil)
	if err != nil {
		return err
	}
	defer svc.Stop()

	jobs := svc.ListJobs(true)
	if len(jobs) == 0 {
		fmt.Println("No scheduled jobs.")
		return nil
	}

	// Styles matching status.go
	var (
		headerStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FAFAFA")).
				Background(lipgloss.Color("#8E4EC6")). // Purple
				Padding(0, 1).
				MarginBottom(1)

		// Column Widths
		wID       = 10
		wName     = 20
		wSchedule = 25
		wNextRun  = 22
		wStatus   = 10

		colHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#8E4EC6")).
				Bold(true).
				MarginRight(1)

		// Cell Styles (with fixed widths for alignment)
		idStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(wID).
			MarginRight(1)

		nameStyleBase = lipgloss.NewStyle().
				Width(wName).
				MarginRight(1)

		scheduleStyle = lipgloss.NewStyle().
				Width(wSchedule).
				MarginRight(1)

		nextRunStyle = lipgloss.NewStyle().
				Width(wNextRun).
				MarginRight(1)

		statusStyleBase = lipgloss.NewStyle().
				Width(wStatus).
				MarginRight(1)

		enabledColor  = lipgloss.Color("#2E8B57") // SeaGreen
		disabledColor = lipgloss.Color("241")     // Dark Gray
	)

	fmt.Println(headerStyle.Render("Scheduled Jobs"))

	headers := lipgloss.JoinHorizontal(lipgloss.Top,
		colHeaderStyle.Width(wID).Render("ID"),
		colHeaderStyle.Width(wName).Render("NAME"),
		colHeaderStyle.Width(wSchedule).Render("SCHEDULE"),
		colHeaderStyle.Width(wNextRun).Render("NEXT RUN"),
		colHeaderStyle.Width(wStatus).Render("STATUS"),
	)
	fmt.Printf("  %s\n", headers)

	sepStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginRight(1)
	separator := lipgloss.JoinHorizontal(lipgloss.Top,
		sepStyle.Render(strings.Repeat("─", wID)),
		sepStyle.Render(strings.Repeat("─", wName)),
		sepStyle.Render(strings.Repeat("─", wSchedule)),
		sepStyle.Render(strings.Repeat("─", wNextRun)),
		sepStyle.Render(strings.Repeat("─", wStatus)),
	)
	fmt.Printf("  %s\n", separator)

	for _, j := range jobs {
		nextRun := "-"
		if j.State.NextRunAtMS != nil {
			nextRun = time.UnixMilli(*j.State.NextRunAtMS).Format("2006-01-02 15:04:05")
		}

		sColor := enabledColor
		nStyle := nameStyleBase
		statusText := "enabled"

		if !j.Enabled {
			sColor = disabledColor
			nStyle = nStyle.Foreground(disabledColor)
			statusText = "disabled"
		}

		row := lipgloss.JoinHorizontal(lipgloss.Top,
			idStyle.Render(j.ID),
			nStyle.Render(truncate(j.Name, wName)),
			scheduleStyle.Render(truncate(j.SpecDescription(), wSchedule)),
			nextRunStyle.Render(nextRun),
			statusStyleBase.Foreground(sColor).Render(statusText),
		)

		fmt.Printf("  %s\n", row)
	}

	fmt.Println()

	return nil
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	message, _ := cmd.Flags().GetString("message")
	kind, _ := cmd.Flags().GetString("kind")
	every, _ := cmd.Flags().GetInt64("every")
	cronExpr, _ := cmd.Flags().GetString("cron")
	at, _ := cmd.Flags().GetString("at")

	var spec schedule.Spec
	switch {
	case every > 0:
		ms := every * 1000
		spec = schedule.Spec{Kind: schedule.KindEvery, EveryMS: &ms}
	case cronExpr != "":
		spec = schedule.Spec{Kind: schedule.KindCron, Expr: cronExpr}
	case at != "":
		ts, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid --at timestamp (expected RFC3339): %w", err)
		}
		ms := ts.UnixMilli()
		spec = schedule.Spec{Kind: schedule.KindAt, AtMS: &ms}
	default:
		return fmt.Errorf("one of --every, --cron, or --at is required")
	}

	svc, err := loadScheduleService(nil)
	if err != nil {
		return err
	}
	defer svc.Stop()

	job, err := svc.AddJob(name, spec, schedule.Payload{
		Kind:    strings.TrimSpace(kind),
		Message: message,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Job created: %s (%s)\n", job.ID, job.SpecDescription())
	return nil
}

func runScheduleRemove(cmd *cobra.Command, args []string) error {
	svc, err := loadScheduleService(nil)
	if err != nil {
		return err
	}
	defer svc.Stop()

	if err := svc.RemoveJob(args[0]); err != nil {
		return err
	}
	fmt.Printf("Job %s removed.\n", args[0])
	return nil
}

func runScheduleSetEnabled(jobID string, enabled bool) error {
	svc, err := loadScheduleService(nil)
	if err != nil {
		return err
	}
	defer svc.Stop()

	job, err := svc.EnableJob(jobID, enabled)
	if err != nil {
		return err
	}
	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	fmt.Printf("Job %s (%s) %s.\n", job.ID, job.Name, state)
	return nil
}

func runScheduleNow(cmd *cobra.Command, args []string) error {
	jobID := strings.TrimSpace(args[0])
	if jobID == "" {
		return fmt.Errorf("job_id is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	eng, err := buildApprovalEngine(cfg)
	if err != nil {
		return err
	}
	vlt := vault.New(cfg.VaultPath())

	svc, err := loadScheduleService(scheduleJobHandler(eng, vlt))
	if err != nil {
		return err
	}
	defer svc.Stop()

	job, err := svc.RunJob(jobID)
	if err != nil {
		return err
	}

	if job == nil {
		fmt.Printf("Job %s executed (one-shot job removed after run).\n", jobID)
		return nil
	}

	status := job.State.LastStatus
	if status == "" {
		status = "unknown"
	}
	fmt.Printf("Job %s (%s) executed, status=%s.\n", job.ID, job.Name, status)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
