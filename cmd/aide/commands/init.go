package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hbashir/aide/internal/config"
	"github.com/hbashir/aide/internal/vault"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize Aide configuration and vault",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()

	dirs := []string{
		config.ConfigDir(),
		filepath.Join(config.ConfigDir(), "approvals"),
		filepath.Join(config.ConfigDir(), "audit"),
		filepath.Join(config.ConfigDir(), "schedule"),
		cfg.Watchers.Inbox,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	vlt := vault.New(cfg.VaultPath())
	if err := vlt.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create vault: %w", err)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	dashboardPath := filepath.Join(cfg.VaultPath(), "Dashboard.md")
	if _, err := os.Stat(dashboardPath); os.IsNotExist(err) {
		_ = os.WriteFile(dashboardPath, []byte(dashboardTemplate), 0644)
	}

	fmt.Printf("Aide initialized!\n")
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("Vault: %s\n", cfg.VaultPath())
	fmt.Printf("Inbox: %s\n", cfg.Watchers.Inbox)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("1. Edit %s to set notification channels and thresholds\n", configPath)
	fmt.Printf("2. Run 'aide run' to start the daemon\n")
	fmt.Printf("3. Drop files into the inbox or wire up the WhatsApp bridge\n")

	return nil
}

const dashboardTemplate = `# Aide Dashboard

Incoming work lands in Needs_Action, plans appear in Plans, and anything
sensitive waits in Pending_Approval until you decide.

- Needs_Action/ - detected events awaiting processing
- Plans/ - generated task plans
- Pending_Approval/ - actions waiting for your decision
- Approved/ - executed actions
- Rejected/ - declined actions
- Done/ - processed tasks
- Logs/ - run logs
`
