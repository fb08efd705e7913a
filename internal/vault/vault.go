// Package vault manages the markdown workspace that tasks flow through:
// incoming work lands in Needs_Action, plans in Plans, finished items in Done.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Folder names inside the vault.
const (
	FolderNeedsAction     = "Needs_Action"
	FolderPlans           = "Plans"
	FolderPendingApproval = "Pending_Approval"
	FolderApproved        = "Approved"
	FolderRejected        = "Rejected"
	FolderDone            = "Done"
	FolderLogs            = "Logs"
)

const dirMode = 0755

// backlogWarnThreshold flips health to warning when Needs_Action piles up.
const backlogWarnThreshold = 10

var folders = []string{
	FolderNeedsAction,
	FolderPlans,
	FolderPendingApproval,
	FolderApproved,
	FolderRejected,
	FolderDone,
	FolderLogs,
}

// Vault is a rooted markdown workspace.
type Vault struct {
	path string
}

// New creates a vault rooted at path.
func New(path string) *Vault {
	return &Vault{path: path}
}

// Path returns the vault root.
func (v *Vault) Path() string { return v.path }

// Dir returns the absolute path of a named folder.
func (v *Vault) Dir(folder string) string {
	return filepath.Join(v.path, folder)
}

// EnsureDirs creates the vault root and every standard folder.
func (v *Vault) EnsureDirs() error {
	for _, folder := range folders {
		if err := os.MkdirAll(v.Dir(folder), dirMode); err != nil {
			return fmt.Errorf("create vault folder %s: %w", folder, err)
		}
	}
	return nil
}

// Markdown lists the *.md files in a folder, sorted by name.
func (v *Vault) Markdown(folder string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(v.Dir(folder), "*.md"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	return matches, nil
}

// Move relocates a file into a vault folder, keeping its name.
func (v *Vault) Move(src, folder string) (string, error) {
	dst := filepath.Join(v.Dir(folder), filepath.Base(src))
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", filepath.Base(src), folder, err)
	}
	return dst, nil
}

// Health is a point-in-time snapshot of the vault folders.
type Health struct {
	Timestamp time.Time      `json:"timestamp"`
	Path      string         `json:"path"`
	Counts    map[string]int `json:"counts"`
	Status    string         `json:"status"`
}

// CheckHealth counts markdown files per folder. Status is "warning" when the
// Needs_Action backlog exceeds the threshold, "healthy" otherwise.
func (v *Vault) CheckHealth(now time.Time) (Health, error) {
	health := Health{
		Timestamp: now,
		Path:      v.path,
		Counts:    make(map[string]int, len(folders)),
		Status:    "healthy",
	}

	for _, folder := range folders {
		files, err := v.Markdown(folder)
		if err != nil {
			return Health{}, err
		}
		health.Counts[folder] = len(files)
	}

	if health.Counts[FolderNeedsAction] > backlogWarnThreshold {
		health.Status = "warning"
	}
	return health, nil
}
