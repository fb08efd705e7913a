package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	auditFileMode = 0644
	auditDirMode  = 0755

	defaultRetentionDays = 90
)

// Entry is one audit record.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	Details   map[string]any `json:"details,omitempty"`
	Source    string         `json:"source"`
}

// Log persists audit entries as a JSON array with age-based retention.
// Every Record call loads the log, appends one entry, drops entries older
// than the retention window and rewrites the file as one logical operation.
type Log struct {
	path          string
	source        string
	enabled       bool
	retentionDays int
	now           func() time.Time
	mu            sync.Mutex
}

// NewLog creates an audit log at the given path. Entries are stamped with
// source. A retentionDays of zero or less falls back to the default.
func NewLog(path, source string, enabled bool, retentionDays int) *Log {
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	return &Log{
		path:          path,
		source:        source,
		enabled:       enabled,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Record appends one entry and prunes expired ones. When the log is
// disabled it does nothing.
func (l *Log) Record(eventType string, details map[string]any) error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked()
	if err != nil {
		return err
	}

	now := l.now().UTC()
	entries = append(entries, Entry{
		Timestamp: now,
		EventType: eventType,
		Details:   details,
		Source:    l.source,
	})

	// Entries aged exactly retentionDays are dropped: only strictly newer
	// than the cutoff survive.
	cutoff := now.AddDate(0, 0, -l.retentionDays)
	kept := entries[:0]
	for _, e := range entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}

	return l.saveLocked(kept)
}

// Entries returns all persisted entries, oldest first.
func (l *Log) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.loadLocked()
}

func (l *Log) loadLocked() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse audit log: %w", err)
	}
	return entries, nil
}

func (l *Log) saveLocked(entries []Entry) error {
	encoded, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit log: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), auditDirMode); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	return os.WriteFile(l.path, encoded, auditFileMode)
}
