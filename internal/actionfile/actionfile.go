// Package actionfile reads and writes the markdown task files exchanged
// through the vault's Needs_Action folder.
package actionfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hbashir/aide/internal/event"
)

const fileMode = 0644

// StatusPending is the initial status every action file carries.
const StatusPending = "pending"

// FrontMatter is the YAML header of an action file.
type FrontMatter struct {
	Type     string    `yaml:"type"`
	Source   string    `yaml:"source,omitempty"`
	ID       string    `yaml:"id"`
	From     string    `yaml:"from,omitempty"`
	Subject  string    `yaml:"subject,omitempty"`
	Priority string    `yaml:"priority,omitempty"`
	Received time.Time `yaml:"received"`
	Status   string    `yaml:"status"`
}

// File is a parsed action file.
type File struct {
	Path string
	Meta FrontMatter
	Body string
}

// FromRecord builds the front matter for an activity record.
func FromRecord(rec event.Record) FrontMatter {
	priority := rec.Priority
	if priority == "" {
		priority = "normal"
	}
	return FrontMatter{
		Type:     rec.Kind,
		Source:   rec.Source,
		ID:       rec.ID,
		From:     rec.From,
		Subject:  rec.Subject,
		Priority: priority,
		Received: rec.ReceivedAt,
		Status:   StatusPending,
	}
}

// Write creates <TYPE>_<id>.md under dir with the front matter and body.
func Write(dir string, meta FrontMatter, body string) (string, error) {
	if meta.Type == "" {
		return "", fmt.Errorf("action file type is required")
	}
	if meta.ID == "" {
		return "", fmt.Errorf("action file id is required")
	}
	if meta.Status == "" {
		meta.Status = StatusPending
	}

	header, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")

	path := filepath.Join(dir, FileName(meta.Type, meta.ID))
	if err := os.WriteFile(path, []byte(b.String()), fileMode); err != nil {
		return "", fmt.Errorf("write action file: %w", err)
	}
	return path, nil
}

// Parse reads and splits an action file into front matter and body.
func Parse(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read action file: %w", err)
	}

	content := string(data)
	if !strings.HasPrefix(content, "---\n") {
		return File{}, fmt.Errorf("action file %s has no front matter", filepath.Base(path))
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return File{}, fmt.Errorf("action file %s has unterminated front matter", filepath.Base(path))
	}

	var meta FrontMatter
	if err := yaml.Unmarshal([]byte(rest[:end+1]), &meta); err != nil {
		return File{}, fmt.Errorf("parse front matter in %s: %w", filepath.Base(path), err)
	}

	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")
	return File{Path: path, Meta: meta, Body: strings.TrimSpace(body)}, nil
}

// FileName builds the canonical <TYPE>_<id>.md name.
func FileName(kind, id string) string {
	return fmt.Sprintf("%s_%s.md", strings.ToUpper(kind), sanitize(id))
}

// sanitize keeps ids filesystem-safe.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, id)
}
