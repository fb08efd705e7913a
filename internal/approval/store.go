package approval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	queueFileMode = 0644
	queueDirMode  = 0755
)

// Store persists the approval queue as a JSON array, rewritten wholesale
// on every save. The engine is the single writer; callers outside this
// package only read through the engine.
type Store struct {
	path string
}

// NewStore creates a queue store at the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted queue. A missing file yields an empty queue.
func (s *Store) Load() ([]Request, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Request{}, nil
		}
		return nil, fmt.Errorf("read approval queue: %w", err)
	}

	var queue []Request
	if err := json.Unmarshal(data, &queue); err != nil {
		return nil, fmt.Errorf("parse approval queue: %w", err)
	}
	if queue == nil {
		queue = []Request{}
	}
	return queue, nil
}

// Save writes the full queue to disk via a temp file and rename.
func (s *Store) Save(queue []Request) error {
	encoded, err := json.MarshalIndent(queue, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal approval queue: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), queueDirMode); err != nil {
		return fmt.Errorf("create approval queue dir: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmpFile, err := os.CreateTemp(dir, "queue-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp approval queue: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(encoded); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp approval queue: %w", err)
	}
	if err := tmpFile.Chmod(queueFileMode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp approval queue: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp approval queue: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace approval queue: %w", err)
	}
	return nil
}
