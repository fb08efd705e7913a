package watcher

import (
	"fmt"
	"os"
	"strings"
)

// seenSet tracks processed record keys in a newline-separated file so a
// restart does not recreate action files for old records.
type seenSet struct {
	path string
	keys map[string]bool
}

func loadSeenSet(path string) (*seenSet, error) {
	s := &seenSet{path: path, keys: make(map[string]bool)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read processed ids: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			s.keys[line] = true
		}
	}
	return s, nil
}

func (s *seenSet) has(key string) bool { return s.keys[key] }

func (s *seenSet) add(key string) { s.keys[key] = true }

func (s *seenSet) save() error {
	lines := make([]string, 0, len(s.keys))
	for key := range s.keys {
		lines = append(lines, key)
	}
	if err := os.WriteFile(s.path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return fmt.Errorf("save processed ids: %w", err)
	}
	return nil
}
