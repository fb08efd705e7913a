package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// storeData is the on-disk format for scheduled jobs.
type storeData struct {
	Version int    `json:"version"`
	Jobs    []*Job `json:"jobs"`
}

// Store persists scheduled jobs as a JSON file.
type Store struct {
	path string
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		jobs: make(map[string]*Job),
	}
}

// Load reads jobs from disk. A missing file starts the store empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.jobs = make(map[string]*Job)
			return nil
		}
		return fmt.Errorf("read schedule store: %w", err)
	}

	var sd storeData
	if err := json.Unmarshal(data, &sd); err != nil {
		return fmt.Errorf("parse schedule store: %w", err)
	}

	s.jobs = make(map[string]*Job, len(sd.Jobs))
	for _, j := range sd.Jobs {
		s.jobs[j.ID] = j
	}
	return nil
}

// Save writes all jobs to disk. Serialization happens under the read lock
// so concurrent Put calls cannot race with encoding.
func (s *Store) Save() error {
	s.mu.RLock()
	sd := storeData{
		Version: 1,
		Jobs:    make([]*Job, 0, len(s.jobs)),
	}
	for _, j := range s.jobs {
		sd.Jobs = append(sd.Jobs, j)
	}
	data, err := json.MarshalIndent(sd, "", "  ")
	s.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("marshal schedule store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create schedule store dir: %w", err)
	}

	return os.WriteFile(s.path, data, 0644)
}

// Put stores a deep copy of the job so the caller can keep mutating the
// original without racing with Save or other readers.
func (s *Store) Put(job *Job) {
	cp := copyJob(job)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[cp.ID] = cp
}

// Get returns a deep copy of the job with the given id.
func (s *Store) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return copyJob(j), true
}

// Delete removes a job by id.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

// All returns deep copies of all jobs.
func (s *Store) All() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		result = append(result, copyJob(j))
	}
	return result
}

func copyJob(j *Job) *Job {
	cp := *j
	if j.Spec.AtMS != nil {
		v := *j.Spec.AtMS
		cp.Spec.AtMS = &v
	}
	if j.Spec.EveryMS != nil {
		v := *j.Spec.EveryMS
		cp.Spec.EveryMS = &v
	}
	if j.State.NextRunAtMS != nil {
		v := *j.State.NextRunAtMS
		cp.State.NextRunAtMS = &v
	}
	if j.State.LastRunAtMS != nil {
		v := *j.State.LastRunAtMS
		cp.State.LastRunAtMS = &v
	}
	if j.Payload.Data != nil {
		data := make(map[string]any, len(j.Payload.Data))
		for k, v := range j.Payload.Data {
			data[k] = v
		}
		cp.Payload.Data = data
	}
	return &cp
}
