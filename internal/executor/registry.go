package executor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Result statuses reported by executors.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome of executing an approved action.
type Result struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Func performs the side effect for one action kind. It receives the
// approval request's payload and may do its own I/O; no timeout is imposed
// here, the context carries whatever deadline the caller set.
type Func func(ctx context.Context, payload map[string]any) Result

// Registry maps action kinds to executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Func)}
}

// Register adds an executor for a kind.
func (r *Registry) Register(kind string, fn Func) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return fmt.Errorf("executor kind is required")
	}
	if fn == nil {
		return fmt.Errorf("executor for %s is nil", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[kind]; exists {
		return fmt.Errorf("executor already registered: %s", kind)
	}
	r.executors[kind] = fn
	return nil
}

// Get retrieves an executor by kind.
func (r *Registry) Get(kind string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.executors[kind]
	return fn, ok
}

// Kinds returns all registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.executors))
	for kind := range r.executors {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
