package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hbashir/aide/internal/audit"
	"github.com/hbashir/aide/internal/executor"
)

const (
	defaultTimeout       = 24 * time.Hour
	defaultEscalation    = 12 * time.Hour
	defaultSweepInterval = 5 * time.Minute
	defaultSweepBackoff  = time.Minute

	systemApprover = "system"
	timeoutReason  = "Timeout - no response received"
)

// Notifier delivers approval notifications over one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, req Request) error
	NotifyEscalation(ctx context.Context, req Request) error
}

// Config controls workflow timing and sensitivity gating.
type Config struct {
	// Timeout is how long a request stays pending before it expires.
	Timeout time.Duration
	// EscalationAfter is how long before a pending request escalates.
	EscalationAfter time.Duration
	// AutoRejectAfterTimeout rejects expired requests as "system" instead
	// of marking them timed out.
	AutoRejectAfterTimeout bool
	// SweepInterval is the background sweep period.
	SweepInterval time.Duration
	// Thresholds decide which submitted actions need approval; actions
	// below every threshold execute directly through Submit.
	Thresholds Thresholds
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.EscalationAfter <= 0 {
		c.EscalationAfter = defaultEscalation
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	return c
}

// Engine owns the persisted approval queue: it transitions requests through
// their lifecycle, runs the background sweep for notification, timeout and
// escalation, and writes the audit trail. All public operations serialize
// against the sweep through one mutex.
type Engine struct {
	store     *Store
	registry  *executor.Registry
	auditLog  *audit.Log
	notifiers []Notifier
	cfg       Config

	now          func() time.Time
	sweepBackoff time.Duration

	mu    sync.Mutex
	queue []Request

	stopCh  chan struct{}
	stopped chan struct{}
	running bool
}

// NewEngine creates an engine and loads the persisted queue.
func NewEngine(
	store *Store,
	registry *executor.Registry,
	auditLog *audit.Log,
	notifiers []Notifier,
	cfg Config,
) (*Engine, error) {
	queue, err := store.Load()
	if err != nil {
		return nil, err
	}

	return &Engine{
		store:        store,
		registry:     registry,
		auditLog:     auditLog,
		notifiers:    notifiers,
		cfg:          cfg.withDefaults(),
		now:          time.Now,
		sweepBackoff: defaultSweepBackoff,
		queue:        queue,
	}, nil
}

// RequestApproval appends a new pending request to the queue and persists
// it. The request joins the in-memory queue even when persistence fails;
// the write error is surfaced to the caller and retried by the next sweep.
func (e *Engine) RequestApproval(input CreateInput) (Request, error) {
	kind := strings.TrimSpace(input.Kind)
	if kind == "" {
		kind = "generic"
	}

	now := e.now().UTC()
	req := Request{
		ID:            newRequestID(now),
		Kind:          kind,
		Description:   strings.TrimSpace(input.Description),
		Justification: strings.TrimSpace(input.Justification),
		Amount:        input.Amount,
		Recipient:     strings.TrimSpace(input.Recipient),
		Payload:       input.Payload,
		CreatedAt:     now,
		ExpiresAt:     now.Add(e.cfg.Timeout),
		Status:        StatusPending,
	}

	e.mu.Lock()
	e.queue = append(e.queue, req)
	persistErr := e.store.Save(e.queue)
	e.mu.Unlock()

	e.recordAudit("approval_requested", map[string]any{
		"request_id": req.ID,
		"kind":       req.Kind,
		"recipient":  req.Recipient,
		"amount":     req.Amount,
	})

	if persistErr != nil {
		return req, fmt.Errorf("persist approval queue: %w", persistErr)
	}
	return req, nil
}

// Submit routes an action through the sensitivity gate: when no threshold
// is tripped the executor runs immediately and the returned result is
// non-nil; otherwise the action joins the approval queue and the returned
// request is pending.
func (e *Engine) Submit(ctx context.Context, input CreateInput) (Request, *executor.Result, error) {
	recipients := input.Recipients
	if len(recipients) == 0 && strings.TrimSpace(input.Recipient) != "" {
		recipients = []string{input.Recipient}
	}

	required, reason := e.cfg.Thresholds.Check(input.Amount, recipients, input.KnownRecipient)
	if !required {
		result := e.execute(ctx, Request{Kind: strings.TrimSpace(input.Kind), Payload: input.Payload})
		e.recordAudit("action_executed_direct", map[string]any{
			"kind":      input.Kind,
			"recipient": input.Recipient,
			"amount":    input.Amount,
			"status":    result.Status,
			"message":   result.Message,
		})
		return Request{}, &result, nil
	}

	if input.Justification == "" {
		input.Justification = reason
	}
	req, err := e.RequestApproval(input)
	return req, nil, err
}

// Approve transitions a pending request to approved and invokes the
// registered executor for its kind. The executor result is recorded on the
// request and in the audit log. When no executor is registered the
// transition still happens and the result reports the failure explicitly.
// The executor runs outside the engine lock so a slow action never blocks
// other operations.
func (e *Engine) Approve(ctx context.Context, id, approver, notes string) (Request, executor.Result, error) {
	e.mu.Lock()

	idx := e.indexLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		return Request{}, executor.Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	req := &e.queue[idx]
	if req.Status != StatusPending {
		snapshot := *req
		e.mu.Unlock()
		return snapshot, executor.Result{}, fmt.Errorf("%w: %s", ErrAlreadyProcessed, id)
	}

	now := e.now().UTC()
	req.Status = StatusApproved
	req.Approver = strings.TrimSpace(approver)
	req.DecidedAt = now
	req.Notes = strings.TrimSpace(notes)
	snapshot := *req
	e.mu.Unlock()

	result := e.execute(ctx, snapshot)

	e.mu.Lock()
	if idx := e.indexLocked(id); idx >= 0 {
		e.queue[idx].Result = &result
		snapshot = e.queue[idx]
	} else {
		snapshot.Result = &result
	}
	persistErr := e.store.Save(e.queue)
	e.mu.Unlock()

	if persistErr != nil {
		// Optimistic persistence: the in-memory transition stands, the next
		// sweep retries the write.
		slog.Warn("failed to persist approval queue after approve",
			"request_id", id, "error", persistErr)
	}

	e.recordAudit("approval_executed", map[string]any{
		"request_id": snapshot.ID,
		"approver":   snapshot.Approver,
		"status":     result.Status,
		"message":    result.Message,
	})

	return snapshot, result, nil
}

// Reject transitions a pending request to rejected. The executor is never
// invoked on this path.
func (e *Engine) Reject(id, approver, reason string) (Request, error) {
	e.mu.Lock()

	idx := e.indexLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		return Request{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	req := &e.queue[idx]
	if req.Status != StatusPending {
		snapshot := *req
		e.mu.Unlock()
		return snapshot, fmt.Errorf("%w: %s", ErrAlreadyProcessed, id)
	}

	now := e.now().UTC()
	req.Status = StatusRejected
	req.Rejecter = strings.TrimSpace(approver)
	req.DecidedAt = now
	req.Reason = strings.TrimSpace(reason)
	snapshot := *req

	persistErr := e.store.Save(e.queue)
	e.mu.Unlock()

	if persistErr != nil {
		slog.Warn("failed to persist approval queue after reject",
			"request_id", id, "error", persistErr)
	}

	e.recordAudit("approval_rejected", map[string]any{
		"request_id": snapshot.ID,
		"approver":   snapshot.Rejecter,
		"reason":     snapshot.Reason,
	})

	return snapshot, nil
}

// Pending returns all pending requests in insertion order.
func (e *Engine) Pending() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()

	pending := make([]Request, 0)
	for _, req := range e.queue {
		if req.Status == StatusPending {
			pending = append(pending, req)
		}
	}
	return pending
}

// History returns the most recent limit requests in insertion order,
// including resolved ones.
func (e *Engine) History(limit int) []Request {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 || limit > len(e.queue) {
		limit = len(e.queue)
	}
	history := make([]Request, limit)
	copy(history, e.queue[len(e.queue)-limit:])
	return history
}

// Start begins the background sweep loop.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.stopCh = make(chan struct{})
	e.stopped = make(chan struct{})
	e.running = true
	e.mu.Unlock()

	go e.loop()

	slog.Info("approval engine started", "sweep_interval", e.cfg.SweepInterval.String())
}

// Stop signals the sweep loop and waits for it to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	<-e.stopped
	slog.Info("approval engine stopped")
}

func (e *Engine) loop() {
	defer close(e.stopped)

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			if !e.safeSweep() {
				select {
				case <-e.stopCh:
					return
				case <-time.After(e.sweepBackoff):
				}
			}
		}
	}
}

// safeSweep runs one sweep and absorbs panics so the loop never dies.
func (e *Engine) safeSweep() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("approval sweep panicked", "panic", r)
			ok = false
		}
	}()

	e.Sweep(context.Background())
	return true
}

// Sweep runs one iteration of the background check: mark unnotified pending
// requests, expire requests past their deadline, escalate overdue ones, then
// persist the queue once. Requests are visited in insertion order; a request
// expired in this pass is not escalated in the same pass. Channel dispatch
// happens after the lock is released so a hung channel never blocks
// Approve, Reject or Pending.
func (e *Engine) Sweep(ctx context.Context) {
	e.mu.Lock()

	now := e.now().UTC()
	var toNotify, toEscalate []Request

	for i := range e.queue {
		req := &e.queue[i]
		if req.Status != StatusPending {
			continue
		}

		if !req.Notified {
			req.Notified = true
			toNotify = append(toNotify, *req)
		}

		if now.After(req.ExpiresAt) {
			if e.cfg.AutoRejectAfterTimeout {
				req.Status = StatusRejected
				req.Rejecter = systemApprover
				req.DecidedAt = now
				req.Reason = timeoutReason
				e.recordAudit("approval_rejected", map[string]any{
					"request_id": req.ID,
					"approver":   systemApprover,
					"reason":     timeoutReason,
				})
			} else {
				req.Status = StatusTimeout
				req.DecidedAt = now
				e.recordAudit("approval_timeout", map[string]any{
					"request_id": req.ID,
					"kind":       req.Kind,
				})
			}
			continue
		}

		if !req.Escalated && now.After(req.CreatedAt.Add(e.cfg.EscalationAfter)) {
			req.Escalated = true
			req.EscalatedAt = now
			toEscalate = append(toEscalate, *req)
			e.recordAudit("approval_escalated", map[string]any{
				"request_id": req.ID,
				"kind":       req.Kind,
			})
		}
	}

	if err := e.store.Save(e.queue); err != nil {
		slog.Warn("failed to persist approval queue, retrying next sweep", "error", err)
	}
	e.mu.Unlock()

	for _, req := range toNotify {
		e.dispatch(ctx, req, false)
	}
	for _, req := range toEscalate {
		e.dispatch(ctx, req, true)
	}
}

// execute resolves and runs the executor for the request's kind.
func (e *Engine) execute(ctx context.Context, req Request) executor.Result {
	var fn executor.Func
	if e.registry != nil {
		fn, _ = e.registry.Get(req.Kind)
	}
	if fn == nil {
		return executor.Result{
			Status:  executor.StatusError,
			Message: fmt.Sprintf("no executor registered for kind %s", req.Kind),
		}
	}
	return fn(ctx, req.Payload)
}

// dispatch fans a request out to every notifier. Channel failures are
// logged and never block the remaining channels.
func (e *Engine) dispatch(ctx context.Context, req Request, escalation bool) {
	for _, n := range e.notifiers {
		var err error
		if escalation {
			err = n.NotifyEscalation(ctx, req)
		} else {
			err = n.Notify(ctx, req)
		}
		if err != nil {
			slog.Warn("approval notification failed",
				"channel", n.Name(), "request_id", req.ID, "error", err)
		}
	}
}

func (e *Engine) recordAudit(eventType string, details map[string]any) {
	if e.auditLog == nil {
		return
	}
	if err := e.auditLog.Record(eventType, details); err != nil {
		slog.Warn("failed to write audit entry", "event", eventType, "error", err)
	}
}

func (e *Engine) indexLocked(id string) int {
	for i := range e.queue {
		if e.queue[i].ID == id {
			return i
		}
	}
	return -1
}

// newRequestID builds a time-prefixed id unique under rapid creation.
func newRequestID(now time.Time) string {
	return fmt.Sprintf("APR-%s-%s", now.Format("20060102T150405"), uuid.NewString()[:8])
}
