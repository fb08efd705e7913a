package event

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type requestIDContextKey struct{}

// Record is one detected external event (new email, connection request,
// incoming message) produced by an activity source.
type Record struct {
	ID         string
	Kind       string
	Source     string
	From       string
	Subject    string
	Body       string
	Relevance  string
	Priority   string
	Payload    map[string]any
	ReceivedAt time.Time
}

// Key returns a stable identifier used for dedup across polls.
func (r *Record) Key() string {
	return r.Source + ":" + r.ID
}

// NewRequestID creates a request id for tracing.
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID adds a request id to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext reads request id from context.
func RequestIDFromContext(ctx context.Context) string {
	v := ctx.Value(requestIDContextKey{})
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
