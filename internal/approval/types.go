package approval

import (
	"time"

	"github.com/hbashir/aide/internal/executor"
)

// Status is the lifecycle state of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusTimeout  Status = "timeout"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusTimeout
}

// Request is a persisted approval request record gating one sensitive action.
type Request struct {
	ID            string         `json:"id"`
	Kind          string         `json:"kind"`
	Description   string         `json:"description,omitempty"`
	Justification string         `json:"justification,omitempty"`
	Amount        float64        `json:"amount,omitempty"`
	Recipient     string         `json:"recipient,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Status    Status    `json:"status"`

	Notified    bool      `json:"notified,omitempty"`
	Escalated   bool      `json:"escalated,omitempty"`
	EscalatedAt time.Time `json:"escalated_at,omitempty"`

	Approver  string    `json:"approver,omitempty"`
	Rejecter  string    `json:"rejecter,omitempty"`
	DecidedAt time.Time `json:"decided_at,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Reason    string    `json:"reason,omitempty"`

	// Result is the outcome reported by the executor, set on approve.
	Result *executor.Result `json:"result,omitempty"`
}

// CreateInput contains fields needed to create an approval request.
// Recipients and KnownRecipient feed the sensitivity gate only and are not
// persisted on the request; Recipient is the primary destination shown in
// notifications.
type CreateInput struct {
	Kind           string
	Description    string
	Justification  string
	Amount         float64
	Recipient      string
	Recipients     []string
	KnownRecipient bool
	Payload        map[string]any
}
