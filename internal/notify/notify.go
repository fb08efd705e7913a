// Package notify implements the delivery channels used by the approval
// workflow to reach the owner: Telegram, generic webhooks and SMTP email.
package notify

import (
	"fmt"
	"strings"

	"github.com/hbashir/aide/internal/approval"
)

// FormatRequest renders an approval request as a plain-text notification.
func FormatRequest(req approval.Request) string {
	var b strings.Builder

	b.WriteString("Approval needed\n\n")
	fmt.Fprintf(&b, "ID: %s\n", req.ID)
	fmt.Fprintf(&b, "Action: %s\n", req.Kind)
	if req.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", req.Description)
	}
	if req.Recipient != "" {
		fmt.Fprintf(&b, "Recipient: %s\n", req.Recipient)
	}
	if req.Amount > 0 {
		fmt.Fprintf(&b, "Amount: %.2f\n", req.Amount)
	}
	if req.Justification != "" {
		fmt.Fprintf(&b, "Why: %s\n", req.Justification)
	}
	fmt.Fprintf(&b, "Expires: %s\n", req.ExpiresAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "\nRespond with: aide approval approve %s\n", req.ID)
	fmt.Fprintf(&b, "          or: aide approval reject %s --reason \"...\"", req.ID)

	return b.String()
}

// FormatEscalation renders the escalation reminder for an unanswered request.
func FormatEscalation(req approval.Request) string {
	var b strings.Builder

	b.WriteString("Still waiting on approval\n\n")
	fmt.Fprintf(&b, "ID: %s\n", req.ID)
	fmt.Fprintf(&b, "Action: %s\n", req.Kind)
	if req.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", req.Description)
	}
	fmt.Fprintf(&b, "Expires: %s\n", req.ExpiresAt.Format("2006-01-02 15:04 MST"))
	b.WriteString("\nThe request will time out if nobody responds.")

	return b.String()
}
