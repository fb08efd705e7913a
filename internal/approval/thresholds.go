package approval

import (
	"fmt"
	"strings"
)

// Thresholds decide which actions are sensitive enough to gate behind a
// human approval instead of executing directly.
type Thresholds struct {
	// Amount triggers approval when an action's amount exceeds it.
	Amount float64
	// NewRecipients triggers approval for any recipient not seen before.
	NewRecipients bool
	// BulkSends triggers approval when the recipient count exceeds it.
	BulkSends int
}

// Check reports whether the action requires approval and why. knownRecipient
// is supplied by the caller, which tracks its own recipient history.
func (t Thresholds) Check(amount float64, recipients []string, knownRecipient bool) (bool, string) {
	if t.Amount > 0 && amount > t.Amount {
		return true, fmt.Sprintf("amount %.2f exceeds threshold %.2f", amount, t.Amount)
	}

	count := 0
	for _, r := range recipients {
		if strings.TrimSpace(r) != "" {
			count++
		}
	}
	if t.BulkSends > 0 && count > t.BulkSends {
		return true, fmt.Sprintf("bulk send to %d recipients exceeds threshold %d", count, t.BulkSends)
	}

	if t.NewRecipients && count > 0 && !knownRecipient {
		return true, "recipient not previously contacted"
	}

	return false, ""
}
