// Package watcher polls activity sources (file drops, chat bridges) and
// turns new records into action files in the vault.
package watcher

import (
	"context"

	"github.com/hbashir/aide/internal/event"
)

// Source produces activity records from one external feed. Poll returns
// whatever arrived since the previous call; the runner handles dedup, so
// returning an already-seen record is harmless.
type Source interface {
	Name() string
	Poll(ctx context.Context) ([]event.Record, error)
}
