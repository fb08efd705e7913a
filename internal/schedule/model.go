// Package schedule runs recurring and one-shot jobs (daily summaries,
// recurring posts) against a persisted job list.
package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Schedule kinds.
const (
	KindAt    = "at"
	KindEvery = "every"
	KindCron  = "cron"
)

// Spec defines when a job fires.
type Spec struct {
	Kind    string `json:"kind"`               // "at" | "every" | "cron"
	AtMS    *int64 `json:"at_ms,omitempty"`    // one-shot timestamp (milliseconds)
	EveryMS *int64 `json:"every_ms,omitempty"` // interval (milliseconds)
	Expr    string `json:"expr,omitempty"`     // cron expression (5-field)
}

// Payload defines what a job does when triggered. Kind selects the handler
// behavior; Data carries handler-specific fields (post text, recipients).
type Payload struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// JobState holds runtime state for a job.
type JobState struct {
	NextRunAtMS *int64 `json:"next_run_at_ms,omitempty"`
	LastRunAtMS *int64 `json:"last_run_at_ms,omitempty"`
	LastStatus  string `json:"last_status,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// Job is one scheduled task.
type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	Spec           Spec     `json:"spec"`
	Payload        Payload  `json:"payload"`
	State          JobState `json:"state"`
	CreatedAtMS    int64    `json:"created_at_ms"`
	UpdatedAtMS    int64    `json:"updated_at_ms"`
	DeleteAfterRun bool     `json:"delete_after_run,omitempty"`
}

// NewJob creates a job with a generated id and timestamps.
func NewJob(name string, spec Spec, payload Payload, now time.Time) *Job {
	ms := now.UnixMilli()
	return &Job{
		ID:          uuid.NewString()[:8],
		Name:        name,
		Enabled:     true,
		Spec:        spec,
		Payload:     payload,
		CreatedAtMS: ms,
		UpdatedAtMS: ms,
	}
}

// SpecDescription returns a human-readable schedule summary.
func (j *Job) SpecDescription() string {
	switch j.Spec.Kind {
	case KindAt:
		if j.Spec.AtMS != nil {
			return "at " + time.UnixMilli(*j.Spec.AtMS).Format(time.RFC3339)
		}
		return "at (unset)"
	case KindEvery:
		if j.Spec.EveryMS != nil {
			return "every " + (time.Duration(*j.Spec.EveryMS) * time.Millisecond).String()
		}
		return "every (unset)"
	case KindCron:
		return "cron: " + j.Spec.Expr
	default:
		return "unknown"
	}
}
