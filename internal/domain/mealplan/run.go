package mealplan

import (
	"time"

	"github.com/google/uuid"
)

// RunType classifies a generation attempt.
type RunType string

const (
	RunTypeGenerate   RunType = "generate"
	RunTypeRegenerate RunType = "regenerate"
	RunTypeEnrich     RunType = "enrich"
	// RunTypeReuse is logged with zero duration when an idempotent create
	// returns an existing plan without regenerating.
	RunTypeReuse RunType = "reuse"
)

// RunStatus is the lifecycle state of a run row.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

// ErrCodeTimeout marks a run reclaimed after the staleness window.
const ErrCodeTimeout = "TIMEOUT"

// Run is one row of the generation ledger. It doubles as the substrate for
// the per-user concurrency lock and the rolling-hour quota count.
type Run struct {
	ID                  uuid.UUID
	UserID              string
	PlanID              *uuid.UUID // nil until the plan row exists
	Type                RunType
	Model               string
	Status              RunStatus
	DurationMs          int64
	ErrorCode           string
	ErrorMessage        string
	ConstraintsInPrompt []string
	GuardrailsHash      string
	GuardrailsVersion   string
	CreatedAt           time.Time
}

// NewRun opens a ledger row in running state before expensive work begins.
func NewRun(userID string, planID *uuid.UUID, runType RunType, model string) *Run {
	return &Run{
		ID:        uuid.New(),
		UserID:    userID,
		PlanID:    planID,
		Type:      runType,
		Model:     model,
		Status:    RunStatusRunning,
		CreatedAt: time.Now(),
	}
}

// Complete marks the run successful with its wall-clock duration.
func (r *Run) Complete(duration time.Duration) {
	r.Status = RunStatusSuccess
	r.DurationMs = duration.Milliseconds()
}

// Fail marks the run errored. The message must already be truncated to the
// ledger bound by the caller.
func (r *Run) Fail(duration time.Duration, code, message string) {
	r.Status = RunStatusError
	r.DurationMs = duration.Milliseconds()
	r.ErrorCode = code
	r.ErrorMessage = message
}

// StaleSince reports whether a running row predates the staleness cutoff and
// should be reclaimed as abandoned.
func (r *Run) StaleSince(cutoff time.Time) bool {
	return r.Status == RunStatusRunning && r.CreatedAt.Before(cutoff)
}
