package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepRun is one row per invocation in the append-only execution trace.
type StepRun struct {
	ID         uuid.UUID
	JobID      uuid.UUID
	Name       string
	Success    *bool
	Message    string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Step is a named child of a run with timing and outcome. Payload holds
// small structured context (counts, urls), never business state.
type Step struct {
	RunID      uuid.UUID
	Name       string
	Success    bool
	Message    string
	Payload    map[string]any
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}
