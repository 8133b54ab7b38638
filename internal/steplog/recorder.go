// Package steplog records the append-only execution trace: one run per
// invocation, one child row per named step. It is a pure recorder —
// trace persistence failures are logged and swallowed so observability
// can never fail the work it observes.
package steplog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

// Recorder writes runs and steps through a StepStore.
type Recorder struct {
	store  ports.StepStore
	clock  ports.Clock
	logger *slog.Logger
}

// NewRecorder wires the trace store. A nil clock defaults to time.Now.
func NewRecorder(store ports.StepStore, clock ports.Clock, logger *slog.Logger) *Recorder {
	if clock == nil {
		clock = ports.ClockFunc(time.Now)
	}
	return &Recorder{store: store, clock: clock, logger: logger}
}

// Begin opens a run scoped to a job. Always returns a usable Run, even
// when the insert fails or the recorder is nil.
func (r *Recorder) Begin(ctx context.Context, jobID uuid.UUID, name string) *Run {
	run := &Run{rec: r, id: uuid.New(), name: name}
	if r == nil || r.store == nil {
		return run
	}

	run.started = r.clock.Now()
	err := r.store.InsertRun(ctx, &domain.StepRun{
		ID:        run.id,
		JobID:     jobID,
		Name:      name,
		StartedAt: run.started,
	})
	if err != nil {
		r.warn("insert run failed", "run", name, "error", err)
	}

	return run
}

func (r *Recorder) warn(msg string, args ...any) {
	if r != nil && r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

// Run is one invocation's trace handle.
type Run struct {
	rec     *Recorder
	id      uuid.UUID
	name    string
	started time.Time
}

// Step starts a named step within the run.
func (run *Run) Step(name string) *Step {
	step := &Step{run: run, name: name}
	if run != nil && run.rec != nil && run.rec.store != nil {
		step.started = run.rec.clock.Now()
	}
	return step
}

// Finish closes the run. A nil err marks it successful.
func (run *Run) Finish(ctx context.Context, err error) {
	if run == nil || run.rec == nil || run.rec.store == nil {
		return
	}

	message := ""
	if err != nil {
		message = err.Error()
	}

	if storeErr := run.rec.store.FinishRun(ctx, run.id, err == nil, message, run.rec.clock.Now()); storeErr != nil {
		run.rec.warn("finish run failed", "run", run.name, "error", storeErr)
	}
}

// Step is one named unit of work inside a run.
type Step struct {
	run     *Run
	name    string
	started time.Time
}

// End appends the step row with its outcome and optional payload.
func (s *Step) End(ctx context.Context, err error, message string, payload map[string]any) {
	if s == nil || s.run == nil || s.run.rec == nil || s.run.rec.store == nil {
		return
	}

	rec := s.run.rec
	if message == "" && err != nil {
		message = err.Error()
	}

	now := rec.clock.Now()
	storeErr := rec.store.InsertStep(ctx, &domain.Step{
		RunID:      s.run.id,
		Name:       s.name,
		Success:    err == nil,
		Message:    message,
		Payload:    payload,
		StartedAt:  s.started,
		FinishedAt: now,
		Duration:   now.Sub(s.started),
	})
	if storeErr != nil {
		rec.warn("insert step failed", "step", s.name, "error", storeErr)
	}
}
