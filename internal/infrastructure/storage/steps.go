package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

var _ ports.StepStore = (*Store)(nil)

// InsertRun opens a run row in the execution trace.
func (s *Store) InsertRun(ctx context.Context, run *domain.StepRun) error {
	query, args, err := psql.Insert("step_runs").
		Columns("id", "job_id", "name", "started_at").
		Values(run.ID, run.JobID, run.Name, run.StartedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert run: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

// FinishRun closes a run row with its outcome.
func (s *Store) FinishRun(ctx context.Context, id uuid.UUID, success bool, message string, at time.Time) error {
	query, args, err := psql.Update("step_runs").
		Set("success", success).
		Set("message", message).
		Set("finished_at", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build finish run: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	return nil
}

// InsertStep appends one child step row. The trace is never updated in
// place beyond closing its run.
func (s *Store) InsertStep(ctx context.Context, step *domain.Step) error {
	if step.Payload == nil {
		step.Payload = map[string]any{}
	}

	query, args, err := psql.Insert("steps").
		Columns("run_id", "name", "success", "message", "payload", "started_at", "finished_at", "duration_ms").
		Values(step.RunID, step.Name, step.Success, step.Message, step.Payload,
			step.StartedAt, step.FinishedAt, step.Duration.Milliseconds()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert step: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert step: %w", err)
	}

	return nil
}
