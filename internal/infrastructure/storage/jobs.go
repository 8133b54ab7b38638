package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

var _ ports.JobStore = (*Store)(nil)

const jobColumns = "id, status, kind, batch_size, total_batches, current_batch, " +
	"total_sources, processed_sources, processed_items, error_count, " +
	"current_source, error_message, metadata, started_at, completed_at, updated_at, created_at"

// CreateJob inserts a new job row, normally in pending status.
func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	if job.Metadata == nil {
		job.Metadata = map[string]any{}
	}

	query, args, err := psql.Insert("jobs").
		Columns("id", "status", "kind", "batch_size", "total_batches", "current_batch",
			"total_sources", "metadata").
		Values(job.ID, job.Status, job.Kind, job.BatchSize, job.TotalBatches, job.CurrentBatch,
			job.TotalSources, job.Metadata).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert job: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	return nil
}

// GetJob loads a job row or reports domain.ErrJobNotFound.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query, args, err := psql.Select(jobColumns).
		From("jobs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select job: %w", err)
	}

	job, err := s.scanJob(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}

	return job, nil
}

// FindActiveJob returns the pending or processing job, if any. The
// single-flight guard relies on at most one such row existing.
func (s *Store) FindActiveJob(ctx context.Context) (*domain.Job, error) {
	query, args, err := psql.Select(jobColumns).
		From("jobs").
		Where(sq.Eq{"status": []domain.JobStatus{domain.JobStatusPending, domain.JobStatusProcessing}}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select active job: %w", err)
	}

	job, err := s.scanJob(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select active job: %w", err)
	}

	return job, nil
}

// MarkProcessing transitions a pending job to processing.
func (s *Store) MarkProcessing(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	query, args, err := psql.Update("jobs").
		Set("status", domain.JobStatusProcessing).
		Set("started_at", startedAt).
		Set("updated_at", startedAt).
		Where(sq.Eq{"id": id, "status": domain.JobStatusPending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark processing: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

// AdvanceBatch moves the job's batch pointer forward. A zero-row update
// means a duplicate chain is behind the job and must stand down.
func (s *Store) AdvanceBatch(ctx context.Context, id uuid.UUID, batch int) error {
	query, args, err := psql.Update("jobs").
		Set("current_batch", batch).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": domain.JobStatusProcessing}).
		Where(sq.LtOrEq{"current_batch": batch}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build advance batch: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("advance batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleBatch
	}

	return nil
}

// UpdateProgress adds the invocation's counters to the cumulative ones.
func (s *Store) UpdateProgress(ctx context.Context, id uuid.UUID, delta domain.JobProgress) error {
	query, args, err := psql.Update("jobs").
		Set("processed_sources", sq.Expr("processed_sources + ?", delta.ProcessedSources)).
		Set("processed_items", sq.Expr("processed_items + ?", delta.ProcessedItems)).
		Set("error_count", sq.Expr("error_count + ?", delta.Errors)).
		Set("current_source", delta.CurrentSource).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update progress: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	return nil
}

// CompleteJob marks a processing job completed. Terminal rows stay put.
func (s *Store) CompleteJob(ctx context.Context, id uuid.UUID, at time.Time) error {
	query, args, err := psql.Update("jobs").
		Set("status", domain.JobStatusCompleted).
		Set("completed_at", at).
		Set("current_source", "").
		Set("updated_at", at).
		Where(sq.Eq{"id": id, "status": domain.JobStatusProcessing}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build complete job: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}

	return nil
}

// FailJob records the terminal failure with its message. Error text may
// still be amended on an already-failed job.
func (s *Store) FailJob(ctx context.Context, id uuid.UUID, message string) error {
	query, args, err := psql.Update("jobs").
		Set("status", domain.JobStatusFailed).
		Set("error_message", message).
		Set("completed_at", sq.Expr("NOW()")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": domain.JobStatusCompleted}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build fail job: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("fail job: %w", err)
	}

	return nil
}

func (s *Store) scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	err := row.Scan(
		&job.ID, &job.Status, &job.Kind, &job.BatchSize, &job.TotalBatches, &job.CurrentBatch,
		&job.TotalSources, &job.ProcessedSources, &job.ProcessedItems, &job.ErrorCount,
		&job.CurrentSource, &job.ErrorMessage, &job.Metadata,
		&job.StartedAt, &job.CompletedAt, &job.UpdatedAt, &job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
