package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

// ControllerDeps wires the job controller's collaborators.
type ControllerDeps struct {
	Jobs       ports.JobStore
	Sources    ports.SourceStore
	Dispatcher ports.Dispatcher
	Clock      ports.Clock
	Logger     *slog.Logger
	BatchSize  int
}

// Controller creates ingestion jobs and fires the first worker
// invocation. It enforces the single-flight guard: at most one job may
// be pending or processing at a time.
type Controller struct {
	jobs       ports.JobStore
	sources    ports.SourceStore
	dispatcher ports.Dispatcher
	clock      ports.Clock
	logger     *slog.Logger
	batchSize  int
}

// JobSummary is the controller's answer to a start/resume request.
type JobSummary struct {
	JobID        uuid.UUID
	Status       domain.JobStatus
	TotalSources int
	TotalBatches int
}

// NewController constructs the job controller.
func NewController(deps ControllerDeps) *Controller {
	clock := deps.Clock
	if clock == nil {
		clock = ports.ClockFunc(time.Now)
	}
	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	return &Controller{
		jobs:       deps.Jobs,
		sources:    deps.Sources,
		dispatcher: deps.Dispatcher,
		clock:      clock,
		logger:     deps.Logger,
		batchSize:  batchSize,
	}
}

// StartOrResume creates and starts a fresh job, or resumes an existing
// one. With an explicit id the job is loaded and, if still processing,
// its current batch is re-dispatched (crash resume). Otherwise an
// active job short-circuits the call with domain.ErrJobAlreadyRunning
// and no new row is created.
func (c *Controller) StartOrResume(ctx context.Context, existingID *uuid.UUID) (JobSummary, error) {
	if existingID != nil {
		return c.resume(ctx, *existingID)
	}

	active, err := c.jobs.FindActiveJob(ctx)
	if err != nil {
		return JobSummary{}, fmt.Errorf("check for active job: %w", err)
	}
	if active != nil {
		return summarize(active), domain.ErrJobAlreadyRunning
	}

	count, err := c.sources.CountIncluded(ctx)
	if err != nil {
		return JobSummary{}, fmt.Errorf("count sources: %w", err)
	}

	totalBatches := (count + c.batchSize - 1) / c.batchSize

	job := &domain.Job{
		ID:           uuid.New(),
		Status:       domain.JobStatusPending,
		Kind:         "feed-ingest",
		BatchSize:    c.batchSize,
		TotalBatches: totalBatches,
		TotalSources: count,
	}

	if err := c.jobs.CreateJob(ctx, job); err != nil {
		return JobSummary{}, fmt.Errorf("create job: %w", err)
	}

	// No rollback on later failures: a stuck pending/processing row is a
	// recognized failure mode surfaced to operators, not silently erased.
	if err := c.jobs.MarkProcessing(ctx, job.ID, c.clock.Now()); err != nil {
		return JobSummary{}, fmt.Errorf("mark job processing: %w", err)
	}
	job.Status = domain.JobStatusProcessing

	c.dispatcher.DispatchBatch(job.ID, 0)
	if c.logger != nil {
		c.logger.Info("job started", "job", job.ID, "sources", count, "batches", totalBatches)
	}

	return summarize(job), nil
}

func (c *Controller) resume(ctx context.Context, id uuid.UUID) (JobSummary, error) {
	job, err := c.jobs.GetJob(ctx, id)
	if err != nil {
		return JobSummary{}, err
	}

	if job.Status == domain.JobStatusProcessing {
		c.dispatcher.DispatchBatch(job.ID, job.CurrentBatch)
		if c.logger != nil {
			c.logger.Info("job resumed", "job", job.ID, "batch", job.CurrentBatch)
		}
	}

	return summarize(job), nil
}

func summarize(job *domain.Job) JobSummary {
	return JobSummary{
		JobID:        job.ID,
		Status:       job.Status,
		TotalSources: job.TotalSources,
		TotalBatches: job.TotalBatches,
	}
}
