package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
	"github.com/MattKevan/uxlift-pipeline/internal/steplog"
)

// WorkerDeps wires the batch worker's collaborators.
type WorkerDeps struct {
	Jobs       ports.JobStore
	Sources    ports.SourceStore
	Feeds      ports.FeedParser
	Pipeline   *Pipeline
	Dispatcher ports.Dispatcher
	Steps      *steplog.Recorder
	Clock      ports.Clock
	Logger     *slog.Logger

	BatchSize   int
	Budget      time.Duration
	ItemDelay   time.Duration
	SourceDelay time.Duration
}

// Worker processes one deterministic batch of sources per invocation,
// updates the job row, and hands the next batch to the dispatcher
// without waiting for it.
type Worker struct {
	jobs       ports.JobStore
	sources    ports.SourceStore
	feeds      ports.FeedParser
	pipeline   *Pipeline
	dispatcher ports.Dispatcher
	steps      *steplog.Recorder
	clock      ports.Clock
	logger     *slog.Logger

	batchSize   int
	budget      time.Duration
	itemDelay   time.Duration
	sourceDelay time.Duration
}

// NewWorker constructs the batch worker.
func NewWorker(deps WorkerDeps) *Worker {
	clock := deps.Clock
	if clock == nil {
		clock = ports.ClockFunc(time.Now)
	}
	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}
	budget := deps.Budget
	if budget <= 0 {
		budget = 45 * time.Second
	}

	return &Worker{
		jobs:        deps.Jobs,
		sources:     deps.Sources,
		feeds:       deps.Feeds,
		pipeline:    deps.Pipeline,
		dispatcher:  deps.Dispatcher,
		steps:       deps.Steps,
		clock:       clock,
		logger:      deps.Logger,
		batchSize:   batchSize,
		budget:      budget,
		itemDelay:   deps.ItemDelay,
		sourceDelay: deps.SourceDelay,
	}
}

// RunBatch executes one worker invocation over the batch's source slice.
// Item- and source-level failures are counted and skipped; structural
// failures mark the job failed and stop the continuation chain.
func (w *Worker) RunBatch(ctx context.Context, jobID uuid.UUID, batch int) (domain.BatchResult, error) {
	start := w.clock.Now()

	job, err := w.jobs.GetJob(ctx, jobID)
	if err != nil {
		return domain.BatchResult{}, err
	}
	if job.Status.Terminal() {
		return domain.BatchResult{}, fmt.Errorf("job %s is %s: %w", jobID, job.Status, domain.ErrStaleBatch)
	}

	// Fencing token: a duplicate chain running an older batch stands down here.
	if err := w.jobs.AdvanceBatch(ctx, jobID, batch); err != nil {
		return domain.BatchResult{}, err
	}

	run := w.steps.Begin(ctx, jobID, fmt.Sprintf("worker-batch-%d", batch))

	sources, err := w.sources.ListBatch(ctx, batch*w.batchSize, w.batchSize)
	if err != nil {
		err = fmt.Errorf("load batch %d sources: %w", batch, err)
		w.failJob(ctx, jobID, err)
		run.Finish(ctx, err)
		return domain.BatchResult{}, err
	}

	progress, budgetHit := w.processSources(ctx, run, jobID, sources, start)

	if err := w.jobs.UpdateProgress(ctx, jobID, progress); err != nil {
		err = fmt.Errorf("update job progress: %w", err)
		w.failJob(ctx, jobID, err)
		run.Finish(ctx, err)
		return domain.BatchResult{}, err
	}

	result := domain.BatchResult{
		Processed: progress.ProcessedItems,
		Errors:    progress.Errors,
		Duration:  w.clock.Now().Sub(start),
	}

	if budgetHit {
		// The batch is not complete. Re-dispatch the same batch when this
		// invocation made progress: already-handled links are skipped
		// cheaply on the rerun. With zero progress a rerun would spin, so
		// the job fails instead.
		if progress.ProcessedItems == 0 && progress.Errors == 0 {
			err := fmt.Errorf("batch %d: %w", batch, domain.ErrBudgetExceeded)
			w.failJob(ctx, jobID, err)
			run.Finish(ctx, err)
			return result, err
		}

		next := batch
		result.NextBatch = &next
		w.dispatcher.DispatchBatch(jobID, next)
		run.Finish(ctx, nil)
		w.info("budget exhausted, batch re-dispatched", "job", jobID, "batch", batch, "processed", result.Processed)
		return result, nil
	}

	lastBatch := batch >= job.TotalBatches-1 || len(sources) < w.batchSize
	if lastBatch {
		if err := w.jobs.CompleteJob(ctx, jobID, w.clock.Now()); err != nil {
			err = fmt.Errorf("complete job: %w", err)
			run.Finish(ctx, err)
			return result, err
		}
		run.Finish(ctx, nil)
		w.info("job completed", "job", jobID, "batch", batch, "processed", result.Processed, "errors", result.Errors)
		return result, nil
	}

	next := batch + 1
	result.NextBatch = &next
	w.dispatcher.DispatchBatch(jobID, next)
	run.Finish(ctx, nil)
	w.info("batch done, continuation dispatched", "job", jobID, "batch", batch, "next", next)

	return result, nil
}

// processSources walks the slice in id order, routing unseen feed items
// through the pipeline until the slice or the wall-clock budget runs out.
func (w *Worker) processSources(ctx context.Context, run *steplog.Run, jobID uuid.UUID, sources []domain.Source, start time.Time) (domain.JobProgress, bool) {
	var progress domain.JobProgress

	for _, src := range sources {
		if w.elapsed(start) > w.budget {
			return progress, true
		}

		if src.FeedURL == "" {
			progress.ProcessedSources++
			continue
		}

		progress.CurrentSource = src.Title
		// Current-source pointer is observability only; a failed update
		// must not stop the batch.
		if err := w.jobs.UpdateProgress(ctx, jobID, domain.JobProgress{CurrentSource: src.Title}); err != nil {
			w.warn("update current source", "source", src.Title, "error", err)
		}

		step := run.Step("parse-feed")
		items, err := w.feeds.Parse(ctx, src.FeedURL)
		if err != nil {
			progress.Errors++
			progress.ProcessedSources++
			step.End(ctx, err, "", map[string]any{"source_id": src.ID, "feed_url": src.FeedURL})
			w.warn("feed parse failed", "source", src.Title, "error", err)
			continue
		}
		step.End(ctx, nil, "", map[string]any{"source_id": src.ID, "items": len(items)})

		for _, item := range items {
			if w.elapsed(start) > w.budget {
				return progress, true
			}

			result, err := w.pipeline.Process(ctx, item, src.ID)
			switch {
			case err != nil:
				progress.Errors++
				w.warn("item failed", "link", item.Link, "error", err)
			case result.Duplicate:
				// Already handled by an earlier run; not counted.
			default:
				progress.ProcessedItems++
			}

			w.sleep(ctx, w.itemDelay)
		}

		progress.ProcessedSources++
		w.sleep(ctx, w.sourceDelay)
	}

	return progress, false
}

func (w *Worker) elapsed(start time.Time) time.Duration {
	return w.clock.Now().Sub(start)
}

// sleep is a courtesy pause between network-heavy operations.
func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (w *Worker) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	if err := w.jobs.FailJob(ctx, jobID, cause.Error()); err != nil {
		w.warn("mark job failed", "job", jobID, "error", err)
	}
}

func (w *Worker) info(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Info(msg, args...)
	}
}

func (w *Worker) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
