// Package dispatch fires worker continuations without blocking the
// invocation that requested them. In the stateless-function original
// this was an HTTP self-invocation; in a long-running process a
// detached goroutine preserves the same observable contract: the job
// row advances batch by batch and is resumable from the last persisted
// batch number.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

// Async dispatches each batch on its own goroutine with a fresh context,
// so the continuation outlives the HTTP request that spawned it.
type Async struct {
	run     func(ctx context.Context, jobID uuid.UUID, batch int) error
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

var _ ports.Dispatcher = (*Async)(nil)

// NewAsync wires the worker entry point. The run function is late-bound
// because worker and dispatcher reference each other.
func NewAsync(timeout time.Duration, logger *slog.Logger) *Async {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Async{timeout: timeout, logger: logger}
}

// Bind sets the continuation target. Must be called once before any
// dispatch; the app wires it during startup.
func (a *Async) Bind(run func(ctx context.Context, jobID uuid.UUID, batch int) error) {
	a.run = run
}

// DispatchBatch schedules the batch and returns immediately. The caller
// never waits for the continuation.
func (a *Async) DispatchBatch(jobID uuid.UUID, batch int) {
	if a.run == nil {
		if a.logger != nil {
			a.logger.Error("dispatcher has no bound worker", "job", jobID, "batch", batch)
		}
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.run(ctx, jobID, batch); err != nil && a.logger != nil {
			a.logger.Error("continuation failed", "job", jobID, "batch", batch, "error", err)
		}
	}()
}

// Wait blocks until in-flight continuations drain. Used during shutdown
// and in tests.
func (a *Async) Wait() {
	a.wg.Wait()
}
