// Package scheduler triggers ingestion runs on a fixed interval. It is
// deliberately simple: the single-flight guard in the controller makes
// an overlapping trigger a harmless no-op.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Ticker fires a trigger function on a fixed interval.
type Ticker struct {
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewTicker builds the interval scheduler.
func NewTicker(interval time.Duration, logger *slog.Logger) *Ticker {
	return &Ticker{interval: interval, logger: logger}
}

// Start begins ticking in a background goroutine. The first trigger
// fires after one full interval, not immediately.
func (t *Ticker) Start(ctx context.Context, trigger func(context.Context) error) {
	if trigger == nil || t.stop != nil {
		return
	}

	t.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := trigger(ctx); err != nil && t.logger != nil {
					t.logger.Warn("scheduled run not started", "error", err)
				}
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			}
		}
	}()
}

// Stop halts the ticker goroutine.
func (t *Ticker) Stop() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop = nil
}
