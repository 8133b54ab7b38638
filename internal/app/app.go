// Package app wires configuration, storage, clients, and use cases into
// a runnable service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MattKevan/uxlift-pipeline/internal/config"
	"github.com/MattKevan/uxlift-pipeline/internal/dispatch"
	"github.com/MattKevan/uxlift-pipeline/internal/infrastructure/extract"
	"github.com/MattKevan/uxlift-pipeline/internal/infrastructure/feed"
	"github.com/MattKevan/uxlift-pipeline/internal/infrastructure/fetch"
	"github.com/MattKevan/uxlift-pipeline/internal/infrastructure/llm"
	"github.com/MattKevan/uxlift-pipeline/internal/infrastructure/scheduler"
	"github.com/MattKevan/uxlift-pipeline/internal/infrastructure/storage"
	"github.com/MattKevan/uxlift-pipeline/internal/logging"
	"github.com/MattKevan/uxlift-pipeline/internal/server"
	"github.com/MattKevan/uxlift-pipeline/internal/steplog"
	"github.com/MattKevan/uxlift-pipeline/internal/usecase"
)

// Application owns the wired components and their lifecycle.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *storage.Store
	dispatcher *dispatch.Async
	ticker     *scheduler.Ticker
	httpServer *http.Server
}

// New builds the full dependency graph. The dispatcher is created first
// and bound to the worker afterwards because controller, worker, and
// dispatcher form a cycle.
func New(ctx context.Context, cfg config.Config) (*Application, error) {
	logger := logging.New(cfg.Logging.Level)

	store, err := storage.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	llmClient := llm.NewClient(cfg.OpenAI)
	fetcher := fetch.NewFetcher(httpClient, cfg.Pipeline.UserAgent)
	extractor := extract.NewExtractor()
	feeds := feed.NewParser(httpClient, cfg.Pipeline.UserAgent)

	recorder := steplog.NewRecorder(store, nil, logger.With("component", "steplog"))

	summarizer := usecase.NewSummarizer(llmClient, cfg.Pipeline.SummaryWords)
	tagger := usecase.NewTagger(llmClient, store, cfg.Pipeline.MaxTopics)
	indexer := usecase.NewIndexer(usecase.IndexerDeps{
		Embedder: llmClient,
		Vectors:  store,
		Content:  store,
		Logger:   logger.With("component", "indexer"),
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Fetcher:    fetcher,
		Extractor:  extractor,
		Content:    store,
		Summarizer: summarizer,
		Tagger:     tagger,
		Indexer:    indexer,
		Logger:     logger.With("component", "pipeline"),
	})

	dispatcher := dispatch.NewAsync(2*cfg.Pipeline.WorkerBudget.Std(), logger.With("component", "dispatch"))

	worker := usecase.NewWorker(usecase.WorkerDeps{
		Jobs:        store,
		Sources:     store,
		Feeds:       feeds,
		Pipeline:    pipeline,
		Dispatcher:  dispatcher,
		Steps:       recorder,
		Logger:      logger.With("component", "worker"),
		BatchSize:   cfg.Pipeline.BatchSize,
		Budget:      cfg.Pipeline.WorkerBudget.Std(),
		ItemDelay:   cfg.Pipeline.ItemDelay.Std(),
		SourceDelay: cfg.Pipeline.SourceDelay.Std(),
	})
	dispatcher.Bind(func(ctx context.Context, jobID uuid.UUID, batch int) error {
		_, err := worker.RunBatch(ctx, jobID, batch)
		return err
	})

	controller := usecase.NewController(usecase.ControllerDeps{
		Jobs:       store,
		Sources:    store,
		Dispatcher: dispatcher,
		Logger:     logger.With("component", "controller"),
		BatchSize:  cfg.Pipeline.BatchSize,
	})

	srv := server.New(server.Deps{
		Controller: controller,
		Worker:     worker,
		Indexer:    indexer,
		Jobs:       store,
		Logger:     logger.With("component", "server"),
	})

	app := &Application{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		dispatcher: dispatcher,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	if cfg.Scheduler.Enabled {
		app.ticker = scheduler.NewTicker(cfg.Scheduler.Interval.Std(), logger.With("component", "scheduler"))
		app.ticker.Start(ctx, func(ctx context.Context) error {
			_, err := controller.StartOrResume(ctx, nil)
			return err
		})
	}

	return app, nil
}

// Run serves HTTP until the context is canceled, then drains in-flight
// batch continuations before closing the database pool.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}

	if a.ticker != nil {
		a.ticker.Stop()
	}
	a.dispatcher.Wait()
	a.store.Close()

	return nil
}
