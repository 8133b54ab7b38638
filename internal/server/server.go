// Package server exposes the pipeline's HTTP entry points. The routes
// mirror the controller/worker split: the controller route starts or
// resumes a job, the worker route runs exactly one batch.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
	"github.com/MattKevan/uxlift-pipeline/internal/usecase"
)

// Deps wires the HTTP layer to the use cases.
type Deps struct {
	Controller *usecase.Controller
	Worker     *usecase.Worker
	Indexer    *usecase.Indexer
	Jobs       ports.JobStore
	Logger     *slog.Logger
}

// Server is the chi router plus its collaborators.
type Server struct {
	controller *usecase.Controller
	worker     *usecase.Worker
	indexer    *usecase.Indexer
	jobs       ports.JobStore
	logger     *slog.Logger
	router     chi.Router
}

// New builds the router with its middleware stack.
func New(deps Deps) *Server {
	s := &Server{
		controller: deps.Controller,
		worker:     deps.Worker,
		indexer:    deps.Indexer,
		jobs:       deps.Jobs,
		logger:     deps.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Post("/controller", s.handleController)
	r.Post("/worker", s.handleWorker)
	r.Get("/jobs/{id}", s.handleGetJob)
	r.Post("/indexer/sweep", s.handleSweep)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type controllerRequest struct {
	JobID  *uuid.UUID `json:"job_id,omitempty"`
	IsCron bool       `json:"is_cron,omitempty"`
}

type controllerResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	JobID        string `json:"job_id,omitempty"`
	JobStatus    string `json:"job_status,omitempty"`
	TotalSites   int    `json:"total_sites,omitempty"`
	TotalBatches int    `json:"total_batches,omitempty"`
}

func (s *Server) handleController(w http.ResponseWriter, r *http.Request) {
	var req controllerRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, controllerResponse{Success: false, Message: err.Error()})
		return
	}

	summary, err := s.controller.StartOrResume(r.Context(), req.JobID)
	switch {
	case errors.Is(err, domain.ErrJobAlreadyRunning):
		writeJSON(w, http.StatusConflict, controllerResponse{
			Success: false,
			Message: "Another job is already running",
			JobID:   summary.JobID.String(),
		})
		return
	case errors.Is(err, domain.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, controllerResponse{Success: false, Message: "job not found"})
		return
	case err != nil:
		s.logError(r, "controller failed", err)
		writeJSON(w, http.StatusInternalServerError, controllerResponse{Success: false, Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, controllerResponse{
		Success:      true,
		JobID:        summary.JobID.String(),
		JobStatus:    string(summary.Status),
		TotalSites:   summary.TotalSources,
		TotalBatches: summary.TotalBatches,
	})
}

type workerRequest struct {
	JobID       *uuid.UUID `json:"job_id"`
	BatchNumber *int       `json:"batch_number"`
}

type workerResults struct {
	Processed  int    `json:"processed"`
	Errors     int    `json:"errors"`
	DurationMS int64  `json:"duration_ms"`
	NextBatch  *int   `json:"next_batch,omitempty"`
	Message    string `json:"message,omitempty"`
}

type workerResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Results *workerResults `json:"results,omitempty"`
}

func (s *Server) handleWorker(w http.ResponseWriter, r *http.Request) {
	var req workerRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, workerResponse{Success: false, Message: err.Error()})
		return
	}
	if req.JobID == nil || req.BatchNumber == nil {
		writeJSON(w, http.StatusBadRequest, workerResponse{Success: false, Message: "job_id and batch_number are required"})
		return
	}

	result, err := s.worker.RunBatch(r.Context(), *req.JobID, *req.BatchNumber)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, workerResponse{Success: false, Message: "job not found"})
		return
	case errors.Is(err, domain.ErrStaleBatch):
		writeJSON(w, http.StatusConflict, workerResponse{Success: false, Message: err.Error()})
		return
	case err != nil:
		s.logError(r, "worker batch failed", err)
		writeJSON(w, http.StatusInternalServerError, workerResponse{Success: false, Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, workerResponse{
		Success: true,
		Results: &workerResults{
			Processed:  result.Processed,
			Errors:     result.Errors,
			DurationMS: result.Duration.Milliseconds(),
			NextBatch:  result.NextBatch,
		},
	})
}

type jobResponse struct {
	ID               string         `json:"id"`
	Status           string         `json:"status"`
	Kind             string         `json:"kind"`
	TotalSources     int            `json:"total_sources"`
	ProcessedSources int            `json:"processed_sources"`
	ProcessedItems   int            `json:"processed_items"`
	ErrorCount       int            `json:"error_count"`
	CurrentBatch     int            `json:"current_batch"`
	TotalBatches     int            `json:"total_batches"`
	CurrentSource    string         `json:"current_source,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid job id"})
		return
	}

	job, err := s.jobs.GetJob(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "job not found"})
		return
	case err != nil:
		s.logError(r, "load job failed", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, jobResponse{
		ID:               job.ID.String(),
		Status:           string(job.Status),
		Kind:             job.Kind,
		TotalSources:     job.TotalSources,
		ProcessedSources: job.ProcessedSources,
		ProcessedItems:   job.ProcessedItems,
		ErrorCount:       job.ErrorCount,
		CurrentBatch:     job.CurrentBatch,
		TotalBatches:     job.TotalBatches,
		CurrentSource:    job.CurrentSource,
		ErrorMessage:     job.ErrorMessage,
		Metadata:         job.Metadata,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	})
}

type sweepRequest struct {
	Limit int `json:"limit,omitempty"`
}

type sweepResponse struct {
	Success bool   `json:"success"`
	Indexed int    `json:"indexed"`
	Failed  int    `json:"failed"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, sweepResponse{Success: false, Message: err.Error()})
		return
	}

	indexed, failed, err := s.indexer.ProcessUnindexed(r.Context(), req.Limit)
	if err != nil {
		s.logError(r, "unindexed sweep failed", err)
		writeJSON(w, http.StatusInternalServerError, sweepResponse{Success: false, Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, sweepResponse{Success: true, Indexed: indexed, Failed: failed})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logError(r *http.Request, msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
}

// decodeBody tolerates an empty body so triggers can be fired with a
// bare POST.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
