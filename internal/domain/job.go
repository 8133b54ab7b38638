package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus enumerates the job state machine:
// pending -> processing -> {completed | failed}.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Active reports whether the status still admits worker invocations.
// At most one job may be active at a time.
func (s JobStatus) Active() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

// Terminal reports whether the status is immutable.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one end-to-end ingestion run, persisted for audit and polled by
// the admin surface for progress.
type Job struct {
	ID               uuid.UUID
	Status           JobStatus
	Kind             string
	BatchSize        int
	TotalBatches     int
	CurrentBatch     int
	TotalSources     int
	ProcessedSources int
	ProcessedItems   int
	ErrorCount       int
	CurrentSource    string
	ErrorMessage     string
	Metadata         map[string]any
	StartedAt        *time.Time
	CompletedAt      *time.Time
	UpdatedAt        time.Time
	CreatedAt        time.Time
}

// JobProgress is the cumulative delta a worker invocation applies to its job
// after a batch loop finishes or exits early.
type JobProgress struct {
	ProcessedSources int
	ProcessedItems   int
	Errors           int
	CurrentSource    string
}

// BatchResult summarizes one worker invocation for the HTTP caller.
// NextBatch is set when a continuation was dispatched.
type BatchResult struct {
	Processed int
	Errors    int
	Duration  time.Duration
	NextBatch *int
}

// Source is a feed-bearing site owned by the admin application. The
// pipeline reads sources in fixed id order so that batch N always
// addresses the same slice.
type Source struct {
	ID       int64
	Title    string
	FeedURL  string
	Included bool
}

// FeedItem is one entry of a parsed RSS/Atom feed, in feed order.
type FeedItem struct {
	Title       string
	Link        string
	Description string
	PublishedAt *time.Time
}
