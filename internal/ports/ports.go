package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
)

// JobStore persists the single shared mutable resource of the pipeline.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	// FindActiveJob returns the pending/processing job, or nil when none exists.
	FindActiveJob(ctx context.Context) (*domain.Job, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	// AdvanceBatch is the per-batch fencing token: it refuses to move the
	// job backwards and returns domain.ErrStaleBatch for duplicate chains.
	AdvanceBatch(ctx context.Context, id uuid.UUID, batch int) error
	// UpdateProgress adds the invocation's counters to the job's cumulative ones.
	UpdateProgress(ctx context.Context, id uuid.UUID, delta domain.JobProgress) error
	CompleteJob(ctx context.Context, id uuid.UUID, at time.Time) error
	FailJob(ctx context.Context, id uuid.UUID, message string) error
}

// SourceStore reads feed-bearing sites owned by the admin application.
type SourceStore interface {
	CountIncluded(ctx context.Context) (int, error)
	// ListBatch returns included sources ordered by id, so a batch number
	// always addresses the same slice.
	ListBatch(ctx context.Context, offset, limit int) ([]domain.Source, error)
}

// ContentStore persists ingested articles. Link uniqueness is the
// pipeline's sole idempotency key.
type ContentStore interface {
	// GetItemByLink returns (nil, nil) when the link is unseen.
	GetItemByLink(ctx context.Context, link string) (*domain.ContentItem, error)
	// InsertItem creates the item or, when the unique-link constraint
	// fires, returns the existing row with created=false.
	InsertItem(ctx context.Context, item *domain.ContentItem) (stored *domain.ContentItem, created bool, err error)
	SetSummary(ctx context.Context, id int64, summary string) error
	MarkIndexed(ctx context.Context, id int64, indexed bool) error
	ListUnindexed(ctx context.Context, limit int) ([]domain.ContentItem, error)
}

// TopicStore reads the tagging vocabulary and replaces assignments wholesale.
type TopicStore interface {
	ListTopics(ctx context.Context) ([]domain.Topic, error)
	// ReplaceAssignments deletes all assignments for the item and inserts
	// the given set, which may be empty.
	ReplaceAssignments(ctx context.Context, contentID int64, topicIDs []int64) error
}

// VectorStore holds embedded content windows keyed by (content id, index).
type VectorStore interface {
	DeleteWindows(ctx context.Context, contentID int64) error
	UpsertWindow(ctx context.Context, window domain.VectorWindow) error
}

// StepStore records the append-only execution trace.
type StepStore interface {
	InsertRun(ctx context.Context, run *domain.StepRun) error
	FinishRun(ctx context.Context, id uuid.UUID, success bool, message string, at time.Time) error
	InsertStep(ctx context.Context, step *domain.Step) error
}

// Completer sends a prompt pair to a text-completion service.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// FeedParser fetches and parses an RSS/Atom feed, tolerating the
// malformed XML external publishers produce.
type FeedParser interface {
	Parse(ctx context.Context, feedURL string) ([]domain.FeedItem, error)
}

// PageFetcher downloads an article page as decoded UTF-8 HTML.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Dispatcher fires the next worker invocation without blocking the
// caller. The current invocation never waits for the continuation.
type Dispatcher interface {
	DispatchBatch(jobID uuid.UUID, batch int)
}

// Clock is injected so the wall-clock budget is testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }
