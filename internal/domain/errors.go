package domain

import "errors"

// Error kinds callers branch on with errors.Is. Stage-local failures are
// recovered where they occur; only structural failures propagate.
var (
	// ErrJobNotFound is returned when a job id does not resolve to a row.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyRunning is the single-flight guard: a job is already
	// pending or processing, so no new job was created.
	ErrJobAlreadyRunning = errors.New("another job is already running")

	// ErrStaleBatch means a duplicate worker chain tried to run a batch
	// the job has already advanced past.
	ErrStaleBatch = errors.New("stale batch invocation")

	// ErrInvalidScheme rejects non-http(s) item links.
	ErrInvalidScheme = errors.New("link scheme must be http or https")

	// ErrEmptyCompletion means the completion service returned no usable text.
	ErrEmptyCompletion = errors.New("completion service returned empty text")

	// ErrNoTopicsMatched means none of the suggested topic names survived
	// validation against the vocabulary.
	ErrNoTopicsMatched = errors.New("no suggested topics matched the vocabulary")

	// ErrBudgetExceeded means the wall-clock budget ran out before the
	// batch made any progress.
	ErrBudgetExceeded = errors.New("execution budget exceeded")
)
