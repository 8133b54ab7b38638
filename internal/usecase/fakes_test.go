package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

// manualClock is advanced explicitly by the test (or by a fake that
// simulates slow work).
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// steppingClock advances by a fixed step on every Now call.
type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newSteppingClock(step time.Duration) *steppingClock {
	return &steppingClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), step: step}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job

	createErr error
	staleErr  bool
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[uuid.UUID]*domain.Job{}}
}

var _ ports.JobStore = (*fakeJobStore)(nil)

func (f *fakeJobStore) CreateJob(_ context.Context, job *domain.Job) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobStore) GetJob(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobStore) FindActiveJob(_ context.Context) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.Status.Active() {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeJobStore) MarkProcessing(_ context.Context, id uuid.UUID, startedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status = domain.JobStatusProcessing
	job.StartedAt = &startedAt
	return nil
}

func (f *fakeJobStore) AdvanceBatch(_ context.Context, id uuid.UUID, batch int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.staleErr {
		return domain.ErrStaleBatch
	}
	job, ok := f.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.CurrentBatch > batch {
		return domain.ErrStaleBatch
	}
	job.CurrentBatch = batch
	return nil
}

func (f *fakeJobStore) UpdateProgress(_ context.Context, id uuid.UUID, delta domain.JobProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.ProcessedSources += delta.ProcessedSources
	job.ProcessedItems += delta.ProcessedItems
	job.ErrorCount += delta.Errors
	if delta.CurrentSource != "" {
		job.CurrentSource = delta.CurrentSource
	}
	return nil
}

func (f *fakeJobStore) CompleteJob(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status = domain.JobStatusCompleted
	job.CompletedAt = &at
	return nil
}

func (f *fakeJobStore) FailJob(_ context.Context, id uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = message
	return nil
}

func (f *fakeJobStore) mustGet(id uuid.UUID) domain.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.jobs[id]
}

type fakeSourceStore struct {
	sources    []domain.Source
	listOffset []int
}

var _ ports.SourceStore = (*fakeSourceStore)(nil)

func (f *fakeSourceStore) CountIncluded(context.Context) (int, error) {
	n := 0
	for _, s := range f.sources {
		if s.Included {
			n++
		}
	}
	return n, nil
}

func (f *fakeSourceStore) ListBatch(_ context.Context, offset, limit int) ([]domain.Source, error) {
	f.listOffset = append(f.listOffset, offset)
	var included []domain.Source
	for _, s := range f.sources {
		if s.Included {
			included = append(included, s)
		}
	}
	if offset >= len(included) {
		return nil, nil
	}
	end := offset + limit
	if end > len(included) {
		end = len(included)
	}
	return included[offset:end], nil
}

type fakeContentStore struct {
	mu     sync.Mutex
	nextID int64
	byLink map[string]*domain.ContentItem

	summaries map[int64]string
	indexed   map[int64]bool
	unindexed []domain.ContentItem

	// raceOnInsert makes InsertItem behave as if another invocation won
	// the unique-link race between the caller's lookup and its insert.
	raceOnInsert bool

	lookupErr  error
	markErr    error
	summaryErr error
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{
		byLink:    map[string]*domain.ContentItem{},
		summaries: map[int64]string{},
		indexed:   map[int64]bool{},
	}
}

var _ ports.ContentStore = (*fakeContentStore)(nil)

func (f *fakeContentStore) GetItemByLink(_ context.Context, link string) (*domain.ContentItem, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.byLink[link]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (f *fakeContentStore) InsertItem(_ context.Context, item *domain.ContentItem) (*domain.ContentItem, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.byLink[item.Link]; ok {
		copied := *existing
		return &copied, false, nil
	}
	if f.raceOnInsert {
		f.raceOnInsert = false
		f.nextID++
		winner := *item
		winner.ID = f.nextID
		f.byLink[item.Link] = &winner
		copied := winner
		return &copied, false, nil
	}

	f.nextID++
	stored := *item
	stored.ID = f.nextID
	f.byLink[item.Link] = &stored
	copied := stored
	return &copied, true, nil
}

func (f *fakeContentStore) SetSummary(_ context.Context, id int64, summary string) error {
	if f.summaryErr != nil {
		return f.summaryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries[id] = summary
	return nil
}

func (f *fakeContentStore) MarkIndexed(_ context.Context, id int64, indexed bool) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed[id] = indexed
	return nil
}

func (f *fakeContentStore) ListUnindexed(_ context.Context, limit int) ([]domain.ContentItem, error) {
	if limit > len(f.unindexed) {
		limit = len(f.unindexed)
	}
	return f.unindexed[:limit], nil
}

type fakeTopicStore struct {
	topics []domain.Topic

	mu       sync.Mutex
	replaced [][]int64
	listErr  error
}

var _ ports.TopicStore = (*fakeTopicStore)(nil)

func (f *fakeTopicStore) ListTopics(context.Context) ([]domain.Topic, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.topics, nil
}

func (f *fakeTopicStore) ReplaceAssignments(_ context.Context, _ int64, topicIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = append(f.replaced, topicIDs)
	return nil
}

func (f *fakeTopicStore) lastReplaced() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replaced) == 0 {
		return nil
	}
	return f.replaced[len(f.replaced)-1]
}

type fakeVectorStore struct {
	mu      sync.Mutex
	windows map[int64][]domain.VectorWindow
	deletes int
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{windows: map[int64][]domain.VectorWindow{}}
}

var _ ports.VectorStore = (*fakeVectorStore)(nil)

func (f *fakeVectorStore) DeleteWindows(_ context.Context, contentID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.windows, contentID)
	return nil
}

func (f *fakeVectorStore) UpsertWindow(_ context.Context, window domain.VectorWindow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows[window.ContentID] = append(f.windows[window.ContentID], window)
	return nil
}

// completerFunc adapts a function to ports.Completer.
type completerFunc func(ctx context.Context, system, user string) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// embedderFunc adapts a function to ports.Embedder.
type embedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// fetcherFunc adapts a function to ports.PageFetcher.
type fetcherFunc func(ctx context.Context, pageURL string) (string, error)

func (f fetcherFunc) Fetch(ctx context.Context, pageURL string) (string, error) {
	return f(ctx, pageURL)
}

// extractorFunc adapts a function to the pipeline's Extractor.
type extractorFunc func(rawHTML, pageURL string) (domain.Extraction, error)

func (f extractorFunc) Extract(rawHTML, pageURL string) (domain.Extraction, error) {
	return f(rawHTML, pageURL)
}

type fakeFeedParser struct {
	feeds map[string][]domain.FeedItem
	errs  map[string]error
}

var _ ports.FeedParser = (*fakeFeedParser)(nil)

func (f *fakeFeedParser) Parse(_ context.Context, feedURL string) ([]domain.FeedItem, error) {
	if err, ok := f.errs[feedURL]; ok {
		return nil, err
	}
	items, ok := f.feeds[feedURL]
	if !ok {
		return nil, fmt.Errorf("unknown feed %s", feedURL)
	}
	return items, nil
}

type dispatchCall struct {
	jobID uuid.UUID
	batch int
}

// recordDispatcher records dispatches without running anything.
type recordDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

var _ ports.Dispatcher = (*recordDispatcher)(nil)

func (d *recordDispatcher) DispatchBatch(jobID uuid.UUID, batch int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{jobID: jobID, batch: batch})
}

func (d *recordDispatcher) all() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchCall(nil), d.calls...)
}

// passthroughExtractor returns the raw HTML as the body with a fixed title.
func passthroughExtractor() extractorFunc {
	return func(rawHTML, pageURL string) (domain.Extraction, error) {
		return domain.Extraction{Title: "t", Body: rawHTML}, nil
	}
}
