package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

// Extractor derives metadata and readable text from fetched HTML.
type Extractor interface {
	Extract(rawHTML, pageURL string) (domain.Extraction, error)
}

// PipelineDeps wires all driven adapters into the per-article pipeline.
type PipelineDeps struct {
	Fetcher    ports.PageFetcher
	Extractor  Extractor
	Content    ports.ContentStore
	Summarizer *Summarizer
	Tagger     *Tagger
	Indexer    *Indexer
	Logger     *slog.Logger
}

// Pipeline composes extract -> summarize -> tag -> index for one article.
// Each enrichment stage is independently best-effort: a later stage's
// failure never rolls back an earlier stage's persisted result.
type Pipeline struct {
	fetcher    ports.PageFetcher
	extractor  Extractor
	content    ports.ContentStore
	summarizer *Summarizer
	tagger     *Tagger
	indexer    *Indexer
	logger     *slog.Logger
}

// ProcessResult reports what happened to one link. Enrichment errors are
// carried for observability; only structural failures surface as the
// Process error itself.
type ProcessResult struct {
	Item      *domain.ContentItem
	Duplicate bool
	Topics    []domain.Topic
	Windows   int

	SummaryErr error
	TagErr     error
	IndexErr   error
}

// NewPipeline constructs the enrichment pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		fetcher:    deps.Fetcher,
		extractor:  deps.Extractor,
		content:    deps.Content,
		summarizer: deps.Summarizer,
		tagger:     deps.Tagger,
		indexer:    deps.Indexer,
		logger:     deps.Logger,
	}
}

// Process ingests one feed entry for a source. Seeing a known link is
// a success that skips enrichment; an insert race on the unique link
// index resolves to the winner's row the same way.
func (p *Pipeline) Process(ctx context.Context, entry domain.FeedItem, sourceID int64) (ProcessResult, error) {
	link := entry.Link
	if err := validateScheme(link); err != nil {
		return ProcessResult{}, err
	}

	existing, err := p.content.GetItemByLink(ctx, link)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("check link: %w", err)
	}
	if existing != nil {
		return ProcessResult{Item: existing, Duplicate: true}, nil
	}

	rawHTML, err := p.fetcher.Fetch(ctx, link)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("fetch %s: %w", link, err)
	}

	extraction, err := p.extractor.Extract(rawHTML, link)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("extract %s: %w", link, err)
	}

	item := &domain.ContentItem{
		Link:        link,
		Title:       extraction.Title,
		Description: extraction.Description,
		Body:        extraction.Body,
		ImageURL:    extraction.ImageURL,
		Status:      domain.ContentStatusDraft,
		Indexed:     false,
		SourceID:    sourceID,
		PublishedAt: entry.PublishedAt,
	}

	stored, created, err := p.content.InsertItem(ctx, item)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("insert item: %w", err)
	}
	if !created {
		// Lost the insert race: another invocation already handled the link.
		return ProcessResult{Item: stored, Duplicate: true}, nil
	}

	result := ProcessResult{Item: stored}
	p.enrich(ctx, stored, &result)

	return result, nil
}

// enrich runs the best-effort stages in order. Failures are recorded on
// the result and logged, never propagated.
func (p *Pipeline) enrich(ctx context.Context, item *domain.ContentItem, result *ProcessResult) {
	if p.summarizer != nil {
		summary, err := p.summarizer.Summarize(ctx, item.Title, item.Body)
		if err != nil {
			result.SummaryErr = err
			p.warn("summarize failed", "link", item.Link, "error", err)
		} else if err := p.content.SetSummary(ctx, item.ID, summary); err != nil {
			result.SummaryErr = err
			p.warn("store summary failed", "link", item.Link, "error", err)
		} else {
			item.Summary = summary
			result.Item.Summary = summary
		}
	}

	if p.tagger != nil {
		topics, err := p.tagger.Tag(ctx, item.ID, item.Title, item.Body)
		if err != nil {
			result.TagErr = err
			p.warn("tagging failed", "link", item.Link, "error", err)
		} else {
			result.Topics = topics
		}
	}

	if p.indexer != nil {
		windows, err := p.indexer.Index(ctx, item)
		if err != nil {
			// indexed stays false; the unindexed sweep retries later.
			result.IndexErr = err
			p.warn("vector indexing failed", "link", item.Link, "error", err)
		} else {
			result.Windows = windows
			result.Item.Indexed = true
		}
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func validateScheme(link string) error {
	parsed, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("parse link %q: %w", link, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("link %q: %w", link, domain.ErrInvalidScheme)
	}
	return nil
}
