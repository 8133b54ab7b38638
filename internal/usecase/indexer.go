package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

// Window-size tiers by cleaned content length, in runes. Short articles
// get fine-grained retrieval chunks; long ones use bigger windows so the
// window count stays bounded.
const (
	shortContentLimit  = 2000
	mediumContentLimit = 8000

	shortWindowSize  = 500
	shortOverlap     = 50
	mediumWindowSize = 1000
	mediumOverlap    = 100
	longWindowSize   = 2000
	longOverlap      = 200
)

// Indexer splits an item's cleaned text into overlapping windows, embeds
// each one, and replaces the item's window set in the vector store.
type Indexer struct {
	embedder ports.Embedder
	vectors  ports.VectorStore
	content  ports.ContentStore
	logger   *slog.Logger
}

// IndexerDeps wires the indexer's collaborators.
type IndexerDeps struct {
	Embedder ports.Embedder
	Vectors  ports.VectorStore
	Content  ports.ContentStore
	Logger   *slog.Logger
}

// NewIndexer constructs the vector indexer.
func NewIndexer(deps IndexerDeps) *Indexer {
	return &Indexer{
		embedder: deps.Embedder,
		vectors:  deps.Vectors,
		content:  deps.Content,
		logger:   deps.Logger,
	}
}

// Index replaces the item's windows wholesale and marks it indexed. Any
// per-window failure deletes every window already written for the item
// so a half-written set never persists, and leaves indexed=false for the
// recovery sweep to retry.
func (ix *Indexer) Index(ctx context.Context, item *domain.ContentItem) (int, error) {
	windows := splitWindows(item.Body)
	if len(windows) == 0 {
		return 0, fmt.Errorf("index item %d: no content to embed", item.ID)
	}

	if err := ix.vectors.DeleteWindows(ctx, item.ID); err != nil {
		return 0, fmt.Errorf("delete stale windows: %w", err)
	}

	for i, text := range windows {
		vector, err := ix.embedder.Embed(ctx, text)
		if err != nil {
			ix.cleanup(ctx, item.ID)
			return 0, fmt.Errorf("embed window %d/%d: %w", i+1, len(windows), err)
		}

		window := domain.VectorWindow{
			ContentID:   item.ID,
			Index:       i,
			ChunkID:     fmt.Sprintf("%d-chunk-%d", item.ID, i),
			Title:       item.Title,
			Link:        item.Link,
			Text:        text,
			TotalChunks: len(windows),
			Embedding:   vector,
		}
		if err := ix.vectors.UpsertWindow(ctx, window); err != nil {
			ix.cleanup(ctx, item.ID)
			return 0, fmt.Errorf("upsert window %s: %w", window.ChunkID, err)
		}
	}

	if err := ix.content.MarkIndexed(ctx, item.ID, true); err != nil {
		return 0, fmt.Errorf("mark indexed: %w", err)
	}

	return len(windows), nil
}

// ProcessUnindexed is the idempotent recovery sweep over items whose
// indexing previously failed. Per-item failures are logged and counted,
// never escalated.
func (ix *Indexer) ProcessUnindexed(ctx context.Context, limit int) (indexed, failed int, err error) {
	if limit <= 0 {
		limit = 50
	}

	items, err := ix.content.ListUnindexed(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("list unindexed: %w", err)
	}

	for i := range items {
		if _, indexErr := ix.Index(ctx, &items[i]); indexErr != nil {
			failed++
			ix.warn("reindex failed", "content_id", items[i].ID, "error", indexErr)
			continue
		}
		indexed++
	}

	return indexed, failed, nil
}

func (ix *Indexer) cleanup(ctx context.Context, contentID int64) {
	if err := ix.vectors.DeleteWindows(ctx, contentID); err != nil {
		ix.warn("window cleanup failed", "content_id", contentID, "error", err)
	}
}

func (ix *Indexer) warn(msg string, args ...any) {
	if ix.logger != nil {
		ix.logger.Warn(msg, args...)
	}
}

// windowTier picks size and overlap for a given content length in runes.
func windowTier(length int) (size, overlap int) {
	switch {
	case length < shortContentLimit:
		return shortWindowSize, shortOverlap
	case length < mediumContentLimit:
		return mediumWindowSize, mediumOverlap
	default:
		return longWindowSize, longOverlap
	}
}

// splitWindows cuts text into overlapping rune windows covering the full
// text. The final window may be shorter than the tier size.
func splitWindows(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	size, overlap := windowTier(len(runes))
	step := size - overlap

	var windows []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return windows
}
