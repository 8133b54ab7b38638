package domain

import "time"

// ContentStatus enumerates the editorial states of an ingested article.
type ContentStatus string

const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusPublished ContentStatus = "published"
	ContentStatusArchived  ContentStatus = "archived"
)

// ContentItem is one ingested article, uniquely keyed by its canonical
// link. Created by the extractor the first time a link is seen; later
// pipeline stages mutate summary, topics and the indexed flag.
type ContentItem struct {
	ID          int64
	Link        string
	Title       string
	Description string
	Body        string
	ImageURL    string
	Summary     string
	Status      ContentStatus
	Indexed     bool
	SourceID    int64
	PublishedAt *time.Time
	CreatedAt   time.Time
}

// Topic is one entry of the fixed tagging vocabulary, owned by the
// admin application.
type Topic struct {
	ID          int64
	Name        string
	Description string
}

// VectorWindow is one embedded slice of an item's cleaned text. Metadata
// is denormalized so query-time results are self-describing without a
// join back to content_items.
type VectorWindow struct {
	ContentID   int64
	Index       int
	ChunkID     string
	Title       string
	Link        string
	Text        string
	TotalChunks int
	Embedding   []float32
}

// Extraction is the readable payload derived from a fetched page.
type Extraction struct {
	Title       string
	Description string
	ImageURL    string
	Body        string
}
