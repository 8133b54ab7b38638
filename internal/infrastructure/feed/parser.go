// Package feed wraps gofeed, which tolerates the malformed RSS/Atom
// external publishers serve.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

// Parser fetches and parses one feed URL per call.
type Parser struct {
	parser *gofeed.Parser
}

var _ ports.FeedParser = (*Parser)(nil)

// NewParser wires an HTTP client and user agent into gofeed.
func NewParser(client *http.Client, userAgent string) *Parser {
	p := gofeed.NewParser()
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	p.Client = client
	if userAgent != "" {
		p.UserAgent = userAgent
	}
	return &Parser{parser: p}
}

// Parse returns the feed's items in feed-provided order. Items without a
// link are dropped; everything else is passed through for the pipeline
// to validate.
func (p *Parser) Parse(ctx context.Context, feedURL string) ([]domain.FeedItem, error) {
	parsed, err := p.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := make([]domain.FeedItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry == nil || strings.TrimSpace(entry.Link) == "" {
			continue
		}

		item := domain.FeedItem{
			Title:       strings.TrimSpace(entry.Title),
			Link:        strings.TrimSpace(entry.Link),
			Description: strings.TrimSpace(entry.Description),
		}
		if entry.PublishedParsed != nil {
			published := entry.PublishedParsed.UTC()
			item.PublishedAt = &published
		}

		items = append(items, item)
	}

	return items, nil
}
