// Package extract derives titles, descriptions, lead images and readable
// body text from raw article HTML.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
)

// minReadableLen marks readability output below this as implausibly
// short, triggering the raw-text fallback.
const minReadableLen = 140

var reWhitespace = regexp.MustCompile(`\s+`)

// Extractor turns a fetched page into a domain.Extraction.
type Extractor struct{}

// NewExtractor returns a stateless extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses metadata and readable text out of rawHTML. Metadata
// fallback order: OpenGraph, Twitter card, document title/meta
// description, then a hostname-derived title.
func (e *Extractor) Extract(rawHTML, pageURL string) (domain.Extraction, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("parse page url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("parse document: %w", err)
	}

	ext := domain.Extraction{
		Title:       firstNonEmpty(metaContent(doc, "og:title"), metaContent(doc, "twitter:title"), strings.TrimSpace(doc.Find("title").First().Text())),
		Description: firstNonEmpty(metaContent(doc, "og:description"), metaContent(doc, "twitter:description"), metaNameContent(doc, "description")),
		ImageURL:    firstNonEmpty(metaContent(doc, "og:image"), metaContent(doc, "twitter:image")),
	}
	if ext.Title == "" {
		ext.Title = parsedURL.Hostname()
	}
	if ext.ImageURL != "" {
		ext.ImageURL = resolveURL(parsedURL, ext.ImageURL)
	}

	ext.Body = e.readableText(rawHTML, parsedURL)
	if len(ext.Body) < minReadableLen {
		if raw := normalizeText(doc.Text()); len(raw) > len(ext.Body) {
			ext.Body = raw
		}
	}

	return ext, nil
}

// readableText runs the readability algorithm, then strips the surviving
// markup to plain text. Returns "" when extraction fails outright.
func (e *Extractor) readableText(rawHTML string, pageURL *url.URL) string {
	article, err := readability.FromReader(strings.NewReader(rawHTML), pageURL)
	if err != nil {
		return ""
	}

	processed := padBlockElements(article.Content)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(processed))
	if err != nil {
		return ""
	}

	return normalizeText(doc.Text())
}

func metaContent(doc *goquery.Document, property string) string {
	sel := fmt.Sprintf(`meta[property=%q], meta[name=%q]`, property, property)
	content, _ := doc.Find(sel).First().Attr("content")
	return strings.TrimSpace(content)
}

func metaNameContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).First().Attr("content")
	return strings.TrimSpace(content)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolveURL(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

func normalizeText(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// padBlockElements inserts spaces around block-level tags so their text
// does not run together once the markup is stripped.
func padBlockElements(html string) string {
	blockElements := []string{"div", "p", "br", "li", "td", "tr", "h1", "h2", "h3", "h4", "h5", "h6"}
	result := html
	for _, tag := range blockElements {
		result = regexp.MustCompile(`<`+tag+`[^>]*>`).ReplaceAllString(result, " <"+tag+">")
		result = regexp.MustCompile(`</`+tag+`>`).ReplaceAllString(result, "</"+tag+"> ")
	}
	return result
}
