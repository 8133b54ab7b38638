package usecase

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

// maxSummaryInput caps the article text sent to the completion service.
const maxSummaryInput = 12000

// truncateInput cuts s to at most limit bytes without splitting a rune.
func truncateInput(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Summarizer produces a short introductory abstract for an article.
type Summarizer struct {
	completer ports.Completer
	wordCap   int
}

// NewSummarizer wires the completion client. wordCap bounds the abstract length.
func NewSummarizer(completer ports.Completer, wordCap int) *Summarizer {
	if wordCap <= 0 {
		wordCap = 30
	}
	return &Summarizer{completer: completer, wordCap: wordCap}
}

// Summarize returns the abstract, or domain.ErrEmptyCompletion when the
// service produced nothing usable. Callers treat failure as best-effort.
func (s *Summarizer) Summarize(ctx context.Context, title, body string) (string, error) {
	body = truncateInput(body, maxSummaryInput)

	system := fmt.Sprintf(
		"You write concise article abstracts. Reply with a single introductory abstract of at most %d words. No preamble, no quotes.",
		s.wordCap)
	user := fmt.Sprintf("Title: %s\n\nArticle:\n%s", title, body)

	summary, err := s.completer.Complete(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if summary == "" {
		return "", domain.ErrEmptyCompletion
	}

	return summary, nil
}
