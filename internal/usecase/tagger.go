package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
	"github.com/MattKevan/uxlift-pipeline/internal/ports"
)

// maxTagInput caps the article text sent with the tagging prompt.
const maxTagInput = 8000

// Tagger assigns topics from the fixed vocabulary to a content item.
// The model's raw response is untrusted: it is intersected against the
// vocabulary and hallucinated names are dropped silently.
type Tagger struct {
	completer ports.Completer
	topics    ports.TopicStore
	maxTopics int
}

// NewTagger wires the completion client and vocabulary store.
func NewTagger(completer ports.Completer, topics ports.TopicStore, maxTopics int) *Tagger {
	if maxTopics <= 0 {
		maxTopics = 4
	}
	return &Tagger{completer: completer, topics: topics, maxTopics: maxTopics}
}

// Tag replaces the item's topic assignments with a validated subset of
// the vocabulary. Assignments are always replaced, even when the new set
// is empty, so stale topics never linger; an empty set additionally
// reports domain.ErrNoTopicsMatched.
func (t *Tagger) Tag(ctx context.Context, contentID int64, title, body string) ([]domain.Topic, error) {
	vocabulary, err := t.topics.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("load topic vocabulary: %w", err)
	}
	if len(vocabulary) == 0 {
		return nil, domain.ErrNoTopicsMatched
	}

	body = truncateInput(body, maxTagInput)

	suggestion, err := t.completer.Complete(ctx, t.systemPrompt(vocabulary), fmt.Sprintf("Title: %s\n\nArticle:\n%s", title, body))
	if err != nil {
		// Clear assignments anyway so a failed pass does not leave stale topics.
		if replaceErr := t.topics.ReplaceAssignments(ctx, contentID, nil); replaceErr != nil {
			return nil, fmt.Errorf("clear assignments after tagging failure: %w", replaceErr)
		}
		return nil, fmt.Errorf("suggest topics: %w", err)
	}

	matched := matchVocabulary(suggestion, vocabulary, t.maxTopics)

	ids := make([]int64, 0, len(matched))
	for _, topic := range matched {
		ids = append(ids, topic.ID)
	}

	if err := t.topics.ReplaceAssignments(ctx, contentID, ids); err != nil {
		return nil, fmt.Errorf("replace assignments: %w", err)
	}

	if len(matched) == 0 {
		return nil, domain.ErrNoTopicsMatched
	}

	return matched, nil
}

func (t *Tagger) systemPrompt(vocabulary []domain.Topic) string {
	var b strings.Builder
	b.WriteString("You classify articles against a fixed topic list. Reply with a comma-separated subset of the topic names below, at most ")
	fmt.Fprintf(&b, "%d", t.maxTopics)
	b.WriteString(" names, exactly as written. Reply with nothing else.\n\nTopics:\n")
	for _, topic := range vocabulary {
		b.WriteString("- ")
		b.WriteString(topic.Name)
		if topic.Description != "" {
			b.WriteString(": ")
			b.WriteString(topic.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// matchVocabulary splits and trims the raw suggestion, then keeps only
// names present in the vocabulary (case-insensitive), deduplicated, up
// to the cap.
func matchVocabulary(suggestion string, vocabulary []domain.Topic, limit int) []domain.Topic {
	byName := make(map[string]domain.Topic, len(vocabulary))
	for _, topic := range vocabulary {
		byName[strings.ToLower(topic.Name)] = topic
	}

	var matched []domain.Topic
	seen := map[string]struct{}{}
	for _, part := range strings.Split(suggestion, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		topic, ok := byName[name]
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		matched = append(matched, topic)
		if len(matched) >= limit {
			break
		}
	}

	return matched
}
