package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
)

func vocabulary() []domain.Topic {
	return []domain.Topic{
		{ID: 1, Name: "Accessibility"},
		{ID: 2, Name: "Design Systems"},
		{ID: 3, Name: "Research"},
		{ID: 4, Name: "Career"},
		{ID: 5, Name: "Tools"},
	}
}

func TestTaggerFiltersHallucinatedTopics(t *testing.T) {
	t.Parallel()

	topics := &fakeTopicStore{topics: vocabulary()}
	tagger := NewTagger(completerFunc(func(context.Context, string, string) (string, error) {
		return "Accessibility, Quantum UX, research, Blockchain Design", nil
	}), topics, 4)

	matched, err := tagger.Tag(context.Background(), 7, "t", "b")
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("matched %d topics, want 2: %+v", len(matched), matched)
	}
	if matched[0].ID != 1 || matched[1].ID != 3 {
		t.Errorf("matched ids = %d,%d, want 1,3", matched[0].ID, matched[1].ID)
	}

	got := topics.lastReplaced()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("replaced assignments = %v, want [1 3]", got)
	}
}

func TestTaggerDeduplicatesAndCaps(t *testing.T) {
	t.Parallel()

	topics := &fakeTopicStore{topics: vocabulary()}
	tagger := NewTagger(completerFunc(func(context.Context, string, string) (string, error) {
		return "Tools, tools, Research, Career, Accessibility, Design Systems", nil
	}), topics, 3)

	matched, err := tagger.Tag(context.Background(), 7, "t", "b")
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if len(matched) != 3 {
		t.Fatalf("matched %d topics, want cap of 3", len(matched))
	}
}

func TestTaggerNoMatchesStillReplaces(t *testing.T) {
	t.Parallel()

	topics := &fakeTopicStore{topics: vocabulary()}
	tagger := NewTagger(completerFunc(func(context.Context, string, string) (string, error) {
		return "Astrology, Horoscopes", nil
	}), topics, 4)

	_, err := tagger.Tag(context.Background(), 7, "t", "b")
	if !errors.Is(err, domain.ErrNoTopicsMatched) {
		t.Fatalf("err = %v, want ErrNoTopicsMatched", err)
	}
	if len(topics.replaced) != 1 {
		t.Fatalf("ReplaceAssignments called %d times, want 1", len(topics.replaced))
	}
	if got := topics.lastReplaced(); len(got) != 0 {
		t.Errorf("replaced with %v, want empty set", got)
	}
}

func TestTaggerCompleterFailureClearsAssignments(t *testing.T) {
	t.Parallel()

	topics := &fakeTopicStore{topics: vocabulary()}
	boom := errors.New("model unavailable")
	tagger := NewTagger(completerFunc(func(context.Context, string, string) (string, error) {
		return "", boom
	}), topics, 4)

	_, err := tagger.Tag(context.Background(), 7, "t", "b")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped completer error", err)
	}
	if len(topics.replaced) != 1 || len(topics.lastReplaced()) != 0 {
		t.Errorf("assignments not cleared after failure: %v", topics.replaced)
	}
}

func TestTaggerEmptyVocabulary(t *testing.T) {
	t.Parallel()

	topics := &fakeTopicStore{}
	tagger := NewTagger(completerFunc(func(context.Context, string, string) (string, error) {
		t.Fatal("completer must not be called with empty vocabulary")
		return "", nil
	}), topics, 4)

	if _, err := tagger.Tag(context.Background(), 7, "t", "b"); !errors.Is(err, domain.ErrNoTopicsMatched) {
		t.Fatalf("err = %v, want ErrNoTopicsMatched", err)
	}
}
