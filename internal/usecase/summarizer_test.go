package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/MattKevan/uxlift-pipeline/internal/domain"
)

func TestSummarizerHappyPath(t *testing.T) {
	t.Parallel()

	var gotSystem, gotUser string
	s := NewSummarizer(completerFunc(func(_ context.Context, system, user string) (string, error) {
		gotSystem, gotUser = system, user
		return "A short abstract.", nil
	}), 30)

	summary, err := s.Summarize(context.Background(), "Design Tokens", "Body text.")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "A short abstract." {
		t.Fatalf("summary = %q", summary)
	}
	if !strings.Contains(gotSystem, "30 words") {
		t.Errorf("system prompt missing word cap: %q", gotSystem)
	}
	if !strings.Contains(gotUser, "Design Tokens") || !strings.Contains(gotUser, "Body text.") {
		t.Errorf("user prompt missing title or body: %q", gotUser)
	}
}

func TestSummarizerTruncatesLongBody(t *testing.T) {
	t.Parallel()

	var gotUser string
	s := NewSummarizer(completerFunc(func(_ context.Context, _, user string) (string, error) {
		gotUser = user
		return "ok", nil
	}), 30)

	long := strings.Repeat("x", maxSummaryInput+5000)
	if _, err := s.Summarize(context.Background(), "t", long); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(gotUser) > maxSummaryInput+100 {
		t.Errorf("body not truncated: prompt length %d", len(gotUser))
	}
}

func TestTruncateInputKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	// A 2-byte rune straddling the limit must be dropped whole.
	body := strings.Repeat("a", 9) + "é"
	got := truncateInput(body, 10)
	if got != strings.Repeat("a", 9) {
		t.Fatalf("truncateInput = %q, want the rune dropped whole", got)
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncated text is not valid UTF-8")
	}

	if got := truncateInput("short", 10); got != "short" {
		t.Errorf("truncateInput under limit = %q, want unchanged", got)
	}
	if got := truncateInput("ééééé", 10); got != "ééééé" {
		t.Errorf("truncateInput at limit = %q, want unchanged", got)
	}
}

func TestSummarizerTruncationIsValidUTF8(t *testing.T) {
	t.Parallel()

	var gotUser string
	s := NewSummarizer(completerFunc(func(_ context.Context, _, user string) (string, error) {
		gotUser = user
		return "ok", nil
	}), 30)

	// The leading byte puts every following 2-byte rune off the byte
	// limit, so a naive byte slice would split one.
	body := "a" + strings.Repeat("é", maxSummaryInput)
	if _, err := s.Summarize(context.Background(), "t", body); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !utf8.ValidString(gotUser) {
		t.Fatal("prompt contains a split rune")
	}
}

func TestSummarizerEmptyCompletion(t *testing.T) {
	t.Parallel()

	s := NewSummarizer(completerFunc(func(context.Context, string, string) (string, error) {
		return "", nil
	}), 30)

	if _, err := s.Summarize(context.Background(), "t", "b"); !errors.Is(err, domain.ErrEmptyCompletion) {
		t.Fatalf("err = %v, want ErrEmptyCompletion", err)
	}
}

func TestSummarizerCompleterError(t *testing.T) {
	t.Parallel()

	boom := errors.New("service down")
	s := NewSummarizer(completerFunc(func(context.Context, string, string) (string, error) {
		return "", boom
	}), 30)

	if _, err := s.Summarize(context.Background(), "t", "b"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped completer error", err)
	}
}
