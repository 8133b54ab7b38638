package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example Feed</title>
  <link>https://example.org</link>
  <item>
    <title>First Post</title>
    <link>https://example.org/posts/first</link>
    <description>Opening entry.</description>
    <pubDate>Sat, 08 Nov 2025 09:00:00 GMT</pubDate>
  </item>
  <item>
    <title>No Link Entry</title>
    <description>Should be dropped.</description>
  </item>
  <item>
    <title>Second Post</title>
    <link>https://example.org/posts/second</link>
  </item>
</channel>
</rss>`

func TestParseKeepsFeedOrder(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	parser := NewParser(server.Client(), "test-agent/1.0")
	items, err := parser.Parse(context.Background(), server.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items (link-less entry dropped), got %d", len(items))
	}
	if items[0].Link != "https://example.org/posts/first" {
		t.Fatalf("feed order not preserved: first item %q", items[0].Link)
	}
	if items[1].Link != "https://example.org/posts/second" {
		t.Fatalf("feed order not preserved: second item %q", items[1].Link)
	}
	if items[0].PublishedAt == nil {
		t.Fatalf("published date not parsed")
	}
	if items[1].PublishedAt != nil {
		t.Fatalf("missing pubDate should leave PublishedAt nil")
	}
}

func TestParseSurfacesFetchFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	parser := NewParser(server.Client(), "test-agent/1.0")
	if _, err := parser.Parse(context.Background(), server.URL+"/feed.xml"); err == nil {
		t.Fatalf("expected error for non-2xx feed response")
	}
}
