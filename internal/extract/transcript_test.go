package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseVideoID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rawURL string
		want   string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ/extra", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/abc123XYZ_-", "abc123XYZ_-"},
		{"https://www.youtube.com/embed/abc123XYZ_-", "abc123XYZ_-"},
		{"https://www.youtube.com/live/abc123XYZ_-", "abc123XYZ_-"},
	}
	for _, tc := range cases {
		got, err := ParseVideoID(tc.rawURL)
		if err != nil {
			t.Fatalf("ParseVideoID(%q): %v", tc.rawURL, err)
		}
		if got != tc.want {
			t.Fatalf("ParseVideoID(%q): expected %q, got %q", tc.rawURL, tc.want, got)
		}
	}

	for _, rawURL := range []string{"", "https://www.youtube.com/feed/subscriptions", "not a url"} {
		if _, err := ParseVideoID(rawURL); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("ParseVideoID(%q): expected ErrInvalidURL, got %v", rawURL, err)
		}
	}
}

func TestFormatTimedLines(t *testing.T) {
	t.Parallel()

	segments := []CaptionSegment{
		{Start: 0, Text: "hello  there"},
		{Start: 61.4, Text: "one minute in"},
		{Start: 90, Text: "   "},
		{Start: 125, Text: "two minutes"},
	}
	got := formatTimedLines(segments)
	want := "0:00 - hello there\n1:01 - one minute in\n2:05 - two minutes"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFormatBracketLines(t *testing.T) {
	t.Parallel()

	got := formatBracketLines([]CaptionSegment{{Start: 75, Text: "fallback line"}})
	if got != "[1:15] fallback line" {
		t.Fatalf("expected bracket format, got %q", got)
	}
}

func TestTimedTextProviderPrefersConfiguredLanguage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		if r.URL.Query().Get("type") == "list" {
			fmt.Fprint(w, `<transcript_list><track lang_code="en"/><track lang_code="ko"/></transcript_list>`)
			return
		}
		if lang := r.URL.Query().Get("lang"); lang != "ko" {
			t.Errorf("expected ko track requested, got %q", lang)
		}
		fmt.Fprint(w, `<transcript><text start="0">안녕하세요</text><text start="3.5">&amp;amp; 환영합니다</text></transcript>`)
	}))
	defer server.Close()

	provider := &TimedTextProvider{
		BaseURL:    server.URL,
		Languages:  []string{"ko", "en"},
		HTTPClient: server.Client(),
	}
	segments, err := provider.Fetch(context.Background(), "vid123")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[1].Start != 3.5 || segments[1].Text != "& 환영합니다" {
		t.Fatalf("unexpected segment: %+v", segments[1])
	}
}

func TestTranscriptExtractorFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("server_vid2") != "vid123" {
			t.Errorf("unexpected query: %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, `<transcript><text start="12.0">fallback caption</text></transcript>`)
	}))
	defer fallback.Close()

	extractor := &TranscriptExtractor{
		Primary:  failingProvider{},
		Fallback: &TranscriptServiceProvider{BaseURL: fallback.URL, HTTPClient: fallback.Client()},
	}
	result, err := extractor.Extract(context.Background(), "https://youtu.be/vid123")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(result.Body, "[0:12] fallback caption") {
		t.Fatalf("expected fallback rendering, got %q", result.Body)
	}
}

func TestTranscriptExtractorNoContentWhenBothFail(t *testing.T) {
	t.Parallel()

	extractor := &TranscriptExtractor{Primary: failingProvider{}, Fallback: failingProvider{}}
	_, err := extractor.Extract(context.Background(), "https://youtu.be/vid123")
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

type failingProvider struct{}

func (failingProvider) Fetch(context.Context, string) ([]CaptionSegment, error) {
	return nil, errors.New("captions unavailable")
}
