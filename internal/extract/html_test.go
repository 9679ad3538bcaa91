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

func TestHTMLExtractFollowsRedirectChain(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	for i := 0; i < 3; i++ {
		next := fmt.Sprintf("/hop/%d", i+1)
		mux.HandleFunc(fmt.Sprintf("/hop/%d", i), func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Location", next)
			w.WriteHeader(http.StatusFound)
		})
	}
	mux.HandleFunc("/hop/3", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "final destination article body")
	})

	extractor := NewHTMLExtractor()
	result, err := extractor.Extract(context.Background(), server.URL+"/hop/0")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Body != "final destination article body" {
		t.Fatalf("unexpected body: %q", result.Body)
	}
	if result.ResolvedURL != server.URL+"/hop/3" {
		t.Fatalf("expected resolved url of final hop, got %q", result.ResolvedURL)
	}
}

func TestHTMLExtractUsesLastResponsePastHopBudget(t *testing.T) {
	t.Parallel()

	// Every hop redirects forever. After the hop budget the last
	// response seen is read as-is, redirect status and all.
	var hops int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hops++
		w.Header().Set("Location", fmt.Sprintf("/loop/%d", hops))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusFound)
		fmt.Fprint(w, "interstitial page content shown to clients that stop following")
	}))
	defer server.Close()

	extractor := NewHTMLExtractor()
	result, err := extractor.Extract(context.Background(), server.URL+"/loop/0")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if hops != 4 {
		t.Fatalf("expected 4 requests (origin + 3 hops), got %d", hops)
	}
	if !strings.Contains(result.Body, "interstitial page content") {
		t.Fatalf("expected redirect response body used, got %q", result.Body)
	}
}

func TestHTMLExtractResolvesRelativeLocation(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/posts/start", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "../articles/end")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	mux.HandleFunc("/articles/end", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "relative redirect landed here")
	})

	extractor := NewHTMLExtractor()
	result, err := extractor.Extract(context.Background(), server.URL+"/posts/start")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.ResolvedURL != server.URL+"/articles/end" {
		t.Fatalf("expected relative location resolved, got %q", result.ResolvedURL)
	}
}

func TestHTMLExtractReadabilityOnHTMLPage(t *testing.T) {
	t.Parallel()

	page := `<!DOCTYPE html>
<html><head><title>Release Notes</title></head>
<body>
<nav><a href="/">home</a> <a href="/about">about</a></nav>
<article>
<h1>Release Notes</h1>
<p>The storage engine now batches writes before flushing to disk, which cuts
write amplification roughly in half on the benchmark workload.</p>
<p>Query planning received a new cost model that accounts for index-only scans.
Plans that previously fell back to sequential scans now use covering indexes.</p>
<p>The migration tool gained a dry-run flag that prints the statements it would
execute without touching the database.</p>
</article>
</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	extractor := NewHTMLExtractor()
	result, err := extractor.Extract(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(result.Body, "batches writes before flushing") {
		t.Fatalf("expected article text extracted, got %q", result.Body)
	}
	if result.ResolvedURL != "" {
		t.Fatalf("expected empty resolved url when no redirect happened, got %q", result.ResolvedURL)
	}
}

func TestHTMLExtractEmptyPageIsNoContent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
	}))
	defer server.Close()

	extractor := NewHTMLExtractor()
	if _, err := extractor.Extract(context.Background(), server.URL); !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestHTMLExtractRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	extractor := NewHTMLExtractor()
	for _, rawURL := range []string{"", "   ", "not-a-url", "/relative/path"} {
		if _, err := extractor.Extract(context.Background(), rawURL); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("expected ErrInvalidURL for %q, got %v", rawURL, err)
		}
	}
}

func TestCleanTextCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	got := cleanText("  first   line \r\n\r\n  second\tline  \n\n\n")
	want := "first line\n\nsecond line"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
