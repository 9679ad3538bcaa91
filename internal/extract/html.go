package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
)

const (
	DefaultFetchTimeout  = 12 * time.Second
	DefaultBodyByteLimit = 2 * 1024 * 1024

	// Redirect chains are followed by hand so every hop stays visible.
	// Past maxRedirectHops the last response seen is used as-is.
	maxRedirectHops = 3

	defaultUserAgent = "curator-extract/1.0 (+https://kelp.press/curator)"
)

// HTMLExtractor fetches a page and reduces it to readable article text.
type HTMLExtractor struct {
	Timeout       time.Duration
	BodyByteLimit int64
	UserAgent     string
	HTTPClient    *http.Client
}

func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{
		Timeout:       DefaultFetchTimeout,
		BodyByteLimit: DefaultBodyByteLimit,
		UserAgent:     defaultUserAgent,
	}
}

// Extract fetches the URL, walking up to maxRedirectHops redirects, and
// runs readability over whatever the chain terminates on.
func (e *HTMLExtractor) Extract(ctx context.Context, rawURL string) (Result, error) {
	page := strings.TrimSpace(rawURL)
	if page == "" {
		return Result{}, ErrInvalidURL
	}
	current, err := url.Parse(page)
	if err != nil || !current.IsAbs() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidURL, page)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	bodyLimit := e.BodyByteLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyByteLimit
	}

	client := e.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	// Automatic following would hide intermediate hops and ignore the
	// hop budget, so the transport is told to hand redirects back.
	client = &http.Client{
		Transport: client.Transport,
		Timeout:   client.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body []byte
	var contentType string
	for hop := 0; ; hop++ {
		resp, err := e.fetchOnce(fetchCtx, client, current.String())
		if err != nil {
			return Result{}, err
		}

		next := redirectTarget(resp, current)
		if next != nil && hop < maxRedirectHops {
			resp.Body.Close()
			current = next
			continue
		}

		if next == nil && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
			resp.Body.Close()
			return Result{}, fmt.Errorf("fetch status %d for %s", resp.StatusCode, current)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
		resp.Body.Close()
		if err != nil {
			return Result{}, fmt.Errorf("read body: %w", err)
		}
		contentType = strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
		break
	}

	result := Result{ResolvedURL: current.String()}
	if result.ResolvedURL == page {
		result.ResolvedURL = ""
	}

	if strings.HasPrefix(contentType, "text/plain") {
		result.Body = cleanText(string(body))
		if result.Body == "" {
			return Result{}, ErrNoContent
		}
		return result, nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), current)
	if err != nil {
		return Result{}, fmt.Errorf("readability parse: %w", err)
	}

	var renderedText bytes.Buffer
	if err := article.RenderText(&renderedText); err != nil {
		return Result{}, fmt.Errorf("render readability text: %w", err)
	}

	text := cleanText(renderedText.String())
	if text == "" {
		text = cleanText(article.Excerpt())
	}
	if text == "" {
		return Result{}, ErrNoContent
	}

	result.Body = text
	return result, nil
}

func (e *HTMLExtractor) fetchOnce(ctx context.Context, client *http.Client, page string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	userAgent := strings.TrimSpace(e.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch url: %w", err)
	}
	return resp, nil
}

// redirectTarget resolves the Location header of a 3xx response against
// the request URL. Returns nil when the response is not a redirect.
func redirectTarget(resp *http.Response, base *url.URL) *url.URL {
	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return nil
	}
	location := strings.TrimSpace(resp.Header.Get("Location"))
	if location == "" {
		return nil
	}
	target, err := url.Parse(location)
	if err != nil {
		return nil
	}
	return base.ResolveReference(target)
}

// cleanText normalizes line endings and collapses extra in-line whitespace.
func cleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(strings.TrimSpace(line)), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}
