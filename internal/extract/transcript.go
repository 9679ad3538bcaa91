package extract

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const transcriptBodyByteLimit = 4 * 1024 * 1024

// CaptionSegment is one timed line of a transcript.
type CaptionSegment struct {
	Start float64
	Text  string
}

// CaptionProvider fetches timed caption segments for a video id.
type CaptionProvider interface {
	Fetch(ctx context.Context, videoID string) ([]CaptionSegment, error)
}

// TranscriptExtractor turns a video URL into transcript text. The
// primary caption endpoint is tried first; when it yields nothing the
// fallback service gets one attempt before the article is declared
// empty.
type TranscriptExtractor struct {
	Primary  CaptionProvider
	Fallback CaptionProvider
}

func NewTranscriptExtractor() *TranscriptExtractor {
	client := &http.Client{Timeout: DefaultFetchTimeout}
	return &TranscriptExtractor{
		Primary:  &TimedTextProvider{HTTPClient: client, Languages: []string{"ko", "en"}},
		Fallback: &TranscriptServiceProvider{HTTPClient: client},
	}
}

func (e *TranscriptExtractor) Extract(ctx context.Context, rawURL string) (Result, error) {
	videoID, err := ParseVideoID(rawURL)
	if err != nil {
		return Result{}, err
	}

	if e.Primary != nil {
		segments, err := e.Primary.Fetch(ctx, videoID)
		if err == nil && len(segments) > 0 {
			return Result{Body: formatTimedLines(segments)}, nil
		}
	}

	if e.Fallback != nil {
		segments, err := e.Fallback.Fetch(ctx, videoID)
		if err == nil && len(segments) > 0 {
			return Result{Body: formatBracketLines(segments)}, nil
		}
	}

	return Result{}, fmt.Errorf("transcript for video %s: %w", videoID, ErrNoContent)
}

// ParseVideoID extracts the video id from the URL shapes the watch
// pages use: watch?v=, youtu.be/, shorts/ and embed/ paths.
func ParseVideoID(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	if id := strings.TrimSpace(parsed.Query().Get("v")); id != "" {
		return id, nil
	}

	path := strings.Trim(parsed.Path, "/")
	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	if host == "youtu.be" && path != "" {
		return firstPathSegment(path), nil
	}
	for _, prefix := range []string{"shorts/", "embed/", "live/"} {
		if strings.HasPrefix(path, prefix) {
			if id := firstPathSegment(strings.TrimPrefix(path, prefix)); id != "" {
				return id, nil
			}
		}
	}

	return "", fmt.Errorf("%w: no video id in %q", ErrInvalidURL, rawURL)
}

func firstPathSegment(path string) string {
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		return path[:idx]
	}
	return path
}

// formatTimedLines renders segments as "m:ss - text" lines, the shape
// the enrichment prompt expects for transcripts.
func formatTimedLines(segments []CaptionSegment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		text := strings.Join(strings.Fields(seg.Text), " ")
		if text == "" {
			continue
		}
		lines = append(lines, formatTimestamp(seg.Start)+" - "+text)
	}
	return strings.Join(lines, "\n")
}

// formatBracketLines is the fallback service's rendering.
func formatBracketLines(segments []CaptionSegment) string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		text := strings.Join(strings.Fields(seg.Text), " ")
		if text == "" {
			continue
		}
		lines = append(lines, "["+formatTimestamp(seg.Start)+"] "+text)
	}
	return strings.Join(lines, "\n")
}

func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	minutes := total / 60
	return fmt.Sprintf("%d:%02d", minutes, total%60)
}

// TimedTextProvider reads captions from the platform's timedtext
// endpoint, preferring tracks in Languages order.
type TimedTextProvider struct {
	BaseURL    string
	Languages  []string
	HTTPClient *http.Client
}

type timedTextTrackList struct {
	Tracks []struct {
		LangCode string `xml:"lang_code,attr"`
	} `xml:"track"`
}

type timedTextTranscript struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

func (p *TimedTextProvider) baseURL() string {
	if p.BaseURL != "" {
		return strings.TrimRight(p.BaseURL, "/")
	}
	return "https://video.google.com/timedtext"
}

func (p *TimedTextProvider) Fetch(ctx context.Context, videoID string) ([]CaptionSegment, error) {
	lang, err := p.pickLanguage(ctx, videoID)
	if err != nil {
		return nil, err
	}

	raw, err := p.get(ctx, url.Values{"v": {videoID}, "lang": {lang}})
	if err != nil {
		return nil, err
	}

	var transcript timedTextTranscript
	if err := xml.Unmarshal(raw, &transcript); err != nil {
		return nil, fmt.Errorf("decode caption track: %w", err)
	}

	segments := make([]CaptionSegment, 0, len(transcript.Texts))
	for _, text := range transcript.Texts {
		segments = append(segments, CaptionSegment{
			Start: text.Start,
			Text:  html.UnescapeString(text.Body),
		})
	}
	return segments, nil
}

func (p *TimedTextProvider) pickLanguage(ctx context.Context, videoID string) (string, error) {
	raw, err := p.get(ctx, url.Values{"v": {videoID}, "type": {"list"}})
	if err != nil {
		return "", err
	}

	var list timedTextTrackList
	if err := xml.Unmarshal(raw, &list); err != nil {
		return "", fmt.Errorf("decode caption track list: %w", err)
	}
	if len(list.Tracks) == 0 {
		return "", errors.New("no caption tracks")
	}

	available := make(map[string]struct{}, len(list.Tracks))
	for _, track := range list.Tracks {
		available[track.LangCode] = struct{}{}
	}
	for _, preferred := range p.Languages {
		if _, ok := available[preferred]; ok {
			return preferred, nil
		}
	}
	return list.Tracks[0].LangCode, nil
}

func (p *TimedTextProvider) get(ctx context.Context, query url.Values) ([]byte, error) {
	endpoint := p.baseURL() + "?" + query.Encode()
	return httpGetBytes(ctx, p.HTTPClient, endpoint, transcriptBodyByteLimit)
}

// TranscriptServiceProvider reads captions from a third-party
// transcript mirror that serves a flat XML track per video.
type TranscriptServiceProvider struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (p *TranscriptServiceProvider) Fetch(ctx context.Context, videoID string) ([]CaptionSegment, error) {
	base := p.BaseURL
	if base == "" {
		base = "https://youtubetranscript.com"
	}
	endpoint := strings.TrimRight(base, "/") + "/?server_vid2=" + url.QueryEscape(videoID)

	raw, err := httpGetBytes(ctx, p.HTTPClient, endpoint, transcriptBodyByteLimit)
	if err != nil {
		return nil, err
	}

	var transcript struct {
		Texts []struct {
			Start string `xml:"start,attr"`
			Body  string `xml:",chardata"`
		} `xml:"text"`
	}
	if err := xml.Unmarshal(raw, &transcript); err != nil {
		return nil, fmt.Errorf("decode fallback transcript: %w", err)
	}

	segments := make([]CaptionSegment, 0, len(transcript.Texts))
	for _, text := range transcript.Texts {
		start, _ := strconv.ParseFloat(strings.TrimSpace(text.Start), 64)
		segments = append(segments, CaptionSegment{
			Start: start,
			Text:  html.UnescapeString(text.Body),
		})
	}
	return segments, nil
}

func httpGetBytes(ctx context.Context, client *http.Client, endpoint string, limit int64) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
