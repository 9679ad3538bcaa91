package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kelp.press/curator/internal/db"
)

const aggregatorBodyByteLimit = 2 * 1024 * 1024

// AggregatorClient fetches the current front-page window of a
// link-aggregator API and keeps only stories carrying an allow-listed
// topic tag. The window is bounded upstream; already-seen URLs fall to
// the dedup gate rather than a cursor comparison.
type AggregatorClient struct {
	BaseURL    string
	AllowTags  []string
	HTTPClient *http.Client
}

type aggregatorStory struct {
	ShortID     string   `json:"short_id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	CommentsURL string   `json:"comments_url"`
	CreatedAt   string   `json:"created_at"`
	Tags        []string `json:"tags"`
}

func (c *AggregatorClient) Fetch(ctx context.Context, src db.Source, _ time.Time) ([]Item, error) {
	base := strings.TrimRight(c.BaseURL, "/")
	path := strings.TrimSpace(src.Locator)
	if path == "" {
		path = "hottest.json"
	}
	endpoint := base + "/" + strings.TrimLeft(path, "/")

	raw, err := fetchBody(ctx, c.HTTPClient, endpoint, "", aggregatorBodyByteLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch aggregator window: %w", err)
	}

	var stories []aggregatorStory
	if err := json.Unmarshal(raw, &stories); err != nil {
		return nil, fmt.Errorf("decode aggregator response: %w", err)
	}

	allowed := make(map[string]struct{}, len(c.AllowTags))
	for _, tag := range c.AllowTags {
		allowed[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}

	items := make([]Item, 0, len(stories))
	for _, story := range stories {
		if len(allowed) > 0 && !hasAllowedTag(story.Tags, allowed) {
			continue
		}
		originURL := strings.TrimSpace(story.URL)
		if originURL == "" {
			originURL = strings.TrimSpace(story.CommentsURL)
		}
		if originURL == "" {
			continue
		}
		items = append(items, Item{
			OriginURL:   originURL,
			Title:       strings.TrimSpace(story.Title),
			PublishedAt: parseFeedTime(story.CreatedAt),
		})
	}
	return items, nil
}

func hasAllowedTag(tags []string, allowed map[string]struct{}) bool {
	for _, tag := range tags {
		if _, ok := allowed[strings.ToLower(strings.TrimSpace(tag))]; ok {
			return true
		}
	}
	return false
}
