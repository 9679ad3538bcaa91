package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kelp.press/curator/internal/db"
)

const videoBodyByteLimit = 2 * 1024 * 1024

// VideoChannelClient lists a channel's uploads newest-first and stops
// iterating as soon as an item predates the source cursor.
type VideoChannelClient struct {
	APIBaseURL string
	APIKey     string
	HTTPClient *http.Client
}

type videoSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *VideoChannelClient) Fetch(ctx context.Context, src db.Source, cursor time.Time) ([]Item, error) {
	endpoint, err := url.Parse(strings.TrimRight(c.APIBaseURL, "/") + "/search")
	if err != nil {
		return nil, fmt.Errorf("parse video api endpoint: %w", err)
	}
	query := endpoint.Query()
	query.Set("part", "snippet")
	query.Set("channelId", strings.TrimSpace(src.Locator))
	query.Set("order", "date")
	query.Set("type", "video")
	query.Set("maxResults", "50")
	if c.APIKey != "" {
		query.Set("key", c.APIKey)
	}
	endpoint.RawQuery = query.Encode()

	raw, err := fetchBody(ctx, c.HTTPClient, endpoint.String(), "", videoBodyByteLimit)
	if err != nil {
		return nil, fmt.Errorf("list channel uploads %s: %w", src.Locator, err)
	}

	var parsed videoSearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode video search response: %w", err)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		videoID := strings.TrimSpace(entry.ID.VideoID)
		if videoID == "" {
			continue
		}
		publishedAt := parseFeedTime(entry.Snippet.PublishedAt)
		if publishedAt != nil && !cursor.IsZero() && publishedAt.Before(cursor) {
			// Uploads are ordered newest-first; everything past this
			// point has already been seen.
			break
		}
		items = append(items, Item{
			OriginURL:   "https://www.youtube.com/watch?v=" + videoID,
			Title:       strings.TrimSpace(entry.Snippet.Title),
			PublishedAt: publishedAt,
		})
	}
	return items, nil
}
