package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kelp.press/curator/internal/db"
)

const feedBodyByteLimit = 4 * 1024 * 1024

// FeedClient fetches RSS 2.0 and Atom documents. It yields every entry
// in document order; filtering against the source cursor is the
// scheduler's responsibility, not this client's.
type FeedClient struct {
	HTTPClient *http.Client
}

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Items   []rssEntry `xml:"channel>item"`
}

type rssEntry struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

type atomDocument struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

func (c *FeedClient) Fetch(ctx context.Context, src db.Source, _ time.Time) ([]Item, error) {
	body, err := fetchBody(ctx, c.HTTPClient, src.Locator, "", feedBodyByteLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", src.Locator, err)
	}
	return parseFeed(body)
}

func parseFeed(raw []byte) ([]Item, error) {
	var rss rssDocument
	if err := xml.Unmarshal(raw, &rss); err == nil && len(rss.Items) > 0 {
		items := make([]Item, 0, len(rss.Items))
		for _, entry := range rss.Items {
			link := strings.TrimSpace(entry.Link)
			if link == "" {
				continue
			}
			items = append(items, Item{
				OriginURL:   link,
				Title:       strings.TrimSpace(entry.Title),
				PublishedAt: parseFeedTime(entry.PubDate),
			})
		}
		return items, nil
	}

	var atom atomDocument
	if err := xml.Unmarshal(raw, &atom); err != nil {
		return nil, fmt.Errorf("parse feed document: %w", err)
	}

	items := make([]Item, 0, len(atom.Entries))
	for _, entry := range atom.Entries {
		link := atomEntryLink(entry.Links)
		if link == "" {
			continue
		}
		published := entry.Published
		if strings.TrimSpace(published) == "" {
			published = entry.Updated
		}
		items = append(items, Item{
			OriginURL:   link,
			Title:       strings.TrimSpace(entry.Title),
			PublishedAt: parseFeedTime(published),
		})
	}
	return items, nil
}

func atomEntryLink(links []atomLink) string {
	for _, link := range links {
		if link.Rel == "" || link.Rel == "alternate" {
			if href := strings.TrimSpace(link.Href); href != "" {
				return href
			}
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func parseFeedTime(raw string) *time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	for _, layout := range feedTimeLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}

func fetchBody(ctx context.Context, client *http.Client, rawURL, bearerToken string, byteLimit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, byteLimit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
