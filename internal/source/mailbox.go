package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"kelp.press/curator/internal/db"
)

const mailBodyByteLimit = 8 * 1024 * 1024

// shortenerParams maps known link-shortener hosts to the query
// parameter that carries the destination URL. Hosts absent from this
// map fall back to a redirect probe.
var shortenerParams = map[string]string{
	"www.google.com":          "url",
	"google.com":              "url",
	"r.newsletter.kelp.press": "u",
	"substack.com":            "redirect",
}

var redirectProbeHosts = map[string]struct{}{
	"bit.ly":      {},
	"buff.ly":     {},
	"t.co":        {},
	"tinyurl.com": {},
}

// MailboxClient searches a mail relay for newsletter messages from the
// source's sender address and yields the hyperlinks found in their HTML
// bodies.
type MailboxClient struct {
	SearchURL   string
	SearchToken string
	IgnoreHosts []string
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

type mailMessage struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	ReceivedAt string `json:"received_at"`
	HTMLBody   string `json:"html_body"`
}

type mailSearchResponse struct {
	Messages []mailMessage `json:"messages"`
}

func (c *MailboxClient) Fetch(ctx context.Context, src db.Source, cursor time.Time) ([]Item, error) {
	if strings.TrimSpace(c.SearchURL) == "" {
		return nil, fmt.Errorf("mail search endpoint is not configured")
	}

	searchURL, err := url.Parse(c.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("parse mail search endpoint: %w", err)
	}
	query := searchURL.Query()
	query.Set("from", strings.TrimSpace(src.Locator))
	if !cursor.IsZero() {
		query.Set("after", cursor.UTC().Format(time.RFC3339))
	}
	searchURL.RawQuery = query.Encode()

	raw, err := fetchBody(ctx, c.HTTPClient, searchURL.String(), c.SearchToken, mailBodyByteLimit)
	if err != nil {
		return nil, fmt.Errorf("search mailbox %s: %w", src.Locator, err)
	}

	var parsed mailSearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode mail search response: %w", err)
	}

	seen := make(map[string]struct{})
	items := make([]Item, 0, 16)
	for _, message := range parsed.Messages {
		receivedAt := parseFeedTime(message.ReceivedAt)
		links, err := extractMailLinks(message.HTMLBody)
		if err != nil {
			c.Logger.Warn().Err(err).Str("message_id", message.ID).Msg("skipping unparseable mail body")
			continue
		}

		for _, link := range links {
			resolved := c.resolveLink(ctx, link)
			if resolved == "" {
				continue
			}
			if c.ignoredHost(resolved) {
				continue
			}
			if _, exists := seen[resolved]; exists {
				continue
			}
			seen[resolved] = struct{}{}
			items = append(items, Item{
				OriginURL:   resolved,
				PublishedAt: receivedAt,
			})
		}
	}
	return items, nil
}

func extractMailLinks(htmlBody string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("parse mail html: %w", err)
	}

	links := make([]string, 0, 16)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			return
		}
		links = append(links, href)
	})
	return links, nil
}

// resolveLink unwraps tracking and shortener indirection: either the
// destination hides in a query parameter, or a single no-follow probe
// reads the Location header.
func (c *MailboxClient) resolveLink(ctx context.Context, rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())

	if param, ok := shortenerParams[host]; ok {
		if target := strings.TrimSpace(parsed.Query().Get(param)); target != "" {
			if _, err := url.Parse(target); err == nil {
				return target
			}
		}
	}

	if _, ok := redirectProbeHosts[host]; ok {
		if target := c.probeRedirect(ctx, rawURL); target != "" {
			return target
		}
	}

	return rawURL
}

func (c *MailboxClient) probeRedirect(ctx context.Context, rawURL string) string {
	client := &http.Client{
		Timeout: defaultFetchTimeout,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return ""
	}
	resp, err := client.Do(req)
	if err != nil {
		c.Logger.Debug().Err(err).Str("url", rawURL).Msg("shortener probe failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return ""
	}
	location := strings.TrimSpace(resp.Header.Get("Location"))
	if location == "" {
		return ""
	}
	resolved, err := resp.Request.URL.Parse(location)
	if err != nil {
		return ""
	}
	return resolved.String()
}

func (c *MailboxClient) ignoredHost(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(parsed.Hostname())
	for _, ignored := range c.IgnoreHosts {
		if host == ignored || strings.HasSuffix(host, "."+ignored) {
			return true
		}
	}
	return false
}
