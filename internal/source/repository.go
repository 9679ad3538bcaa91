package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"kelp.press/curator/internal/db"
)

// RepositoryClient yields exactly one candidate item per fetch: the
// repository itself. There are no cursor semantics; repeat fetches are
// absorbed by the dedup gate.
type RepositoryClient struct{}

func (c *RepositoryClient) Fetch(_ context.Context, src db.Source, _ time.Time) ([]Item, error) {
	locator := strings.TrimSpace(src.Locator)
	parsed, err := url.Parse(locator)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("repository locator %q is not a valid URL", locator)
	}

	title := strings.Trim(parsed.Path, "/")
	if title == "" {
		title = parsed.Host
	}

	return []Item{{
		OriginURL: locator,
		Title:     title,
	}}, nil
}
