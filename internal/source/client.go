package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"kelp.press/curator/internal/config"
	"kelp.press/curator/internal/db"
)

const defaultFetchTimeout = 20 * time.Second

// Item is one candidate content item yielded by a source client.
type Item struct {
	OriginURL   string
	Title       string
	PublishedAt *time.Time
}

// Client fetches candidate items for one source. Ordering and cursor
// semantics are per kind: feed and video_channel order by publish time,
// repository and aggregator ignore the cursor entirely and rely on the
// dedup gate downstream.
type Client interface {
	Fetch(ctx context.Context, src db.Source, cursor time.Time) ([]Item, error)
}

// Registry holds one client per source kind. The scheduler depends only
// on ForKind and the Client contract.
type Registry struct {
	clients map[string]Client
}

func NewRegistry(cfg *config.Config, logger zerolog.Logger) *Registry {
	httpClient := &http.Client{Timeout: defaultFetchTimeout}

	return &Registry{
		clients: map[string]Client{
			db.SourceKindFeed: &FeedClient{
				HTTPClient: httpClient,
			},
			db.SourceKindMailbox: &MailboxClient{
				SearchURL:   cfg.MailSearchURL,
				SearchToken: cfg.MailSearchToken,
				IgnoreHosts: cfg.MailIgnoreHostList(),
				HTTPClient:  httpClient,
				Logger:      logger,
			},
			db.SourceKindVideoChannel: &VideoChannelClient{
				APIBaseURL: cfg.VideoAPIURL,
				APIKey:     cfg.VideoAPIKey,
				HTTPClient: httpClient,
			},
			db.SourceKindRepository: &RepositoryClient{},
			db.SourceKindAggregator: &AggregatorClient{
				BaseURL:    cfg.AggregatorURL,
				AllowTags:  cfg.AggregatorTagList(),
				HTTPClient: httpClient,
			},
		},
	}
}

// ForKind resolves the client for a stored source kind.
func (r *Registry) ForKind(kind string) (Client, error) {
	if r == nil {
		return nil, fmt.Errorf("source registry is not initialized")
	}
	client, ok := r.clients[kind]
	if !ok {
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
	return client, nil
}
