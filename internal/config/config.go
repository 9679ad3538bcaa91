package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"CURATOR_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"CURATOR_DB_MAX_CONNS" default:"8"`

	// Ingestion.
	InsertDelay     time.Duration `envconfig:"INGEST_INSERT_DELAY" default:"1s"`
	MailIgnoreHosts string        `envconfig:"MAIL_IGNORE_HOSTS" default:"unsubscribe.example.com,mailtrack.io"`
	MailSearchURL   string        `envconfig:"MAIL_SEARCH_URL" default:""`
	MailSearchToken string        `envconfig:"MAIL_SEARCH_TOKEN" default:""`
	VideoAPIURL     string        `envconfig:"VIDEO_API_URL" default:"https://www.googleapis.com/youtube/v3"`
	VideoAPIKey     string        `envconfig:"VIDEO_API_KEY" default:""`
	AggregatorURL   string        `envconfig:"AGGREGATOR_URL" default:"https://lobste.rs"`
	AggregatorTags  string        `envconfig:"AGGREGATOR_TAGS" default:"programming,ai,web"`

	// Enrichment.
	LLMEndpoint       string `envconfig:"LLM_ENDPOINT" default:"https://api.openai.com/v1/chat/completions"`
	LLMModel          string `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMAPIKey         string `envconfig:"LLM_API_KEY" default:""`
	EmbeddingEndpoint string `envconfig:"EMBEDDING_ENDPOINT" default:"http://127.0.0.1:8844/embed"`
	EmbeddingModel    string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	MinContentLength  int    `envconfig:"MIN_CONTENT_LENGTH" default:"120"`
	AutoPruneKinds    string `envconfig:"AUTO_PRUNE_KINDS" default:"mailbox,aggregator"`

	// Distribution.
	SiteBaseURL    string `envconfig:"SITE_BASE_URL" default:"https://kelp.press"`
	TwitterAPIURL  string `envconfig:"TWITTER_API_URL" default:"https://api.twitter.com/2"`
	TwitterToken   string `envconfig:"TWITTER_TOKEN" default:""`
	MastodonAPIURL string `envconfig:"MASTODON_API_URL" default:""`
	MastodonToken  string `envconfig:"MASTODON_TOKEN" default:""`

	// HTTP API.
	HTTPHost string `envconfig:"CURATOR_HTTP_HOST" default:"127.0.0.1"`
	HTTPPort int    `envconfig:"CURATOR_HTTP_PORT" default:"8090"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("CURATOR_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("CURATOR_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("CURATOR_DB_MIN_CONNS (%d) cannot exceed CURATOR_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.InsertDelay < 0 {
		return fmt.Errorf("INGEST_INSERT_DELAY must not be negative")
	}
	if c.MinContentLength < 0 {
		return fmt.Errorf("MIN_CONTENT_LENGTH must not be negative")
	}
	if strings.TrimSpace(c.SiteBaseURL) == "" {
		return fmt.Errorf("SITE_BASE_URL is required")
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("CURATOR_HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

// MailIgnoreHostList splits MAIL_IGNORE_HOSTS into a deduplicated slice.
func (c *Config) MailIgnoreHostList() []string {
	return splitCSV(c.MailIgnoreHosts)
}

// AggregatorTagList splits AGGREGATOR_TAGS into a deduplicated slice.
func (c *Config) AggregatorTagList() []string {
	return splitCSV(c.AggregatorTags)
}

// AutoPruneKindList splits AUTO_PRUNE_KINDS into a deduplicated slice.
func (c *Config) AutoPruneKindList() []string {
	return splitCSV(c.AutoPruneKinds)
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.ToLower(strings.TrimSpace(part))
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	return values
}
