package distribute

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// MastodonPoster talks to the statuses endpoint of a Mastodon server.
type MastodonPoster struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
}

func NewMastodonPoster(baseURL, accessToken string) *MastodonPoster {
	return &MastodonPoster{
		BaseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		AccessToken: strings.TrimSpace(accessToken),
		HTTPClient:  &http.Client{Timeout: defaultPostTimeout},
	}
}

func (p *MastodonPoster) Name() string { return PlatformMastodon }

func (p *MastodonPoster) CreatePost(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"status":     text,
		"visibility": "public",
	})
	if err != nil {
		return "", fmt.Errorf("marshal status request: %w", err)
	}

	respBody, err := doJSON(ctx, p.HTTPClient, http.MethodPost, p.BaseURL+"/api/v1/statuses", p.AccessToken, payload)
	if err != nil {
		return "", fmt.Errorf("create status: %w", err)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode status response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("status response missing id")
	}
	return parsed.ID, nil
}

func (p *MastodonPoster) DeletePost(ctx context.Context, postID string) error {
	endpoint := p.BaseURL + "/api/v1/statuses/" + url.PathEscape(postID)
	if _, err := doJSON(ctx, p.HTTPClient, http.MethodDelete, endpoint, p.AccessToken, nil); err != nil {
		return fmt.Errorf("delete status %s: %w", postID, err)
	}
	return nil
}
