package distribute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultPostTimeout = 30 * time.Second

// Poster is one platform's posting API.
type Poster interface {
	Name() string
	CreatePost(ctx context.Context, text string) (string, error)
	DeletePost(ctx context.Context, postID string) error
}

// TwitterPoster talks to the v2 tweets endpoint.
type TwitterPoster struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
}

func NewTwitterPoster(baseURL, bearerToken string) *TwitterPoster {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.twitter.com/2"
	}
	return &TwitterPoster{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		BearerToken: strings.TrimSpace(bearerToken),
		HTTPClient:  &http.Client{Timeout: defaultPostTimeout},
	}
}

func (p *TwitterPoster) Name() string { return PlatformTwitter }

func (p *TwitterPoster) CreatePost(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("marshal tweet request: %w", err)
	}

	respBody, err := doJSON(ctx, p.HTTPClient, http.MethodPost, p.BaseURL+"/tweets", p.BearerToken, payload)
	if err != nil {
		return "", fmt.Errorf("create tweet: %w", err)
	}

	var parsed struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode tweet response: %w", err)
	}
	if parsed.Data.ID == "" {
		return "", fmt.Errorf("tweet response missing id")
	}
	return parsed.Data.ID, nil
}

func (p *TwitterPoster) DeletePost(ctx context.Context, postID string) error {
	endpoint := p.BaseURL + "/tweets/" + url.PathEscape(postID)
	if _, err := doJSON(ctx, p.HTTPClient, http.MethodDelete, endpoint, p.BearerToken, nil); err != nil {
		return fmt.Errorf("delete tweet %s: %w", postID, err)
	}
	return nil
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, token string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if client == nil {
		client = &http.Client{Timeout: defaultPostTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
