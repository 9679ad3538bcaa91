package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultEmbeddingEndpoint       = "http://127.0.0.1:8844/embed"
	DefaultEmbeddingModelName      = "Qwen3-Embedding-8B"
	DefaultEmbeddingMaxLength      = 512
	DefaultEmbeddingRequestTimeout = 45 * time.Second
)

// EmbedClient requests a single embedding vector per article. The
// endpoint speaks either the bare {"texts": ...} shape or the OpenAI
// /v1/embeddings shape; the path decides which payload is sent.
type EmbedClient struct {
	Endpoint       string
	ModelName      string
	MaxLength      int
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

func NewEmbedClient(endpoint, modelName string) *EmbedClient {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEmbeddingEndpoint
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = DefaultEmbeddingModelName
	}
	return &EmbedClient{
		Endpoint:       normalizeEmbeddingEndpoint(endpoint),
		ModelName:      modelName,
		MaxLength:      DefaultEmbeddingMaxLength,
		RequestTimeout: DefaultEmbeddingRequestTimeout,
	}
}

type embedRequest struct {
	Texts     []string `json:"texts,omitempty"`
	Input     []string `json:"input,omitempty"`
	Model     string   `json:"model,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the vector for the text as a Postgres vector literal.
func (c *EmbedClient) Embed(ctx context.Context, text string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("embed client is nil")
	}
	input := strings.TrimSpace(text)
	if input == "" {
		return "", fmt.Errorf("embedding input is empty")
	}

	payload := embedRequest{
		Texts:     []string{input},
		MaxLength: c.MaxLength,
	}
	if parsed, err := url.Parse(c.Endpoint); err == nil && strings.HasSuffix(parsed.Path, "/v1/embeddings") {
		payload = embedRequest{Input: []string{input}, Model: c.ModelName}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal embedding request: %w", err)
	}

	timeout := c.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultEmbeddingRequestTimeout
	}
	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("embedding service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode embedding response: %w", err)
	}

	vectors := parsed.Embeddings
	if len(vectors) == 0 && len(parsed.Data) > 0 {
		sort.Slice(parsed.Data, func(i, j int) bool {
			return parsed.Data[i].Index < parsed.Data[j].Index
		})
		for _, row := range parsed.Data {
			vectors = append(vectors, row.Embedding)
		}
	}
	if len(vectors) == 0 {
		return "", fmt.Errorf("embedding response missing vectors")
	}

	return toVectorLiteral(vectors[0])
}

func normalizeEmbeddingEndpoint(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultEmbeddingEndpoint
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	if parsed.Path == "" || parsed.Path == "/" {
		parsed.Path = "/embed"
	}
	return parsed.String()
}

func toVectorLiteral(values []float64) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("vector is empty")
	}

	var builder strings.Builder
	builder.Grow(len(values) * 8)
	builder.WriteByte('[')
	for i, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return "", fmt.Errorf("vector has non-finite value at index %d", i)
		}
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}
