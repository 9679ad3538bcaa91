package enrich

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

const (
	// DefaultLLMEndpoint points to a local OpenAI-compatible endpoint.
	DefaultLLMEndpoint = "http://127.0.0.1:8845/v1"
	DefaultLLMModel    = "Qwen3-32B"

	defaultLLMTimeout = 180 * time.Second
)

// systemInstruction is the fixed preamble sent with every enrichment
// request. The article body follows as the user message.
const systemInstruction = `You are an editor for a Korean software engineering news service.
Given an article, produce a JSON object with exactly these fields:
  "title_ko": a natural Korean headline for the article,
  "summary_keys": up to 3 one-line key takeaways in Korean,
  "summary_detail": {"introduction": ..., "body": ..., "conclusion": ...} in Korean markdown,
  "tags": up to 3 short lowercase topic tags in English,
  "is_related": true only when the article is about software development or adjacent technology.
Respond with the JSON object only. No prose, no code fences.`

// LLMClient calls an OpenAI-compatible chat completions endpoint and
// returns the raw model output for schema validation upstream.
type LLMClient struct {
	endpointURL string
	model       string
	apiKey      string
	client      *http.Client
}

func NewLLMClient(endpoint, model, apiKey string) *LLMClient {
	normalizedEndpoint := normalizeEndpoint(endpoint)
	trimmedModel := strings.TrimSpace(model)
	if trimmedModel == "" {
		trimmedModel = DefaultLLMModel
	}
	return &LLMClient{
		endpointURL: chatCompletionsURL(normalizedEndpoint),
		model:       trimmedModel,
		apiKey:      strings.TrimSpace(apiKey),
		client: &http.Client{
			Timeout: defaultLLMTimeout,
		},
	}
}

// ModelName returns the configured model identifier.
func (c *LLMClient) ModelName() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Complete sends the article title and body for enrichment and returns
// the raw response content.
func (c *LLMClient) Complete(ctx context.Context, title, body string) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("llm client is nil")
	}
	text := strings.TrimSpace(body)
	if text == "" {
		return nil, fmt.Errorf("article body is required")
	}

	userContent := text
	if t := strings.TrimSpace(title); t != "" {
		userContent = "Title: " + t + "\n\n" + text
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: userContent},
		},
		Temperature:    0.3,
		ResponseFormat: &chatResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal enrichment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build enrichment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send enrichment request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read enrichment response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errPayload chatErrorResponse
		if unmarshalErr := json.Unmarshal(respBody, &errPayload); unmarshalErr == nil {
			if msg := strings.TrimSpace(errPayload.Error.Message); msg != "" {
				return nil, fmt.Errorf("llm endpoint status %d: %s", resp.StatusCode, msg)
			}
		}
		return nil, fmt.Errorf("llm endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode enrichment response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("enrichment response missing choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("enrichment response was empty")
	}
	return json.RawMessage(stripCodeFence(content)), nil
}

// stripCodeFence removes a surrounding markdown code fence when the
// model ignores the no-fences instruction.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func normalizeEndpoint(raw string) string {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return DefaultLLMEndpoint
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return DefaultLLMEndpoint
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	if parsed.Path == "" {
		parsed.Path = "/v1"
	}
	return parsed.String()
}

func chatCompletionsURL(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return DefaultLLMEndpoint + "/chat/completions"
	}

	path := strings.TrimRight(parsed.Path, "/")
	switch {
	case strings.HasSuffix(path, "/chat/completions"):
		parsed.Path = path
	case strings.HasSuffix(path, "/v1"):
		parsed.Path = path + "/chat/completions"
	case path == "":
		parsed.Path = "/v1/chat/completions"
	default:
		parsed.Path = path + "/v1/chat/completions"
	}

	return parsed.String()
}
