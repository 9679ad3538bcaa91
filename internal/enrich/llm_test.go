package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeEndpoint(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty falls back to default", "", DefaultLLMEndpoint},
		{"bare host gets scheme and v1", "localhost:8845", "http://localhost:8845/v1"},
		{"trailing slash trimmed", "http://localhost:8845/v1/", "http://localhost:8845/v1"},
		{"existing path kept", "https://api.example.com/compat", "https://api.example.com/compat"},
	}
	for _, tc := range cases {
		if got := normalizeEndpoint(tc.in); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestChatCompletionsURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"http://localhost:8845/v1", "http://localhost:8845/v1/chat/completions"},
		{"http://localhost:8845/v1/chat/completions", "http://localhost:8845/v1/chat/completions"},
		{"https://api.example.com", "https://api.example.com/v1/chat/completions"},
		{"https://api.example.com/compat", "https://api.example.com/compat/v1/chat/completions"},
	}
	for _, tc := range cases {
		if got := chatCompletionsURL(tc.in); got != tc.want {
			t.Fatalf("chatCompletionsURL(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	t.Parallel()

	if got := stripCodeFence("```json\n{\"a\":1}\n```"); got != `{"a":1}` {
		t.Fatalf("expected fence stripped, got %q", got)
	}
	if got := stripCodeFence("```\n{\"a\":1}\n```"); got != `{"a":1}` {
		t.Fatalf("expected bare fence stripped, got %q", got)
	}
	if got := stripCodeFence(`{"a":1}`); got != `{"a":1}` {
		t.Fatalf("expected unfenced content untouched, got %q", got)
	}
}

func TestLLMClientCompleteRoundTrip(t *testing.T) {
	t.Parallel()

	var received chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"title_ko\":\"제목\"}"}}]}`))
	}))
	defer server.Close()

	client := NewLLMClient(server.URL, "test-model", "")
	raw, err := client.Complete(context.Background(), "Headline", "article body text")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if string(raw) != `{"title_ko":"제목"}` {
		t.Fatalf("unexpected content: %s", raw)
	}
	if received.Model != "test-model" {
		t.Fatalf("expected model forwarded, got %q", received.Model)
	}
	if len(received.Messages) != 2 || received.Messages[1].Content != "Title: Headline\n\narticle body text" {
		t.Fatalf("unexpected messages: %+v", received.Messages)
	}
}

func TestLLMClientCompleteReportsEndpointError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"model is loading"}}`))
	}))
	defer server.Close()

	client := NewLLMClient(server.URL, "test-model", "")
	if _, err := client.Complete(context.Background(), "", "body"); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}
