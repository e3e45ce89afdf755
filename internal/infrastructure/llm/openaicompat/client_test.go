package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vkuznetsov/usecase-rag/internal/core/domain"
	"github.com/vkuznetsov/usecase-rag/internal/infrastructure/resilience"
)

func fastResilience() resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2.0,
		BreakerEnabled:      false,
	}
}

func newTestClient(baseURL string) *Client {
	return New(Config{
		BaseURL:        baseURL + "/v1",
		APIKey:         "test-key",
		ChatModel:      "llama-3.3-70b",
		EmbeddingModel: "text-embedding-3-small",
		Resilience:     fastResilience(),
	})
}

func TestGenerateSendsSystemAndUserMessages(t *testing.T) {
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  {\"use_cases\":[]}  "}}]}`)
	}))
	defer srv.Close()

	out, err := NewGenerator(newTestClient(srv.URL)).Generate(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != `{"use_cases":[]}` {
		t.Fatalf("expected trimmed content, got %q", out)
	}
	if gotBody.Model != "llama-3.3-70b" {
		t.Fatalf("unexpected model: %s", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" || gotBody.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", gotBody.Messages)
	}
	if gotBody.Messages[0].Content != "system text" || gotBody.Messages[1].Content != "user text" {
		t.Fatalf("message contents mangled: %+v", gotBody.Messages)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"message":"overloaded"}}`)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	out, err := NewGenerator(newTestClient(srv.URL)).Generate(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "ok" {
		t.Fatalf("expected recovery after retry, got %q", out)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad model"}}`)
	}))
	defer srv.Close()

	_, err := NewGenerator(newTestClient(srv.URL)).Generate(context.Background(), "s", "u")
	if err == nil {
		t.Fatalf("expected error for 400 response")
	}
	if attempts != 1 {
		t.Fatalf("client errors must not retry, got %d attempts", attempts)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("client errors are not temporary: %v", err)
	}
}

func TestGenerateExhaustedRetriesAreTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"error":{"message":"upstream down"}}`)
	}))
	defer srv.Close()

	_, err := NewGenerator(newTestClient(srv.URL)).Generate(context.Background(), "s", "u")
	if err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error kind, got %v", err)
	}
}

func TestEmbedReturnsVectorsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[0.1,0.2]},{"index":1,"embedding":[0.3,0.4]}]}`)
	}))
	defer srv.Close()

	vectors, err := NewEmbedder(newTestClient(srv.URL)).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 0.1 || vectors[1][1] != 0.4 {
		t.Fatalf("vector order broken: %v", vectors)
	}
}

func TestEmbedEmptyInputIsNoop(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	vectors, err := NewEmbedder(newTestClient(srv.URL)).Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if vectors != nil || called {
		t.Fatalf("empty input must not hit the API")
	}
}

func TestEmbedCountMismatchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[0.1]}]}`)
	}))
	defer srv.Close()

	if _, err := NewEmbedder(newTestClient(srv.URL)).Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected error on embedding count mismatch")
	}
}
