package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew_Providers(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantModel string
	}{
		{"openai default model", Options{Provider: ProviderOpenAI, APIKey: "k"}, DefaultOpenAIModel},
		{"openai custom model", Options{Provider: ProviderOpenAI, APIKey: "k", Model: "text-embedding-3-small"}, "text-embedding-3-small"},
		{"empty provider is openai", Options{APIKey: "k"}, DefaultOpenAIModel},
		{"ollama defaults", Options{Provider: ProviderOllama}, DefaultOllamaModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.opts)
			if err != nil {
				t.Fatalf("New error: %v", err)
			}
			if e.Model() != tt.wantModel {
				t.Errorf("Model() = %q, want %q", e.Model(), tt.wantModel)
			}
		})
	}
}

func TestNew_InvalidProvider(t *testing.T) {
	if _, err := New(Options{Provider: "claude"}); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestNew_OpenAIRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New(Options{Provider: ProviderOpenAI}); err == nil {
		t.Error("expected error without API key")
	}

	t.Setenv("OPENAI_API_KEY", "from-env")
	if _, err := New(Options{Provider: ProviderOpenAI}); err != nil {
		t.Errorf("key from environment rejected: %v", err)
	}
}

func TestOpenAIEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "text-embedding-3-large" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Input) != 2 {
			t.Errorf("inputs = %d", len(req.Input))
		}
		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose: vectors are placed by index.
		io.WriteString(w, `{"object":"list","model":"text-embedding-3-large","data":[
			{"object":"embedding","index":1,"embedding":[0.5,0.6]},
			{"object":"embedding","index":0,"embedding":[0.1,0.2]}
		]}`)
	}))
	defer server.Close()

	e := NewOpenAI("sk-test", DefaultOpenAIModel, server.URL+"/v1", server.Client())
	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 0.1 || vecs[1][1] != 0.6 {
		t.Errorf("unexpected vectors %v", vecs)
	}
}

func TestOpenAIEmbed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"object":"list","data":[]}`)
	}))
	defer server.Close()

	e := NewOpenAI("sk-test", DefaultOpenAIModel, server.URL+"/v1", server.Client())
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("expected error when the endpoint returns no vectors")
	}
}

func TestOpenAIEmbed_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"maximum context length is 8192 tokens","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	e := NewOpenAI("sk-test", DefaultOpenAIModel, server.URL+"/v1", server.Client())
	_, err := e.Embed(context.Background(), []string{"x"})
	if err == nil || !strings.Contains(err.Error(), "maximum context length") {
		t.Errorf("expected API error message, got %v", err)
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	for _, e := range []Embedder{
		NewOpenAI("k", DefaultOpenAIModel, "http://127.0.0.1:0", nil),
		NewOllama("http://127.0.0.1:0", DefaultOllamaModel, nil),
	} {
		vecs, err := e.Embed(context.Background(), nil)
		if err != nil || vecs != nil {
			t.Errorf("%s: Embed(nil) = %v, %v", e.Model(), vecs, err)
		}
	}
}

func TestOllamaEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 2, 3}}})
	}))
	defer server.Close()

	e := NewOllama(server.URL+"/", DefaultOllamaModel, nil)
	vecs, err := e.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 3 {
		t.Errorf("unexpected vectors %v", vecs)
	}
}

func TestOllamaEmbed_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	e := NewOllama(server.URL, "missing", nil)
	_, err := e.Embed(context.Background(), []string{"hello"})
	if err == nil || !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("expected status error, got %v", err)
	}
}
