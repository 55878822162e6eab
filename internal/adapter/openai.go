package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openaiEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI embedder. baseURL and httpClient are optional.
func NewOpenAI(apiKey, model, baseURL string, httpClient *http.Client) Embedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &openaiEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *openaiEmbedder) Model() string { return o.model }

func (o *openaiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	result := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embed: vector index %d out of range", d.Index)
		}
		result[d.Index] = d.Embedding
	}
	return result, nil
}
