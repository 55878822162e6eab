// Package adapter talks to the embedding providers.
package adapter

import (
	"fmt"
	"net/http"
	"os"
)

// Provider name constants.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Provider defaults.
const (
	DefaultOpenAIModel = "text-embedding-3-large"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOllamaHost  = "http://localhost:11434"
)

// Options selects and configures an embedding provider.
type Options struct {
	Provider string
	// Model is the embedding model; empty selects the provider default.
	Model string
	// APIKey authenticates against OpenAI; empty reads OPENAI_API_KEY.
	APIKey string
	// BaseURL overrides the provider endpoint.
	BaseURL    string
	HTTPClient *http.Client
}

// New constructs the Embedder for opts.Provider.
func New(opts Options) (Embedder, error) {
	switch opts.Provider {
	case ProviderOpenAI, "":
		key := opts.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("adapter: openai provider needs an API key (set OPENAI_API_KEY)")
		}
		model := opts.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		return NewOpenAI(key, model, opts.BaseURL, opts.HTTPClient), nil
	case ProviderOllama:
		host := opts.BaseURL
		if host == "" {
			host = DefaultOllamaHost
		}
		model := opts.Model
		if model == "" {
			model = DefaultOllamaModel
		}
		return NewOllama(host, model, opts.HTTPClient), nil
	default:
		return nil, fmt.Errorf("adapter: unknown provider %q; valid providers: openai, ollama", opts.Provider)
	}
}
