package cli

import (
	"context"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/repolens/repolens/internal/adapter"
	"github.com/repolens/repolens/internal/dataset"
	"github.com/repolens/repolens/internal/github"
	"github.com/repolens/repolens/internal/tokens"
)

func (e *env) newSource(ctx context.Context) *github.Source {
	gh := e.cfg.GitHub
	hc := github.NewHTTPClient(ctx, gh.Token, gh.RequestTimeout)
	gql := github.NewGraphQLClient(hc, gh.GraphQLURL, e.log)
	return github.NewSource(gql, e.cfg.Repo(), github.SourceOptions{
		Branch:      gh.Branch,
		PagePacer:   github.FixedDelay(gh.PageDelay),
		LookupPacer: github.FixedDelay(gh.LookupDelay),
	}, e.log)
}

func (e *env) newDiffClient(ctx context.Context) (*github.DiffClient, error) {
	gh := e.cfg.GitHub
	hc := github.NewHTTPClient(ctx, gh.Token, gh.RequestTimeout)
	return github.NewDiffClient(hc, gh.APIURL, e.cfg.Repo(), github.NewRateLimiter(gh.RESTRate), e.log)
}

func (e *env) newStore() *dataset.Store {
	return dataset.NewStore(e.cfg.Crawl.OutDir, e.cfg.Repo(), e.log)
}

// newReducer pairs the embedding model's tokenizer with maxTokens. Models
// tiktoken does not know, such as local Ollama ones, are counted with the
// default model's encoding.
func (e *env) newReducer(maxTokens int) (*tokens.Tokenizer, *tokens.Reducer, error) {
	tok, err := tokens.NewTokenizer(e.cfg.Embedding.Model)
	if err != nil {
		e.log.Warn().Err(err).Str("fallback", tokens.DefaultModel).Msg("no tokenizer for embedding model")
		if tok, err = tokens.NewTokenizer(tokens.DefaultModel); err != nil {
			return nil, nil, err
		}
	}
	r, err := tokens.NewReducer(tok, maxTokens, e.log)
	if err != nil {
		return nil, nil, err
	}
	return tok, r, nil
}

func (e *env) newEmbedder() (adapter.Embedder, error) {
	emb := e.cfg.Embedding
	return adapter.New(adapter.Options{
		Provider: emb.Provider,
		Model:    emb.Model,
		APIKey:   emb.APIKey,
		BaseURL:  emb.BaseURL,
	})
}

// newProgress draws a bar on stderr when it is a terminal and stays silent
// otherwise, leaving the log as the only progress report.
func newProgress(total int, description string) *progressbar.ProgressBar {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return progressbar.DefaultSilent(int64(total))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
