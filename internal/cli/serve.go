package cli

import (
	"github.com/spf13/cobra"

	"github.com/repolens/repolens/internal/dataset"
	"github.com/repolens/repolens/internal/mcp"
	"github.com/repolens/repolens/internal/pipeline"
)

func newServeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the reducer, comment normalizer and partition stats as MCP tools on stdio",
		Long: `Start an MCP server on stdin/stdout exposing:

  reduce_text            shrink text to a token ceiling
  reduce_with_comments   fit a body and its discussion into a token ceiling
  normalize_comments     drop bot comments and join the rest
  partition_stats        list stored partitions (needs --repo)
  search_similar         nearest stored items to a text or an item (needs --repo;
                         text queries also need an embedding provider)

Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, reducer, err := e.newReducer(e.cfg.Embedding.MaxTokens)
			if err != nil {
				return err
			}
			var store *dataset.Store
			if e.cfg.Crawl.Owner != "" && e.cfg.Crawl.Repo != "" {
				store = e.newStore()
			}
			srv := mcp.NewServer(tok, e.cfg.Embedding.MaxTokens, store, version, e.log)

			embedder, err := e.newEmbedder()
			if err != nil {
				e.log.Warn().Err(err).Msg("text search disabled")
			} else {
				srv.EnableQuerySearch(pipeline.New(reducer, embedder, nil, pipeline.Options{}, e.log))
			}
			return srv.ServeStdio()
		},
	}
}
