// Package mcp exposes the reducer, the comment normalizer and partition
// statistics as MCP tools over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/repolens/repolens/internal/dataset"
	"github.com/repolens/repolens/internal/pipeline"
	"github.com/repolens/repolens/internal/tokens"
)

// Server holds the collaborators the tool handlers use.
type Server struct {
	codec     tokens.Codec
	maxTokens int
	// store is nil when no repository is configured.
	store *dataset.Store
	// searcher embeds free-text queries; nil when no embedding provider is
	// configured.
	searcher *pipeline.Pipeline
	log      zerolog.Logger
	mcp   *server.MCPServer
}

// NewServer registers every tool. maxTokens is the default ceiling for
// reduce_text.
func NewServer(codec tokens.Codec, maxTokens int, store *dataset.Store, version string, log zerolog.Logger) *Server {
	s := &Server{
		codec:     codec,
		maxTokens: maxTokens,
		store:     store,
		log:       log,
		mcp:       server.NewMCPServer("repolens", version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("reduce_text",
		mcp.WithDescription("Shrink text to a token ceiling by removing its middle. Text that already fits is returned unchanged."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to reduce")),
		mcp.WithNumber("max_tokens", mcp.Description("Token ceiling; defaults to the configured maximum")),
	), s.handleReduceText)

	s.mcp.AddTool(mcp.NewTool("reduce_with_comments",
		mcp.WithDescription("Fit a body and its discussion into a token ceiling, shortening only the discussion."),
		mcp.WithString("primary", mcp.Required(), mcp.Description("Text kept whole, such as an issue body")),
		mcp.WithString("secondary", mcp.Required(), mcp.Description("Text that may be shortened, such as comments")),
		mcp.WithNumber("max_tokens", mcp.Description("Token ceiling; defaults to the configured maximum")),
	), s.handleReduceWithComments)

	s.mcp.AddTool(mcp.NewTool("normalize_comments",
		mcp.WithDescription("Drop bot comments and join the rest into one string."),
		mcp.WithString("comments", mcp.Required(),
			mcp.Description(`JSON array of {"author": "login", "body": "text"}; author may be omitted`)),
	), s.handleNormalizeComments)

	s.mcp.AddTool(mcp.NewTool("partition_stats",
		mcp.WithDescription("List stored partitions with item and embedding counts."),
		mcp.WithString("entity", mcp.Description("Only partitions of this entity: issues, prs or commit")),
	), s.handlePartitionStats)

	s.mcp.AddTool(mcp.NewTool("search_similar",
		mcp.WithDescription("Find stored issues, pull requests or commits whose embeddings are nearest to a query text or to another stored item."),
		mcp.WithString("query", mcp.Description("Free text to embed and search for")),
		mcp.WithString("like", mcp.Description("Key of a stored item to search around instead: issue or PR number, or commit SHA")),
		mcp.WithString("entity", mcp.Description("Only search this entity: issues, prs or commit. Required with like")),
		mcp.WithNumber("year", mcp.Description("Partition year of the like item")),
		mcp.WithNumber("top_k", mcp.Description("Number of results (default 10)")),
	), s.handleSearchSimilar)

	return s
}

// EnableQuerySearch lets search_similar embed free-text queries with p.
func (s *Server) EnableQuerySearch(p *pipeline.Pipeline) {
	s.searcher = p
}

// ServeStdio blocks serving requests on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info().Msg("mcp server listening on stdio")
	return server.ServeStdio(s.mcp)
}
