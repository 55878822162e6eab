package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/repolens/repolens/internal/comments"
	"github.com/repolens/repolens/internal/github"
	"github.com/repolens/repolens/internal/pipeline"
	"github.com/repolens/repolens/internal/tokens"
)

func (s *Server) reducer(req mcp.CallToolRequest) (*tokens.Reducer, error) {
	return tokens.NewReducer(s.codec, req.GetInt("max_tokens", s.maxTokens), s.log)
}

func (s *Server) handleReduceText(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}
	r, err := s.reducer(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(r.Reduce(text)), nil
}

func (s *Server) handleReduceWithComments(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	primary, err := req.RequireString("primary")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: primary"), nil
	}
	secondary, err := req.RequireString("secondary")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: secondary"), nil
	}
	r, err := s.reducer(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	primary, secondary = r.ReduceWithComments(primary, secondary)
	out, err := json.Marshal(map[string]string{"primary": primary, "secondary": secondary})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) handleNormalizeComments(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("comments")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: comments"), nil
	}
	var list []comments.Comment
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("comments must be a JSON array: %v", err)), nil
	}
	return mcp.NewToolResultText(comments.Normalize(list)), nil
}

func (s *Server) handlePartitionStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no repository configured; set REPOLENS_OWNER and REPOLENS_REPO"), nil
	}

	var only github.Entity
	if e := req.GetString("entity", ""); e != "" {
		parsed, err := github.ParseEntity(e)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		only = parsed
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read partitions: %v", err)), nil
	}
	filtered := stats[:0]
	for _, st := range stats {
		if only == "" || st.Entity == only {
			filtered = append(filtered, st)
		}
	}
	if len(filtered) == 0 {
		return mcp.NewToolResultText("No partitions found."), nil
	}

	out, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

const defaultTopK = 10

func (s *Server) handleSearchSimilar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no repository configured; set REPOLENS_OWNER and REPOLENS_REPO"), nil
	}
	query := req.GetString("query", "")
	like := req.GetString("like", "")
	if (query == "") == (like == "") {
		return mcp.NewToolResultError("give exactly one of query or like"), nil
	}
	topK := req.GetInt("top_k", defaultTopK)
	if topK <= 0 {
		return mcp.NewToolResultError("top_k must be positive"), nil
	}

	var only github.Entity
	if e := req.GetString("entity", ""); e != "" {
		parsed, err := github.ParseEntity(e)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		only = parsed
	}

	all, err := s.store.Partitions()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list partitions: %v", err)), nil
	}
	refs := all[:0]
	for _, ref := range all {
		if only == "" || ref.Entity == only {
			refs = append(refs, ref)
		}
	}

	var matches []pipeline.Match
	if like != "" {
		year := req.GetInt("year", 0)
		if only == "" || year == 0 {
			return mcp.NewToolResultError("like needs entity and year to locate the item"), nil
		}
		matches, err = pipeline.Like(ctx, s.store, only, year, like, refs, topK)
	} else {
		if s.searcher == nil {
			return mcp.NewToolResultError("no embedding provider configured; search with like instead"), nil
		}
		matches, err = s.searcher.Search(ctx, s.store, refs, query, topK)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText("No embedded items matched."), nil
	}

	out, err := json.MarshalIndent(matches, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}
