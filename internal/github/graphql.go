// Package github crawls repository history from the GitHub GraphQL and REST
// APIs, one calendar month at a time.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// DefaultGraphQLURL is the public GitHub GraphQL endpoint.
	DefaultGraphQLURL = "https://api.github.com/graphql"

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 64 << 20
)

// NewHTTPClient returns an http.Client sending token as a bearer credential.
// A zero timeout leaves requests unbounded.
func NewHTTPClient(ctx context.Context, token string, timeout time.Duration) *http.Client {
	if token == "" {
		return &http.Client{Timeout: timeout}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = timeout
	return hc
}

// Repo identifies a repository.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// GraphQLClient posts queries to a GraphQL endpoint.
type GraphQLClient struct {
	httpClient *http.Client
	endpoint   string
	log        zerolog.Logger
}

// NewGraphQLClient creates a client for endpoint. An empty endpoint selects DefaultGraphQLURL.
func NewGraphQLClient(httpClient *http.Client, endpoint string, log zerolog.Logger) *GraphQLClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = DefaultGraphQLURL
	}
	return &GraphQLClient{httpClient: httpClient, endpoint: endpoint, log: log}
}

// Execute runs query with variables and decodes the "data" member into out.
func (c *GraphQLClient) Execute(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("graphql: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("graphql: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graphql: post: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("graphql: read response: %w", err)
	}

	c.log.Trace().
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Dur("took", time.Since(start)).
		Msg("graphql response")

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw), URL: c.endpoint}
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(raw, &gqlResp); err != nil {
		return malformed("decode body: %v: %s", err, truncate(string(raw), 500))
	}
	if len(gqlResp.Errors) > 0 {
		qe := &QueryError{}
		for _, e := range gqlResp.Errors {
			qe.Messages = append(qe.Messages, e.Message)
			qe.Types = append(qe.Types, e.Type)
		}
		return qe
	}
	if len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return malformed("no data in response")
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return malformed("decode data: %v", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
