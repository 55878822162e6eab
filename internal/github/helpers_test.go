package github

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
	Auth      string         `json:"-"`
}

type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (r *recorder) all() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.requests...)
}

// graphQLServer serves respond(call, request) -> (status, body) and records
// every request it receives.
func graphQLServer(t *testing.T, respond func(call int, req recordedRequest) (int, string)) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req recordedRequest
		require.NoError(t, json.Unmarshal(raw, &req))
		req.Auth = r.Header.Get("Authorization")

		rec.mu.Lock()
		call := len(rec.requests)
		rec.requests = append(rec.requests, req)
		rec.mu.Unlock()

		status, body := respond(call, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func testSource(t *testing.T, respond func(call int, req recordedRequest) (int, string)) (*Source, *recorder) {
	t.Helper()
	srv, rec := graphQLServer(t, respond)
	gql := NewGraphQLClient(srv.Client(), srv.URL, zerolog.Nop())
	src := NewSource(gql, Repo{Owner: "acme", Name: "widgets"}, SourceOptions{
		Branch:      "dev",
		PagePacer:   FixedDelay(0),
		LookupPacer: FixedDelay(0),
	}, zerolog.Nop())
	return src, rec
}

func pageInfoJSON(hasNext bool, cursor string) string {
	if cursor == "" {
		return fmt.Sprintf(`{"endCursor":null,"hasNextPage":%t}`, hasNext)
	}
	return fmt.Sprintf(`{"endCursor":%q,"hasNextPage":%t}`, cursor, hasNext)
}

func edgesJSON(nodes []string) string {
	edges := make([]string, len(nodes))
	for i, n := range nodes {
		edges[i] = `{"node":` + n + `}`
	}
	return "[" + strings.Join(edges, ",") + "]"
}

func searchPage(nodes []string, hasNext bool, cursor string) string {
	return fmt.Sprintf(`{"data":{"search":{"pageInfo":%s,"edges":%s}}}`, pageInfoJSON(hasNext, cursor), edgesJSON(nodes))
}

func historyPage(nodes []string, hasNext bool, cursor string) string {
	return fmt.Sprintf(`{"data":{"repository":{"ref":{"target":{"history":{"pageInfo":%s,"edges":%s}}}}}}`,
		pageInfoJSON(hasNext, cursor), edgesJSON(nodes))
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
