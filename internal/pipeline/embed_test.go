package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/internal/comments"
	"github.com/repolens/repolens/internal/dataset"
	"github.com/repolens/repolens/internal/github"
	"github.com/repolens/repolens/internal/tokens"
)

// wordCodec treats every whitespace-separated word as one token.
type wordCodec struct {
	ids   map[string]int
	words []string
}

func (c *wordCodec) Encode(text string) []int {
	if c.ids == nil {
		c.ids = map[string]int{}
	}
	fields := strings.Fields(text)
	out := make([]int, len(fields))
	for i, w := range fields {
		id, ok := c.ids[w]
		if !ok {
			id = len(c.words)
			c.ids[w] = id
			c.words = append(c.words, w)
		}
		out[i] = id
	}
	return out
}

func (c *wordCodec) Decode(toks []int) string {
	words := make([]string, len(toks))
	for i, id := range toks {
		words[i] = c.words[id]
	}
	return strings.Join(words, " ")
}

type fakeEmbedder struct {
	batches [][]string
	err     error
}

func (f *fakeEmbedder) Model() string { return "fake-embed" }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(strings.Fields(t))), float32(i)}
	}
	return out, nil
}

type fakeDiffs struct {
	pulls   map[int]string
	commits map[string]string
}

func (f *fakeDiffs) PullRequestDiff(_ context.Context, n int) (string, error) {
	d, ok := f.pulls[n]
	if !ok {
		return "", &github.HTTPError{StatusCode: 404}
	}
	return d, nil
}

func (f *fakeDiffs) CommitDiff(_ context.Context, sha string) (string, error) {
	d, ok := f.commits[sha]
	if !ok {
		return "", &github.HTTPError{StatusCode: 404}
	}
	return d, nil
}

func newPipeline(t *testing.T, maxTokens int, e *fakeEmbedder, d DiffSource, opts Options) *Pipeline {
	t.Helper()
	r, err := tokens.NewReducer(&wordCodec{}, maxTokens, zerolog.Nop())
	require.NoError(t, err)
	return New(r, e, d, opts, zerolog.Nop())
}

func login(s string) *string { return &s }

func TestText_Issue(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, 6, &fakeEmbedder{}, nil, Options{})

	t.Run("no discussion carries the sentinel", func(t *testing.T) {
		text, reduced, err := p.Text(ctx, github.Issue{Number: 1, Title: "Crash", BodyText: "on"})
		require.NoError(t, err)
		assert.False(t, reduced)
		assert.Equal(t, "Crash\non\n"+comments.NoComments, text)
	})

	t.Run("bot only discussion adds nothing", func(t *testing.T) {
		text, _, err := p.Text(ctx, github.Issue{Number: 2, Title: "t", BodyText: "b", Comments: []comments.Comment{
			{Author: login("dependabot"), Body: "bump"},
		}})
		require.NoError(t, err)
		assert.Equal(t, "t\nb", text)
	})

	t.Run("long discussion is trimmed, body kept", func(t *testing.T) {
		text, reduced, err := p.Text(ctx, github.Issue{Number: 3, Title: "t", BodyText: "b", Comments: []comments.Comment{
			{Author: login("alice"), Body: "a b c d e f"},
		}})
		require.NoError(t, err)
		assert.True(t, reduced)
		assert.True(t, strings.HasPrefix(text, "t\nb\n"), "got %q", text)
		assert.Equal(t, "t\nb\n_user_comment_: e f", text)
		assert.LessOrEqual(t, len(strings.Fields(text)), 6)
	})
}

func TestText_PullRequestAndCommit(t *testing.T) {
	ctx := context.Background()
	diffs := &fakeDiffs{
		pulls:   map[int]string{7: "+x"},
		commits: map[string]string{"abc": "one two three four five six seven eight"},
	}

	p := newPipeline(t, 4, &fakeEmbedder{}, diffs, Options{IncludePRDiff: true})

	text, reduced, err := p.Text(ctx, github.PullRequest{Number: 7, Title: "Add", BodyText: "x"})
	require.NoError(t, err)
	assert.False(t, reduced)
	assert.Equal(t, "Add\nx\n+x", text)

	_, _, err = p.Text(ctx, github.PullRequest{Number: 8, Title: "Gone"})
	assert.True(t, github.IsNotFound(err))

	text, reduced, err = p.Text(ctx, github.Commit{OID: "abc"})
	require.NoError(t, err)
	assert.True(t, reduced)
	assert.Equal(t, "one two seven eight", text)

	noDiffs := newPipeline(t, 4, &fakeEmbedder{}, nil, Options{})
	_, _, err = noDiffs.Text(ctx, github.Commit{OID: "abc"})
	assert.ErrorContains(t, err, "no diff source")

	text, _, err = noDiffs.Text(ctx, github.PullRequest{Number: 7, Title: "Add", BodyText: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Add\nx", text)
}

func writeIssues(t *testing.T, n int) (*dataset.Store, []github.Item) {
	t.Helper()
	store := dataset.NewStore(t.TempDir(), github.Repo{Owner: "acme", Name: "widgets"}, zerolog.Nop())
	items := make([]github.Item, n)
	for i := range items {
		items[i] = github.Issue{Number: i + 1, Title: "issue", BodyText: strings.Repeat("w ", i+1), URL: "u"}
	}
	require.NoError(t, store.WritePartition(context.Background(), github.EntityIssues, 2021, items))
	return store, items
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	store, _ := writeIssues(t, 3)

	part, err := store.Open(github.EntityIssues, 2021)
	require.NoError(t, err)
	defer part.Close()

	e := &fakeEmbedder{}
	p := newPipeline(t, 100, e, nil, Options{BatchSize: 2})
	var seen []string
	p.OnItem(func(key string) { seen = append(seen, key) })

	res, err := p.Run(ctx, part)
	require.NoError(t, err)
	assert.Equal(t, Result{Embedded: 3}, res)
	require.Len(t, e.batches, 2)
	assert.Len(t, e.batches[0], 2)
	assert.Len(t, e.batches[1], 1)
	assert.Equal(t, []string{"1", "2", "3"}, seen)

	v, ok, err := part.Embedding(ctx, "3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float32(len(strings.Fields(e.batches[1][0]))), v[0])

	// A second run finds everything embedded.
	res, err = p.Run(ctx, part)
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 3}, res)
	assert.Len(t, e.batches, 2)

	forced := newPipeline(t, 100, e, nil, Options{BatchSize: 10, Force: true})
	res, err = forced.Run(ctx, part)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Embedded)
	assert.Len(t, e.batches, 3)
}

func TestRun_TextsRespectCeiling(t *testing.T) {
	ctx := context.Background()
	store, _ := writeIssues(t, 5)
	part, err := store.Open(github.EntityIssues, 2021)
	require.NoError(t, err)
	defer part.Close()

	e := &fakeEmbedder{}
	res, err := newPipeline(t, 4, e, nil, Options{}).Run(ctx, part)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Embedded)
	assert.Positive(t, res.Reduced)
	for _, batch := range e.batches {
		for _, text := range batch {
			assert.LessOrEqual(t, len(strings.Fields(text)), 4, "text %q", text)
		}
	}
}

func TestRun_EmbedError(t *testing.T) {
	store, _ := writeIssues(t, 1)
	part, err := store.Open(github.EntityIssues, 2021)
	require.NoError(t, err)
	defer part.Close()

	e := &fakeEmbedder{err: errors.New("quota")}
	_, err = newPipeline(t, 100, e, nil, Options{}).Run(context.Background(), part)
	assert.ErrorContains(t, err, "quota")

	keys, err := part.EmbeddedKeys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRun_EmptyCommitDiffSkipped(t *testing.T) {
	ctx := context.Background()
	store := dataset.NewStore(t.TempDir(), github.Repo{Owner: "acme", Name: "widgets"}, zerolog.Nop())
	require.NoError(t, store.WritePartition(ctx, github.EntityCommits, 2020, []github.Item{
		github.Commit{OID: "empty"}, github.Commit{OID: "full"},
	}))
	part, err := store.Open(github.EntityCommits, 2020)
	require.NoError(t, err)
	defer part.Close()

	diffs := &fakeDiffs{commits: map[string]string{"empty": "", "full": "+line"}}
	e := &fakeEmbedder{}
	res, err := newPipeline(t, 100, e, diffs, Options{}).Run(ctx, part)
	require.NoError(t, err)
	assert.Equal(t, Result{Embedded: 1, Skipped: 1}, res)
	assert.Equal(t, [][]string{{"+line"}}, e.batches)
}
