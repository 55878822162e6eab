package dataset

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repolens/repolens/internal/comments"
	"github.com/repolens/repolens/internal/github"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), github.Repo{Owner: "acme", Name: "widgets"}, zerolog.Nop())
}

func strPtr(s string) *string { return &s }

func TestStore_PartitionPath(t *testing.T) {
	s := NewStore("/data", github.Repo{Owner: "acme", Name: "widgets"}, zerolog.Nop())
	assert.Equal(t, filepath.Join("/data", "issues", "acme_widgets_2021.db"), s.PartitionPath(github.EntityIssues, 2021))
	assert.Equal(t, filepath.Join("/data", "commit", "acme_widgets_2019.db"), s.PartitionPath(github.EntityCommits, 2019))
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	merged := created.Add(48 * time.Hour)

	tests := []struct {
		name   string
		entity github.Entity
		items  []github.Item
	}{
		{
			name:   "commits",
			entity: github.EntityCommits,
			items: []github.Item{
				github.Commit{OID: "bbb", PullRequests: []int{7, 9}},
				github.Commit{OID: "aaa", PullRequests: []int{}},
			},
		},
		{
			name:   "pull requests",
			entity: github.EntityPullRequests,
			items: []github.Item{
				github.PullRequest{Number: 12, Title: "Fix", URL: "https://github.com/acme/widgets/pull/12", BodyText: "body", CreatedAt: created, MergedAt: &merged},
				github.PullRequest{Number: 3, Title: "Old", URL: "https://github.com/acme/widgets/pull/3", CreatedAt: created},
			},
		},
		{
			name:   "issues",
			entity: github.EntityIssues,
			items: []github.Item{
				github.Issue{
					Number:    40,
					Title:     "Crash",
					URL:       "https://github.com/acme/widgets/issues/40",
					BodyText:  "it crashes",
					CreatedAt: created,
					Assignees: []string{"alice"},
					Comments: []comments.Comment{
						{Author: strPtr("bob"), Body: "repro"},
						{Author: nil, Body: "ghost"},
					},
				},
				github.Issue{Number: 41, Title: "Quiet", URL: "u", CreatedAt: created, Assignees: []string{}, Comments: []comments.Comment{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore(t)
			require.NoError(t, s.WritePartition(ctx, tt.entity, 2021, tt.items))

			got, err := s.Read(ctx, tt.entity, 2021)
			require.NoError(t, err)
			assert.Equal(t, tt.items, got, "items come back in crawl order")
		})
	}
}

func TestStore_NilSlicesReadBackEmpty(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	require.NoError(t, s.WritePartition(ctx, github.EntityIssues, 2020, []github.Item{
		github.Issue{Number: 1, Title: "t", URL: "u"},
	}))

	got, err := s.Read(ctx, github.EntityIssues, 2020)
	require.NoError(t, err)
	require.Len(t, got, 1)
	is := got[0].(github.Issue)
	assert.Empty(t, is.Assignees)
	assert.NotNil(t, is.Comments)
	assert.True(t, is.CreatedAt.IsZero())
}

func TestStore_WritePartitionOverwrites(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	first := []github.Item{github.Commit{OID: "a"}, github.Commit{OID: "b"}}
	require.NoError(t, s.WritePartition(ctx, github.EntityCommits, 2022, first))

	p, err := s.Open(github.EntityCommits, 2022)
	require.NoError(t, err)
	require.NoError(t, p.SaveEmbedding(ctx, "a", "m", 3, []float32{1, 2}))
	require.NoError(t, p.Close())

	second := []github.Item{github.Commit{OID: "c", PullRequests: []int{1}}}
	require.NoError(t, s.WritePartition(ctx, github.EntityCommits, 2022, second))

	got, err := s.Read(ctx, github.EntityCommits, 2022)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].Items)
	assert.Equal(t, 0, stats[0].Embedded, "stale embeddings are dropped")
	assert.NotEmpty(t, stats[0].RunID)
}

func TestStore_WritePartitionRejectsMixedItems(t *testing.T) {
	s := testStore(t)
	err := s.WritePartition(context.Background(), github.EntityCommits, 2022, []github.Item{
		github.Commit{OID: "a"},
		github.PullRequest{Number: 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition holds commit")
}

func TestStore_WritePartitionKeepsFirstOfRepeatedItems(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	items := []github.Item{
		github.PullRequest{Number: 7, Title: "first"},
		github.PullRequest{Number: 8, Title: "other"},
		github.PullRequest{Number: 7, Title: "again"},
	}
	require.NoError(t, s.WritePartition(ctx, github.EntityPullRequests, 2021, items))

	got, err := s.Read(ctx, github.EntityPullRequests, 2021)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].(github.PullRequest).Title)
	assert.Equal(t, 8, got[1].(github.PullRequest).Number)
}

func TestUniqueItems(t *testing.T) {
	out, dropped := uniqueItems([]github.Item{
		github.Commit{OID: "a"},
		github.Commit{OID: "b"},
		github.Commit{OID: "a"},
		github.Commit{OID: "a"},
	})
	assert.Equal(t, []github.Item{github.Commit{OID: "a"}, github.Commit{OID: "b"}}, out)
	assert.Equal(t, []string{"a", "a"}, dropped)
}

func TestStore_ReadMissingPartition(t *testing.T) {
	s := testStore(t)
	_, err := s.Read(context.Background(), github.EntityIssues, 1999)
	assert.ErrorIs(t, err, ErrPartitionNotFound)
}

func TestStore_Partitions(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	require.NoError(t, s.WritePartition(ctx, github.EntityPullRequests, 2021, nil))
	require.NoError(t, s.WritePartition(ctx, github.EntityIssues, 2022, nil))
	require.NoError(t, s.WritePartition(ctx, github.EntityIssues, 2020, nil))

	other := NewStore(s.Root(), github.Repo{Owner: "other", Name: "repo"}, zerolog.Nop())
	require.NoError(t, other.WritePartition(ctx, github.EntityIssues, 2020, nil))

	refs, err := s.Partitions()
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, github.EntityIssues, refs[0].Entity)
	assert.Equal(t, 2020, refs[0].Year)
	assert.Equal(t, 2022, refs[1].Year)
	assert.Equal(t, github.EntityPullRequests, refs[2].Entity)
	assert.Equal(t, s.PartitionPath(github.EntityIssues, 2020), refs[0].Path)
}

func TestPartition_Embeddings(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	require.NoError(t, s.WritePartition(ctx, github.EntityCommits, 2023, []github.Item{
		github.Commit{OID: "near"}, github.Commit{OID: "far"}, github.Commit{OID: "none"},
	}))

	p, err := s.Open(github.EntityCommits, 2023)
	require.NoError(t, err)
	defer p.Close()

	require.Error(t, p.SaveEmbedding(ctx, "none", "m", 0, nil))
	require.NoError(t, p.SaveEmbedding(ctx, "near", "m", 10, []float32{1, 0, 0}))
	require.NoError(t, p.SaveEmbedding(ctx, "far", "m", 12, []float32{0, 0, 5}))
	// Re-saving replaces the vector.
	require.NoError(t, p.SaveEmbedding(ctx, "far", "m", 12, []float32{0, 0, 9}))

	v, ok, err := p.Embedding(ctx, "far")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 0, 9}, v)

	_, ok, err = p.Embedding(ctx, "none")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := p.EmbeddedKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"near": true, "far": true}, keys)

	matches, err := p.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "near", matches[0].Key)
	assert.InDelta(t, 0, matches[0].Distance, 1e-6)
}

func TestBlobRoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	assert.Equal(t, in, BlobToFloat32Slice(float32SliceToBlob(in)))
}
