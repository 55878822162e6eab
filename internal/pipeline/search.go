package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/repolens/repolens/internal/dataset"
	"github.com/repolens/repolens/internal/github"
)

// ErrNoEmbedding is returned by Like when the reference item has no vector.
var ErrNoEmbedding = errors.New("pipeline: item has no embedding")

// Match is one stored item near a query.
type Match struct {
	Entity   github.Entity `json:"entity"`
	Year     int           `json:"year"`
	Key      string        `json:"key"`
	Title    string        `json:"title,omitempty"`
	Distance float64       `json:"distance"`
}

// Search reduces and embeds query, then returns the topK items of refs
// nearest to it.
func (p *Pipeline) Search(ctx context.Context, store *dataset.Store, refs []dataset.PartitionRef, query string, topK int) ([]Match, error) {
	text := p.reducer.Reduce(strings.TrimSpace(query))
	if text == "" {
		return nil, errors.New("pipeline: empty query")
	}
	vecs, err := p.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("pipeline: embed query: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("pipeline: embed query: got %d vectors", len(vecs))
	}
	return Nearest(ctx, store, refs, vecs[0], topK, nil)
}

// Like returns the topK items of refs nearest to the stored vector of the
// item key in the (entity, year) partition. The item itself is left out.
// No embedding endpoint is called.
func Like(ctx context.Context, store *dataset.Store, entity github.Entity, year int, key string, refs []dataset.PartitionRef, topK int) ([]Match, error) {
	part, err := store.Open(entity, year)
	if err != nil {
		return nil, err
	}
	vec, ok, err := part.Embedding(ctx, key)
	part.Close()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s %d %s", ErrNoEmbedding, entity, year, key)
	}

	self := func(m Match) bool { return m.Entity == entity && m.Year == year && m.Key == key }
	return Nearest(ctx, store, refs, vec, topK, self)
}

// Nearest searches every partition of refs whose vectors have the length of
// vec and merges the results by distance. Matches for which skip returns
// true are dropped.
func Nearest(ctx context.Context, store *dataset.Store, refs []dataset.PartitionRef, vec []float32, topK int, skip func(Match) bool) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	var all []Match
	for _, ref := range refs {
		matches, err := nearestIn(ctx, store, ref, vec, topK, skip)
		if err != nil {
			return nil, fmt.Errorf("pipeline: search %s %d: %w", ref.Entity, ref.Year, err)
		}
		all = append(all, matches...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Distance < all[j].Distance })
	if len(all) > topK {
		all = all[:topK]
	}
	return all, nil
}

func nearestIn(ctx context.Context, store *dataset.Store, ref dataset.PartitionRef, vec []float32, topK int, skip func(Match) bool) ([]Match, error) {
	part, err := store.Open(ref.Entity, ref.Year)
	if err != nil {
		return nil, err
	}
	defer part.Close()

	// Partitions embedded with another model cannot be compared.
	dim, err := part.Dimension(ctx)
	if err != nil || dim != len(vec) {
		return nil, err
	}

	// One extra so a skipped item does not cost a result.
	found, err := part.Search(ctx, vec, topK+1)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	titles, err := itemTitles(ctx, part)
	if err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(found))
	for _, f := range found {
		m := Match{Entity: ref.Entity, Year: ref.Year, Key: f.Key, Title: titles[f.Key], Distance: f.Distance}
		if skip != nil && skip(m) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func itemTitles(ctx context.Context, part *dataset.Partition) (map[string]string, error) {
	items, err := part.Items(ctx)
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case github.Issue:
			titles[it.Key()] = it.Title
		case github.PullRequest:
			titles[it.Key()] = it.Title
		}
	}
	return titles, nil
}
