// Package pipeline turns stored partitions into embedding vectors. Every text
// passes through the token reducer before it reaches the embedding endpoint.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/repolens/repolens/internal/adapter"
	"github.com/repolens/repolens/internal/comments"
	"github.com/repolens/repolens/internal/dataset"
	"github.com/repolens/repolens/internal/github"
	"github.com/repolens/repolens/internal/tokens"
)

// DefaultBatchSize is the number of texts sent per embedding request.
const DefaultBatchSize = 16

// DiffSource fetches raw diffs for pull requests and commits.
type DiffSource interface {
	PullRequestDiff(ctx context.Context, number int) (string, error)
	CommitDiff(ctx context.Context, sha string) (string, error)
}

// Options tunes a Pipeline.
type Options struct {
	// IncludePRDiff appends the pull request diff to its title and body.
	IncludePRDiff bool
	// BatchSize caps texts per embedding request; zero means DefaultBatchSize.
	BatchSize int
	// Force re-embeds items that already have a vector.
	Force bool
}

// Result counts what a run did.
type Result struct {
	Embedded int `json:"embedded"`
	Reduced  int `json:"reduced"`
	Skipped  int `json:"skipped"`
}

// Pipeline builds, reduces and embeds item texts.
type Pipeline struct {
	reducer  *tokens.Reducer
	embedder adapter.Embedder
	diffs    DiffSource
	opts     Options
	log      zerolog.Logger
	onItem   func(key string)
}

// New returns a pipeline. diffs may be nil when no commit partitions are
// embedded and IncludePRDiff is off.
func New(reducer *tokens.Reducer, embedder adapter.Embedder, diffs DiffSource, opts Options, log zerolog.Logger) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Pipeline{
		reducer:  reducer,
		embedder: embedder,
		diffs:    diffs,
		opts:     opts,
		log:      log,
	}
}

// OnItem registers fn to be called once per item handled.
func (p *Pipeline) OnItem(fn func(key string)) {
	p.onItem = fn
}

// Text returns the embedding input for item, already within the token
// ceiling. reduced reports whether the reducer shortened anything.
func (p *Pipeline) Text(ctx context.Context, item github.Item) (text string, reduced bool, err error) {
	switch it := item.(type) {
	case github.Issue:
		out, reduced := p.issueText(it)
		return out, reduced, nil

	case github.PullRequest:
		raw := joinNonEmpty(it.Title, it.BodyText)
		if p.opts.IncludePRDiff {
			if p.diffs == nil {
				return "", false, fmt.Errorf("pipeline: pull request #%d: no diff source", it.Number)
			}
			diff, err := p.diffs.PullRequestDiff(ctx, it.Number)
			if err != nil {
				return "", false, fmt.Errorf("pipeline: pull request #%d: %w", it.Number, err)
			}
			raw = joinNonEmpty(raw, diff)
		}
		out := p.reducer.Reduce(raw)
		return out, out != raw, nil

	case github.Commit:
		if p.diffs == nil {
			return "", false, fmt.Errorf("pipeline: commit %s: no diff source", it.OID)
		}
		diff, err := p.diffs.CommitDiff(ctx, it.OID)
		if err != nil {
			return "", false, fmt.Errorf("pipeline: commit %s: %w", it.OID, err)
		}
		out := p.reducer.Reduce(diff)
		return out, out != diff, nil
	}
	return "", false, fmt.Errorf("pipeline: unsupported item %T", item)
}

// issueText keeps the issue title and body whole and trims the discussion.
func (p *Pipeline) issueText(is github.Issue) (string, bool) {
	primary := joinNonEmpty(is.Title, is.BodyText)
	discussion := comments.Normalize(is.Comments)
	full := joinNonEmpty(primary, discussion)
	if p.reducer.Fits(full) {
		return full, false
	}
	if discussion == "" {
		return p.reducer.Reduce(primary), true
	}
	primary, discussion = p.reducer.ReduceWithComments(primary, discussion)
	// The newline between the segments can still cost a token.
	return p.reducer.Reduce(joinNonEmpty(primary, discussion)), true
}

type pending struct {
	key    string
	text   string
	tokens int
}

// Run embeds every item of part that has no vector yet and stores the
// vectors in part.
func (p *Pipeline) Run(ctx context.Context, part *dataset.Partition) (Result, error) {
	var res Result

	items, err := part.Items(ctx)
	if err != nil {
		return res, err
	}
	done := map[string]bool{}
	if !p.opts.Force {
		if done, err = part.EmbeddedKeys(ctx); err != nil {
			return res, err
		}
	}

	log := p.log.With().Str("entity", string(part.Entity())).Int("year", part.Year()).Logger()
	batch := make([]pending, 0, p.opts.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		texts := make([]string, len(batch))
		for i, b := range batch {
			texts[i] = b.text
		}
		vecs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("pipeline: embed batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("pipeline: embed batch: got %d vectors for %d texts", len(vecs), len(batch))
		}
		for i, b := range batch {
			if err := part.SaveEmbedding(ctx, b.key, p.embedder.Model(), b.tokens, vecs[i]); err != nil {
				return err
			}
		}
		res.Embedded += len(batch)
		log.Debug().Int("batch", len(batch)).Int("embedded", res.Embedded).Msg("batch stored")
		batch = batch[:0]
		return nil
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		key := item.Key()
		if done[key] {
			res.Skipped++
			p.notify(key)
			continue
		}

		text, reduced, err := p.Text(ctx, item)
		if err != nil {
			return res, err
		}
		if reduced {
			res.Reduced++
		}
		if strings.TrimSpace(text) == "" {
			log.Debug().Str("key", key).Msg("empty text, skipping")
			res.Skipped++
			p.notify(key)
			continue
		}

		batch = append(batch, pending{key: key, text: text, tokens: p.reducer.Count(text)})
		if len(batch) == p.opts.BatchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
		p.notify(key)
	}
	if err := flush(); err != nil {
		return res, err
	}

	log.Info().
		Int("embedded", res.Embedded).
		Int("reduced", res.Reduced).
		Int("skipped", res.Skipped).
		Msg("partition embedded")
	return res, nil
}

func (p *Pipeline) notify(key string) {
	if p.onItem != nil {
		p.onItem(key)
	}
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "\n" + b
}
