package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/repolens/repolens/internal/config"
	"github.com/repolens/repolens/internal/dataset"
	"github.com/repolens/repolens/internal/github"
	"github.com/repolens/repolens/internal/pipeline"
)

func newEmbedCmd(e *env) *cobra.Command {
	var (
		entity        string
		years         string
		includePRDiff bool
		force         bool
		batchSize     int
	)

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed stored partitions, reducing every text to the token limit first",
		Long: `Build one text per stored item, reduce it to embedding.max_tokens and store
the vector in the item's partition.

  issues   title and body, followed by the non-bot comments; only the
           comments are shortened when the whole does not fit
  prs      title and body, plus the diff with --include-pr-diff
  commit   the commit diff

Items that already have a vector are skipped unless --force is given.
Without --years every partition of the entity on disk is embedded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := e.cfg
			flags := cmd.Flags()
			if flags.Changed("entity") {
				cfg.Crawl.Entity = entity
			}
			if flags.Changed("include-pr-diff") {
				cfg.Embedding.IncludePRDiff = includePRDiff
			}
			if flags.Changed("batch-size") {
				cfg.Embedding.BatchSize = batchSize
			}
			if flags.Changed("years") {
				from, to, err := config.ParseYearRange(years)
				if err != nil {
					return err
				}
				cfg.Crawl.FromYear, cfg.Crawl.ToYear = from, to
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Crawl.Owner == "" || cfg.Crawl.Repo == "" {
				return errors.New("repository owner and name are required (--repo owner/name)")
			}
			e.cfg = cfg

			kind, err := github.ParseEntity(cfg.Crawl.Entity)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store := e.newStore()

			refs, err := selectPartitions(store, kind, cfg)
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s partitions to embed under %s\n", kind, store.Root())
				return nil
			}

			_, reducer, err := e.newReducer(cfg.Embedding.MaxTokens)
			if err != nil {
				return err
			}
			embedder, err := e.newEmbedder()
			if err != nil {
				return err
			}
			var diffs pipeline.DiffSource
			if kind == github.EntityCommits || (kind == github.EntityPullRequests && cfg.Embedding.IncludePRDiff) {
				if err := cfg.ValidateRepo(); err != nil {
					return err
				}
				if diffs, err = e.newDiffClient(ctx); err != nil {
					return err
				}
			}

			p := pipeline.New(reducer, embedder, diffs, pipeline.Options{
				IncludePRDiff: cfg.Embedding.IncludePRDiff,
				BatchSize:     cfg.Embedding.BatchSize,
				Force:         force,
			}, e.log)

			var total pipeline.Result
			for _, ref := range refs {
				part, err := store.Open(ref.Entity, ref.Year)
				if err != nil {
					return err
				}
				st, err := part.Stats(ctx)
				if err != nil {
					part.Close()
					return err
				}

				bar := newProgress(st.Items, fmt.Sprintf("Embedding %s %d", ref.Entity, ref.Year))
				p.OnItem(func(string) { _ = bar.Add(1) })
				res, err := p.Run(ctx, part)
				_ = bar.Finish()
				part.Close()
				if err != nil {
					return fmt.Errorf("embed %s %d: %w", ref.Entity, ref.Year, err)
				}

				total.Embedded += res.Embedded
				total.Reduced += res.Reduced
				total.Skipped += res.Skipped
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d: %d embedded, %d reduced, %d skipped\n",
					ref.Entity, ref.Year, res.Embedded, res.Reduced, res.Skipped)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Total: %d embedded with %s, %d reduced, %d skipped\n",
				total.Embedded, embedder.Model(), total.Reduced, total.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&entity, "entity", "", "entity to embed: issues, prs or commit")
	cmd.Flags().StringVar(&years, "years", "", "year or inclusive range; default every stored year")
	cmd.Flags().BoolVar(&includePRDiff, "include-pr-diff", false, "append the pull request diff to its text")
	cmd.Flags().BoolVar(&force, "force", false, "re-embed items that already have a vector")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "texts per embedding request")
	return cmd
}

// selectPartitions returns the stored partitions of kind, restricted to the
// configured year range when one is set.
func selectPartitions(store *dataset.Store, kind github.Entity, cfg config.Config) ([]dataset.PartitionRef, error) {
	all, err := store.Partitions()
	if err != nil {
		return nil, err
	}
	ranged := cfg.Crawl.FromYear != 0 && cfg.Crawl.ToYear != 0

	var out []dataset.PartitionRef
	for _, ref := range all {
		if ref.Entity != kind {
			continue
		}
		if ranged && (ref.Year < cfg.Crawl.FromYear || ref.Year > cfg.Crawl.ToYear) {
			continue
		}
		out = append(out, ref)
	}
	return out, nil
}
