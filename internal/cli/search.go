package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/repolens/repolens/internal/config"
	"github.com/repolens/repolens/internal/dataset"
	"github.com/repolens/repolens/internal/github"
	"github.com/repolens/repolens/internal/pipeline"
)

func newSearchCmd(e *env) *cobra.Command {
	var (
		entity string
		years  string
		top    int
		like   string
		year   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find stored items whose embeddings are nearest to a query or to another item",
		Long: `Embed the query with the configured provider and list the nearest items
across the embedded partitions. With --like the stored vector of an item is
used instead, and no embedding request is made.

Only partitions embedded with vectors of the same length are compared.`,
		Example: `  repolens search --repo acme/widgets "crash when saving large files"
  repolens search --repo acme/widgets --entity issues --like 1234 --year 2022`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := e.cfg
			if cfg.Crawl.Owner == "" || cfg.Crawl.Repo == "" {
				return errors.New("repository owner and name are required (--repo owner/name)")
			}
			query := strings.TrimSpace(strings.Join(args, " "))
			if (query == "") == (like == "") {
				return errors.New("give either a query or --like")
			}
			if top <= 0 {
				return fmt.Errorf("--top must be positive, got %d", top)
			}

			var kind github.Entity
			if entity != "" {
				k, err := github.ParseEntity(entity)
				if err != nil {
					return err
				}
				kind = k
			}
			if years != "" {
				from, to, err := config.ParseYearRange(years)
				if err != nil {
					return err
				}
				cfg.Crawl.FromYear, cfg.Crawl.ToYear = from, to
			} else {
				cfg.Crawl.FromYear, cfg.Crawl.ToYear = 0, 0
			}

			ctx := cmd.Context()
			store := e.newStore()
			refs, err := searchPartitions(store, kind, cfg)
			if err != nil {
				return err
			}

			var matches []pipeline.Match
			if like != "" {
				if kind == "" || year == 0 {
					return errors.New("--like needs --entity and --year to locate the item")
				}
				matches, err = pipeline.Like(ctx, store, kind, year, strings.TrimPrefix(like, "#"), refs, top)
			} else {
				_, reducer, rerr := e.newReducer(cfg.Embedding.MaxTokens)
				if rerr != nil {
					return rerr
				}
				embedder, eerr := e.newEmbedder()
				if eerr != nil {
					return eerr
				}
				p := pipeline.New(reducer, embedder, nil, pipeline.Options{}, e.log)
				matches, err = p.Search(ctx, store, refs, query, top)
			}
			if err != nil {
				return err
			}

			if asJSON {
				if matches == nil {
					matches = []pipeline.Match{}
				}
				return writeJSON(cmd.OutOrStdout(), matches)
			}
			return printMatches(cmd.OutOrStdout(), matches)
		},
	}

	cmd.Flags().StringVar(&entity, "entity", "", "only search this entity: issues, prs or commit")
	cmd.Flags().StringVar(&years, "years", "", "year or inclusive range; default every stored year")
	cmd.Flags().IntVar(&top, "top", 10, "number of results")
	cmd.Flags().StringVar(&like, "like", "", "key of a stored item (issue or PR number, commit SHA) to search around")
	cmd.Flags().IntVar(&year, "year", 0, "partition year of the --like item")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// searchPartitions returns the stored partitions of kind, or of every entity
// when kind is empty, within the configured year range.
func searchPartitions(store *dataset.Store, kind github.Entity, cfg config.Config) ([]dataset.PartitionRef, error) {
	if kind != "" {
		return selectPartitions(store, kind, cfg)
	}
	var out []dataset.PartitionRef
	for _, k := range github.Entities() {
		refs, err := selectPartitions(store, k, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, refs...)
	}
	return out, nil
}

func printMatches(w io.Writer, matches []pipeline.Match) error {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No embedded items matched. Run 'repolens embed' first.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DISTANCE\tENTITY\tYEAR\tKEY\tTITLE")
	for _, m := range matches {
		fmt.Fprintf(tw, "%.4f\t%s\t%d\t%s\t%s\n", m.Distance, m.Entity, m.Year, m.Key, m.Title)
	}
	return tw.Flush()
}
