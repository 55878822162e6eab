package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/repolens/repolens/internal/dataset"
)

func newStatsCmd(e *env) *cobra.Command {
	var (
		asJSON   bool
		watch    bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "List stored partitions with item and embedding counts",
		Long: `List stored partitions with item and embedding counts.

With --watch the table is printed again whenever a partition file changes,
for example while a crawl or embed runs in another terminal. Press Ctrl-C
to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.cfg.Crawl.Owner == "" || e.cfg.Crawl.Repo == "" {
				return fmt.Errorf("repository owner and name are required (--repo owner/name)")
			}
			store := e.newStore()
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if err := printStats(ctx, out, store, asJSON); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for changes. Press Ctrl-C to stop.\n", store.Root())
			return watchPartitions(ctx, store.Root(), debounce, e.log, func() {
				fmt.Fprintf(out, "\n%s\n", time.Now().Format("15:04:05"))
				if err := printStats(ctx, out, store, asJSON); err != nil {
					e.log.Warn().Err(err).Msg("read partitions")
				}
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&watch, "watch", false, "print again whenever a partition changes")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before printing again")
	return cmd
}

func printStats(ctx context.Context, w io.Writer, store *dataset.Store, asJSON bool) error {
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, stats)
	}
	if len(stats) == 0 {
		fmt.Fprintf(w, "No partitions under %s\n", store.Root())
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tYEAR\tITEMS\tEMBEDDED\tLAST RUN\tPATH")
	for _, st := range stats {
		last := "-"
		if !st.LastRun.IsZero() {
			last = st.LastRun.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n", st.Entity, st.Year, st.Items, st.Embedded, last, st.Path)
	}
	return tw.Flush()
}
