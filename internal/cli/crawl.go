package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/repolens/repolens/internal/config"
	"github.com/repolens/repolens/internal/github"
)

func newCrawlCmd(e *env) *cobra.Command {
	var (
		entity string
		years  string
		branch string
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Fetch issues, pull requests or commits month by month and store one partition per year",
		Long: `Walk every month of the requested years, one query page at a time, and
write one partition per year under <out>/<entity>/. A year is written as
soon as its twelve months are fetched; rerunning a year overwrites it.

Entities:
  issues   issues closed as completed, with up to 50 comments each
  prs      merged pull requests
  commit   commits on --branch with their associated pull requests`,
		Example: `  repolens crawl --repo acme/widgets --entity issues --years 2020-2023
  REPOLENS_YEARS=2022 repolens crawl --repo acme/widgets --entity commit --branch dev`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := e.cfg
			flags := cmd.Flags()
			if flags.Changed("entity") {
				cfg.Crawl.Entity = entity
			}
			if flags.Changed("branch") {
				cfg.GitHub.Branch = branch
			}
			if flags.Changed("years") {
				from, to, err := config.ParseYearRange(years)
				if err != nil {
					return err
				}
				cfg.Crawl.FromYear, cfg.Crawl.ToYear = from, to
			}
			if err := cfg.ValidateCrawl(); err != nil {
				return err
			}
			e.cfg = cfg

			kind, err := github.ParseEntity(cfg.Crawl.Entity)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			fetcher, err := e.newSource(ctx).Fetcher(kind)
			if err != nil {
				return err
			}

			yearList := cfg.Years()
			bar := newProgress(12*len(yearList), fmt.Sprintf("Crawling %s", kind))
			crawler := github.NewCrawler(fetcher, e.newStore(), e.log)
			crawler.OnWindow(func(w github.TimeWindow, _ int) {
				bar.Describe(fmt.Sprintf("Crawling %s %s", kind, w.BeginDate()[:7]))
				_ = bar.Add(1)
			})

			start := time.Now()
			items, err := crawler.Crawl(ctx, yearList)
			_ = bar.Finish()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Crawled %d %s from %s (%d-%d) in %s\n",
				len(items), kind, cfg.Repo(), cfg.Crawl.FromYear, cfg.Crawl.ToYear,
				time.Since(start).Round(time.Second))
			fmt.Fprintf(cmd.OutOrStdout(), "Partitions written to %s\n", cfg.Crawl.OutDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&entity, "entity", "", "entity to crawl: issues, prs or commit")
	cmd.Flags().StringVar(&years, "years", "", "year or inclusive range, e.g. 2021 or 2019-2023")
	cmd.Flags().StringVar(&branch, "branch", "", "branch whose history is crawled for commits")
	return cmd
}
