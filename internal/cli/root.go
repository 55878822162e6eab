// Package cli defines the Cobra command tree for the repolens CLI.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/repolens/repolens/internal/config"
	"github.com/repolens/repolens/internal/github"
	"github.com/repolens/repolens/internal/logger"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globalFlags are bound to the root command's persistent flags.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	repo       string
	outDir     string
}

// env is the state every subcommand shares after PersistentPreRunE.
type env struct {
	cfg config.Config
	log logger.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var (
		flags globalFlags
		e     = &env{log: logger.Nop()}
	)

	root := &cobra.Command{
		Use:   "repolens",
		Short: "Collect GitHub issues, pull requests and commits for embedding analysis",
		Long: `repolens crawls a repository's closed issues, merged pull requests and
commit history month by month, stores one partition per entity and year,
and turns the stored items into embedding vectors that fit the model's
token limit.

Set GITHUB_TOKEN, then run 'repolens crawl --repo owner/name --years 2020-2023'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			if err := applyGlobalFlags(cmd, &cfg, flags); err != nil {
				return err
			}
			e.cfg = cfg
			e.log = logger.New(logger.Options{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Writer: cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ./"+config.DefaultPath+" when present)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, off")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: console or json")
	pf.StringVar(&flags.repo, "repo", "", "repository as owner/name")
	pf.StringVar(&flags.outDir, "out", "", "partition output directory")

	root.AddCommand(
		newCrawlCmd(e),
		newIssueCmd(e),
		newCommitPRsCmd(e),
		newDiffCmd(e),
		newReduceCmd(e),
		newEmbedCmd(e),
		newStatsCmd(e),
		newSearchCmd(e),
		newExportCmd(e),
		newServeCmd(e),
		newConfigCmd(e),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute(v, c, d string) {
	version, commit, date = v, c, d

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := errorHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		stop()
		os.Exit(1)
	}
}

// errorHint suggests a remedy for failures the user can fix.
func errorHint(err error) string {
	switch {
	case github.IsUnauthorized(err):
		return "GitHub rejected the token; set GITHUB_TOKEN (or github.token) to a valid personal access token"
	case github.IsRateLimited(err):
		return "the GitHub API quota is spent; rerun after the reset time or lower github.rest_rate"
	}
	return ""
}

func applyGlobalFlags(cmd *cobra.Command, cfg *config.Config, flags globalFlags) error {
	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = flags.logFormat
	}
	if changed("out") {
		cfg.Crawl.OutDir = flags.outDir
	}
	if changed("repo") {
		repo, err := parseRepo(flags.repo)
		if err != nil {
			return err
		}
		cfg.Crawl.Owner, cfg.Crawl.Repo = repo.Owner, repo.Name
	}
	return nil
}

// parseRepo accepts "owner/name".
func parseRepo(s string) (github.Repo, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return github.Repo{}, fmt.Errorf("invalid repository %q, want owner/name", s)
	}
	return github.Repo{Owner: owner, Name: name}, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "repolens %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
