package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newIssueCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "issue <number>",
		Short: "Print the body and closure time of one issue as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
			if err != nil || number <= 0 {
				return fmt.Errorf("invalid issue number %q", args[0])
			}
			if err := e.cfg.ValidateRepo(); err != nil {
				return err
			}

			detail, found, err := e.newSource(cmd.Context()).IssueInfo(cmd.Context(), number)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("issue #%d not found in %s", number, e.cfg.Repo())
			}
			return writeJSON(cmd.OutOrStdout(), detail)
		},
	}
}

func newCommitPRsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "commit-prs <sha>",
		Short: "List the pull requests associated with a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.cfg.ValidateRepo(); err != nil {
				return err
			}
			numbers, err := e.newSource(cmd.Context()).CommitPullRequests(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), numbers)
		},
	}
}

func newDiffCmd(e *env) *cobra.Command {
	var (
		pr     int
		sha    string
		rawURL string
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Print the unified diff of a pull request, a commit or a GitHub page URL",
		Example: `  repolens diff --repo acme/widgets --pr 42
  repolens diff --repo acme/widgets --commit 1a2b3c
  repolens diff --url https://github.com/acme/widgets/pull/42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			set := 0
			for _, v := range []bool{pr > 0, sha != "", rawURL != ""} {
				if v {
					set++
				}
			}
			if set != 1 {
				return errors.New("exactly one of --pr, --commit or --url is required")
			}
			if rawURL == "" {
				if err := e.cfg.ValidateRepo(); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			client, err := e.newDiffClient(ctx)
			if err != nil {
				return err
			}

			var diff string
			switch {
			case pr > 0:
				diff, err = client.PullRequestDiff(ctx, pr)
			case sha != "":
				diff, err = client.CommitDiff(ctx, sha)
			default:
				diff, err = client.DiffByURL(ctx, rawURL)
			}
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), diff)
			return err
		},
	}

	cmd.Flags().IntVar(&pr, "pr", 0, "pull request number")
	cmd.Flags().StringVar(&sha, "commit", "", "commit SHA")
	cmd.Flags().StringVar(&rawURL, "url", "", "pull request or commit page URL")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
