package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/repolens/repolens/internal/comments"
	"github.com/repolens/repolens/internal/github"
)

// MarkdownExporter renders a partition as a readable report.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Ext() string { return ".md" }

func (e *MarkdownExporter) Export(w io.Writer, data ExportData) error {
	b := bufio.NewWriter(w)
	fmt.Fprintf(b, "# %s: %s %d\n\n", data.Repo, entityTitle(data.Entity), data.Year)
	fmt.Fprintf(b, "%d item%s\n\n", len(data.Items), pluralS(len(data.Items)))

	for _, item := range data.Items {
		switch it := item.(type) {
		case github.Issue:
			fmt.Fprintf(b, "## #%d %s\n\n", it.Number, it.Title)
			fmt.Fprintf(b, "- URL: %s\n- Created: %s\n", it.URL, it.CreatedAt.Format("2006-01-02"))
			if len(it.Assignees) > 0 {
				fmt.Fprintf(b, "- Assignees: %s\n", strings.Join(it.Assignees, ", "))
			}
			fmt.Fprintf(b, "\n%s\n\n", quote(it.BodyText))
			fmt.Fprintf(b, "**Discussion:** %s\n\n", comments.Normalize(it.Comments))

		case github.PullRequest:
			fmt.Fprintf(b, "## #%d %s\n\n", it.Number, it.Title)
			fmt.Fprintf(b, "- URL: %s\n- Created: %s\n", it.URL, it.CreatedAt.Format("2006-01-02"))
			if it.MergedAt != nil {
				fmt.Fprintf(b, "- Merged: %s\n", it.MergedAt.Format("2006-01-02"))
			}
			fmt.Fprintf(b, "\n%s\n\n", quote(it.BodyText))

		case github.Commit:
			prs := "none"
			if len(it.PullRequests) > 0 {
				refs := make([]string, len(it.PullRequests))
				for i, n := range it.PullRequests {
					refs[i] = fmt.Sprintf("#%d", n)
				}
				prs = strings.Join(refs, ", ")
			}
			fmt.Fprintf(b, "- `%s` (pull requests: %s)\n", it.OID, prs)
		}
	}
	return b.Flush()
}

func entityTitle(e github.Entity) string {
	switch e {
	case github.EntityIssues:
		return "Issues"
	case github.EntityPullRequests:
		return "Pull Requests"
	case github.EntityCommits:
		return "Commits"
	}
	return string(e)
}

func quote(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "> _(no description)_"
	}
	return "> " + strings.ReplaceAll(s, "\n", "\n> ")
}

func pluralS(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
