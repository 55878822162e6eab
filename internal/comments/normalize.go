// Package comments flattens issue discussions into a single embedding input.
package comments

import "strings"

// NoComments is returned for an issue without any discussion.
const NoComments = "No comments for this issue."

// UserPrefix marks each rendered human comment.
const UserPrefix = "_user_comment_: "

// UnknownAuthor stands in for comments whose author account no longer exists.
const UnknownAuthor = "Unknown"

// automationLogins are compared against lowercased author logins.
var automationLogins = map[string]struct{}{
	"github-actions":       {},
	"stale":                {},
	"dependabot":           {},
	"renovate":             {},
	"web-flow":             {},
	"codecov":              {},
	"snyk-bot":             {},
	"issues-translate-bot": {},
}

// Comment is one discussion entry. Author is nil when the account is gone.
type Comment struct {
	Author *string `json:"author,omitempty"`
	Body   string  `json:"body"`
}

// AuthorLogin returns the author login or UnknownAuthor.
func (c Comment) AuthorLogin() string {
	if c.Author == nil {
		return UnknownAuthor
	}
	return *c.Author
}

// IsAutomation reports whether login belongs to a known bot account.
func IsAutomation(login string) bool {
	_, ok := automationLogins[strings.ToLower(login)]
	return ok
}

// Normalize drops bot comments and joins the rest, in order, with a single
// space. An empty discussion yields NoComments; a discussion made only of bot
// comments yields the empty string.
func Normalize(list []Comment) string {
	if len(list) == 0 {
		return NoComments
	}

	var sb strings.Builder
	for _, c := range list {
		if IsAutomation(c.AuthorLogin()) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(UserPrefix)
		sb.WriteString(c.Body)
	}
	return sb.String()
}
