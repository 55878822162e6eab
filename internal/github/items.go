package github

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/repolens/repolens/internal/comments"
)

// Entity selects which kind of item a crawl collects.
type Entity string

const (
	EntityIssues       Entity = "issues"
	EntityPullRequests Entity = "prs"
	EntityCommits      Entity = "commit"
)

// Entities lists every supported entity.
func Entities() []Entity {
	return []Entity{EntityIssues, EntityPullRequests, EntityCommits}
}

// ParseEntity accepts the selector names used on the command line.
func ParseEntity(s string) (Entity, error) {
	switch Entity(strings.ToLower(strings.TrimSpace(s))) {
	case EntityIssues:
		return EntityIssues, nil
	case EntityPullRequests:
		return EntityPullRequests, nil
	case EntityCommits:
		return EntityCommits, nil
	}
	return "", fmt.Errorf("%w %q; valid entities: issues, prs, commit", ErrUnknownEntity, s)
}

// Item is one record collected by a crawl.
type Item interface {
	Kind() Entity
	// Key is unique among items of the same kind in a repository.
	Key() string
}

// Commit is a commit on the crawled branch.
type Commit struct {
	OID          string `json:"oid"`
	PullRequests []int  `json:"associated_pull_requests"`
}

func (c Commit) Kind() Entity { return EntityCommits }
func (c Commit) Key() string  { return c.OID }

// PullRequest is a merged pull request.
type PullRequest struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	BodyText  string     `json:"body_text"`
	CreatedAt time.Time  `json:"created_at"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`
}

func (p PullRequest) Kind() Entity { return EntityPullRequests }
func (p PullRequest) Key() string  { return strconv.Itoa(p.Number) }

// Issue is an issue closed as completed, with its discussion.
type Issue struct {
	Number    int                `json:"number"`
	Title     string             `json:"title"`
	URL       string             `json:"url"`
	BodyText  string             `json:"body_text"`
	CreatedAt time.Time          `json:"created_at"`
	Assignees []string           `json:"assignees"`
	Comments  []comments.Comment `json:"comments"`
}

func (i Issue) Kind() Entity { return EntityIssues }
func (i Issue) Key() string  { return strconv.Itoa(i.Number) }

// IssueDetail is the body and closure time of a single issue.
type IssueDetail struct {
	Number   int        `json:"number"`
	Body     string     `json:"body"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}
