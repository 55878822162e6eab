package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/repolens/repolens/internal/comments"
	"github.com/repolens/repolens/internal/db"
	"github.com/repolens/repolens/internal/github"
)

// Partition is one open partition file.
type Partition struct {
	db     *db.DB
	entity github.Entity
	year   int
}

func openPartition(path string, entity github.Entity, year int) (*Partition, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	return &Partition{db: database, entity: entity, year: year}, nil
}

// Entity returns the kind of items stored in the partition.
func (p *Partition) Entity() github.Entity { return p.entity }

// Year returns the partition year.
func (p *Partition) Year() int { return p.year }

// Close closes the underlying database.
func (p *Partition) Close() error { return p.db.Close() }

func itemTable(entity github.Entity) (string, error) {
	switch entity {
	case github.EntityCommits:
		return "commits", nil
	case github.EntityPullRequests:
		return "pull_requests", nil
	case github.EntityIssues:
		return "issues", nil
	}
	return "", fmt.Errorf("%w %q", github.ErrUnknownEntity, entity)
}

// replace swaps the partition contents for items in one transaction and
// records the run. Embeddings of the previous contents are dropped.
func (p *Partition) replace(ctx context.Context, repo github.Repo, items []github.Item) (string, error) {
	table, err := itemTable(p.entity)
	if err != nil {
		return "", err
	}

	tx, err := p.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return "", fmt.Errorf("clear %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return "", fmt.Errorf("clear embeddings: %w", err)
	}
	if hasVectorTable(ctx, tx) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_items`); err != nil {
			return "", fmt.Errorf("clear vectors: %w", err)
		}
	}

	for pos, item := range items {
		if item.Kind() != p.entity {
			return "", fmt.Errorf("item %s is a %s, partition holds %s", item.Key(), item.Kind(), p.entity)
		}
		if err := insertItem(ctx, tx, pos, item); err != nil {
			return "", fmt.Errorf("insert %s: %w", item.Key(), err)
		}
	}

	runID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO crawl_runs (id, entity, repo, year, items) VALUES (?, ?, ?, ?, ?)`,
		runID, string(p.entity), repo.String(), p.year, len(items),
	); err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// uniqueItems keeps the first occurrence of every item and returns the keys
// of the repeats it dropped.
func uniqueItems(items []github.Item) ([]github.Item, []string) {
	type itemID struct {
		kind github.Entity
		key  string
	}
	seen := make(map[itemID]bool, len(items))
	out := make([]github.Item, 0, len(items))
	var dropped []string
	for _, item := range items {
		id := itemID{kind: item.Kind(), key: item.Key()}
		if seen[id] {
			dropped = append(dropped, item.Key())
			continue
		}
		seen[id] = true
		out = append(out, item)
	}
	return out, dropped
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func hasVectorTable(ctx context.Context, q rowQuerier) bool {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'vec_items'`).Scan(&n)
	return err == nil && n > 0
}

func insertItem(ctx context.Context, tx *sql.Tx, pos int, item github.Item) error {
	switch it := item.(type) {
	case github.Commit:
		prs, err := json.Marshal(nonNilInts(it.PullRequests))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO commits (oid, pull_requests, position) VALUES (?, ?, ?)`,
			it.OID, string(prs), pos)
		return err

	case github.PullRequest:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pull_requests (number, title, url, body_text, created_at, merged_at, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			it.Number, it.Title, it.URL, it.BodyText, formatTime(it.CreatedAt), formatTimePtr(it.MergedAt), pos)
		return err

	case github.Issue:
		assignees, err := json.Marshal(nonNilStrings(it.Assignees))
		if err != nil {
			return err
		}
		discussion := it.Comments
		if discussion == nil {
			discussion = []comments.Comment{}
		}
		cs, err := json.Marshal(discussion)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO issues (number, title, url, body_text, created_at, assignees, comments, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			it.Number, it.Title, it.URL, it.BodyText, formatTime(it.CreatedAt), string(assignees), string(cs), pos)
		return err
	}
	return fmt.Errorf("unsupported item type %T", item)
}

// Items returns every stored item in crawl order.
func (p *Partition) Items(ctx context.Context) ([]github.Item, error) {
	var (
		items []github.Item
		err   error
	)
	switch p.entity {
	case github.EntityCommits:
		items, err = p.commits(ctx)
	case github.EntityPullRequests:
		items, err = p.pullRequests(ctx)
	case github.EntityIssues:
		items, err = p.issues(ctx)
	default:
		err = fmt.Errorf("%w %q", github.ErrUnknownEntity, p.entity)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s %d: %w", p.entity, p.year, err)
	}
	return items, nil
}

func (p *Partition) commits(ctx context.Context) ([]github.Item, error) {
	rows, err := p.db.Conn().QueryContext(ctx, `SELECT oid, pull_requests FROM commits ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []github.Item
	for rows.Next() {
		var (
			c   github.Commit
			prs string
		)
		if err := rows.Scan(&c.OID, &prs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(prs), &c.PullRequests); err != nil {
			return nil, fmt.Errorf("commit %s: decode pull requests: %w", c.OID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Partition) pullRequests(ctx context.Context) ([]github.Item, error) {
	rows, err := p.db.Conn().QueryContext(ctx,
		`SELECT number, title, url, body_text, COALESCE(created_at, ''), merged_at FROM pull_requests ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []github.Item
	for rows.Next() {
		var (
			pr       github.PullRequest
			created  string
			mergedAt sql.NullString
		)
		if err := rows.Scan(&pr.Number, &pr.Title, &pr.URL, &pr.BodyText, &created, &mergedAt); err != nil {
			return nil, err
		}
		pr.CreatedAt = parseTime(created)
		if mergedAt.Valid {
			t := parseTime(mergedAt.String)
			pr.MergedAt = &t
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *Partition) issues(ctx context.Context) ([]github.Item, error) {
	rows, err := p.db.Conn().QueryContext(ctx,
		`SELECT number, title, url, body_text, COALESCE(created_at, ''), assignees, comments FROM issues ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []github.Item
	for rows.Next() {
		var is github.Issue
		var created, who, thread string
		if err := rows.Scan(&is.Number, &is.Title, &is.URL, &is.BodyText, &created, &who, &thread); err != nil {
			return nil, err
		}
		is.CreatedAt = parseTime(created)
		if err := json.Unmarshal([]byte(who), &is.Assignees); err != nil {
			return nil, fmt.Errorf("issue #%d: decode assignees: %w", is.Number, err)
		}
		if err := json.Unmarshal([]byte(thread), &is.Comments); err != nil {
			return nil, fmt.Errorf("issue #%d: decode comments: %w", is.Number, err)
		}
		out = append(out, is)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime accepts both the RFC 3339 text written by this package and the
// layouts the sqlite driver produces for DATETIME columns.
func parseTime(s string) time.Time {
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
