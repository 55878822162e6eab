package github

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/repolens/repolens/internal/comments"
)

const (
	// DefaultPageDelay is the pause between consecutive pages of one window.
	DefaultPageDelay = 2 * time.Second

	// DefaultLookupDelay is the pause after a single-item lookup.
	DefaultLookupDelay = time.Second

	// DefaultBranch is the branch whose history is traversed for commits.
	DefaultBranch = "main"
)

// SourceOptions tunes a Source. Zero values select the defaults.
type SourceOptions struct {
	Branch      string
	PagePacer   Pacer
	LookupPacer Pacer
}

// Source issues repository queries against the graph endpoint.
type Source struct {
	gql         *GraphQLClient
	repo        Repo
	branch      string
	pagePacer   Pacer
	lookupPacer Pacer
	log         zerolog.Logger
}

// NewSource binds gql to repo.
func NewSource(gql *GraphQLClient, repo Repo, opts SourceOptions, log zerolog.Logger) *Source {
	s := &Source{
		gql:         gql,
		repo:        repo,
		branch:      opts.Branch,
		pagePacer:   opts.PagePacer,
		lookupPacer: opts.LookupPacer,
		log:         log.With().Str("repo", repo.String()).Logger(),
	}
	if s.branch == "" {
		s.branch = DefaultBranch
	}
	if s.pagePacer == nil {
		s.pagePacer = FixedDelay(DefaultPageDelay)
	}
	if s.lookupPacer == nil {
		s.lookupPacer = FixedDelay(DefaultLookupDelay)
	}
	return s
}

// Repo returns the repository the source is bound to.
func (s *Source) Repo() Repo {
	return s.repo
}

// Fetcher collects every item of one entity inside a time window.
type Fetcher interface {
	Entity() Entity
	FetchWindow(ctx context.Context, w TimeWindow) ([]Item, error)
}

var fetcherFactories = map[Entity]func(*Source) Fetcher{
	EntityCommits:      func(s *Source) Fetcher { return &commitFetcher{src: s} },
	EntityIssues:       func(s *Source) Fetcher { return &issueFetcher{src: s} },
	EntityPullRequests: func(s *Source) Fetcher { return &pullRequestFetcher{src: s} },
}

// Fetcher returns the fetcher registered for e.
func (s *Source) Fetcher(e Entity) (Fetcher, error) {
	factory, ok := fetcherFactories[e]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownEntity, e)
	}
	return factory(s), nil
}

// connection is the edges/pageInfo shape shared by every paginated query.
type connection[N any] struct {
	PageInfo PageInfo `json:"pageInfo"`
	Edges    []struct {
		Node *N `json:"node"`
	} `json:"edges"`
}

type numberNodes struct {
	Nodes []struct {
		Number int `json:"number"`
	} `json:"nodes"`
}

func (n *numberNodes) numbers() []int {
	if n == nil {
		return []int{}
	}
	out := make([]int, 0, len(n.Nodes))
	for _, node := range n.Nodes {
		out = append(out, node.Number)
	}
	return out
}

// ---- Commits ----

type commitNode struct {
	OID                    string       `json:"oid"`
	AssociatedPullRequests *numberNodes `json:"associatedPullRequests"`
}

type commitHistoryData struct {
	Repository *struct {
		Ref *struct {
			Target *struct {
				History *connection[commitNode] `json:"history"`
			} `json:"target"`
		} `json:"ref"`
	} `json:"repository"`
}

type commitFetcher struct {
	src *Source
}

func (f *commitFetcher) Entity() Entity { return EntityCommits }

func (f *commitFetcher) FetchWindow(ctx context.Context, w TimeWindow) ([]Item, error) {
	s := f.src
	log := s.log.With().Str("entity", string(EntityCommits)).Stringer("window", w).Logger()
	return paginate(ctx, s.pagePacer, log, func(ctx context.Context, cursor string) ([]Item, PageInfo, error) {
		vars := map[string]any{
			"owner":  s.repo.Owner,
			"name":   s.repo.Name,
			"ref":    "refs/heads/" + s.branch,
			"since":  w.Begin.Format(time.RFC3339),
			"until":  w.End.AddDate(0, 0, 1).Format(time.RFC3339),
			"first":  PageSize,
			"cursor": cursorVar(cursor),
		}
		var data commitHistoryData
		if err := s.gql.Execute(ctx, commitHistoryQuery, vars, &data); err != nil {
			return nil, PageInfo{}, fmt.Errorf("commit history %s: %w", w, err)
		}
		switch {
		case data.Repository == nil:
			return nil, PageInfo{}, malformed("repository %s not returned", s.repo)
		case data.Repository.Ref == nil:
			return nil, PageInfo{}, malformed("branch %s not found in %s", s.branch, s.repo)
		case data.Repository.Ref.Target == nil || data.Repository.Ref.Target.History == nil:
			return nil, PageInfo{}, malformed("branch %s does not point at a commit", s.branch)
		}

		history := data.Repository.Ref.Target.History
		items := make([]Item, 0, len(history.Edges))
		for _, edge := range history.Edges {
			if edge.Node == nil {
				continue
			}
			if edge.Node.AssociatedPullRequests == nil {
				log.Warn().Str("oid", edge.Node.OID).Msg("associatedPullRequests missing, using empty list")
			}
			items = append(items, Commit{
				OID:          edge.Node.OID,
				PullRequests: edge.Node.AssociatedPullRequests.numbers(),
			})
		}
		return items, history.PageInfo, nil
	})
}

// ---- Issues ----

type issueNode struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	BodyText  string    `json:"bodyText"`
	CreatedAt time.Time `json:"createdAt"`
	Comments  *struct {
		Nodes []struct {
			Author *struct {
				Login string `json:"login"`
			} `json:"author"`
			Body string `json:"body"`
		} `json:"nodes"`
	} `json:"comments"`
	Assignees *struct {
		Nodes []struct {
			Login string `json:"login"`
		} `json:"nodes"`
	} `json:"assignees"`
}

func (n *issueNode) issue() Issue {
	is := Issue{
		Number:    n.Number,
		Title:     n.Title,
		URL:       n.URL,
		BodyText:  n.BodyText,
		CreatedAt: n.CreatedAt,
		Assignees: []string{},
		Comments:  []comments.Comment{},
	}
	if n.Assignees != nil {
		for _, a := range n.Assignees.Nodes {
			is.Assignees = append(is.Assignees, a.Login)
		}
	}
	if n.Comments != nil {
		for _, c := range n.Comments.Nodes {
			cm := comments.Comment{Body: c.Body}
			if c.Author != nil {
				login := c.Author.Login
				cm.Author = &login
			}
			is.Comments = append(is.Comments, cm)
		}
	}
	return is
}

type issueSearchData struct {
	Search *connection[issueNode] `json:"search"`
}

type issueFetcher struct {
	src *Source
}

func (f *issueFetcher) Entity() Entity { return EntityIssues }

func (f *issueFetcher) FetchWindow(ctx context.Context, w TimeWindow) ([]Item, error) {
	s := f.src
	log := s.log.With().Str("entity", string(EntityIssues)).Stringer("window", w).Logger()
	q := issueSearchFilter(s.repo, w)
	return paginate(ctx, s.pagePacer, log, func(ctx context.Context, cursor string) ([]Item, PageInfo, error) {
		vars := map[string]any{"q": q, "first": PageSize, "cursor": cursorVar(cursor)}
		var data issueSearchData
		if err := s.gql.Execute(ctx, issueSearchQuery, vars, &data); err != nil {
			return nil, PageInfo{}, fmt.Errorf("issue search %s: %w", w, err)
		}
		if data.Search == nil {
			return nil, PageInfo{}, malformed("search not returned")
		}
		items := make([]Item, 0, len(data.Search.Edges))
		for _, edge := range data.Search.Edges {
			if edge.Node == nil || edge.Node.Number == 0 {
				continue
			}
			items = append(items, edge.Node.issue())
		}
		return items, data.Search.PageInfo, nil
	})
}

// ---- Pull requests ----

type pullRequestNode struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	BodyText  string     `json:"bodyText"`
	CreatedAt time.Time  `json:"createdAt"`
	MergedAt  *time.Time `json:"mergedAt"`
}

type pullRequestSearchData struct {
	Search *connection[pullRequestNode] `json:"search"`
}

type pullRequestFetcher struct {
	src *Source
}

func (f *pullRequestFetcher) Entity() Entity { return EntityPullRequests }

func (f *pullRequestFetcher) FetchWindow(ctx context.Context, w TimeWindow) ([]Item, error) {
	s := f.src
	log := s.log.With().Str("entity", string(EntityPullRequests)).Stringer("window", w).Logger()
	q := pullRequestSearchFilter(s.repo, w)
	return paginate(ctx, s.pagePacer, log, func(ctx context.Context, cursor string) ([]Item, PageInfo, error) {
		vars := map[string]any{"q": q, "first": PageSize, "cursor": cursorVar(cursor)}
		var data pullRequestSearchData
		if err := s.gql.Execute(ctx, pullRequestSearchQuery, vars, &data); err != nil {
			return nil, PageInfo{}, fmt.Errorf("pull request search %s: %w", w, err)
		}
		if data.Search == nil {
			return nil, PageInfo{}, malformed("search not returned")
		}
		items := make([]Item, 0, len(data.Search.Edges))
		for _, edge := range data.Search.Edges {
			n := edge.Node
			if n == nil || n.Number == 0 {
				continue
			}
			items = append(items, PullRequest{
				Number:    n.Number,
				Title:     n.Title,
				URL:       n.URL,
				BodyText:  n.BodyText,
				CreatedAt: n.CreatedAt,
				MergedAt:  n.MergedAt,
			})
		}
		return items, data.Search.PageInfo, nil
	})
}
