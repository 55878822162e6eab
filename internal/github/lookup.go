package github

import (
	"context"
	"fmt"
	"time"
)

type issueInfoData struct {
	Repository *struct {
		Issue *struct {
			Number   int        `json:"number"`
			Body     string     `json:"body"`
			ClosedAt *time.Time `json:"closedAt"`
		} `json:"issue"`
	} `json:"repository"`
}

// IssueInfo resolves the body and closure time of issue number. found is
// false when the repository has no such issue.
func (s *Source) IssueInfo(ctx context.Context, number int) (detail IssueDetail, found bool, err error) {
	vars := map[string]any{"owner": s.repo.Owner, "name": s.repo.Name, "number": number}

	var data issueInfoData
	execErr := s.gql.Execute(ctx, issueInfoQuery, vars, &data)
	if err := s.lookupPacer.Pause(ctx); err != nil {
		return IssueDetail{}, false, err
	}
	if execErr != nil && !IsNotFound(execErr) {
		return IssueDetail{}, false, fmt.Errorf("issue info #%d: %w", number, execErr)
	}

	if execErr != nil || data.Repository == nil || data.Repository.Issue == nil {
		s.log.Debug().Int("number", number).Msg("issue not found")
		return IssueDetail{}, false, nil
	}
	is := data.Repository.Issue
	return IssueDetail{Number: is.Number, Body: is.Body, ClosedAt: is.ClosedAt}, true, nil
}

type commitPullRequestsData struct {
	Repository *struct {
		Object *struct {
			OID                    string       `json:"oid"`
			AssociatedPullRequests *numberNodes `json:"associatedPullRequests"`
		} `json:"object"`
	} `json:"repository"`
}

// CommitPullRequests returns the numbers of the pull requests that introduced
// commit sha. An unknown commit yields an empty list.
func (s *Source) CommitPullRequests(ctx context.Context, sha string) ([]int, error) {
	vars := map[string]any{"owner": s.repo.Owner, "name": s.repo.Name, "oid": sha}

	var data commitPullRequestsData
	if err := s.gql.Execute(ctx, commitPullRequestsQuery, vars, &data); err != nil {
		if IsNotFound(err) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("commit pull requests %s: %w", sha, err)
	}
	if data.Repository == nil || data.Repository.Object == nil {
		return []int{}, nil
	}
	return data.Repository.Object.AssociatedPullRequests.numbers(), nil
}
