package github

// PageSize is the number of edges requested per page.
const PageSize = 100

const commitHistoryQuery = `
query CommitHistory($owner: String!, $name: String!, $ref: String!, $since: GitTimestamp!, $until: GitTimestamp!, $first: Int!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    ref(qualifiedName: $ref) {
      target {
        ... on Commit {
          history(since: $since, until: $until, first: $first, after: $cursor) {
            pageInfo {
              endCursor
              hasNextPage
            }
            edges {
              node {
                oid
                associatedPullRequests(first: 10) {
                  nodes {
                    number
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}
`

const issueSearchQuery = `
query IssueSearch($q: String!, $first: Int!, $cursor: String) {
  search(query: $q, type: ISSUE, first: $first, after: $cursor) {
    pageInfo {
      endCursor
      hasNextPage
    }
    edges {
      node {
        ... on Issue {
          number
          title
          url
          bodyText
          comments(first: 50) {
            nodes {
              author {
                login
              }
              body
            }
          }
          createdAt
          assignees(first: 10) {
            nodes {
              login
            }
          }
        }
      }
    }
  }
}
`

const pullRequestSearchQuery = `
query PullRequestSearch($q: String!, $first: Int!, $cursor: String) {
  search(query: $q, type: ISSUE, first: $first, after: $cursor) {
    pageInfo {
      endCursor
      hasNextPage
    }
    edges {
      node {
        ... on PullRequest {
          number
          title
          url
          bodyText
          createdAt
          mergedAt
        }
      }
    }
  }
}
`

const issueInfoQuery = `
query IssueInfo($owner: String!, $name: String!, $number: Int!) {
  repository(owner: $owner, name: $name) {
    issue(number: $number) {
      number
      body
      closedAt
    }
  }
}
`

const commitPullRequestsQuery = `
query CommitPullRequests($owner: String!, $name: String!, $oid: GitObjectID!) {
  repository(owner: $owner, name: $name) {
    object(oid: $oid) {
      ... on Commit {
        oid
        associatedPullRequests(first: 5) {
          nodes {
            number
          }
        }
      }
    }
  }
}
`

// issueSearchFilter matches issues closed as completed inside the window.
func issueSearchFilter(repo Repo, w TimeWindow) string {
	return "repo:" + repo.String() + " is:issue state:closed closed:" + w.String() + " reason:completed"
}

// pullRequestSearchFilter matches pull requests merged inside the window.
func pullRequestSearchFilter(repo Repo, w TimeWindow) string {
	return "repo:" + repo.String() + " is:pr is:merged closed:" + w.String()
}
