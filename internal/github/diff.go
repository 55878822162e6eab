package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v80/github"
	"github.com/rs/zerolog"
)

const diffMediaType = "application/vnd.github.v3.diff"

// DiffClient fetches raw diffs from the REST API.
type DiffClient struct {
	gh         *gh.Client
	httpClient *http.Client
	repo       Repo
	limiter    *RateLimiter
	log        zerolog.Logger
}

// NewDiffClient builds a client for repo. apiURL overrides the REST base URL
// when non-empty.
func NewDiffClient(httpClient *http.Client, apiURL string, repo Repo, limiter *RateLimiter, log zerolog.Logger) (*DiffClient, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if limiter == nil {
		limiter = NewRateLimiter(DefaultRESTRate)
	}
	client := gh.NewClient(httpClient)
	if apiURL != "" {
		base, err := url.Parse(strings.TrimRight(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("diff client: parse api url: %w", err)
		}
		client.BaseURL = base
	}
	return &DiffClient{
		gh:         client,
		httpClient: httpClient,
		repo:       repo,
		limiter:    limiter,
		log:        log,
	}, nil
}

// PullRequestDiff returns the unified diff of pull request number.
func (d *DiffClient) PullRequestDiff(ctx context.Context, number int) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	diff, resp, err := d.gh.PullRequests.GetRaw(ctx, d.repo.Owner, d.repo.Name, number, gh.RawOptions{Type: gh.Diff})
	d.update(resp)
	if err != nil {
		return "", d.wrapError(err, fmt.Sprintf("pull request #%d diff", number))
	}
	return diff, nil
}

// CommitDiff returns the unified diff of commit sha.
func (d *DiffClient) CommitDiff(ctx context.Context, sha string) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	diff, resp, err := d.gh.Repositories.GetCommitRaw(ctx, d.repo.Owner, d.repo.Name, sha, gh.RawOptions{Type: gh.Diff})
	d.update(resp)
	if err != nil {
		return "", d.wrapError(err, "commit "+sha+" diff")
	}
	return diff, nil
}

// DiffByURL fetches "<htmlURL>.diff", the diff view of a pull request or
// commit page.
func (d *DiffClient) DiffByURL(ctx context.Context, htmlURL string) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	target := strings.TrimRight(htmlURL, "/") + ".diff"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("diff by url: build request: %w", err)
	}
	req.Header.Set("Accept", diffMediaType)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("diff by url: %w", err)
	}
	defer resp.Body.Close()
	d.limiter.UpdateFromResponse(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("diff by url: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(body), URL: target}
	}
	return string(body), nil
}

func (d *DiffClient) update(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	d.limiter.UpdateFromResponse(resp.Response)
	d.log.Trace().Int("status", resp.StatusCode).Int("remaining", d.limiter.Remaining()).Msg("rest response")
}

func (d *DiffClient) wrapError(err error, op string) error {
	var rlErr *gh.RateLimitError
	if errors.As(err, &rlErr) {
		return &RateLimitError{ResetAt: rlErr.Rate.Reset.Time}
	}
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		u := ""
		if ghErr.Response.Request != nil {
			u = ghErr.Response.Request.URL.String()
		}
		return &HTTPError{StatusCode: ghErr.Response.StatusCode, Body: ghErr.Message, URL: u}
	}
	return fmt.Errorf("%s: %w", op, err)
}
