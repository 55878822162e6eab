package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrMalformedResponse indicates a successful HTTP response whose body is
	// not valid JSON or lacks a required field.
	ErrMalformedResponse = errors.New("github: malformed response")

	// ErrUnknownEntity indicates an entity selector no fetcher is registered for.
	ErrUnknownEntity = errors.New("github: unknown entity")
)

// HTTPError is a non-success status from the graph or REST endpoint. Body
// holds the response body for diagnosis.
type HTTPError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("github: request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// QueryError carries the messages of a GraphQL "errors" array. Types holds
// the matching "type" members, such as NOT_FOUND, and may contain empty
// strings.
type QueryError struct {
	Messages []string
	Types    []string
}

// notFoundType is the error type GitHub reports for an unresolvable node.
const notFoundType = "NOT_FOUND"

func (e *QueryError) Error() string {
	return "github: graphql error: " + strings.Join(e.Messages, "; ")
}

// RateLimitError is returned when the REST endpoint reports an exhausted quota.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err is a 404 from the REST endpoint or a
// GraphQL error that only reports unresolvable nodes.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusNotFound
	}
	var qErr *QueryError
	if !errors.As(err, &qErr) || len(qErr.Types) == 0 {
		return false
	}
	for _, t := range qErr.Types {
		if t != notFoundType {
			return false
		}
	}
	return true
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}

// IsRateLimited reports whether err is a rate limit rejection.
func IsRateLimited(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}
