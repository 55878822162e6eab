package github

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Pacer spaces consecutive requests. It is a courtesy throttle, not a retry.
type Pacer interface {
	Pause(ctx context.Context) error
}

// FixedDelay pauses for the same duration every time.
type FixedDelay time.Duration

// Pause blocks for d or until ctx is done.
func (d FixedDelay) Pause(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(d))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PageInfo is the pagination envelope of a GraphQL connection.
type PageInfo struct {
	EndCursor   *string `json:"endCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// pageFunc fetches the page following cursor. An empty cursor asks for the first page.
type pageFunc[T any] func(ctx context.Context, cursor string) ([]T, PageInfo, error)

// paginate follows a cursor-paginated connection to its end, accumulating
// every page. Requests are strictly sequential with a pause between pages.
func paginate[T any](ctx context.Context, pacer Pacer, log zerolog.Logger, fetch pageFunc[T]) ([]T, error) {
	var (
		all    []T
		cursor string
	)
	for page := 1; ; page++ {
		items, info, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)

		log.Debug().
			Int("page", page).
			Int("items", len(items)).
			Bool("has_next", info.HasNextPage).
			Msg("page fetched")

		if !info.HasNextPage {
			return all, nil
		}
		if info.EndCursor == nil || *info.EndCursor == "" {
			return nil, malformed("hasNextPage without endCursor on page %d", page)
		}
		cursor = *info.EndCursor

		if err := pacer.Pause(ctx); err != nil {
			return nil, err
		}
	}
}

func cursorVar(cursor string) any {
	if cursor == "" {
		return nil
	}
	return cursor
}
