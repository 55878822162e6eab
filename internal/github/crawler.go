package github

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// PartitionWriter persists the items of one (entity, year) partition.
type PartitionWriter interface {
	WritePartition(ctx context.Context, entity Entity, year int, items []Item) error
}

// Crawler walks month windows year by year with a single fetcher. Windows are
// fetched one after another; nothing runs concurrently.
type Crawler struct {
	fetcher  Fetcher
	sink     PartitionWriter
	log      zerolog.Logger
	onWindow func(w TimeWindow, items int)
}

// NewCrawler returns a crawler that checkpoints each finished year to sink.
// sink may be nil.
func NewCrawler(f Fetcher, sink PartitionWriter, log zerolog.Logger) *Crawler {
	return &Crawler{
		fetcher: f,
		sink:    sink,
		log:     log.With().Str("entity", string(f.Entity())).Logger(),
	}
}

// OnWindow registers fn to be called after every completed window.
func (c *Crawler) OnWindow(fn func(w TimeWindow, items int)) {
	c.onWindow = fn
}

// CrawlYear fetches the twelve months of year and returns their items in
// window order. Nothing is persisted.
func (c *Crawler) CrawlYear(ctx context.Context, year int) ([]Item, error) {
	var out []Item
	for _, w := range MonthWindows(year) {
		items, err := c.fetcher.FetchWindow(ctx, w)
		if err != nil {
			return nil, err
		}
		c.log.Debug().Stringer("window", w).Int("items", len(items)).Msg("window done")
		if c.onWindow != nil {
			c.onWindow(w, len(items))
		}
		out = append(out, items...)
	}
	return out, nil
}

// Crawl fetches every year in order, writes each year's partition as soon
// as the year is complete and returns all items.
func (c *Crawler) Crawl(ctx context.Context, years []int) ([]Item, error) {
	var all []Item
	for _, year := range years {
		items, err := c.CrawlYear(ctx, year)
		if err != nil {
			return nil, fmt.Errorf("crawl %s %d: %w", c.fetcher.Entity(), year, err)
		}
		c.log.Info().Int("year", year).Int("items", len(items)).Msg("year retrieved")

		if c.sink != nil {
			if err := c.sink.WritePartition(ctx, c.fetcher.Entity(), year, items); err != nil {
				return nil, fmt.Errorf("checkpoint %s %d: %w", c.fetcher.Entity(), year, err)
			}
		}
		all = append(all, items...)
	}
	return all, nil
}
