// Package dataset persists crawled items as one SQLite file per
// (entity, repository, year) partition.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/repolens/repolens/internal/github"
)

// ErrPartitionNotFound is returned when a partition file does not exist.
var ErrPartitionNotFound = errors.New("dataset: partition not found")

const partitionExt = ".db"

// Store lays partitions out as <root>/<entity>/<owner>_<name>_<year>.db.
type Store struct {
	root string
	repo github.Repo
	log  zerolog.Logger
}

// NewStore returns a store rooted at root for repo.
func NewStore(root string, repo github.Repo, log zerolog.Logger) *Store {
	return &Store{
		root: root,
		repo: repo,
		log:  log.With().Str("repo", repo.String()).Logger(),
	}
}

// Root returns the output directory.
func (s *Store) Root() string { return s.root }

// PartitionPath returns the file that holds the (entity, year) partition.
func (s *Store) PartitionPath(entity github.Entity, year int) string {
	name := fmt.Sprintf("%s_%s_%d%s", s.repo.Owner, s.repo.Name, year, partitionExt)
	return filepath.Join(s.root, string(entity), name)
}

// WritePartition replaces the contents of the (entity, year) partition with
// items. Rerunning a year overwrites it. An item seen more than once, as when
// search repeats a node across pages, is stored at its first position.
func (s *Store) WritePartition(ctx context.Context, entity github.Entity, year int, items []github.Item) error {
	items, dropped := uniqueItems(items)
	if len(dropped) > 0 {
		s.log.Warn().
			Str("entity", string(entity)).
			Int("year", year).
			Strs("keys", dropped).
			Msg("duplicate items dropped")
	}

	p, err := s.open(entity, year, true)
	if err != nil {
		return err
	}
	defer p.Close()

	runID, err := p.replace(ctx, s.repo, items)
	if err != nil {
		return fmt.Errorf("dataset: write %s %d: %w", entity, year, err)
	}
	s.log.Info().
		Str("entity", string(entity)).
		Int("year", year).
		Int("items", len(items)).
		Str("run", runID).
		Str("path", p.db.Path()).
		Msg("partition written")
	return nil
}

// Read returns the items of a partition in crawl order.
func (s *Store) Read(ctx context.Context, entity github.Entity, year int) ([]github.Item, error) {
	p, err := s.Open(entity, year)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.Items(ctx)
}

// Open opens an existing partition.
func (s *Store) Open(entity github.Entity, year int) (*Partition, error) {
	return s.open(entity, year, false)
}

func (s *Store) open(entity github.Entity, year int, create bool) (*Partition, error) {
	path := s.PartitionPath(entity, year)
	if !create {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPartitionNotFound, path)
		}
	}
	return openPartition(path, entity, year)
}

// PartitionRef identifies a partition file of this store's repository.
type PartitionRef struct {
	Entity github.Entity `json:"entity"`
	Year   int           `json:"year"`
	Path   string        `json:"path"`
}

// Partitions lists the partitions present on disk, ordered by entity then year.
func (s *Store) Partitions() ([]PartitionRef, error) {
	prefix := s.repo.Owner + "_" + s.repo.Name + "_"
	var refs []PartitionRef
	for _, entity := range github.Entities() {
		dir := filepath.Join(s.root, string(entity))
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: list %s: %w", dir, err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, partitionExt) {
				continue
			}
			year, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), partitionExt))
			if err != nil {
				continue
			}
			refs = append(refs, PartitionRef{Entity: entity, Year: year, Path: filepath.Join(dir, name)})
		}
	}
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Entity != refs[j].Entity {
			return refs[i].Entity < refs[j].Entity
		}
		return refs[i].Year < refs[j].Year
	})
	return refs, nil
}
