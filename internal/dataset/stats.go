package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PartitionStats summarises one partition file.
type PartitionStats struct {
	PartitionRef
	Items    int       `json:"items"`
	Embedded int       `json:"embedded"`
	RunID    string    `json:"run_id,omitempty"`
	LastRun  time.Time `json:"last_run,omitempty"`
}

// Stats reports row counts for every partition on disk.
func (s *Store) Stats(ctx context.Context) ([]PartitionStats, error) {
	refs, err := s.Partitions()
	if err != nil {
		return nil, err
	}
	out := make([]PartitionStats, 0, len(refs))
	for _, ref := range refs {
		p, err := s.Open(ref.Entity, ref.Year)
		if err != nil {
			return nil, err
		}
		st, err := p.Stats(ctx)
		p.Close()
		if err != nil {
			return nil, err
		}
		st.PartitionRef = ref
		out = append(out, st)
	}
	return out, nil
}

// Stats counts the items and embeddings of the partition.
func (p *Partition) Stats(ctx context.Context) (PartitionStats, error) {
	st := PartitionStats{PartitionRef: PartitionRef{Entity: p.entity, Year: p.year, Path: p.db.Path()}}

	table, err := itemTable(p.entity)
	if err != nil {
		return st, err
	}
	conn := p.db.Conn()
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&st.Items); err != nil {
		return st, fmt.Errorf("dataset: count %s: %w", table, err)
	}
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&st.Embedded); err != nil {
		return st, fmt.Errorf("dataset: count embeddings: %w", err)
	}

	var written string
	err = conn.QueryRowContext(ctx,
		`SELECT id, written_at FROM crawl_runs ORDER BY written_at DESC, rowid DESC LIMIT 1`,
	).Scan(&st.RunID, &written)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return st, fmt.Errorf("dataset: last run: %w", err)
	default:
		st.LastRun = parseTime(written)
	}
	return st, nil
}
