package dataset

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

// VectorMatch is a single similarity search result.
type VectorMatch struct {
	Key      string
	Distance float64
}

// SaveEmbedding stores the vector computed for the item with the given key.
// The vector is mirrored into vec_items when sqlite-vec is loaded.
func (p *Partition) SaveEmbedding(ctx context.Context, key, model string, tokens int, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("dataset: empty embedding for %s", key)
	}
	blob := float32SliceToBlob(embedding)
	_, err := p.db.Conn().ExecContext(ctx,
		`INSERT INTO embeddings (item_key, model, dimension, tokens, embedding) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(item_key) DO UPDATE SET
		     model      = excluded.model,
		     dimension  = excluded.dimension,
		     tokens     = excluded.tokens,
		     embedding  = excluded.embedding,
		     created_at = CURRENT_TIMESTAMP`,
		key, model, len(embedding), tokens, blob,
	)
	if err != nil {
		return fmt.Errorf("dataset: save embedding %s: %w", key, err)
	}

	if !p.db.VectorsAvailable() {
		return nil
	}
	if err := p.db.EnsureVectorTable(len(embedding)); err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	// vec0 tables do not support upsert.
	if _, err := p.db.Conn().ExecContext(ctx, `DELETE FROM vec_items WHERE item_key = ?`, key); err != nil {
		return fmt.Errorf("dataset: replace vector %s: %w", key, err)
	}
	if _, err := p.db.Conn().ExecContext(ctx,
		`INSERT INTO vec_items (item_key, embedding) VALUES (?, ?)`, key, blob); err != nil {
		return fmt.Errorf("dataset: insert vector %s: %w", key, err)
	}
	return nil
}

// Embedding returns the stored vector for key.
func (p *Partition) Embedding(ctx context.Context, key string) ([]float32, bool, error) {
	var blob []byte
	err := p.db.Conn().QueryRowContext(ctx, `SELECT embedding FROM embeddings WHERE item_key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("dataset: get embedding %s: %w", key, err)
	}
	return BlobToFloat32Slice(blob), true, nil
}

// EmbeddedKeys returns the keys that already have a vector.
func (p *Partition) EmbeddedKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := p.db.Conn().QueryContext(ctx, `SELECT item_key FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("dataset: list embeddings: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys[k] = true
	}
	return keys, rows.Err()
}

// Dimension returns the length of the stored vectors, or 0 when the
// partition has none.
func (p *Partition) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := p.db.Conn().QueryRowContext(ctx, `SELECT dimension FROM embeddings LIMIT 1`).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("dataset: read dimension: %w", err)
	}
	return dim, nil
}

// Search returns the topK stored vectors nearest to query by L2 distance.
// Without sqlite-vec the stored embeddings are scanned directly.
func (p *Partition) Search(ctx context.Context, query []float32, topK int) ([]VectorMatch, error) {
	if len(query) == 0 || topK <= 0 {
		return nil, nil
	}
	if hasVectorTable(ctx, p.db.Conn()) {
		rows, err := p.db.Conn().QueryContext(ctx,
			`SELECT item_key, distance FROM vec_items WHERE embedding MATCH ? AND k = ?
			 ORDER BY distance`,
			float32SliceToBlob(query), topK,
		)
		if err != nil {
			return nil, fmt.Errorf("dataset: vector search: %w", err)
		}
		defer rows.Close()
		return scanMatches(rows)
	}
	return p.scanSearch(ctx, query, topK)
}

func (p *Partition) scanSearch(ctx context.Context, query []float32, topK int) ([]VectorMatch, error) {
	rows, err := p.db.Conn().QueryContext(ctx, `SELECT item_key, embedding FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("dataset: scan embeddings: %w", err)
	}
	defer rows.Close()

	var out []VectorMatch
	for rows.Next() {
		var (
			key  string
			blob []byte
		)
		if err := rows.Scan(&key, &blob); err != nil {
			return nil, err
		}
		v := BlobToFloat32Slice(blob)
		if len(v) != len(query) {
			continue
		}
		out = append(out, VectorMatch{Key: key, Distance: l2(query, v)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func scanMatches(rows *sql.Rows) ([]VectorMatch, error) {
	var out []VectorMatch
	for rows.Next() {
		var m VectorMatch
		if err := rows.Scan(&m.Key, &m.Distance); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// float32SliceToBlob serialises a float32 slice to a little-endian byte blob,
// the format sqlite-vec expects.
func float32SliceToBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// BlobToFloat32Slice deserialises a little-endian byte blob to a float32 slice.
func BlobToFloat32Slice(b []byte) []float32 {
	result := make([]float32, len(b)/4)
	for i := range result {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		result[i] = math.Float32frombits(bits)
	}
	return result
}
