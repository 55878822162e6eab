package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	// Register sqlite-vec as an auto-extension so every connection opened by
	// this process has the vec0 virtual table module available.
	vec.Auto()
}

// DB wraps one partition file.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at path and applies migrations.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", absPath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer, multiple readers.
	conn.SetMaxOpenConns(1)

	if err := applyMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &DB{conn: conn, path: absPath}, nil
}

// Conn returns the underlying *sql.DB for use by the dataset layer.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Path is the absolute file path of the database.
func (d *DB) Path() string {
	return d.path
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping checks the connection is live.
func (d *DB) Ping() error {
	return d.conn.Ping()
}

// VectorsAvailable reports whether the vec0 module is loaded.
func (d *DB) VectorsAvailable() bool {
	var version string
	return d.conn.QueryRow(`SELECT vec_version()`).Scan(&version) == nil
}

// EnsureVectorTable creates the vec_items table for the given dimension.
// The dimension of an existing table is fixed; a mismatch surfaces on insert.
func (d *DB) EnsureVectorTable(dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("vector table: invalid dimension %d", dimension)
	}
	return applyVectorTables(d.conn, dimension)
}
