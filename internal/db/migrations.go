package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of SQL migration statements.
// Each entry is applied once in order. New migrations are appended at the end.
var migrations = []string{
	// Migration 0: partition schema
	`CREATE TABLE IF NOT EXISTS commits (
		oid           TEXT PRIMARY KEY,
		pull_requests TEXT NOT NULL DEFAULT '[]',
		position      INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS pull_requests (
		number     INTEGER PRIMARY KEY,
		title      TEXT NOT NULL,
		url        TEXT NOT NULL,
		body_text  TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		merged_at  DATETIME,
		position   INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS issues (
		number     INTEGER PRIMARY KEY,
		title      TEXT NOT NULL,
		url        TEXT NOT NULL,
		body_text  TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		assignees  TEXT NOT NULL DEFAULT '[]',
		comments   TEXT NOT NULL DEFAULT '[]',
		position   INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS embeddings (
		item_key   TEXT PRIMARY KEY,
		model      TEXT NOT NULL,
		dimension  INTEGER NOT NULL,
		tokens     INTEGER NOT NULL,
		embedding  BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS crawl_runs (
		id         TEXT PRIMARY KEY,
		entity     TEXT NOT NULL,
		repo       TEXT NOT NULL,
		year       INTEGER NOT NULL,
		items      INTEGER NOT NULL,
		written_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_crawl_runs_written ON crawl_runs(written_at DESC)`,
}

// applyMigrations runs any migrations that have not yet been applied.
func applyMigrations(conn *sql.DB) error {
	// Ensure the migration tracking table exists first.
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for i, stmt := range migrations {
		var count int
		row := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, i)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", i, err)
		}
		if count > 0 {
			continue
		}

		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}

		if _, err := conn.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, i); err != nil {
			return fmt.Errorf("record migration %d: %w", i, err)
		}
	}

	return nil
}

func applyVectorTables(conn *sql.DB, dimension int) error {
	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_items USING vec0(
		item_key TEXT PRIMARY KEY,
		embedding float[%d]
	)`, dimension)
	if _, err := conn.Exec(stmt); err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}
	return nil
}
