package db

import (
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "partition.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestOpen_CreatesParentDirs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "issues", "nested", "acme_widgets_2021.db")
	database, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	if err := database.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if database.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", database.Path(), dbPath)
	}
}

func TestOpen_TablesExist(t *testing.T) {
	database := openTemp(t)

	tables := []string{"commits", "pull_requests", "issues", "embeddings", "crawl_runs", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := database.Conn().QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("query table %q: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %q not found", table)
		}
	}
}

func TestOpen_MigrationsRecorded(t *testing.T) {
	database := openTemp(t)

	var count int
	if err := database.Conn().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("query migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d migrations recorded, got %d", len(migrations), count)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := db1.Conn().Exec(`INSERT INTO commits (oid, position) VALUES ('abc', 0)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	var count int
	db2.Conn().QueryRow(`SELECT COUNT(*) FROM commits`).Scan(&count)
	if count != 1 {
		t.Errorf("commits lost after re-open, got %d rows", count)
	}
}

func TestEnsureVectorTable(t *testing.T) {
	database := openTemp(t)

	if err := database.EnsureVectorTable(0); err == nil {
		t.Error("expected error for zero dimension")
	}
	if !database.VectorsAvailable() {
		t.Skip("sqlite-vec not loaded")
	}
	if err := database.EnsureVectorTable(4); err != nil {
		t.Fatalf("EnsureVectorTable: %v", err)
	}
	// Second call is a no-op.
	if err := database.EnsureVectorTable(4); err != nil {
		t.Fatalf("EnsureVectorTable again: %v", err)
	}
}

func TestClose(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := database.Ping(); err == nil {
		t.Error("expected Ping to fail after Close")
	}
}
