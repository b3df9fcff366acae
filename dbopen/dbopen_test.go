package dbopen

import (
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpen_AppliesSchema(t *testing.T) {
	db := OpenMemory(t, WithSchema(`CREATE TABLE maps (id TEXT PRIMARY KEY)`))

	if _, err := db.Exec(`INSERT INTO maps (id) VALUES ('map_1')`); err != nil {
		t.Fatalf("insert into schema table: %v", err)
	}
}

func TestOpen_MkdirAll(t *testing.T) {
	// WHAT: WithMkdirAll creates missing parent directories.
	// WHY: first boot on a fresh host has no data directory yet.
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "registry.db")

	db, err := Open(path, WithMkdirAll())
	if err != nil {
		t.Fatalf("Open with mkdir: %v", err)
	}
	defer db.Close()
}

func TestOpen_ForeignKeysEnabled(t *testing.T) {
	db := OpenMemory(t)

	var fk int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("query pragma: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestOpen_BadDriver(t *testing.T) {
	if _, err := Open(":memory:", WithDriver("no-such-driver")); err == nil {
		t.Error("expected error for unknown driver")
	}
}
