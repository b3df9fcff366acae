package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	v, err := NewVault(t.TempDir())
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	return v
}

func TestVaultRoundTrip(t *testing.T) {
	v := testVault(t)
	state := json.RawMessage(`{"cookies":[{"name":"sid","value":"abc"}],"localStorage":{"k":"v"}}`)

	if err := v.Save("example.com", state); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !v.Exists("example.com") {
		t.Fatal("exists: false after save")
	}

	rec, err := v.Load("example.com")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.Metadata.Domain != "example.com" {
		t.Errorf("domain = %q", rec.Metadata.Domain)
	}
	if string(rec.StorageState) != string(state) {
		t.Errorf("storage state = %s", rec.StorageState)
	}
	if rec.Metadata.CreatedAt.IsZero() || rec.Metadata.LastUsed.IsZero() {
		t.Error("timestamps not set")
	}
}

// WHAT: Load refreshes lastUsed on disk; GetMetadata does not.
func TestVaultLastUsedRefresh(t *testing.T) {
	v := testVault(t)
	if err := v.Save("example.com", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	before, err := v.GetMetadata("example.com")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := v.Load("example.com"); err != nil {
		t.Fatalf("load: %v", err)
	}

	after, err := v.GetMetadata("example.com")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if !after.LastUsed.After(before.LastUsed) {
		t.Errorf("lastUsed not refreshed: %v -> %v", before.LastUsed, after.LastUsed)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Errorf("createdAt changed: %v -> %v", before.CreatedAt, after.CreatedAt)
	}
}

func TestVaultMissingSession(t *testing.T) {
	v := testVault(t)

	if _, err := v.Load("nowhere.example"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("load missing: %v, want ErrSessionNotFound", err)
	}
	if v.Exists("nowhere.example") {
		t.Error("exists: true for missing session")
	}
	// Deleting a missing session is a no-op.
	if err := v.Delete("nowhere.example"); err != nil {
		t.Errorf("delete missing: %v", err)
	}
}

func TestVaultListAndDelete(t *testing.T) {
	v := testVault(t)
	for _, d := range []string{"alpha.example", "beta.example"} {
		if err := v.Save(d, json.RawMessage(`{}`)); err != nil {
			t.Fatalf("save %s: %v", d, err)
		}
	}

	domains, err := v.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(domains) != 2 {
		t.Fatalf("list = %v, want 2 domains", domains)
	}

	if err := v.Delete("alpha.example"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	domains, _ = v.List()
	if len(domains) != 1 || domains[0] != "beta.example" {
		t.Errorf("after delete: %v", domains)
	}
}

// WHAT: domain keys are sanitized to filesystem-safe names, so a hostile
// domain string cannot escape the session directory.
func TestVaultSanitizedFilenames(t *testing.T) {
	dir := t.TempDir()
	v, err := NewVault(dir)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	if err := v.Save("../../etc/passwd", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	name := entries[0].Name()
	if filepath.Dir(filepath.Join(dir, name)) != dir {
		t.Errorf("file escaped vault dir: %s", name)
	}
	// Round trip through the same sanitized key still works.
	if !v.Exists("../../etc/passwd") {
		t.Error("sanitized key not loadable")
	}
}
