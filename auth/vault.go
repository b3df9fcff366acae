package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/marrow/guard"
)

// ErrSessionNotFound is returned by Load and GetMetadata when no session
// exists for the domain.
var ErrSessionNotFound = errors.New("auth: session not found")

// SessionMetadata describes a stored session without its state payload.
type SessionMetadata struct {
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"createdAt"`
	LastUsed  time.Time `json:"lastUsed"`
}

// SessionRecord is the on-disk session format: metadata plus an opaque
// serialized browser state (cookies, storage). The vault never inspects
// StorageState.
type SessionRecord struct {
	Metadata     SessionMetadata `json:"metadata"`
	StorageState json.RawMessage `json:"storageState"`
}

// Vault is a filesystem-keyed session store: one JSON file per domain
// under the sessions directory. Concurrent saves for the same domain are
// last-write-wins; escalation is interactively gated and rare, so the
// race is accepted.
type Vault struct {
	dir string
}

// NewVault creates a vault rooted at dir. Empty dir means
// <home>/.marrow/sessions.
func NewVault(dir string) (*Vault, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("auth: resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".marrow", "sessions")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("auth: create session dir: %w", err)
	}
	return &Vault{dir: dir}, nil
}

// Save stores (or overwrites) the session for a domain.
func (v *Vault) Save(domain string, storageState json.RawMessage) error {
	now := time.Now().UTC()
	rec := SessionRecord{
		Metadata: SessionMetadata{
			Domain:    domain,
			CreatedAt: now,
			LastUsed:  now,
		},
		StorageState: storageState,
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("auth: encode session: %w", err)
	}
	if err := os.WriteFile(v.path(domain), data, 0o600); err != nil {
		return fmt.Errorf("auth: write session: %w", err)
	}
	return nil
}

// Load returns the session for a domain and refreshes its lastUsed stamp.
func (v *Vault) Load(domain string) (*SessionRecord, error) {
	rec, err := v.read(domain)
	if err != nil {
		return nil, err
	}

	rec.Metadata.LastUsed = time.Now().UTC()
	if data, err := json.MarshalIndent(rec, "", "  "); err == nil {
		// refresh is best-effort, the caller already has the session
		os.WriteFile(v.path(domain), data, 0o600)
	}
	return rec, nil
}

// Exists reports whether a session is stored for the domain.
func (v *Vault) Exists(domain string) bool {
	_, err := os.Stat(v.path(domain))
	return err == nil
}

// Delete removes the session for a domain. Deleting a missing session is
// not an error.
func (v *Vault) Delete(domain string) error {
	err := os.Remove(v.path(domain))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	return nil
}

// List returns the domains with stored sessions.
func (v *Vault) List() ([]string, error) {
	entries, err := os.ReadDir(v.dir)
	if err != nil {
		return nil, fmt.Errorf("auth: list sessions: %w", err)
	}

	var domains []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := v.readFile(filepath.Join(v.dir, e.Name()))
		if err != nil {
			continue
		}
		domains = append(domains, rec.Metadata.Domain)
	}
	return domains, nil
}

// GetMetadata returns the metadata for a domain's session without touching
// lastUsed.
func (v *Vault) GetMetadata(domain string) (*SessionMetadata, error) {
	rec, err := v.read(domain)
	if err != nil {
		return nil, err
	}
	return &rec.Metadata, nil
}

func (v *Vault) path(domain string) string {
	return filepath.Join(v.dir, guard.SanitizeKey(domain)+".json")
}

func (v *Vault) read(domain string) (*SessionRecord, error) {
	return v.readFile(v.path(domain))
}

func (v *Vault) readFile(path string) (*SessionRecord, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("auth: read session: %w", err)
	}

	rec := &SessionRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("auth: decode session: %w", err)
	}
	return rec, nil
}
