// Package marrow turns web pages into durable, semantically named element
// maps and reuses those maps to extract content without repeated AI
// inference.
//
// The pipeline is cache-first: a stored map serves repeat requests, a miss
// triggers snapshot capture, AI discovery, and an insert-if-absent write.
// Each in-flight request owns its own browser lifecycle.
//
// Usage:
//
//	client, err := marrow.New(ctx, cfg, logger)
//	defer client.Close()
//	m, err := client.GetMap(ctx, "https://example.com/docs")
package marrow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/marrow/auth"
	"github.com/hazyhaar/marrow/mapper"
	"github.com/hazyhaar/marrow/registry"
	"github.com/hazyhaar/marrow/snapshot"
)

// MapStore is the registry surface the orchestrator depends on.
type MapStore interface {
	GetMap(ctx context.Context, urlPattern string) (*registry.PageStructure, error)
	GetElement(ctx context.Context, urlPattern, name string) (*registry.Element, error)
	GetManifest(ctx context.Context, domain string) (*registry.Manifest, error)
	SaveMap(ctx context.Context, m *registry.PageStructure) (*registry.SaveResult, error)
	TrackView(urlPattern string)
	GetStats(ctx context.Context) (*registry.Stats, error)
}

// Discoverer runs AI discovery over a snapshot.
type Discoverer interface {
	Analyze(ctx context.Context, url string, snap *snapshot.PageSnapshot) (*registry.PageStructure, error)
}

// PageSource produces snapshots and evaluates selectors against live
// pages. The production implementation owns one browser per call; fakes
// stand in for tests.
type PageSource interface {
	// Snapshot navigates to url and captures a bounded snapshot.
	Snapshot(ctx context.Context, url string) (*snapshot.PageSnapshot, error)
	// Extract navigates to url and evaluates each selector independently.
	// A selector that fails or matches nothing maps to nil, never an error.
	Extract(ctx context.Context, url string, selectors []string) (map[string]*string, error)
}

// AuthChecker is implemented by page sources that can score a live page
// for authentication walls.
type AuthChecker interface {
	CheckAuth(ctx context.Context, url string) (*auth.Detection, error)
}

// Client is the single entry point combining cache lookup, live mapping,
// and content extraction.
type Client struct {
	cfg      *Config
	store    MapStore
	discover Discoverer
	pages    PageSource
	vault    *auth.Vault
	logger   *slog.Logger

	ownedRegistry *registry.Registry
}

// New wires the production pipeline: SQLite registry, configured AI
// provider, and a per-request stealth browser source.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Client, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	reg, err := registry.New(&cfg.Registry, logger)
	if err != nil {
		return nil, err
	}

	provider, err := mapper.NewProvider(ctx, cfg.Provider)
	if err != nil {
		reg.Close()
		return nil, err
	}

	vault, err := auth.NewVault(cfg.SessionDir)
	if err != nil {
		reg.Close()
		return nil, err
	}

	return &Client{
		cfg:           cfg,
		store:         reg,
		discover:      mapper.New(provider, logger),
		pages:         NewBrowserSource(cfg, vault, logger),
		vault:         vault,
		logger:        logger,
		ownedRegistry: reg,
	}, nil
}

// NewWithDeps assembles a Client from explicit collaborators. Used by
// tests and by callers that share a registry across services.
func NewWithDeps(cfg *Config, store MapStore, discover Discoverer, pages PageSource, logger *slog.Logger) *Client {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:      cfg,
		store:    store,
		discover: discover,
		pages:    pages,
		logger:   logger,
	}
}

// Close releases resources owned by the client.
func (c *Client) Close() error {
	if c.ownedRegistry != nil {
		return c.ownedRegistry.Close()
	}
	return nil
}

// Vault exposes the session store for escalation flows.
func (c *Client) Vault() *auth.Vault {
	return c.vault
}

// GetMap is cache-first. On a hit the view is tracked asynchronously and
// the stored map returns immediately; the discovery path never runs. On a
// miss the full snapshot-discover-persist sequence executes. Two
// concurrent misses may both pay the discovery cost; the registry's
// insert-if-absent resolves the write race.
func (c *Client) GetMap(ctx context.Context, urlPattern string) (*registry.PageStructure, error) {
	cached, err := c.store.GetMap(ctx, urlPattern)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		c.store.TrackView(urlPattern)
		c.logger.Debug("marrow: cache hit", "url", cached.URL)
		return cached, nil
	}

	c.logger.Info("marrow: cache miss, mapping page", "url", urlPattern)
	return c.MapPageFresh(ctx, urlPattern)
}

// MapPageFresh bypasses the cache read and always runs discovery. Whether
// the result is stored is the registry's insert-if-absent decision: an
// earlier writer's map stays authoritative.
func (c *Client) MapPageFresh(ctx context.Context, urlPattern string) (*registry.PageStructure, error) {
	return c.mapFresh(ctx, urlPattern, nil)
}

func (c *Client) mapFresh(ctx context.Context, urlPattern string, dbg *MapDebug) (*registry.PageStructure, error) {
	n, err := registry.Normalize(urlPattern)
	if err != nil {
		return nil, err
	}
	target := CompleteURL(urlPattern)

	stage := time.Now()
	snap, err := c.pages.Snapshot(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("marrow: snapshot %s: %w", n.URL, err)
	}
	if dbg != nil {
		dbg.Timings.SnapshotMS = time.Since(stage).Milliseconds()
		dbg.HTMLLength = len(snap.HTML)
	}

	stage = time.Now()
	discoverCtx, cancel := context.WithTimeout(ctx, c.cfg.DiscoveryTimeout)
	defer cancel()
	m, err := c.discover.Analyze(discoverCtx, target, snap)
	if err != nil {
		return nil, err
	}
	if dbg != nil {
		dbg.Timings.DiscoveryMS = time.Since(stage).Milliseconds()
	}

	stage = time.Now()
	res, err := c.store.SaveMap(ctx, m)
	if err != nil {
		return nil, err
	}
	if dbg != nil {
		dbg.Timings.SaveMS = time.Since(stage).Milliseconds()
	}
	if res.Status == registry.SaveExists {
		// lost the discovery race, serve the committed winner
		stored, err := c.store.GetMap(ctx, urlPattern)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			return stored, nil
		}
	}
	m.ID = res.ID
	return m, nil
}

// CheckAuth reports whether the URL appears to sit behind a login wall or
// paywall. Returns ErrAuthCheckUnsupported when the page source cannot
// probe live pages.
func (c *Client) CheckAuth(ctx context.Context, urlPattern string) (*auth.Detection, error) {
	ac, ok := c.pages.(AuthChecker)
	if !ok {
		return nil, ErrAuthCheckUnsupported
	}
	return ac.CheckAuth(ctx, CompleteURL(urlPattern))
}

// GetManifest returns the domain's map index.
func (c *Client) GetManifest(ctx context.Context, domain string) (*registry.Manifest, error) {
	return c.store.GetManifest(ctx, domain)
}

// GetStats returns registry-wide aggregates.
func (c *Client) GetStats(ctx context.Context) (*registry.Stats, error) {
	return c.store.GetStats(ctx)
}

// CompleteURL prepends https:// when the input has no scheme, so bare
// domains from API callers navigate correctly.
func CompleteURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}
