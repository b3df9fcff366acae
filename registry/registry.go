// Package registry is the cache and store for page maps.
//
// It persists one immutable PageStructure per normalized URL together with
// usage analytics. The insert-if-absent contract on SaveMap is the only
// cross-request consistency guarantee in the pipeline: concurrent writers
// for the same URL resolve at write time, first committed writer wins.
//
// Usage:
//
//	r, err := registry.New(cfg, logger)
//	defer r.Close()
//	m, err := r.GetMap(ctx, "https://example.com/docs")
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/marrow/idgen"
	"github.com/hazyhaar/marrow/registry/internal/store"
)

const (
	metricTotalRequests = "total_requests"
	metricTotalMaps     = "total_maps"

	topDomainsLimit  = 10
	trackViewTimeout = 5 * time.Second
)

// Config holds the registry configuration.
type Config struct {
	DBPath string `json:"db_path" yaml:"db_path"`

	// DomainFallback makes GetElement fall back to the domain's most-used
	// map when no exact-URL map exists. GetMap never falls back.
	DomainFallback bool `json:"domain_fallback" yaml:"domain_fallback"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "marrow.db"
	}
}

// Registry is the page map cache.
type Registry struct {
	store  *store.Store
	logger *slog.Logger
	config *Config
	newID  idgen.Generator
}

// New creates a Registry. Opens the SQLite database and initialises the schema.
func New(cfg *Config, logger *slog.Logger) (*Registry, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	return &Registry{
		store:  s,
		logger: logger,
		config: cfg,
		newID:  idgen.Prefixed("map_", idgen.Default),
	}, nil
}

// Close shuts down the registry and closes the database.
func (r *Registry) Close() error {
	return r.store.Close()
}

// Store returns the underlying store for direct access (testing, admin).
func (r *Registry) Store() *store.Store {
	return r.store
}

// GetMap returns the map stored for the normalized form of urlPattern, or
// nil when no exact match exists. There is no domain-level fallback here:
// a miss means the caller should run discovery.
func (r *Registry) GetMap(ctx context.Context, urlPattern string) (*PageStructure, error) {
	n, err := Normalize(urlPattern)
	if err != nil {
		return nil, err
	}
	rec, err := r.store.GetMapByURL(ctx, n.URL)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return decodeRecord(rec)
}

// GetElement returns the named element from the map for urlPattern. On an
// exact-URL miss with DomainFallback enabled, the domain's most-used map is
// consulted instead. Returns nil when no element is found.
func (r *Registry) GetElement(ctx context.Context, urlPattern, name string) (*Element, error) {
	n, err := Normalize(urlPattern)
	if err != nil {
		return nil, err
	}
	rec, err := r.store.GetMapByURL(ctx, n.URL)
	if err != nil {
		return nil, err
	}
	if rec == nil && r.config.DomainFallback {
		rec, err = r.store.MostUsedMapForDomain(ctx, n.Domain)
		if err != nil {
			return nil, err
		}
	}
	if rec == nil {
		return nil, nil
	}

	m, err := decodeRecord(rec)
	if err != nil {
		return nil, err
	}
	for i := range m.Elements {
		if m.Elements[i].Name == name {
			return &m.Elements[i], nil
		}
	}
	return nil, nil
}

// GetManifest returns the domain-scoped index of all known maps, with
// elements reduced to name and description.
func (r *Registry) GetManifest(ctx context.Context, domain string) (*Manifest, error) {
	d, err := NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	recs, err := r.store.ListMapsByDomain(ctx, d)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{Domain: d, Pages: []ManifestEntry{}}
	for _, rec := range recs {
		m, err := decodeRecord(rec)
		if err != nil {
			return nil, err
		}
		entry := ManifestEntry{URL: m.URL, PageType: m.PageType}
		for _, el := range m.Elements {
			entry.Elements = append(entry.Elements, ManifestElement{
				Name:        el.Name,
				Description: el.Description,
			})
		}
		manifest.Pages = append(manifest.Pages, entry)
	}
	return manifest, nil
}

// SaveMap stores a map under its normalized URL with insert-if-absent
// semantics. If a map already exists for the URL it is left untouched and
// the result reports "exists" with the existing map's ID. Maps are never
// overwritten.
func (r *Registry) SaveMap(ctx context.Context, m *PageStructure) (*SaveResult, error) {
	n, err := Normalize(m.URL)
	if err != nil {
		return nil, err
	}

	elements, err := json.Marshal(m.Elements)
	if err != nil {
		return nil, fmt.Errorf("registry: encode elements: %w", err)
	}

	rec := &store.MapRecord{
		ID:       r.newID(),
		Domain:   n.Domain,
		URL:      n.URL,
		PageType: m.PageType,
		Elements: string(elements),
	}
	id, created, err := r.store.InsertMapIfAbsent(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !created {
		return &SaveResult{Status: SaveExists, ID: id}, nil
	}

	if err := r.store.IncrementCounter(ctx, metricTotalMaps, 1); err != nil {
		r.logger.Warn("registry: total_maps counter update failed", "error", err)
	}
	r.logger.Info("registry: map created", "id", id, "domain", n.Domain, "url", n.URL,
		"elements", len(m.Elements))
	return &SaveResult{Status: SaveCreated, ID: id}, nil
}

// TrackView records a cache-hit read: bumps the map's usage_count and the
// global request counter. It runs detached so callers never block on
// analytics; failures are logged and dropped.
func (r *Registry) TrackView(urlPattern string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), trackViewTimeout)
		defer cancel()
		if err := r.trackView(ctx, urlPattern); err != nil {
			r.logger.Warn("registry: view tracking failed", "url", urlPattern, "error", err)
		}
	}()
}

func (r *Registry) trackView(ctx context.Context, urlPattern string) error {
	n, err := Normalize(urlPattern)
	if err != nil {
		return err
	}
	if err := r.store.IncrementUsage(ctx, n.URL); err != nil {
		return err
	}
	return r.store.IncrementCounter(ctx, metricTotalRequests, 1)
}

// GetStats returns registry-wide aggregates: map count, total requests,
// and the ten domains with the most maps.
func (r *Registry) GetStats(ctx context.Context) (*Stats, error) {
	maps, err := r.store.CountMaps(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := r.store.GetCounter(ctx, metricTotalRequests)
	if err != nil {
		return nil, err
	}
	top, err := r.store.TopDomains(ctx, topDomainsLimit)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalMaps: maps, TotalRequests: requests, TopDomains: []DomainCount{}}
	for _, d := range top {
		stats.TopDomains = append(stats.TopDomains, DomainCount{Domain: d.Domain, Maps: d.Maps})
	}
	return stats, nil
}

func decodeRecord(rec *store.MapRecord) (*PageStructure, error) {
	m := &PageStructure{
		ID:         rec.ID,
		Domain:     rec.Domain,
		URL:        rec.URL,
		PageType:   rec.PageType,
		UsageCount: rec.UsageCount,
		CreatedAt:  rec.CreatedAt,
	}
	if err := json.Unmarshal([]byte(rec.Elements), &m.Elements); err != nil {
		return nil, fmt.Errorf("registry: decode elements for %s: %w", rec.URL, err)
	}
	return m, nil
}
