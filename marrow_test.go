package marrow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hazyhaar/marrow/auth"
	"github.com/hazyhaar/marrow/registry"
	"github.com/hazyhaar/marrow/snapshot"
)

// fakeStore is an in-memory MapStore tracking call counts.
type fakeStore struct {
	mu         sync.Mutex
	maps       map[string]*registry.PageStructure // keyed by normalized URL
	trackCalls []string
	saveCalls  int
	getErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{maps: make(map[string]*registry.PageStructure)}
}

func (f *fakeStore) GetMap(_ context.Context, urlPattern string) (*registry.PageStructure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	n, err := registry.Normalize(urlPattern)
	if err != nil {
		return nil, err
	}
	return f.maps[n.URL], nil
}

func (f *fakeStore) GetElement(_ context.Context, urlPattern, name string) (*registry.Element, error) {
	return nil, nil
}

func (f *fakeStore) GetManifest(_ context.Context, domain string) (*registry.Manifest, error) {
	return &registry.Manifest{Domain: domain}, nil
}

func (f *fakeStore) SaveMap(_ context.Context, m *registry.PageStructure) (*registry.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if existing, ok := f.maps[m.URL]; ok {
		return &registry.SaveResult{Status: registry.SaveExists, ID: existing.ID}, nil
	}
	stored := *m
	stored.ID = "map_test"
	f.maps[m.URL] = &stored
	return &registry.SaveResult{Status: registry.SaveCreated, ID: stored.ID}, nil
}

func (f *fakeStore) TrackView(urlPattern string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trackCalls = append(f.trackCalls, urlPattern)
}

func (f *fakeStore) GetStats(_ context.Context) (*registry.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &registry.Stats{TotalMaps: len(f.maps)}, nil
}

// fakeDiscoverer returns a canned map and counts invocations.
type fakeDiscoverer struct {
	mu     sync.Mutex
	calls  int
	result *registry.PageStructure
	err    error
}

func (f *fakeDiscoverer) Analyze(_ context.Context, rawURL string, _ *snapshot.PageSnapshot) (*registry.PageStructure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	n, _ := registry.Normalize(rawURL)
	return &registry.PageStructure{
		Domain:   n.Domain,
		URL:      n.URL,
		PageType: "test",
		Elements: []registry.Element{testElement("title", "#title", "//h1")},
	}, nil
}

func (f *fakeDiscoverer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakePages serves canned snapshots and per-selector content.
type fakePages struct {
	mu        sync.Mutex
	snap      *snapshot.PageSnapshot
	snapErr   error
	content   map[string]*string
	extracts  [][]string // selectors per Extract call
	detection *auth.Detection
}

func (f *fakePages) Snapshot(_ context.Context, _ string) (*snapshot.PageSnapshot, error) {
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	if f.snap != nil {
		return f.snap, nil
	}
	return &snapshot.PageSnapshot{HTML: "<html><body></body></html>"}, nil
}

func (f *fakePages) Extract(_ context.Context, _ string, selectors []string) (map[string]*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extracts = append(f.extracts, append([]string(nil), selectors...))
	out := make(map[string]*string, len(selectors))
	for _, sel := range selectors {
		out[sel] = f.content[sel]
	}
	return out, nil
}

func (f *fakePages) CheckAuth(_ context.Context, _ string) (*auth.Detection, error) {
	if f.detection != nil {
		return f.detection, nil
	}
	return &auth.Detection{}, nil
}

func testElement(name string, locators ...string) registry.Element {
	el := registry.Element{Name: name, Description: name, ConfidenceScore: 0.9}
	for i, loc := range locators {
		typ := registry.StrategySelector
		if i > 0 {
			typ = registry.StrategyXPath
		}
		el.Strategies = append(el.Strategies, registry.Strategy{Type: typ, Value: loc})
	}
	return el
}

func testClient(store MapStore, discover Discoverer, pages PageSource) *Client {
	return NewWithDeps(&Config{}, store, discover, pages, nil)
}

func str(s string) *string { return &s }

func TestGetMapCacheHit(t *testing.T) {
	store := newFakeStore()
	store.maps["example.com/docs"] = &registry.PageStructure{
		ID: "map_cached", Domain: "example.com", URL: "example.com/docs",
		Elements: []registry.Element{testElement("title", "#t", "//h1")},
	}
	discover := &fakeDiscoverer{}
	c := testClient(store, discover, &fakePages{})

	got, err := c.GetMap(context.Background(), "https://example.com/docs")
	if err != nil {
		t.Fatalf("GetMap: %v", err)
	}
	if got.ID != "map_cached" {
		t.Errorf("ID = %q, want cached map", got.ID)
	}
	// A hit must not pay for discovery and must record the view.
	if discover.callCount() != 0 {
		t.Errorf("discovery ran %d times on a cache hit", discover.callCount())
	}
	if len(store.trackCalls) != 1 {
		t.Errorf("track calls = %d, want 1", len(store.trackCalls))
	}
}

func TestGetMapCacheMiss(t *testing.T) {
	store := newFakeStore()
	discover := &fakeDiscoverer{}
	c := testClient(store, discover, &fakePages{})

	got, err := c.GetMap(context.Background(), "https://example.com/docs")
	if err != nil {
		t.Fatalf("GetMap: %v", err)
	}
	if discover.callCount() != 1 {
		t.Errorf("discovery calls = %d, want 1", discover.callCount())
	}
	if got.ID == "" {
		t.Error("fresh map has no ID from the save result")
	}
	if store.saveCalls != 1 {
		t.Errorf("save calls = %d, want 1", store.saveCalls)
	}
	// The miss itself is not a tracked view; usage starts at the insert.
	if len(store.trackCalls) != 0 {
		t.Errorf("track calls = %d, want 0", len(store.trackCalls))
	}
}

func TestMapPageFreshLosesRace(t *testing.T) {
	// Another writer committed between our discovery and save. The caller
	// must receive the committed winner, not the locally discovered map.
	store := newFakeStore()
	store.maps["example.com/docs"] = &registry.PageStructure{
		ID: "map_winner", Domain: "example.com", URL: "example.com/docs",
		Elements: []registry.Element{testElement("title", "#t", "//h1")},
	}
	discover := &fakeDiscoverer{result: &registry.PageStructure{
		Domain: "example.com", URL: "example.com/docs", PageType: "loser",
		Elements: []registry.Element{testElement("other", "#o", "//p")},
	}}
	c := testClient(store, discover, &fakePages{})

	got, err := c.MapPageFresh(context.Background(), "https://example.com/docs")
	if err != nil {
		t.Fatalf("MapPageFresh: %v", err)
	}
	if got.ID != "map_winner" || got.PageType == "loser" {
		t.Errorf("got %q/%q, want the committed winner", got.ID, got.PageType)
	}
}

func TestGetMapSnapshotFailure(t *testing.T) {
	store := newFakeStore()
	c := testClient(store, &fakeDiscoverer{}, &fakePages{snapErr: errors.New("net down")})

	if _, err := c.GetMap(context.Background(), "https://example.com"); err == nil {
		t.Fatal("expected snapshot error to surface")
	}
	if store.saveCalls != 0 {
		t.Errorf("save ran despite snapshot failure")
	}
}

func TestGetMapDebug(t *testing.T) {
	store := newFakeStore()
	c := testClient(store, &fakeDiscoverer{}, &fakePages{
		snap: &snapshot.PageSnapshot{HTML: "<html><body>hi</body></html>"},
	})

	_, dbg, err := c.GetMapDebug(context.Background(), "https://example.com/docs")
	if err != nil {
		t.Fatalf("GetMapDebug: %v", err)
	}
	if dbg.CacheHit {
		t.Error("miss reported as cache hit")
	}
	if dbg.HTMLLength == 0 || dbg.ElementCount == 0 {
		t.Errorf("debug payload incomplete: %+v", dbg)
	}

	// Second call hits the cache.
	_, dbg, err = c.GetMapDebug(context.Background(), "https://example.com/docs")
	if err != nil {
		t.Fatalf("GetMapDebug: %v", err)
	}
	if !dbg.CacheHit {
		t.Error("repeat request missed the cache")
	}
}

// plainPages implements only the base PageSource, no auth probing.
type plainPages struct{}

func (plainPages) Snapshot(context.Context, string) (*snapshot.PageSnapshot, error) {
	return &snapshot.PageSnapshot{}, nil
}

func (plainPages) Extract(context.Context, string, []string) (map[string]*string, error) {
	return map[string]*string{}, nil
}

func TestCheckAuth(t *testing.T) {
	det := &auth.Detection{Required: true, Confidence: 0.9, Signals: []string{"http_401"}}
	c := testClient(newFakeStore(), &fakeDiscoverer{}, &fakePages{detection: det})

	got, err := c.CheckAuth(context.Background(), "example.com/private")
	if err != nil {
		t.Fatalf("CheckAuth: %v", err)
	}
	if !got.Required || got.Confidence != 0.9 {
		t.Errorf("detection = %+v, want the probe result", got)
	}
}

func TestCheckAuthUnsupported(t *testing.T) {
	c := testClient(newFakeStore(), &fakeDiscoverer{}, plainPages{})

	_, err := c.CheckAuth(context.Background(), "example.com")
	if !errors.Is(err, ErrAuthCheckUnsupported) {
		t.Errorf("err = %v, want ErrAuthCheckUnsupported", err)
	}
}

func TestCompleteURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"example.com", "https://example.com"},
		{"example.com:8443/x", "https://example.com:8443/x"},
		{"http://example.com", "http://example.com"},
		{"https://example.com/docs", "https://example.com/docs"},
	}
	for _, tt := range tests {
		if got := CompleteURL(tt.in); got != tt.want {
			t.Errorf("CompleteURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://Example.com/docs", "example.com"},
		{"example.com:8443/x", "example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := hostOf(tt.in); got != tt.want {
			t.Errorf("hostOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
