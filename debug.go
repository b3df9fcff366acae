package marrow

import (
	"context"
	"time"

	"github.com/hazyhaar/marrow/registry"
)

// StageTimings reports per-stage wall-clock durations in milliseconds.
type StageTimings struct {
	SnapshotMS  int64 `json:"snapshotMs"`
	DiscoveryMS int64 `json:"discoveryMs"`
	SaveMS      int64 `json:"saveMs"`
	TotalMS     int64 `json:"totalMs"`
}

// MapDebug is the diagnostic payload attached to mapping responses when
// the caller asks for debug output.
type MapDebug struct {
	CacheHit     bool         `json:"cacheHit"`
	Timings      StageTimings `json:"timings"`
	HTMLLength   int          `json:"htmlLength,omitempty"`
	ElementCount int          `json:"elementCount"`
}

// SelectorDebug describes one selector's outcome during extraction.
type SelectorDebug struct {
	Found      bool `json:"found"`
	TextLength int  `json:"textLength"`
}

// ExtractDebug is the diagnostic payload for extraction responses.
type ExtractDebug struct {
	TotalMS   int64                    `json:"totalMs"`
	Requested int                      `json:"requested"`
	Found     int                      `json:"found"`
	Selectors map[string]SelectorDebug `json:"selectors"`
}

// GetMapDebug is GetMap with stage timing attached. The debug payload is
// for humans and tooling; nothing in it feeds back into the pipeline.
func (c *Client) GetMapDebug(ctx context.Context, urlPattern string) (*registry.PageStructure, *MapDebug, error) {
	start := time.Now()
	dbg := &MapDebug{}

	cached, err := c.store.GetMap(ctx, urlPattern)
	if err != nil {
		return nil, nil, err
	}
	if cached != nil {
		c.store.TrackView(urlPattern)
		dbg.CacheHit = true
		dbg.ElementCount = len(cached.Elements)
		dbg.Timings.TotalMS = time.Since(start).Milliseconds()
		return cached, dbg, nil
	}

	m, err := c.mapFresh(ctx, urlPattern, dbg)
	if err != nil {
		return nil, nil, err
	}
	dbg.ElementCount = len(m.Elements)
	dbg.Timings.TotalMS = time.Since(start).Milliseconds()
	return m, dbg, nil
}

// ExtractContentDebug is ExtractContent with per-selector outcomes.
func (c *Client) ExtractContentDebug(ctx context.Context, urlPattern string, selectors []string) (map[string]*string, *ExtractDebug, error) {
	start := time.Now()
	results, err := c.ExtractContent(ctx, urlPattern, selectors)
	if err != nil {
		return nil, nil, err
	}
	return results, buildExtractDebug(results, start), nil
}

// ExtractByNamesDebug is ExtractByNames with per-element outcomes.
func (c *Client) ExtractByNamesDebug(ctx context.Context, urlPattern string, names []string, maxAttempts int) (map[string]*string, *ExtractDebug, error) {
	start := time.Now()
	results, err := c.ExtractByNames(ctx, urlPattern, names, maxAttempts)
	if err != nil {
		return nil, nil, err
	}
	return results, buildExtractDebug(results, start), nil
}

func buildExtractDebug(results map[string]*string, start time.Time) *ExtractDebug {
	dbg := &ExtractDebug{
		TotalMS:   time.Since(start).Milliseconds(),
		Requested: len(results),
		Selectors: make(map[string]SelectorDebug, len(results)),
	}
	for key, text := range results {
		sd := SelectorDebug{}
		if text != nil {
			sd.Found = true
			sd.TextLength = len(*text)
			dbg.Found++
		}
		dbg.Selectors[key] = sd
	}
	return dbg
}
