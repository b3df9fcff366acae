package registry

// StrategyType identifies one way of relocating an element on a page.
type StrategyType string

const (
	StrategySelector StrategyType = "selector"
	StrategyXPath    StrategyType = "xpath"
	StrategyARIA     StrategyType = "aria"
	StrategyDataAttr StrategyType = "data_attr"
	StrategyText     StrategyType = "text_content"
)

// Strategy is one concrete locator for an element. Strategies are ordered
// by stability: CSS selectors and data attributes before text matching.
type Strategy struct {
	Type  StrategyType `json:"type"`
	Value string       `json:"value"`
}

// Element is a named, semantically-identified page element with at least
// two locator strategies so extraction survives minor page changes.
type Element struct {
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Strategies      []Strategy `json:"strategies"`
	ConfidenceScore float64    `json:"confidence_score"`
}

// PageStructure is the stored element map for one normalized URL.
// Identity is the normalized URL; at most one map exists per URL and maps
// are immutable once created.
type PageStructure struct {
	ID         string    `json:"id"`
	Domain     string    `json:"domain"`
	URL        string    `json:"url"`
	PageType   string    `json:"page_type"`
	Elements   []Element `json:"elements"`
	UsageCount int       `json:"usage_count"`
	CreatedAt  int64     `json:"created_at"`
}

// ManifestElement is the selector-free view of an element exposed by
// manifests. Manifests are a discovery index, not an extraction payload.
type ManifestElement struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ManifestEntry describes one mapped URL within a domain manifest.
type ManifestEntry struct {
	URL      string            `json:"url"`
	PageType string            `json:"page_type"`
	Elements []ManifestElement `json:"elements"`
}

// Manifest is the domain-scoped index of all known page maps.
type Manifest struct {
	Domain string          `json:"domain"`
	Pages  []ManifestEntry `json:"pages"`
}

// SaveStatus reports the outcome of a SaveMap call.
type SaveStatus string

const (
	// SaveCreated means this call inserted the map.
	SaveCreated SaveStatus = "created"
	// SaveExists means a map for the normalized URL already existed.
	// The existing map is untouched.
	SaveExists SaveStatus = "exists"
)

// SaveResult is returned by SaveMap. ID refers to the stored map, whether
// created by this call or by an earlier writer.
type SaveResult struct {
	Status SaveStatus `json:"status"`
	ID     string     `json:"id"`
}

// DomainCount pairs a domain with its number of stored maps.
type DomainCount struct {
	Domain string `json:"domain"`
	Maps   int    `json:"maps"`
}

// Stats aggregates registry-wide usage data.
type Stats struct {
	TotalMaps     int           `json:"total_maps"`
	TotalRequests int64         `json:"total_requests"`
	TopDomains    []DomainCount `json:"top_domains"`
}
