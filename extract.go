package marrow

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/marrow/registry"
)

// DefaultExtractAttempts bounds how many locator strategies are tried
// per element during name-based extraction.
const DefaultExtractAttempts = 3

// ExtractContent evaluates raw selectors against the live page. The
// result keys are the selectors themselves; a selector that matched
// nothing maps to nil.
func (c *Client) ExtractContent(ctx context.Context, urlPattern string, selectors []string) (map[string]*string, error) {
	if len(selectors) == 0 {
		return nil, ErrNoSelectors
	}
	return c.pages.Extract(ctx, CompleteURL(urlPattern), selectors)
}

// ExtractByNames resolves element names through the stored map and
// extracts their content. Each element's strategies are tried in stored
// order: the first locator runs in the initial pass, and elements that
// came back empty are retried with their next untried strategy, up to
// maxAttempts locators per element. The result is keyed by element
// name; nil means every attempted locator failed.
func (c *Client) ExtractByNames(ctx context.Context, urlPattern string, names []string, maxAttempts int) (map[string]*string, error) {
	if len(names) == 0 {
		return nil, ErrNoSelectors
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultExtractAttempts
	}

	m, err := c.store.GetMap(ctx, urlPattern)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, urlPattern)
	}

	elements, err := resolveElements(m, names)
	if err != nil {
		return nil, err
	}

	target := CompleteURL(urlPattern)
	results := make(map[string]*string, len(elements))
	// nextStrategy[name] is the index of the next untried locator.
	nextStrategy := make(map[string]int, len(elements))
	for name := range elements {
		results[name] = nil
		nextStrategy[name] = 0
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		// selector -> element names still waiting on it. Two elements can
		// share a locator; one page evaluation serves both.
		pending := make(map[string][]string)
		for name, el := range elements {
			if results[name] != nil {
				continue
			}
			idx := nextStrategy[name]
			if idx >= len(el.Strategies) {
				continue
			}
			sel, ok := strategyLocator(el.Strategies[idx])
			nextStrategy[name] = idx + 1
			if !ok {
				continue
			}
			pending[sel] = append(pending[sel], name)
		}
		if len(pending) == 0 {
			break
		}

		selectors := make([]string, 0, len(pending))
		for sel := range pending {
			selectors = append(selectors, sel)
		}
		extracted, err := c.pages.Extract(ctx, target, selectors)
		if err != nil {
			return nil, err
		}
		for sel, elementNames := range pending {
			if text := extracted[sel]; text != nil {
				for _, name := range elementNames {
					results[name] = text
				}
			}
		}
	}

	missed := 0
	for _, v := range results {
		if v == nil {
			missed++
		}
	}
	if missed > 0 {
		c.logger.Info("marrow: extraction incomplete",
			"url", urlPattern, "requested", len(elements), "missed", missed)
	}
	return results, nil
}

// resolveElements matches requested names against the map, deduplicating
// repeats. Every name must exist; a stale caller asking for a renamed
// element gets an error rather than a silent nil.
func resolveElements(m *registry.PageStructure, names []string) (map[string]*registry.Element, error) {
	byName := make(map[string]*registry.Element, len(m.Elements))
	for i := range m.Elements {
		byName[m.Elements[i].Name] = &m.Elements[i]
	}

	resolved := make(map[string]*registry.Element, len(names))
	for _, name := range names {
		if _, ok := resolved[name]; ok {
			continue
		}
		el, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q in map for %s", ErrElementNotFound, name, m.URL)
		}
		resolved[name] = el
	}
	return resolved, nil
}

// strategyLocator converts a stored strategy into a locator the page
// evaluator understands. CSS-shaped strategies pass through; text
// matching becomes an XPath contains() query.
func strategyLocator(st registry.Strategy) (string, bool) {
	value := strings.TrimSpace(st.Value)
	if value == "" {
		return "", false
	}
	switch st.Type {
	case registry.StrategySelector, registry.StrategyARIA, registry.StrategyDataAttr:
		return value, true
	case registry.StrategyXPath:
		if strings.HasPrefix(value, "xpath=") || strings.HasPrefix(value, "//") {
			return value, true
		}
		return "xpath=" + value, true
	case registry.StrategyText:
		// single quotes would terminate the XPath literal
		if strings.Contains(value, "'") {
			return "", false
		}
		return fmt.Sprintf("xpath=//*[contains(normalize-space(.), '%s')]", value), true
	default:
		return "", false
	}
}
