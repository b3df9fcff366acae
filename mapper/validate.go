package mapper

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hazyhaar/marrow/registry"
)

// minStrategies is the floor for locator redundancy. A map with a single
// strategy per element breaks on the first page change, which defeats the
// point of caching it.
const minStrategies = 2

var snakeCaseName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// InvalidResponseError reports a model response that failed parsing or
// schema validation. Raw carries the model output for diagnostics; it is
// never silently coerced into a usable map.
type InvalidResponseError struct {
	Reason string
	Raw    string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("mapper: invalid model response: %s", e.Reason)
}

// modelOutput is the wire shape produced by generation: the identity
// fields (domain, url) are filled in by the mapper, not the model.
type modelOutput struct {
	PageType string             `json:"page_type"`
	Elements []registry.Element `json:"elements"`
}

// parseAndValidate decodes raw model output and enforces the structure
// contract: at least one element, unique snake_case names, >=2 strategies
// per element, confidence clamped to [0,1].
func parseAndValidate(raw string) (*modelOutput, error) {
	trimmed := stripFences(raw)

	var out modelOutput
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, &InvalidResponseError{Reason: fmt.Sprintf("json parse: %v", err), Raw: raw}
	}

	if len(out.Elements) == 0 {
		return nil, &InvalidResponseError{Reason: "no elements", Raw: raw}
	}

	seen := make(map[string]bool, len(out.Elements))
	for i := range out.Elements {
		el := &out.Elements[i]

		if !snakeCaseName.MatchString(el.Name) {
			return nil, &InvalidResponseError{
				Reason: fmt.Sprintf("element %d: name %q is not snake_case", i, el.Name), Raw: raw}
		}
		if seen[el.Name] {
			return nil, &InvalidResponseError{
				Reason: fmt.Sprintf("duplicate element name %q", el.Name), Raw: raw}
		}
		seen[el.Name] = true

		if len(el.Strategies) < minStrategies {
			return nil, &InvalidResponseError{
				Reason: fmt.Sprintf("element %q has %d strategies, need at least %d",
					el.Name, len(el.Strategies), minStrategies), Raw: raw}
		}
		for _, s := range el.Strategies {
			if !validStrategyType(s.Type) {
				return nil, &InvalidResponseError{
					Reason: fmt.Sprintf("element %q has unknown strategy type %q", el.Name, s.Type), Raw: raw}
			}
			if strings.TrimSpace(s.Value) == "" {
				return nil, &InvalidResponseError{
					Reason: fmt.Sprintf("element %q has an empty strategy value", el.Name), Raw: raw}
			}
		}

		if el.ConfidenceScore < 0 {
			el.ConfidenceScore = 0
		}
		if el.ConfidenceScore > 1 {
			el.ConfidenceScore = 1
		}
	}

	return &out, nil
}

func validStrategyType(t registry.StrategyType) bool {
	switch t {
	case registry.StrategySelector, registry.StrategyXPath, registry.StrategyARIA,
		registry.StrategyDataAttr, registry.StrategyText:
		return true
	}
	return false
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite the mime-type constraint.
func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
