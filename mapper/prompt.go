package mapper

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/marrow/snapshot"
)

// systemInstruction frames the model as a page cartographer producing
// durable, replayable element maps.
const systemInstruction = `You are Cartographer, an expert at mapping web pages into durable element maps.
You analyze rendered HTML and produce a structured inventory of the page's
meaningful interactive and content elements. Your maps are replayed by
automated extraction long after you produce them, so selector stability
matters more than completeness. Respond only with JSON matching the
requested schema.`

// discoveryHeuristics are the mapping rules embedded in every prompt.
const discoveryHeuristics = `Mapping rules:
1. Identify repeated-pattern containers (lists, card grids, result rows) before individual items. Map the container once, not each repetition.
2. Name every interactive element individually with a unique semantic snake_case name. Never use generic group names like "buttons" or "links".
3. Give each element at least 2 distinct locator strategies, ordered from most to least stable.
4. Prefer IDs and data attributes over CSS classes; prefer CSS classes over positional selectors; use text content only as a last resort.
5. Describe each element by its purpose on the page, not its markup.
6. Set confidence_score between 0 and 1 reflecting how likely the strategies are to still match after minor page changes.`

// buildPrompt assembles the discovery prompt from the target URL and the
// bounded snapshot.
func buildPrompt(url string, snap *snapshot.PageSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Map the page at %s.\n\n", url)
	b.WriteString(discoveryHeuristics)
	b.WriteString("\n\nPage structure summary:\n")
	b.WriteString(snap.StructureSummary)
	b.WriteString("\n\nRendered HTML (truncated):\n")
	b.WriteString(snap.HTML)
	return b.String()
}
