package mapper

import "google.golang.org/genai"

// pageStructureSchema constrains generation output to the page map shape.
// Only widely supported schema fields are used (type, description,
// properties, required, items, enum) so the schema survives backend
// version drift.
func pageStructureSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"page_type": {
				Type:        genai.TypeString,
				Description: "One short label for the page kind, e.g. documentation, listing, article, dashboard",
			},
			"elements": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name": {
							Type:        genai.TypeString,
							Description: "Unique semantic snake_case identifier, e.g. search_input, pricing_table",
						},
						"description": {
							Type:        genai.TypeString,
							Description: "What the element is and what it contains",
						},
						"strategies": {
							Type: genai.TypeArray,
							Items: &genai.Schema{
								Type: genai.TypeObject,
								Properties: map[string]*genai.Schema{
									"type": {
										Type: genai.TypeString,
										Enum: []string{"selector", "xpath", "aria", "data_attr", "text_content"},
									},
									"value": {
										Type: genai.TypeString,
									},
								},
								Required: []string{"type", "value"},
							},
							Description: "At least 2 distinct locator strategies ordered by stability",
						},
						"confidence_score": {
							Type:        genai.TypeNumber,
							Description: "Confidence the strategies relocate this element, 0 to 1",
						},
					},
					Required: []string{"name", "description", "strategies", "confidence_score"},
				},
			},
		},
		Required: []string{"page_type", "elements"},
	}
}
