package marrow

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/marrow/guard"
	"github.com/hazyhaar/marrow/kit"
	"github.com/hazyhaar/marrow/registry"
)

// RegisterMCP registers marrow tools on an MCP server.
func (c *Client) RegisterMCP(srv *mcp.Server) {
	c.registerGetPageMapTool(srv)
	c.registerMapPageTool(srv)
	c.registerExtractContentTool(srv)
	c.registerCheckAuthTool(srv)
	c.registerGetManifestTool(srv)
	c.registerStatsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func validateToolURL(raw string) error {
	return guard.ValidateURL(CompleteURL(raw))
}

// --- get_page_map ---

type getPageMapRequest struct {
	URL   string `json:"url"`
	Debug bool   `json:"debug,omitempty"`
}

type mapResponse struct {
	Map   *registry.PageStructure `json:"map"`
	Debug *MapDebug               `json:"debug,omitempty"`
}

func (c *Client) registerGetPageMapTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "marrow_get_page_map",
		Description: "Get the element map for a URL. Returns the cached map if one exists, otherwise maps the page live with AI discovery and stores the result.",
		InputSchema: inputSchema(map[string]any{
			"url":   map[string]any{"type": "string", "description": "Page URL (scheme optional, https assumed)"},
			"debug": map[string]any{"type": "boolean", "description": "Include stage timings in the response"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*getPageMapRequest)
		if err := validateToolURL(rr.URL); err != nil {
			return nil, err
		}
		if rr.Debug {
			m, dbg, err := c.GetMapDebug(ctx, rr.URL)
			if err != nil {
				return nil, err
			}
			return &mapResponse{Map: m, Debug: dbg}, nil
		}
		m, err := c.GetMap(ctx, rr.URL)
		if err != nil {
			return nil, err
		}
		return &mapResponse{Map: m}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr getPageMapRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- map_page ---

type mapPageRequest struct {
	URL string `json:"url"`
}

func (c *Client) registerMapPageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "marrow_map_page",
		Description: "Map a page with AI discovery, bypassing the cache read. An existing stored map for the URL stays authoritative; the fresh result is only stored when none exists.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL to map"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*mapPageRequest)
		if err := validateToolURL(rr.URL); err != nil {
			return nil, err
		}
		m, err := c.MapPageFresh(ctx, rr.URL)
		if err != nil {
			return nil, err
		}
		return &mapResponse{Map: m}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr mapPageRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- extract_content ---

type extractContentRequest struct {
	URL          string   `json:"url"`
	Selectors    []string `json:"selectors,omitempty"`
	ElementNames []string `json:"element_names,omitempty"`
	MaxAttempts  int      `json:"max_attempts,omitempty"`
	Debug        bool     `json:"debug,omitempty"`
}

type extractResponse struct {
	Content map[string]*string `json:"content"`
	Debug   *ExtractDebug      `json:"debug,omitempty"`
}

func (c *Client) registerExtractContentTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "marrow_extract_content",
		Description: "Extract text from a live page. Pass raw CSS/XPath selectors, or element names resolved through the stored map with automatic fallback to alternate locators.",
		InputSchema: inputSchema(map[string]any{
			"url":           map[string]any{"type": "string", "description": "Page URL to extract from"},
			"selectors":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Raw selectors to evaluate"},
			"element_names": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Element names from the stored map (alternative to selectors)"},
			"max_attempts":  map[string]any{"type": "integer", "description": "Max locator strategies tried per element name (default 3)"},
			"debug":         map[string]any{"type": "boolean", "description": "Include per-selector outcomes and timings"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*extractContentRequest)
		if err := validateToolURL(rr.URL); err != nil {
			return nil, err
		}

		var (
			content map[string]*string
			dbg     *ExtractDebug
			err     error
		)
		switch {
		case len(rr.ElementNames) > 0:
			if rr.Debug {
				content, dbg, err = c.ExtractByNamesDebug(ctx, rr.URL, rr.ElementNames, rr.MaxAttempts)
			} else {
				content, err = c.ExtractByNames(ctx, rr.URL, rr.ElementNames, rr.MaxAttempts)
			}
		default:
			if rr.Debug {
				content, dbg, err = c.ExtractContentDebug(ctx, rr.URL, rr.Selectors)
			} else {
				content, err = c.ExtractContent(ctx, rr.URL, rr.Selectors)
			}
		}
		if err != nil {
			return nil, err
		}
		return &extractResponse{Content: content, Debug: dbg}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr extractContentRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- check_auth ---

type checkAuthRequest struct {
	URL string `json:"url"`
}

func (c *Client) registerCheckAuthTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "marrow_check_auth",
		Description: "Visit a URL and report whether it appears to require authentication, with a confidence score and the signals that fired.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL to check"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*checkAuthRequest)
		if err := validateToolURL(rr.URL); err != nil {
			return nil, err
		}
		return c.CheckAuth(ctx, rr.URL)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr checkAuthRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- get_manifest ---

type getManifestRequest struct {
	Domain string `json:"domain"`
}

func (c *Client) registerGetManifestTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "marrow_get_manifest",
		Description: "List all known page maps for a domain. Elements are reduced to name and description; use get_page_map for full locator detail.",
		InputSchema: inputSchema(map[string]any{
			"domain": map[string]any{"type": "string", "description": "Domain, e.g. example.com"},
		}, []string{"domain"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*getManifestRequest)
		return c.GetManifest(ctx, rr.Domain)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr getManifestRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- stats ---

func (c *Client) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "marrow_stats",
		Description: "Registry statistics: total maps, total requests, top domains by map count.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return c.GetStats(ctx)
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
