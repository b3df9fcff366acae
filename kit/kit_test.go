package kit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testImpl = &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}

func toolSession(t *testing.T, register func(*mcp.Server)) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testImpl, nil)
	register(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestRegisterMCPTool_RoundTrip(t *testing.T) {
	type echoReq struct {
		Text string `json:"text"`
	}

	session := toolSession(t, func(srv *mcp.Server) {
		tool := &mcp.Tool{
			Name:        "echo",
			Description: "Echo the input back",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"text": map[string]any{"type": "string"}},
			},
		}
		endpoint := func(_ context.Context, r any) (any, error) {
			return map[string]string{"echo": r.(*echoReq).Text}, nil
		}
		decode := func(req *mcp.CallToolRequest) (*MCPDecodeResult, error) {
			var r echoReq
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
			return &MCPDecodeResult{Request: &r}, nil
		}
		RegisterMCPTool(srv, tool, endpoint, decode)
	})

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"text": "hello"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	tc := result.Content[0].(*mcp.TextContent)
	var resp map[string]string
	if err := json.Unmarshal([]byte(tc.Text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["echo"] != "hello" {
		t.Errorf("echo = %q, want %q", resp["echo"], "hello")
	}
}

func TestRegisterMCPTool_EndpointError(t *testing.T) {
	// WHAT: endpoint errors surface as tool errors, not protocol errors.
	// WHY: the calling model should see the message and adjust its arguments.
	session := toolSession(t, func(srv *mcp.Server) {
		tool := &mcp.Tool{
			Name:        "fail",
			Description: "Always fails",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		}
		endpoint := func(_ context.Context, _ any) (any, error) {
			return nil, errors.New("boom")
		}
		decode := func(*mcp.CallToolRequest) (*MCPDecodeResult, error) {
			return &MCPDecodeResult{Request: struct{}{}}, nil
		}
		RegisterMCPTool(srv, tool, endpoint, decode)
	})

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "fail",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool returned protocol error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error")
	}
}

func TestSanitizeASCII(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"tab\tand\nnewline", "tabandnewline"},
		{"café ✓ done", "caf  done"},
		{`{"key":"value"}`, `{"key":"value"}`},
	}
	for _, tt := range tests {
		if got := SanitizeASCII(tt.in); got != tt.want {
			t.Errorf("SanitizeASCII(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
