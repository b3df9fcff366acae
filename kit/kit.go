// Package kit provides transport plumbing shared by marrow front-ends: the
// Endpoint abstraction and helpers to expose an Endpoint as an MCP tool.
package kit

import "context"

// Endpoint is a transport-agnostic request handler. Front-ends (HTTP, MCP)
// decode their wire format into a typed request, call the Endpoint, and encode
// the response back out.
type Endpoint func(ctx context.Context, request any) (any, error)

type contextKey string

const (
	// TransportKey records which front-end handled the request ("http", "mcp").
	TransportKey contextKey = "kit_transport"

	// TraceIDKey carries the per-request trace ID.
	TraceIDKey contextKey = "kit_trace_id"
)

// WithTransport tags the context with the handling transport.
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}

// GetTransport returns the handling transport, defaulting to "http".
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

// WithTraceID attaches a trace ID to the context.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// GetTraceID returns the trace ID, or "" if none was set.
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}
