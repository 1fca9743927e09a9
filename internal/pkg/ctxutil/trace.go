// Package ctxutil carries per-request correlation identifiers through the
// context so log lines from any layer can be tied back to one request.
package ctxutil

import "context"

type traceDataKey struct{}

// TraceData holds the correlation ids minted (or propagated) at the edge.
type TraceData struct {
	TraceID   string
	RequestID string
}

// WithTraceData attaches the ids to ctx.
func WithTraceData(ctx context.Context, td TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

// TraceDataFrom reports the ids attached to ctx, if any.
func TraceDataFrom(ctx context.Context) (TraceData, bool) {
	td, ok := ctx.Value(traceDataKey{}).(TraceData)
	return td, ok
}
