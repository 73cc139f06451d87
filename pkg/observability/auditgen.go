package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Service-specific semantic convention attributes.
var (
	// HTTP attributes
	AttrRoute     = attribute.Key("auditgen.http.route")
	AttrRequestID = attribute.Key("auditgen.http.request_id")

	// Render attributes
	AttrRenderFormat  = attribute.Key("auditgen.render.format")
	AttrRenderProfile = attribute.Key("auditgen.render.profile")
	AttrRenderBytes   = attribute.Key("auditgen.render.bytes")
	AttrRenderDigest  = attribute.Key("auditgen.render.digest")

	// Artifact store attributes
	AttrArtifactOp    = attribute.Key("auditgen.artifact.op")
	AttrArtifactToken = attribute.Key("auditgen.artifact.token")

	// Reclaim attributes
	AttrReclaimScanned = attribute.Key("auditgen.reclaim.scanned")
	AttrReclaimRemoved = attribute.Key("auditgen.reclaim.removed")
)

// TokenPrefix returns the loggable prefix of an artifact token. The
// full token is a download capability and never goes to telemetry.
func TokenPrefix(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}

// RenderOperation creates attributes for one render.
func RenderOperation(format, profile string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRenderFormat.String(format),
		AttrRenderProfile.String(profile),
	}
}

// ArtifactOperation creates attributes for a store operation.
func ArtifactOperation(op, token string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrArtifactOp.String(op),
		AttrArtifactToken.String(TokenPrefix(token)),
	}
}

// ReclaimOperation creates attributes for a sweep of the store.
func ReclaimOperation(scanned, removed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrReclaimScanned.Int(scanned),
		AttrReclaimRemoved.Int(removed),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus records err on the current span when non-nil.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
	}
}
