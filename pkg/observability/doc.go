// Package observability provides OpenTelemetry tracing and metrics for
// the report service, plus an in-memory journal of render activity.
//
// # Provider
//
// Initialize once at startup:
//
//	obs, err := observability.New(ctx, &observability.Config{
//		ServiceName:  "auditgen-report",
//		OTLPEndpoint: "otel-collector:4317",
//		Enabled:      true,
//	})
//	defer obs.Shutdown(ctx)
//
// With Enabled false every Provider method is a cheap no-op, so callers
// never need to guard their instrumentation.
//
// Wrap units of work:
//
//	ctx, finish := obs.TrackOperation(ctx, "render",
//		observability.RenderOperation("markdown", "a4")...)
//	defer func() { finish(err) }()
//
// # Journal
//
// The journal records every render, download and reclaim with a content
// hash, queryable by digest, type and time range:
//
//	journal.Record(observability.JournalEntry{
//		EntryType: observability.EntryRender,
//		Digest:    res.Digest,
//		Summary:   "rendered " + res.Filename,
//	})
package observability
