package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/enstso/AuditGenReport/pkg/artifacts"
	"github.com/enstso/AuditGenReport/pkg/config"
	"github.com/enstso/AuditGenReport/pkg/observability"
	"github.com/enstso/AuditGenReport/pkg/render"
)

// downloadFallbackName serves when an artifact predates filename
// recording or the sidecar carried none.
const downloadFallbackName = "audit.pdf"

// Service wires the HTTP handlers to the renderer and the artifact
// store. One instance serves all requests.
type Service struct {
	cfg      *config.Config
	store    artifacts.Store
	renderer *render.Renderer
	obs      *observability.Provider
	journal  *observability.Journal
	slo      *observability.SLOTracker
	schema   *jsonschema.Schema
	logger   *slog.Logger
	version  string

	now func() time.Time
}

// NewService builds the service and compiles the request schema.
func NewService(cfg *config.Config, store artifacts.Store, renderer *render.Renderer, obs *observability.Provider, logger *slog.Logger, version string) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs, _ = observability.New(context.Background(), &observability.Config{Enabled: false})
	}
	schema, err := compileGenerateSchema()
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		renderer: renderer,
		obs:      obs,
		journal:  observability.NewJournal(),
		slo:      observability.NewSLOTracker(),
		schema:   schema,
		logger:   logger,
		version:  version,
		now:      time.Now,
	}, nil
}

// Journal exposes the render journal, mainly for the sweep command and
// tests.
func (s *Service) Journal() *observability.Journal { return s.journal }

// HandleHealth serves the liveness probe.
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

// HandleGeneratePDF renders a report and streams it back inline.
func (s *Service) HandleGeneratePDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	res, ok := s.renderRequest(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", res.Filename))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PDF)))
	_, _ = w.Write(res.PDF)
}

// HandleGeneratePDFJSON renders a report and returns it base64-encoded,
// for callers that cannot handle binary responses.
func (s *Service) HandleGeneratePDFJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	res, ok := s.renderRequest(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"filename":   res.Filename,
		"pdf_base64": base64.StdEncoding.EncodeToString(res.PDF),
	})
}

// HandleGeneratePDFURL renders a report, parks it in the artifact store
// and returns a time-limited download URL.
func (s *Service) HandleGeneratePDFURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}

	// Reclaim before writing so the directory never grows past one
	// sweep interval of garbage even if the background sweeper is off.
	s.reclaim(r.Context())

	res, ok := s.renderRequest(w, r)
	if !ok {
		return
	}

	ctx, finish := s.obs.TrackOperation(r.Context(), "store.write",
		observability.ArtifactOperation("write", "")...)
	token, err := s.store.Write(ctx, res.PDF, artifacts.Metadata{Filename: res.Filename})
	finish(err)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	expiresAt := s.now().Add(s.cfg.TTL).Unix()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"pdf_url":    s.cfg.PublicBaseURL + "/download/" + token,
		"expires_at": expiresAt,
	})

	// The response is on the wire; sweep again in the background so
	// this artifact's own expiry does not wait for the next caller.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.reclaim(ctx)
	}()
}

// HandleDownload serves a stored artifact by token.
func (s *Service) HandleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	token := strings.TrimPrefix(r.URL.Path, "/download/")

	start := time.Now()
	ctx, finish := s.obs.TrackOperation(r.Context(), "download",
		observability.ArtifactOperation("read", token)...)
	data, meta, err := s.store.Read(ctx, token)
	finish(err)
	s.slo.Record(observability.SLOObservation{
		Operation: observability.OpDownload,
		Latency:   time.Since(start),
		Success:   err == nil || clientFault(err),
	})

	switch {
	case errors.Is(err, artifacts.ErrInvalidToken):
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", "Malformed download token")
		return
	case errors.Is(err, artifacts.ErrNotFound):
		// Absent, expired and consumed are deliberately the same answer.
		WriteNotFound(w, r, "Unknown or expired download token")
		return
	case err != nil:
		WriteInternal(w, err)
		return
	}

	filename := meta.Filename
	if filename == "" {
		filename = downloadFallbackName
	}

	_ = s.journal.Record(observability.JournalEntry{
		EntryType: observability.EntryDownload,
		Token:     observability.TokenPrefix(token),
		RequestID: w.Header().Get(requestIDHeader),
		Summary:   "downloaded " + filename,
		Details:   map[string]any{"bytes": len(data)},
	})

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// HandleStatus reports service level compliance and journal depth.
func (s *Service) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"version":         s.version,
		"slos":            s.slo.Statuses(),
		"journal_entries": s.journal.Count(),
	})
}

// HandleJournal serves the render journal. Filters: digest, type, limit.
func (s *Service) HandleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}

	q := observability.JournalQuery{
		Digest: r.URL.Query().Get("digest"),
		Limit:  50,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		q.Limit = n
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		entryType := observability.JournalEntryType(strings.ToUpper(raw))
		switch entryType {
		case observability.EntryRender, observability.EntryDownload,
			observability.EntryReclaim, observability.EntryRejected:
			q.EntryType = &entryType
		default:
			WriteBadRequest(w, fmt.Sprintf("unknown journal entry type %q", raw))
			return
		}
	}

	entries := s.journal.Query(q)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// renderRequest decodes, validates and renders a generate request. On
// failure it has already written the error response.
func (s *Service) renderRequest(w http.ResponseWriter, r *http.Request) (*render.Result, bool) {
	req, ok := s.decodeGenerateRequest(w, r)
	if !ok {
		return nil, false
	}

	format := "html"
	if req.ContentHTML == "" && req.ContentMD != "" {
		format = "markdown"
	}

	start := time.Now()
	ctx, finish := s.obs.TrackOperation(r.Context(), "render",
		observability.RenderOperation(format, s.cfg.RenderProfile)...)
	res, err := s.renderer.Render(ctx, req)
	finish(err)
	s.slo.Record(observability.SLOObservation{
		Operation: observability.OpRender,
		Latency:   time.Since(start),
		Success:   err == nil || clientFault(err),
	})

	if err != nil {
		s.writeRenderError(w, r, err)
		return nil, false
	}

	w.Header().Set("X-Render-Digest", res.Digest)
	_ = s.journal.Record(observability.JournalEntry{
		EntryType: observability.EntryRender,
		Digest:    res.Digest,
		RequestID: w.Header().Get(requestIDHeader),
		Summary:   "rendered " + res.Filename,
		Details:   map[string]any{"bytes": len(res.PDF), "format": format},
	})
	s.logger.Info("report rendered",
		"digest", res.Digest,
		"filename", res.Filename,
		"format", format,
		"request_id", w.Header().Get(requestIDHeader),
	)
	return res, true
}

// decodeGenerateRequest reads, bounds and schema-validates the body.
func (s *Service) decodeGenerateRequest(w http.ResponseWriter, r *http.Request) (*render.Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.RequestMaxBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteContentTooLarge(w, fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit))
			return nil, false
		}
		WriteBadRequest(w, "Unreadable request body")
		return nil, false
	}

	// The schema inspects decoded JSON; binding happens after it passes.
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return nil, false
	}
	if err := s.schema.Validate(generic); err != nil {
		WriteBadRequest(w, schemaDetail(err))
		return nil, false
	}

	var req render.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return nil, false
	}
	return &req, true
}

// writeRenderError maps pipeline errors onto the HTTP surface.
func (s *Service) writeRenderError(w http.ResponseWriter, r *http.Request, err error) {
	var policyErr *render.AssetPolicyError
	switch {
	case errors.Is(err, render.ErrNoContent):
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", "Provide content_html or content_md")
	case errors.Is(err, render.ErrContentTooLarge):
		WriteContentTooLarge(w, fmt.Sprintf("Content too large (>%d chars)", s.cfg.MaxChars))
	case errors.As(err, &policyErr):
		_ = s.journal.Record(observability.JournalEntry{
			EntryType: observability.EntryRejected,
			RequestID: w.Header().Get(requestIDHeader),
			Summary:   "asset policy rejection",
			Details:   map[string]any{"url": policyErr.URL, "reason": policyErr.Reason},
		})
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", policyErr.Error())
	default:
		WriteInternal(w, err)
	}
}

// reclaim runs one sweep and journals it when it did anything.
func (s *Service) reclaim(ctx context.Context) {
	result, err := s.store.ReclaimExpired(ctx)
	if err != nil {
		s.logger.Warn("reclaim failed", "error", err)
		return
	}
	s.slo.Record(observability.SLOObservation{
		Operation: observability.OpReclaim,
		Success:   len(result.Failures) == 0,
	})
	if result.Removed > 0 || len(result.Failures) > 0 {
		_ = s.journal.Record(observability.JournalEntry{
			EntryType: observability.EntryReclaim,
			Summary:   fmt.Sprintf("reclaimed %d of %d artifacts", result.Removed, result.Scanned),
			Details: map[string]any{
				"scanned":  result.Scanned,
				"removed":  result.Removed,
				"failures": len(result.Failures),
			},
		})
	}
}

// clientFault reports whether err is the caller's doing. Those count as
// handled requests for SLO purposes, not service failures.
func clientFault(err error) bool {
	var policyErr *render.AssetPolicyError
	return errors.Is(err, render.ErrNoContent) ||
		errors.Is(err, render.ErrContentTooLarge) ||
		errors.Is(err, artifacts.ErrNotFound) ||
		errors.Is(err, artifacts.ErrInvalidToken) ||
		errors.As(err, &policyErr)
}

// schemaDetail condenses a jsonschema validation error into one line.
func schemaDetail(err error) string {
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		loc := leaf.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return fmt.Sprintf("Request validation failed at %s: %s", loc, leaf.Message)
	}
	return "Request validation failed"
}
