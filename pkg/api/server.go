package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// publicPaths lists endpoints that bypass API key auth. Download links
// are handed to report recipients who hold no key; the token in the URL
// is the credential.
var publicPaths = map[string]bool{
	"/health": true,
}

// Server assembles the route table and middleware chain around a
// Service and runs the HTTP listener.
type Server struct {
	svc    *Service
	logger *slog.Logger

	httpServer *http.Server
}

// NewServer wires the service into a ready-to-start HTTP server.
func NewServer(svc *Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, logger: logger}
	s.httpServer = &http.Server{
		Addr:        ":" + svc.cfg.Port,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// Rendering may legitimately run up to RenderTimeout; the write
		// timeout has to sit above it or slow renders die mid-response.
		WriteTimeout: svc.cfg.RenderTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler builds the full handler chain. Exposed so tests can drive the
// server through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	cfg := s.svc.cfg
	mux := http.NewServeMux()

	// Probes and artifact retrieval.
	mux.HandleFunc("/health", s.svc.HandleHealth)
	mux.HandleFunc("/download/", s.svc.HandleDownload)

	// Report generation.
	mux.HandleFunc("/generate-pdf", s.svc.HandleGeneratePDF)
	mux.HandleFunc("/generate-pdf-json", s.svc.HandleGeneratePDFJSON)
	idem := IdempotencyMiddleware(NewIdempotencyStore(cfg.TTL))
	mux.Handle("/generate-pdf-url", idem(http.HandlerFunc(s.svc.HandleGeneratePDFURL)))

	// Operator endpoints.
	mux.HandleFunc("/status", s.svc.HandleStatus)
	mux.HandleFunc("/journal", s.svc.HandleJournal)

	var handler http.Handler = s.withAuth(mux)
	if cfg.RateLimitRPS > 0 {
		limiter := NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		handler = limiter.Middleware(handler)
	}
	handler = LoggingMiddleware(s.logger)(handler)
	return RequestIDMiddleware(handler)
}

// withAuth guards every route except the public paths with the API key.
// When no key is configured the service runs open.
func (s *Server) withAuth(next http.Handler) http.Handler {
	auth := NewAPIKeyAuth(s.svc.cfg.APIKey, s.svc.cfg.APIKeyHash)
	if !auth.Enabled() {
		return next
	}
	protected := auth.Middleware(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] || strings.HasPrefix(r.URL.Path, "/download/") {
			next.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	})
}

// Start blocks serving HTTP until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
