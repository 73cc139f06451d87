// Package render turns structured report requests into finished PDF
// documents. The pipeline is: pick the body (HTML wins over markdown),
// convert markdown if needed, wrap the body in the report shell, check
// the asset policy, then hand the document to the PDF engine.
package render

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"
)

// DefaultTitle is used when a request does not name its report.
const DefaultTitle = "Rapport"

// Request carries the content of one report. Field limits are enforced
// by the API layer; the renderer takes the request as given.
type Request struct {
	Title       string         `json:"title,omitempty"`
	Subtitle    string         `json:"subtitle,omitempty"`
	Client      string         `json:"client,omitempty"`
	Date        string         `json:"date,omitempty"`
	ContentHTML string         `json:"content_html,omitempty"`
	ContentMD   string         `json:"content_md,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Result is one finished render.
type Result struct {
	PDF      []byte
	Filename string
	Digest   string
}

// RendererConfig bundles the policy knobs of the pipeline.
type RendererConfig struct {
	// MaxChars bounds the body HTML after markdown conversion. Zero
	// disables the check.
	MaxChars int
	// Policy gates external references in the finished document.
	Policy AssetPolicy
	// Stylesheet is attached to every render.
	Stylesheet []byte
}

// Renderer runs the report pipeline. It is safe for concurrent use.
type Renderer struct {
	shell  *Shell
	engine Engine
	cfg    RendererConfig
	logger *slog.Logger
}

func NewRenderer(shell *Shell, engine Engine, cfg RendererConfig, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		shell:  shell,
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}
}

// Render produces the PDF for a request.
func (r *Renderer) Render(ctx context.Context, req *Request) (*Result, error) {
	body, err := r.bodyHTML(req)
	if err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = DefaultTitle
	}

	doc, err := r.shell.Render(ShellData{
		Title:    title,
		Subtitle: req.Subtitle,
		Client:   req.Client,
		Date:     req.Date,
		Body:     template.HTML(body), //nolint:gosec // G203: body is the caller's document content
		Meta:     req.Meta,
	})
	if err != nil {
		return nil, err
	}

	if err := r.cfg.Policy.Check(doc); err != nil {
		return nil, err
	}

	digest, err := Receipt(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	pdf, err := r.engine.Render(ctx, doc, r.cfg.Stylesheet)
	if err != nil {
		return nil, err
	}
	r.logger.Info("report rendered",
		"digest", digest,
		"bytes", len(pdf),
		"elapsed", time.Since(start),
	)

	return &Result{
		PDF:      pdf,
		Filename: SafeFilename(title),
		Digest:   digest,
	}, nil
}

// bodyHTML picks the report body. HTML wins when both forms are
// supplied; markdown is converted; neither is an error.
func (r *Renderer) bodyHTML(req *Request) (string, error) {
	var body string
	switch {
	case req.ContentHTML != "":
		body = req.ContentHTML
	case req.ContentMD != "":
		converted, err := MarkdownToHTML([]byte(req.ContentMD))
		if err != nil {
			return "", err
		}
		body = string(converted)
	default:
		return "", ErrNoContent
	}
	if r.cfg.MaxChars > 0 && len(body) > r.cfg.MaxChars {
		return "", fmt.Errorf("%w: body is %d bytes, limit %d", ErrContentTooLarge, len(body), r.cfg.MaxChars)
	}
	return body, nil
}
