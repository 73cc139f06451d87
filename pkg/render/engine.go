package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// minEngineVersion is the oldest supported weasyprint release. Earlier
// ones predate the pydyf PDF backend and differ in CLI flags.
const minEngineVersion = ">= 53.0"

// Engine converts a finished HTML document plus stylesheet into PDF
// bytes.
type Engine interface {
	Render(ctx context.Context, doc, css []byte) ([]byte, error)
}

// WeasyPrintConfig configures the external weasyprint process.
type WeasyPrintConfig struct {
	// Path is the binary to invoke. Defaults to "weasyprint".
	Path string
	// Timeout bounds a single render. Defaults to one minute.
	Timeout time.Duration
	// BaseDir, when set, resolves relative asset references in the
	// document. Typically the templates directory.
	BaseDir string
}

// WeasyPrint shells out to the weasyprint CLI, feeding the document on
// stdin and collecting the PDF on stdout.
type WeasyPrint struct {
	path    string
	timeout time.Duration
	baseDir string
	logger  *slog.Logger
}

func NewWeasyPrint(cfg WeasyPrintConfig, logger *slog.Logger) *WeasyPrint {
	if cfg.Path == "" {
		cfg.Path = "weasyprint"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WeasyPrint{
		path:    cfg.Path,
		timeout: cfg.Timeout,
		baseDir: cfg.BaseDir,
		logger:  logger,
	}
}

// Preflight runs the binary once and checks its version against
// minEngineVersion. It returns the raw version string for logging.
func (e *WeasyPrint) Preflight(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, e.path, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("weasyprint not runnable at %q: %w", e.path, err)
	}
	version := strings.TrimSpace(string(out))

	parsed, err := parseEngineVersion(version)
	if err != nil {
		return version, err
	}
	constraint, err := semver.NewConstraint(minEngineVersion)
	if err != nil {
		return version, fmt.Errorf("engine version constraint: %w", err)
	}
	if !constraint.Check(parsed) {
		return version, fmt.Errorf("weasyprint %s is older than supported (%s)", parsed, minEngineVersion)
	}
	return version, nil
}

// parseEngineVersion extracts the semantic version from CLI output like
// "WeasyPrint version 61.2".
func parseEngineVersion(s string) (*semver.Version, error) {
	fields := strings.Fields(s)
	for i := len(fields) - 1; i >= 0; i-- {
		if v, err := semver.NewVersion(fields[i]); err == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("no version number in %q", s)
}

// Render invokes weasyprint on the document. The stylesheet travels via
// a temp file because the CLI accepts only one stdin stream.
func (e *WeasyPrint) Render(ctx context.Context, doc, css []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var args []string
	if len(css) > 0 {
		cssFile, err := os.CreateTemp("", "auditgen-*.css")
		if err != nil {
			return nil, &RenderError{Stage: "engine", Err: fmt.Errorf("stage stylesheet: %w", err)}
		}
		defer os.Remove(cssFile.Name())
		if _, err := cssFile.Write(css); err != nil {
			cssFile.Close()
			return nil, &RenderError{Stage: "engine", Err: fmt.Errorf("stage stylesheet: %w", err)}
		}
		if err := cssFile.Close(); err != nil {
			return nil, &RenderError{Stage: "engine", Err: fmt.Errorf("stage stylesheet: %w", err)}
		}
		args = append(args, "--stylesheet", cssFile.Name())
	}
	if e.baseDir != "" {
		args = append(args, "--base-url", e.baseDir)
	}
	args = append(args, "-", "-")

	cmd := exec.CommandContext(ctx, e.path, args...)
	// Killing a wrapper script on deadline leaves any child it forked
	// holding the pipes; WaitDelay forces Run to return regardless.
	cmd.WaitDelay = 2 * time.Second
	cmd.Stdin = bytes.NewReader(doc)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &RenderError{Stage: "engine", Err: fmt.Errorf("timed out after %s", e.timeout)}
		}
		e.logger.Error("weasyprint failed",
			"error", err,
			"stderr", stderr.String(),
			"elapsed", elapsed,
		)
		return nil, &RenderError{Stage: "engine", Err: fmt.Errorf("%w: %s", err, firstLine(stderr.String()))}
	}

	pdf := stdout.Bytes()
	if len(pdf) == 0 {
		return nil, &RenderError{Stage: "engine", Err: errors.New("engine produced no output")}
	}
	e.logger.Debug("weasyprint finished",
		"bytes", len(pdf),
		"elapsed", elapsed,
	)
	return pdf, nil
}

// firstLine keeps error messages single-line; weasyprint stderr can be
// a full traceback.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		s = "no diagnostic output"
	}
	return s
}
