package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/enstso/AuditGenReport/pkg/api"
	"github.com/enstso/AuditGenReport/pkg/artifacts"
	"github.com/enstso/AuditGenReport/pkg/config"
	"github.com/enstso/AuditGenReport/pkg/observability"
	"github.com/enstso/AuditGenReport/pkg/render"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "1.0.0"

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startServer is a variable to allow mocking in tests
var startServer = runServe

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		// Default to server
		return startServer()
	}

	switch args[1] {
	case "serve", "server":
		return startServer()
	case "sweep":
		return runSweepCmd(args[2:], stdout, stderr)
	case "health", "healthcheck":
		return runHealthCmd(stdout, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "auditgen %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if args[1][0] == '-' {
			return startServer()
		}
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorGreen = "\033[32m"
	ColorBlue  = "\033[34m"
	ColorCyan  = "\033[36m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sAuditGen Report %s%s\n", ColorBold+ColorBlue, version, ColorReset)
	fmt.Fprintf(w, "%sAudit reports in, finished PDFs out.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  auditgen <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "SERVICE")
	printCommand(w, "serve", "Run the report service (default)")
	printCommand(w, "health", "Check a running server over HTTP")

	printSection(w, "MAINTENANCE")
	printCommand(w, "sweep", "Reclaim expired artifacts once and exit (--json)")

	printSection(w, "UTILITIES")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-12s%s %s\n", ColorGreen, name, ColorReset, desc)
}

//nolint:gocognit
func runServe() int {
	// A .env file is a convenience for local runs; absence is normal.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 2
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	fmt.Fprintf(os.Stdout, "%sAuditGen Report %s starting...%s\n", ColorBold+ColorBlue, version, ColorReset)
	ctx := context.Background()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "auditgen-report",
		ServiceVersion: version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        cfg.OTELEnabled,
		Insecure:       cfg.OTELInsecure,
	})
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	store, err := artifacts.NewFileStore(artifacts.StoreConfig{
		Dir:       cfg.StoreDir,
		TTL:       cfg.TTL,
		SingleUse: cfg.DeleteAfterFirstDownload,
	}, logger)
	if err != nil {
		logger.Error("artifact store init failed", "error", err)
		return 1
	}
	log.Println("[auditgen] artifact store: ready")

	sweeper, err := artifacts.NewSweeper(store, cfg.SweepInterval, logger)
	if err != nil {
		logger.Error("sweeper init failed", "error", err)
		return 1
	}
	sweeper.Start()
	defer sweeper.Stop()

	engine := render.NewWeasyPrint(render.WeasyPrintConfig{
		Path:    cfg.WeasyPrintPath,
		Timeout: cfg.RenderTimeout,
		BaseDir: cfg.TemplatesDir,
	}, logger)

	preflightCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	engineVersion, err := engine.Preflight(preflightCtx)
	cancel()
	if err != nil {
		logger.Error("render engine preflight failed", "error", err)
		return 1
	}
	log.Printf("[auditgen] weasyprint %s: ready", engineVersion)

	profile, err := config.LoadRenderProfile(cfg.ProfilesDir, cfg.RenderProfile)
	if err != nil {
		logger.Error("render profile load failed", "error", err)
		return 1
	}

	var css []byte
	if cfg.StylesheetPath != "" {
		css, err = render.LoadStylesheet(cfg.StylesheetPath)
		if err != nil {
			logger.Error("stylesheet load failed", "error", err)
			return 1
		}
	} else {
		css = render.StylesheetFor(profile)
	}

	shell, err := render.NewShell(cfg.TemplatesDir, logger)
	if err != nil {
		logger.Error("report shell load failed", "error", err)
		return 1
	}
	defer func() { _ = shell.Close() }()
	if cfg.TemplatesDir != "" {
		if err := shell.Watch(); err != nil {
			logger.Warn("template hot reload unavailable", "error", err)
		}
	}
	log.Printf("[auditgen] render profile %q: ready", profile.Name)

	renderer := render.NewRenderer(shell, engine, render.RendererConfig{
		MaxChars: cfg.MaxChars,
		Policy: render.AssetPolicy{
			AllowRemote:  cfg.AllowRemoteAssets,
			AllowedHosts: cfg.AllowedRemoteHosts,
		},
		Stylesheet: css,
	}, logger)

	svc, err := api.NewService(cfg, store, renderer, obs, logger, version)
	if err != nil {
		logger.Error("service init failed", "error", err)
		return 1
	}
	srv := api.NewServer(svc, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Println("[auditgen] shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[auditgen] ready: http://localhost:%s", cfg.Port)
	log.Println("[auditgen] press ctrl+c to stop")

	if err := srv.Start(); err != nil {
		logger.Error("server failed", "error", err)
		return 1
	}
	return 0
}

// runSweepCmd reclaims expired artifacts once, for cron jobs and
// operators who keep the periodic sweeper disabled.
func runSweepCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("sweep", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	jsonOutput := cmd.Bool("json", false, "Output result as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store, err := artifacts.NewFileStore(artifacts.StoreConfig{
		Dir:       cfg.StoreDir,
		TTL:       cfg.TTL,
		SingleUse: cfg.DeleteAfterFirstDownload,
	}, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	res, err := store.ReclaimExpired(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Sweep failed: %v\n", err)
		return 1
	}

	if *jsonOutput {
		out := map[string]any{
			"scanned":  res.Scanned,
			"removed":  res.Removed,
			"failures": len(res.Failures),
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(stdout, string(data))
	} else {
		fmt.Fprintf(stdout, "Swept %s: scanned %d, removed %d, failures %d\n",
			cfg.StoreDir, res.Scanned, res.Removed, len(res.Failures))
	}

	if len(res.Failures) > 0 {
		return 1
	}
	return 0
}

func runHealthCmd(out, errOut io.Writer) int {
	_ = godotenv.Load()
	cfg := config.Load()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://127.0.0.1:" + cfg.Port + "/health")
	if err != nil {
		fmt.Fprintf(errOut, "Health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(errOut, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}

	fmt.Fprintln(out, "OK")
	return 0
}
