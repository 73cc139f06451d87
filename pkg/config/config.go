// Package config centralizes the environment-derived settings of the
// service. Values are read once at startup into an explicit Config that
// gets injected into constructors; core packages never consult the
// environment themselves.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full service configuration.
type Config struct {
	Port     string
	LogLevel string

	// APIKey guards the generate endpoints when non-empty. APIKeyHash is
	// the bcrypt alternative for deployments that refuse plaintext
	// secrets in the environment. At most one of the two may be set.
	APIKey     string
	APIKeyHash string

	// MaxChars bounds the rendered body HTML; RequestMaxBytes bounds the
	// raw request body on the wire.
	MaxChars        int
	RequestMaxBytes int64

	AllowRemoteAssets  bool
	AllowedRemoteHosts []string

	// PublicBaseURL is the externally reachable prefix used to build
	// download links. Stored without a trailing slash.
	PublicBaseURL string

	StoreDir                 string
	TTL                      time.Duration
	DeleteAfterFirstDownload bool
	// SweepInterval drives the periodic background reclaim; zero
	// disables it, leaving only the opportunistic request-path sweeps.
	SweepInterval time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	// TemplatesDir overrides the embedded report shell when set.
	TemplatesDir string
	// ProfilesDir holds profile_<name>.yaml render profiles; empty means
	// only the built-in profile is available.
	ProfilesDir   string
	RenderProfile string
	// StylesheetPath replaces the profile-generated CSS entirely.
	StylesheetPath string
	WeasyPrintPath string
	RenderTimeout  time.Duration

	OTELEnabled  bool
	OTLPEndpoint string
	OTELInsecure bool
	Environment  string
}

// Load reads configuration from environment variables, applying the
// documented defaults for anything unset or unparsable.
func Load() *Config {
	return &Config{
		Port:     envStr("PORT", "8080"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		APIKey:     os.Getenv("API_KEY"),
		APIKeyHash: os.Getenv("API_KEY_HASH"),

		MaxChars:        envInt("MAX_CHARS", 400000),
		RequestMaxBytes: envInt64("REQUEST_MAX_BYTES", 2<<20),

		AllowRemoteAssets:  envBool("ALLOW_REMOTE_ASSETS", false),
		AllowedRemoteHosts: envList("ALLOWED_REMOTE_HOSTS"),

		PublicBaseURL: strings.TrimRight(envStr("PUBLIC_BASE_URL", "https://auditreportgen.enstso.com"), "/"),

		StoreDir:                 envStr("PDF_STORE_DIR", "/data/pdfs"),
		TTL:                      envSeconds("PDF_TTL_SECONDS", 3600),
		DeleteAfterFirstDownload: envBool("DELETE_AFTER_FIRST_DOWNLOAD", false),
		SweepInterval:            envSeconds("SWEEP_INTERVAL_SECONDS", 300),

		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		TemplatesDir:   os.Getenv("TEMPLATES_DIR"),
		ProfilesDir:    os.Getenv("PROFILES_DIR"),
		RenderProfile:  envStr("RENDER_PROFILE", "a4"),
		StylesheetPath: os.Getenv("STYLESHEET_PATH"),
		WeasyPrintPath: envStr("WEASYPRINT_PATH", "weasyprint"),
		RenderTimeout:  envSeconds("RENDER_TIMEOUT_SECONDS", 60),

		OTELEnabled:  envBool("OTEL_ENABLED", false),
		OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		Environment:  envStr("ENVIRONMENT", "development"),
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("config: invalid port %q", c.Port)
	}
	if c.StoreDir == "" {
		return fmt.Errorf("config: PDF_STORE_DIR must not be empty")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("config: PDF_TTL_SECONDS must be positive, got %s", c.TTL)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("config: SWEEP_INTERVAL_SECONDS must not be negative")
	}
	if c.MaxChars <= 0 {
		return fmt.Errorf("config: MAX_CHARS must be positive, got %d", c.MaxChars)
	}
	if c.RequestMaxBytes <= 0 {
		return fmt.Errorf("config: REQUEST_MAX_BYTES must be positive, got %d", c.RequestMaxBytes)
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("config: RENDER_TIMEOUT_SECONDS must be positive, got %s", c.RenderTimeout)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("config: rate limit settings must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst == 0 {
		return fmt.Errorf("config: RATE_LIMIT_BURST must be positive when rate limiting is on")
	}
	if c.APIKey != "" && c.APIKeyHash != "" {
		return fmt.Errorf("config: set API_KEY or API_KEY_HASH, not both")
	}
	u, err := url.Parse(c.PublicBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: PUBLIC_BASE_URL %q is not an absolute URL", c.PublicBaseURL)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true")
}

func envSeconds(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Second
}

// envList parses a comma-separated value, trimming blanks and lowering
// case, matching how host allowlists are conventionally written.
func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
