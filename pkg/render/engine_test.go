package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// stubEngineBinary drops an executable shell script standing in for the
// weasyprint CLI.
func stubEngineBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub engine scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "weasyprint")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil { //nolint:gosec // G306: test binary must be executable
		t.Fatal(err)
	}
	return path
}

func TestParseEngineVersion(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "WeasyPrint 61.2", want: "61.2.0"},
		{in: "WeasyPrint version 53.0", want: "53.0.0"},
		{in: "60.1", want: "60.1.0"},
		{in: "no digits here", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		v, err := parseEngineVersion(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseEngineVersion(%q): expected error, got %v", tc.in, v)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseEngineVersion(%q): %v", tc.in, err)
			continue
		}
		if v.String() != tc.want {
			t.Errorf("parseEngineVersion(%q) = %s, want %s", tc.in, v, tc.want)
		}
	}
}

func TestPreflight(t *testing.T) {
	bin := stubEngineBinary(t, `echo "WeasyPrint 61.2"`)
	engine := NewWeasyPrint(WeasyPrintConfig{Path: bin}, nil)

	version, err := engine.Preflight(context.Background())
	if err != nil {
		t.Fatalf("Preflight: %v", err)
	}
	if version != "WeasyPrint 61.2" {
		t.Errorf("version = %q", version)
	}
}

func TestPreflightRejectsOldEngine(t *testing.T) {
	bin := stubEngineBinary(t, `echo "WeasyPrint 52.5"`)
	engine := NewWeasyPrint(WeasyPrintConfig{Path: bin}, nil)

	if _, err := engine.Preflight(context.Background()); err == nil {
		t.Fatal("expected version rejection")
	}
}

func TestPreflightMissingBinary(t *testing.T) {
	engine := NewWeasyPrint(WeasyPrintConfig{Path: filepath.Join(t.TempDir(), "absent")}, nil)
	if _, err := engine.Preflight(context.Background()); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestEngineRender(t *testing.T) {
	// Swallow stdin, then emit a recognizable payload.
	bin := stubEngineBinary(t, "cat > /dev/null\nprintf '%%PDF-1.7 stub'")
	engine := NewWeasyPrint(WeasyPrintConfig{Path: bin}, nil)

	pdf, err := engine.Render(context.Background(), []byte("<html></html>"), []byte("body{}"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(string(pdf), "%PDF-1.7") {
		t.Errorf("unexpected output %q", pdf)
	}
}

func TestEngineRenderFailure(t *testing.T) {
	bin := stubEngineBinary(t, "cat > /dev/null\necho 'boom: fontconfig exploded' >&2\nexit 3")
	engine := NewWeasyPrint(WeasyPrintConfig{Path: bin}, nil)

	_, err := engine.Render(context.Background(), []byte("<html></html>"), nil)
	if err == nil {
		t.Fatal("expected engine failure")
	}
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected RenderError, got %T", err)
	}
	if re.Stage != "engine" {
		t.Errorf("stage = %q", re.Stage)
	}
	if !strings.Contains(err.Error(), "fontconfig exploded") {
		t.Errorf("stderr missing from error: %v", err)
	}
}

func TestEngineRenderTimeout(t *testing.T) {
	// The shell forks a child that survives the deadline kill and keeps
	// the pipes open; Run must still return promptly.
	bin := stubEngineBinary(t, "sleep 5 &\nwait")
	engine := NewWeasyPrint(WeasyPrintConfig{Path: bin, Timeout: 100 * time.Millisecond}, nil)

	start := time.Now()
	_, err := engine.Render(context.Background(), []byte("<html></html>"), nil)
	if err == nil {
		t.Fatal("expected timeout")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

func TestEngineRenderEmptyOutput(t *testing.T) {
	bin := stubEngineBinary(t, "cat > /dev/null")
	engine := NewWeasyPrint(WeasyPrintConfig{Path: bin}, nil)

	if _, err := engine.Render(context.Background(), []byte("<html></html>"), nil); err == nil {
		t.Fatal("expected error for empty engine output")
	}
}

func TestFirstLine(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"single", "single"},
		{"  trimmed \n", "trimmed"},
		{"first\nsecond\nthird", "first"},
		{"", "no diagnostic output"},
		{strings.Repeat("x", 300), strings.Repeat("x", 200) + "..."},
	}
	for _, tc := range cases {
		if got := firstLine(tc.in); got != tc.want {
			t.Errorf("firstLine(%.20q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
