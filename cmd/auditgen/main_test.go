package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunDispatchesServe(t *testing.T) {
	orig := startServer
	defer func() { startServer = orig }()

	var served int
	startServer = func() int {
		served++
		return 0
	}

	cases := [][]string{
		{"auditgen"},
		{"auditgen", "serve"},
		{"auditgen", "server"},
		{"auditgen", "--some-flag"},
	}
	for _, args := range cases {
		if code := Run(args, io.Discard, io.Discard); code != 0 {
			t.Errorf("Run(%v) = %d, want 0", args, code)
		}
	}
	if served != len(cases) {
		t.Errorf("expected %d server starts, got %d", len(cases), served)
	}
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	if code := Run([]string{"auditgen", "version"}, &out, io.Discard); code != 0 {
		t.Fatalf("version exited %d", code)
	}
	if !strings.Contains(out.String(), version) {
		t.Errorf("version output %q missing %q", out.String(), version)
	}
}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	if code := Run([]string{"auditgen", "help"}, &out, io.Discard); code != 0 {
		t.Fatalf("help exited %d", code)
	}
	for _, want := range []string{"USAGE", "serve", "sweep"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("usage output missing %q", want)
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var errOut bytes.Buffer
	if code := Run([]string{"auditgen", "bogus"}, io.Discard, &errOut); code != 2 {
		t.Fatalf("unknown command exited %d, want 2", code)
	}
	if !strings.Contains(errOut.String(), "bogus") {
		t.Errorf("stderr %q should name the unknown command", errOut.String())
	}
}

func TestSweepCmdEmptyStore(t *testing.T) {
	t.Setenv("PDF_STORE_DIR", t.TempDir())

	var out, errOut bytes.Buffer
	if code := runSweepCmd([]string{"--json"}, &out, &errOut); code != 0 {
		t.Fatalf("sweep exited %d: %s", code, errOut.String())
	}

	var res struct {
		Scanned  int `json:"scanned"`
		Removed  int `json:"removed"`
		Failures int `json:"failures"`
	}
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("sweep output not JSON: %v", err)
	}
	if res.Scanned != 0 || res.Removed != 0 || res.Failures != 0 {
		t.Errorf("unexpected sweep result on empty store: %+v", res)
	}
}

func TestSweepCmdRemovesExpired(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PDF_STORE_DIR", dir)
	t.Setenv("PDF_TTL_SECONDS", "3600")

	// Plant one artifact well past its TTL and one still fresh.
	writeArtifact(t, dir, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", time.Now().Add(-2*time.Hour))
	writeArtifact(t, dir, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", time.Now())

	var out, errOut bytes.Buffer
	if code := runSweepCmd(nil, &out, &errOut); code != 0 {
		t.Fatalf("sweep exited %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "removed 1") {
		t.Errorf("sweep output %q should report one removal", out.String())
	}

	if _, err := os.Stat(filepath.Join(dir, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.pdf")); !os.IsNotExist(err) {
		t.Error("expired artifact still present")
	}
	if _, err := os.Stat(filepath.Join(dir, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb.pdf")); err != nil {
		t.Errorf("fresh artifact should survive: %v", err)
	}
}

func writeArtifact(t *testing.T, dir, token string, createdAt time.Time) {
	t.Helper()
	pdf := []byte("%PDF-1.7 test")
	if err := os.WriteFile(filepath.Join(dir, token+".pdf"), pdf, 0o600); err != nil {
		t.Fatal(err)
	}
	sidecar, err := json.Marshal(map[string]any{
		"created_at": createdAt.Unix(),
		"filename":   "test.pdf",
		"size":       len(pdf),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, token+".json"), sidecar, 0o600); err != nil {
		t.Fatal(err)
	}
}
