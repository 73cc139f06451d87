package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, dir, name, body string) {
	t.Helper()
	path := filepath.Join(dir, "profile_"+name+".yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadRenderProfile_BuiltIn(t *testing.T) {
	p, err := LoadRenderProfile("", "a4")
	if err != nil {
		t.Fatalf("LoadRenderProfile: %v", err)
	}
	if p.PageSize != "A4" {
		t.Errorf("expected page size A4, got %q", p.PageSize)
	}
	if p.Margins != "18mm 16mm" {
		t.Errorf("expected default margins, got %q", p.Margins)
	}
	if p.FontSize != "10.5pt" {
		t.Errorf("expected default font size, got %q", p.FontSize)
	}
}

func TestLoadRenderProfile_FromFile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "letter", "name: letter\npage_size: Letter\nmargins: 1in\n")

	p, err := LoadRenderProfile(dir, "letter")
	if err != nil {
		t.Fatalf("LoadRenderProfile(letter): %v", err)
	}
	if p.PageSize != "Letter" {
		t.Errorf("expected Letter, got %q", p.PageSize)
	}
	if p.Margins != "1in" {
		t.Errorf("expected 1in margins, got %q", p.Margins)
	}
	// Unset fields fall back to the built-in profile.
	if p.FontFamily != DefaultRenderProfile().FontFamily {
		t.Errorf("expected default font family, got %q", p.FontFamily)
	}
	if p.LineHeight != DefaultRenderProfile().LineHeight {
		t.Errorf("expected default line height, got %v", p.LineHeight)
	}
}

func TestLoadRenderProfile_Missing(t *testing.T) {
	if _, err := LoadRenderProfile(t.TempDir(), "nope"); err == nil {
		t.Fatal("expected error for missing profile file")
	}
}

func TestLoadRenderProfile_BadYAML(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "broken", "page_size: [unclosed\n")

	if _, err := LoadRenderProfile(dir, "broken"); err == nil {
		t.Fatal("expected error for unparsable profile")
	}
}

func TestLoadAllRenderProfiles(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "letter", "name: letter\npage_size: Letter\n")
	writeProfile(t, dir, "compact", "page_size: A5\nmargins: 10mm\n")

	profiles, err := LoadAllRenderProfiles(dir)
	if err != nil {
		t.Fatalf("LoadAllRenderProfiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles["letter"].PageSize != "Letter" {
		t.Errorf("letter profile wrong: %+v", profiles["letter"])
	}
	// Name derived from the filename when the file omits it.
	compact, ok := profiles["compact"]
	if !ok {
		t.Fatal("expected profile keyed by filename-derived name")
	}
	if compact.PageSize != "A5" {
		t.Errorf("compact profile wrong: %+v", compact)
	}
}
