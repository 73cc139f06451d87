package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RenderProfile describes the page geometry and typography a report is
// rendered with. Profiles ship as profile_<name>.yaml files so print
// layout can change per deployment without a rebuild.
type RenderProfile struct {
	Name        string  `yaml:"name" json:"name"`
	PageSize    string  `yaml:"page_size" json:"page_size"`
	Margins     string  `yaml:"margins" json:"margins"`
	FontFamily  string  `yaml:"font_family" json:"font_family"`
	FontSize    string  `yaml:"font_size" json:"font_size"`
	LineHeight  float64 `yaml:"line_height" json:"line_height"`
	TextColor   string  `yaml:"text_color" json:"text_color"`
	AccentColor string  `yaml:"accent_color" json:"accent_color"`
}

// DefaultRenderProfile is the built-in "a4" profile, matching the layout
// reports were historically produced with.
func DefaultRenderProfile() *RenderProfile {
	return &RenderProfile{
		Name:        "a4",
		PageSize:    "A4",
		Margins:     "18mm 16mm",
		FontFamily:  "DejaVu Sans, Arial, sans-serif",
		FontSize:    "10.5pt",
		LineHeight:  1.45,
		TextColor:   "#111",
		AccentColor: "#1a3c6e",
	}
}

// LoadRenderProfile loads a render profile by name. It searches the
// profiles directory for profile_<name>.yaml; the built-in "a4" profile
// is returned for an empty directory or the default name. Fields the
// file leaves empty fall back to the built-in values.
func LoadRenderProfile(profilesDir, name string) (*RenderProfile, error) {
	name = strings.ToLower(name)
	def := DefaultRenderProfile()
	if profilesDir == "" || name == "" || name == def.Name {
		return def, nil
	}

	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", name))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load render profile %q: %w", name, err)
	}

	var profile RenderProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse render profile %q: %w", name, err)
	}
	if profile.Name == "" {
		profile.Name = name
	}
	profile.fillDefaults(def)
	return &profile, nil
}

// LoadAllRenderProfiles loads every profile_*.yaml in the directory,
// keyed by profile name.
func LoadAllRenderProfiles(profilesDir string) (map[string]*RenderProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	def := DefaultRenderProfile()
	profiles := make(map[string]*RenderProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var profile RenderProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if profile.Name == "" {
			// Extract the name from the filename: profile_letter.yaml -> letter
			base := filepath.Base(path)
			profile.Name = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}
		profile.fillDefaults(def)
		profiles[profile.Name] = &profile
	}
	return profiles, nil
}

func (p *RenderProfile) fillDefaults(def *RenderProfile) {
	if p.PageSize == "" {
		p.PageSize = def.PageSize
	}
	if p.Margins == "" {
		p.Margins = def.Margins
	}
	if p.FontFamily == "" {
		p.FontFamily = def.FontFamily
	}
	if p.FontSize == "" {
		p.FontSize = def.FontSize
	}
	if p.LineHeight == 0 {
		p.LineHeight = def.LineHeight
	}
	if p.TextColor == "" {
		p.TextColor = def.TextColor
	}
	if p.AccentColor == "" {
		p.AccentColor = def.AccentColor
	}
}
