package render

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxFilenameLen = 80

// SafeFilename derives a download filename from a report title.
// Diacritics are transliterated rather than dropped, everything outside
// a conservative ASCII set is removed, and spaces become underscores:
// "Rapport Sécurité 2025" becomes "Rapport_Securite_2025.pdf". An empty
// result falls back to "rapport.pdf".
func SafeFilename(title string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, title)
	if err != nil {
		normalized = title
	}

	var b strings.Builder
	for _, r := range normalized {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		}
	}

	name := strings.TrimSpace(b.String())
	name = strings.ReplaceAll(name, " ", "_")
	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen]
	}
	name = strings.Trim(name, "._")
	if name == "" {
		name = "rapport"
	}
	return name + ".pdf"
}
