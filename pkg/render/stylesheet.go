package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/enstso/AuditGenReport/pkg/config"
)

// StylesheetFor builds the print stylesheet for a render profile. The
// profile drives page geometry and typography; the rest is the fixed
// report chrome.
func StylesheetFor(p *config.RenderProfile) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "@page { size: %s; margin: %s; }\n", p.PageSize, p.Margins)
	fmt.Fprintf(&b, "body { font-family: %s; font-size: %s; line-height: %.2f; color: %s; margin: 0; }\n",
		p.FontFamily, p.FontSize, p.LineHeight, p.TextColor)
	fmt.Fprintf(&b, "h1 { font-size: 20pt; margin: 0 0 6mm; color: %s; }\n", p.AccentColor)
	fmt.Fprintf(&b, "h2 { font-size: 14pt; margin: 8mm 0 3mm; color: %s; border-bottom: 0.5pt solid %s; padding-bottom: 1mm; }\n",
		p.AccentColor, p.AccentColor)
	b.WriteString("h3 { font-size: 12pt; margin: 6mm 0 2mm; }\n")
	b.WriteString("p { margin: 0 0 3mm; }\n")
	b.WriteString("img { max-width: 100%; }\n")
	b.WriteString("table { border-collapse: collapse; width: 100%; margin: 3mm 0; }\n")
	b.WriteString("th, td { border: 1px solid #999; padding: 4pt 6pt; text-align: left; vertical-align: top; }\n")
	b.WriteString("th { background: #f0f0f0; }\n")
	b.WriteString("code, pre { font-family: 'DejaVu Sans Mono', monospace; font-size: 9pt; }\n")
	b.WriteString("pre { background: #f7f7f7; padding: 3mm; overflow-wrap: break-word; white-space: pre-wrap; }\n")
	fmt.Fprintf(&b, "blockquote { margin: 3mm 0; padding: 1mm 4mm; border-left: 2pt solid %s; color: #444; }\n", p.AccentColor)
	b.WriteString(".report-header { margin-bottom: 8mm; }\n")
	b.WriteString(".report-header .subtitle { font-size: 12pt; color: #555; margin: 0 0 2mm; }\n")
	b.WriteString(".report-ident { font-size: 9.5pt; color: #555; }\n")
	b.WriteString(".report-ident span + span::before { content: \" \\2022  \"; color: #999; }\n")
	b.WriteString(".report-annex { margin-top: 10mm; page-break-inside: avoid; }\n")
	return []byte(b.String())
}

// LoadStylesheet reads an operator-supplied stylesheet that replaces
// the generated one entirely.
func LoadStylesheet(path string) ([]byte, error) {
	css, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read stylesheet: %w", err)
	}
	return css, nil
}
