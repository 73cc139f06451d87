package render_test

import (
	"strings"
	"testing"

	"github.com/enstso/AuditGenReport/pkg/render"
)

func TestSafeFilename(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Rapport Sécurité 2025", "Rapport_Securite_2025.pdf"},
		{"Audit Q3", "Audit_Q3.pdf"},
		{"audit report (v2)", "audit_report_v2.pdf"},
		{"Çà et là", "Ca_et_la.pdf"},
		{"résumé exécutif", "resume_executif.pdf"},
		{"pentest: ACME / interne", "pentest_ACME__interne.pdf"},
		{"审计报告", "rapport.pdf"},
		{"", "rapport.pdf"},
		{"///...///", "rapport.pdf"},
		{"v1.2-final", "v1.2-final.pdf"},
	}
	for _, tc := range cases {
		if got := render.SafeFilename(tc.title); got != tc.want {
			t.Errorf("SafeFilename(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestSafeFilenameTruncates(t *testing.T) {
	got := render.SafeFilename(strings.Repeat("a", 200))
	if got != strings.Repeat("a", 80)+".pdf" {
		t.Errorf("long title not truncated: %q (len %d)", got, len(got))
	}
}

func TestSafeFilenameNeverEscapesDirectory(t *testing.T) {
	for _, title := range []string{"../../etc/passwd", "..\\windows", "a/b/c"} {
		got := render.SafeFilename(title)
		if strings.ContainsAny(got, "/\\") {
			t.Errorf("SafeFilename(%q) = %q contains a path separator", title, got)
		}
		if strings.HasPrefix(got, ".") {
			t.Errorf("SafeFilename(%q) = %q starts with a dot", title, got)
		}
	}
}
