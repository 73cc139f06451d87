package render

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// AssetPolicy decides which external references a document may pull in
// at render time. The engine fetches whatever the HTML mentions, so the
// gate runs here, before the engine ever sees the document. Only
// references the engine actually fetches are checked: src attributes,
// stylesheet links and CSS url() values. Plain hyperlinks pass.
type AssetPolicy struct {
	// AllowRemote permits http(s) references at all.
	AllowRemote bool
	// AllowedHosts narrows remote references to these hosts when
	// non-empty. Entries are lowercase and may use "*." wildcards.
	AllowedHosts []string
}

var fetchedRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsrc\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)<link[^>]+href\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)url\(\s*['"]?([^'")]+)['"]?\s*\)`),
}

// Check scans the document and returns an AssetPolicyError for the
// first reference the policy rejects.
func (p AssetPolicy) Check(doc []byte) error {
	for _, pattern := range fetchedRefPatterns {
		for _, m := range pattern.FindAllSubmatch(doc, -1) {
			if err := p.checkRef(string(m[1])); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p AssetPolicy) checkRef(ref string) error {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	switch {
	case ref == "", strings.HasPrefix(lower, "#"):
		return nil
	case strings.HasPrefix(lower, "data:"), strings.HasPrefix(lower, "file:"):
		return nil
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		if !p.AllowRemote {
			return &AssetPolicyError{URL: ref, Reason: "remote assets are disabled"}
		}
		u, err := url.Parse(ref)
		if err != nil || u.Hostname() == "" {
			return &AssetPolicyError{URL: ref, Reason: "unparsable URL"}
		}
		if len(p.AllowedHosts) == 0 {
			return nil
		}
		host := strings.ToLower(u.Hostname())
		for _, pattern := range p.AllowedHosts {
			if matchHost(pattern, host) {
				return nil
			}
		}
		return &AssetPolicyError{URL: ref, Reason: fmt.Sprintf("host %q not in allowlist", host)}
	case strings.Contains(lower, "://"):
		return &AssetPolicyError{URL: ref, Reason: "unsupported scheme"}
	default:
		// Relative reference, resolved locally by the engine.
		return nil
	}
}

// matchHost supports exact hosts and "*.domain" wildcard patterns.
func matchHost(pattern, host string) bool {
	if pattern == host {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
	matched, err := regexp.MatchString(expr, host)
	return err == nil && matched
}
