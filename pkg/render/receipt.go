package render

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Receipt computes the canonical digest of a render request. The JSON
// is canonicalized per RFC 8785 first, so two requests that differ only
// in key order or whitespace produce the same digest. The digest is
// logged and echoed to callers as an audit anchor.
func Receipt(req *Request) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("receipt: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("receipt: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
