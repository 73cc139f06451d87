package render

import (
	"errors"
	"fmt"
)

// ErrNoContent is returned when a request carries neither content_html
// nor content_md.
var ErrNoContent = errors.New("no report content: provide content_html or content_md")

// ErrContentTooLarge is returned when the body HTML, after any markdown
// conversion, exceeds the configured bound.
var ErrContentTooLarge = errors.New("content too large")

// AssetPolicyError reports a document reference the asset policy
// rejected. It is a client error: the document asked for an egress the
// deployment forbids.
type AssetPolicyError struct {
	URL    string
	Reason string
}

func (e *AssetPolicyError) Error() string {
	return fmt.Sprintf("remote asset %q blocked: %s", e.URL, e.Reason)
}

// RenderError wraps a failure inside the rendering pipeline itself.
// Stage is "markdown", "template" or "engine".
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
