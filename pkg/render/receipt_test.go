package render_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enstso/AuditGenReport/pkg/render"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestReceiptShape(t *testing.T) {
	digest, err := render.Receipt(&render.Request{Title: "Audit", ContentHTML: "<p>x</p>"})
	require.NoError(t, err)
	assert.Regexp(t, hexDigest, digest)
}

func TestReceiptIsStable(t *testing.T) {
	req := func() *render.Request {
		return &render.Request{
			Title:       "Audit",
			Client:      "ACME",
			ContentHTML: "<p>x</p>",
			Meta:        map[string]any{"b": "2", "a": "1", "c": "3"},
		}
	}

	first, err := render.Receipt(req())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := render.Receipt(req())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestReceiptReflectsContent(t *testing.T) {
	base := &render.Request{Title: "Audit", ContentHTML: "<p>x</p>"}
	baseDigest, err := render.Receipt(base)
	require.NoError(t, err)

	changed := &render.Request{Title: "Audit", ContentHTML: "<p>y</p>"}
	changedDigest, err := render.Receipt(changed)
	require.NoError(t, err)

	assert.NotEqual(t, baseDigest, changedDigest)
}
