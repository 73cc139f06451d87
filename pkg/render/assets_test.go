package render_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enstso/AuditGenReport/pkg/render"
)

func TestAssetPolicyRemoteDisabled(t *testing.T) {
	policy := render.AssetPolicy{AllowRemote: false}

	allowed := []string{
		`<p>plain text</p>`,
		`<img src="logo.png">`,
		`<img src="./assets/logo.png">`,
		`<img src="data:image/png;base64,iVBORw0KGgo=">`,
		`<a href="#section-2">sommaire</a>`,
		// Hyperlinks are not fetched at render time.
		`<a href="https://example.com/ref">source</a>`,
		`<style>body { background: url('bg.png'); }</style>`,
	}
	for _, doc := range allowed {
		assert.NoError(t, policy.Check([]byte(doc)), "doc: %s", doc)
	}

	blocked := []string{
		`<img src="https://cdn.example.com/logo.png">`,
		`<img src="http://cdn.example.com/logo.png">`,
		`<IMG SRC="HTTPS://CDN.EXAMPLE.COM/LOGO.PNG">`,
		`<link rel="stylesheet" href="https://cdn.example.com/print.css">`,
		`<style>h1 { background: url(https://cdn.example.com/bg.png); }</style>`,
	}
	for _, doc := range blocked {
		err := policy.Check([]byte(doc))
		require.Error(t, err, "doc: %s", doc)
		var ape *render.AssetPolicyError
		require.ErrorAs(t, err, &ape, "doc: %s", doc)
		assert.Equal(t, "remote assets are disabled", ape.Reason)
	}
}

func TestAssetPolicyAllowlist(t *testing.T) {
	policy := render.AssetPolicy{
		AllowRemote:  true,
		AllowedHosts: []string{"cdn.example.com", "*.static.net"},
	}

	assert.NoError(t, policy.Check([]byte(`<img src="https://cdn.example.com/logo.png">`)))
	assert.NoError(t, policy.Check([]byte(`<img src="https://eu.static.net/x.png">`)))
	assert.NoError(t, policy.Check([]byte(`<img src="https://a.b.static.net/x.png">`)))

	err := policy.Check([]byte(`<img src="https://evil.example.org/x.png">`))
	require.Error(t, err)
	var ape *render.AssetPolicyError
	require.ErrorAs(t, err, &ape)
	assert.Contains(t, ape.Reason, "not in allowlist")

	// Host matching is on the hostname, not the full URL.
	err = policy.Check([]byte(`<img src="https://cdn.example.com.evil.org/x.png">`))
	require.Error(t, err)
}

func TestAssetPolicyEmptyAllowlistMeansAnyHost(t *testing.T) {
	policy := render.AssetPolicy{AllowRemote: true}
	assert.NoError(t, policy.Check([]byte(`<img src="https://anywhere.example/x.png">`)))
}

func TestAssetPolicyUnsupportedScheme(t *testing.T) {
	policy := render.AssetPolicy{AllowRemote: true}
	err := policy.Check([]byte(`<img src="ftp://files.example.com/logo.png">`))
	require.Error(t, err)
	var ape *render.AssetPolicyError
	require.ErrorAs(t, err, &ape)
	assert.Equal(t, "unsupported scheme", ape.Reason)
}

func TestAssetPolicyErrorNamesURL(t *testing.T) {
	policy := render.AssetPolicy{}
	err := policy.Check([]byte(`<img src="https://cdn.example.com/logo.png">`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://cdn.example.com/logo.png")
}

func TestAssetPolicyScansLargeDocuments(t *testing.T) {
	policy := render.AssetPolicy{}
	doc := ""
	for i := 0; i < 500; i++ {
		doc += fmt.Sprintf("<p>section %d</p><img src=\"fig-%d.png\">", i, i)
	}
	doc += `<img src="https://cdn.example.com/last.png">`

	err := policy.Check([]byte(doc))
	require.Error(t, err)
	var ape *render.AssetPolicyError
	require.True(t, errors.As(err, &ape))
	assert.Equal(t, "https://cdn.example.com/last.png", ape.URL)
}
