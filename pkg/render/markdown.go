package render

import (
	"bytes"
	stdhtml "html"
	"io"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// chromaStyle is a light style; reports print on white.
const chromaStyle = "github"

// codeFormatter emits inline-styled fragments. The registered "html"
// formatter is standalone and class-based, which would plant a whole
// document plus stylesheet inside the report body.
var codeFormatter = chromahtml.New(chromahtml.WithClasses(false))

var (
	markdownOnce     sync.Once
	markdownInstance goldmark.Markdown
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.DefinitionList,
				extension.Typographer,
			),
			goldmark.WithRendererOptions(
				// Report bodies come from authenticated callers and may
				// embed raw HTML fragments.
				gmhtml.WithUnsafe(),
				renderer.WithNodeRenderers(
					util.Prioritized(&codeBlockRenderer{}, 100),
				),
			),
		)
	})
	return markdownInstance
}

// MarkdownToHTML converts report markdown to an HTML fragment.
func MarkdownToHTML(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := getMarkdown().Convert(source, &buf); err != nil {
		return nil, &RenderError{Stage: "markdown", Err: err}
	}
	return buf.Bytes(), nil
}

// codeBlockRenderer routes fenced code blocks through chroma so code
// samples arrive highlighted instead of as flat <pre> text. Styles are
// inlined, which is what the PDF engine needs.
type codeBlockRenderer struct{}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	language := string(n.Language(source))

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		code.Write(line.Value(source))
	}

	if err := highlightCode(w, code.String(), language); err != nil {
		// Unknown languages fall back to chroma's plaintext lexer, so
		// this only fires on writer failures. Keep the block readable.
		_, _ = w.WriteString("<pre><code>")
		_, _ = w.WriteString(stdhtml.EscapeString(code.String()))
		_, _ = w.WriteString("</code></pre>\n")
	}
	return ast.WalkContinue, nil
}

// highlightCode writes one code sample as an inline-styled <pre>
// fragment.
func highlightCode(w io.Writer, code, language string) error {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(chromaStyle)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return err
	}
	return codeFormatter.Format(w, style, iterator)
}
