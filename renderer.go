package clarbook

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// HooksFactory builds the hooks for one render. activeLink identifies the page
// being rendered.
type HooksFactory func(activeLink string) Hooks

// Renderer converts book markdown to HTML pages.
//
// A Renderer holds no per-page state, every render gets its own goldmark
// instance and hooks, so it is safe to render pages from several goroutines.
type Renderer struct {
	hooks HooksFactory
}

// NewRenderer returns a Renderer using [PageHooks] with highlighter.
func NewRenderer(highlighter *Highlighter) *Renderer {
	return &Renderer{
		hooks: func(activeLink string) Hooks {
			return NewPageHooks(activeLink, highlighter)
		},
	}
}

// NewRendererWithHooks returns a Renderer that delegates node rendering to
// the hooks built by factory.
func NewRendererWithHooks(factory HooksFactory) *Renderer {
	return &Renderer{hooks: factory}
}

// RenderPage renders source and opts.Summary and substitutes them into
// opts.Template as @body and @summary, along with @title.
func (r *Renderer) RenderPage(source []byte, opts RenderOptions) (string, error) {
	activeLink := NormalizeActiveLink(opts.ActiveLink)
	slog.Debug("rendering page", "title", opts.Title, "active_link", activeLink)

	body, err := r.Render(source, activeLink)
	if err != nil {
		return "", fmt.Errorf("rendering body: %w", err)
	}

	summary, err := r.Render([]byte(opts.Summary), activeLink)
	if err != nil {
		return "", fmt.Errorf("rendering summary: %w", err)
	}

	return SubstituteTemplate(opts.Template, map[string]string{
		"title":   opts.Title,
		"body":    body,
		"summary": summary,
	}), nil
}

// Render converts markdown to HTML. Links to activeLink are marked selected.
func (r *Renderer) Render(source []byte, activeLink string) (string, error) {
	nr := &hookRenderer{hooks: r.hooks(activeLink)}
	md := goldmark.New(
		goldmark.WithParser(newParser()),
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
			renderer.WithNodeRenderers(util.Prioritized(nr, 100)),
		),
	)
	nr.inner = md.Renderer()

	var buf bytes.Buffer
	if err := md.Convert(source, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// newParser is goldmark's default parser except that paragraphs opening with a
// footnote marker are never read as link reference definitions.
func newParser() parser.Parser {
	return parser.NewParser(
		parser.WithBlockParsers(parser.DefaultBlockParsers()...),
		parser.WithInlineParsers(parser.DefaultInlineParsers()...),
		parser.WithParagraphTransformers(
			util.Prioritized(footnoteAwareReferences{parser.LinkReferenceParagraphTransformer}, 100),
		),
	)
}

type footnoteAwareReferences struct {
	parser.ParagraphTransformer
}

func (t footnoteAwareReferences) Transform(node *ast.Paragraph, reader text.Reader, pc parser.Context) {
	lines := node.Lines()
	if lines.Len() > 0 {
		seg := lines.At(0)
		first := seg.Value(reader.Source())
		if bytes.HasPrefix(bytes.TrimLeft(first, " "), []byte("[^")) {
			return
		}
	}
	t.ParagraphTransformer.Transform(node, reader, pc)
}

// hookRenderer adapts [Hooks] to goldmark's node renderer registry.
type hookRenderer struct {
	hooks Hooks
	// renders paragraph children into a buffer
	inner renderer.Renderer
}

func (r *hookRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindParagraph, r.renderParagraph)
	reg.Register(ast.KindText, r.renderText)
}

func (r *hookRenderer) renderCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	var info string
	if n, ok := node.(*ast.FencedCodeBlock); ok && n.Info != nil {
		info = strings.TrimSpace(string(n.Info.Segment.Value(source)))
	}
	lang, opts := ParseCodeInfo(info)

	var code bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		code.Write(line.Value(source))
	}

	block := CodeBlock{
		Language: lang,
		Options:  opts,
		Code:     strings.TrimRight(code.String(), "\n") + "\n",
	}
	if err := r.hooks.CodeBlock(w, block); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkContinue, nil
}

func (r *hookRenderer) renderLink(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if err := r.hooks.Link(w, node.(*ast.Link), entering); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkContinue, nil
}

func (r *hookRenderer) renderParagraph(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	var inner bytes.Buffer
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		if err := r.inner.Render(&inner, source, c); err != nil {
			return ast.WalkStop, err
		}
	}

	if err := r.hooks.Paragraph(w, node.(*ast.Paragraph), inner.Bytes()); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}

func (r *hookRenderer) renderText(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	if err := r.hooks.Text(w, source, node.(*ast.Text)); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkContinue, nil
}
