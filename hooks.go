package clarbook

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Hooks overrides how the page renderer emits the node kinds it customises.
// Every other node is rendered by goldmark's default HTML renderer.
type Hooks interface {
	// CodeBlock writes a fenced or indented code block.
	CodeBlock(w util.BufWriter, block CodeBlock) error
	// Link is called when entering and again when leaving a link.
	Link(w util.BufWriter, link *ast.Link, entering bool) error
	// Paragraph receives the already rendered HTML of the paragraph's children.
	Paragraph(w util.BufWriter, paragraph *ast.Paragraph, inner []byte) error
	// Text writes a text node, including its trailing line break.
	Text(w util.BufWriter, source []byte, text *ast.Text) error
}

var (
	externalLinkRegex = regexp.MustCompile(`^https?://`)
	superscriptRegex  = regexp.MustCompile(`([0-9]+)\^([0-9]+)`)
	footnoteDefRegex  = regexp.MustCompile(`^\[\^([^\]]+)\]`)
	// Not followed by "(" so [^1](url) stays a link
	footnoteRefRegex = regexp2.MustCompile(`\[\^([^\]]+)\](?!\()`, regexp2.None)
)

// PageHooks is the default [Hooks] implementation for book pages.
type PageHooks struct {
	activeLink  string
	highlighter *Highlighter
}

// NewPageHooks returns hooks that mark links to activeLink as selected and
// highlight code with highlighter.
func NewPageHooks(activeLink string, highlighter *Highlighter) *PageHooks {
	return &PageHooks{
		activeLink:  NormalizeActiveLink(activeLink),
		highlighter: highlighter,
	}
}

const (
	copyButton  = `<button class="copy" title="Copy"></button>`
	playButton  = `<button class="play" title="Execute"></button>`
	resetButton = `<button class="reset" title="Reset"></button>`
	editable    = ` contenteditable autocorrect="off" autocapitalize="off" spellcheck="false"`
)

func (h *PageHooks) CodeBlock(w util.BufWriter, block CodeBlock) error {
	code := string(util.EscapeHTML([]byte(block.Code)))
	if h.highlighter != nil {
		highlighted, ok, err := h.highlighter.Highlight(block.Code, block.Language)
		if err != nil {
			return err
		}
		if ok {
			code = highlighted
		}
	}

	playable := strings.EqualFold(block.Language, "clarity") && !block.Options.NonPlayable()
	canEdit := playable && !block.Options.NonEditable()

	var buttons, attrs string
	buttons = copyButton
	if canEdit {
		buttons += resetButton
		attrs = editable
	}
	if playable {
		buttons += playButton
	}

	if block.Language == "" {
		fmt.Fprintf(w, `<div class="code"><div class="buttons">%s</div><pre><code%s>%s</code></pre></div>`+"\n",
			buttons, attrs, code)
		return nil
	}

	options, err := json.Marshal(block.Options)
	if err != nil {
		return fmt.Errorf("encoding code block options: %w", err)
	}

	lang := util.EscapeHTML([]byte(block.Language))
	className := "language-" + string(lang)
	fmt.Fprintf(w, `<div class="code" data-language="%s" data-options="%s"><div class="buttons">%s</div><pre class="%s"><code class="%s"%s>%s</code></pre></div>`+"\n",
		lang, util.EscapeHTML(options), buttons, className, className, attrs, code)
	return nil
}

func (h *PageHooks) Link(w util.BufWriter, link *ast.Link, entering bool) error {
	if !entering {
		_, _ = w.WriteString("</a>")
		return nil
	}

	href := RewriteLink(string(link.Destination))
	_, _ = w.WriteString("<a ")
	if href != "" && href == h.activeLink {
		_, _ = w.WriteString(`class="selected" `)
	}
	_, _ = w.WriteString(`href="`)
	if !html.IsDangerousURL([]byte(href)) {
		_, _ = w.Write(util.EscapeHTML(util.URLEscape([]byte(href), true)))
	}
	_ = w.WriteByte('"')
	if link.Title != nil {
		_, _ = w.WriteString(` title="`)
		html.DefaultWriter.Write(w, link.Title)
		_ = w.WriteByte('"')
	}
	_ = w.WriteByte('>')
	return nil
}

func (h *PageHooks) Paragraph(w util.BufWriter, _ *ast.Paragraph, inner []byte) error {
	text := string(inner)
	if def, ok := renderFootnoteDefinition(text); ok {
		_, _ = w.WriteString(renderSuperscript(def))
		_ = w.WriteByte('\n')
		return nil
	}

	text, err := renderFootnoteReferences(text)
	if err != nil {
		return err
	}
	_, _ = w.WriteString("<p>")
	_, _ = w.WriteString(renderSuperscript(text))
	_, _ = w.WriteString("</p>\n")
	return nil
}

func (h *PageHooks) Text(w util.BufWriter, source []byte, n *ast.Text) error {
	value := n.Segment.Value(source)
	if n.IsRaw() {
		html.DefaultWriter.RawWrite(w, value)
		return nil
	}

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	html.DefaultWriter.Write(bw, value)
	if err := bw.Flush(); err != nil {
		return err
	}
	_, _ = w.WriteString(renderSuperscript(buf.String()))

	if n.HardLineBreak() {
		_, _ = w.WriteString("<br>\n")
	} else if n.SoftLineBreak() {
		_ = w.WriteByte('\n')
	}
	return nil
}

// RewriteLink points relative links at markdown sources to the rendered page,
// keeping any fragment: "intro.md#setup" becomes "intro.html#setup".
func RewriteLink(href string) string {
	if externalLinkRegex.MatchString(href) {
		return href
	}

	path, fragment, hasFragment := strings.Cut(href, "#")
	if !strings.HasSuffix(path, ".md") {
		return href
	}

	out := strings.TrimSuffix(path, ".md") + ".html"
	if hasFragment {
		out += "#" + fragment
	}
	return out
}

// ParseCodeInfo splits a fence info string of the form language[,json].
// Options that are not valid JSON are dropped.
func ParseCodeInfo(info string) (string, CodeBlockOptions) {
	comma := strings.IndexByte(info, ',')
	if comma <= 0 {
		return info, CodeBlockOptions{}
	}

	lang, raw := info[:comma], info[comma+1:]
	opts, err := NewCodeBlockOptions([]byte(raw))
	if err != nil {
		slog.Debug("ignoring invalid code block options", "language", lang, "error", err)
		return lang, CodeBlockOptions{}
	}
	return lang, opts
}

func renderSuperscript(text string) string {
	loc := superscriptRegex.FindStringSubmatchIndex(text)
	if loc == nil {
		return text
	}
	return text[:loc[0]] + text[loc[2]:loc[3]] + "<sup>" + text[loc[4]:loc[5]] + "</sup>" + text[loc[1]:]
}

func renderFootnoteDefinition(text string) (string, bool) {
	m := footnoteDefRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	ref := m[1]
	return fmt.Sprintf(`<div class="footnote"><sup id="fn:%s">%s</sup>%s <a href="#fnref:%s">&#8629;</a></div>`,
		ref, ref, text[len(m[0]):], ref), true
}

func renderFootnoteReferences(text string) (string, error) {
	return footnoteRefRegex.ReplaceFunc(text, func(m regexp2.Match) string {
		ref := m.GroupByNumber(1).String()
		return fmt.Sprintf(`<sup id="fnref:%s"><a href="#fn:%s">%s</a></sup>`, ref, ref, ref)
	}, -1, -1)
}
