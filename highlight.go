package clarbook

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultHighlightStyle is the chroma style used when none is configured.
const DefaultHighlightStyle = "github"

// Highlighter turns code into class annotated HTML spans. The spans are
// written without a surrounding <pre> since the page renderer supplies its own.
type Highlighter struct {
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

// NewHighlighter returns a Highlighter using the named chroma style for its
// stylesheet. Unknown styles fall back to chroma's default.
func NewHighlighter(style string) *Highlighter {
	if style == "" {
		style = DefaultHighlightStyle
	}
	return &Highlighter{
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.PreventSurroundingPre(true),
		),
		style: styles.Get(style),
	}
}

// Highlight returns the highlighted HTML for code. ok is false when no lexer
// is known for lang, in which case the caller is expected to escape the code
// itself.
func (h *Highlighter) Highlight(code, lang string) (out string, ok bool, err error) {
	lexer := lookupLexer(lang)
	if lexer == nil {
		return "", false, nil
	}

	it, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return "", false, fmt.Errorf("tokenising %s: %w", lang, err)
	}

	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, it); err != nil {
		return "", false, fmt.Errorf("formatting %s: %w", lang, err)
	}
	return buf.String(), true, nil
}

// WriteCSS writes the stylesheet for the highlighter's classes.
func (h *Highlighter) WriteCSS(w io.Writer) error {
	return h.formatter.WriteCSS(w, h.style)
}

func lookupLexer(lang string) chroma.Lexer {
	if lang == "" {
		return nil
	}
	if strings.EqualFold(lang, "clarity") {
		return ClarityLexer
	}
	return lexers.Get(strings.ToLower(lang))
}
