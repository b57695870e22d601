package clarbook

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Snippet is a fenced code block taken from a page, with its position.
type Snippet struct {
	CodeBlock
	// Page the snippet was taken from
	Source string
	// 1-based line numbers of the first and last line of code
	StartLine int
	EndLine   int
}

// Extractor pulls the code blocks of one language out of markdown pages.
type Extractor struct {
	gm       goldmark.Markdown
	language string
}

func NewExtractor(language string) *Extractor {
	return &Extractor{
		gm:       goldmark.New(goldmark.WithParser(newParser())),
		language: language,
	}
}

// Extract returns the fenced blocks in the extractor's language in document
// order. Empty blocks are skipped. It fails when the page has none.
func (e *Extractor) Extract(r io.Reader, md MetaData) ([]Snippet, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var snippets []Snippet
	doc := e.gm.Parser().Parse(text.NewReader(content))
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		block, ok := n.(*ast.FencedCodeBlock)
		if !ok || block.Info == nil {
			return ast.WalkContinue, nil
		}

		lang, opts := ParseCodeInfo(strings.TrimSpace(string(block.Info.Segment.Value(content))))
		if !strings.EqualFold(lang, e.language) || block.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}

		var buf bytes.Buffer
		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(content))
		}

		snippet := Snippet{
			CodeBlock: CodeBlock{
				Language: lang,
				Options:  opts,
				Code:     strings.TrimRight(buf.String(), "\n") + "\n",
			},
			Source:    md.AbsSource,
			StartLine: lineNumber(content, lines.At(0).Start),
			EndLine:   lineNumber(content, lines.At(lines.Len()-1).Start),
		}
		slog.Debug("extracted snippet", "source", md.AbsSource, "start", snippet.StartLine, "end", snippet.EndLine)
		snippets = append(snippets, snippet)
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	if len(snippets) == 0 {
		return nil, fmt.Errorf("no %s code blocks found in document", e.language)
	}
	return snippets, nil
}

func lineNumber(content []byte, offset int) int {
	return bytes.Count(content[:offset], []byte("\n")) + 1
}

// WriteShadow writes snippets from a single page as one source file in which
// every line of code keeps its line number from the page. Lines outside the
// snippets are left blank.
func WriteShadow(w io.Writer, snippets []Snippet) error {
	if len(snippets) == 0 {
		return nil
	}

	lines := make([]string, snippets[len(snippets)-1].EndLine)
	for _, s := range snippets {
		if s.Source != snippets[0].Source {
			return fmt.Errorf("snippets come from %s and %s", snippets[0].Source, s.Source)
		}

		for i, line := range strings.Split(strings.TrimSuffix(s.Code, "\n"), "\n") {
			index := s.StartLine + i - 1
			if index >= len(lines) {
				return fmt.Errorf("line %d is past the last snippet", index+1)
			}
			if lines[index] != "" {
				return fmt.Errorf("line %d already contains code", index+1)
			}
			lines[index] = line
		}
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
	}
	return nil
}
