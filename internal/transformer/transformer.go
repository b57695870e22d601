package transformer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jwtly10/clarbook"
)

type TransformOptions struct {
	// Page template with @title, @summary and @body placeholders
	Template string
	// Markdown for the navigation summary, rendered into every page
	Summary string
	// Overrides the link marked as selected in the summary, defaults to the
	// source file name
	ActiveLink string
}

func (t *TransformOptions) Pretty() string {
	return fmt.Sprintf("template=%s summary=%s active_link=%q",
		sizeToText(t.Template), sizeToText(t.Summary), t.ActiveLink)
}

func sizeToText(s string) string {
	if s == "" {
		return "none"
	}
	return fmt.Sprintf("%dB", len(s))
}

type Transformer struct {
	renderer *clarbook.Renderer

	opts TransformOptions
}

// NewTransformer creates a Transformer that renders pages with renderer using opts.
func NewTransformer(renderer *clarbook.Renderer, opts TransformOptions) *Transformer {
	return &Transformer{
		renderer: renderer,
		opts:     opts,
	}
}

type MarkdownSource struct {
	Content  io.Reader
	Metadata clarbook.MetaData
}

// Transform renders input as a book page and writes it to outPath, creating
// missing directories. It returns the path written.
func (t *Transformer) Transform(input MarkdownSource, outPath string) (string, error) {
	slog.Debug("transforming document", "path", input.Metadata.AbsSource, "out", outPath)
	if input.Metadata.AbsSource == "" {
		return "", fmt.Errorf("abs source metadata is required for transformation")
	}
	if outPath == "" {
		return "", fmt.Errorf("output path is required for transformation")
	}

	source, err := io.ReadAll(input.Content)
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}

	name := filepath.Base(input.Metadata.AbsSource)
	activeLink := t.opts.ActiveLink
	if activeLink == "" {
		activeLink = name
	}

	page, err := t.renderer.RenderPage(source, clarbook.RenderOptions{
		Template:   t.opts.Template,
		Summary:    t.opts.Summary,
		ActiveLink: activeLink,
		Title:      clarbook.DeriveTitle(name),
	})
	if err != nil {
		return "", fmt.Errorf("render error: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outPath, []byte(page), 0644); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	return outPath, nil
}
