package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/jwtly10/clarbook"
	"github.com/jwtly10/clarbook/internal/config"
	"github.com/jwtly10/clarbook/internal/transformer"
)

const indexFile = "index.html"

type BuildResult struct {
	Path     string
	OutPath  string
	Duration time.Duration
}

type ProcessResult struct {
	Path     string
	OutPath  string
	Duration time.Duration
	Error    error
}

// Processor builds a book from its source tree.
type Processor struct {
	cfg *config.Config
	// Absolute source and output roots
	src, out string

	renderer    *clarbook.Renderer
	highlighter *clarbook.Highlighter
	linker      *clarbook.Linker
	chapters    *regexp.Regexp
}

func NewProcessor(cfg *config.Config) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	chapters, err := cfg.ChapterRegexp()
	if err != nil {
		return nil, err
	}

	src, err := filepath.Abs(cfg.Src)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source directory: %w", err)
	}
	out, err := filepath.Abs(cfg.Out)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}

	highlighter := clarbook.NewHighlighter(cfg.HighlightStyle)
	return &Processor{
		cfg:         cfg,
		src:         src,
		out:         out,
		renderer:    clarbook.NewRenderer(highlighter),
		highlighter: highlighter,
		linker: &clarbook.Linker{
			Strict:  cfg.StrictLinking,
			Workers: cfg.Workers,
		},
		chapters: chapters,
	}, nil
}

// Build renders every page, copies every other file, links the chapters and
// writes the configured assets and stylesheet.
func (p *Processor) Build(ctx context.Context) ([]BuildResult, error) {
	startTime := time.Now()
	slog.Debug("starting build", "src", p.src, "out", p.out)

	opts, err := p.loadPageOptions()
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded page options", "options", opts.Pretty())

	files, err := p.findFiles()
	if err != nil {
		return nil, err
	}
	slog.Debug("found files to process", "count", len(files), "duration", time.Since(startTime))

	jobs := make(chan string, len(files))
	results := make(chan ProcessResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if err := ctx.Err(); err != nil {
					results <- ProcessResult{Path: path, Error: err}
					continue
				}
				results <- p.processFile(path, opts)
			}
		}()
	}

	for _, file := range files {
		jobs <- file
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var errs []error
	var buildResults []BuildResult

	for result := range results {
		if result.Error != nil {
			errs = append(errs, fmt.Errorf("failed to process %s: %w", result.Path, result.Error))
			slog.Error("failed to process file", "path", result.Path, "error", result.Error)
			continue
		}

		relSource, _ := filepath.Rel(p.src, result.Path)
		relOut, _ := filepath.Rel(p.out, result.OutPath)

		buildResults = append(buildResults, BuildResult{
			Path:     relSource,
			OutPath:  relOut,
			Duration: result.Duration,
		})

		slog.Debug("file built",
			"source", relSource,
			"output", relOut,
		)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("encountered %d errors during build: %w", len(errs), errors.Join(errs...))
	}

	if err := p.LinkChapters(ctx); err != nil {
		return nil, err
	}
	if err := p.copyAssets(); err != nil {
		return nil, err
	}
	if err := p.writeHighlightCSS(); err != nil {
		return nil, err
	}

	sort.Slice(buildResults, func(i, j int) bool {
		return buildResults[i].Path < buildResults[j].Path
	})

	slog.Info("build completed", "duration", time.Since(startTime), "processed", len(buildResults))
	return buildResults, nil
}

// ProcessPath rebuilds a single source file, re-reading the template and
// summary first so edits to either are picked up.
func (p *Processor) ProcessPath(path string) (BuildResult, error) {
	opts, err := p.loadPageOptions()
	if err != nil {
		return BuildResult{}, err
	}

	result := p.processFile(path, opts)
	if result.Error != nil {
		return BuildResult{}, result.Error
	}
	return BuildResult{
		Path:     result.Path,
		OutPath:  result.OutPath,
		Duration: result.Duration,
	}, nil
}

// LinkChapters adds previous/next navigation to every chapter page in the
// output tree. Chapters are ordered by path.
func (p *Processor) LinkChapters(ctx context.Context) error {
	var chapters []string
	err := filepath.WalkDir(p.out, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && p.chapters.MatchString(d.Name()) {
			chapters = append(chapters, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to find chapters: %w", err)
	}

	sort.Strings(chapters)
	slog.Debug("linking chapters", "count", len(chapters))
	if err := p.linker.LinkChapters(ctx, chapters); err != nil {
		return fmt.Errorf("failed to link chapters: %w", err)
	}
	return nil
}

// Ignored reports whether path is excluded from the build by the source
// tree's .gitignore, the configured ignore patterns or by being the output
// directory.
func (p *Processor) Ignored(path string, isDir bool) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if abs == p.out || strings.HasPrefix(abs, p.out+string(os.PathSeparator)) {
		return true
	}

	rel, err := filepath.Rel(p.src, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	return p.loadMatcher().Match(strings.Split(rel, string(os.PathSeparator)), isDir)
}

func (p *Processor) IsSummary(path string) bool {
	abs, err := filepath.Abs(path)
	return err == nil && p.cfg.Summary != "" && abs == clarbook.MustAbs(p.cfg.Summary)
}

func (p *Processor) IsTemplate(path string) bool {
	abs, err := filepath.Abs(path)
	return err == nil && abs == clarbook.MustAbs(p.cfg.Template)
}

// loadMatcher builds the ignore rules from .gitignore in the source root and
// the configured ignore patterns.
func (p *Processor) loadMatcher() gitignore.Matcher {
	patterns := []gitignore.Pattern{gitignore.ParsePattern(".git/", nil)}

	if data, err := os.ReadFile(filepath.Join(p.src, ".gitignore")); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
				patterns = append(patterns, gitignore.ParsePattern(line, nil))
			}
		}
	}
	for _, line := range p.cfg.Ignore {
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	return gitignore.NewMatcher(patterns)
}

// findFiles walks the source tree and returns every file that is not
// ignored, sorted by path.
func (p *Processor) findFiles() ([]string, error) {
	var files []string
	matcher := p.loadMatcher()

	err := filepath.WalkDir(p.src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == p.out {
			return filepath.SkipDir
		}

		relPath, err := filepath.Rel(p.src, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		if matcher.Match(strings.Split(relPath, string(os.PathSeparator)), d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files found in %s", p.src)
	}

	sort.Strings(files)
	return files, nil
}

// loadPageOptions reads the template and summary. A missing summary renders
// as an empty one.
func (p *Processor) loadPageOptions() (transformer.TransformOptions, error) {
	var opts transformer.TransformOptions

	template, err := os.ReadFile(p.cfg.Template)
	if err != nil {
		return opts, fmt.Errorf("error reading template: %w", err)
	}
	opts.Template = string(template)

	if p.cfg.Summary != "" {
		summary, err := os.ReadFile(p.cfg.Summary)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Debug("no summary found", "path", p.cfg.Summary)
		case err != nil:
			return opts, fmt.Errorf("error reading summary: %w", err)
		default:
			opts.Summary = string(summary)
		}
	}

	return opts, nil
}

func (p *Processor) processFile(path string, opts transformer.TransformOptions) ProcessResult {
	startTime := time.Now()
	var result ProcessResult

	absPath, err := filepath.Abs(path)
	if err != nil {
		result.Error = fmt.Errorf("failed to resolve absolute path: %w", err)
		return result
	}

	result.Path = absPath

	slog.Debug("processing file", "path", absPath)

	outPath, err := clarbook.ResolveOutputPath(p.src, p.out, absPath)
	if err != nil {
		result.Error = fmt.Errorf("failed to resolve output path: %w", err)
		return result
	}

	if !clarbook.IsMarkdown(absPath) {
		if err := clarbook.CopyFile(absPath, outPath); err != nil {
			result.Error = err
			return result
		}
		result.OutPath = outPath
		result.Duration = time.Since(startTime)
		return result
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		result.Error = fmt.Errorf("error reading file: %w", err)
		return result
	}

	t := transformer.NewTransformer(p.renderer, opts)
	src := transformer.MarkdownSource{
		Content: bytes.NewReader(content),
		Metadata: clarbook.MetaData{
			AbsSource: absPath,
		},
	}

	if result.OutPath, err = t.Transform(src, outPath); err != nil {
		result.Error = err
		return result
	}

	if p.cfg.IndexPage != "" && filepath.Base(absPath) == p.cfg.IndexPage {
		src.Content = bytes.NewReader(content)
		if _, err := t.Transform(src, filepath.Join(p.out, indexFile)); err != nil {
			result.Error = fmt.Errorf("failed to write index page: %w", err)
			return result
		}
	}

	result.Duration = time.Since(startTime)
	slog.Debug("file processed",
		"path", absPath,
		"duration", result.Duration)

	return result
}

func (p *Processor) copyAssets() error {
	for _, asset := range p.cfg.Assets {
		dst := filepath.Join(p.out, asset.To)
		if err := clarbook.CopyFile(asset.From, dst); err != nil {
			return fmt.Errorf("failed to copy asset %s: %w", asset.From, err)
		}
	}
	return nil
}

func (p *Processor) writeHighlightCSS() error {
	if p.cfg.HighlightCSS == "" {
		return nil
	}

	path := filepath.Join(p.out, p.cfg.HighlightCSS)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create stylesheet directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create stylesheet: %w", err)
	}
	defer f.Close()

	if err := p.highlighter.WriteCSS(f); err != nil {
		return fmt.Errorf("failed to write stylesheet: %w", err)
	}
	slog.Debug("wrote highlight stylesheet", "path", path)
	return f.Close()
}
