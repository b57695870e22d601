package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/jwtly10/clarbook"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "book.yaml"

// Config describes one book.
//
// Paths are resolved against the directory holding the config file, except
// HighlightCSS and Asset.To which live inside Out.
type Config struct {
	Src      string `yaml:"src"`
	Out      string `yaml:"out"`
	Template string `yaml:"template"`
	Summary  string `yaml:"summary"`
	// Source page that is also written as index.html
	IndexPage      string `yaml:"index_page"`
	ChapterPattern string `yaml:"chapter_pattern"`
	Workers        int    `yaml:"workers"`
	StrictLinking  bool   `yaml:"strict_linking"`

	HighlightStyle string `yaml:"highlight_style"`
	HighlightCSS   string `yaml:"highlight_css"`

	// gitignore style patterns, relative to Src
	Ignore []string `yaml:"ignore"`
	Assets []Asset  `yaml:"assets"`
}

// Asset is a file from outside the source tree copied into the book.
type Asset struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

func Default() *Config {
	return &Config{
		Src:            "src",
		Out:            "build",
		Template:       filepath.Join("templates", "base.html"),
		Summary:        filepath.Join("src", "SUMMARY.md"),
		IndexPage:      "title-page.md",
		ChapterPattern: clarbook.DefaultChapterPattern.String(),
		Workers:        4,
		HighlightStyle: clarbook.DefaultHighlightStyle,
	}
}

// Load reads the config at path over the defaults. A missing file yields the
// defaults. Relative paths are made absolute against the file's directory.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}
	cfg.resolve(base)

	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) resolve(base string) {
	c.Src = resolvePath(base, c.Src)
	c.Out = resolvePath(base, c.Out)
	c.Template = resolvePath(base, c.Template)
	c.Summary = resolvePath(base, c.Summary)
	for i := range c.Assets {
		c.Assets[i].From = resolvePath(base, c.Assets[i].From)
	}
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Validate reports the first problem that would stop a build.
func (c *Config) Validate() error {
	if c.Src == "" {
		return errors.New("src is required")
	}
	if c.Out == "" {
		return errors.New("out is required")
	}
	if filepath.Clean(c.Src) == filepath.Clean(c.Out) {
		return fmt.Errorf("src and out must differ, both are %s", c.Src)
	}
	if c.Template == "" {
		return errors.New("template is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := c.ChapterRegexp(); err != nil {
		return err
	}
	for i, a := range c.Assets {
		if a.From == "" || a.To == "" {
			return fmt.Errorf("asset %d needs both from and to", i)
		}
		if filepath.IsAbs(a.To) {
			return fmt.Errorf("asset %d: to must be relative to out, got %s", i, a.To)
		}
	}
	if filepath.IsAbs(c.HighlightCSS) {
		return fmt.Errorf("highlight_css must be relative to out, got %s", c.HighlightCSS)
	}
	return nil
}

// ChapterRegexp compiles ChapterPattern, falling back to the default pattern
// when it is empty.
func (c *Config) ChapterRegexp() (*regexp.Regexp, error) {
	if c.ChapterPattern == "" {
		return clarbook.DefaultChapterPattern, nil
	}
	re, err := regexp.Compile(c.ChapterPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid chapter_pattern: %w", err)
	}
	return re, nil
}
