package clarbook

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var chapterPrefixRegex = regexp.MustCompile(`^ch[0-9]+-[0-9]+-`)

// DefaultChapterPattern matches the base names of rendered chapter pages.
var DefaultChapterPattern = regexp.MustCompile(`^ch[0-9]+-[0-9]+-\S+\.html$`)

// ResolveOutputPath maps a file under srcRoot to its location under outRoot.
// Markdown sources become .html pages, everything else keeps its name.
func ResolveOutputPath(srcRoot, outRoot, path string) (string, error) {
	rel, err := filepath.Rel(srcRoot, path)
	if err != nil {
		return "", err
	}

	out := filepath.Join(outRoot, rel)
	if IsMarkdown(path) {
		out = strings.TrimSuffix(out, filepath.Ext(out)) + ".html"
	}
	return out, nil
}

func IsMarkdown(path string) bool {
	return filepath.Ext(path) == ".md"
}

// DeriveTitle builds a page title from a source file name:
// "ch01-02-getting-started.md" becomes "Getting Started".
func DeriveTitle(filename string) string {
	name := chapterPrefixRegex.ReplaceAllString(filepath.Base(filename), "")
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "-", " ")

	// NoLower keeps acronyms such as "STX" intact
	return cases.Title(language.English, cases.NoLower).String(name)
}

// NormalizeActiveLink turns a source name into the link it is rendered as.
func NormalizeActiveLink(link string) string {
	if strings.HasSuffix(link, ".md") {
		return strings.TrimSuffix(link, ".md") + ".html"
	}
	return link
}

func MustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		panic(err)
	}
	return abs
}
