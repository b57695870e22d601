package clarbook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	footnoteMarker   = `<div class="footnote">`
	articleEndMarker = `</article>`
)

// ErrNoInsertionPoint is returned in strict mode for pages that have neither a
// footnote block nor a closing article tag.
var ErrNoInsertionPoint = errors.New("no navigation insertion point")

var navRegex = regexp.MustCompile(`<div class="prevnext">(?:<a href="[^"]*" class="prev"></a>|<div></div>)(?:<a href="[^"]*" class="next"></a>|<div></div>)</div>`)

// NavFragment returns the previous/next navigation for a chapter. Empty
// targets are replaced by an empty placeholder.
func NavFragment(prev, next string) string {
	var b strings.Builder
	b.WriteString(`<div class="prevnext">`)
	if prev != "" {
		fmt.Fprintf(&b, `<a href="%s" class="prev"></a>`, prev)
	} else {
		b.WriteString("<div></div>")
	}
	if next != "" {
		fmt.Fprintf(&b, `<a href="%s" class="next"></a>`, next)
	} else {
		b.WriteString("<div></div>")
	}
	b.WriteString("</div>")
	return b.String()
}

// LinkPage inserts the navigation fragment before the page's footnotes, or
// before its last </article> when it has none. Navigation left by an earlier
// pass is replaced. ok is false when no insertion point exists, in which case
// content is returned unchanged.
func LinkPage(content, prev, next string) (linked string, ok bool) {
	stripped := navRegex.ReplaceAllString(content, "")

	index := strings.Index(stripped, footnoteMarker)
	if index == -1 {
		index = strings.LastIndex(stripped, articleEndMarker)
	}
	if index == -1 {
		return content, false
	}

	return stripped[:index] + NavFragment(prev, next) + stripped[index:], true
}

// Linker adds previous/next navigation to rendered chapter files.
type Linker struct {
	// Fail instead of warning when a page has no insertion point
	Strict bool
	// Maximum number of files processed at once, 0 means unlimited
	Workers int
}

// LinkChapters links every file to its neighbours in files. The order of files
// is the reading order; it is never inferred. Files are rewritten in place.
func (l *Linker) LinkChapters(ctx context.Context, files []string) error {
	g, ctx := errgroup.WithContext(ctx)
	if l.Workers > 0 {
		g.SetLimit(l.Workers)
	}

	for i, file := range files {
		var prev, next string
		if i > 0 {
			prev = filepath.Base(files[i-1])
		}
		if i < len(files)-1 {
			next = filepath.Base(files[i+1])
		}
		if prev == "" && next == "" {
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return l.linkFile(file, prev, next)
		})
	}

	return g.Wait()
}

func (l *Linker) linkFile(path, prev, next string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking chapter %s: %w", path, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading chapter %s: %w", path, err)
	}

	linked, ok := LinkPage(string(content), prev, next)
	if !ok {
		if l.Strict {
			return fmt.Errorf("linking %s: %w", path, ErrNoInsertionPoint)
		}
		slog.Warn("unable to link chapter", "path", path)
		return nil
	}

	slog.Debug("linked chapter", "path", path, "prev", prev, "next", next)
	if err := os.WriteFile(path, []byte(linked), info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing chapter %s: %w", path, err)
	}
	return nil
}
