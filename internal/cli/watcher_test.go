package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newBuiltBook(t *testing.T) (*book, *Watcher) {
	t.Helper()

	b := newBook(t)
	p, err := NewProcessor(b.cfg)
	require.NoError(t, err)
	_, err = p.Build(context.Background())
	require.NoError(t, err)

	w, err := NewWatcher(p)
	require.NoError(t, err)
	t.Cleanup(func() { w.watcher.Close() })
	return b, w
}

func TestWatcherApplyRebuildsPage(t *testing.T) {
	b, w := newBuiltBook(t)

	page := filepath.Join(b.cfg.Src, "ch01-02-maps.md")
	require.NoError(t, os.WriteFile(page, []byte("# Maps\n\nRewritten.\n"), 0644))

	w.apply(context.Background(), []string{page})

	maps := b.output(t, "ch01-02-maps.html")
	assert.Contains(t, maps, "<p>Rewritten.</p>")
	assert.Equal(t, 1, strings.Count(maps, `<div class="prevnext">`))
	assert.Equal(t, []string{"ch01-01-intro.html"}, queryAttr(t, maps, "div.prevnext a.prev", "href"))
}

func TestWatcherApplyCopiesAssets(t *testing.T) {
	b, w := newBuiltBook(t)

	logo := filepath.Join(b.cfg.Src, "img", "logo.png")
	require.NoError(t, os.WriteFile(logo, []byte("new logo"), 0644))

	w.apply(context.Background(), []string{logo})

	assert.Equal(t, "new logo", b.output(t, filepath.Join("img", "logo.png")))
}

func TestWatcherApplySummaryRebuildsBook(t *testing.T) {
	b, w := newBuiltBook(t)

	require.NoError(t, os.WriteFile(b.cfg.Summary, []byte("- [Start](title-page.md)\n"), 0644))

	w.apply(context.Background(), []string{b.cfg.Summary})

	for _, page := range []string{"ch01-01-intro.html", "ch01-02-maps.html"} {
		assert.Contains(t, b.output(t, page), `<a href="title-page.html">Start</a>`, page)
	}
	assert.Contains(t, b.output(t, "index.html"), `<a class="selected" href="title-page.html">Start</a>`)
}

func TestWatcherApplySurvivesErrors(t *testing.T) {
	b, w := newBuiltBook(t)

	gone := filepath.Join(b.cfg.Src, "deleted.md")
	intro := filepath.Join(b.cfg.Src, "ch01-01-intro.md")
	require.NoError(t, os.WriteFile(intro, []byte("# Intro\n\nStill here.\n"), 0644))

	w.apply(context.Background(), []string{gone, intro})

	assert.Contains(t, b.output(t, "ch01-01-intro.html"), "<p>Still here.</p>")
}

func TestWatcherRelevant(t *testing.T) {
	b, w := newBuiltBook(t)

	assert.True(t, w.relevant(filepath.Join(b.cfg.Src, "ch01-01-intro.md")))
	assert.True(t, w.relevant(b.cfg.Template))
	assert.False(t, w.relevant(filepath.Join(b.cfg.Src, "drafts", "ch09-01-x.md")))
	assert.False(t, w.relevant(filepath.Join(b.cfg.Out, "ch01-01-intro.html")))
	assert.False(t, w.relevant(filepath.Join(b.root, "vendor", "sdk.wasm")))
}

func TestWatcherRun(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b, w := newBuiltBook(t)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	page := filepath.Join(b.cfg.Src, "ch01-01-intro.md")
	require.Eventually(t, func() bool {
		// Keep writing until the watch is established and the rebuild lands
		if err := os.WriteFile(page, []byte("# Intro\n\nWatched.\n"), 0644); err != nil {
			return false
		}
		content, err := os.ReadFile(filepath.Join(b.cfg.Out, "ch01-01-intro.html"))
		return err == nil && strings.Contains(string(content), "<p>Watched.</p>")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
