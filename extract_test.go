package clarbook

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"
)

func TestCanWriteShadowFromPage(t *testing.T) {
	input, err := os.ReadFile("testdata/extract/counter.md")
	require.NoError(t, err)

	snippets, err := NewExtractor("clarity").Extract(bytes.NewReader(input), MetaData{AbsSource: "testdata/extract/counter.md"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteShadow(&buf, snippets))
	golden.Assert(t, buf.String(), "extract/counter.golden.clar")
}

func TestCanExtractSnippets(t *testing.T) {
	tests := []struct {
		name     string
		language string
		input    string
		want     []Snippet
		wantErr  bool
	}{
		{
			name:     "positions and options",
			language: "clarity",
			input:    "# Title\n\n```clarity\n(ok u1)\n```\n\ntext\n\n```clarity,{\"hint\":\"use ok\"}\n(ok u2)\n\n(ok u3)\n\n```\n",
			want: []Snippet{
				{
					CodeBlock: CodeBlock{Language: "clarity", Code: "(ok u1)\n"},
					Source:    "page.md",
					StartLine: 4,
					EndLine:   4,
				},
				{
					CodeBlock: CodeBlock{Language: "clarity", Options: CodeBlockOptions{Raw: json.RawMessage(`{"hint":"use ok"}`)}, Code: "(ok u2)\n\n(ok u3)\n"},
					Source:    "page.md",
					StartLine: 10,
					EndLine:   13,
				},
			},
		},
		{
			name:     "language matched case insensitively",
			language: "clarity",
			input:    "```Clarity\n(ok true)\n```\n",
			want: []Snippet{
				{
					CodeBlock: CodeBlock{Language: "Clarity", Code: "(ok true)\n"},
					Source:    "page.md",
					StartLine: 2,
					EndLine:   2,
				},
			},
		},
		{
			name:     "other languages and indented code skipped",
			language: "js",
			input:    "    (ok u1)\n\n```clarity\n(ok u2)\n```\n\n```js\nrun()\n```\n",
			want: []Snippet{
				{
					CodeBlock: CodeBlock{Language: "js", Code: "run()\n"},
					Source:    "page.md",
					StartLine: 8,
					EndLine:   8,
				},
			},
		},
		{
			name:     "empty blocks skipped",
			language: "clarity",
			input:    "```clarity\n```\n",
			wantErr:  true,
		},
		{
			name:     "no matching blocks",
			language: "clarity",
			input:    "Just prose.\n",
			wantErr:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewExtractor(tc.language).Extract(strings.NewReader(tc.input), MetaData{AbsSource: "page.md"})
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWriteShadowErrors(t *testing.T) {
	tests := []struct {
		name     string
		snippets []Snippet
		wantErr  string
	}{
		{
			name: "mixed sources",
			snippets: []Snippet{
				{CodeBlock: CodeBlock{Code: "a\n"}, Source: "a.md", StartLine: 1, EndLine: 1},
				{CodeBlock: CodeBlock{Code: "b\n"}, Source: "b.md", StartLine: 2, EndLine: 2},
			},
			wantErr: "snippets come from a.md and b.md",
		},
		{
			name: "overlapping lines",
			snippets: []Snippet{
				{CodeBlock: CodeBlock{Code: "a\nb\n"}, Source: "a.md", StartLine: 1, EndLine: 2},
				{CodeBlock: CodeBlock{Code: "c\n"}, Source: "a.md", StartLine: 2, EndLine: 2},
			},
			wantErr: "line 2 already contains code",
		},
		{
			name: "code past the end",
			snippets: []Snippet{
				{CodeBlock: CodeBlock{Code: "a\nb\n"}, Source: "a.md", StartLine: 1, EndLine: 1},
			},
			wantErr: "line 2 is past the last snippet",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := WriteShadow(&bytes.Buffer{}, tc.snippets)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestWriteShadowWithoutSnippets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteShadow(&buf, nil))
	assert.Empty(t, buf.String())
}
