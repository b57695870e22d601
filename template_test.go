package clarbook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubstituteTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		fields   map[string]string
		want     string
	}{
		{
			name:     "no placeholders",
			template: "<html><body>plain</body></html>",
			fields:   map[string]string{"title": "x"},
			want:     "<html><body>plain</body></html>",
		},
		{
			name:     "unknown placeholder left in place",
			template: "@unknown",
			fields:   map[string]string{},
			want:     "@unknown",
		},
		{
			name:     "all fields",
			template: "<title>@title</title><nav>@summary</nav><main>@body</main>",
			fields:   map[string]string{"title": "Intro", "summary": "<ul></ul>", "body": "<p>hi</p>"},
			want:     "<title>Intro</title><nav><ul></ul></nav><main><p>hi</p></main>",
		},
		{
			name:     "values are not rescanned",
			template: "@body",
			fields:   map[string]string{"body": "@title", "title": "nope"},
			want:     "@title",
		},
		{
			name:     "values are not escaped",
			template: "@body",
			fields:   map[string]string{"body": "<b>&amp;</b>"},
			want:     "<b>&amp;</b>",
		},
		{
			name:     "empty value replaces placeholder",
			template: "[@summary]",
			fields:   map[string]string{"summary": ""},
			want:     "[]",
		},
		{
			name:     "placeholder repeated",
			template: "@title - @title",
			fields:   map[string]string{"title": "Intro"},
			want:     "Intro - Intro",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SubstituteTemplate(tc.template, tc.fields))
		})
	}
}
