package clarbook

import (
	"strings"
	"testing"

	"github.com/alecthomas/chroma/v2"
	"github.com/stretchr/testify/require"
)

type classified struct {
	Class chroma.TokenType
	Value string
}

// classify tokenises src, merges neighbouring tokens of the same class and
// drops whitespace.
func classify(t *testing.T, src string) []classified {
	t.Helper()

	tokens, err := Tokenise(src)
	require.NoError(t, err)

	var merged []classified
	for _, tok := range tokens {
		if n := len(merged); n > 0 && merged[n-1].Class == tok.Type {
			merged[n-1].Value += tok.Value
			continue
		}
		merged = append(merged, classified{tok.Type, tok.Value})
	}

	var out []classified
	for _, c := range merged {
		if c.Class == chroma.TextWhitespace {
			continue
		}
		out = append(out, c)
	}
	return out
}

const testAddress = "'ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"

func TestCanClassifyClaritySource(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []classified
	}{
		{
			name: "heading comment",
			src:  ";;; Section title",
			want: []classified{{chroma.CommentSpecial, ";;; Section title"}},
		},
		{
			name: "ordinary comment",
			src:  ";; a note",
			want: []classified{{chroma.CommentSingle, ";; a note"}},
		},
		{
			name: "public function definition",
			src:  "(define-public (transfer (amount uint))\n  (ok true))",
			want: []classified{
				{chroma.Punctuation, "("},
				{chroma.Keyword, "define-public"},
				{chroma.Punctuation, "("},
				{chroma.NameFunction, "transfer"},
				{chroma.Punctuation, "("},
				{chroma.NameFunction, "amount"},
				{chroma.Text, "uint"},
				{chroma.Punctuation, "))"},
				{chroma.Punctuation, "("},
				{chroma.Keyword, "ok"},
				{chroma.KeywordConstant, "true"},
				{chroma.Punctuation, "))"},
			},
		},
		{
			name: "string with escaped quotes",
			src:  `(print "hi \"there\"")`,
			want: []classified{
				{chroma.Punctuation, "("},
				{chroma.Keyword, "print"},
				{chroma.LiteralStringDouble, `"hi \"there\""`},
				{chroma.Punctuation, ")"},
			},
		},
		{
			name: "hex buffer",
			src:  "(sha256 0xdeadbeef)",
			want: []classified{
				{chroma.Punctuation, "("},
				{chroma.NameBuiltin, "sha256"},
				{chroma.LiteralStringOther, "0xdeadbeef"},
				{chroma.Punctuation, ")"},
			},
		},
		{
			name: "mutation with unsigned number",
			src:  "(var-set counter u1)",
			want: []classified{
				{chroma.Punctuation, "("},
				{chroma.KeywordReserved, "var-set"},
				{chroma.Text, "counter"},
				{chroma.LiteralNumberInteger, "u1"},
				{chroma.Punctuation, ")"},
			},
		},
		{
			name: "predicate with signed numbers",
			src:  "(is-eq -5 u10)",
			want: []classified{
				{chroma.Punctuation, "("},
				{chroma.KeywordPseudo, "is-eq"},
				{chroma.LiteralNumberInteger, "-5"},
				{chroma.LiteralNumberInteger, "u10"},
				{chroma.Punctuation, ")"},
			},
		},
		{
			name: "standard principal is an address",
			src:  "(stx-transfer? u100 tx-sender " + testAddress + ")",
			want: []classified{
				{chroma.Punctuation, "("},
				{chroma.KeywordReserved, "stx-transfer?"},
				{chroma.LiteralNumberInteger, "u100"},
				{chroma.Text, "tx-sender"},
				{chroma.NameConstant, testAddress},
				{chroma.Punctuation, ")"},
			},
		},
		{
			name: "contract principal is a symbol",
			src:  "(contract-call? " + testAddress + ".counter increment)",
			want: []classified{
				{chroma.Punctuation, "("},
				{chroma.KeywordReserved, "contract-call?"},
				{chroma.LiteralStringSymbol, testAddress + ".counter"},
				{chroma.Text, "increment"},
				{chroma.Punctuation, ")"},
			},
		},
		{
			name: "environment keyword in head position",
			src:  "(tx-sender)",
			want: []classified{
				{chroma.Punctuation, "("},
				{chroma.NameBuiltinPseudo, "tx-sender"},
				{chroma.Punctuation, ")"},
			},
		},
		{
			name: "keyword prefix of a longer name is a function",
			src:  "(get-balance tx-sender)",
			want: []classified{
				{chroma.Punctuation, "("},
				{chroma.NameFunction, "get-balance"},
				{chroma.Text, "tx-sender"},
				{chroma.Punctuation, ")"},
			},
		},
		{
			name: "operator",
			src:  "(>= a b)",
			want: []classified{
				{chroma.Punctuation, "("},
				{chroma.Operator, ">="},
				{chroma.Text, "a"},
				{chroma.Text, "b"},
				{chroma.Punctuation, ")"},
			},
		},
		{
			name: "tuple literal",
			src:  "{a: u1, b: true}",
			want: []classified{
				{chroma.Punctuation, "{"},
				{chroma.Text, "a:"},
				{chroma.LiteralNumberInteger, "u1"},
				{chroma.Punctuation, ","},
				{chroma.Text, "b:"},
				{chroma.KeywordConstant, "true"},
				{chroma.Punctuation, "}"},
			},
		},
		{
			name: "boolean inside a word is plain text",
			src:  "nonexistent",
			want: []classified{{chroma.Text, "nonexistent"}},
		},
		{
			name: "unmatched characters pass through",
			src:  "x ; @#$",
			want: []classified{
				{chroma.Text, "x"},
				{chroma.Text, ";"},
				{chroma.Text, "@#$"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, classify(t, tc.src))
		})
	}
}

func TestTokenisePreservesSource(t *testing.T) {
	src := ";; counter\n(define-data-var count uint u0)\n(define-public (inc)\n  (begin (var-set count (+ (var-get count) u1)) (ok (var-get count))))\n"

	tokens, err := Tokenise(src)
	require.NoError(t, err)

	var b strings.Builder
	for _, tok := range tokens {
		require.NotEqual(t, chroma.Error, tok.Type, "unexpected error token %q", tok.Value)
		b.WriteString(tok.Value)
	}
	require.Equal(t, src, b.String())
}

func TestClarityLexerIsRegistered(t *testing.T) {
	require.Same(t, ClarityLexer, lookupLexer("Clarity"))
	require.Equal(t, "Clarity", ClarityLexer.Config().Name)
}
