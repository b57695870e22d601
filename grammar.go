package clarbook

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// GrammarRule classifies the text matched by Pattern as Class.
//
// Patterns are regexp2 expressions and are matched against the raw source at
// the current scan position. Boundaries are expressed with lookaround so no
// rule depends on how the text before it was classified.
type GrammarRule struct {
	Name    string
	Pattern string
	Class   chroma.TokenType
}

// Characters that may precede a boolean, number or address.
const atomBoundary = `(?<![^\s(\[{,])`

// ClarityGrammar is the ordered rule table for the Clarity contract language.
// At every position the first rule that matches wins.
var ClarityGrammar = []GrammarRule{
	{Name: "heading", Pattern: `;;;.*`, Class: chroma.CommentSpecial},
	{Name: "comment", Pattern: `;;.*`, Class: chroma.CommentSingle},
	{Name: "string", Pattern: `"(?:[^"\\]|\\.)*"`, Class: chroma.LiteralStringDouble},
	{Name: "buffer", Pattern: `(?<![\w-])0x[0-9a-fA-F]*`, Class: chroma.LiteralStringOther},
	// Quoted names that are really standard principals fall through to the address rule.
	{Name: "symbol", Pattern: `'(?!` + addressChars + `(?:[()\s]|$))[^()#'\s]+`, Class: chroma.LiteralStringSymbol},
	{Name: "control", Pattern: keywordForm(
		"or", "and", "xor", "not", "begin", "let", "if", "ok", "err", "some",
		"unwrap!", "unwrap-err!", "unwrap-panic", "unwrap-err-panic", "match", "try!", "asserts!",
		"map-get?", "var-get", "contract-map-get?", "get", "tuple", "default-to", "print",
		"define-public", "define-private", "define-read-only", "define-constant", "define-map",
		"define-data-var", "define-fungible-token", "define-non-fungible-token",
		"define-trait", "use-trait", "impl-trait",
	), Class: chroma.Keyword},
	{Name: "predicate", Pattern: keywordForm(
		"is-eq", "is-some", "is-none", "is-ok", "is-err", "is-standard",
	), Class: chroma.KeywordPseudo},
	{Name: "mutation", Pattern: keywordForm(
		"var-set", "map-set", "map-delete", "map-insert",
		"ft-transfer?", "nft-transfer?", "nft-mint?", "ft-mint?", "nft-burn?", "ft-burn?",
		"nft-get-owner?", "ft-get-balance?", "ft-get-supply",
		"stx-transfer?", "stx-burn?", "stx-get-balance", "contract-call?",
	), Class: chroma.KeywordReserved},
	{Name: "collection", Pattern: keywordForm(
		"list", "map", "filter", "fold", "len", "concat", "append", "as-max-len?",
		"element-at?", "index-of?", "slice?", "replace-at?", "to-int", "to-uint",
		"buff", "hash160", "sha256", "sha512", "sha512/256", "keccak256",
		"secp256k1-recover?", "secp256k1-verify", "true", "false", "none",
	), Class: chroma.NameBuiltin},
	{Name: "environment", Pattern: keywordForm(
		"as-contract", "contract-caller", "tx-sender", "block-height", "burn-block-height",
		"stacks-block-height", "at-block", "get-block-info?", "get-burn-block-info?",
		"get-stacks-block-info?", "principal-of?", "contract-of",
	), Class: chroma.NameBuiltinPseudo},
	{Name: "boolean", Pattern: atomBoundary + `(?:true|false|none)` + atomEnd, Class: chroma.KeywordConstant},
	{Name: "number", Pattern: atomBoundary + `-?u?\d+` + atomEnd, Class: chroma.LiteralNumberInteger},
	{Name: "address", Pattern: `(?<![^\s()])'` + addressChars + `(?=[()\s]|$)`, Class: chroma.NameConstant},
	{Name: "operator", Pattern: `(?<=\()(?:[-+*/]|[<>]=?|=>?)(?=[()\s]|$)`, Class: chroma.Operator},
	{Name: "function", Pattern: `(?<=\()[^()'\s]+(?=[()\s]|$)`, Class: chroma.NameFunction},
	{Name: "punctuation", Pattern: `[(){}\[\],']`, Class: chroma.Punctuation},
	{Name: "whitespace", Pattern: `\s+`, Class: chroma.TextWhitespace},
	{Name: "text", Pattern: `[^\s(){}\[\],';"]+`, Class: chroma.Text},
	{Name: "other", Pattern: `.`, Class: chroma.Text},
}

const (
	addressChars = `[0-9A-HJKMNP-TV-Z]{28,41}`
	atomEnd      = `(?=[\s)\]},]|$)`
)

// keywordForm matches one of words in the head position of a form: directly
// after an opening parenthesis and followed by whitespace or a closing one.
func keywordForm(words ...string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return `(?<=\()(?:` + strings.Join(quoted, "|") + `)(?=[\s)])`
}

func clarityRules() chroma.Rules {
	rules := make([]chroma.Rule, 0, len(ClarityGrammar))
	for _, r := range ClarityGrammar {
		rules = append(rules, chroma.Rule{Pattern: r.Pattern, Type: r.Class})
	}
	return chroma.Rules{"root": rules}
}

// ClarityLexer is registered with chroma so lexers.Get("clarity") resolves to it.
var ClarityLexer = lexers.Register(chroma.MustNewLexer(
	&chroma.Config{
		Name:      "Clarity",
		Aliases:   []string{"clarity", "clar"},
		Filenames: []string{"*.clar"},
		MimeTypes: []string{"text/x-clarity"},
		EnsureNL:  true,
	},
	clarityRules,
))

// Tokenise classifies source with [ClarityGrammar]. Text no rule claims is
// returned as chroma.Text.
func Tokenise(source string) ([]chroma.Token, error) {
	it, err := ClarityLexer.Tokenise(nil, source)
	if err != nil {
		return nil, fmt.Errorf("tokenising clarity source: %w", err)
	}
	return it.Tokens(), nil
}
