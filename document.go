package clarbook

import (
	"bytes"
	"encoding/json"
)

// RenderOptions configures a single page render. It is constructed fresh for
// every page and never shared between renders.
type RenderOptions struct {
	// HTML shell containing @title, @body and @summary placeholders
	Template string
	// Markdown for the navigation summary, rendered with the same active link as the body
	Summary string
	// Identifier of the page being rendered, eg "ch01-01-intro.html".
	// A ".md" suffix is normalised to ".html"
	ActiveLink string
	// Value substituted for @title
	Title string
}

type MetaData struct {
	// The absolute source file path
	AbsSource string
}

// CodeBlockOptions is the JSON that may follow the language in a fenced code
// block info string, eg ```clarity,{"expected_output":"u1"}
//
// The options are kept as written and re-serialized into the data-options
// attribute of the rendered block, where the client side execution widget
// picks them up. Keys are not validated: values of any type and keys the
// renderer does not know about pass through. Known keys include nonplayable,
// noneditable, expected_output, hint, validation_code, mineBlock and setup.
type CodeBlockOptions struct {
	// Compact JSON, empty when the block has no options
	Raw json.RawMessage
}

// NewCodeBlockOptions checks that data is JSON and keeps it in compact form.
func NewCodeBlockOptions(data []byte) (CodeBlockOptions, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return CodeBlockOptions{}, err
	}
	return CodeBlockOptions{Raw: buf.Bytes()}, nil
}

// MarshalJSON returns the options as written, or an empty object.
func (o CodeBlockOptions) MarshalJSON() ([]byte, error) {
	if len(o.Raw) == 0 {
		return []byte("{}"), nil
	}
	return o.Raw, nil
}

// Get returns the value of key when the options are a JSON object.
func (o CodeBlockOptions) Get(key string) (any, bool) {
	var fields map[string]any
	if len(o.Raw) == 0 || json.Unmarshal(o.Raw, &fields) != nil {
		return nil, false
	}
	v, ok := fields[key]
	return v, ok
}

// Flag reports whether key holds a truthy value: anything but false, null,
// 0, "" or a missing key.
func (o CodeBlockOptions) Flag(key string) bool {
	v, _ := o.Get(key)
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}

// NonPlayable hides the play button.
func (o CodeBlockOptions) NonPlayable() bool { return o.Flag("nonplayable") }

// NonEditable renders the code read-only.
func (o CodeBlockOptions) NonEditable() bool { return o.Flag("noneditable") }

// CodeBlock is a fenced or indented code block as seen by [Hooks.CodeBlock].
type CodeBlock struct {
	// Language identifier, empty for indented blocks or bare fences
	Language string
	Options  CodeBlockOptions
	// The code, normalised to end with exactly one newline
	Code string
}
