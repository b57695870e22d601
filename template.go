package clarbook

import "regexp"

var placeholderRegex = regexp.MustCompile(`@([a-z]+)`)

// SubstituteTemplate replaces every @word placeholder in template with
// fields[word]. Placeholders without a field are left as they are, and
// substituted values are never scanned for further placeholders.
func SubstituteTemplate(template string, fields map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		if v, ok := fields[match[1:]]; ok {
			return v
		}
		return match
	})
}
