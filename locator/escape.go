package locator

import "strings"

// Literal renders s as an XPath 1.0 string literal.
//
// XPath literals cannot escape their delimiter, so a value holding a single
// quote is split at every single quote: each quote-free segment is wrapped in
// single quotes, each quote becomes the literal "'", and the segments are
// joined with concat(). Double quotes need no treatment inside single-quoted
// segments. A quote-free value is returned as a plain single-quoted literal.
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}

	parts := strings.Split(s, "'")
	segs := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if p != "" {
			segs = append(segs, "'"+p+"'")
		}
		if i < len(parts)-1 {
			segs = append(segs, `"'"`)
		}
	}
	if len(segs) == 1 {
		return segs[0]
	}
	return "concat(" + strings.Join(segs, ", ") + ")"
}
