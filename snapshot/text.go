package snapshot

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// NormalizeText trims s and collapses every run of Unicode whitespace to a
// single space. It matches XPath normalize-space as evaluated by the
// selector engine, so captured text compares equal at query time.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StringValue returns the XPath string-value of n: the concatenation of all
// descendant text nodes in document order. Comments are skipped.
func StringValue(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// Render serialises the subtree at n back to HTML, truncated to at most
// limit bytes on a rune boundary when limit > 0.
func Render(n *html.Node, limit int) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	out := buf.String()
	if limit > 0 && len(out) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out
}
