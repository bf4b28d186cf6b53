// CLAUDE:SUMMARY CSS engine on cascadia: structural nth-of-type paths for Create, group selectors for queries.
package selector

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// CSSScheme is the prefix of the CSS engine.
const CSSScheme = "css"

// CSSEngine evaluates CSS selectors.
type CSSEngine struct{}

// NewCSSEngine creates a CSS engine.
func NewCSSEngine() *CSSEngine { return &CSSEngine{} }

// Scheme implements Engine.
func (CSSEngine) Scheme() string { return CSSScheme }

var simpleID = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Create builds a child-combinator path from root down to target. An
// element with a simple id anchors the path; otherwise each step is the tag
// name, qualified with :nth-of-type when same-tag siblings exist.
func (e CSSEngine) Create(root, target *html.Node) (string, error) {
	if target == nil || target.Type != html.ElementNode {
		return "", errors.New("create: target is not an element")
	}
	if root != nil && !within(root, target) {
		return "", errors.New("create: target is outside root")
	}

	var steps []string
	n := target
	for ; n != nil && n != root && n.Type == html.ElementNode; n = n.Parent {
		if id := attrVal(n, "id"); simpleID.MatchString(id) {
			steps = append(steps, "#"+id)
			break
		}
		steps = append(steps, cssStep(n))
	}

	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return CSSScheme + "=" + strings.Join(steps, " > "), nil
}

// Query implements Engine.
func (e CSSEngine) Query(root *html.Node, expr string) (*html.Node, error) {
	sel, err := e.compile(expr)
	if err != nil || root == nil {
		return nil, err
	}
	return sel.MatchFirst(root), nil
}

// QueryAll implements Engine.
func (e CSSEngine) QueryAll(root *html.Node, expr string) ([]*html.Node, error) {
	sel, err := e.compile(expr)
	if err != nil || root == nil {
		return nil, err
	}
	return sel.MatchAll(root), nil
}

func (CSSEngine) compile(expr string) (cascadia.Selector, error) {
	body := StripPrefixes(expr, CSSScheme)
	if body == "" {
		return nil, malformed(expr, fmt.Errorf("empty expression"))
	}
	sel, err := cascadia.Compile(body)
	if err != nil {
		return nil, malformed(body, err)
	}
	return sel, nil
}

// cssStep renders one path step, counting same-tag element siblings.
func cssStep(n *html.Node) string {
	tag := strings.ToLower(n.Data)
	if n.Parent == nil {
		return tag
	}
	idx, total := 0, 0
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if s.Type != html.ElementNode || s.Data != n.Data {
			continue
		}
		total++
		if s == n {
			idx = total
		}
	}
	if total > 1 {
		return fmt.Sprintf("%s:nth-of-type(%d)", tag, idx)
	}
	return tag
}

func within(root, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
