// CLAUDE:SUMMARY Resilient XPath engine: creates union locators via the candidate generator, evaluates first-matching candidate.
// CLAUDE:DEPENDS locator, snapshot
// CLAUDE:EXPORTS XPathEngine, NewXPathEngine, Match
package selector

import (
	"fmt"
	"sort"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/hazyhaar/relocator/locator"
	"github.com/hazyhaar/relocator/snapshot"
)

// DefaultScheme is the prefix of the resilient engine.
const DefaultScheme = "resloc"

// XPathEngine evaluates union locators. Candidates are tried in priority
// order and the first one with at least one match wins.
type XPathEngine struct {
	scheme string
	gen    *locator.Generator
}

// NewXPathEngine creates an engine registered under scheme. A nil gen uses
// the default generator settings.
func NewXPathEngine(scheme string, gen *locator.Generator) *XPathEngine {
	if scheme == "" {
		scheme = DefaultScheme
	}
	if gen == nil {
		gen = locator.NewGenerator()
	}
	return &XPathEngine{scheme: scheme, gen: gen}
}

// Scheme implements Engine.
func (e *XPathEngine) Scheme() string { return e.scheme }

// Generator returns the candidate generator used by Create.
func (e *XPathEngine) Generator() *locator.Generator { return e.gen }

// Create snapshots target (with its ancestors up to root) and serialises the
// generated union with the engine prefix.
func (e *XPathEngine) Create(root, target *html.Node) (string, error) {
	snap, err := snapshot.FromNode(target, root)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	return e.Prefix(e.gen.Generate(snap)), nil
}

// Prefix serialises u as an expression routed to this engine.
func (e *XPathEngine) Prefix(u locator.Union) string {
	return e.scheme + "=" + u.String()
}

// Query implements Engine.
func (e *XPathEngine) Query(root *html.Node, expr string) (*html.Node, error) {
	m, err := e.Match(root, expr)
	if err != nil || len(m.Nodes) == 0 {
		return nil, err
	}
	return m.Nodes[0], nil
}

// QueryAll implements Engine.
func (e *XPathEngine) QueryAll(root *html.Node, expr string) ([]*html.Node, error) {
	m, err := e.Match(root, expr)
	if err != nil {
		return nil, err
	}
	return m.Nodes, nil
}

// Match is the result of evaluating a union: the winning candidate and its
// matches in document order. Index is -1 when nothing matched.
type Match struct {
	Index      int
	Expression string
	Nodes      []*html.Node
}

// Match evaluates expr and reports which candidate matched. Every candidate
// is compiled before evaluation so a malformed member fails the call even
// when an earlier member would match.
func (e *XPathEngine) Match(root *html.Node, expr string) (Match, error) {
	body := StripPrefixes(expr, e.scheme, GenericScheme)
	if body == "" {
		return Match{Index: -1}, malformed(expr, fmt.Errorf("empty expression"))
	}
	parts, err := SplitUnion(body)
	if err != nil {
		return Match{Index: -1}, err
	}

	compiled := make([]*xpath.Expr, len(parts))
	for i, p := range parts {
		c, err := xpath.Compile(p)
		if err != nil {
			return Match{Index: -1}, malformed(p, err)
		}
		compiled[i] = c
	}

	if root == nil {
		return Match{Index: -1}, nil
	}
	order := documentOrder(root)
	for i, c := range compiled {
		nodes, err := evaluate(root, c, parts[i], order)
		if err != nil {
			return Match{Index: -1}, err
		}
		if len(nodes) > 0 {
			return Match{Index: i, Expression: parts[i], Nodes: nodes}, nil
		}
	}
	return Match{Index: -1}, nil
}

// evaluate selects element nodes inside root, deduplicated and sorted in
// document order. Results that are not elements of root's subtree (attribute
// or text selections) are dropped.
func evaluate(root *html.Node, c *xpath.Expr, src string, order map[*html.Node]int) (nodes []*html.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			nodes, err = nil, malformed(src, fmt.Errorf("evaluate: %v", r))
		}
	}()

	seen := make(map[*html.Node]bool)
	for _, n := range htmlquery.QuerySelectorAll(root, c) {
		if n == nil || n.Type != html.ElementNode || seen[n] {
			continue
		}
		if _, ok := order[n]; !ok {
			continue
		}
		seen[n] = true
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return order[nodes[i]] < order[nodes[j]] })
	return nodes, nil
}

func documentOrder(root *html.Node) map[*html.Node]int {
	order := make(map[*html.Node]int)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		order[n] = len(order)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return order
}
