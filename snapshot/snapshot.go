// CLAUDE:SUMMARY ElementSnapshot: immutable capture of one DOM element with lookup-only parent/sibling links.
// Package snapshot captures DOM elements into immutable records consumed by
// the candidate generator and the self-heal diagnosis.
//
// A snapshot links to its parent and to its previous element sibling. Both
// links are lookups into other snapshots captured at the same time; they
// point child→parent and current→previous only, so the graph never cycles.
package snapshot

import (
	"errors"
	"strings"

	"golang.org/x/net/html"
)

// ErrNotElement is returned by FromNode when the node is not an element.
var ErrNotElement = errors.New("snapshot: node is not an element")

// ErrOutsideRoot is returned by FromNode when the node is not a descendant of root.
var ErrOutsideRoot = errors.New("snapshot: node is outside root")

// ElementSnapshot is one DOM element at capture time. Never mutated after
// construction; a later capture produces a new snapshot.
type ElementSnapshot struct {
	Tag       string `json:"tag"`
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`
	ClassName string `json:"class_name,omitempty"`
	AriaLabel string `json:"aria_label,omitempty"`
	Title     string `json:"title,omitempty"`
	Role      string `json:"role,omitempty"`

	Parent          *ElementSnapshot `json:"parent,omitempty"`
	PreviousSibling *ElementSnapshot `json:"previous_sibling,omitempty"`
}

// Ancestors returns the parent chain, nearest first.
func (s *ElementSnapshot) Ancestors() []*ElementSnapshot {
	var out []*ElementSnapshot
	for p := s.Parent; p != nil; p = p.Parent {
		out = append(out, p)
	}
	return out
}

// HasIdentity reports whether the snapshot carries any of id, class,
// aria-label or title after trimming.
func (s *ElementSnapshot) HasIdentity() bool {
	return strings.TrimSpace(s.ID) != "" ||
		strings.TrimSpace(s.ClassName) != "" ||
		strings.TrimSpace(s.AriaLabel) != "" ||
		strings.TrimSpace(s.Title) != ""
}

// FromNode captures n and its ancestor chain up to root. Ancestors above
// root are not captured. The previous element sibling is captured without
// its own sibling link, sharing n's parent snapshot.
func FromNode(n, root *html.Node) (*ElementSnapshot, error) {
	if n == nil || n.Type != html.ElementNode {
		return nil, ErrNotElement
	}
	if root != nil && !contains(root, n) {
		return nil, ErrOutsideRoot
	}

	var parent *ElementSnapshot
	if n != root {
		parent = captureChain(n.Parent, root)
	}

	snap := capture(n)
	snap.Parent = parent
	if prev := previousElement(n); prev != nil && n != root {
		ps := capture(prev)
		ps.Parent = parent
		snap.PreviousSibling = ps
	}
	return snap, nil
}

// captureChain captures n and its ancestors, stopping after root.
func captureChain(n, root *html.Node) *ElementSnapshot {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	s := capture(n)
	if n != root {
		s.Parent = captureChain(n.Parent, root)
	}
	return s
}

func capture(n *html.Node) *ElementSnapshot {
	return &ElementSnapshot{
		Tag:       strings.ToLower(n.Data),
		Text:      NormalizeText(StringValue(n)),
		ID:        attr(n, "id"),
		ClassName: attr(n, "class"),
		AriaLabel: attr(n, "aria-label"),
		Title:     attr(n, "title"),
		Role:      attr(n, "role"),
	}
}

func previousElement(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func contains(root, n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c == root {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}
