package snapshot

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const formHTML = `<html><body>
<form class="supplier-form" id="form:7">
  <label>Supplier   Name</label>
  <input aria-label="Supplier Name" id="sup:123:name">
  <span><!-- hint -->Tax&nbsp;<b>Country</b></span>
</form>
</body></html>`

func parse(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func find(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := find(c, tag); f != nil {
			return f
		}
	}
	return nil
}

func TestFromNode_Attributes(t *testing.T) {
	doc := parse(t, formHTML)
	input := find(doc, "input")

	snap, err := FromNode(input, doc)
	if err != nil {
		t.Fatalf("FromNode: %v", err)
	}
	if snap.Tag != "input" {
		t.Errorf("Tag: got %q, want input", snap.Tag)
	}
	if snap.AriaLabel != "Supplier Name" {
		t.Errorf("AriaLabel: got %q", snap.AriaLabel)
	}
	if snap.ID != "sup:123:name" {
		t.Errorf("ID: got %q", snap.ID)
	}
	if snap.Text != "" {
		t.Errorf("Text: got %q, want empty", snap.Text)
	}
}

func TestFromNode_ParentChain(t *testing.T) {
	// WHAT: the ancestor chain is captured nearest first, up to html.
	// WHY: ParentScoped candidates walk it to find an anchored ancestor.
	doc := parse(t, formHTML)
	snap, err := FromNode(find(doc, "input"), doc)
	if err != nil {
		t.Fatalf("FromNode: %v", err)
	}
	var tags []string
	for _, a := range snap.Ancestors() {
		tags = append(tags, a.Tag)
	}
	if got := strings.Join(tags, ","); got != "form,body,html" {
		t.Errorf("ancestors: got %s, want form,body,html", got)
	}
	if snap.Parent.ClassName != "supplier-form" {
		t.Errorf("parent class: got %q", snap.Parent.ClassName)
	}
}

func TestFromNode_PreviousSibling(t *testing.T) {
	doc := parse(t, formHTML)
	snap, _ := FromNode(find(doc, "input"), doc)
	if snap.PreviousSibling == nil {
		t.Fatal("expected previous sibling")
	}
	if snap.PreviousSibling.Tag != "label" {
		t.Errorf("sibling tag: got %q", snap.PreviousSibling.Tag)
	}
	if snap.PreviousSibling.Text != "Supplier Name" {
		t.Errorf("sibling text: got %q, want normalized", snap.PreviousSibling.Text)
	}
	if snap.PreviousSibling.Parent != snap.Parent {
		t.Error("sibling should share the parent snapshot")
	}
}

func TestFromNode_TextSkipsComments(t *testing.T) {
	doc := parse(t, formHTML)
	snap, _ := FromNode(find(doc, "span"), doc)
	if snap.Text != "Tax Country" {
		t.Errorf("Text: got %q, want %q", snap.Text, "Tax Country")
	}
}

func TestFromNode_ScopedRoot(t *testing.T) {
	doc := parse(t, formHTML)
	form := find(doc, "form")
	snap, err := FromNode(find(doc, "input"), form)
	if err != nil {
		t.Fatalf("FromNode: %v", err)
	}
	if len(snap.Ancestors()) != 1 {
		t.Errorf("ancestors: got %d, want 1 (form only)", len(snap.Ancestors()))
	}
}

func TestFromNode_Errors(t *testing.T) {
	doc := parse(t, formHTML)
	form := find(doc, "form")

	if _, err := FromNode(doc, nil); !errors.Is(err, ErrNotElement) {
		t.Errorf("document node: got %v, want ErrNotElement", err)
	}
	if _, err := FromNode(find(doc, "body"), form); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("outside root: got %v, want ErrOutsideRoot", err)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"   ", ""},
		{"a", "a"},
		{"  Hello \n\t world  ", "Hello world"},
		{"Tax Country", "Tax Country"},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRender_Truncates(t *testing.T) {
	doc := parse(t, formHTML)
	out := Render(find(doc, "form"), 20)
	if len(out) != 20 {
		t.Errorf("len: got %d, want 20", len(out))
	}
	if !strings.HasPrefix(out, "<form") {
		t.Errorf("prefix: got %q", out)
	}
}

func TestRender_TruncatesOnRuneBoundary(t *testing.T) {
	// WHAT: every byte budget yields a valid UTF-8 prefix of the full render.
	// WHY: truncated snapshots are sent to the proposer and returned as JSON.
	p := find(parse(t, `<p>é€é</p>`), "p")
	full := Render(p, 0)
	for limit := 1; limit < len(full); limit++ {
		out := Render(p, limit)
		if !utf8.ValidString(out) || !strings.HasPrefix(full, out) || len(out) > limit {
			t.Fatalf("limit %d: got %q", limit, out)
		}
	}
	if got := Render(p, 6); got != "<p>é" {
		t.Errorf("limit 6: got %q, want %q", got, "<p>é")
	}
}
