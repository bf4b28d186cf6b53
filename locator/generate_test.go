package locator

import (
	"reflect"
	"strings"
	"testing"

	"github.com/hazyhaar/relocator/snapshot"
	"pgregory.net/rapid"
)

func strategies(u Union) []Strategy {
	out := make([]Strategy, len(u.Candidates))
	for i, c := range u.Candidates {
		out[i] = c.Strategy
	}
	return out
}

func TestGenerate_SupplierExample(t *testing.T) {
	// WHAT: aria-label and delimited id give AriaLabel, IdPrefix, then the tag fallback.
	// WHY: reference example; ExactText/Title/ClassName/ParentScoped are absent.
	u := Generate(&snapshot.ElementSnapshot{Tag: "input", AriaLabel: "Supplier Name", ID: "sup:123:name"})

	want := []string{
		`//input[@aria-label='Supplier Name']`,
		`//*[starts-with(@id,'sup')]`,
		`//input`,
	}
	if got := u.Expressions(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expressions:\n got %q\nwant %q", got, want)
	}
	if got := strategies(u); !reflect.DeepEqual(got, []Strategy{AriaLabel, IDPrefix, TagFallback}) {
		t.Errorf("strategies: got %v", got)
	}
	if u.LowConfidence() {
		t.Error("should not be low confidence")
	}
}

func TestGenerate_TagOnly(t *testing.T) {
	u := Generate(&snapshot.ElementSnapshot{Tag: "DIV"})
	if len(u.Candidates) != 1 {
		t.Fatalf("candidates: got %d, want 1", len(u.Candidates))
	}
	if u.Candidates[0].Strategy != TagFallback || u.Candidates[0].Expression != "//div" {
		t.Errorf("got %+v, want tag fallback //div", u.Candidates[0])
	}
	if !u.LowConfidence() {
		t.Error("tag-only union should be low confidence")
	}
}

func TestGenerate_EmptyTag(t *testing.T) {
	u := Generate(&snapshot.ElementSnapshot{})
	if u.String() != "//*" {
		t.Errorf("got %q, want //*", u.String())
	}
}

func TestGenerate_AllStrategies(t *testing.T) {
	form := &snapshot.ElementSnapshot{Tag: "form", ClassName: "checkout main"}
	label := &snapshot.ElementSnapshot{Tag: "label", Text: "Tax Country", Parent: form}
	snap := &snapshot.ElementSnapshot{
		Tag:             "button",
		Text:            "  Save   draft ",
		AriaLabel:       " Save ",
		Title:           "Save the draft",
		ID:              "btn:42",
		ClassName:       "  primary large",
		Parent:          form,
		PreviousSibling: label,
	}

	u := Generate(snap)
	want := []Candidate{
		{Strategy: ExactText, Expression: `//button[normalize-space(.)='Save draft']`},
		{Strategy: AriaLabel, Expression: `//button[@aria-label='Save']`},
		{Strategy: Title, Expression: `//button[@title='Save the draft']`},
		{Strategy: IDPrefix, Expression: `//*[starts-with(@id,'btn')]`},
		{Strategy: ClassName, Expression: `//button[contains(concat(' ',normalize-space(@class),' '),' primary ')]`},
		{Strategy: ParentScoped, Expression: `//form[contains(concat(' ',normalize-space(@class),' '),' checkout ')]//button`,
			Scope: `//form[contains(concat(' ',normalize-space(@class),' '),' checkout ')]`},
		{Strategy: SiblingFollowing, Expression: `//label[normalize-space(.)='Tax Country']/following::button[1]`},
		{Strategy: TagFallback, Expression: `//button`},
	}
	if !reflect.DeepEqual(u.Candidates, want) {
		for i := range u.Candidates {
			t.Logf("%d: %+v", i, u.Candidates[i])
		}
		t.Fatal("candidates mismatch")
	}
}

func TestGenerate_QuotedText(t *testing.T) {
	u := Generate(&snapshot.ElementSnapshot{Tag: "a", Text: `Don't "click"`})
	c, ok := u.Find(ExactText)
	if !ok {
		t.Fatal("missing ExactText")
	}
	want := `//a[normalize-space(.)=concat('Don', "'", 't "click"')]`
	if c.Expression != want {
		t.Errorf("got %s, want %s", c.Expression, want)
	}
}

func TestGenerate_IDWithoutDelimiter(t *testing.T) {
	// WHAT: an id without a structural delimiter yields no IdPrefix candidate.
	// WHY: only delimited ids carry a recognisable volatile suffix.
	u := Generate(&snapshot.ElementSnapshot{Tag: "input", ID: "email"})
	if u.Has(IDPrefix) {
		t.Error("undelimited id should not produce IdPrefix")
	}
	u = Generate(&snapshot.ElementSnapshot{Tag: "input", ID: ":r1:"})
	if u.Has(IDPrefix) {
		t.Error("blank prefix should not produce IdPrefix")
	}
}

func TestGenerate_CustomDelimiters(t *testing.T) {
	g := NewGenerator(WithDelimiters("_-"))
	u := g.Generate(&snapshot.ElementSnapshot{Tag: "div", ID: "row-17_cell"})
	c, ok := u.Find(IDPrefix)
	if !ok || c.Expression != `//*[starts-with(@id,'row')]` {
		t.Errorf("got %+v", c)
	}
}

func TestGenerate_ParentScopedNearestAncestor(t *testing.T) {
	// WHAT: the nearest ancestor with identity is used, one level only.
	// WHY: bounds expression cost; outer ancestors never stack.
	outer := &snapshot.ElementSnapshot{Tag: "section", ID: "main"}
	plain := &snapshot.ElementSnapshot{Tag: "div", Parent: outer}
	inner := &snapshot.ElementSnapshot{Tag: "fieldset", Title: "Billing", ID: "fs:9", Parent: plain}
	snap := &snapshot.ElementSnapshot{Tag: "input", Parent: inner}

	c, ok := Generate(snap).Find(ParentScoped)
	if !ok {
		t.Fatal("missing ParentScoped")
	}
	if c.Expression != `//fieldset[@title='Billing']//input` {
		t.Errorf("got %s", c.Expression)
	}

	snap = &snapshot.ElementSnapshot{Tag: "input", Parent: plain}
	c, _ = Generate(snap).Find(ParentScoped)
	if c.Expression != `//section[@id='main']//input` {
		t.Errorf("undelimited id ancestor: got %s", c.Expression)
	}
}

func TestGenerate_SiblingWithoutText(t *testing.T) {
	sib := &snapshot.ElementSnapshot{Tag: "span", Text: "   "}
	u := Generate(&snapshot.ElementSnapshot{Tag: "input", PreviousSibling: sib})
	if u.Has(SiblingFollowing) {
		t.Error("blank sibling text should not produce SiblingFollowing")
	}
}

func TestDedupe_FirstSeenWins(t *testing.T) {
	in := []Candidate{
		{Expression: "//a", Strategy: IDPrefix},
		{Expression: "//b", Strategy: ClassName},
		{Expression: "//a", Strategy: ClassName},
		{Expression: "//c", Strategy: TagFallback},
		{Expression: "//b", Strategy: TagFallback},
	}
	got := Dedupe(in)
	want := []Candidate{
		{Expression: "//a", Strategy: IDPrefix},
		{Expression: "//b", Strategy: ClassName},
		{Expression: "//c", Strategy: TagFallback},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v", got)
	}
}

func randomSnapshot(rt *rapid.T) *snapshot.ElementSnapshot {
	str := rapid.StringOf(rapid.SampledFrom([]rune{'a', ' ', ':', '\'', '"', 'x'}))
	tag := rapid.SampledFrom([]string{"div", "input", "span", ""})
	s := &snapshot.ElementSnapshot{
		Tag:       tag.Draw(rt, "tag"),
		Text:      str.Draw(rt, "text"),
		ID:        str.Draw(rt, "id"),
		ClassName: str.Draw(rt, "class"),
		AriaLabel: str.Draw(rt, "aria"),
		Title:     str.Draw(rt, "title"),
	}
	if rapid.Bool().Draw(rt, "parent") {
		s.Parent = &snapshot.ElementSnapshot{Tag: tag.Draw(rt, "ptag"), ClassName: str.Draw(rt, "pclass")}
	}
	if rapid.Bool().Draw(rt, "sibling") {
		s.PreviousSibling = &snapshot.ElementSnapshot{Tag: tag.Draw(rt, "stag"), Text: str.Draw(rt, "stext"), Parent: s.Parent}
	}
	return s
}

func TestGenerate_DeterministicProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		snap := randomSnapshot(rt)
		a := Generate(snap)
		b := Generate(snap)
		if a.String() != b.String() || !reflect.DeepEqual(a, b) {
			rt.Fatalf("non-deterministic:\n%s\n%s", a, b)
		}
	})
}

func TestGenerate_NeverEmptyProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		u := Generate(randomSnapshot(rt))
		if len(u.Candidates) == 0 {
			rt.Fatal("empty union")
		}
		last := u.Candidates[len(u.Candidates)-1]
		if last.Strategy != TagFallback {
			rt.Fatalf("last candidate: got %s, want tag_fallback", last.Strategy)
		}
		for i := 1; i < len(u.Candidates); i++ {
			if u.Candidates[i].Strategy <= u.Candidates[i-1].Strategy {
				rt.Fatalf("priority order broken at %d: %v", i, strategies(u))
			}
		}
	})
}

func TestGenerate_NoDuplicatesProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seen := map[string]bool{}
		for _, e := range Generate(randomSnapshot(rt)).Expressions() {
			if seen[e] {
				rt.Fatalf("duplicate expression %s", e)
			}
			seen[e] = true
		}
	})
}

func TestUnion_String(t *testing.T) {
	u := Union{Candidates: []Candidate{{Expression: "//a"}, {Expression: "//b"}}}
	if got := u.String(); got != "//a | //b" {
		t.Errorf("got %q", got)
	}
}

func TestStrategy_TextRoundTrip(t *testing.T) {
	for s := ExactText; s <= TagFallback; s++ {
		b, _ := s.MarshalText()
		var got Strategy
		if err := got.UnmarshalText(b); err != nil || got != s {
			t.Errorf("%s: got %v err %v", s, got, err)
		}
	}
	var bad Strategy
	if err := bad.UnmarshalText([]byte("nope")); err == nil || !strings.Contains(err.Error(), "unknown") {
		t.Errorf("expected unknown strategy error, got %v", err)
	}
}

func TestLogicalKey(t *testing.T) {
	a := LogicalKey(&snapshot.ElementSnapshot{Tag: "input", ID: "sup:123:name"})
	b := LogicalKey(&snapshot.ElementSnapshot{Tag: "input", ID: "sup:999:name"})
	if a != "id:sup" || a != b {
		t.Errorf("id prefix keys: %q %q, want id:sup", a, b)
	}

	if got := LogicalKey(&snapshot.ElementSnapshot{Tag: "input", ID: "email"}); got != "id:email" {
		t.Errorf("plain id: got %q", got)
	}

	h1 := LogicalKey(&snapshot.ElementSnapshot{Tag: "button", AriaLabel: "Save", Role: "button"})
	h2 := LogicalKey(&snapshot.ElementSnapshot{Tag: "button", AriaLabel: "Save", Role: "button", ClassName: "new"})
	h3 := LogicalKey(&snapshot.ElementSnapshot{Tag: "button", AriaLabel: "Cancel", Role: "button"})
	if !strings.HasPrefix(h1, "h:") || len(h1) != 18 {
		t.Errorf("hash key shape: %q", h1)
	}
	if h1 != h2 {
		t.Error("class changes should not change the hash key")
	}
	if h1 == h3 {
		t.Error("different names should differ")
	}
}
