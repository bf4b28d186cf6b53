// CLAUDE:SUMMARY Strategy enum, Candidate and Union types with first-seen deduplication.
package locator

import (
	"errors"
	"strings"
)

// ErrNoCandidate signals a union that holds only the tag fallback. It is a
// low-confidence warning, never a failure.
var ErrNoCandidate = errors.New("locator: no structural candidate")

// Strategy names how a candidate was produced. Values are ordered by
// generation priority.
type Strategy int

const (
	ExactText Strategy = iota
	AriaLabel
	Title
	IDPrefix
	ClassName
	ParentScoped
	SiblingFollowing
	TagFallback
)

var strategyNames = [...]string{
	ExactText:        "exact_text",
	AriaLabel:        "aria_label",
	Title:            "title",
	IDPrefix:         "id_prefix",
	ClassName:        "class_name",
	ParentScoped:     "parent_scoped",
	SiblingFollowing: "sibling_following",
	TagFallback:      "tag_fallback",
}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return "unknown"
	}
	return strategyNames[s]
}

// MarshalText encodes the strategy by name.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a strategy name.
func (s *Strategy) UnmarshalText(b []byte) error {
	for i, n := range strategyNames {
		if n == string(b) {
			*s = Strategy(i)
			return nil
		}
	}
	return errors.New("locator: unknown strategy " + string(b))
}

// Candidate is one synthesized locator expression.
type Candidate struct {
	Expression string   `json:"expression"`
	Strategy   Strategy `json:"strategy"`
	// Scope is the ancestor expression of a ParentScoped candidate, empty otherwise.
	Scope string `json:"scope,omitempty"`
}

// Union is the ranked, deduplicated candidate set for one element.
// A Union produced by Generate is never empty.
type Union struct {
	Candidates []Candidate `json:"candidates"`
}

// Expressions returns the candidate expressions in priority order.
func (u Union) Expressions() []string {
	out := make([]string, len(u.Candidates))
	for i, c := range u.Candidates {
		out[i] = c.Expression
	}
	return out
}

// String joins the candidates with the XPath alternation operator.
func (u Union) String() string {
	return strings.Join(u.Expressions(), " | ")
}

// LowConfidence reports whether the tag fallback is the only candidate.
func (u Union) LowConfidence() bool {
	return len(u.Candidates) == 1 && u.Candidates[0].Strategy == TagFallback
}

// Has reports whether a candidate of the given strategy is present.
func (u Union) Has(s Strategy) bool {
	_, ok := u.Find(s)
	return ok
}

// Find returns the first candidate produced by strategy s.
func (u Union) Find(s Strategy) (Candidate, bool) {
	for _, c := range u.Candidates {
		if c.Strategy == s {
			return c, true
		}
	}
	return Candidate{}, false
}

// Dedupe drops candidates whose expression was already seen. The first
// occurrence keeps its position and strategy.
func Dedupe(cands []Candidate) []Candidate {
	seen := make(map[string]bool, len(cands))
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if seen[c.Expression] {
			continue
		}
		seen[c.Expression] = true
		out = append(out, c)
	}
	return out
}
