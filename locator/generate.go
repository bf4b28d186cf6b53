// CLAUDE:SUMMARY Deterministic multi-strategy candidate generator producing a never-empty Union per snapshot.
// CLAUDE:DEPENDS snapshot
// CLAUDE:EXPORTS Generator, NewGenerator, Generate
// Package locator synthesizes ranked XPath locator candidates for a DOM
// element snapshot.
//
// Candidates are produced in a fixed priority order, one per strategy at
// most, then deduplicated by expression. A bare tag candidate closes every
// union so it is never empty.
package locator

import (
	"log/slog"
	"strings"

	"github.com/hazyhaar/relocator/snapshot"
)

// DefaultDelimiters separates the stable part of a generated id from its
// volatile instance suffix ("sup:123:name" → "sup").
const DefaultDelimiters = ":"

// Generator builds Unions. The zero value is not usable; call NewGenerator.
type Generator struct {
	delimiters string
	logger     *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithDelimiters sets the characters treated as id structure delimiters.
func WithDelimiters(d string) Option { return func(g *Generator) { g.delimiters = d } }

// WithLogger sets the logger used for low-confidence warnings.
func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.logger = l } }

// NewGenerator creates a Generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{delimiters: DefaultDelimiters}
	for _, o := range opts {
		o(g)
	}
	if g.delimiters == "" {
		g.delimiters = DefaultDelimiters
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

var defaultGenerator = NewGenerator()

// Generate runs the default generator.
func Generate(snap *snapshot.ElementSnapshot) Union {
	return defaultGenerator.Generate(snap)
}

// Generate returns the ranked candidates for snap.
func (g *Generator) Generate(snap *snapshot.ElementSnapshot) Union {
	tag := tagName(snap.Tag)

	var cands []Candidate
	add := func(s Strategy, expr, scope string) {
		if expr != "" {
			cands = append(cands, Candidate{Expression: expr, Strategy: s, Scope: scope})
		}
	}

	if text := snapshot.NormalizeText(snap.Text); text != "" {
		add(ExactText, "//"+tag+"[normalize-space(.)="+Literal(text)+"]", "")
	}
	if v := strings.TrimSpace(snap.AriaLabel); v != "" {
		add(AriaLabel, "//"+tag+"[@aria-label="+Literal(v)+"]", "")
	}
	if v := strings.TrimSpace(snap.Title); v != "" {
		add(Title, "//"+tag+"[@title="+Literal(v)+"]", "")
	}
	if p, ok := g.idPrefix(snap.ID); ok {
		add(IDPrefix, "//*[starts-with(@id,"+Literal(p)+")]", "")
	}
	if tok := firstClass(snap.ClassName); tok != "" {
		add(ClassName, "//"+tag+"["+classCond(tok)+"]", "")
	}
	if scope := g.ancestorScope(snap); scope != "" {
		add(ParentScoped, scope+"//"+tag, scope)
	}
	if sib := snap.PreviousSibling; sib != nil {
		if text := snapshot.NormalizeText(sib.Text); text != "" {
			add(SiblingFollowing, "//"+tagName(sib.Tag)+"[normalize-space(.)="+Literal(text)+"]/following::"+tag+"[1]", "")
		}
	}
	add(TagFallback, "//"+tag, "")

	u := Union{Candidates: Dedupe(cands)}
	if u.LowConfidence() {
		g.logger.Warn("locator: tag fallback only", "tag", tag, "signal", ErrNoCandidate)
	}
	return u
}

// ancestorScope builds the //atag[cond] expression for the nearest ancestor
// carrying an identity attribute. Only that one ancestor is used.
func (g *Generator) ancestorScope(snap *snapshot.ElementSnapshot) string {
	for _, a := range snap.Ancestors() {
		if !a.HasIdentity() {
			continue
		}
		if cond := g.ancestorCond(a); cond != "" {
			return "//" + tagName(a.Tag) + "[" + cond + "]"
		}
	}
	return ""
}

func (g *Generator) ancestorCond(a *snapshot.ElementSnapshot) string {
	if v := strings.TrimSpace(a.AriaLabel); v != "" {
		return "@aria-label=" + Literal(v)
	}
	if v := strings.TrimSpace(a.Title); v != "" {
		return "@title=" + Literal(v)
	}
	if p, ok := g.idPrefix(a.ID); ok {
		return "starts-with(@id," + Literal(p) + ")"
	}
	if v := strings.TrimSpace(a.ID); v != "" {
		return "@id=" + Literal(v)
	}
	if tok := firstClass(a.ClassName); tok != "" {
		return classCond(tok)
	}
	return ""
}

// idPrefix returns the id part before the first delimiter. It reports false
// when the id has no delimiter or the prefix is blank.
func (g *Generator) idPrefix(id string) (string, bool) {
	id = strings.TrimSpace(id)
	i := strings.IndexAny(id, g.delimiters)
	if i < 0 {
		return "", false
	}
	p := strings.TrimSpace(id[:i])
	return p, p != ""
}

// classCond matches a whole class token.
func classCond(tok string) string {
	return "contains(concat(' ',normalize-space(@class),' ')," + Literal(" "+tok+" ") + ")"
}

func firstClass(class string) string {
	if f := strings.Fields(class); len(f) > 0 {
		return f[0]
	}
	return ""
}

func tagName(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return "*"
	}
	return tag
}
