// CLAUDE:SUMMARY Engine interface, MalformedError, and the scheme-name Registry routing expressions to engines.
// CLAUDE:DEPENDS (none)
// CLAUDE:EXPORTS Engine, Registry, NewRegistry, MalformedError, ErrMalformedExpression
// Package selector evaluates scheme-prefixed locator expressions against a
// parsed DOM.
//
// Several engines coexist behind a Registry keyed by scheme name. An
// expression "<scheme>=<body>" is routed to the engine registered under
// scheme; unprefixed expressions and the generic "xpath=" prefix go to the
// default engine. Engines hold no state across calls and are safe for
// concurrent use.
package selector

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// GenericScheme is the structural-query prefix reserved by the host query
// language. No engine may register under it.
const GenericScheme = "xpath"

var (
	// ErrMalformedExpression is matched by every *MalformedError.
	ErrMalformedExpression = errors.New("selector: malformed expression")

	ErrInvalidScheme   = errors.New("selector: scheme must be a non-empty alphabetic token")
	ErrDuplicateScheme = errors.New("selector: scheme already registered")
	ErrUnknownScheme   = errors.New("selector: unknown scheme")
	ErrNoDefault       = errors.New("selector: no default engine")
)

// MalformedError reports an expression the evaluator could not parse.
type MalformedError struct {
	Expression string
	Err        error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("selector: malformed expression %q: %v", e.Expression, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMalformedExpression) hold for any MalformedError.
func (e *MalformedError) Is(target error) bool { return target == ErrMalformedExpression }

func malformed(expr string, err error) error {
	return &MalformedError{Expression: expr, Err: err}
}

// Engine is one query scheme. Query and QueryAll return an empty result,
// not an error, when nothing matches.
type Engine interface {
	// Scheme returns the prefix token routed to this engine.
	Scheme() string
	// Create returns a scheme-prefixed expression locating target under root.
	Create(root, target *html.Node) (string, error)
	// Query returns the first match in document order, or nil.
	Query(root *html.Node, expr string) (*html.Node, error)
	// QueryAll returns every match in document order.
	QueryAll(root *html.Node, expr string) ([]*html.Node, error)
}

// Registry is a scheme-name lookup table over engines.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
	def     string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]Engine)}
}

// Register adds e under e.Scheme(). The first registered engine becomes the
// default until SetDefault is called.
func (r *Registry) Register(e Engine) error {
	scheme := e.Scheme()
	if !validScheme(scheme) || scheme == GenericScheme {
		return fmt.Errorf("%w: %q", ErrInvalidScheme, scheme)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[scheme]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateScheme, scheme)
	}
	r.engines[scheme] = e
	if r.def == "" {
		r.def = scheme
	}
	return nil
}

// SetDefault selects the engine used for unprefixed expressions.
func (r *Registry) SetDefault(scheme string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[scheme]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	r.def = scheme
	return nil
}

// Lookup returns the engine registered under scheme.
func (r *Registry) Lookup(scheme string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[scheme]
	return e, ok
}

// Default returns the default engine.
func (r *Registry) Default() (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.def == "" {
		return nil, ErrNoDefault
	}
	return r.engines[r.def], nil
}

// Schemes lists registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.engines))
	for s := range r.engines {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Route picks the engine for expr by its scheme prefix. A prefix that is
// not registered is treated as part of the expression body.
func (r *Registry) Route(expr string) (Engine, error) {
	if scheme, ok := schemeOf(expr); ok && scheme != GenericScheme {
		if e, found := r.Lookup(scheme); found {
			return e, nil
		}
	}
	return r.Default()
}

// Create delegates to the engine registered under scheme.
func (r *Registry) Create(scheme string, root, target *html.Node) (string, error) {
	e, ok := r.Lookup(scheme)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	return e.Create(root, target)
}

// Query routes expr and returns the first match.
func (r *Registry) Query(root *html.Node, expr string) (*html.Node, error) {
	e, err := r.Route(expr)
	if err != nil {
		return nil, err
	}
	return e.Query(root, expr)
}

// QueryAll routes expr and returns every match.
func (r *Registry) QueryAll(root *html.Node, expr string) ([]*html.Node, error) {
	e, err := r.Route(expr)
	if err != nil {
		return nil, err
	}
	return e.QueryAll(root, expr)
}

// schemeOf extracts a leading "<alpha>=" token.
func schemeOf(expr string) (string, bool) {
	expr = strings.TrimLeft(expr, " \t\n")
	i := strings.IndexByte(expr, '=')
	if i <= 0 {
		return "", false
	}
	if !validScheme(expr[:i]) {
		return "", false
	}
	return expr[:i], true
}

func validScheme(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
