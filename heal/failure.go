package heal

import (
	"context"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/hazyhaar/relocator/internal/store"
	"github.com/hazyhaar/relocator/locator"
)

// Failure describes a logical element whose expression stopped matching.
type Failure struct {
	LogicalKey string
	// Expression is the expression that yielded zero matches.
	Expression   string
	ExecutionLog string
	// Union is the originally generated locator, if known. Its ParentScoped
	// candidate narrows the diagnosis snapshot.
	Union locator.Union
	// Root is a fresh DOM already pulled by the caller. When nil the
	// coordinator asks its Crawler.
	Root *html.Node
}

// Rejection records a proposal that did not validate.
type Rejection struct {
	Expression string `json:"expression"`
	Reason     string `json:"reason"`
}

// FailureContext is what the decision function receives.
type FailureContext struct {
	LogicalKey          string      `json:"logical_key"`
	LastKnownExpression string      `json:"last_known_expression"`
	ExecutionLog        string      `json:"execution_log,omitempty"`
	Snapshot            string      `json:"snapshot"`
	History             []string    `json:"history,omitempty"`
	Attempt             int         `json:"attempt"`
	Rejected            []Rejection `json:"rejected,omitempty"`

	// Root is the diagnosis scope in the fresh DOM. Read-only.
	Root *html.Node `json:"-"`
}

func (fc *FailureContext) clone() *FailureContext {
	c := *fc
	c.History = append([]string(nil), fc.History...)
	c.Rejected = append([]Rejection(nil), fc.Rejected...)
	return &c
}

// Proposer is the external decision function. It returns one replacement
// expression, or "" / ErrNoProposal when it has none. It must not retry
// internally; the coordinator owns the retry policy.
type Proposer func(ctx context.Context, fc *FailureContext) (string, error)

// Crawler pulls the current DOM of the page under automation.
type Crawler interface {
	Snapshot(ctx context.Context) (*html.Node, error)
}

// CrawlerFunc adapts a function to Crawler.
type CrawlerFunc func(ctx context.Context) (*html.Node, error)

// Snapshot implements Crawler.
func (f CrawlerFunc) Snapshot(ctx context.Context) (*html.Node, error) { return f(ctx) }

// Cache is the locator cache as seen by the coordinator.
type Cache interface {
	Current(ctx context.Context, key string) (*store.Entry, error)
	History(ctx context.Context, key string) ([]*store.Entry, error)
	Append(ctx context.Context, key, expr, replaced, expectCurrentID string) (*store.Entry, error)
}

// Evaluator resolves expressions against a DOM, typically a
// *selector.Registry.
type Evaluator interface {
	QueryAll(root *html.Node, expr string) ([]*html.Node, error)
}

// Policy bounds one heal cycle.
type Policy struct {
	// MaxRetries is the number of extra proposals after the first.
	MaxRetries      int           `yaml:"max_retries"`
	ProposalTimeout time.Duration `yaml:"proposal_timeout"`
	LogExcerptBytes int           `yaml:"log_excerpt_bytes"`
	SnapshotBytes   int           `yaml:"snapshot_bytes"`
}

// DefaultPolicy returns one retry, a 30s proposal timeout and 4 KiB / 32 KiB
// excerpt budgets.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      1,
		ProposalTimeout: 30 * time.Second,
		LogExcerptBytes: 4 << 10,
		SnapshotBytes:   32 << 10,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.ProposalTimeout <= 0 {
		p.ProposalTimeout = d.ProposalTimeout
	}
	if p.LogExcerptBytes <= 0 {
		p.LogExcerptBytes = d.LogExcerptBytes
	}
	if p.SnapshotBytes <= 0 {
		p.SnapshotBytes = d.SnapshotBytes
	}
	return p
}

// tail keeps the last n bytes of s on a rune boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	for len(s) > 0 && !utf8.RuneStart(s[0]) {
		s = s[1:]
	}
	return s
}
