package heal

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"github.com/hazyhaar/relocator/locator"
)

// Resolution sources.
const (
	SourceCache = "cache"
	SourceUnion = "union"
	SourceHeal  = "heal"
)

// ResolveRequest asks for the element behind a logical key on the current
// page.
type ResolveRequest struct {
	LogicalKey string
	// Union is the generated baseline, used only when the key has no cache
	// entry yet.
	Union locator.Union
	// Expression is a serialised baseline used when Union is empty.
	Expression   string
	ExecutionLog string
	// Root is the current DOM. When nil the coordinator asks its Crawler.
	Root *html.Node
}

// Resolution is the element found and how it was found.
type Resolution struct {
	Node       *html.Node
	Expression string
	Source     string
	Outcome    *Outcome
}

// Resolve runs the read path. The current cache entry is tried first; if it
// no longer matches, the key is healed rather than falling back to the
// generated union. A key with no entry tries the union, then heals.
func (c *Coordinator) Resolve(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	if req.LogicalKey == "" {
		return nil, fmt.Errorf("heal: resolve: missing logical key")
	}
	root := req.Root
	if root == nil {
		_, crawler := c.collaborators()
		if crawler == nil {
			return nil, ErrNoCrawler
		}
		var err error
		if root, err = crawler.Snapshot(ctx); err != nil {
			return nil, fmt.Errorf("heal: resolve: crawl: %w", err)
		}
	}

	cur, err := c.cache.Current(ctx, req.LogicalKey)
	if err != nil {
		return nil, err
	}

	var expr, source string
	switch {
	case cur != nil:
		expr, source = cur.Expression, SourceCache
	case len(req.Union.Candidates) > 0:
		expr, source = req.Union.String(), SourceUnion
	case req.Expression != "":
		expr, source = req.Expression, SourceUnion
	default:
		return nil, fmt.Errorf("heal: resolve %s: no cache entry and no baseline", req.LogicalKey)
	}

	log := c.logger.With("key", req.LogicalKey, "source", source)
	nodes, err := c.eval.QueryAll(root, expr)
	if err == nil && len(nodes) > 0 {
		return &Resolution{Node: nodes[0], Expression: expr, Source: source}, nil
	}
	if err != nil {
		log.Warn("heal: resolve: expression rejected by evaluator", "expression", expr, "error", err)
	}

	out, err := c.Heal(ctx, Failure{
		LogicalKey:   req.LogicalKey,
		Expression:   expr,
		ExecutionLog: req.ExecutionLog,
		Union:        req.Union,
		Root:         root,
	})
	res := &Resolution{Source: SourceHeal, Outcome: out}
	if err != nil {
		return res, err
	}
	res.Expression = out.Expression
	nodes, err = c.eval.QueryAll(root, out.Expression)
	if err != nil {
		return res, err
	}
	if len(nodes) == 0 {
		// Only reachable when a concurrent winner's expression does not
		// match this page.
		return res, fmt.Errorf("%w: %s: adopted expression matches nothing", ErrHealExhausted, req.LogicalKey)
	}
	res.Node = nodes[0]
	return res, nil
}

// IsRunFailure reports whether err must fail the calling run.
func IsRunFailure(err error) bool {
	return errors.Is(err, ErrHealExhausted)
}
