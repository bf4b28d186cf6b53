// CLAUDE:SUMMARY Self-heal coordinator: diagnose, propose, validate (exactly one match), commit with per-key exclusion.
// CLAUDE:DEPENDS internal/store, locator, snapshot
// CLAUDE:EXPORTS Coordinator, NewCoordinator, Outcome, Resolution, ResolveRequest
package heal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/relocator/internal/store"
	"github.com/hazyhaar/relocator/locator"
	"github.com/hazyhaar/relocator/snapshot"
)

// Coordinator runs heal cycles. It is safe for concurrent use; heals of the
// same logical key are serialised at write time.
type Coordinator struct {
	cache  Cache
	eval   Evaluator
	policy Policy
	logger *slog.Logger

	mu       sync.RWMutex
	proposer Proposer
	crawler  Crawler

	locks keyLocks
}

// NewCoordinator creates a coordinator over cache and eval.
func NewCoordinator(cache Cache, eval Evaluator, policy Policy, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cache:  cache,
		eval:   eval,
		policy: policy.normalized(),
		logger: logger,
	}
}

// Policy returns the effective policy.
func (c *Coordinator) Policy() Policy { return c.policy }

// SetProposer installs the decision function.
func (c *Coordinator) SetProposer(p Proposer) {
	c.mu.Lock()
	c.proposer = p
	c.mu.Unlock()
}

// SetCrawler installs the DOM collaborator.
func (c *Coordinator) SetCrawler(cr Crawler) {
	c.mu.Lock()
	c.crawler = cr
	c.mu.Unlock()
}

func (c *Coordinator) collaborators() (Proposer, Crawler) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.proposer, c.crawler
}

// Outcome is the result of one heal cycle.
type Outcome struct {
	LogicalKey string       `json:"logical_key"`
	State      State        `json:"state"`
	Expression string       `json:"expression,omitempty"`
	Entry      *store.Entry `json:"entry,omitempty"`
	Attempts   int          `json:"attempts"`
	// Discarded is set when a concurrent heal of the same key committed
	// first; this cycle's proposal was dropped and the winner adopted.
	Discarded bool         `json:"discarded,omitempty"`
	Rejected  []Rejection  `json:"rejected,omitempty"`
	Trace     []Transition `json:"trace"`
}

func (o *Outcome) enter(to State, attempt int, reason string) {
	if !canTransition(o.State, to) {
		panic(fmt.Sprintf("heal: illegal transition %s -> %s", o.State, to))
	}
	o.Trace = append(o.Trace, Transition{From: o.State, To: to, Attempt: attempt, Reason: reason})
	o.State = to
}

// Heal runs the state machine for f. It returns ErrHealExhausted (wrapped)
// when no proposal validates; in that case the cache is untouched.
func (c *Coordinator) Heal(ctx context.Context, f Failure) (*Outcome, error) {
	o := &Outcome{LogicalKey: f.LogicalKey, State: Detected}
	log := c.logger.With("key", f.LogicalKey)
	log.Info("heal: detected", "expression", f.Expression)

	if f.LogicalKey == "" {
		o.enter(Exhausted, 0, "missing logical key")
		return o, fmt.Errorf("%w: missing logical key", ErrHealExhausted)
	}

	// Baseline: the current entry this heal replaces.
	base, err := c.cache.Current(ctx, f.LogicalKey)
	if err != nil {
		o.enter(Exhausted, 0, err.Error())
		return o, fmt.Errorf("%w: %s: %w", ErrHealExhausted, f.LogicalKey, err)
	}
	baseID := ""
	if base != nil {
		baseID = base.ID
	}

	o.enter(Diagnosing, 0, "")
	proposer, crawler := c.collaborators()
	doc, fc, err := c.diagnose(ctx, f, crawler)
	if err != nil {
		o.enter(Exhausted, 0, err.Error())
		log.Warn("heal: diagnosis failed", "error", err)
		return o, fmt.Errorf("%w: %s: %w", ErrHealExhausted, f.LogicalKey, err)
	}
	if proposer == nil {
		o.enter(Exhausted, 0, "no proposer configured")
		return o, fmt.Errorf("%w: %s: no proposer configured", ErrHealExhausted, f.LogicalKey)
	}

	attempts := 1 + c.policy.MaxRetries
	for attempt := 1; attempt <= attempts; attempt++ {
		o.Attempts = attempt
		fc.Attempt = attempt
		o.enter(ProposalPending, attempt, "")

		expr, err := c.propose(ctx, proposer, fc)
		if ctx.Err() != nil {
			o.enter(Exhausted, attempt, ctx.Err().Error())
			return o, fmt.Errorf("%w: %s: %w", ErrHealExhausted, f.LogicalKey, ctx.Err())
		}
		if err != nil || expr == "" {
			if err == nil {
				err = ErrNoProposal
			}
			c.reject(o, fc, expr, err)
			log.Info("heal: no proposal", "attempt", attempt, "error", err)
			continue
		}

		o.enter(Validating, attempt, expr)
		if err := c.validate(doc, expr); err != nil {
			c.reject(o, fc, expr, err)
			log.Info("heal: proposal rejected", "attempt", attempt, "expression", expr, "error", err)
			continue
		}

		return c.commit(ctx, o, f, expr, baseID, log)
	}

	o.enter(Exhausted, o.Attempts, "retries spent")
	log.Warn("heal: exhausted", "attempts", o.Attempts, "rejected", len(o.Rejected))
	return o, fmt.Errorf("%w: %s after %d attempt(s)", ErrHealExhausted, f.LogicalKey, o.Attempts)
}

// reject records a failed proposal on the outcome and on the context the
// next proposal attempt sees.
func (c *Coordinator) reject(o *Outcome, fc *FailureContext, expr string, err error) {
	r := Rejection{Expression: expr, Reason: err.Error()}
	o.Rejected = append(o.Rejected, r)
	fc.Rejected = append(fc.Rejected, r)
}

// diagnose pulls the fresh DOM and assembles the failure context. The
// snapshot is scoped to the ParentScoped ancestor when it still resolves.
func (c *Coordinator) diagnose(ctx context.Context, f Failure, crawler Crawler) (*html.Node, *FailureContext, error) {
	doc := f.Root
	if doc == nil {
		if crawler == nil {
			return nil, nil, ErrNoCrawler
		}
		var err error
		if doc, err = crawler.Snapshot(ctx); err != nil {
			return nil, nil, fmt.Errorf("crawl: %w", err)
		}
		if doc == nil {
			return nil, nil, fmt.Errorf("crawl: empty document")
		}
	}

	scope := doc
	if cand, ok := f.Union.Find(locator.ParentScoped); ok && cand.Scope != "" {
		if nodes, err := c.eval.QueryAll(doc, cand.Scope); err == nil && len(nodes) > 0 {
			scope = nodes[0]
		}
	}

	fc := &FailureContext{
		LogicalKey:          f.LogicalKey,
		LastKnownExpression: f.Expression,
		ExecutionLog:        tail(f.ExecutionLog, c.policy.LogExcerptBytes),
		Snapshot:            snapshot.Render(scope, c.policy.SnapshotBytes),
		Root:                scope,
	}
	if hist, err := c.cache.History(ctx, f.LogicalKey); err == nil {
		for _, e := range hist {
			fc.History = append(fc.History, e.Expression)
		}
	}
	return doc, fc, nil
}

// propose calls the decision function under the proposal timeout. A
// timeout, a panic or ErrNoProposal all count as no proposal.
func (c *Coordinator) propose(ctx context.Context, p Proposer, fc *FailureContext) (string, error) {
	pctx, cancel := context.WithTimeout(ctx, c.policy.ProposalTimeout)
	defer cancel()

	type result struct {
		expr string
		err  error
	}
	ch := make(chan result, 1)
	in := fc.clone()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("proposer panic: %v", r)}
			}
		}()
		expr, err := p(pctx, in)
		ch <- result{expr: expr, err: err}
	}()

	select {
	case r := <-ch:
		if errors.Is(r.err, ErrNoProposal) {
			return "", ErrNoProposal
		}
		return r.expr, r.err
	case <-pctx.Done():
		return "", fmt.Errorf("proposal timeout: %w", pctx.Err())
	}
}

// validate accepts expr only if it resolves to exactly one element.
func (c *Coordinator) validate(doc *html.Node, expr string) error {
	nodes, err := c.eval.QueryAll(doc, expr)
	if err != nil {
		return err
	}
	switch len(nodes) {
	case 1:
		return nil
	case 0:
		return ErrZeroMatch
	default:
		return fmt.Errorf("%w: %d elements", ErrAmbiguousMatch, len(nodes))
	}
}

// commit writes the healed entry under the key lock. If the key moved on
// since the baseline, the proposal is discarded and the winner adopted.
func (c *Coordinator) commit(ctx context.Context, o *Outcome, f Failure, expr, baseID string, log *slog.Logger) (*Outcome, error) {
	unlock := c.locks.lock(f.LogicalKey)
	defer unlock()

	e, err := c.cache.Append(ctx, f.LogicalKey, expr, f.Expression, baseID)
	switch {
	case errors.Is(err, store.ErrWriteConflict) && e != nil:
		log.Info("heal: concurrent heal won, proposal discarded",
			"discarded", expr, "adopted", e.Expression, "error", err)
		o.Discarded = true
		o.Entry = e
		o.Expression = e.Expression
		o.enter(Healed, o.Attempts, "adopted concurrent heal")
		return o, nil
	case err != nil:
		o.enter(Exhausted, o.Attempts, err.Error())
		return o, fmt.Errorf("%w: %s: %w", ErrHealExhausted, f.LogicalKey, err)
	}

	o.Entry = e
	o.Expression = e.Expression
	o.enter(Healed, o.Attempts, "")
	log.Info("heal: healed", "expression", expr, "attempts", o.Attempts, "seq", e.Seq)
	return o, nil
}
