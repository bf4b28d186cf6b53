// CLAUDE:SUMMARY Service facade wiring the locator cache, selector registry, candidate generator and heal coordinator.
// CLAUDE:DEPENDS internal/store, selector, locator, heal, snapshot
// CLAUDE:EXPORTS Service, New
// Package relocator is a resilient element locator engine for browser
// automation.
//
// It turns a recorded element into a ranked union of XPath candidates,
// resolves those candidates against a live DOM, and repairs locators that
// stop matching through an injected decision function. Repaired locators
// are kept in an append-only SQLite cache keyed by logical element.
//
// Usage:
//
//	svc, err := relocator.New(cfg, logger)
//	defer svc.Close()
//	svc.SetProposer(myLLM)
//	res, err := svc.Resolve(ctx, heal.ResolveRequest{LogicalKey: key, Union: u, Root: doc})
//	svc.RegisterMCP(mcpServer)
//	http.ListenAndServe(addr, svc.Handler())
package relocator

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/relocator/heal"
	"github.com/hazyhaar/relocator/internal/store"
	"github.com/hazyhaar/relocator/locator"
	"github.com/hazyhaar/relocator/selector"
	"github.com/hazyhaar/relocator/snapshot"
)

// Service is the main relocator orchestrator.
type Service struct {
	store    *store.Store
	registry *selector.Registry
	engine   *selector.XPathEngine
	gen      *locator.Generator
	coord    *heal.Coordinator
	logger   *slog.Logger
	config   *Config
}

// New creates a Service. Opens the SQLite cache and registers the resilient
// XPath engine (default) and the CSS engine.
func New(cfg *Config, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	gen := locator.NewGenerator(
		locator.WithDelimiters(cfg.Delimiters),
		locator.WithLogger(logger.With("component", "locator")),
	)
	engine := selector.NewXPathEngine(cfg.Scheme, gen)
	reg := selector.NewRegistry()
	for _, e := range []selector.Engine{engine, selector.NewCSSEngine()} {
		if err := reg.Register(e); err != nil {
			s.Close()
			return nil, fmt.Errorf("relocator: register %s: %w", e.Scheme(), err)
		}
	}

	return &Service{
		store:    s,
		registry: reg,
		engine:   engine,
		gen:      gen,
		coord:    heal.NewCoordinator(s, reg, cfg.policy(), logger.With("component", "heal")),
		logger:   logger,
		config:   cfg,
	}, nil
}

// Close closes the cache database.
func (s *Service) Close() error {
	return s.store.Close()
}

// Config returns the effective configuration.
func (s *Service) Config() *Config { return s.config }

// Registry returns the selector registry, for registering extra engines.
func (s *Service) Registry() *selector.Registry { return s.registry }

// SetProposer installs the decision function used by self-heal.
func (s *Service) SetProposer(p heal.Proposer) { s.coord.SetProposer(p) }

// SetCrawler installs the live DOM collaborator.
func (s *Service) SetCrawler(c heal.Crawler) { s.coord.SetCrawler(c) }

// --- Generation ---

// Generate returns the ranked candidates for snap.
func (s *Service) Generate(snap *ElementSnapshot) Union {
	return s.gen.Generate(snap)
}

// Key returns the logical cache key of snap.
func (s *Service) Key(snap *ElementSnapshot) string {
	return s.gen.LogicalKey(snap)
}

// Create returns an expression locating target under root. An empty scheme
// uses the resilient engine.
func (s *Service) Create(scheme string, root, target *html.Node) (string, error) {
	if scheme == "" {
		scheme = s.engine.Scheme()
	}
	return s.registry.Create(scheme, root, target)
}

// Prefix serialises u as an expression routed to the resilient engine.
func (s *Service) Prefix(u Union) string {
	return s.engine.Prefix(u)
}

// Query returns the first element matching expr.
func (s *Service) Query(root *html.Node, expr string) (*html.Node, error) {
	return s.registry.Query(root, expr)
}

// QueryAll returns every element matching expr in document order.
func (s *Service) QueryAll(root *html.Node, expr string) ([]*html.Node, error) {
	return s.registry.QueryAll(root, expr)
}

// SnapshotOf captures the element under root matched by expr.
func (s *Service) SnapshotOf(root *html.Node, expr string) (*ElementSnapshot, error) {
	n, err := s.registry.Query(root, expr)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, expr)
	}
	return snapshot.FromNode(n, root)
}

// --- Heal ---

// Resolve runs the cache-first read path, healing on failure.
func (s *Service) Resolve(ctx context.Context, req heal.ResolveRequest) (*heal.Resolution, error) {
	return s.coord.Resolve(ctx, req)
}

// Heal runs one self-heal cycle for f.
func (s *Service) Heal(ctx context.Context, f heal.Failure) (*heal.Outcome, error) {
	return s.coord.Heal(ctx, f)
}

// --- Cache ---

// Current returns the current cache entry of key, or nil.
func (s *Service) Current(ctx context.Context, key string) (*Entry, error) {
	return s.store.Current(ctx, key)
}

// History returns every entry of key, oldest first.
func (s *Service) History(ctx context.Context, key string) ([]*Entry, error) {
	return s.store.History(ctx, key)
}

// Keys lists cached logical keys.
func (s *Service) Keys(ctx context.Context) ([]string, error) {
	return s.store.Keys(ctx)
}

// Export returns the whole cache.
func (s *Service) Export(ctx context.Context) (Dump, error) {
	return s.store.Export(ctx)
}

// Import replaces the entries of every key present in d.
func (s *Service) Import(ctx context.Context, d Dump) error {
	if err := s.store.Import(ctx, d); err != nil {
		return err
	}
	s.logger.Info("relocator: imported cache", "keys", len(d))
	return nil
}

// Stats returns cache counters.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}
