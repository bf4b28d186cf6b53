// CLAUDE:SUMMARY Live page: fresh DOM snapshots for heal diagnosis and element capture for the recorder.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/net/html"

	"github.com/hazyhaar/relocator/snapshot"
)

// Page is one navigated tab. It implements heal.Crawler.
type Page struct {
	Page *rod.Page
	URL  string
}

// OpenPage creates a tab on mgr's browser and navigates to url.
func OpenPage(ctx context.Context, mgr *Manager, url string) (*Page, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if mgr.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		applyResourceBlocking(page, mgr.cfg.ResourceBlocking)
	}

	navCtx, cancel := context.WithTimeout(ctx, mgr.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", url, "error", err)
	}
	return &Page{Page: page, URL: url}, nil
}

// HTML serialises the live DOM as outer HTML.
func (p *Page) HTML(ctx context.Context) (string, error) {
	res, err := p.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Snapshot pulls and parses the current DOM.
func (p *Page) Snapshot(ctx context.Context) (*html.Node, error) {
	src, err := p.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return ParseDocument(src)
}

// Querier resolves one expression, typically a *selector.Registry.
type Querier interface {
	Query(root *html.Node, expr string) (*html.Node, error)
}

// Capture snapshots the element matched by expr on the live page.
func (p *Page) Capture(ctx context.Context, q Querier, expr string) (*snapshot.ElementSnapshot, error) {
	doc, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return CaptureFrom(doc, q, expr)
}

// Close closes the tab.
func (p *Page) Close() error {
	if p.Page != nil {
		return p.Page.Close()
	}
	return nil
}

// ParseDocument parses serialised page HTML.
func ParseDocument(src string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("browser: parse DOM: %w", err)
	}
	return doc, nil
}

// CaptureFrom snapshots the element of doc matched by expr.
func CaptureFrom(doc *html.Node, q Querier, expr string) (*snapshot.ElementSnapshot, error) {
	n, err := q.Query(doc, expr)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("browser: %q matches nothing", expr)
	}
	return snapshot.FromNode(n, doc)
}
