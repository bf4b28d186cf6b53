// CLAUDE:SUMMARY CLI entry point for relocator: one-shot generate/query/cache commands, HTTP API, MCP over stdio or QUIC.
// Command relocator generates, evaluates and serves resilient element locators.
//
// Usage:
//
//	relocator -html page.html -target "//select[@id='taxCountry']"   # generate a union locator
//	relocator -url https://app.example/invoice -query "resloc=..."    # evaluate against a live page
//	relocator -db relocator.db -history invoice/select/tax            # cache history of a key
//	relocator -db relocator.db -export dump.json                      # dump the cache
//	relocator -db relocator.db -import dump.json                      # load a dump
//	relocator -config relocator.yaml -serve :8086                     # HTTP API
//	relocator -config relocator.yaml -mcp stdio                       # MCP tools on stdin/stdout
//	relocator -config relocator.yaml -mcp quic -quic-addr :8443       # MCP tools over QUIC
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/net/html"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/relocator"
	"github.com/hazyhaar/relocator/internal/browser"
	"github.com/hazyhaar/relocator/internal/mcpquic"
)

type options struct {
	configPath string
	dbPath     string
	htmlPath   string
	pageURL    string
	target     string
	query      string
	history    string
	exportPath string
	importPath string
	stats      bool
	serveAddr  string
	mcpMode    string
	quicAddr   string
	certFile   string
	keyFile    string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to relocator.yaml config file")
	flag.StringVar(&o.dbPath, "db", "", "path to the SQLite locator cache")
	flag.StringVar(&o.htmlPath, "html", "", "page HTML file for -target / -query")
	flag.StringVar(&o.pageURL, "url", "", "live page URL for -target / -query")
	flag.StringVar(&o.target, "target", "", "expression selecting the element to generate a locator for")
	flag.StringVar(&o.query, "query", "", "locator expression to evaluate")
	flag.StringVar(&o.history, "history", "", "print the cache history of a logical key and exit")
	flag.StringVar(&o.exportPath, "export", "", "write the cache as JSON to this file (- for stdout) and exit")
	flag.StringVar(&o.importPath, "import", "", "load a JSON cache dump and exit")
	flag.BoolVar(&o.stats, "stats", false, "show cache stats and exit")
	flag.StringVar(&o.serveAddr, "serve", "", "HTTP listen address")
	flag.StringVar(&o.mcpMode, "mcp", "", "MCP transport: stdio or quic")
	flag.StringVar(&o.quicAddr, "quic-addr", ":8443", "QUIC listen address for -mcp quic")
	flag.StringVar(&o.certFile, "cert", "", "TLS certificate for -mcp quic (self-signed when empty)")
	flag.StringVar(&o.keyFile, "key", "", "TLS key for -mcp quic")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, logger, o)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	case err != nil:
		logger.Error("relocator: fatal", "error", err)
		os.Exit(1)
	}
}

// errUsage is returned by run when no command or server flag is set.
var errUsage = errors.New("relocator: nothing to do")

const usage = `usage: relocator [-config <file> | -db <path>] (-target <expr> | -query <expr>) [-html <file> | -url <url>]
       relocator ... -history <key> | -export <file> | -import <file> | -stats | -serve <addr> | -mcp stdio|quic`

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := resolveConfig(o.configPath, o.dbPath)
	if err != nil {
		return err
	}

	svc, err := relocator.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer svc.Close()

	// Live page: the tab doubles as the heal crawler.
	var page *browser.Page
	if o.pageURL != "" {
		mgr := browser.NewManager(browser.Config{
			RemoteURL:        cfg.Browser.RemoteURL,
			Headless:         *cfg.Browser.Headless,
			Stealth:          cfg.Browser.Stealth,
			NavigateTimeout:  cfg.Browser.NavigateTimeout,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			Logger:           logger.With("component", "browser"),
		})
		defer mgr.Close()
		if _, err := mgr.Start(ctx); err != nil {
			return err
		}
		if page, err = browser.OpenPage(ctx, mgr, o.pageURL); err != nil {
			return err
		}
		defer page.Close()
		svc.SetCrawler(page)
	}

	switch {
	case o.target != "" || o.query != "":
		doc, err := loadDocument(ctx, o.htmlPath, page)
		if err != nil {
			return err
		}
		if o.target != "" {
			return generate(svc, doc, o.target)
		}
		return query(svc, doc, o.query)

	case o.history != "":
		entries, err := svc.History(ctx, o.history)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		return printJSON(entries)

	case o.exportPath != "":
		d, err := svc.Export(ctx)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if o.exportPath == "-" {
			return printJSON(d)
		}
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(o.exportPath, data, 0o644)

	case o.importPath != "":
		data, err := os.ReadFile(o.importPath)
		if err != nil {
			return err
		}
		var d relocator.Dump
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("import: %w", err)
		}
		return svc.Import(ctx, d)

	case o.stats:
		st, err := svc.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		return printJSON(st)
	}

	if o.serveAddr == "" && o.mcpMode == "" {
		return errUsage
	}

	errc := make(chan error, 2)
	if o.serveAddr != "" {
		go func() { errc <- serveHTTP(ctx, logger, svc, o.serveAddr) }()
	}
	switch o.mcpMode {
	case "":
	case "stdio":
		go func() { errc <- svc.MCPServer().Run(ctx, &mcp.StdioTransport{}) }()
	case "quic":
		go func() { errc <- serveQUIC(ctx, logger, svc, o) }()
	default:
		return fmt.Errorf("unknown -mcp transport %q", o.mcpMode)
	}

	logger.Info("relocator: running", "db", cfg.DBPath, "http", o.serveAddr, "mcp", o.mcpMode)
	select {
	case <-ctx.Done():
		logger.Info("relocator: shutting down")
		return nil
	case err := <-errc:
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

func resolveConfig(configPath, dbPath string) (*relocator.Config, error) {
	cfg := &relocator.Config{}
	if configPath != "" {
		var err error
		if cfg, err = relocator.LoadConfigFile(configPath); err != nil {
			return nil, err
		}
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

func loadDocument(ctx context.Context, htmlPath string, page *browser.Page) (*html.Node, error) {
	switch {
	case page != nil:
		return page.Snapshot(ctx)
	case htmlPath != "":
		data, err := os.ReadFile(htmlPath)
		if err != nil {
			return nil, err
		}
		return browser.ParseDocument(string(data))
	}
	return nil, errors.New("-target and -query need -html or -url")
}

func generate(svc *relocator.Service, doc *html.Node, target string) error {
	snap, err := browser.CaptureFrom(doc, svc.Registry(), target)
	if err != nil {
		return err
	}
	u := svc.Generate(snap)
	return printJSON(map[string]any{
		"key":            svc.Key(snap),
		"expression":     svc.Prefix(u),
		"candidates":     u.Candidates,
		"low_confidence": u.LowConfidence(),
	})
}

func query(svc *relocator.Service, doc *html.Node, expr string) error {
	nodes, err := svc.QueryAll(doc, expr)
	if err != nil {
		return err
	}
	matches := make([]relocator.MatchInfo, 0, len(nodes))
	for _, n := range nodes {
		matches = append(matches, relocator.DescribeMatch(n))
	}
	return printJSON(map[string]any{"count": len(nodes), "matches": matches})
}

func serveHTTP(ctx context.Context, logger *slog.Logger, svc *relocator.Service, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logger.Info("relocator: http listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func serveQUIC(ctx context.Context, logger *slog.Logger, svc *relocator.Service, o options) error {
	var tlsCfg *tls.Config
	var err error
	if o.certFile != "" {
		tlsCfg, err = mcpquic.ServerTLSConfig(o.certFile, o.keyFile)
	} else {
		logger.Warn("relocator: -mcp quic without -cert, using a self-signed certificate")
		tlsCfg, err = mcpquic.SelfSignedTLSConfig()
	}
	if err != nil {
		return err
	}
	l, err := mcpquic.NewListener(o.quicAddr, tlsCfg, svc.MCPServer(), logger.With("component", "mcpquic"))
	if err != nil {
		return err
	}
	defer l.Close()
	return l.Serve(ctx)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
