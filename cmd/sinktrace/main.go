// Command sinktrace re-triggers captured sink occurrences under a debugger
// and extracts canary-correlated call stacks.
//
// Usage:
//
//	sinktrace -canary XSS_CANARY_42              # one-shot trace, report on stdout
//	sinktrace -config sinktrace.yaml -serve      # HTTP API daemon
//	sinktrace -db sinks.db -mcp                  # MCP server on stdio
package main

import (
	"context"
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
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/sinktrace"
	"github.com/hazyhaar/sinktrace/driver"
	"github.com/hazyhaar/sinktrace/internal/bridge"
	"github.com/hazyhaar/sinktrace/internal/browser"
	"github.com/hazyhaar/sinktrace/sinkstore"
)

func main() {
	configPath := flag.String("config", "", "path to sinktrace.yaml config file")
	dbPath := flag.String("db", "", "path to SQLite sink store (overrides config; empty = in-memory)")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	canary := flag.String("canary", "", "run a one-shot trace for this canary and exit")
	maxSinks := flag.Int("max", 0, "cap on sink records to process (0 = config default)")
	noCallstacks := flag.Bool("no-callstacks", false, "discovery only: list matches without opening browser sessions")
	serve := flag.Bool("serve", false, "run the HTTP API daemon")
	mcpStdio := flag.Bool("mcp", false, "serve MCP tools on stdio")
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
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, options{
		configPath:   *configPath,
		dbPath:       *dbPath,
		listen:       *listen,
		canary:       *canary,
		maxSinks:     *maxSinks,
		noCallstacks: *noCallstacks,
		serve:        *serve,
		mcpStdio:     *mcpStdio,
	}); err != nil {
		logger.Error("sinktrace: fatal", "error", err)
		os.Exit(1)
	}
}

type options struct {
	configPath   string
	dbPath       string
	listen       string
	canary       string
	maxSinks     int
	noCallstacks bool
	serve        bool
	mcpStdio     bool
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}

	if opts.canary == "" && !opts.serve && !opts.mcpStdio {
		fmt.Fprintln(os.Stderr, "usage: sinktrace -canary <value> | -serve | -mcp [-config <file>] [-db <path>]")
		os.Exit(1)
	}

	var store sinkstore.Store
	if cfg.Store.Path != "" {
		store, err = sinkstore.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
	} else {
		store = sinkstore.NewMemStore()
	}
	defer store.Close()

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Headful:          cfg.Browser.Headful,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	drv := browser.NewDriver(mgr)

	var br driver.Bridge
	switch cfg.Bridge.Type {
	case "webhook":
		if cfg.Bridge.URL == "" {
			return errors.New("bridge type webhook requires bridge.url")
		}
		br = bridge.NewWebhook(cfg.Bridge.URL, bridge.WithWebhookLogger(logger))
	case "navigate", "":
		br = bridge.NewNavigate(drv.Navigate, logger)
	default:
		return fmt.Errorf("unknown bridge type %q", cfg.Bridge.Type)
	}

	tracer := sinktrace.NewTracer(cfg, store, drv, br, sinktrace.WithLogger(logger))

	// One-shot trace.
	if opts.canary != "" {
		rep, err := tracer.ProcessSinks(ctx, opts.canary, opts.maxSinks, !opts.noCallstacks)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	// MCP on stdio.
	if opts.mcpStdio {
		srv := mcp.NewServer(&mcp.Implementation{
			Name:    "sinktrace",
			Version: "1.0.0",
		}, nil)
		tracer.RegisterMCP(srv)
		logger.Info("sinktrace: MCP server on stdio")
		return srv.Run(ctx, &mcp.StdioTransport{})
	}

	// HTTP daemon.
	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           tracer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("sinktrace: HTTP API listening", "addr", cfg.Listen)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func resolveConfig(opts options) (*sinktrace.Config, error) {
	var cfg *sinktrace.Config
	if opts.configPath != "" {
		var err error
		cfg, err = sinktrace.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = sinktrace.DefaultConfig()
	}

	if opts.dbPath != "" {
		cfg.Store.Path = opts.dbPath
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}
	return cfg, nil
}
