// Command anchord hosts text selection anchors over HTML documents: it
// captures selections as portable descriptors, stores them in SQLite, and
// restores them when documents are reloaded or change on disk.
//
// Usage:
//
//	anchord -config anchord.yaml           # HTTP API and MCP on /mcp
//	anchord -db anchors.db -listen :8087   # run with defaults
//	anchord -config anchord.yaml -stdio    # MCP over stdin/stdout
//	anchord -db anchors.db -stats          # show stats and exit
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

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/textanchor/anchor"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to anchord.yaml config file")
	dbPath := flag.String("db", "", "path to SQLite database (overrides config)")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	stdio := flag.Bool("stdio", false, "serve MCP over stdin/stdout instead of HTTP")
	showStats := flag.Bool("stats", false, "show stats and exit")
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

	if err := run(ctx, logger, *configPath, *dbPath, *listen, *stdio, *showStats); err != nil {
		logger.Error("anchord: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, dbPath, listen string, stdio, showStats bool) error {
	cfg, err := resolveConfig(configPath, dbPath, listen)
	if err != nil {
		return err
	}

	svc, err := anchor.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer svc.Close()

	if showStats {
		stats, err := svc.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "anchord", Version: version}, nil)
	svc.RegisterMCP(mcpSrv)

	if stdio {
		logger.Info("anchord: serving MCP on stdio", "db", cfg.DBPath)
		return mcpSrv.Run(ctx, &mcp.StdioTransport{})
	}

	r := chi.NewRouter()
	r.Mount("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))
	r.Mount("/", svc.Handler())

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("anchord: listening", "addr", cfg.Listen, "db", cfg.DBPath, "documents", len(cfg.Documents))
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("anchord: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func resolveConfig(configPath, dbPath, listen string) (*anchor.ServerConfig, error) {
	cfg := &anchor.ServerConfig{}
	if configPath != "" {
		loaded, err := anchor.LoadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if configPath == "" && dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: anchord -config <file> | -db <path> [-listen addr] [-stdio] [-stats]")
		os.Exit(2)
	}
	return cfg, nil
}
