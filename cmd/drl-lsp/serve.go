package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	"go.opentelemetry.io/otel"

	"github.com/jarredhawkins/drl-lsp/internal/config"
	"github.com/jarredhawkins/drl-lsp/internal/lsp"
	"github.com/jarredhawkins/drl-lsp/internal/observability"
	"github.com/jarredhawkins/drl-lsp/internal/parser"
	"github.com/jarredhawkins/drl-lsp/internal/watcher"
)

var log = commonlog.GetLogger("drl")

func serveCmd() *cobra.Command {
	var rootPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the language server on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if rootPath == "" {
				rootPath, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get current directory: %w", err)
				}
			}
			return runServe(cmd.Context(), cfg, rootPath)
		},
	}

	cmd.Flags().StringVar(&rootPath, "root", "", "workspace root to watch (defaults to current directory)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, rootPath string) error {
	log.Noticef("drl-lsp %s starting, root=%s", lsp.Version, rootPath)
	log.Infof("limits: %s", cfg.Summary())

	// Create context with cancellation
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mgr := cfg.NewCache()
	if mgr != nil {
		defer mgr.Dispose()
	}
	p := parser.New(mgr, cfg.ParserOptions())

	if cfg.Metrics.Address != "" && mgr != nil {
		provider, handler, err := observability.NewPrometheus()
		if err != nil {
			return err
		}
		defer func() { _ = provider.Shutdown(context.Background()) }()
		otel.SetMeterProvider(provider)

		if _, err := observability.NewCacheMetrics(otel.Meter("drl-lsp"), mgr); err != nil {
			return err
		}
		srv, err := observability.NewMetricsServer(cfg.Metrics.Address, handler)
		if err != nil {
			return err
		}
		defer srv.Close()
		log.Infof("metrics on http://%s/metrics", srv.Addr())
	}

	server := lsp.NewServer(p, lsp.Options{ValidationDelay: cfg.Validation.Debounce})

	// Start file watcher
	if cfg.Workspace.Watch {
		w, err := watcher.New(rootPath, server.FilesChanged)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer w.Close()

		if err := w.Start(); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
	}

	// Start LSP server on stdio
	err := server.Serve(ctx, os.Stdin, os.Stdout)
	if err != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("LSP server error: %w", err)
	}

	log.Notice("drl-lsp shutdown complete")
	return nil
}
