package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rentcore/internal/adapters/exports"
	"rentcore/internal/adapters/httpapi"
	"rentcore/internal/blob"
	"rentcore/internal/core"
	"rentcore/internal/logging"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the hierarchy, search, stats and export API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(cmd, flags)
			if err != nil {
				return err
			}
			defer rt.close()
			if addr != "" {
				rt.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rt)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides RENTCORE_HTTP_ADDR)")
	return cmd
}

// zapAudit writes export audit entries to the process log.
type zapAudit struct {
	log *zap.Logger
}

func (a zapAudit) Record(_ context.Context, e exports.AuditEntry) {
	a.log.Info("export audit",
		zap.String("export_id", e.ExportID),
		zap.String("action", e.Action),
		zap.String("actor", e.Actor),
		zap.String("status", string(e.Status)),
		zap.String("entity_id", e.Scope),
		zap.Any("metadata", e.Metadata))
}

func serve(ctx context.Context, rt *runtime) error {
	cfg := rt.cfg
	log := rt.log
	log.Info("starting rentcore",
		zap.String("environment", cfg.Server.Env),
		zap.String("storage", string(cfg.Storage.Driver)),
		zap.String("blob", string(cfg.Blob.Driver)))

	recorder, err := core.NewPrometheusRecorder(prometheus.DefaultRegisterer, cfg.Metrics.Prefix)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	usage := core.NewExpvarRecorder("rentcore_operations")
	opts := rt.engineOptions(core.WithMetricsRecorder(core.MultiRecorder{recorder, usage}))

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	var (
		engine  *core.Engine
		linker  httpapi.DocumentLinker
		closeFn func() error
	)
	if cfg.Storage.Driver == core.StorageRelational {
		reader, err := core.OpenReader(cfg.Storage, core.NewDefaultRulesEngine())
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		closeFn = func() error { return core.CloseStore(reader) }
		engine = core.NewPortfolioEngine(reader, opts...)
		log.Warn("relational storage is read-only; document links are disabled")
	} else {
		store, err := core.OpenPersistentStore(cfg.Storage, core.NewDefaultRulesEngine())
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		closeFn = func() error { return core.CloseStore(store) }
		svc := core.NewService(store, blobs, opts...)
		engine = svc.Engine()
		linker = svc
	}
	defer func() {
		if err := closeFn(); err != nil {
			log.Warn("close storage", zap.Error(err))
		}
	}()

	worker := exports.NewWorker(engine, blobs,
		exports.WithLogger(logging.NewAdapter(log)),
		exports.WithAuditLogger(zapAudit{log: log}))
	worker.Start()

	server, err := httpapi.New(engine, httpapi.Options{
		Logger:        log,
		MetricsPrefix: cfg.Metrics.Prefix,
		Documents:     linker,
		Exports:       worker,
	})
	if err != nil {
		return fmt.Errorf("build http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(cfg.Server.Addr) }()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		log.Warn("export worker shutdown", zap.Error(err))
	}
	return serveErr
}
