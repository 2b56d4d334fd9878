package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"

	"github.com/joseph-ayodele/policy-extractor/internal/async"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/documents"
	"github.com/joseph-ayodele/policy-extractor/internal/export"
	"github.com/joseph-ayodele/policy-extractor/internal/fields"
	"github.com/joseph-ayodele/policy-extractor/internal/metrics"
	"github.com/joseph-ayodele/policy-extractor/internal/pdftext"
	"github.com/joseph-ayodele/policy-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/policy-extractor/internal/repository"
	"github.com/joseph-ayodele/policy-extractor/internal/server"
)

func main() {
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("policyd stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("policyd stopped")
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close(logger)

	if err := repo.HealthCheck(ctx, db, cfg.Database.DialTimeout, logger); err != nil {
		return err
	}

	resolver, err := documents.NewResolver(cfg.Document.Root, cfg.Document.DefaultPath)
	if err != nil {
		return err
	}

	m := metrics.New()
	jobsRepo := repo.NewExtractJobRepository(db, logger)
	opts := []pipeline.Option{
		pipeline.WithJobRepository(jobsRepo),
		pipeline.WithMetrics(m),
	}
	if cfg.Report.Enabled {
		report := export.NewReportWriter(cfg.Report.Path, logger)
		opts = append(opts, pipeline.WithReportWriter(report))
		logger.Info("report enabled", "path", report.Path())
	}
	processor := pipeline.NewProcessor(logger,
		pdftext.NewExtractor(pdftext.LedongthucSource{}, logger),
		fields.NewMatcher(fields.DefaultRules(), logger),
		opts...,
	)

	httpServer, err := server.NewHTTPServer(cfg.Server, server.Deps{
		Processor: processor,
		Resolver:  resolver,
		Jobs:      jobsRepo,
		DB:        db,
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	// gRPC health
	hs := health.NewServer()
	grpcServer := server.NewGRPCServer(hs)
	reporter := server.NewHealthReporter(hs, resolver, logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpServer.ListenAndServe()
	})
	g.Go(func() error {
		logger.Info("gRPC health listening", "addr", cfg.Server.GRPCAddr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		reporter.Run(gctx, 30*time.Second)
		return nil
	})
	if cfg.Watch.Enabled {
		g.Go(func() error {
			return watchRoot(gctx, cfg.Watch, resolver, processor, logger)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchRoot processes PDFs dropped into the document root until ctx is done.
func watchRoot(ctx context.Context, cfg common.WatchConfig, resolver *documents.Resolver, processor *pipeline.Processor, logger *slog.Logger) error {
	events, err := async.Watch(ctx, async.WatchConfig{
		Roots:    []string{resolver.Root()},
		Debounce: cfg.Debounce,
	}, logger)
	if err != nil {
		return err
	}
	var queue async.Queue = async.NewProcessorQueue(processor, logger,
		async.WithWorkers(int(cfg.Workers)),
		async.WithProcessTimeout(3*time.Minute),
	)
	logger.Info("watching document root", "root", resolver.Root(), "workers", cfg.Workers)

	async.Feed(ctx, events, func(path string) (string, error) {
		rel, err := filepath.Rel(resolver.Root(), path)
		if err != nil {
			return "", err
		}
		return resolver.Resolve(rel)
	}, queue, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	return nil
}
