// Command kestrel runs the identity verification and transaction risk
// decision service.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/config"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/orchestrator"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/results"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/validators"
	"github.com/opensource-finance/kestrel/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("kestrel exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *domain.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.New(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := cache.New(cfg.Cache)
	if err != nil {
		return err
	}
	defer c.Close()

	eventBus, err := bus.New(cfg.EventBus)
	if err != nil {
		return err
	}
	defer eventBus.Close()

	calc := scoring.NewCalculator(cfg.Scoring)
	m := metrics.New(prometheus.DefaultRegisterer)

	p := pipeline.New(
		orchestrator.New(validators.NewSet(), c, results.NewBuilder(calc), cfg.Cache.TTL, logger),
		rules.NewLoader(store, nil, logger),
		rules.NewEvaluator(cfg.Rules.EvalTimeout),
		calc,
		decision.NewEngine(),
		m,
		logger,
	)

	if len(cfg.Worker.Tenants) > 0 {
		w := worker.New(eventBus, p, cfg.Worker.Tenants, logger)
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	handler := api.NewHandler(p, store, c, eventBus, cfg.Server.RequestTimeout, logger)
	server := api.NewServer(cfg.Server, handler, c, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
