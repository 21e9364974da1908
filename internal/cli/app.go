package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rohmanhakim/nextmuni/internal/config"
	"github.com/rohmanhakim/nextmuni/internal/coordinator"
	"github.com/rohmanhakim/nextmuni/internal/metadata"
	"github.com/rohmanhakim/nextmuni/internal/metrics"
	"github.com/rohmanhakim/nextmuni/internal/provider"
	"github.com/rohmanhakim/nextmuni/internal/runner"
	"github.com/rohmanhakim/nextmuni/internal/storage"
	"github.com/rohmanhakim/nextmuni/internal/upstream"
	"github.com/rohmanhakim/nextmuni/pkg/limiter"
)

// app holds every long-lived component of one process.
type app struct {
	logger      *slog.Logger
	registry    *prometheus.Registry
	store       *storage.GORMStore
	background  *runner.Runner
	coordinator *coordinator.Coordinator
	provider    *provider.Provider
}

func newApp(ctx context.Context, cfg config.Config, logOutput io.Writer) (*app, error) {
	logger := metadata.NewLogger(logOutput, cfg.LogLevel(), cfg.LogFormat())
	recorder := metadata.NewRecorder(logger)

	var registry *prometheus.Registry
	if cfg.MetricsEnabled() {
		registry = prometheus.NewRegistry()
	}
	var m *metrics.Metrics
	if registry != nil {
		m = metrics.New(registry)
	}

	store, err := storage.New(&storage.Config{Path: cfg.DBPath()}, recorder)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", cfg.DBPath(), err)
	}

	var rateLimiter limiter.RateLimiter
	if cfg.BaseDelay() > 0 || cfg.Jitter() > 0 {
		rateLimiter = limiter.NewConcurrentRateLimiter(cfg.BaseDelay(), cfg.Jitter(), cfg.RandomSeed())
	}
	client := upstream.NewHTTPClient(recorder, m, cfg.UserAgent(), cfg.Timeout(), rateLimiter)
	endpoints := upstream.NewEndpoints(cfg.BaseURL(), cfg.Agency())

	background := runner.New(ctx, recorder)
	coord := coordinator.NewCoordinator(
		recorder,
		m,
		store,
		client,
		endpoints,
		background,
		coordinator.RefreshPolicy{StaleAfter: cfg.StaleAfter(), ExpireAfter: cfg.ExpireAfter()},
	)

	return &app{
		logger:      logger,
		registry:    registry,
		store:       store,
		background:  background,
		coordinator: coord,
		provider:    provider.NewProvider(coord, store),
	}, nil
}

// gatherer returns nil when metrics are disabled.
func (a *app) gatherer() prometheus.Gatherer {
	if a.registry == nil {
		return nil
	}
	return a.registry
}

// drain lets pending background refreshes commit before the store closes.
func (a *app) drain() {
	a.background.Wait()
	a.close()
}

// close cancels background work and closes the store.
func (a *app) close() {
	a.background.Shutdown()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing cache", "error", err)
	}
}
