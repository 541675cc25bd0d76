package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/LazyCorpz/Signal-Server/api"
	"github.com/LazyCorpz/Signal-Server/metrics"
	"github.com/LazyCorpz/Signal-Server/pkg/limits"
	"github.com/LazyCorpz/Signal-Server/pkg/logger"
	"github.com/LazyCorpz/Signal-Server/store"
)

// app wires the registry, its store and the HTTP API together
type app struct {
	cfg       Config
	log       *slog.Logger
	registry  *limits.Registry
	overrides *limits.OverrideTable
	metrics   *metrics.Metrics
	handler   http.Handler
	closers   []func()
}

func newApp(ctx context.Context, cfg Config, log *slog.Logger) (*app, error) {
	a := &app{
		cfg:       cfg,
		log:       log,
		overrides: &limits.OverrideTable{},
		metrics:   metrics.NewMetrics(),
	}

	bucketStore, health, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.OverridesPath != "" {
		if err := a.overrides.ReloadFile(cfg.OverridesPath); err != nil {
			a.Close()
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	opts := []limits.Option{
		limits.WithStore(bucketStore),
		limits.WithMetrics(a.metrics),
		limits.WithLogger(log),
		limits.WithOverrides(a.overrides),
	}
	if cfg.LimitsPath != "" {
		opts = append(opts, limits.WithConfigFile(cfg.LimitsPath))
	}

	a.registry, err = limits.CreateAndValidate(limits.DefaultDescriptors(), opts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	mux := http.NewServeMux()
	api.NewHandler(a.registry, a.metrics, log).Register(mux)
	mux.Handle("GET /metrics", api.NewMetricsHandler(a.metrics))
	mux.Handle("GET /health", api.HealthHandler(health))
	a.handler = api.WithRequestID(log, mux)

	log.Info("rate limiter ready",
		slog.String("store", cfg.Store),
		slog.Int("limiters", len(a.registry.Descriptors())))
	return a, nil
}

func (a *app) openStore(ctx context.Context) (store.Store, api.HealthCheck, error) {
	if a.cfg.Store == storeMemory {
		a.log.Warn("using in-memory bucket store, limits are not shared between instances")
		memory := store.NewMemoryStore()
		a.closers = append(a.closers, memory.StartBackgroundCleanup(a.cfg.MemoryCleanupInterval))
		return memory, nil, nil
	}

	client, err := store.ConnectRedis(ctx, a.cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	redisStore := store.NewRedisStore(client, store.WithTTLPadding(a.cfg.Redis.KeyTTLPadding))
	a.closers = append(a.closers, func() { _ = redisStore.Close() })

	if err := redisStore.Load(ctx); err != nil {
		a.Close()
		return nil, nil, err
	}
	a.log.Info("connected to redis", slog.Any("addrs", a.cfg.Redis.Addrs))
	return redisStore, store.Healthcheck(client), nil
}

// reloadOverrides re-reads the overrides file; on error the current overrides stay
func (a *app) reloadOverrides() error {
	if a.cfg.OverridesPath == "" {
		return nil
	}
	if err := a.overrides.ReloadFile(a.cfg.OverridesPath); err != nil {
		a.log.Error("failed to reload overrides", logger.Error(err))
		return err
	}
	a.log.Info("overrides reloaded", slog.Int("count", len(a.overrides.Snapshot())))
	return nil
}

// watchOverrides reloads overrides on every signal and refresh tick until ctx is done
func (a *app) watchOverrides(ctx context.Context, hangup <-chan os.Signal) {
	if a.cfg.OverridesPath == "" {
		return
	}

	var tick <-chan time.Time
	if a.cfg.OverridesRefreshInterval > 0 {
		ticker := time.NewTicker(a.cfg.OverridesRefreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-hangup:
			_ = a.reloadOverrides()
		case <-tick:
			_ = a.reloadOverrides()
		}
	}
}

// serve runs the HTTP server until ctx is done, then shuts it down gracefully
func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", slog.String("addr", a.cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	a.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Close releases the store, in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
