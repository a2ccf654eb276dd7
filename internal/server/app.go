package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/iwvelando/rental-forecast/internal/cache"
	"go.uber.org/zap"
)

const (
	shutdownTimeout  = 10 * time.Second
	cachePingTimeout = 3 * time.Second
)

// WebAPI owns the HTTP server and the cache backend behind it.
type WebAPI struct {
	logger *zap.Logger
	server *http.Server
	closer func() error
}

// NewWebAPI wires the configured cache backend into the API handler.
func NewWebAPI(ctx context.Context, logger *zap.Logger, cfg *Config, version string) (*WebAPI, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, closer, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	logger.Info("response cache configured",
		zap.String("op", "server.NewWebAPI"),
		zap.String("backend", cfg.Cache.Backend),
		zap.Duration("ttl", cfg.Cache.TTL()),
	)

	handler := NewHandler(logger, Options{
		MaxUploadSize: cfg.UploadSizeBytes(),
		Version:       version,
		Cache:         store,
		CacheTTL:      cfg.Cache.TTL(),
	})

	return &WebAPI{
		logger: logger,
		server: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		closer: closer,
	}, nil
}

func newCache(ctx context.Context, cfg CacheConfig) (cache.CacheRepository, func() error, error) {
	switch cfg.Backend {
	case cache.BackendMemory:
		return cache.NewMemoryCache(), func() error { return nil }, nil
	case cache.BackendRedis:
		rc := cache.NewRedisCache(cfg.Addr, cfg.Password, cfg.DB)
		pingCtx, cancel := context.WithTimeout(ctx, cachePingTimeout)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			_ = rc.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Addr, err)
		}
		return rc, rc.Close, nil
	default:
		return nil, func() error { return nil }, nil
	}
}

// Handler returns the root HTTP handler.
func (a *WebAPI) Handler() http.Handler {
	return a.server.Handler
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (a *WebAPI) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		a.logger.Info("starting server",
			zap.String("op", "server.Start"),
			zap.String("addr", a.server.Addr),
		)
		serverErrors <- a.server.ListenAndServe()
	}()

	var err error
	select {
	case err = <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		a.logger.Info("shutdown initiated", zap.String("op", "server.Start"))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err = a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("graceful shutdown failed",
				zap.String("op", "server.Start"),
				zap.Error(err),
			)
			err = a.server.Close()
		}
	}

	if closeErr := a.closer(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to close cache: %w", closeErr))
	}
	return err
}
