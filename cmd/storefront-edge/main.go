package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/storefront-edge/pkg/cache"
	"github.com/Sternrassler/storefront-edge/pkg/cart"
	"github.com/Sternrassler/storefront-edge/pkg/client"
	"github.com/Sternrassler/storefront-edge/pkg/config"
	"github.com/Sternrassler/storefront-edge/pkg/kv"
	"github.com/Sternrassler/storefront-edge/pkg/locale"
	"github.com/Sternrassler/storefront-edge/pkg/logging"
	"github.com/Sternrassler/storefront-edge/pkg/router"
	"github.com/redis/go-redis/v9"
)

// analyticsStreamMaxLen caps the analytics stream (approximate trimming).
const analyticsStreamMaxLen = 100_000

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})
	logger := logging.NewLogger(logging.ComponentEdge)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("Edge service failed")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := logging.NewLogger(logging.ComponentEdge)

	// Storage backends: Redis when configured, process memory otherwise.
	var (
		kvStore      kv.Store
		cacheStorage cache.Storage
		trackers     = cart.MultiTracker{cart.LogTracker{Logger: logging.NewLogger(logging.ComponentCart)}}
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Connected to Redis")

		kvStore = kv.NewRedisStore(redisClient)
		cacheStorage = cache.NewRedisStorage(redisClient, cfg.CacheNamespace)
		trackers = append(trackers, cart.NewStreamTracker(redisClient, cart.DefaultEventStream, analyticsStreamMaxLen))
	} else {
		logger.Warn().Msg("REDIS_URL not set, using in-memory stores")
		kvStore = kv.NewMemoryStore()
		cacheStorage = cache.NewMemoryStorage()
	}

	unit, err := locale.ParseCurrency(cfg.Currency)
	if err != nil {
		return err
	}

	upstream, err := client.New(client.Config{
		Origin:  cfg.Origin(),
		Timeout: cfg.FetchTimeout,
	})
	if err != nil {
		return fmt.Errorf("create origin client: %w", err)
	}

	refresher := router.NewRefresher(router.RefresherConfig{
		Workers:   cfg.RefreshWorkers,
		QueueSize: cfg.RefreshQueue,
		Timeout:   cfg.RefreshTimeout,
	})

	edge, err := router.New(router.Config{
		Namespace:           cfg.CacheNamespace,
		Version:             cfg.CacheVersion,
		ShellAssets:         cfg.ShellAssets,
		AssetManifestPath:   cfg.AssetManifestPath,
		CriticalFonts:       cfg.CriticalFonts,
		OfflinePage:         cfg.OfflinePage,
		SyncRoutes:          cfg.SyncRoutes,
		PrecacheConcurrency: cfg.PrecacheConcurrency,
		PrecacheTimeout:     cfg.FetchTimeout,
	}, router.Options{
		Storage:   cacheStorage,
		Upstream:  upstream,
		Refresher: refresher,
	})
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	// Until install succeeds the router passes requests through, so a
	// failing origin at startup only delays caching.
	go func() {
		if err := edge.Install(ctx); err != nil {
			logger.Error().Err(err).Msg("Router install failed, serving passthrough")
			return
		}
		if err := edge.Activate(ctx); err != nil {
			logger.Error().Err(err).Msg("Router activation failed, serving passthrough")
			return
		}
		edge.RunPeriodicSync(ctx, cfg.SyncInterval)
	}()

	registry := cart.NewRegistry(cart.Options{
		Store:      kvStore,
		Tracker:    trackers,
		IdleTTL:    cfg.CartIdleTTL,
		MaxEngines: cfg.CartMaxEngines,
	})
	go registry.Run(ctx, cfg.CartIdleTTL/2)

	srv := &server{
		registry: registry,
		edge:     edge,
		currency: unit,
		checks: map[string]pinger{
			"kv":    kvStore,
			"cache": cacheStorage,
		},
		logger: logger,
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("origin", cfg.OriginURL).
			Str("cache_version", cfg.CacheVersion).
			Msg("Starting storefront edge")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	if err := refresher.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Background refreshes cancelled")
	}

	logger.Info().Msg("Stopped")
	return nil
}
