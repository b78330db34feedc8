package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rafaeljc/slipup/internal/cache"
	"github.com/rafaeljc/slipup/internal/config"
	"github.com/rafaeljc/slipup/internal/flags"
	"github.com/rafaeljc/slipup/internal/inspectapi"
	"github.com/rafaeljc/slipup/internal/logger"
	"github.com/rafaeljc/slipup/internal/observability"
	"github.com/rafaeljc/slipup/internal/remote"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Initialize the resolver and serve the inspect API, probes and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

// runServe executes the service lifecycle.
func runServe(ctx context.Context) error {
	// -------------------------------------------------------------------------
	// 1. Configuration & Logging
	// -------------------------------------------------------------------------
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.New(&cfg.App)
	slog.SetDefault(log)
	cfg.LogConfig(log)
	ctx = logger.WithContext(ctx, log)

	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()

	// -------------------------------------------------------------------------
	// 2. Resolver wiring
	// -------------------------------------------------------------------------
	opts := flags.OptionsFromConfig(cfg)
	opts.Logger = log
	opts.UsageCallback = usageLogger(log)

	var checkers []observability.Checker

	if cfg.Flags.CacheCapacity > 0 {
		memCache, err := cache.NewMemoryCache[flags.Evaluation](cfg.Flags.CacheCapacity, cfg.Flags.CacheTTL)
		if err != nil {
			return fmt.Errorf("failed to build evaluation cache: %w", err)
		}
		opts.Cache = memCache
		go memCache.RunMetricsCollector(bgCtx, cfg.Observability.CollectorInterval)
	}

	if cfg.Flags.UsesRedis() {
		store, err := connectRedis(ctx, cfg)
		if err != nil {
			// Not fatal: the lazily connected provider takes over and Initialize degrades.
			log.Warn("redis unavailable at startup", slog.String("error", err.Error()))
		} else {
			opts.Fetcher = remote.NewRedisFetcher(store)
			checkers = append(checkers, store)
			go cache.RunPoolMonitor(bgCtx, store.Client(), cfg.Observability.CollectorInterval)
		}
	}

	resolver := flags.New(opts)
	defer resolver.Destroy()

	ctx = flags.WithResolver(ctx, resolver)
	checkers = append(checkers, flags.NewHealthChecker(resolver))

	res, err := resolver.Initialize(ctx)
	if err != nil {
		return err
	}
	if res.Ready() {
		log.Info("flag definitions installed", slog.Int64("version", res.Version), slog.Int("flags", len(res.Keys)))
	} else {
		log.Warn("serving default flags", slog.Any("reason", res.Reason))
	}

	// -------------------------------------------------------------------------
	// 3. Servers
	// -------------------------------------------------------------------------
	srv, err := startServers(bgCtx, cfg, log, resolver, checkers)
	if err != nil {
		return err
	}

	// -------------------------------------------------------------------------
	// 4. Graceful Shutdown
	// -------------------------------------------------------------------------
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	err = srv.shutdown(shutdownCtx)
	cancelBg()

	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("service exited successfully")
	return nil
}

// servers are the listeners started by serve, in start order.
type servers struct {
	obs     *observability.Server
	grpc    *observability.GRPCHealth
	inspect *inspectapi.Server
}

// startServers starts the observability server, then gRPC health and the inspect
// API when enabled. On failure everything already started is shut down.
func startServers(ctx context.Context, cfg *config.Config, log *slog.Logger, resolver *flags.Resolver, checkers []observability.Checker) (*servers, error) {
	srv := &servers{}

	abort := func(err error) (*servers, error) {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
		defer cancel()
		if sErr := srv.shutdown(shutdownCtx); sErr != nil {
			log.Warn("failed to stop servers after startup error", slog.String("error", sErr.Error()))
		}
		return nil, err
	}

	obs := observability.NewServer(log, &cfg.Observability, checkers...)
	if err := obs.Start(); err != nil {
		return nil, err
	}
	srv.obs = obs

	if cfg.Observability.GRPCPort != "" {
		grpcHealth := observability.NewGRPCHealth(log, cfg.Observability.Timeout, checkers...)
		if err := grpcHealth.Start(cfg.Observability.GRPCPort); err != nil {
			return abort(err)
		}
		srv.grpc = grpcHealth
		go grpcHealth.Run(ctx, cfg.Observability.HealthInterval)
	}

	if cfg.Inspect.Enabled {
		inspect := inspectapi.NewServer(inspectapi.NewAPI(resolver, log), &cfg.Inspect, log)
		if err := inspect.Start(); err != nil {
			return abort(fmt.Errorf("failed to start inspect api: %w", err))
		}
		srv.inspect = inspect
	}

	return srv, nil
}

// shutdown stops the started servers in reverse order.
func (s *servers) shutdown(ctx context.Context) error {
	var errs []error
	if s.inspect != nil {
		errs = append(errs, s.inspect.Shutdown(ctx))
	}
	if s.grpc != nil {
		s.grpc.Shutdown()
	}
	if s.obs != nil {
		errs = append(errs, s.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// connectRedis pings Redis with retries and returns the definitions store.
func connectRedis(ctx context.Context, cfg *config.Config) (*cache.RedisStore, error) {
	client, err := cache.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return nil, err
	}
	return cache.NewRedisStore(client, cfg.Redis.DefinitionsKey), nil
}

// usageLogger is the default usage sink: one debug line per evaluation.
func usageLogger(log *slog.Logger) flags.UsageCallback {
	return func(ev flags.UsageEvent) error {
		log.Debug("flag used",
			slog.String("flag_key", string(ev.FlagKey)),
			slog.Any("value", ev.Value),
			slog.String("source", string(ev.Source)),
			slog.String("user_id", ev.UserID),
		)
		return nil
	}
}

