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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/kitstore/internal/config"
	"github.com/noah-isme/kitstore/internal/health"
	"github.com/noah-isme/kitstore/internal/obs"
	"github.com/noah-isme/kitstore/internal/repo"
)

const metricsNamespace = "kitstore"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel, os.Stdout).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	reg := prometheus.DefaultRegisterer
	obs.MustRegisterDomainMetrics(metricsNamespace, reg)

	tracing := false
	if cfg.TracingEndpoint != "" {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName: "kitstore-api",
			Endpoint:    cfg.TracingEndpoint,
			Environment: cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			tracing = true
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.RunMigrations {
		if err := repo.Migrate(cfg.DatabaseDriver, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info().Str("driver", cfg.DatabaseDriver).Msg("migrations applied")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	store, err := openStore(connectCtx, cfg, reg)
	if err != nil {
		return err
	}
	defer store.Close()

	redisClient, err := openRedis(connectCtx, cfg.RedisURL, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	limitStore, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "kitstore:ratelimit:"})
	if err != nil {
		return fmt.Errorf("init rate limit store: %w", err)
	}

	router, err := newRouter(routerDeps{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Redis:      redisClient,
		LimitStore: limitStore,
		Metrics:    obs.NewHTTPMetrics(metricsNamespace, nil, reg),
		Tracing:    tracing,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("server draining")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (repo.Store, error) {
	switch cfg.DatabaseDriver {
	case repo.DriverMySQL:
		store, err := repo.OpenMySQL(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ping mysql: %w", err)
		}
		return store, nil
	default:
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse database config: %w", err)
		}
		poolConfig.ConnConfig.Tracer = obs.NewPGXTracer(metricsNamespace, reg)
		if poolConfig.ConnConfig.RuntimeParams == nil {
			poolConfig.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolConfig.ConnConfig.RuntimeParams["application_name"] = "kitstore-api"

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		return repo.NewPostgres(pool), nil
	}
}

func openRedis(ctx context.Context, url string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
