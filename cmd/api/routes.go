package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/kitstore/internal/auth"
	"github.com/noah-isme/kitstore/internal/catalog"
	"github.com/noah-isme/kitstore/internal/common"
	"github.com/noah-isme/kitstore/internal/config"
	"github.com/noah-isme/kitstore/internal/health"
	"github.com/noah-isme/kitstore/internal/obs"
	"github.com/noah-isme/kitstore/internal/order"
	"github.com/noah-isme/kitstore/internal/ratelimit"
	"github.com/noah-isme/kitstore/internal/repo"
	"github.com/noah-isme/kitstore/internal/security"
)

const maxBodyBytes = 64 << 10

type routerDeps struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      repo.Store
	Redis      *redis.Client
	LimitStore limiter.Store
	Metrics    *obs.HTTPMetrics
	Tracing    bool
	Now        func() time.Time
}

var endpoints = []string{
	"GET  /api/kits - Get all football kits",
	"GET  /api/kits/search/:query - Search kits",
	"POST /api/login - User login",
	"POST /api/register - User registration",
	"POST /api/orders - Create order",
	"GET  /api/health - API and database status",
	"GET  /api/db-info - Kit count",
}

func newRouter(d routerDeps) (http.Handler, error) {
	cfg := d.Config
	logger := d.Logger

	catalogSvc := &catalog.Service{
		Repo:   d.Store,
		Logger: &logger,
	}
	catalogHandler := catalog.NewHandler(catalogSvc)

	authSvc, err := auth.NewService(auth.Config{
		Repo:     d.Store,
		Secret:   cfg.JWTSecret,
		TokenTTL: cfg.AccessTokenTTL,
		Logger:   &logger,
	})
	if err != nil {
		return nil, err
	}
	if d.Now != nil {
		authSvc.WithNow(d.Now)
	}
	authHandler := &auth.Handler{Service: authSvc}

	orderSvc := order.NewService(d.Store, &logger)
	if d.Now != nil {
		orderSvc.Now = d.Now
	}
	orderHandler := &order.Handler{Service: orderSvc}

	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	authLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Store: d.LimitStore},
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP("auth"),
			Window: cfg.AuthRateLimit.Period,
			Max:    int(cfg.AuthRateLimit.Limit),
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate_limit_store_error")
		},
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: d.Store, redis: d.Redis},
		Kits:         d.Store,
		DBTimeout:    500 * time.Millisecond,
		RedisTimeout: 300 * time.Millisecond,
		Now:          d.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{HSTSMaxAge: 31536000}.Middleware)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", common.IdempotencyHeader},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		common.JSON(w, http.StatusOK, map[string]any{
			"message":   "Football Store API",
			"version":   "1.0",
			"endpoints": endpoints,
		})
	})
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api", func(api chi.Router) {
		api.Use(security.BodyLimit{Max: maxBodyBytes}.Middleware)
		api.Get("/kits", catalogHandler.Kits)
		api.Get("/kits/search/{query}", catalogHandler.Search)

		api.Group(func(g chi.Router) {
			g.Use(authLimit.Middleware)
			g.Post("/login", authHandler.Login)
			g.Post("/register", authHandler.Register)
		})

		api.With(idem.Middleware).Post("/orders", orderHandler.Create)

		api.Get("/health", healthHandler.API)
		api.Get("/db-info", healthHandler.DBInfo)
	})
	return r, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

type readinessChecker struct {
	db    pinger
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}
