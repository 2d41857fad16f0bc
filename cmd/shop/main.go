package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kitstore/internal/cart"
	"github.com/noah-isme/kitstore/internal/checkout"
	"github.com/noah-isme/kitstore/internal/client"
	"github.com/noah-isme/kitstore/internal/config"
	"github.com/noah-isme/kitstore/internal/localstore"
	"github.com/noah-isme/kitstore/internal/obs"
	"github.com/noah-isme/kitstore/internal/resilience"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel, os.Stderr)

	reg := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("kitstore_shop", reg)
	if err := resilience.RegisterMetrics(reg); err != nil {
		return err
	}

	storage, closeStorage, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	api, err := client.New(client.Options{BaseURL: cfg.APIURL, Storage: storage, Logger: &logger})
	if err != nil {
		return err
	}
	return newApp(ctx, api, storage, &logger, in, out).dispatch(ctx, args)
}

func openStorage(cfg *config.ClientConfig) (localstore.Storage, func(), error) {
	switch cfg.Storage {
	case config.StorageRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		return localstore.Redis{Client: rdb, Prefix: cfg.RedisPrefix}, func() { _ = rdb.Close() }, nil
	case config.StorageMemory:
		return localstore.NewMemory(), func() {}, nil
	default:
		dir, err := localstore.NewDir(cfg.StorageDir)
		if err != nil {
			return nil, nil, err
		}
		return dir, func() {}, nil
	}
}

// api is the subset of the store API the storefront uses.
type api interface {
	checkout.OrderCreator
	Kits(ctx context.Context) ([]cart.Product, error)
	SearchKits(ctx context.Context, query string) ([]cart.Product, error)
	Login(ctx context.Context, creds client.Credentials) (client.AuthResult, error)
	Register(ctx context.Context, in client.Registration) (client.AuthResult, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) *checkout.User
	Health(ctx context.Context) (client.HealthStatus, error)
}

type app struct {
	api     api
	storage localstore.Storage
	cart    *cart.Store
	logger  *zerolog.Logger
	in      *bufio.Reader
	out     io.Writer
}

func newApp(ctx context.Context, a api, storage localstore.Storage, logger *zerolog.Logger, in io.Reader, out io.Writer) *app {
	return &app{
		api:     a,
		storage: storage,
		cart:    cart.NewStore(ctx, cart.Config{Storage: storage, Logger: logger}),
		logger:  logger,
		in:      bufio.NewReader(in),
		out:     out,
	}
}
