package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/checkout"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/config"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/consent"
	h "github.com/averkiev79-droid/avk-pro-sub000/internal/http"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/logger"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/metrics"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/notify"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/orderapi"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/storage"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/tab"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

// run owns every resource, so its deferred closes finish before main exits.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := context.Background()

	st, broadcaster, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage backend unavailable: %w", err)
	}
	defer closeBackend()
	log.Info(log.WithField(ctx, "driver", cfg.Storage.Driver), "storage backend ready")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	tabs := tab.NewRegistry(st, broadcaster, tab.Options{
		IdleTTL:       cfg.Tabs.IdleTTL,
		SweepInterval: cfg.Tabs.SweepInterval,
		Logger:        log,
		Metrics:       m,
	})

	orders := orderapi.NewClient(orderapi.Options{
		BaseURL:          cfg.OrderAPI.BaseURL,
		BreakerFailures:  cfg.OrderAPI.BreakerFailures,
		BreakerOpenDelay: cfg.OrderAPI.BreakerOpenDelay,
		Metrics:          m,
	})

	router := h.NewRouter(h.Deps{
		Registry: tabs,
		Orders:   orders,
		Consent:  consent.NewService(st),
		Checkout: checkout.Options{
			SubmitTimeout: cfg.Checkout.SubmitTimeout,
			RedirectDelay: cfg.Checkout.RedirectDelay,
			RedirectPath:  cfg.Checkout.RedirectPath,
		},
		Logger:         log,
		Metrics:        m,
		Gatherer:       registry,
		RequestTimeout: cfg.App.RequestTimeout,
		AllowedOrigins: cfg.App.AllowedOrigins,
		CookieSecure:   cfg.App.CookieSecure,
	})

	// no WriteTimeout: the websocket feed stays open for the life of the tab
	srv := &http.Server{
		Addr:        ":" + cfg.App.Port,
		Handler:     otelhttp.NewHandler(router, "storefront"),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	runErr := h.Run(ctx, log, srv, cfg.App.ShutdownTimeout, quit)
	if err := tabs.Close(); err != nil {
		log.Warn(ctx, "closing tabs", err)
	}
	log.Info(ctx, "storefront stopped")
	return runErr
}

// openBackend picks the record store and the cross-tab signal transport.
// Only redis carries signals between processes; the rest pair with the
// in-process broadcaster.
func openBackend(ctx context.Context, cfg *config.Config) (storage.Storage, notify.Broadcaster, func(), error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return storage.NewRedisStorage(client, cfg.Storage.TTL), notify.NewRedisBroadcaster(client),
			func() { _ = client.Close() }, nil

	case config.StorageMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		db, err := storage.ConnectMongoDB(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		st := storage.NewMongoStorage(db, cfg.Mongo.Collection, cfg.Storage.TTL)
		if err := st.CreateIndexes(connectCtx); err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, nil, nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		return st, notify.NewMemoryBroadcaster(), func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = db.Client().Disconnect(disconnectCtx)
		}, nil

	case config.StorageSQLite:
		st, err := storage.NewSQLiteStorage(cfg.SQLite.Path, cfg.Storage.TTL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := st.RunMigrations(cfg.SQLite.MigrationsPath); err != nil {
			_ = st.Close()
			return nil, nil, nil, err
		}
		return st, notify.NewMemoryBroadcaster(), func() { _ = st.Close() }, nil

	default:
		return storage.NewMemoryStorage(), notify.NewMemoryBroadcaster(), func() {}, nil
	}
}
