package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cartapp "github.com/jcmexdev/storefront/internal/cart-service/app"
	catalogapp "github.com/jcmexdev/storefront/internal/catalog-service/app"
	"github.com/jcmexdev/storefront/internal/config"
	orderapp "github.com/jcmexdev/storefront/internal/order-service/app"
	"github.com/jcmexdev/storefront/internal/pkg/cache"
	"github.com/jcmexdev/storefront/internal/pkg/identity"
	"github.com/jcmexdev/storefront/internal/pkg/messaging"
	"github.com/jcmexdev/storefront/internal/pkg/messaging/kafka"
	"github.com/jcmexdev/storefront/internal/pkg/sqlstore"
	"github.com/jcmexdev/storefront/internal/pkg/telemetry"
	"github.com/jcmexdev/storefront/internal/storefront-api/infra/httpx"
	userapp "github.com/jcmexdev/storefront/internal/user-service/app"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("storefront-api stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	if cfg.Tracing.Enabled {
		shutdown, err := telemetry.Setup(ctx, telemetry.Options{
			ServiceName: cfg.Tracing.ServiceName,
			Endpoint:    cfg.Tracing.Endpoint,
			Environment: cfg.Tracing.Environment,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("telemetry shutdown error", "error", err)
			}
		}()
	}

	db, err := sqlstore.Open(ctx, cfg.DB.Driver, cfg.DB.URL, cfg.DB.MaxOpenConns)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database ready", "driver", cfg.DB.Driver)

	if cfg.SeedDemoData {
		if err := sqlstore.Seed(ctx, db); err != nil {
			return err
		}
	}

	opts := []orderapp.Option{}
	topics := orderapp.Topics{
		OrderPlaced:        cfg.Kafka.TopicOrderPlaced,
		OrderStatusChanged: cfg.Kafka.TopicOrderStatus,
	}

	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.Tracing.ServiceName)
		defer redisCache.Close()
		if err := cache.Ping(ctx, redisCache); err != nil {
			slog.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
		}
		opts = append(opts, orderapp.WithIdempotency(redisCache, cfg.Redis.IdempotencyTTL))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers)
		defer publisher.Close()
		opts = append(opts, orderapp.WithPublisher(publisher, topics))
		slog.Info("publishing order events to kafka", "brokers", cfg.Kafka.Brokers)
	} else {
		opts = append(opts, orderapp.WithPublisher(messaging.LogPublisher{}, topics))
	}

	handler := httpx.NewHandler(
		cartapp.NewService(db),
		orderapp.NewService(db, opts...),
		catalogapp.NewService(db),
		userapp.NewService(db),
		db,
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(handler, identity.NewProvider(cfg.Auth.JWTSecret), cfg.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("storefront API running", "addr", cfg.HTTPAddr)
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

	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
