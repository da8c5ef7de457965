package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/db"
	"github.com/angelmondragon/menuboard-backend/pkg/instance"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/metrics"
	"github.com/angelmondragon/menuboard-backend/pkg/migrate"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox/registry"
	"github.com/angelmondragon/menuboard-backend/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: workerName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = workerName
	logg = logger.FromApp(workerName, cfg.App)

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "outbox publisher shut down")
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": workerName,
		"instance":    instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()
	if err := pubsubClient.Ping(ctx); err != nil {
		return err
	}

	routes, err := registry.NewRoutes(cfg.PubSub)
	if err != nil {
		return err
	}
	send := newPubSubSender(pubsubClient, publishTimeout)
	defer send.Stop()

	reg := prometheus.NewRegistry()
	relay, err := NewRelay(RelayParams{
		Outbox:  cfg.Outbox,
		Logger:  logg,
		DB:      dbClient,
		Store:   outbox.NewRepository(dbClient.DB()),
		DLQ:     outbox.NewDLQRepository(dbClient.DB()),
		Routes:  routes,
		Sender:  send,
		Metrics: metrics.NewWorkerMetrics(reg),
	})
	if err != nil {
		return err
	}

	go metrics.Serve(ctx, ":"+cfg.App.Port, reg, logg)
	logg.Info(ctx, "starting outbox publisher")
	return relay.Run(ctx)
}
