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

	"github.com/angelmondragon/menuboard-backend/internal/analytics/router"
	"github.com/angelmondragon/menuboard-backend/internal/analytics/types"
	"github.com/angelmondragon/menuboard-backend/internal/analytics/worker"
	"github.com/angelmondragon/menuboard-backend/internal/analytics/writer"
	"github.com/angelmondragon/menuboard-backend/pkg/bigquery"
	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/instance"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/metrics"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/menuboard-backend/pkg/pubsub"
	"github.com/angelmondragon/menuboard-backend/pkg/redis"
)

const serviceName = "analytics-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName
	logg = logger.FromApp(serviceName, cfg.App)

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "analytics worker failed", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg, bigquery.TableSpec{
		Name:           cfg.BigQuery.OrderEventsTable,
		Schema:         types.OrderEventSchema,
		PartitionField: "occurred_at",
	})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, bqClient.Close()) }()

	sub := pubsubClient.AnalyticsSubscription()
	if sub == nil {
		return errors.New("analytics subscription not configured")
	}

	ledger, err := idempotency.NewLedger(redisClient, worker.Name, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}
	bqWriter, err := writer.New(bqClient, writer.Config{OrderEventsTable: cfg.BigQuery.OrderEventsTable})
	if err != nil {
		return err
	}
	eventRouter, err := router.NewRouter(bqWriter, logg, nil)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	consumer, err := worker.NewConsumer(sub, eventRouter, ledger, logg, metrics.NewWorkerMetrics(reg))
	if err != nil {
		return err
	}

	go metrics.Serve(ctx, ":"+cfg.App.Port, reg, logg)
	logg.Info(ctx, "analytics worker ready")
	return consumer.Run(ctx)
}
