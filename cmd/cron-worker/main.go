package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/menuboard-backend/internal/cron"
	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/db"
	"github.com/angelmondragon/menuboard-backend/pkg/instance"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/metrics"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox"
	"github.com/angelmondragon/menuboard-backend/pkg/redis"
)

const (
	workerName = "cron-worker"
	lockKey    = "menu:cron:maintenance"
)

type options struct {
	once bool
	jobs []string
}

func main() {
	var (
		opts options
		jobs string
	)
	flag.BoolVar(&opts.once, "once", false, "run a single maintenance cycle and exit")
	flag.StringVar(&jobs, "job", "", "comma separated job names to run; empty runs all")
	flag.Parse()
	for _, j := range strings.Split(jobs, ",") {
		if j = strings.TrimSpace(j); j != "" {
			opts.jobs = append(opts.jobs, j)
		}
	}

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

	if err := run(cfg, logg, opts); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "cron worker shut down")
}

func run(cfg *config.Config, logg *logger.Logger, opts options) (err error) {
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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	retention, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Outbox:           outbox.NewRepository(dbClient.DB()),
		DLQ:              outbox.NewDLQRepository(dbClient.DB()),
		OutboxRetention:  cfg.Maintenance.OutboxRetention,
		DLQRetention:     cfg.Maintenance.DLQRetention,
		TerminalAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return err
	}
	all, err := cron.NewRegistry(retention)
	if err != nil {
		return err
	}
	selected, err := all.Only(opts.jobs...)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey, cfg.Maintenance.LockTTL)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: selected,
		Lock:     lock,
		Metrics:  metrics.NewWorkerMetrics(reg),
		Interval: cfg.Maintenance.Interval,
	})
	if err != nil {
		return err
	}

	if opts.once {
		return service.RunOnce(ctx)
	}
	go metrics.Serve(ctx, ":"+cfg.App.Port, reg, logg)
	logg.Info(ctx, "cron worker ready")
	return service.Run(ctx)
}
