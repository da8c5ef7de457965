package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/menuboard-backend/api/controllers"
	"github.com/angelmondragon/menuboard-backend/api/routes"
	"github.com/angelmondragon/menuboard-backend/internal/auth"
	"github.com/angelmondragon/menuboard-backend/internal/cart"
	"github.com/angelmondragon/menuboard-backend/internal/orders"
	product "github.com/angelmondragon/menuboard-backend/internal/products"
	"github.com/angelmondragon/menuboard-backend/internal/tenants"
	"github.com/angelmondragon/menuboard-backend/internal/users"
	"github.com/angelmondragon/menuboard-backend/pkg/auth/session"
	"github.com/angelmondragon/menuboard-backend/pkg/config"
	"github.com/angelmondragon/menuboard-backend/pkg/db"
	"github.com/angelmondragon/menuboard-backend/pkg/instance"
	"github.com/angelmondragon/menuboard-backend/pkg/logger"
	"github.com/angelmondragon/menuboard-backend/pkg/metrics"
	"github.com/angelmondragon/menuboard-backend/pkg/migrate"
	"github.com/angelmondragon/menuboard-backend/pkg/outbox"
	"github.com/angelmondragon/menuboard-backend/pkg/redis"
	"github.com/angelmondragon/menuboard-backend/pkg/storage/gcs"
	"github.com/angelmondragon/menuboard-backend/pkg/tracing"
)

const (
	serviceName     = "api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.FromApp(serviceName, cfg.App)

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api exited with error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(cfg.Tracing, "menuboard-"+serviceName)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, tp.Shutdown(context.Background())) }()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, gcsClient.Close()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderMetrics := metrics.NewOrderMetrics(registry)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	tenantRepo := tenants.NewRepository(dbClient.DB())
	tenantService, err := tenants.NewService(tenantRepo)
	if err != nil {
		return err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		TenantRepo:     tenantRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		SessionManager: sessionManager,
		PasswordConfig: cfg.Password,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return err
	}

	productService, err := product.NewService(product.ServiceParams{
		Repo:          product.NewRepository(dbClient.DB()),
		Blobs:         gcsClient,
		Tenants:       tenantService,
		Logger:        logg,
		MaxImageBytes: int64(cfg.GCS.MaxUploadMB) << 20,
	})
	if err != nil {
		return err
	}

	cartService, err := cart.NewService(redisClient, productService, cfg.Cart.TTL)
	if err != nil {
		return err
	}

	bus, err := orders.NewRedisBus(redisClient)
	if err != nil {
		return err
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:              orders.NewRepository(dbClient.DB()),
		DB:                dbClient,
		Outbox:            outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Guard:             redisClient,
		Bus:               bus,
		Metrics:           orderMetrics,
		Logger:            logg,
		StrictTransitions: cfg.Orders.StrictTransitions(),
		GuardTTL:          cfg.Orders.SubmitGuardTTL,
		HistoryPageSize:   cfg.Orders.HistoryPageSize,
	})
	if err != nil {
		return err
	}
	feed, err := orders.NewLiveFeed(orderService, bus, logg, orderMetrics)
	if err != nil {
		return err
	}

	handler := routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		Gatherer: registry,
		Health: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
			"gcs":      gcsClient,
		},
		Store:    redisClient,
		Sessions: sessionManager,
		Auth:     authService,
		Register: registerService,
		Tenants:  tenantService,
		Products: productService,
		Carts:    cartService,
		Orders:   orderService,
		Feed:     feed,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":             cfg.App.Env,
		"addr":            addr,
		"transition_mode": cfg.Orders.TransitionMode,
		"instance":        instance.GetID(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
