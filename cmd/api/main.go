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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/pos-backend/api/controllers"
	"github.com/angelmondragon/pos-backend/api/routes"
	"github.com/angelmondragon/pos-backend/internal/audit"
	"github.com/angelmondragon/pos-backend/internal/cart"
	"github.com/angelmondragon/pos-backend/internal/catalog"
	"github.com/angelmondragon/pos-backend/internal/checkout"
	"github.com/angelmondragon/pos-backend/internal/inventory"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/metrics"
	"github.com/angelmondragon/pos-backend/pkg/migrate"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	pingers := map[string]controllers.Pinger{"db": dbClient}

	var (
		idempotencyStore redis.IdempotencyStore
		guard            *checkout.IdempotencyGuard
	)
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		idempotencyStore = redisClient
		pingers["redis"] = redisClient
		guard, err = checkout.NewIdempotencyGuard(redisClient, cfg.Checkout.IdempotencyTTL)
		if err != nil {
			return err
		}
	} else {
		logg.Warn(ctx, "redis not configured: idempotency keys fall back to the sales unique index")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	conn := dbClient.DB()
	recorder, err := audit.NewRecorder(audit.NewRepository(conn))
	if err != nil {
		return err
	}
	events := outbox.NewService(outbox.NewRepository(conn), logg)

	ledger, err := inventory.NewLedger(inventory.LedgerParams{
		Repo:     inventory.NewRepository(conn),
		DB:       dbClient,
		Audit:    recorder,
		Events:   events,
		Metrics:  metrics.NewInventoryMetrics(reg),
		Logger:   logg,
		Location: cfg.Checkout.StockLocation,
	})
	if err != nil {
		return err
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(conn), dbClient, ledger, recorder, logg, cfg.Checkout.StockLocation)
	if err != nil {
		return err
	}

	salesRepo := sales.NewRepository(conn)
	salesService, err := sales.NewService(salesRepo)
	if err != nil {
		return err
	}

	params := checkout.Params{
		Tx:            dbClient,
		Sales:         checkout.NewSalesWriter(salesRepo),
		Ledger:        ledger,
		Audit:         recorder,
		Outbox:        events,
		Metrics:       metrics.NewCheckoutMetrics(reg),
		Logger:        logg,
		Mode:          cfg.Checkout.Mode(),
		CommitTimeout: cfg.Checkout.CommitTimeout,
	}
	if guard != nil {
		params.Guard = guard
	}
	orchestrator, err := checkout.NewOrchestrator(params)
	if err != nil {
		return err
	}

	rate, err := cfg.Checkout.TaxRate()
	if err != nil {
		return err
	}
	carts := cart.NewRegistry(cart.TaxPolicy{
		Enabled:     cfg.Checkout.TaxEnabled,
		RatePercent: rate,
		Places:      cfg.Checkout.TaxPlaces,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    id,
		"commit_mode": string(orchestrator.Mode()),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Services{
			Catalog:     catalogService,
			Carts:       carts,
			Checkout:    orchestrator,
			Sales:       salesService,
			Inventory:   ledger,
			Activity:    recorder,
			Idempotency: idempotencyStore,
			Pingers:     pingers,
			Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(logCtx, "shutting down api server")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
