package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/01moynul/taptosell-installments/internal/auth"
	"github.com/01moynul/taptosell-installments/internal/config"
	"github.com/01moynul/taptosell-installments/internal/database"
	"github.com/01moynul/taptosell-installments/internal/handlers"
	"github.com/01moynul/taptosell-installments/internal/installment"
	"github.com/01moynul/taptosell-installments/internal/lock"
	"github.com/01moynul/taptosell-installments/internal/logger"
	"github.com/01moynul/taptosell-installments/internal/policy"
	"github.com/01moynul/taptosell-installments/internal/routes"
	"github.com/01moynul/taptosell-installments/internal/store"
	"github.com/01moynul/taptosell-installments/internal/sweeper"
	"github.com/01moynul/taptosell-installments/internal/telemetry"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		logger.Error(context.Background(), "server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 0. --- Load Environment Variables (.env) ---
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(&logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if envErr != nil {
		logger.Warn(ctx, "could not load .env file, relying on system environment variables")
	}

	// 1. --- Negotiation Policy ---
	pol := policy.Default()
	if cfg.PolicyFile != "" {
		if pol, err = policy.Load(cfg.PolicyFile); err != nil {
			return err
		}
		logger.Info(ctx, "negotiation policy loaded", "file", cfg.PolicyFile)
	}
	policies := policy.NewStatic(pol)

	// 2. --- Store ---
	var st store.Store
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err := database.OpenDB(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		st = store.NewMySQLStore(db)
	default:
		logger.Warn(ctx, "using in-memory store; data is lost on restart")
		st = store.NewMemoryStore()
	}

	// 3. --- Engine ---
	metrics, err := telemetry.New()
	if err != nil {
		return err
	}
	opts := []installment.Option{installment.WithMetrics(metrics)}

	if cfg.RedisAddr != "" {
		locker := lock.NewRedisLocker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer locker.Close()
		if err := locker.Ping(ctx); err != nil {
			return err
		}
		opts = append(opts, installment.WithLocker(locker))
		logger.Info(ctx, "using redis request locks", "addr", cfg.RedisAddr)
	}

	engine := installment.NewEngine(st, policies, opts...)

	// 4. --- Background Workers (Cron) ---
	sweeps := sweeper.New(engine, cfg.SweepOnStart)
	if err := sweeps.Start(cfg.SweepSchedule); err != nil {
		return err
	}
	defer sweeps.Stop()

	// 5. --- Router Setup ---
	tokens, err := auth.NewTokens(cfg.JWTSecret)
	if err != nil {
		return err
	}
	app := &handlers.Handlers{
		Engine:  engine,
		Sweeper: sweeps,
	}
	router := routes.SetupRouter(app, routes.Options{
		Tokens:        tokens,
		TrustedOrigin: cfg.TrustedOrigin,
	})

	// 6. --- Start Server ---
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting installment API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 7. --- Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-stop:
		logger.Info(ctx, "shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
