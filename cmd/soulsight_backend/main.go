package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/soulsight/soulsight_backend/internal/core/domain"
	"github.com/soulsight/soulsight_backend/internal/core/services"
	"github.com/soulsight/soulsight_backend/internal/handlers"
	"github.com/soulsight/soulsight_backend/internal/middleware"
	"github.com/soulsight/soulsight_backend/internal/platform/config"
	"github.com/soulsight/soulsight_backend/internal/repositories/database/pgsql"
	"github.com/soulsight/soulsight_backend/internal/scheduler"
	"github.com/soulsight/soulsight_backend/internal/signaling"
	"github.com/soulsight/soulsight_backend/pkg/database"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dbPool, err := database.NewPgxPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("Database connection pool established.")

	if err := runMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Error("Failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Wire repositories and services.
	repos := pgsql.NewRepositoryProvider(dbPool)
	disburser := &loggingDisburser{logger: logger}
	container, registry := services.NewServiceContainer(cfg, repos, disburser, logger)

	hub := signaling.NewHub(container.Registry, logger)
	registry.SetNotifier(hub)
	transport := signaling.NewTransport(hub, logger)

	payoutScheduler, err := scheduler.New(container.Payout, cfg.PayoutCron, logger)
	if err != nil {
		logger.Error("Failed to initialize scheduler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.Default())

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, cfg, container, transport)

	payoutScheduler.Start()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to run", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}
	payoutScheduler.Stop()
	container.Registry.Shutdown(middleware.ContextWithLogger(shutdownCtx, logger))

	logger.Info("Shutdown complete")
}

// runMigrations applies all pending migrations over a short-lived stdlib
// connection, compatible with the pgx pool the application uses.
func runMigrations(databaseURL string, logger *slog.Logger) error {
	logger.Info("Running database migrations...")

	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return err
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}

	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return upErr
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return sourceErr
	}
	if dbErr != nil {
		return dbErr
	}

	if upErr == migrate.ErrNoChange {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}

// loggingDisburser stands in for the external payment gateway. It accepts every
// transfer and fabricates a reference; production wiring replaces it with the
// real gateway adapter.
type loggingDisburser struct {
	logger *slog.Logger
}

func (d *loggingDisburser) Disburse(ctx context.Context, payout domain.PayoutRequest) (string, error) {
	ref := "stub-" + uuid.NewString()
	d.logger.Info("Disbursement submitted",
		slog.String("payout_id", payout.PayoutID),
		slog.String("reader_id", payout.ReaderID),
		slog.String("amount", payout.Amount.String()),
		slog.String("idempotency_key", payout.IdempotencyKey()),
		slog.String("transfer_ref", ref),
	)
	return ref, nil
}
