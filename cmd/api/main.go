package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/srgjo27/tour_booking/internal/adapter/handler"
	"github.com/srgjo27/tour_booking/internal/adapter/publisher"
	"github.com/srgjo27/tour_booking/internal/adapter/repository/memory"
	"github.com/srgjo27/tour_booking/internal/adapter/repository/postgres"
	redisledger "github.com/srgjo27/tour_booking/internal/adapter/repository/redis"
	"github.com/srgjo27/tour_booking/internal/core/ports"
	"github.com/srgjo27/tour_booking/internal/core/services"
	"github.com/srgjo27/tour_booking/internal/platform/config"
	"github.com/srgjo27/tour_booking/internal/platform/database"
	"github.com/srgjo27/tour_booking/internal/platform/logger"
)

type eventPublisher interface {
	ports.EventPublisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logr.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.NeedsDatabase() {
		db, err = database.NewPostgresDB(ctx, cfg.Database, logr)
		if err != nil {
			logr.Fatal("failed to connect to db after retries", zap.Error(err))
		}
		defer db.Close()

		if err := postgres.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	var catalog ports.Catalog
	if db != nil {
		catalog = postgres.NewCatalog(db)
	} else {
		catalog = memory.NewCatalogWithDefaults(cfg.Engine.DefaultCapacity, cfg.Engine.DefaultUnitPrice)
		logr.Warn("using in-memory catalog with default capacity",
			zap.Int("capacity", cfg.Engine.DefaultCapacity),
			zap.Int64("unit_price", cfg.Engine.DefaultUnitPrice))
	}

	var bookingRepo ports.BookingRepository
	switch cfg.Engine.StoreBackend {
	case config.BackendPostgres:
		bookingRepo = postgres.NewBookingRepository(db)
	default:
		bookingRepo = memory.NewBookingRepository()
	}

	var ledger ports.Ledger
	switch cfg.Engine.LedgerBackend {
	case config.BackendPostgres:
		ledger = postgres.NewLedger(db, catalog, logr, cfg.Engine.ReserveTimeout)
	case config.BackendRedis:
		logr.Info("connecting to redis", zap.String("addr", cfg.Redis.Addr()))
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logr.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		ledger = redisledger.NewLedger(redisClient, catalog, logr)
	default:
		ledger = memory.NewLedger(catalog, logr)
	}

	var events eventPublisher
	if cfg.RabbitMQ.URL != "" {
		events, err = publisher.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logr)
		if err != nil {
			logr.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
	} else {
		events = publisher.NewNop(logr)
	}
	defer events.Close()

	opts := []services.Option{
		services.WithMaxAttempts(cfg.Engine.TransitionMaxAttempts),
		services.WithReserveTimeout(cfg.Engine.ReserveTimeout),
		services.WithMaxParticipants(cfg.Engine.MaxParticipants),
	}

	reservations := services.NewReservationService(ledger, bookingRepo, catalog, events, logr, opts...)
	transitions := services.NewTransitionService(bookingRepo, ledger, events, logr, opts...)
	sweeper := services.NewSweeper(bookingRepo, transitions, logr, cfg.Engine.SweepInterval)

	go sweeper.Run(ctx)

	bookingHandler := handler.NewBookingHandler(reservations, transitions, logr)
	auth := handler.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer)

	mux := http.NewServeMux()
	bookingHandler.Routes(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      auth.Authenticate(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logr.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("ledger", cfg.Engine.LedgerBackend),
			zap.String("store", cfg.Engine.StoreBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server startup failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	logr.Info("server exiting")
}
