package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/srgjo27/tour_booking/internal/platform/config"
)

// NewPostgresDB opens a lib/pq pool and waits for the server to accept
// connections, retrying while the database container is still starting.
func NewPostgresDB(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	b := backoff.NewConstantBackOff(2 * time.Second)
	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		log.Info("connecting to database",
			zap.String("host", cfg.Host),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", retries))
		return struct{}{}, db.PingContext(ctx)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(retries)))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("database not reachable after %d attempts: %w", attempt, err)
	}

	log.Info("database connected", zap.String("database", cfg.DBName))
	return db, nil
}
