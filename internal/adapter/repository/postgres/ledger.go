package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/ports"
)

// Ledger keeps capacity windows in the capacity_windows table. Each reserve
// is a single conditional UPDATE, so the row lock is the per-window
// critical section and the check cannot be split from the increment.
type Ledger struct {
	db          *sql.DB
	catalog     ports.Catalog
	log         *zap.Logger
	lockTimeout time.Duration

	// known remembers windows whose row is already present.
	known sync.Map
}

func NewLedger(db *sql.DB, catalog ports.Catalog, log *zap.Logger, lockTimeout time.Duration) *Ledger {
	if lockTimeout <= 0 {
		lockTimeout = 2 * time.Second
	}
	return &Ledger{db: db, catalog: catalog, log: log, lockTimeout: lockTimeout}
}

// ensureWindow creates the window row from the catalog the first time a key
// is seen. Concurrent callers race on the primary key and the loser's insert
// is a no-op.
func (l *Ledger) ensureWindow(ctx context.Context, key domain.WindowKey) error {
	if _, ok := l.known.Load(key.String()); ok {
		return nil
	}

	capacity, err := l.catalog.GetCapacity(ctx, key.PackageID, key.Date)
	if err != nil {
		return err
	}
	if capacity < 0 {
		return fmt.Errorf("catalog returned negative capacity %d for %s", capacity, key)
	}

	query := `
	INSERT INTO capacity_windows (package_id, travel_date, total_capacity)
	VALUES ($1, $2, $3)
	ON CONFLICT (package_id, travel_date) DO NOTHING
	`
	if _, err := l.db.ExecContext(ctx, query, key.PackageID, key.Date.Format(domain.DateLayout), capacity); err != nil {
		return fmt.Errorf("failed to initialize capacity window %s: %w", key, err)
	}

	l.known.Store(key.String(), struct{}{})
	return nil
}

func (l *Ledger) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	// SET LOCAL does not take bind parameters.
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", l.lockTimeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		tx.Rollback()
		return nil, err
	}
	return tx, nil
}

func (l *Ledger) TryReserve(ctx context.Context, key domain.WindowKey, count int) (domain.ReservationToken, error) {
	if count <= 0 {
		return domain.ReservationToken{}, fmt.Errorf("reserve count must be positive, got %d", count)
	}
	if err := l.ensureWindow(ctx, key); err != nil {
		return domain.ReservationToken{}, err
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return domain.ReservationToken{}, err
	}

	defer tx.Rollback()

	date := key.Date.Format(domain.DateLayout)

	var remaining int
	err = tx.QueryRowContext(ctx, `
	UPDATE capacity_windows
	SET reserved_count = reserved_count + $3,
		updated_at = NOW()
	WHERE package_id = $1 AND travel_date = $2 AND reserved_count + $3 <= total_capacity
	RETURNING total_capacity - reserved_count
	`, key.PackageID, date, count).Scan(&remaining)

	if errors.Is(err, sql.ErrNoRows) {
		var available int
		err = tx.QueryRowContext(ctx, `
		SELECT total_capacity - reserved_count FROM capacity_windows
		WHERE package_id = $1 AND travel_date = $2
		`, key.PackageID, date).Scan(&available)
		if err != nil {
			return domain.ReservationToken{}, fmt.Errorf("failed to read capacity window %s: %w", key, err)
		}
		return domain.ReservationToken{}, &domain.InsufficientAvailabilityError{
			Key:            key,
			Requested:      count,
			AvailableSpots: max(available, 0),
		}
	}
	if err != nil {
		return domain.ReservationToken{}, fmt.Errorf("failed to reserve on %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.ReservationToken{}, fmt.Errorf("failed to commit reservation: %w", err)
	}

	return domain.ReservationToken{Key: key, Count: count, Remaining: remaining}, nil
}

func (l *Ledger) Release(ctx context.Context, key domain.WindowKey, count int) error {
	if count <= 0 {
		return fmt.Errorf("release count must be positive, got %d", count)
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	date := key.Date.Format(domain.DateLayout)

	var reserved int
	err = tx.QueryRowContext(ctx, `
	SELECT reserved_count FROM capacity_windows
	WHERE package_id = $1 AND travel_date = $2
	FOR UPDATE
	`, key.PackageID, date).Scan(&reserved)
	if errors.Is(err, sql.ErrNoRows) {
		l.log.Warn("release on unknown capacity window",
			zap.String("window", key.String()), zap.Int("count", count))
		return nil
	}
	if err != nil {
		return err
	}

	next := reserved - count
	if next < 0 {
		l.log.Warn("capacity release exceeds reserved count, clamping to zero",
			zap.String("window", key.String()),
			zap.Int("count", count),
			zap.Int("reserved", reserved))
		next = 0
	}

	_, err = tx.ExecContext(ctx, `
	UPDATE capacity_windows
	SET reserved_count = $3, updated_at = NOW()
	WHERE package_id = $1 AND travel_date = $2
	`, key.PackageID, date, next)
	if err != nil {
		return fmt.Errorf("failed to release on %s: %w", key, err)
	}

	return tx.Commit()
}

func (l *Ledger) Peek(ctx context.Context, key domain.WindowKey) (int, error) {
	var available int
	err := l.db.QueryRowContext(ctx, `
	SELECT total_capacity - reserved_count FROM capacity_windows
	WHERE package_id = $1 AND travel_date = $2
	`, key.PackageID, key.Date.Format(domain.DateLayout)).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return l.catalog.GetCapacity(ctx, key.PackageID, key.Date)
	}
	if err != nil {
		return 0, err
	}
	return available, nil
}

var _ ports.Ledger = (*Ledger)(nil)
