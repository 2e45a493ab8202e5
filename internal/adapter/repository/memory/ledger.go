package memory

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/ports"
)

// window is one capacity pool. sem is a one-slot channel used as a mutex so
// waiters can give up when their context ends.
type window struct {
	sem      chan struct{}
	total    int
	reserved int
}

func (w *window) lock(ctx context.Context) error {
	select {
	case w.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *window) unlock() {
	<-w.sem
}

// Ledger keeps capacity windows in process memory with one lock per key, so
// contention on one package date never blocks another.
type Ledger struct {
	catalog ports.Catalog
	log     *zap.Logger

	mu      sync.Mutex
	windows map[string]*window
	init    singleflight.Group
}

func NewLedger(catalog ports.Catalog, log *zap.Logger) *Ledger {
	return &Ledger{
		catalog: catalog,
		log:     log,
		windows: make(map[string]*window),
	}
}

func (l *Ledger) lookup(key domain.WindowKey) (*window, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key.String()]
	return w, ok
}

// windowFor returns the window for key, creating it from the catalog on
// first use. Concurrent first callers share a single catalog fetch and the
// first inserted window wins.
func (l *Ledger) windowFor(ctx context.Context, key domain.WindowKey) (*window, error) {
	if w, ok := l.lookup(key); ok {
		return w, nil
	}

	v, err, _ := l.init.Do(key.String(), func() (interface{}, error) {
		if w, ok := l.lookup(key); ok {
			return w, nil
		}
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		capacity, err := l.catalog.GetCapacity(context.WithoutCancel(ctx), key.PackageID, key.Date)
		if err != nil {
			return nil, err
		}
		if capacity < 0 {
			return nil, fmt.Errorf("catalog returned negative capacity %d for %s", capacity, key)
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		if w, ok := l.windows[key.String()]; ok {
			return w, nil
		}
		w := &window{sem: make(chan struct{}, 1), total: capacity}
		l.windows[key.String()] = w
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*window), nil
}

func (l *Ledger) TryReserve(ctx context.Context, key domain.WindowKey, count int) (domain.ReservationToken, error) {
	if count <= 0 {
		return domain.ReservationToken{}, fmt.Errorf("reserve count must be positive, got %d", count)
	}

	w, err := l.windowFor(ctx, key)
	if err != nil {
		return domain.ReservationToken{}, err
	}
	if err := w.lock(ctx); err != nil {
		return domain.ReservationToken{}, err
	}
	defer w.unlock()

	available := w.total - w.reserved
	if count > available {
		return domain.ReservationToken{}, &domain.InsufficientAvailabilityError{
			Key:            key,
			Requested:      count,
			AvailableSpots: available,
		}
	}
	w.reserved += count

	return domain.ReservationToken{Key: key, Count: count, Remaining: w.total - w.reserved}, nil
}

func (l *Ledger) Release(ctx context.Context, key domain.WindowKey, count int) error {
	if count <= 0 {
		return fmt.Errorf("release count must be positive, got %d", count)
	}

	w, ok := l.lookup(key)
	if !ok {
		l.log.Warn("release on unknown capacity window",
			zap.String("window", key.String()), zap.Int("count", count))
		return nil
	}
	if err := w.lock(ctx); err != nil {
		return err
	}
	defer w.unlock()

	if count > w.reserved {
		l.log.Warn("capacity release exceeds reserved count, clamping to zero",
			zap.String("window", key.String()),
			zap.Int("count", count),
			zap.Int("reserved", w.reserved))
		w.reserved = 0
		return nil
	}
	w.reserved -= count
	return nil
}

func (l *Ledger) Peek(ctx context.Context, key domain.WindowKey) (int, error) {
	if w, ok := l.lookup(key); ok {
		if err := w.lock(ctx); err != nil {
			return 0, err
		}
		defer w.unlock()
		return w.total - w.reserved, nil
	}

	capacity, err := l.catalog.GetCapacity(ctx, key.PackageID, key.Date)
	if err != nil {
		return 0, err
	}
	return capacity, nil
}

// Snapshot returns a copy of the window, or false if it was never touched.
func (l *Ledger) Snapshot(ctx context.Context, key domain.WindowKey) (domain.CapacityWindow, bool, error) {
	w, ok := l.lookup(key)
	if !ok {
		return domain.CapacityWindow{}, false, nil
	}
	if err := w.lock(ctx); err != nil {
		return domain.CapacityWindow{}, false, err
	}
	defer w.unlock()
	return domain.CapacityWindow{Key: key, TotalCapacity: w.total, ReservedCount: w.reserved}, true, nil
}

var _ ports.Ledger = (*Ledger)(nil)
