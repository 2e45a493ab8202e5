package redis

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/ports"
)

//go:embed scripts/reserve.lua
var reserveSource string

//go:embed scripts/release.lua
var releaseSource string

var (
	reserveScript = goredis.NewScript(reserveSource)
	releaseScript = goredis.NewScript(releaseSource)
)

const (
	fieldTotal    = "total"
	fieldReserved = "reserved"
)

// Ledger keeps each capacity window in a Redis hash. Reserve and release
// run as Lua scripts, which Redis executes one at a time, so the
// availability check and the increment can never interleave with another
// caller.
type Ledger struct {
	client  goredis.UniversalClient
	catalog ports.Catalog
	log     *zap.Logger
	prefix  string
	init    singleflight.Group
}

func NewLedger(client goredis.UniversalClient, catalog ports.Catalog, log *zap.Logger) *Ledger {
	return &Ledger{client: client, catalog: catalog, log: log, prefix: "capacity"}
}

func (l *Ledger) windowKey(key domain.WindowKey) string {
	return fmt.Sprintf("%s:%d:%s", l.prefix, key.PackageID, key.Date.Format(domain.DateLayout))
}

// initWindow seeds the hash from the catalog. HSETNX keeps a concurrent
// initializer on another instance from resetting the reserved count.
func (l *Ledger) initWindow(ctx context.Context, key domain.WindowKey) error {
	_, err, _ := l.init.Do(key.String(), func() (any, error) {
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		ctx := context.WithoutCancel(ctx)
		capacity, err := l.catalog.GetCapacity(ctx, key.PackageID, key.Date)
		if err != nil {
			return nil, err
		}
		if capacity < 0 {
			return nil, fmt.Errorf("catalog returned negative capacity %d for %s", capacity, key)
		}

		k := l.windowKey(key)
		_, err = l.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSetNX(ctx, k, fieldTotal, capacity)
			pipe.HSetNX(ctx, k, fieldReserved, 0)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize capacity window %s: %w", key, err)
		}
		return nil, nil
	})
	return err
}

// run executes a ledger script detached from ctx cancellation. A script
// that reached Redis always completes there, so abandoning the reply would
// leave the caller unsure whether units moved.
func run(ctx context.Context, client goredis.UniversalClient, script *goredis.Script, key string, count int) (int64, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	values, err := script.Run(context.WithoutCancel(ctx), client, []string{key}, count).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected script result length: %d", len(values))
	}
	return values[0], values[1], nil
}

func (l *Ledger) TryReserve(ctx context.Context, key domain.WindowKey, count int) (domain.ReservationToken, error) {
	if count <= 0 {
		return domain.ReservationToken{}, fmt.Errorf("reserve count must be positive, got %d", count)
	}

	k := l.windowKey(key)
	status, value, err := run(ctx, l.client, reserveScript, k, count)
	if err != nil {
		return domain.ReservationToken{}, fmt.Errorf("failed to execute reserve script: %w", err)
	}

	if status == -1 {
		if err := l.initWindow(ctx, key); err != nil {
			return domain.ReservationToken{}, err
		}
		status, value, err = run(ctx, l.client, reserveScript, k, count)
		if err != nil {
			return domain.ReservationToken{}, fmt.Errorf("failed to execute reserve script: %w", err)
		}
	}

	switch status {
	case 1:
		return domain.ReservationToken{Key: key, Count: count, Remaining: int(value)}, nil
	case 0:
		return domain.ReservationToken{}, &domain.InsufficientAvailabilityError{
			Key:            key,
			Requested:      count,
			AvailableSpots: int(value),
		}
	default:
		return domain.ReservationToken{}, fmt.Errorf("capacity window %s missing after initialization", key)
	}
}

func (l *Ledger) Release(ctx context.Context, key domain.WindowKey, count int) error {
	if count <= 0 {
		return fmt.Errorf("release count must be positive, got %d", count)
	}

	status, value, err := run(ctx, l.client, releaseScript, l.windowKey(key), count)
	if err != nil {
		return fmt.Errorf("failed to execute release script: %w", err)
	}

	switch status {
	case -1:
		l.log.Warn("release on unknown capacity window",
			zap.String("window", key.String()), zap.Int("count", count))
	case 0:
		l.log.Warn("capacity release exceeds reserved count, clamping to zero",
			zap.String("window", key.String()),
			zap.Int("count", count),
			zap.Int64("reserved", value))
	}
	return nil
}

func (l *Ledger) Peek(ctx context.Context, key domain.WindowKey) (int, error) {
	values, err := l.client.HMGet(ctx, l.windowKey(key), fieldTotal, fieldReserved).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return 0, err
	}
	if len(values) < 2 || values[0] == nil {
		return l.catalog.GetCapacity(ctx, key.PackageID, key.Date)
	}

	total, err := toInt(values[0])
	if err != nil {
		return 0, err
	}
	reserved, err := toInt(values[1])
	if err != nil {
		return 0, err
	}
	return total - reserved, nil
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, fmt.Errorf("invalid counter value %q: %w", t, err)
		}
		return n, nil
	case int64:
		return int(t), nil
	default:
		return 0, fmt.Errorf("unexpected counter type %T", v)
	}
}

var _ ports.Ledger = (*Ledger)(nil)
