package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/ports"
)

const sweepBatchSize = 100

// Sweeper cancels bookings still pending after their travel date has passed,
// which hands their capacity back to the ledger.
type Sweeper struct {
	bookingRepo ports.BookingRepository
	transitions *TransitionService
	log         *zap.Logger
	interval    time.Duration
	now         func() time.Time
}

func NewSweeper(bookingRepo ports.BookingRepository, transitions *TransitionService, log *zap.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		bookingRepo: bookingRepo,
		transitions: transitions,
		log:         log,
		interval:    interval,
		now:         transitions.cfg.now,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("stale booking sweeper started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stale booking sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce processes one batch and returns how many bookings it cancelled.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	today := domain.TruncateDate(s.now())

	ids, err := s.bookingRepo.ListStalePending(ctx, today, sweepBatchSize)
	if err != nil {
		s.log.Error("failed to list stale bookings", zap.Error(err))
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	s.log.Info("cancelling stale pending bookings", zap.Int("count", len(ids)))

	cancelled := 0
	for _, id := range ids {
		_, err := s.transitions.Transition(ctx, id, domain.BookingCancelled, domain.SystemActor, "travel date passed while pending")
		if err != nil {
			var illegal *domain.IllegalTransitionError
			if errors.As(err, &illegal) {
				// Someone else moved it since the listing.
				continue
			}
			s.log.Warn("failed to cancel stale booking",
				zap.String("booking_id", id.String()),
				zap.Error(err))
			continue
		}
		cancelled++
	}
	return cancelled
}
