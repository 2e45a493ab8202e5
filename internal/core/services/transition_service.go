package services

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/ports"
)

// releaseAttempts bounds retries of a capacity release after the status
// change that requires it has been committed.
const releaseAttempts = 3

type TransitionService struct {
	bookingRepo ports.BookingRepository
	ledger      ports.Ledger
	publisher   ports.EventPublisher
	log         *zap.Logger
	cfg         settings
}

func NewTransitionService(
	bookingRepo ports.BookingRepository,
	ledger ports.Ledger,
	publisher ports.EventPublisher,
	log *zap.Logger,
	opts ...Option,
) *TransitionService {
	return &TransitionService{
		bookingRepo: bookingRepo,
		ledger:      ledger,
		publisher:   publisher,
		log:         log,
		cfg:         applyOptions(opts),
	}
}

// mutation is one optimistic attempt: given the freshly loaded booking it
// returns the updated copy and the audit entry to write with it.
type mutation func(current *domain.Booking) (*domain.Booking, *domain.AuditLogEntry, error)

type applied struct {
	before *domain.Booking
	after  *domain.Booking
	entry  *domain.AuditLogEntry
}

// apply runs load-validate-write cycles until one write lands on the version
// it was based on. Version conflicts are retried up to the configured
// attempts, every other failure stops immediately.
func (s *TransitionService) apply(ctx context.Context, bookingID uuid.UUID, mutate mutation) (*applied, error) {
	attempts := 0
	op := func() (*applied, error) {
		attempts++

		current, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			if errors.Is(err, domain.ErrBookingNotFound) {
				return nil, backoff.Permanent(err)
			}
			return nil, backoff.Permanent(&domain.PersistenceError{Op: "load booking", Err: err})
		}

		next, entry, err := mutate(current)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		err = s.bookingRepo.UpdateWithAudit(ctx, next, current.Version, entry)
		switch {
		case err == nil:
			return &applied{before: current, after: next, entry: entry}, nil
		case errors.Is(err, domain.ErrVersionConflict):
			s.log.Debug("booking version conflict, retrying",
				zap.String("booking_id", bookingID.String()),
				zap.Int("version", current.Version),
				zap.Int("attempt", attempts))
			return nil, err
		case errors.Is(err, domain.ErrBookingNotFound):
			return nil, backoff.Permanent(err)
		default:
			return nil, backoff.Permanent(&domain.PersistenceError{Op: "update booking", Err: err})
		}
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(s.cfg.retryBackOff()),
		backoff.WithMaxTries(uint(s.cfg.maxAttempts)))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		var cme *domain.ConcurrentModificationError
		if !errors.As(err, &cme) && errors.Is(err, domain.ErrVersionConflict) {
			return nil, &domain.ConcurrentModificationError{BookingID: bookingID, Attempts: attempts}
		}
		return nil, err
	}
	return result, nil
}

// Transition moves a booking to target on behalf of actor. When the new
// status frees capacity that the booking still holds, the release happens
// exactly once: the CapacityReleased flag flips in the same guarded write as
// the status, so only one writer can ever see it go from false to true.
func (s *TransitionService) Transition(ctx context.Context, bookingID uuid.UUID, target domain.BookingStatus, actor domain.Actor, note string) (*domain.Booking, error) {
	var decidedFrom domain.BookingStatus
	tries := 0

	result, err := s.apply(ctx, bookingID, func(current *domain.Booking) (*domain.Booking, *domain.AuditLogEntry, error) {
		tries++
		// Strangers learn nothing about the booking's state.
		if !actor.IsPrivileged() && !current.OwnedBy(actor.ID) {
			return nil, nil, &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "move booking to " + string(target)}
		}
		if err := domain.CheckTransition(current.Status, target); err != nil {
			return nil, nil, err
		}
		// A retry must not re-apply a decision made against another status.
		if decidedFrom != "" && current.Status != decidedFrom {
			return nil, nil, &domain.ConcurrentModificationError{BookingID: current.ID, Attempts: tries}
		}
		decidedFrom = current.Status

		if !actor.CanTransition(current, target) {
			return nil, nil, &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "move booking to " + string(target)}
		}

		now := s.cfg.now()
		next := *current
		next.Status = target
		next.UpdatedAt = now
		if current.NeedsRelease(target) {
			next.CapacityReleased = true
		}
		entry := domain.NewAuditEntry(&next, domain.ActionForStatus(target), actor.ID, note, now)
		return &next, entry, nil
	})
	if err != nil {
		return nil, err
	}

	if result.after.CapacityReleased && !result.before.CapacityReleased {
		s.releaseCapacity(ctx, result.after)
	}

	s.log.Info("booking transitioned",
		zap.String("booking_id", bookingID.String()),
		zap.String("from", string(result.before.Status)),
		zap.String("to", string(result.after.Status)),
		zap.String("actor", actor.ID))

	s.publish(ctx, result.after, result.entry)
	return result.after, nil
}

// releaseCapacity returns the booking's units to the ledger. The status
// change is already durable, so a failure here is logged for
// reconciliation rather than surfaced.
func (s *TransitionService) releaseCapacity(ctx context.Context, b *domain.Booking) {
	key := b.WindowKey()
	_, err := backoff.Retry(context.WithoutCancel(ctx), func() (struct{}, error) {
		return struct{}{}, s.ledger.Release(context.WithoutCancel(ctx), key, b.ParticipantCount)
	}, backoff.WithBackOff(s.cfg.retryBackOff()), backoff.WithMaxTries(releaseAttempts))
	if err != nil {
		s.log.Error("capacity release failed after status change, window needs reconciliation",
			zap.String("booking_id", b.ID.String()),
			zap.String("window", key.String()),
			zap.Int("count", b.ParticipantCount),
			zap.Error(err))
		return
	}
	s.log.Info("capacity released",
		zap.String("booking_id", b.ID.String()),
		zap.String("window", key.String()),
		zap.Int("count", b.ParticipantCount))
}

func (s *TransitionService) publish(ctx context.Context, b *domain.Booking, entry *domain.AuditLogEntry) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.NewBookingEvent(b, entry)); err != nil {
		s.log.Warn("failed to publish booking event",
			zap.String("booking_id", b.ID.String()),
			zap.String("type", string(entry.Action)),
			zap.Error(err))
	}
}
