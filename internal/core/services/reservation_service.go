package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/ports"
)

// maxCodeAttempts bounds regeneration when a fresh booking code collides
// with an existing one.
const maxCodeAttempts = 3

type CreateBookingRequest struct {
	PackageID        int64              `json:"package_id"`
	Date             string             `json:"date"`
	ParticipantCount int                `json:"participant_count"`
	ContactInfo      domain.ContactInfo `json:"contact_info"`
	SpecialRequests  string             `json:"special_requests"`
	// CustomerID is filled from the authenticated actor, never from the body.
	CustomerID string `json:"-"`
}

type CreateBookingResponse struct {
	BookingID   string `json:"booking_id"`
	BookingCode string `json:"booking_code"`
	Status      string `json:"status"`
	UnitPrice   int64  `json:"unit_price"`
	TotalPrice  int64  `json:"total_price"`
	Remaining   int    `json:"remaining_spots"`
}

type ReservationService struct {
	ledger      ports.Ledger
	bookingRepo ports.BookingRepository
	catalog     ports.Catalog
	publisher   ports.EventPublisher
	log         *zap.Logger
	cfg         settings
}

func NewReservationService(
	ledger ports.Ledger,
	bookingRepo ports.BookingRepository,
	catalog ports.Catalog,
	publisher ports.EventPublisher,
	log *zap.Logger,
	opts ...Option,
) *ReservationService {
	return &ReservationService{
		ledger:      ledger,
		bookingRepo: bookingRepo,
		catalog:     catalog,
		publisher:   publisher,
		log:         log,
		cfg:         applyOptions(opts),
	}
}

func (s *ReservationService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*CreateBookingResponse, error) {
	req.ContactInfo = normalizeContact(req.ContactInfo)
	now := s.cfg.now()

	date, verr := validateCreate(req, now, s.cfg.maxParticipants)
	if verr != nil {
		return nil, verr
	}
	key := domain.NewWindowKey(req.PackageID, date)

	unitPrice, err := s.catalog.GetUnitPrice(ctx, req.PackageID)
	if err != nil {
		return nil, fmt.Errorf("failed to price package %d: %w", req.PackageID, err)
	}

	reserveCtx, cancel := context.WithTimeout(ctx, s.cfg.reserveTimeout)
	token, err := s.ledger.TryReserve(reserveCtx, key, req.ParticipantCount)
	cancel()
	if err != nil {
		var insufficient *domain.InsufficientAvailabilityError
		if errors.As(err, &insufficient) {
			return nil, insufficient
		}
		return nil, fmt.Errorf("failed to reserve capacity for %s: %w", key, err)
	}

	booking := &domain.Booking{
		ID:               uuid.New(),
		PackageID:        req.PackageID,
		SelectedDate:     key.Date,
		ParticipantCount: req.ParticipantCount,
		UnitPrice:        unitPrice,
		TotalPrice:       unitPrice * int64(req.ParticipantCount),
		Status:           domain.BookingPending,
		ContactInfo:      req.ContactInfo,
		SpecialRequests:  req.SpecialRequests,
		CustomerID:       req.CustomerID,
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          1,
	}

	entry, err := s.persistNew(ctx, booking)
	if err != nil {
		s.rollbackReservation(ctx, token)
		return nil, &domain.PersistenceError{Op: "create booking", Err: err}
	}

	s.log.Info("booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("booking_code", booking.BookingCode),
		zap.String("window", key.String()),
		zap.Int("participants", booking.ParticipantCount))

	s.publish(ctx, booking, entry)

	return &CreateBookingResponse{
		BookingID:   booking.ID.String(),
		BookingCode: booking.BookingCode,
		Status:      string(booking.Status),
		UnitPrice:   booking.UnitPrice,
		TotalPrice:  booking.TotalPrice,
		Remaining:   token.Remaining,
	}, nil
}

// persistNew writes the booking and its created entry, drawing a new code
// whenever the previous one was already taken.
func (s *ReservationService) persistNew(ctx context.Context, booking *domain.Booking) (*domain.AuditLogEntry, error) {
	var lastErr error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.cfg.newCode()
		if err != nil {
			return nil, err
		}
		booking.BookingCode = code
		entry := domain.NewAuditEntry(booking, domain.AuditCreated, creatorID(booking), "", booking.CreatedAt)

		err = s.bookingRepo.CreateWithAudit(ctx, booking, entry)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, domain.ErrDuplicateBookingCode) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func creatorID(b *domain.Booking) string {
	if b.CustomerID != "" {
		return b.CustomerID
	}
	return "guest"
}

// rollbackReservation hands capacity back after a failed write. It runs
// detached from the request context so a cancelled client cannot strand the
// reservation.
func (s *ReservationService) rollbackReservation(ctx context.Context, token domain.ReservationToken) {
	if err := s.ledger.Release(context.WithoutCancel(ctx), token.Key, token.Count); err != nil {
		s.log.Error("failed to roll back capacity reservation",
			zap.String("window", token.Key.String()),
			zap.Int("count", token.Count),
			zap.Error(err))
		return
	}
	s.log.Warn("capacity reservation rolled back",
		zap.String("window", token.Key.String()),
		zap.Int("count", token.Count))
}

func (s *ReservationService) publish(ctx context.Context, b *domain.Booking, entry *domain.AuditLogEntry) {
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
