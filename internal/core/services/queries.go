package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/srgjo27/tour_booking/internal/core/domain"
)

func (s *ReservationService) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

func (s *ReservationService) GetBookingByCode(ctx context.Context, code string) (*domain.Booking, error) {
	return s.bookingRepo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

func (s *ReservationService) ListAuditLog(ctx context.Context, bookingID uuid.UUID) ([]domain.AuditLogEntry, error) {
	return s.bookingRepo.ListAudit(ctx, bookingID)
}

// PeekAvailability reports the spots left right now. A later CreateBooking
// can still fail; callers must handle that.
func (s *ReservationService) PeekAvailability(ctx context.Context, packageID int64, date string) (int, error) {
	d, err := domain.ParseDate(strings.TrimSpace(date))
	if err != nil {
		return 0, &domain.ValidationError{Fields: map[string]string{"date": "must be formatted as YYYY-MM-DD"}}
	}
	if packageID <= 0 {
		return 0, &domain.ValidationError{Fields: map[string]string{"package_id": "must be a positive id"}}
	}

	available, err := s.ledger.Peek(ctx, domain.NewWindowKey(packageID, d))
	if err != nil {
		return 0, fmt.Errorf("failed to read availability: %w", err)
	}
	return available, nil
}
