package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/srgjo27/tour_booking/internal/core/domain"
)

// Ledger owns the capacity windows. TryReserve and Release are atomic per
// window key; Peek is a snapshot and guarantees nothing about later calls.
type Ledger interface {
	TryReserve(ctx context.Context, key domain.WindowKey, count int) (domain.ReservationToken, error)
	Release(ctx context.Context, key domain.WindowKey, count int) error
	Peek(ctx context.Context, key domain.WindowKey) (int, error)
}

// BookingRepository stores bookings together with their audit trail. Every
// write method persists the booking change and the audit entry in one
// atomic unit.
type BookingRepository interface {
	CreateWithAudit(ctx context.Context, booking *domain.Booking, entry *domain.AuditLogEntry) error
	// UpdateWithAudit writes booking only if the stored version still equals
	// expectedVersion, returning domain.ErrVersionConflict otherwise.
	UpdateWithAudit(ctx context.Context, booking *domain.Booking, expectedVersion int, entry *domain.AuditLogEntry) error
	AppendAudit(ctx context.Context, entry *domain.AuditLogEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	GetByCode(ctx context.Context, code string) (*domain.Booking, error)
	ListAudit(ctx context.Context, bookingID uuid.UUID) ([]domain.AuditLogEntry, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
}

type Catalog interface {
	GetCapacity(ctx context.Context, packageID int64, date time.Time) (int, error)
	GetUnitPrice(ctx context.Context, packageID int64) (int64, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.BookingEvent) error
}
