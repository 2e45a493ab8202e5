package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/ports"
)

// BookingRepository keeps bookings and their audit trail behind one mutex,
// which makes every booking write and its audit entry a single atomic unit.
type BookingRepository struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]domain.Booking
	codes    map[string]uuid.UUID
	audit    map[uuid.UUID][]domain.AuditLogEntry
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		bookings: make(map[uuid.UUID]domain.Booking),
		codes:    make(map[string]uuid.UUID),
		audit:    make(map[uuid.UUID][]domain.AuditLogEntry),
	}
}

func (r *BookingRepository) CreateWithAudit(ctx context.Context, booking *domain.Booking, entry *domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.codes[booking.BookingCode]; exists {
		return domain.ErrDuplicateBookingCode
	}

	r.bookings[booking.ID] = *booking
	r.codes[booking.BookingCode] = booking.ID
	r.appendLocked(entry)
	return nil
}

func (r *BookingRepository) UpdateWithAudit(ctx context.Context, booking *domain.Booking, expectedVersion int, entry *domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[booking.ID]
	if !ok {
		return domain.ErrBookingNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrVersionConflict
	}

	booking.Version = expectedVersion + 1
	r.bookings[booking.ID] = *booking
	r.appendLocked(entry)
	return nil
}

func (r *BookingRepository) AppendAudit(ctx context.Context, entry *domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[entry.BookingID]; !ok {
		return domain.ErrBookingNotFound
	}
	r.appendLocked(entry)
	return nil
}

// appendLocked keeps each booking's timeline non-decreasing even if the
// caller's clock stepped backwards.
func (r *BookingRepository) appendLocked(entry *domain.AuditLogEntry) {
	entries := r.audit[entry.BookingID]
	if n := len(entries); n > 0 && entry.CreatedAt.Before(entries[n-1].CreatedAt) {
		entry.CreatedAt = entries[n-1].CreatedAt
	}
	r.audit[entry.BookingID] = append(entries, *entry)
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return &b, nil
}

func (r *BookingRepository) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.codes[code]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	b := r.bookings[id]
	return &b, nil
}

func (r *BookingRepository) ListAudit(ctx context.Context, bookingID uuid.UUID) ([]domain.AuditLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.bookings[bookingID]; !ok {
		return nil, domain.ErrBookingNotFound
	}
	entries := r.audit[bookingID]
	out := make([]domain.AuditLogEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (r *BookingRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []domain.Booking
	for _, b := range r.bookings {
		if b.Status == domain.BookingPending && b.SelectedDate.Before(before) {
			stale = append(stale, b)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].SelectedDate.Before(stale[j].SelectedDate)
	})

	ids := make([]uuid.UUID, 0, len(stale))
	for _, b := range stale {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, b.ID)
	}
	return ids, nil
}

// Count returns the number of stored bookings.
func (r *BookingRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bookings)
}

var _ ports.BookingRepository = (*BookingRepository)(nil)
