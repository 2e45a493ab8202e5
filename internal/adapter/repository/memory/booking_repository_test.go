package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srgjo27/tour_booking/internal/core/domain"
)

func newBooking(code string) *domain.Booking {
	now := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Booking{
		ID:               uuid.New(),
		BookingCode:      code,
		PackageID:        7,
		SelectedDate:     travelDate,
		ParticipantCount: 2,
		UnitPrice:        1500,
		TotalPrice:       3000,
		Status:           domain.BookingPending,
		ContactInfo:      domain.ContactInfo{Name: "Ana", Email: "ana@example.com", Phone: "+100"},
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          1,
	}
}

func TestBookingRepository_CreateAndGet(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()
	b := newBooking("BK-AAAA1111")

	err := repo.CreateWithAudit(ctx, b, domain.NewAuditEntry(b, domain.AuditCreated, "cust-1", "", b.CreatedAt))
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Count())

	byID, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.BookingCode, byID.BookingCode)

	byCode, err := repo.GetByCode(ctx, "BK-AAAA1111")
	require.NoError(t, err)
	assert.Equal(t, b.ID, byCode.ID)

	entries, err := repo.ListAudit(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditCreated, entries[0].Action)
}

func TestBookingRepository_DuplicateCode(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()
	first := newBooking("BK-DUP")
	second := newBooking("BK-DUP")

	require.NoError(t, repo.CreateWithAudit(ctx, first, domain.NewAuditEntry(first, domain.AuditCreated, "a", "", first.CreatedAt)))
	err := repo.CreateWithAudit(ctx, second, domain.NewAuditEntry(second, domain.AuditCreated, "a", "", second.CreatedAt))
	assert.ErrorIs(t, err, domain.ErrDuplicateBookingCode)

	_, err = repo.ListAudit(ctx, second.ID)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestBookingRepository_GetByID_NotFound(t *testing.T) {
	repo := NewBookingRepository()

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)

	_, err = repo.GetByCode(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestBookingRepository_UpdateWithAudit_VersionGuard(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()
	b := newBooking("BK-V")
	require.NoError(t, repo.CreateWithAudit(ctx, b, domain.NewAuditEntry(b, domain.AuditCreated, "a", "", b.CreatedAt)))

	confirmed := *b
	confirmed.Status = domain.BookingConfirmed
	require.NoError(t, repo.UpdateWithAudit(ctx, &confirmed, 1,
		domain.NewAuditEntry(&confirmed, domain.AuditConfirmed, "admin", "", b.CreatedAt.Add(time.Minute))))
	assert.Equal(t, 2, confirmed.Version)

	stale := *b
	stale.Status = domain.BookingCancelled
	err := repo.UpdateWithAudit(ctx, &stale, 1,
		domain.NewAuditEntry(&stale, domain.AuditCancelled, "admin", "", b.CreatedAt.Add(2*time.Minute)))
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	stored, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, stored.Status)
	assert.Equal(t, 2, stored.Version)

	entries, err := repo.ListAudit(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBookingRepository_AuditTimelineNeverGoesBackwards(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()
	b := newBooking("BK-T")
	require.NoError(t, repo.CreateWithAudit(ctx, b, domain.NewAuditEntry(b, domain.AuditCreated, "a", "", b.CreatedAt)))

	note := domain.NewAuditEntry(b, domain.AuditAdminNote, "admin", "called customer", b.CreatedAt.Add(-time.Hour))
	require.NoError(t, repo.AppendAudit(ctx, note))

	entries, err := repo.ListAudit(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[1].CreatedAt.Before(entries[0].CreatedAt))
}

func TestBookingRepository_AppendAudit_UnknownBooking(t *testing.T) {
	repo := NewBookingRepository()
	b := newBooking("BK-X")

	err := repo.AppendAudit(context.Background(), domain.NewAuditEntry(b, domain.AuditAdminNote, "a", "", time.Now()))
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestBookingRepository_ListStalePending(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()

	past := newBooking("BK-PAST")
	past.SelectedDate = travelDate.AddDate(0, 0, -10)
	future := newBooking("BK-FUT")
	future.SelectedDate = travelDate.AddDate(0, 0, 10)
	confirmed := newBooking("BK-CONF")
	confirmed.SelectedDate = travelDate.AddDate(0, 0, -10)
	confirmed.Status = domain.BookingConfirmed

	for _, b := range []*domain.Booking{past, future, confirmed} {
		require.NoError(t, repo.CreateWithAudit(ctx, b, domain.NewAuditEntry(b, domain.AuditCreated, "a", "", b.CreatedAt)))
	}

	ids, err := repo.ListStalePending(ctx, travelDate, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{past.ID}, ids)
}
