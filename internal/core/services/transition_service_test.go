package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/srgjo27/tour_booking/internal/adapter/repository/memory"
	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/ports/mocks"
	"github.com/srgjo27/tour_booking/internal/core/services"
)

var admin = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

func actions(entries []domain.AuditLogEntry) []domain.AuditAction {
	out := make([]domain.AuditAction, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func TestTransition_FullLifecycle(t *testing.T) {
	h := newHarness(t, 20)
	ctx := context.Background()
	b := h.create(t, 2)

	confirmed, err := h.transitions.Transition(ctx, b.ID, domain.BookingConfirmed, admin, "paid")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, confirmed.Status)
	assert.Equal(t, 2, confirmed.Version)

	completed, err := h.transitions.Transition(ctx, b.ID, domain.BookingCompleted, admin, "")
	require.NoError(t, err)
	assert.Equal(t, 3, completed.Version)
	assert.False(t, completed.CapacityReleased)
	assert.Equal(t, 18, h.available(t))

	entries, err := h.reservations.ListAuditLog(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.AuditAction{domain.AuditCreated, domain.AuditConfirmed, domain.AuditCompleted}, actions(entries))
	assert.Equal(t, "paid", entries[1].Message)
	assert.Equal(t, admin.ID, entries[1].ActorID)

	replayed, err := domain.ReplayStatus(entries)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCompleted, replayed)
}

func TestTransition_CancelReleasesCapacityOnce(t *testing.T) {
	h := newHarness(t, 20)
	ctx := context.Background()
	b := h.create(t, 2)
	assert.Equal(t, 18, h.available(t))

	cancelled, err := h.transitions.Transition(ctx, b.ID, domain.BookingCancelled, admin, "")
	require.NoError(t, err)
	assert.True(t, cancelled.CapacityReleased)
	assert.Equal(t, 20, h.available(t))

	refunded, err := h.transitions.Transition(ctx, b.ID, domain.BookingRefunded, admin, "")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingRefunded, refunded.Status)
	assert.Equal(t, 20, h.available(t), "refunding a cancelled booking must not release twice")

	h.create(t, 20)
	assert.Equal(t, 0, h.available(t))
}

func TestTransition_RefundPendingReleasesCapacity(t *testing.T) {
	h := newHarness(t, 20)
	b := h.create(t, 5)

	_, err := h.transitions.Transition(context.Background(), b.ID, domain.BookingRefunded, admin, "")
	require.NoError(t, err)
	assert.Equal(t, 20, h.available(t))
}

func TestTransition_RefundCompletedKeepsCapacityConsumed(t *testing.T) {
	h := newHarness(t, 20)
	ctx := context.Background()
	b := h.create(t, 2)

	for _, target := range []domain.BookingStatus{domain.BookingConfirmed, domain.BookingCompleted, domain.BookingRefunded} {
		_, err := h.transitions.Transition(ctx, b.ID, target, admin, "")
		require.NoError(t, err)
	}

	assert.Equal(t, 18, h.available(t))

	entries, err := h.reservations.ListAuditLog(ctx, b.ID)
	require.NoError(t, err)
	refunds := 0
	for _, e := range entries {
		if e.Action == domain.AuditRefunded {
			refunds++
		}
	}
	assert.Equal(t, 1, refunds)
}

func TestTransition_IllegalMoves(t *testing.T) {
	h := newHarness(t, 20)
	ctx := context.Background()
	b := h.create(t, 1)

	_, err := h.transitions.Transition(ctx, b.ID, domain.BookingCompleted, admin, "")
	var illegal *domain.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, domain.BookingPending, illegal.From)
	var terminal *domain.TerminalStateError
	assert.False(t, errors.As(err, &terminal))

	_, err = h.transitions.Transition(ctx, b.ID, domain.BookingStatus("shipped"), admin, "")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = h.transitions.Transition(ctx, b.ID, domain.BookingRefunded, admin, "")
	require.NoError(t, err)

	_, err = h.transitions.Transition(ctx, b.ID, domain.BookingConfirmed, admin, "")
	require.ErrorAs(t, err, &terminal)
	assert.ErrorAs(t, err, &illegal)
	assert.Empty(t, illegal.Allowed)

	stored, err := h.reservations.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingRefunded, stored.Status)
	assert.Equal(t, 2, stored.Version)
}

func TestTransition_NotFound(t *testing.T) {
	h := newHarness(t, 20)

	_, err := h.transitions.Transition(context.Background(), uuid.New(), domain.BookingConfirmed, admin, "")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestTransition_CustomerPermissions(t *testing.T) {
	h := newHarness(t, 20)
	ctx := context.Background()
	b := h.create(t, 3)

	owner := domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
	stranger := domain.Actor{ID: "cust-2", Role: domain.RoleCustomer}

	var forbidden *domain.ForbiddenError
	_, err := h.transitions.Transition(ctx, b.ID, domain.BookingConfirmed, owner, "")
	assert.ErrorAs(t, err, &forbidden)

	_, err = h.transitions.Transition(ctx, b.ID, domain.BookingCancelled, stranger, "")
	assert.ErrorAs(t, err, &forbidden)
	assert.Equal(t, 17, h.available(t))

	// An illegal target from a stranger must not reveal the current status.
	_, err = h.transitions.Transition(ctx, b.ID, domain.BookingCompleted, stranger, "")
	assert.ErrorAs(t, err, &forbidden)
	var illegal *domain.IllegalTransitionError
	assert.False(t, errors.As(err, &illegal))

	_, err = h.transitions.Transition(ctx, b.ID, domain.BookingCancelled, owner, "change of plans")
	require.NoError(t, err)
	assert.Equal(t, 20, h.available(t))
}

func TestTransition_ConcurrentCancelsReleaseOnce(t *testing.T) {
	h := newHarness(t, 20)
	b := h.create(t, 4)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.transitions.Transition(context.Background(), b.ID, domain.BookingCancelled, admin, "")

			mu.Lock()
			defer mu.Unlock()
			var illegal *domain.IllegalTransitionError
			var cme *domain.ConcurrentModificationError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &illegal), errors.As(err, &cme):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 20, h.available(t))

	entries, err := h.reservations.ListAuditLog(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.AuditAction{domain.AuditCreated, domain.AuditCancelled}, actions(entries))
}

func TestTransition_ConfirmAndCancelRaceStaysConsistent(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t, 10)
		b := h.create(t, 2)

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for n, target := range []domain.BookingStatus{domain.BookingConfirmed, domain.BookingCancelled} {
			wg.Add(1)
			go func(n int, target domain.BookingStatus) {
				defer wg.Done()
				_, errs[n] = h.transitions.Transition(context.Background(), b.ID, target, admin, "")
			}(n, target)
		}
		wg.Wait()

		// Confirm can only lose to a cancel that already committed.
		if errs[0] != nil {
			assert.NoError(t, errs[1])
		}

		stored, err := h.reservations.GetBooking(context.Background(), b.ID)
		require.NoError(t, err)
		entries, err := h.reservations.ListAuditLog(context.Background(), b.ID)
		require.NoError(t, err)

		replayed, err := domain.ReplayStatus(entries)
		require.NoError(t, err)
		assert.Equal(t, stored.Status, replayed)
		assert.Equal(t, len(entries), stored.Version)

		if stored.Status == domain.BookingCancelled {
			assert.Equal(t, 10, h.available(t))
		} else {
			assert.Equal(t, 8, h.available(t))
		}
	}
}

// loadBarrier holds the first two loads until both have read the booking,
// so both writers start from the same version.
type loadBarrier struct {
	*memory.BookingRepository
	mu      sync.Mutex
	loads   int
	release chan struct{}
}

func (r *loadBarrier) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, err := r.BookingRepository.GetByID(ctx, id)

	r.mu.Lock()
	r.loads++
	if r.loads == 2 {
		close(r.release)
	}
	r.mu.Unlock()

	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b, err
}

func TestTransition_VersionRaceHasOneWinner(t *testing.T) {
	for i := 0; i < 10; i++ {
		h := newHarness(t, 10)
		b := h.create(t, 2)

		repo := &loadBarrier{BookingRepository: h.repo, release: make(chan struct{})}
		transitions := services.NewTransitionService(repo, h.ledger, nil, zap.NewNop(),
			services.WithClock(h.clock.Now),
			services.WithRetryBackOff(noWait))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		targets := []domain.BookingStatus{domain.BookingConfirmed, domain.BookingCancelled}
		errs := make([]error, len(targets))

		var wg sync.WaitGroup
		for n, target := range targets {
			wg.Add(1)
			go func(n int, target domain.BookingStatus) {
				defer wg.Done()
				_, errs[n] = transitions.Transition(ctx, b.ID, target, admin, "")
			}(n, target)
		}
		wg.Wait()
		cancel()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
				continue
			}
			var cme *domain.ConcurrentModificationError
			var illegal *domain.IllegalTransitionError
			assert.True(t, errors.As(err, &cme) || errors.As(err, &illegal), "unexpected error: %v", err)
		}
		require.Equal(t, 1, winners, "errs=%v", errs)

		stored, err := h.reservations.GetBooking(context.Background(), b.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Version)

		entries, err := h.reservations.ListAuditLog(context.Background(), b.ID)
		require.NoError(t, err)
		replayed, err := domain.ReplayStatus(entries)
		require.NoError(t, err)
		assert.Equal(t, stored.Status, replayed)

		if stored.Status == domain.BookingCancelled {
			assert.Equal(t, 10, h.available(t))
		} else {
			assert.Equal(t, 8, h.available(t))
		}
	}
}

func TestTransition_RetriesExhausted(t *testing.T) {
	mockRepo := mocks.NewBookingRepository(t)
	mockLedger := mocks.NewLedger(t)
	service := services.NewTransitionService(mockRepo, mockLedger, nil, zap.NewNop(),
		services.WithMaxAttempts(3), services.WithRetryBackOff(noWait))

	ctx := context.Background()
	date, _ := domain.ParseDate(travelDate)
	booking := &domain.Booking{
		ID:               uuid.New(),
		BookingCode:      "BK-RACE0001",
		PackageID:        packageID,
		SelectedDate:     date,
		ParticipantCount: 1,
		Status:           domain.BookingPending,
		Version:          4,
	}

	mockRepo.On("GetByID", ctx, booking.ID).Return(booking, nil).Times(3)
	mockRepo.On("UpdateWithAudit", ctx, mock.AnythingOfType("*domain.Booking"), 4, mock.AnythingOfType("*domain.AuditLogEntry")).
		Return(domain.ErrVersionConflict).Times(3)

	_, err := service.Transition(ctx, booking.ID, domain.BookingConfirmed, admin, "")

	var cme *domain.ConcurrentModificationError
	require.ErrorAs(t, err, &cme)
	assert.Equal(t, 3, cme.Attempts)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestTransition_StorageFailureIsNotRetried(t *testing.T) {
	mockRepo := mocks.NewBookingRepository(t)
	service := services.NewTransitionService(mockRepo, mocks.NewLedger(t), nil, zap.NewNop(),
		services.WithRetryBackOff(noWait))

	ctx := context.Background()
	booking := &domain.Booking{ID: uuid.New(), Status: domain.BookingPending, Version: 1}

	mockRepo.On("GetByID", ctx, booking.ID).Return(booking, nil).Once()
	mockRepo.On("UpdateWithAudit", ctx, mock.Anything, 1, mock.Anything).
		Return(errors.New("disk full")).Once()

	_, err := service.Transition(ctx, booking.ID, domain.BookingConfirmed, admin, "")

	var perr *domain.PersistenceError
	assert.ErrorAs(t, err, &perr)
}

func TestTransition_ReleaseFailureDoesNotUndoStatus(t *testing.T) {
	repo := memory.NewBookingRepository()
	mockLedger := mocks.NewLedger(t)
	service := services.NewTransitionService(repo, mockLedger, nil, zap.NewNop(),
		services.WithRetryBackOff(noWait))

	ctx := context.Background()
	date, _ := domain.ParseDate(travelDate)
	booking := &domain.Booking{
		ID:               uuid.New(),
		BookingCode:      "BK-LEDGER01",
		PackageID:        packageID,
		SelectedDate:     date,
		ParticipantCount: 2,
		Status:           domain.BookingConfirmed,
		Version:          1,
	}
	require.NoError(t, repo.CreateWithAudit(ctx, booking,
		domain.NewAuditEntry(booking, domain.AuditCreated, "cust-1", "", today)))

	mockLedger.On("Release", mock.Anything, booking.WindowKey(), 2).
		Return(errors.New("ledger unavailable")).Times(3)

	updated, err := service.Transition(ctx, booking.ID, domain.BookingCancelled, admin, "")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, updated.Status)
	assert.True(t, updated.CapacityReleased)
}

func TestTransition_PublishesEvent(t *testing.T) {
	h := newHarness(t, 20)
	b := h.create(t, 1)

	publisher := mocks.NewEventPublisher(t)
	service := services.NewTransitionService(h.repo, h.ledger, publisher, zap.NewNop(),
		services.WithClock(h.clock.Now))

	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.BookingEvent) bool {
		return e.Type == domain.AuditConfirmed && e.BookingID == b.ID && e.ActorID == admin.ID
	})).Return(nil).Once()

	_, err := service.Transition(context.Background(), b.ID, domain.BookingConfirmed, admin, "")
	require.NoError(t, err)
}

func TestAuditTimeline_NonDecreasingWhenClockStepsBack(t *testing.T) {
	h := newHarness(t, 20)
	ctx := context.Background()
	b := h.create(t, 1)

	h.clock.Set(today.Add(-time.Hour))
	_, err := h.transitions.Transition(ctx, b.ID, domain.BookingConfirmed, admin, "")
	require.NoError(t, err)

	entries, err := h.reservations.ListAuditLog(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[1].CreatedAt.Before(entries[0].CreatedAt))
}
