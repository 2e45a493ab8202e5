package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRefunded  BookingStatus = "refunded"
)

// transitions is the full lifecycle table. A status missing from the map is
// not a status at all.
var transitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled, BookingRefunded},
	BookingConfirmed: {BookingCompleted, BookingCancelled, BookingRefunded},
	BookingCompleted: {BookingRefunded},
	BookingCancelled: {BookingRefunded},
	BookingRefunded:  {},
}

func ParseBookingStatus(s string) (BookingStatus, bool) {
	status := BookingStatus(s)
	_, ok := transitions[status]
	return status, ok
}

func (s BookingStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s BookingStatus) String() string {
	return string(s)
}

// NextStates returns the statuses reachable from s in one step.
func (s BookingStatus) NextStates() []BookingStatus {
	next := transitions[s]
	out := make([]BookingStatus, len(next))
	copy(out, next)
	return out
}

func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the trip lifecycle has ended. Completed and
// cancelled bookings can still be refunded, but nothing else.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled || s == BookingRefunded
}

// HoldsCapacity reports whether a booking in this status still occupies
// ledger capacity that has not been consumed by a finished trip.
func (s BookingStatus) HoldsCapacity() bool {
	return s == BookingPending || s == BookingConfirmed
}

// ReleasesCapacity reports whether entering this status gives capacity back.
func (s BookingStatus) ReleasesCapacity() bool {
	return s == BookingCancelled || s == BookingRefunded
}

// CheckTransition validates from -> to against the lifecycle table.
func CheckTransition(from, to BookingStatus) error {
	if !to.IsValid() {
		return &ValidationError{Fields: map[string]string{"status": "unknown status " + string(to)}}
	}
	if from.CanTransitionTo(to) {
		return nil
	}
	illegal := &IllegalTransitionError{From: from, To: to, Allowed: from.NextStates()}
	if from.IsTerminal() {
		return &TerminalStateError{IllegalTransitionError: illegal}
	}
	return illegal
}

type ContactInfo struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

type Booking struct {
	ID               uuid.UUID
	BookingCode      string
	PackageID        int64
	SelectedDate     time.Time
	ParticipantCount int
	UnitPrice        int64
	TotalPrice       int64
	Status           BookingStatus
	ContactInfo      ContactInfo
	SpecialRequests  string
	CustomerID       string
	CapacityReleased bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int
}

func (b *Booking) WindowKey() WindowKey {
	return NewWindowKey(b.PackageID, b.SelectedDate)
}

// OwnedBy reports whether actorID created the booking.
func (b *Booking) OwnedBy(actorID string) bool {
	return b.CustomerID != "" && b.CustomerID == actorID
}

// NeedsRelease reports whether moving to target must hand capacity back to
// the ledger. Completed trips consumed their seats, so refunding them does
// not free anything.
func (b *Booking) NeedsRelease(target BookingStatus) bool {
	return target.ReleasesCapacity() && b.Status.HoldsCapacity() && !b.CapacityReleased
}
