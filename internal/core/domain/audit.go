package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditCreated   AuditAction = "created"
	AuditConfirmed AuditAction = "confirmed"
	AuditCompleted AuditAction = "completed"
	AuditCancelled AuditAction = "cancelled"
	AuditRefunded  AuditAction = "refunded"
	AuditAdminNote AuditAction = "admin_note"
	AuditUpdated   AuditAction = "updated"
)

// ActionForStatus maps the status a booking enters to its audit action.
func ActionForStatus(s BookingStatus) AuditAction {
	switch s {
	case BookingPending:
		return AuditCreated
	case BookingConfirmed:
		return AuditConfirmed
	case BookingCompleted:
		return AuditCompleted
	case BookingCancelled:
		return AuditCancelled
	case BookingRefunded:
		return AuditRefunded
	}
	return ""
}

// StatusForAction is the inverse of ActionForStatus. Notes and detail
// updates do not move the booking.
func StatusForAction(a AuditAction) (BookingStatus, bool) {
	switch a {
	case AuditCreated:
		return BookingPending, true
	case AuditConfirmed:
		return BookingConfirmed, true
	case AuditCompleted:
		return BookingCompleted, true
	case AuditCancelled:
		return BookingCancelled, true
	case AuditRefunded:
		return BookingRefunded, true
	}
	return "", false
}

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditCreated, AuditConfirmed, AuditCompleted, AuditCancelled,
		AuditRefunded, AuditAdminNote, AuditUpdated:
		return true
	}
	return false
}

type AuditLogEntry struct {
	ID          uuid.UUID
	BookingID   uuid.UUID
	BookingCode string
	Action      AuditAction
	Message     string
	ActorID     string
	CreatedAt   time.Time
}

func NewAuditEntry(b *Booking, action AuditAction, actorID, message string, at time.Time) *AuditLogEntry {
	return &AuditLogEntry{
		ID:          uuid.New(),
		BookingID:   b.ID,
		BookingCode: b.BookingCode,
		Action:      action,
		Message:     message,
		ActorID:     actorID,
		CreatedAt:   at,
	}
}

// ReplayStatus walks entries in order and returns the status they lead to.
// It fails on the first entry that is not a legal step from the previous one.
func ReplayStatus(entries []AuditLogEntry) (BookingStatus, error) {
	var current BookingStatus
	for i, e := range entries {
		next, moves := StatusForAction(e.Action)
		if !moves {
			continue
		}
		if i == 0 || current == "" {
			if next != BookingPending {
				return "", &IllegalTransitionError{From: "", To: next}
			}
			current = next
			continue
		}
		if err := CheckTransition(current, next); err != nil {
			return current, err
		}
		current = next
	}
	return current, nil
}
