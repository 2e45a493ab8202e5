package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingEvent is the message emitted after a lifecycle change committed.
type BookingEvent struct {
	Type         AuditAction   `json:"type"`
	BookingID    uuid.UUID     `json:"booking_id"`
	BookingCode  string        `json:"booking_code"`
	PackageID    int64         `json:"package_id"`
	Date         string        `json:"date"`
	Status       BookingStatus `json:"status"`
	Participants int           `json:"participants"`
	ActorID      string        `json:"actor_id"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

func NewBookingEvent(b *Booking, entry *AuditLogEntry) BookingEvent {
	return BookingEvent{
		Type:         entry.Action,
		BookingID:    b.ID,
		BookingCode:  b.BookingCode,
		PackageID:    b.PackageID,
		Date:         b.SelectedDate.Format(DateLayout),
		Status:       b.Status,
		Participants: b.ParticipantCount,
		ActorID:      entry.ActorID,
		OccurredAt:   entry.CreatedAt,
	}
}
