package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/srgjo27/tour_booking/internal/core/domain"
)

type UpdateDetailsRequest struct {
	ContactInfo     *domain.ContactInfo `json:"contact_info,omitempty"`
	SpecialRequests *string             `json:"special_requests,omitempty"`
}

// AddNote records a free-text admin note on the booking's timeline. The
// booking itself is untouched, so its version does not move.
func (s *TransitionService) AddNote(ctx context.Context, bookingID uuid.UUID, actor domain.Actor, note string) (*domain.AuditLogEntry, error) {
	if !actor.IsPrivileged() {
		return nil, &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "add notes"}
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, &domain.ValidationError{Fields: map[string]string{"note": "is required"}}
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	entry := domain.NewAuditEntry(booking, domain.AuditAdminNote, actor.ID, note, s.cfg.now())
	if err := s.bookingRepo.AppendAudit(ctx, entry); err != nil {
		return nil, &domain.PersistenceError{Op: "append note", Err: err}
	}

	s.log.Info("admin note added",
		zap.String("booking_id", bookingID.String()),
		zap.String("actor", actor.ID))
	return entry, nil
}

// UpdateDetails edits contact info and special requests of a live booking.
// Counts, dates and prices are fixed once reserved.
func (s *TransitionService) UpdateDetails(ctx context.Context, bookingID uuid.UUID, actor domain.Actor, req UpdateDetailsRequest) (*domain.Booking, error) {
	if req.ContactInfo == nil && req.SpecialRequests == nil {
		return nil, &domain.ValidationError{Fields: map[string]string{"body": "nothing to update"}}
	}

	var contact domain.ContactInfo
	if req.ContactInfo != nil {
		contact = normalizeContact(*req.ContactInfo)
		fields := make(map[string]string)
		contactErrors(contact, fields)
		if len(fields) > 0 {
			return nil, &domain.ValidationError{Fields: fields}
		}
	}

	result, err := s.apply(ctx, bookingID, func(current *domain.Booking) (*domain.Booking, *domain.AuditLogEntry, error) {
		if !actor.IsPrivileged() && !current.OwnedBy(actor.ID) {
			return nil, nil, &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "update booking details"}
		}
		if current.Status.IsTerminal() {
			return nil, nil, &domain.TerminalStateError{IllegalTransitionError: &domain.IllegalTransitionError{
				From:    current.Status,
				To:      current.Status,
				Allowed: current.Status.NextStates(),
			}}
		}

		now := s.cfg.now()
		next := *current
		var changed []string
		if req.ContactInfo != nil {
			next.ContactInfo = contact
			changed = append(changed, "contact_info")
		}
		if req.SpecialRequests != nil {
			next.SpecialRequests = strings.TrimSpace(*req.SpecialRequests)
			changed = append(changed, "special_requests")
		}
		next.UpdatedAt = now

		entry := domain.NewAuditEntry(&next, domain.AuditUpdated, actor.ID, "updated "+strings.Join(changed, ", "), now)
		return &next, entry, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking details updated",
		zap.String("booking_id", bookingID.String()),
		zap.String("actor", actor.ID))

	s.publish(ctx, result.after, result.entry)
	return result.after, nil
}
