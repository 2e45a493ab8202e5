package services

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/srgjo27/tour_booking/internal/core/domain"
)

var contactValidator = validator.New(validator.WithRequiredStructEnabled())

func normalizeContact(c domain.ContactInfo) domain.ContactInfo {
	return domain.ContactInfo{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
		Phone: strings.TrimSpace(c.Phone),
	}
}

// contactErrors adds one message per failing contact field to fields.
func contactErrors(c domain.ContactInfo, fields map[string]string) {
	err := contactValidator.Struct(c)
	if err == nil {
		return
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["contact_info"] = err.Error()
		return
	}
	for _, fe := range verrs {
		key := "contact_info." + strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			fields[key] = "is required"
		case "email":
			fields[key] = "is not a valid email address"
		default:
			fields[key] = "failed " + fe.Tag() + " check"
		}
	}
}

// validateCreate checks a booking request and returns the parsed travel date.
// Same-day travel is accepted.
func validateCreate(req CreateBookingRequest, today time.Time, maxParticipants int) (time.Time, *domain.ValidationError) {
	fields := make(map[string]string)

	if req.PackageID <= 0 {
		fields["package_id"] = "must be a positive id"
	}

	date, err := domain.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		fields["date"] = "must be formatted as YYYY-MM-DD"
	} else if date.Before(domain.TruncateDate(today)) {
		fields["date"] = "is in the past"
	}

	switch {
	case req.ParticipantCount < 1:
		fields["participant_count"] = "must be at least 1"
	case req.ParticipantCount > maxParticipants:
		fields["participant_count"] = "exceeds the per-booking limit"
	}

	contactErrors(req.ContactInfo, fields)

	if len(fields) > 0 {
		return time.Time{}, &domain.ValidationError{Fields: fields}
	}
	return date, nil
}
