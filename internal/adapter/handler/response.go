package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/srgjo27/tour_booking/internal/core/domain"
)

type errorBody struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Available *int              `json:"available_spots,omitempty"`
	Allowed   []string          `json:"allowed_statuses,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse maps engine errors to an HTTP status and a body that tells
// the client which kind of failure it was.
func errorResponse(err error) (int, errorBody) {
	var (
		validation   *domain.ValidationError
		insufficient *domain.InsufficientAvailabilityError
		terminal     *domain.TerminalStateError
		illegal      *domain.IllegalTransitionError
		concurrent   *domain.ConcurrentModificationError
		forbidden    *domain.ForbiddenError
		persistence  *domain.PersistenceError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorBody{Error: "validation_failed", Message: validation.Error(), Fields: validation.Fields}
	case errors.As(err, &insufficient):
		available := insufficient.AvailableSpots
		return http.StatusConflict, errorBody{Error: "insufficient_availability", Message: insufficient.Error(), Available: &available}
	case errors.As(err, &terminal):
		return http.StatusConflict, errorBody{Error: "booking_terminal", Message: terminal.Error(), Allowed: statusNames(terminal.Allowed)}
	case errors.As(err, &illegal):
		return http.StatusConflict, errorBody{Error: "illegal_transition", Message: illegal.Error(), Allowed: statusNames(illegal.Allowed)}
	case errors.As(err, &concurrent):
		return http.StatusConflict, errorBody{Error: "concurrent_modification", Message: "booking changed while the request was processed, reload and retry"}
	case errors.As(err, &forbidden):
		return http.StatusForbidden, errorBody{Error: "forbidden", Message: forbidden.Error()}
	case errors.Is(err, domain.ErrBookingNotFound):
		return http.StatusNotFound, errorBody{Error: "not_found", Message: "booking not found"}
	case errors.Is(err, domain.ErrPackageNotFound):
		return http.StatusNotFound, errorBody{Error: "not_found", Message: "package not found"}
	case errors.As(err, &persistence):
		return http.StatusServiceUnavailable, errorBody{Error: "storage_unavailable", Message: "booking could not be saved, no capacity was taken"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorBody{Error: "capacity_busy", Message: "capacity window is busy, retry shortly"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal server error"}
	}
}

func statusNames(in []domain.BookingStatus) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}
