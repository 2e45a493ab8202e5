package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/services"
)

type BookingHandler struct {
	reservations *services.ReservationService
	transitions  *services.TransitionService
	log          *zap.Logger
}

func NewBookingHandler(reservations *services.ReservationService, transitions *services.TransitionService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{reservations: reservations, transitions: transitions, log: log}
}

// Routes registers every booking endpoint on mux.
func (h *BookingHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /bookings", h.CreateBooking)
	mux.HandleFunc("GET /bookings/{id}", h.GetBooking)
	mux.HandleFunc("PATCH /bookings/{id}", h.UpdateDetails)
	mux.HandleFunc("GET /bookings/{id}/audit", h.ListAuditLog)
	mux.HandleFunc("POST /bookings/{id}/transitions", h.Transition)
	mux.HandleFunc("POST /bookings/{id}/notes", h.AddNote)
	mux.HandleFunc("GET /booking-codes/{code}", h.GetBookingByCode)
	mux.HandleFunc("GET /availability", h.PeekAvailability)
}

type bookingResponse struct {
	ID               string             `json:"id"`
	BookingCode      string             `json:"booking_code"`
	PackageID        int64              `json:"package_id"`
	Date             string             `json:"date"`
	ParticipantCount int                `json:"participant_count"`
	UnitPrice        int64              `json:"unit_price"`
	TotalPrice       int64              `json:"total_price"`
	Status           string             `json:"status"`
	ContactInfo      domain.ContactInfo `json:"contact_info"`
	SpecialRequests  string             `json:"special_requests"`
	NextStatuses     []string           `json:"next_statuses"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	Version          int                `json:"version"`
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	next := make([]string, 0, 3)
	for _, s := range b.Status.NextStates() {
		next = append(next, string(s))
	}
	return bookingResponse{
		ID:               b.ID.String(),
		BookingCode:      b.BookingCode,
		PackageID:        b.PackageID,
		Date:             b.SelectedDate.Format(domain.DateLayout),
		ParticipantCount: b.ParticipantCount,
		UnitPrice:        b.UnitPrice,
		TotalPrice:       b.TotalPrice,
		Status:           string(b.Status),
		ContactInfo:      b.ContactInfo,
		SpecialRequests:  b.SpecialRequests,
		NextStatuses:     next,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
		Version:          b.Version,
	}
}

type auditEntryResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Message   string    `json:"message,omitempty"`
	ActorID   string    `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

func toAuditResponse(e domain.AuditLogEntry) auditEntryResponse {
	return auditEntryResponse{
		ID:        e.ID.String(),
		Action:    string(e.Action),
		Message:   e.Message,
		ActorID:   e.ActorID,
		CreatedAt: e.CreatedAt,
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "invalid json body"})
		return false
	}
	return true
}

func bookingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "invalid booking id"})
		return uuid.Nil, false
	}
	return id, true
}

func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "authentication required"})
		return domain.Actor{}, false
	}
	return actor, true
}

func canView(actor domain.Actor, b *domain.Booking) bool {
	return actor.IsPrivileged() || b.OwnedBy(actor.ID)
}

// visibleBooking loads the booking and answers 404 when actor may not see
// it, so someone else's booking looks the same as a missing one.
func (h *BookingHandler) visibleBooking(w http.ResponseWriter, r *http.Request, actor domain.Actor, id uuid.UUID) (*domain.Booking, bool) {
	b, err := h.reservations.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	if !canView(actor, b) {
		h.writeError(w, r, domain.ErrBookingNotFound)
		return nil, false
	}
	return b, true
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req services.CreateBookingRequest
	if !decode(w, r, &req) {
		return
	}
	if actor, ok := ActorFromContext(r.Context()); ok && actor.Role == domain.RoleCustomer {
		req.CustomerID = actor.ID
	}

	resp, err := h.reservations.CreateBooking(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	b, ok := h.visibleBooking(w, r, actor, id)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// GetBookingByCode serves guests too: the code printed on the confirmation
// is the credential.
func (h *BookingHandler) GetBookingByCode(w http.ResponseWriter, r *http.Request) {
	b, err := h.reservations.GetBookingByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	if _, ok := h.visibleBooking(w, r, actor, id); !ok {
		return
	}

	entries, err := h.reservations.ListAuditLog(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAuditResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking_id": id.String(), "entries": out})
}

type transitionRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if !decode(w, r, &req) {
		return
	}
	if _, ok := h.visibleBooking(w, r, actor, id); !ok {
		return
	}

	b, err := h.transitions.Transition(r.Context(), id, domain.BookingStatus(req.Status), actor, req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *BookingHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if !decode(w, r, &req) {
		return
	}

	entry, err := h.transitions.AddNote(r.Context(), id, actor, req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuditResponse(*entry))
}

func (h *BookingHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	var req services.UpdateDetailsRequest
	if !decode(w, r, &req) {
		return
	}
	if _, ok := h.visibleBooking(w, r, actor, id); !ok {
		return
	}

	b, err := h.transitions.UpdateDetails(r.Context(), id, actor, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) PeekAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	packageID, err := strconv.ParseInt(q.Get("package_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "package_id must be an integer"})
		return
	}
	date := q.Get("date")

	available, err := h.reservations.PeekAvailability(r.Context(), packageID, date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"package_id":      packageID,
		"date":            date,
		"available_spots": available,
	})
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, body)
}
