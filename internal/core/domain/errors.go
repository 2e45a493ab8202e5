package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrBookingNotFound      = errors.New("booking not found")
	ErrPackageNotFound      = errors.New("package not found")
	ErrVersionConflict      = errors.New("booking version conflict")
	ErrDuplicateBookingCode = errors.New("booking code already exists")
)

// ValidationError reports malformed input field by field. Nothing was
// written when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid booking request: " + strings.Join(parts, "; ")
}

type InsufficientAvailabilityError struct {
	Key            WindowKey
	Requested      int
	AvailableSpots int
}

func (e *InsufficientAvailabilityError) Error() string {
	return fmt.Sprintf("not enough availability for %s: requested %d, available %d",
		e.Key, e.Requested, e.AvailableSpots)
}

type IllegalTransitionError struct {
	From    BookingStatus
	To      BookingStatus
	Allowed []BookingStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}

// TerminalStateError is the IllegalTransitionError raised when the booking
// has already finished its lifecycle.
type TerminalStateError struct {
	*IllegalTransitionError
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("booking is %s: cannot move to %s", e.From, e.To)
}

func (e *TerminalStateError) Unwrap() error {
	return e.IllegalTransitionError
}

type ConcurrentModificationError struct {
	BookingID uuid.UUID
	Attempts  int
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("booking %s was modified concurrently (%d attempts)", e.BookingID, e.Attempts)
}

func (e *ConcurrentModificationError) Unwrap() error {
	return ErrVersionConflict
}

// PersistenceError wraps a storage failure. Any capacity taken during the
// same operation has been handed back before it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type ForbiddenError struct {
	ActorID string
	Role    Role
	Action  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("actor %q with role %q may not %s", e.ActorID, e.Role, e.Action)
}
