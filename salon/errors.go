/*
errors.go - Error taxonomy for the salon engine

PURPOSE:
  Every operation fails with one of five kinds: validation, conflict,
  permission, not-found or state. Structured errors carry context for the
  caller and unwrap to a sentinel so callers can branch with errors.Is.

  The HTTP layer maps kinds to status codes (400/409/403/404/409).

SEE ALSO:
  - api/handlers.go: writeError maps kinds to responses
*/
package salon

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("slot conflict")
	ErrPermission = errors.New("permission denied")
	ErrNotFound   = errors.New("not found")
	ErrState      = errors.New("illegal state transition")

	// ErrConcurrentModification is returned by compare-and-set updates that
	// matched no row because another writer got there first.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError reports an overlapping booking and the earliest time the
// requested duration would fit.
type ConflictError struct {
	EmployeeID           EmployeeID
	ConflictingBookingID BookingID
	ConflictingToken     string
	Requested            Slot
	SuggestedTime        SlotTime
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("stylist %s is busy during %s (booking %s); next free slot %s",
		e.EmployeeID, e.Requested, e.ConflictingToken, e.SuggestedTime)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

type PermissionError struct {
	Action string
	Role   Role
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s not allowed for role %s", e.Action, e.Role)
}

func (e *PermissionError) Unwrap() error { return ErrPermission }

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type StateError struct {
	BookingID BookingID
	From      Status
	Action    string
	Reason    string
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("cannot %s booking %s in status %s", e.Action, e.BookingID, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *StateError) Unwrap() error { return ErrState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Deny builds the permission error for action.
func Deny(p Principal, action string) error {
	return &PermissionError{Action: action, Role: p.Role}
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to the caller's input or rights.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrPermission) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrState)
}
