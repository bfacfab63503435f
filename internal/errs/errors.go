package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	// ErrUnprocessable is used for semantic validation failures (HTTP 422)
	ErrUnprocessable = errors.New("unprocessable")
)

// Domain sentinels. Each wraps one of the common sentinels above so callers can branch on
// either the specific failure or its class.
var (
	ErrStudentNotFound      = fmt.Errorf("student_not_found: %w", ErrNotFound)
	ErrLedgerNotFound       = fmt.Errorf("ledger_not_found: %w", ErrNotFound)
	ErrEntryNotFound        = fmt.Errorf("payment_not_found: %w", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("notification_not_found: %w", ErrNotFound)
	ErrDuplicateLedger      = fmt.Errorf("duplicate_ledger: %w", ErrConflict)
	ErrDuplicateStudent     = fmt.Errorf("duplicate_student: %w", ErrConflict)
	ErrInvalidAmount        = fmt.Errorf("invalid_amount: %w", ErrUnprocessable)
	ErrAmountExceedsBalance = fmt.Errorf("amount_exceeds_balance: %w", ErrUnprocessable)
	ErrInactiveStudent      = fmt.Errorf("inactive_student: %w", ErrUnprocessable)
)

// FieldError reports a missing or malformed request field.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Msg }

// Unwrap lets errors.Is(err, ErrInvalid) match field errors.
func (e *FieldError) Unwrap() error { return ErrInvalid }

// Field builds a FieldError.
func Field(field, msg string) error { return &FieldError{Field: field, Msg: msg} }
