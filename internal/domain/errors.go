package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a job, application or payment does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the acting user is not allowed to
	// perform the operation on this record.
	ErrForbidden = errors.New("forbidden")
)

// InvalidStateTransitionError reports an action attempted from a state
// that does not permit it. Callers surface it to the user and must not
// retry.
type InvalidStateTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

// InvalidPaymentStateError reports a payment operation attempted on a
// payment whose status forbids it (typically a terminal status).
type InvalidPaymentStateError struct {
	Op     string
	Status PaymentStatus
}

func (e *InvalidPaymentStateError) Error() string {
	return fmt.Sprintf("cannot %s a payment in status %s", e.Op, e.Status)
}

// BreakdownMismatchError reports inconsistent breakdown arithmetic.
type BreakdownMismatchError struct {
	Want   Money
	Got    Money
	Reason string
}

func (e *BreakdownMismatchError) Error() string {
	return fmt.Sprintf("breakdown mismatch: %s (want %s, got %s)", e.Reason, e.Want, e.Got)
}

// AlreadyResolvedError reports a dispute action whose effect is already
// in place.
type AlreadyResolvedError struct {
	Action DisputeAction
	Status PaymentStatus
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("dispute action %s is redundant: payment already %s", e.Action, e.Status)
}

// InvalidPartialAmountError reports a partial refund amount outside the
// open interval (0, gross).
type InvalidPartialAmountError struct {
	Amount *Money
	Gross  Money
}

func (e *InvalidPartialAmountError) Error() string {
	if e.Amount == nil {
		return fmt.Sprintf("partial refund requires an amount between 0 and %s", e.Gross)
	}
	return fmt.Sprintf("partial refund amount %s must be strictly between 0 and %s", *e.Amount, e.Gross)
}

// ConcurrentModificationError reports a lost optimistic-locking race:
// the record changed between read and write.
type ConcurrentModificationError struct {
	Entity string
	ID     uuid.UUID
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}

// ValidationError reports malformed or missing input caught before any
// state machine is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
