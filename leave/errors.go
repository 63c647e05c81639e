/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability. Every
  rejected operation maps to exactly one sentinel so callers can switch on
  errors.Is and render a specific user-facing message.

ERROR CATEGORIES:
  1. Business rejections - insufficient balance, date conflicts, forbidden
  2. Workflow violations - illegal transitions, terminal states
  3. Ledger faults - invalid hold state, invariant violations
  4. Infrastructure - concurrent modification (retried internally)

PROPAGATION POLICY:
  All sentinels except ErrInvariantViolation are recoverable, caller-facing
  rejections: state is left untouched and the caller gets enough structure
  to explain why. ErrInvariantViolation signals a bug (e.g. a commit whose
  amount disagrees with its hold) and additionally fires the alert hook.

USAGE:
  if errors.Is(err, leave.ErrInsufficientBalance) {
      var ib *leave.InsufficientBalanceError
      errors.As(err, &ib)
      // ib.Available, ib.Requested, ib.Shortfall
  }
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when a hold would push the ledger
	// row's available days negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDateConflict is returned when a submission's date range intersects
	// another non-terminal request for the same employee.
	ErrDateConflict = errors.New("date conflict with existing request")

	// ErrInvalidDates is returned for malformed ranges (end before start,
	// zero dates, or a past start without backdated-entry permission).
	ErrInvalidDates = errors.New("invalid dates")

	// ErrInvalidTransition is returned when the requested event is not legal
	// from the request's current state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrForbidden is returned when the actor does not hold the role the
	// attempted event requires.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidHoldState is returned when committing or releasing a hold
	// that is no longer active. Counters are left unchanged.
	ErrInvalidHoldState = errors.New("invalid hold state")

	// ErrInvariantViolation indicates a bug: a mutation that would breach
	// the ledger arithmetic invariants. The operation is refused, never
	// silently coerced, and the alert hook fires.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrNotFound is returned when a referenced request, hold, ledger row,
	// or leave type does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification is returned by stores when an optimistic
	// version check fails. The ledger retries these internally; callers
	// only see it if retries are exhausted.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	Key       BalanceKey
	Available Days
	Requested Days
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s/%s/%d: %s days available, %s requested",
		e.Key.EmployeeID, e.Key.LeaveType, e.Key.Year, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall returns how many days short the request is.
func (e *InsufficientBalanceError) Shortfall() Days { return e.Requested.Sub(e.Available) }

// DateConflictError identifies the existing request that blocks a submission.
type DateConflictError struct {
	EmployeeID     EmployeeID
	Requested      DateRange
	ConflictingID  RequestID
	ConflictingRng DateRange
}

func (e *DateConflictError) Error() string {
	return fmt.Sprintf("date conflict: %s overlaps request %s (%s)",
		e.Requested, e.ConflictingID, e.ConflictingRng)
}

func (e *DateConflictError) Unwrap() error { return ErrDateConflict }

// InvalidDatesError explains why a submitted range was rejected.
type InvalidDatesError struct {
	Range  DateRange
	Detail string
}

func (e *InvalidDatesError) Error() string {
	return fmt.Sprintf("invalid dates %s: %s", e.Range, e.Detail)
}

func (e *InvalidDatesError) Unwrap() error { return ErrInvalidDates }

// TransitionError reports an event that is not legal from the current state.
type TransitionError struct {
	RequestID RequestID
	From      State
	Event     Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %q not accepted from state %q (request %s)",
		e.Event, e.From, e.RequestID)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ForbiddenError reports an actor lacking authority for an event.
type ForbiddenError struct {
	RequestID RequestID
	Event     Event
	Actor     Actor
	Required  Role
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: actor %s (%s) may not %q on request %s (requires %s)",
		e.Actor.ID, e.Actor.Role, e.Event, e.RequestID, e.Required)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// HoldStateError reports a commit/release against a non-active hold.
type HoldStateError struct {
	HoldID HoldID
	State  HoldState
}

func (e *HoldStateError) Error() string {
	return fmt.Sprintf("hold %s is %s, not active", e.HoldID, e.State)
}

func (e *HoldStateError) Unwrap() error { return ErrInvalidHoldState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a business rejection caused by
// the caller's input rather than a system fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDateConflict) ||
		errors.Is(err, ErrInvalidDates) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidHoldState)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
