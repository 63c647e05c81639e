/*
request.go - Leave request entity and its transition log

PURPOSE:
  LeaveRequest is pure data plus shape validation. It knows nothing about
  balances, policies, or who may approve what - all invariant-bearing logic
  lives in the engine and ledger. The transition log on the request is
  append-only and forms its full audit trail.

OWNERSHIP:
  A request is exclusively owned by its creating workflow. The ledger hold
  it creates is a relation by ID, not a second owner: the hold is committed
  or released only ever as a consequence of this request's transitions.
*/
package leave

import (
	"time"
)

// =============================================================================
// STATE TRANSITION - One append-only log entry
// =============================================================================

// StateTransition records a single workflow step. The sequence on a request
// is never edited or deleted, only appended to.
type StateTransition struct {
	Seq       int
	From      State
	To        State
	Event     Event
	ActorID   ActorID
	ActorRole Role
	At        time.Time
	Comment   string
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type LeaveRequest struct {
	ID            RequestID
	EmployeeID    EmployeeID
	LeaveType     LeaveTypeCode
	Dates         DateRange
	DaysRequested Days
	Reason        string
	State         State

	// SupervisorID is resolved from the reporting chain at submission time
	// and frozen: later org changes must not alter an in-flight approver.
	SupervisorID EmployeeID

	// Department is captured at submission for list filtering.
	Department string

	// HoldID links to the ledger reservation backing this request.
	HoldID HoldID

	CreatedAt   time.Time
	UpdatedAt   time.Time
	Transitions []StateTransition
}

// Validate checks the request's shape. It does not consult balances,
// policies, or the calendar - that is the engine's job.
func (r *LeaveRequest) Validate() error {
	if r.EmployeeID == "" {
		return &InvalidDatesError{Range: r.Dates, Detail: "employee id is required"}
	}
	if r.LeaveType == "" {
		return &InvalidDatesError{Range: r.Dates, Detail: "leave type code is required"}
	}
	if !r.Dates.IsValid() {
		return &InvalidDatesError{Range: r.Dates, Detail: "end date before start date or dates missing"}
	}
	return nil
}

// applyTransition advances the state and appends the log entry.
func (r *LeaveRequest) applyTransition(to State, ev Event, actor Actor, at time.Time, comment string) StateTransition {
	tr := StateTransition{
		Seq:       len(r.Transitions) + 1,
		From:      r.State,
		To:        to,
		Event:     ev,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		At:        at,
		Comment:   comment,
	}
	r.State = to
	r.UpdatedAt = at
	r.Transitions = append(r.Transitions, tr)
	return tr
}

// Clone returns a deep copy safe to hand to callers.
func (r *LeaveRequest) Clone() *LeaveRequest {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Transitions = make([]StateTransition, len(r.Transitions))
	copy(cp.Transitions, r.Transitions)
	return &cp
}

// =============================================================================
// LIST FILTER - Read model for the UI/report layer
// =============================================================================

// RequestFilter narrows ListRequests results. Zero-valued fields match all.
type RequestFilter struct {
	States     []State
	EmployeeID EmployeeID
	Department string
	Range      *DateRange // matches requests whose dates intersect the range
}

// Matches reports whether req satisfies the filter.
func (f RequestFilter) Matches(req *LeaveRequest) bool {
	if f.EmployeeID != "" && req.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Department != "" && req.Department != f.Department {
		return false
	}
	if len(f.States) > 0 {
		ok := false
		for _, s := range f.States {
			if req.State == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Range != nil && !req.Dates.Overlaps(*f.Range) {
		return false
	}
	return true
}
