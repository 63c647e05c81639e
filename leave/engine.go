/*
engine.go - The leave request workflow state machine

PURPOSE:
  The engine is the only writer of leave requests. It owns the transition
  table (which events are legal from which states), composes every state
  change with its ledger effect in one atomic unit, and appends the
  transition log. All approval-chain state lives on the request itself;
  the engine holds no in-flight state of its own, so any number of engine
  instances can serve the same store.

STATE MACHINE:

  draft -> pending_supervisor -> pending_hr_manager -> approved -> processed
             |        |              |       |            |
             | cancel | reject       | reject| cancel     | cancel
             v        v              v       v            v
          cancelled rejected      rejected cancelled   cancelled

  processed, rejected, and cancelled are terminal. There is no reopening
  and no edit-in-place; a rejected request is resubmitted as a new one.

LEDGER COUPLING:
  Submission places a hold. Every path out of the pending/approved states
  resolves that hold exactly once: process commits it, reject and cancel
  release it. The state change and the hold resolution commit together or
  not at all.

SEE ALSO:
  - ledger.go: holdIn/commitIn/releaseIn invoked inside engine transactions
  - router.go: Per-event actor authorization
  - rollover.go: Year provisioning (the other writer of balance rows)
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TRANSITION TABLE
// =============================================================================

type ledgerEffect int

const (
	fxNone ledgerEffect = iota
	fxCommit
	fxRelease
)

type transitionRule struct {
	to State
	fx ledgerEffect
}

// transitions is the complete workflow shape. An event absent from the
// current state's row is illegal; terminal states have no rows at all.
var transitions = map[State]map[Event]transitionRule{
	StatePendingSupervisor: {
		EventSupervisorApprove: {to: StatePendingHRManager, fx: fxNone},
		EventSupervisorReject:  {to: StateRejected, fx: fxRelease},
		EventCancel:            {to: StateCancelled, fx: fxRelease},
	},
	StatePendingHRManager: {
		EventManagerApprove: {to: StateApproved, fx: fxNone},
		EventManagerReject:  {to: StateRejected, fx: fxRelease},
		EventCancel:         {to: StateCancelled, fx: fxRelease},
	},
	StateApproved: {
		EventProcess: {to: StateProcessed, fx: fxCommit},
		EventCancel:  {to: StateCancelled, fx: fxRelease},
	},
}

// ApprovalEvent maps a pending state to the approve event that advances it.
// Used by callers that speak in terms of "approve" rather than raw events.
func ApprovalEvent(s State) (Event, bool) {
	switch s {
	case StatePendingSupervisor:
		return EventSupervisorApprove, true
	case StatePendingHRManager:
		return EventManagerApprove, true
	}
	return "", false
}

// RejectionEvent maps a pending state to the reject event for that step.
func RejectionEvent(s State) (Event, bool) {
	switch s {
	case StatePendingSupervisor:
		return EventSupervisorReject, true
	case StatePendingHRManager:
		return EventManagerReject, true
	}
	return "", false
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine drives the leave request lifecycle.
type Engine struct {
	store     Store
	ledger    *Ledger
	catalog   Catalog
	directory Directory
	audit     Recorder

	// Router decides who may fire which event. Replaceable for deployments
	// with different authority rules.
	Router *ApprovalRouter

	// Counter converts date ranges into chargeable days; calendar days by
	// default.
	Counter DayCounter

	// Alert surfaces degraded-mode conditions; defaults to log.Printf.
	Alert AlertFunc

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func NewEngine(store Store, ledger *Ledger, catalog Catalog, directory Directory, audit Recorder) *Engine {
	return &Engine{
		store:     store,
		ledger:    ledger,
		catalog:   catalog,
		directory: directory,
		audit:     audit,
		Router:    NewApprovalRouter(),
		Counter:   CalendarDays{},
		Alert:     log.Printf,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitInput carries everything a submission needs from the caller.
type SubmitInput struct {
	EmployeeID EmployeeID
	LeaveType  LeaveTypeCode
	Dates      DateRange
	Reason     string
}

// =============================================================================
// SUBMIT - Create a request and place its hold atomically
// =============================================================================

// Submit validates the input, resolves and freezes the reporting chain,
// checks for overlapping requests, and creates the request in
// pending_supervisor with its balance hold. The overlap check, the hold,
// and the request insert commit as one unit.
func (e *Engine) Submit(ctx context.Context, in SubmitInput, actor Actor) (*LeaveRequest, error) {
	now := e.Now()

	if !in.Dates.IsValid() {
		return nil, &InvalidDatesError{Range: in.Dates, Detail: "end date before start date or dates missing"}
	}
	if in.Dates.Start.Before(DateOnly(now)) && !actor.Has(PermBackdatedEntry) {
		return nil, &InvalidDatesError{Range: in.Dates, Detail: "start date is in the past"}
	}

	active, err := e.directory.IsActive(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("employee %s is not active: %w", in.EmployeeID, ErrForbidden)
	}

	if _, err := e.catalog.Get(in.LeaveType); err != nil {
		return nil, err
	}

	days := e.Counter.Count(in.Dates)
	if !days.IsPositive() {
		return nil, &InvalidDatesError{Range: in.Dates, Detail: "range contains no chargeable days"}
	}

	supervisor, err := e.directory.Supervisor(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	department, err := e.directory.Department(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}

	req := &LeaveRequest{
		ID:            RequestID(uuid.NewString()),
		EmployeeID:    in.EmployeeID,
		LeaveType:     in.LeaveType,
		Dates:         in.Dates,
		DaysRequested: days,
		Reason:        in.Reason,
		State:         StateDraft,
		SupervisorID:  supervisor,
		Department:    department,
		CreatedAt:     now,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := e.Router.Authorize(req, EventSubmit, actor); err != nil {
		return nil, err
	}

	key := BalanceKey{EmployeeID: in.EmployeeID, LeaveType: in.LeaveType, Year: in.Dates.Start.Year()}

	var events []AuditEvent
	err = retryTx(ctx, e.store, func(s Store) error {
		events = events[:0]

		overlapping, err := s.ListOverlapping(ctx, in.EmployeeID, in.Dates)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			other := overlapping[0]
			return &DateConflictError{
				EmployeeID:     in.EmployeeID,
				Requested:      in.Dates,
				ConflictingID:  other.ID,
				ConflictingRng: other.Dates,
			}
		}

		hold, holdEv, err := e.ledger.holdIn(ctx, s, key, days, req.ID, actor)
		if err != nil {
			return err
		}
		req.HoldID = hold.ID

		tr := req.applyTransition(StatePendingSupervisor, EventSubmit, actor, now, in.Reason)
		if err := s.SaveRequest(ctx, req); err != nil {
			return err
		}

		events = append(events, holdEv, e.transitionEvent(req, tr))
		return nil
	})
	if err != nil {
		// A fresh request has no transitions yet; reset so a retried Submit
		// after a business rejection starts clean.
		req.State = StateDraft
		req.Transitions = nil
		req.HoldID = ""
		e.alertOnInvariant(err)
		return nil, err
	}

	e.emit(ctx, events...)
	return req.Clone(), nil
}

// =============================================================================
// ACT - Fire a workflow event on an existing request
// =============================================================================

// Act fires ev on the request: transition-table check, actor authorization,
// ledger effect, state change, and transition log, all in one atomic unit.
// The returned request reflects the committed state.
func (e *Engine) Act(ctx context.Context, id RequestID, ev Event, actor Actor, comment string) (*LeaveRequest, error) {
	now := e.Now()

	var (
		result *LeaveRequest
		events []AuditEvent
	)
	err := retryTx(ctx, e.store, func(s Store) error {
		events = events[:0]

		req, err := s.GetRequest(ctx, id)
		if err != nil {
			return err
		}

		rule, ok := transitions[req.State][ev]
		if !ok {
			return &TransitionError{RequestID: id, From: req.State, Event: ev}
		}
		if err := e.Router.Authorize(req, ev, actor); err != nil {
			return err
		}

		switch rule.fx {
		case fxCommit:
			ledgerEv, err := e.ledger.commitIn(ctx, s, req.HoldID, req.DaysRequested, actor)
			if err != nil {
				return err
			}
			events = append(events, ledgerEv)
		case fxRelease:
			ledgerEv, err := e.ledger.releaseIn(ctx, s, req.HoldID, actor)
			if err != nil {
				return err
			}
			events = append(events, ledgerEv)
		}

		tr := req.applyTransition(rule.to, ev, actor, now, comment)
		if err := s.SaveRequest(ctx, req); err != nil {
			return err
		}

		events = append(events, e.transitionEvent(req, tr))
		result = req
		return nil
	})
	if err != nil {
		e.alertOnInvariant(err)
		return nil, err
	}

	e.emit(ctx, events...)
	return result.Clone(), nil
}

// =============================================================================
// READ MODEL
// =============================================================================

// GetRequest returns a request with its full transition log.
func (e *Engine) GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error) {
	return e.store.GetRequest(ctx, id)
}

// ListRequests returns requests matching the filter, newest first.
func (e *Engine) ListRequests(ctx context.Context, f RequestFilter) ([]*LeaveRequest, error) {
	return e.store.ListRequests(ctx, f)
}

// Balances returns all ledger rows for an employee.
func (e *Engine) Balances(ctx context.Context, employeeID EmployeeID) ([]Balance, error) {
	return e.store.ListBalances(ctx, employeeID)
}

// Balance returns one ledger row.
func (e *Engine) Balance(ctx context.Context, key BalanceKey) (Balance, error) {
	return e.store.GetBalance(ctx, key)
}

// Available returns available days for one (employee, type, year).
func (e *Engine) Available(ctx context.Context, key BalanceKey) (Days, error) {
	return e.ledger.GetAvailable(ctx, key)
}

// NextApprover reports whose action the request is waiting on.
func (e *Engine) NextApprover(ctx context.Context, id RequestID) (Role, *EmployeeID, bool, error) {
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return "", nil, false, err
	}
	role, who, ok := e.Router.NextApprover(req)
	return role, who, ok, nil
}

// =============================================================================
// INTERNAL
// =============================================================================

func (e *Engine) transitionEvent(req *LeaveRequest, tr StateTransition) AuditEvent {
	return AuditEvent{
		ID:        uuid.NewString(),
		Kind:      AuditStateTransition,
		At:        tr.At,
		ActorID:   tr.ActorID,
		ActorRole: tr.ActorRole,
		RequestID: req.ID,
		From:      tr.From,
		To:        tr.To,
		Event:     tr.Event,
		Comment:   tr.Comment,
		Key: BalanceKey{
			EmployeeID: req.EmployeeID,
			LeaveType:  req.LeaveType,
			Year:       req.Dates.Start.Year(),
		},
	}
}

func (e *Engine) emit(ctx context.Context, events ...AuditEvent) {
	if e.audit == nil {
		return
	}
	for _, ev := range events {
		if err := e.audit.Record(ctx, ev); err != nil {
			e.alertf("audit record failed (degraded mode): kind=%s request=%s err=%v", ev.Kind, ev.RequestID, err)
		}
	}
}

func (e *Engine) alertOnInvariant(err error) {
	if errors.Is(err, ErrInvariantViolation) {
		e.alertf("ledger invariant violation refused: %v", err)
	}
}

func (e *Engine) alertf(format string, args ...any) {
	if e.Alert != nil {
		e.Alert(format, args...)
	}
}
