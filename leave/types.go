/*
Package leave implements the leave request lifecycle and balance ledger.

PURPOSE:
  This package contains the invariant-bearing core of the HR application:
  the per-employee, per-leave-type balance ledger (holds, commits, releases)
  and the multi-party approval workflow that drives it. Everything else in
  the surrounding application (employee CRUD, org charts, payroll reports)
  is a consumer of this package, never a second writer.

KEY CONCEPTS IN THIS FILE (types.go):
  - Days: A decimal quantity of leave days (never float64)
  - Typed identifiers: EmployeeID, RequestID, HoldID, ActorID
  - Role/Permission: closed enumerations replacing ad hoc string checks
  - Actor: who is invoking a transition, resolved once at the boundary
  - DateRange: inclusive start/end date pair with overlap detection

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all balance arithmetic
  2. Type Safety: strong ID types prevent mixing employees and actors
  3. Closed role variants: the workflow only ever sees enumerable roles
  4. Auditability: every transition carries actor, role, and timestamp

SEE ALSO:
  - ledger.go: Balance rows, holds, and the arithmetic invariants
  - engine.go: The workflow state machine
  - router.go: Role-based transition authorization
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAYS - Decimal quantity of leave days
// =============================================================================

type Days struct {
	Value decimal.Decimal
}

func NewDays(value float64) Days { return Days{Value: decimal.NewFromFloat(value)} }
func DaysFromInt(value int) Days { return Days{Value: decimal.NewFromInt(int64(value))} }
func ZeroDays() Days             { return Days{Value: decimal.Zero} }

func MustParseDays(s string) Days {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroDays()
	}
	return Days{Value: d}
}

func (d Days) Add(o Days) Days         { return Days{Value: d.Value.Add(o.Value)} }
func (d Days) Sub(o Days) Days         { return Days{Value: d.Value.Sub(o.Value)} }
func (d Days) Neg() Days               { return Days{Value: d.Value.Neg()} }
func (d Days) IsNegative() bool        { return d.Value.IsNegative() }
func (d Days) IsZero() bool            { return d.Value.IsZero() }
func (d Days) IsPositive() bool        { return d.Value.IsPositive() }
func (d Days) GreaterThan(o Days) bool { return d.Value.GreaterThan(o.Value) }
func (d Days) LessThan(o Days) bool    { return d.Value.LessThan(o.Value) }
func (d Days) Equal(o Days) bool       { return d.Value.Equal(o.Value) }
func (d Days) String() string          { return d.Value.String() }

func (d Days) Min(o Days) Days {
	if d.LessThan(o) {
		return d
	}
	return o
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RequestID string
type HoldID string
type ActorID string
type LeaveTypeCode string

// =============================================================================
// ROLES & PERMISSIONS - Closed variants, resolved once at the boundary
// =============================================================================

// Role is the closed set of workflow roles. The engine and router operate
// only on these variants; mapping from the application's users/groups to a
// Role happens at the transport boundary, never inside the workflow.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleSupervisor Role = "supervisor"
	RoleHRManager  Role = "hr_manager"
	RoleHRStaff    Role = "hr_staff"
)

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleEmployee, RoleSupervisor, RoleHRManager, RoleHRStaff:
		return true
	}
	return false
}

type Permission string

const (
	// PermBackdatedEntry allows submitting requests whose start date is in
	// the past (e.g., HR entering leave taken before it was recorded).
	PermBackdatedEntry Permission = "backdated_entry"

	// PermDelegateApproval allows a supervisor-role actor who is not the
	// request's frozen supervisor to act on the supervisor step.
	PermDelegateApproval Permission = "delegate_approval"

	// PermProcessLeave allows converting an approved request's hold into a
	// committed ledger deduction.
	PermProcessLeave Permission = "process_leave"
)

// Actor is the authenticated principal invoking a transition. It is built
// once at the boundary from the application's auth layer.
type Actor struct {
	ID          ActorID
	Role        Role
	Permissions []Permission
}

func (a Actor) Has(p Permission) bool {
	for _, q := range a.Permissions {
		if q == p {
			return true
		}
	}
	return false
}

// =============================================================================
// WORKFLOW STATES & EVENTS
// =============================================================================

type State string

const (
	StateDraft             State = "draft"
	StatePendingSupervisor State = "pending_supervisor"
	StatePendingHRManager  State = "pending_hr_manager"
	StateApproved          State = "approved"
	StateProcessed         State = "processed"
	StateRejected          State = "rejected"
	StateCancelled         State = "cancelled"
)

// IsTerminal reports whether no further transitions are accepted from s.
func (s State) IsTerminal() bool {
	return s == StateProcessed || s == StateRejected || s == StateCancelled
}

type Event string

const (
	EventSubmit            Event = "submit"
	EventSupervisorApprove Event = "supervisor_approve"
	EventSupervisorReject  Event = "supervisor_reject"
	EventManagerApprove    Event = "manager_approve"
	EventManagerReject     Event = "manager_reject"
	EventProcess           Event = "process"
	EventCancel            Event = "cancel"
)

// ValidEvent reports whether s names a known workflow event.
func ValidEvent(s string) bool {
	switch Event(s) {
	case EventSubmit, EventSupervisorApprove, EventSupervisorReject,
		EventManagerApprove, EventManagerReject, EventProcess, EventCancel:
		return true
	}
	return false
}

// =============================================================================
// DATE RANGE - Inclusive of both endpoints
// =============================================================================

// DateRange is an inclusive [Start, End] pair of calendar dates. Both are
// normalized to midnight UTC; time-of-day is never significant.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: DateOnly(start), End: DateOnly(end)}
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (r DateRange) IsValid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.End.Before(r.Start)
}

// Overlaps reports whether the two inclusive ranges share at least one day.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.End.Before(o.Start) && !o.End.Before(r.Start)
}

// Contains reports whether day falls within the inclusive range.
func (r DateRange) Contains(day time.Time) bool {
	d := DateOnly(day)
	return !d.Before(r.Start) && !d.After(r.End)
}

// DayCount returns the inclusive number of calendar days in the range.
func (r DateRange) DayCount() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) String() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}
