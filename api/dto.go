/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request bodies carry go-playground/validator struct tags and are checked
  once at the boundary; the domain layer re-validates its own invariants.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/request.go: Domain model these map from
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SubmitRequestDTO is the body for submitting a leave request.
type SubmitRequestDTO struct {
	LeaveType string `json:"leave_type" validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason    string `json:"reason,omitempty" validate:"max=500"`
}

// ActionDTO is the body for approve/reject/cancel/process actions.
type ActionDTO struct {
	Comment string `json:"comment,omitempty" validate:"max=500"`
}

// RolloverDTO is the body for triggering year provisioning.
type RolloverDTO struct {
	Year       int    `json:"year" validate:"required,min=2000,max=2200"`
	EmployeeID string `json:"employee_id,omitempty"`
}

// SeedEmployeeDTO registers a directory entry (dev/admin seeding).
type SeedEmployeeDTO struct {
	ID         string `json:"id" validate:"required"`
	Supervisor string `json:"supervisor,omitempty"`
	Department string `json:"department,omitempty"`
	Active     bool   `json:"active"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID            string          `json:"id"`
	EmployeeID    string          `json:"employee_id"`
	LeaveType     string          `json:"leave_type"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	DaysRequested float64         `json:"days_requested"`
	Reason        string          `json:"reason,omitempty"`
	State         string          `json:"state"`
	SupervisorID  string          `json:"supervisor_id"`
	Department    string          `json:"department,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
	Transitions   []TransitionDTO `json:"transitions,omitempty"`

	// Who the request is waiting on, when it is waiting on anyone.
	PendingRole string `json:"pending_role,omitempty"`
	PendingWith string `json:"pending_with,omitempty"`
}

// TransitionDTO is one entry of a request's transition log.
type TransitionDTO struct {
	Seq       int    `json:"seq"`
	From      string `json:"from"`
	To        string `json:"to"`
	Event     string `json:"event"`
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	At        string `json:"at"`
	Comment   string `json:"comment,omitempty"`
}

// BalanceDTO represents one ledger row.
type BalanceDTO struct {
	EmployeeID     string  `json:"employee_id"`
	LeaveType      string  `json:"leave_type"`
	Year           int     `json:"year"`
	Earned         float64 `json:"earned"`
	CarriedForward float64 `json:"carried_forward"`
	Used           float64 `json:"used"`
	Held           float64 `json:"held"`
	Available      float64 `json:"available"`
}

// LeaveTypeDTO represents one configured leave policy.
type LeaveTypeDTO struct {
	Code                  string  `json:"code"`
	Name                  string  `json:"name"`
	AnnualEntitlementDays float64 `json:"annual_entitlement_days"`
	MaxCarryoverDays      float64 `json:"max_carryover_days"`
	CarryForwardAllowed   bool    `json:"carry_forward_allowed"`
	IsPaid                bool    `json:"is_paid"`
}

// RolloverResultDTO is the result of a provisioning run.
type RolloverResultDTO struct {
	Year        int          `json:"year"`
	Provisioned int          `json:"provisioned"`
	Balances    []BalanceDTO `json:"balances,omitempty"`
}

// AuditEventDTO represents one audit trail entry.
type AuditEventDTO struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	At        string `json:"at"`
	ActorID   string `json:"actor_id,omitempty"`
	ActorRole string `json:"actor_role,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Event     string `json:"event,omitempty"`
	Comment   string `json:"comment,omitempty"`

	EmployeeID string             `json:"employee_id,omitempty"`
	LeaveType  string             `json:"leave_type,omitempty"`
	Year       int                `json:"year,omitempty"`
	Op         string             `json:"op,omitempty"`
	HoldID     string             `json:"hold_id,omitempty"`
	Amount     float64            `json:"amount,omitempty"`
	Before     *BalanceSnapshotDTO `json:"before,omitempty"`
	After      *BalanceSnapshotDTO `json:"after,omitempty"`
}

// BalanceSnapshotDTO is the counter snapshot carried by ledger audit events.
type BalanceSnapshotDTO struct {
	Earned         float64 `json:"earned"`
	CarriedForward float64 `json:"carried_forward"`
	Used           float64 `json:"used"`
	Held           float64 `json:"held"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRequestDTO(req *leave.LeaveRequest, router *leave.ApprovalRouter) RequestDTO {
	days, _ := req.DaysRequested.Value.Float64()
	dto := RequestDTO{
		ID:            string(req.ID),
		EmployeeID:    string(req.EmployeeID),
		LeaveType:     string(req.LeaveType),
		StartDate:     req.Dates.Start.Format("2006-01-02"),
		EndDate:       req.Dates.End.Format("2006-01-02"),
		DaysRequested: days,
		Reason:        req.Reason,
		State:         string(req.State),
		SupervisorID:  string(req.SupervisorID),
		Department:    req.Department,
		CreatedAt:     req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     req.UpdatedAt.Format(time.RFC3339),
	}
	for _, tr := range req.Transitions {
		dto.Transitions = append(dto.Transitions, TransitionDTO{
			Seq:       tr.Seq,
			From:      string(tr.From),
			To:        string(tr.To),
			Event:     string(tr.Event),
			ActorID:   string(tr.ActorID),
			ActorRole: string(tr.ActorRole),
			At:        tr.At.Format(time.RFC3339),
			Comment:   tr.Comment,
		})
	}
	if router != nil {
		if role, who, ok := router.NextApprover(req); ok {
			dto.PendingRole = string(role)
			if who != nil {
				dto.PendingWith = string(*who)
			}
		}
	}
	return dto
}

func toRequestDTOs(reqs []*leave.LeaveRequest, router *leave.ApprovalRouter) []RequestDTO {
	dtos := make([]RequestDTO, len(reqs))
	for i, r := range reqs {
		dtos[i] = toRequestDTO(r, router)
	}
	return dtos
}

func toBalanceDTO(b leave.Balance) BalanceDTO {
	earned, _ := b.Earned.Value.Float64()
	carried, _ := b.CarriedForward.Value.Float64()
	used, _ := b.Used.Value.Float64()
	held, _ := b.Held.Value.Float64()
	available, _ := b.Available().Value.Float64()
	return BalanceDTO{
		EmployeeID:     string(b.Key.EmployeeID),
		LeaveType:      string(b.Key.LeaveType),
		Year:           b.Key.Year,
		Earned:         earned,
		CarriedForward: carried,
		Used:           used,
		Held:           held,
		Available:      available,
	}
}

func toLeaveTypeDTO(lt leave.LeaveType) LeaveTypeDTO {
	entitlement, _ := lt.AnnualEntitlementDays.Value.Float64()
	carryover, _ := lt.MaxCarryoverDays.Value.Float64()
	return LeaveTypeDTO{
		Code:                  string(lt.Code),
		Name:                  lt.Name,
		AnnualEntitlementDays: entitlement,
		MaxCarryoverDays:      carryover,
		CarryForwardAllowed:   lt.CarryForwardAllowed,
		IsPaid:                lt.IsPaid,
	}
}

func toAuditEventDTO(ev leave.AuditEvent) AuditEventDTO {
	amount, _ := ev.Amount.Value.Float64()
	dto := AuditEventDTO{
		ID:        ev.ID,
		Kind:      string(ev.Kind),
		At:        ev.At.Format(time.RFC3339),
		ActorID:   string(ev.ActorID),
		ActorRole: string(ev.ActorRole),
		RequestID: string(ev.RequestID),
		From:      string(ev.From),
		To:        string(ev.To),
		Event:     string(ev.Event),
		Comment:   ev.Comment,

		EmployeeID: string(ev.Key.EmployeeID),
		LeaveType:  string(ev.Key.LeaveType),
		Year:       ev.Key.Year,
		Op:         string(ev.Op),
		HoldID:     string(ev.HoldID),
		Amount:     amount,
	}
	if ev.Kind == leave.AuditLedgerMutation {
		before := toBalanceSnapshotDTO(ev.Before)
		after := toBalanceSnapshotDTO(ev.After)
		dto.Before = &before
		dto.After = &after
	}
	return dto
}

func toBalanceSnapshotDTO(c leave.BalanceCounters) BalanceSnapshotDTO {
	earned, _ := c.Earned.Value.Float64()
	carried, _ := c.CarriedForward.Value.Float64()
	used, _ := c.Used.Value.Float64()
	held, _ := c.Held.Value.Float64()
	return BalanceSnapshotDTO{
		Earned:         earned,
		CarriedForward: carried,
		Used:           used,
		Held:           held,
	}
}
