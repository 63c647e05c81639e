/*
handlers.go - HTTP API handlers for the leave management core

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, actor resolution, and delegates to domain logic.

ENDPOINTS:
  Requests:
    POST   /api/employees/{id}/requests  Submit a leave request
    GET    /api/employees/{id}/requests  List an employee's requests
    GET    /api/requests                 List requests (filters)
    GET    /api/requests/{id}            Get request with transition log
    POST   /api/requests/{id}/approve    Approve current pending step
    POST   /api/requests/{id}/reject     Reject current pending step
    POST   /api/requests/{id}/cancel     Cancel before processing
    POST   /api/requests/{id}/process    Convert approval into deduction

  Balances:
    GET    /api/employees/{id}/balances               Ledger rows for an employee
    GET    /api/employees/{id}/balances/{code}/{year} One ledger row

  Config:
    GET    /api/leave-types              Configured leave policies

  Admin:
    POST   /api/admin/rollover           Provision a year's ledger rows
    POST   /api/admin/employees          Seed a directory entry
    GET    /api/audit                    Query the audit trail

ACTOR RESOLUTION:
  The caller's identity arrives in headers set by the fronting auth proxy:
    X-Actor-ID:          actor identifier (required on mutations)
    X-Actor-Role:        employee | supervisor | hr_manager | hr_staff
    X-Actor-Permissions: comma-separated permission names
  This service trusts the proxy; it performs authorization, not
  authentication.

ERROR HANDLING:
  Domain errors map onto HTTP statuses:
  - 400: Malformed input, unknown actor role
  - 403: Actor lacks authority for the event
  - 404: Unknown request/employee/balance/leave type
  - 409: Business conflicts (balance, dates, illegal transition)
  - 422: Structurally valid but unacceptable dates
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - leave/engine.go: The domain logic behind every handler
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/leave-engine/leave"
)

// AuditQuerier is the read side of the audit trail.
type AuditQuerier interface {
	QueryAudit(ctx context.Context, f leave.AuditFilter) ([]leave.AuditEvent, error)
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *leave.Engine
	Rollover  *leave.Rollover
	Catalog   leave.Catalog
	Directory *leave.StaticDirectory
	Audit     AuditQuerier

	validate *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(engine *leave.Engine, rollover *leave.Rollover, catalog leave.Catalog) *Handler {
	return &Handler{
		Engine:   engine,
		Rollover: rollover,
		Catalog:  catalog,
		validate: validator.New(),
	}
}

// =============================================================================
// ACTOR RESOLUTION
// =============================================================================

func actorFrom(r *http.Request) (leave.Actor, error) {
	id := r.Header.Get("X-Actor-ID")
	if id == "" {
		return leave.Actor{}, errors.New("missing X-Actor-ID header")
	}
	role := r.Header.Get("X-Actor-Role")
	if !leave.ValidRole(role) {
		return leave.Actor{}, errors.New("missing or unknown X-Actor-Role header")
	}

	actor := leave.Actor{ID: leave.ActorID(id), Role: leave.Role(role)}
	if raw := r.Header.Get("X-Actor-Permissions"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				actor.Permissions = append(actor.Permissions, leave.Permission(p))
			}
		}
	}
	return actor, nil
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest creates a new leave request for the employee in the URL.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	var dto SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	start, _ := time.Parse("2006-01-02", dto.StartDate)
	end, _ := time.Parse("2006-01-02", dto.EndDate)

	req, err := h.Engine.Submit(r.Context(), leave.SubmitInput{
		EmployeeID: leave.EmployeeID(chi.URLParam(r, "id")),
		LeaveType:  leave.LeaveTypeCode(dto.LeaveType),
		Dates:      leave.NewDateRange(start, end),
		Reason:     dto.Reason,
	}, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRequestDTO(req, h.Engine.Router))
}

// GetRequest returns a request with its transition log.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Engine.GetRequest(r.Context(), leave.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req, h.Engine.Router))
}

// ListRequests returns requests matching query filters.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	f := leave.RequestFilter{
		EmployeeID: leave.EmployeeID(r.URL.Query().Get("employee_id")),
		Department: r.URL.Query().Get("department"),
	}
	for _, s := range r.URL.Query()["state"] {
		f.States = append(f.States, leave.State(s))
	}
	if from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to"); from != "" && to != "" {
		start, err1 := time.Parse("2006-01-02", from)
		end, err2 := time.Parse("2006-01-02", to)
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, "Invalid from/to date format (use YYYY-MM-DD)", nil)
			return
		}
		rng := leave.NewDateRange(start, end)
		f.Range = &rng
	}

	reqs, err := h.Engine.ListRequests(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs, h.Engine.Router))
}

// ListEmployeeRequests returns all requests for one employee.
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Engine.ListRequests(r.Context(), leave.RequestFilter{
		EmployeeID: leave.EmployeeID(chi.URLParam(r, "id")),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs, h.Engine.Router))
}

// ApproveRequest advances the current pending step.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(state leave.State) (leave.Event, bool) {
		return leave.ApprovalEvent(state)
	})
}

// RejectRequest rejects the current pending step.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(state leave.State) (leave.Event, bool) {
		return leave.RejectionEvent(state)
	})
}

// CancelRequest cancels a request before it is processed.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(leave.State) (leave.Event, bool) {
		return leave.EventCancel, true
	})
}

// ProcessRequest converts an approved request's hold into a deduction.
func (h *Handler) ProcessRequest(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(leave.State) (leave.Event, bool) {
		return leave.EventProcess, true
	})
}

// act resolves the event for the request's current state and fires it.
func (h *Handler) act(w http.ResponseWriter, r *http.Request, eventFor func(leave.State) (leave.Event, bool)) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	var dto ActionDTO
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		if err := h.validate.Struct(dto); err != nil {
			writeError(w, http.StatusBadRequest, "Validation failed", err.Error())
			return
		}
	}

	id := leave.RequestID(chi.URLParam(r, "id"))
	req, err := h.Engine.GetRequest(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ev, ok := eventFor(req.State)
	if !ok {
		writeDomainError(w, &leave.TransitionError{RequestID: id, From: req.State})
		return
	}

	// The engine re-checks state inside the transaction; a stale read here
	// surfaces as a 409, never as a wrong transition.
	updated, err := h.Engine.Act(r.Context(), id, ev, actor, dto.Comment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(updated, h.Engine.Router))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalances returns all ledger rows for an employee.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Engine.Balances(r.Context(), leave.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBalance returns one ledger row for (employee, type, year).
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", nil)
		return
	}

	b, err := h.Engine.Balance(r.Context(), leave.BalanceKey{
		EmployeeID: leave.EmployeeID(chi.URLParam(r, "id")),
		LeaveType:  leave.LeaveTypeCode(chi.URLParam(r, "code")),
		Year:       year,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// =============================================================================
// CONFIG HANDLERS
// =============================================================================

// ListLeaveTypes returns the configured leave policies.
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types := h.Catalog.List()
	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = toLeaveTypeDTO(lt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerRollover provisions ledger rows for a year, for one employee or all.
func (h *Handler) TriggerRollover(w http.ResponseWriter, r *http.Request) {
	var dto RolloverDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	result := RolloverResultDTO{Year: dto.Year}
	if dto.EmployeeID != "" {
		created, err := h.Rollover.ProvisionYear(r.Context(), leave.EmployeeID(dto.EmployeeID), dto.Year)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		result.Provisioned = 1
		for _, b := range created {
			result.Balances = append(result.Balances, toBalanceDTO(b))
		}
	} else {
		done, err := h.Rollover.ProvisionAll(r.Context(), dto.Year)
		if err != nil && done == 0 {
			writeDomainError(w, err)
			return
		}
		result.Provisioned = done
	}

	writeJSON(w, http.StatusOK, result)
}

// SeedEmployee registers a directory entry (dev/admin seeding).
func (h *Handler) SeedEmployee(w http.ResponseWriter, r *http.Request) {
	if h.Directory == nil {
		writeError(w, http.StatusNotFound, "Directory seeding is not enabled", nil)
		return
	}

	var dto SeedEmployeeDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	h.Directory.Add(leave.EmployeeRecord{
		ID:         leave.EmployeeID(dto.ID),
		Supervisor: leave.EmployeeID(dto.Supervisor),
		Department: dto.Department,
		Active:     dto.Active,
	})
	writeJSON(w, http.StatusCreated, dto)
}

// GetAudit returns audit events matching query filters.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeError(w, http.StatusNotFound, "Audit querying is not enabled", nil)
		return
	}

	f := leave.AuditFilter{
		Kind:       leave.AuditKind(r.URL.Query().Get("kind")),
		ActorID:    leave.ActorID(r.URL.Query().Get("actor_id")),
		EmployeeID: leave.EmployeeID(r.URL.Query().Get("employee_id")),
		RequestID:  leave.RequestID(r.URL.Query().Get("request_id")),
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from timestamp (use RFC3339)", nil)
			return
		}
		f.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to timestamp (use RFC3339)", nil)
			return
		}
		f.To = t
	}

	events, err := h.Audit.QueryAudit(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]AuditEventDTO, len(events))
	for i, ev := range events {
		dtos[i] = toAuditEventDTO(ev)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details any) {
	resp := ErrorResponse{Error: msg, Code: strconv.Itoa(status)}
	if details != nil {
		if err, ok := details.(error); ok {
			resp.Details = err.Error()
		} else {
			resp.Details = details
		}
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain sentinels onto HTTP statuses with stable
// machine-readable codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		status = http.StatusInternalServerError
		code   = "internal"
	)
	switch {
	case errors.Is(err, leave.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, leave.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, leave.ErrInvalidDates):
		status, code = http.StatusUnprocessableEntity, "invalid_dates"
	case errors.Is(err, leave.ErrInsufficientBalance):
		status, code = http.StatusConflict, "insufficient_balance"
	case errors.Is(err, leave.ErrDateConflict):
		status, code = http.StatusConflict, "date_conflict"
	case errors.Is(err, leave.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, leave.ErrInvalidHoldState):
		status, code = http.StatusConflict, "invalid_hold_state"
	case errors.Is(err, leave.ErrConcurrentModification):
		status, code = http.StatusConflict, "concurrent_modification"
	case errors.Is(err, leave.ErrInvariantViolation):
		status, code = http.StatusInternalServerError, "invariant_violation"
	}

	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}
