package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var apiNow = time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)

// recorderQuerier adapts the memory recorder to the handler's audit reader.
type recorderQuerier struct {
	*leave.MemoryRecorder
}

func (q recorderQuerier) QueryAudit(ctx context.Context, f leave.AuditFilter) ([]leave.AuditEvent, error) {
	return q.Query(ctx, f)
}

type apiFixture struct {
	router http.Handler
	mem    *store.Memory
}

func newTestAPI(t *testing.T) *apiFixture {
	t.Helper()

	mem := store.NewMemory()
	rec := leave.NewMemoryRecorder()
	catalog := leave.DefaultCatalog()
	directory := leave.NewStaticDirectory(
		leave.EmployeeRecord{ID: "emp-100", Supervisor: "sup-1", Department: "Engineering", Active: true},
	)

	ledger := leave.NewLedger(mem, rec)
	ledger.Alert = func(string, ...any) {}
	engine := leave.NewEngine(mem, ledger, catalog, directory, rec)
	engine.Alert = func(string, ...any) {}
	engine.Now = func() time.Time { return apiNow }
	rollover := leave.NewRollover(mem, catalog, directory, rec)
	rollover.Alert = func(string, ...any) {}

	handler := api.NewHandler(engine, rollover, catalog)
	handler.Directory = directory
	handler.Audit = recorderQuerier{rec}

	require.NoError(t, mem.CreateBalance(context.Background(), leave.Balance{
		Key:    leave.BalanceKey{EmployeeID: "emp-100", LeaveType: "VL", Year: 2026},
		Earned: leave.DaysFromInt(15),
	}))

	return &apiFixture{router: api.NewRouter(handler), mem: mem}
}

func (fx *apiFixture) do(t *testing.T, method, path string, body any, actor, role string, perms ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
		req.Header.Set("X-Actor-Role", role)
	}
	for _, p := range perms {
		req.Header.Add("X-Actor-Permissions", p)
	}

	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func submitBody() map[string]string {
	return map[string]string{
		"leave_type": "VL",
		"start_date": "2026-06-10",
		"end_date":   "2026-06-12",
		"reason":     "family trip",
	}
}

// =============================================================================
// SUBMISSION TESTS
// =============================================================================

func TestAPI_SubmitRequest(t *testing.T) {
	// GIVEN: An employee with a provisioned balance
	// WHEN: POSTing a valid submission
	// THEN: 201 with the pending request and the frozen approver

	fx := newTestAPI(t)

	w := fx.do(t, "POST", "/api/employees/emp-100/requests", submitBody(), "emp-100", "employee")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	dto := decodeBody[api.RequestDTO](t, w)
	assert.Equal(t, "emp-100", dto.EmployeeID)
	assert.Equal(t, "pending_supervisor", dto.State)
	assert.Equal(t, "sup-1", dto.SupervisorID)
	assert.Equal(t, 3.0, dto.DaysRequested)
	assert.Equal(t, "supervisor", dto.PendingRole)
	assert.Equal(t, "sup-1", dto.PendingWith)
	require.Len(t, dto.Transitions, 1)
	assert.Equal(t, "submit", dto.Transitions[0].Event)
}

func TestAPI_SubmitRequest_MissingActor_BadRequest(t *testing.T) {
	fx := newTestAPI(t)
	w := fx.do(t, "POST", "/api/employees/emp-100/requests", submitBody(), "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_SubmitRequest_MalformedDates_BadRequest(t *testing.T) {
	fx := newTestAPI(t)
	body := submitBody()
	body["start_date"] = "June 10th"
	w := fx.do(t, "POST", "/api/employees/emp-100/requests", body, "emp-100", "employee")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_SubmitRequest_DomainErrorMapping(t *testing.T) {
	// GIVEN: Submissions that trip different domain rules
	// WHEN: Each is POSTed
	// THEN: Each maps to its documented status and error code

	fx := newTestAPI(t)

	// Insufficient balance -> 409
	body := submitBody()
	body["start_date"] = "2026-06-01"
	body["end_date"] = "2026-06-30"
	w := fx.do(t, "POST", "/api/employees/emp-100/requests", body, "emp-100", "employee")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "insufficient_balance", decodeBody[api.ErrorResponse](t, w).Code)

	// Backdated without permission -> 422
	body = submitBody()
	body["start_date"] = "2026-05-20"
	body["end_date"] = "2026-05-21"
	w = fx.do(t, "POST", "/api/employees/emp-100/requests", body, "emp-100", "employee")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_dates", decodeBody[api.ErrorResponse](t, w).Code)

	// Unknown leave type -> 404
	body = submitBody()
	body["leave_type"] = "SABBATICAL"
	w = fx.do(t, "POST", "/api/employees/emp-100/requests", body, "emp-100", "employee")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Overlap -> 409
	w = fx.do(t, "POST", "/api/employees/emp-100/requests", submitBody(), "emp-100", "employee")
	require.Equal(t, http.StatusCreated, w.Code)
	w = fx.do(t, "POST", "/api/employees/emp-100/requests", submitBody(), "emp-100", "employee")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "date_conflict", decodeBody[api.ErrorResponse](t, w).Code)
}

func TestAPI_SubmitRequest_BackdatedWithPermission(t *testing.T) {
	fx := newTestAPI(t)

	body := submitBody()
	body["start_date"] = "2026-05-20"
	body["end_date"] = "2026-05-21"
	w := fx.do(t, "POST", "/api/employees/emp-100/requests", body, "hr-1", "hr_staff", "backdated_entry")
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

// =============================================================================
// WORKFLOW ACTION TESTS
// =============================================================================

func TestAPI_ApprovalChain(t *testing.T) {
	// GIVEN: A submitted request
	// WHEN: Supervisor approves, manager approves, HR processes
	// THEN: Each step advances the state; the balance ends with 3 used

	fx := newTestAPI(t)

	w := fx.do(t, "POST", "/api/employees/emp-100/requests", submitBody(), "emp-100", "employee")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeBody[api.RequestDTO](t, w).ID

	w = fx.do(t, "POST", "/api/requests/"+id+"/approve", api.ActionDTO{Comment: "ok"}, "sup-1", "supervisor")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "pending_hr_manager", decodeBody[api.RequestDTO](t, w).State)

	w = fx.do(t, "POST", "/api/requests/"+id+"/approve", nil, "hrm-1", "hr_manager")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", decodeBody[api.RequestDTO](t, w).State)

	w = fx.do(t, "POST", "/api/requests/"+id+"/process", nil, "hr-1", "hr_staff")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dto := decodeBody[api.RequestDTO](t, w)
	assert.Equal(t, "processed", dto.State)
	assert.Len(t, dto.Transitions, 4)

	w = fx.do(t, "GET", "/api/employees/emp-100/balances", nil, "emp-100", "employee")
	require.Equal(t, http.StatusOK, w.Code)
	balances := decodeBody[[]api.BalanceDTO](t, w)
	require.Len(t, balances, 1)
	assert.Equal(t, 3.0, balances[0].Used)
	assert.Equal(t, 0.0, balances[0].Held)
	assert.Equal(t, 12.0, balances[0].Available)
}

func TestAPI_Reject_ReleasesBalance(t *testing.T) {
	fx := newTestAPI(t)

	w := fx.do(t, "POST", "/api/employees/emp-100/requests", submitBody(), "emp-100", "employee")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeBody[api.RequestDTO](t, w).ID

	w = fx.do(t, "POST", "/api/requests/"+id+"/reject", api.ActionDTO{Comment: "coverage gap"}, "sup-1", "supervisor")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "rejected", decodeBody[api.RequestDTO](t, w).State)

	w = fx.do(t, "GET", "/api/employees/emp-100/balances", nil, "emp-100", "employee")
	balances := decodeBody[[]api.BalanceDTO](t, w)
	require.Len(t, balances, 1)
	assert.Equal(t, 15.0, balances[0].Available)
}

func TestAPI_Actions_StatusMapping(t *testing.T) {
	// GIVEN: A pending request
	// WHEN: The wrong actors and wrong steps are attempted
	// THEN: 403 for authority, 409 for illegal transitions, 404 for ghosts

	fx := newTestAPI(t)

	w := fx.do(t, "POST", "/api/employees/emp-100/requests", submitBody(), "emp-100", "employee")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeBody[api.RequestDTO](t, w).ID

	// Requester cannot approve their own request.
	w = fx.do(t, "POST", "/api/requests/"+id+"/approve", nil, "emp-100", "employee")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decodeBody[api.ErrorResponse](t, w).Code)

	// Processing before approval is an illegal transition.
	w = fx.do(t, "POST", "/api/requests/"+id+"/process", nil, "hr-1", "hr_staff")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", decodeBody[api.ErrorResponse](t, w).Code)

	// Unknown request.
	w = fx.do(t, "POST", "/api/requests/nope/approve", nil, "sup-1", "supervisor")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Approve on a terminal request: no approvable step left.
	w = fx.do(t, "POST", "/api/requests/"+id+"/cancel", nil, "emp-100", "employee")
	require.Equal(t, http.StatusOK, w.Code)
	w = fx.do(t, "POST", "/api/requests/"+id+"/approve", nil, "sup-1", "supervisor")
	assert.Equal(t, http.StatusConflict, w.Code)
}

// =============================================================================
// READ MODEL TESTS
// =============================================================================

func TestAPI_ListRequests_Filters(t *testing.T) {
	fx := newTestAPI(t)

	w := fx.do(t, "POST", "/api/employees/emp-100/requests", submitBody(), "emp-100", "employee")
	require.Equal(t, http.StatusCreated, w.Code)

	w = fx.do(t, "GET", "/api/requests?employee_id=emp-100&state=pending_supervisor", nil, "hr-1", "hr_staff")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]api.RequestDTO](t, w), 1)

	w = fx.do(t, "GET", "/api/requests?state=approved", nil, "hr-1", "hr_staff")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[[]api.RequestDTO](t, w))

	w = fx.do(t, "GET", "/api/employees/emp-100/requests", nil, "emp-100", "employee")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]api.RequestDTO](t, w), 1)
}

func TestAPI_GetBalance_SingleRow(t *testing.T) {
	fx := newTestAPI(t)

	w := fx.do(t, "GET", "/api/employees/emp-100/balances/VL/2026", nil, "emp-100", "employee")
	require.Equal(t, http.StatusOK, w.Code)
	b := decodeBody[api.BalanceDTO](t, w)
	assert.Equal(t, "VL", b.LeaveType)
	assert.Equal(t, 2026, b.Year)
	assert.Equal(t, 15.0, b.Available)

	w = fx.do(t, "GET", "/api/employees/emp-100/balances/VL/2031", nil, "emp-100", "employee")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = fx.do(t, "GET", "/api/employees/emp-100/balances/VL/latest", nil, "emp-100", "employee")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_ListLeaveTypes(t *testing.T) {
	fx := newTestAPI(t)

	w := fx.do(t, "GET", "/api/leave-types", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)

	types := decodeBody[[]api.LeaveTypeDTO](t, w)
	require.Len(t, types, 4)
	assert.Equal(t, "EL", types[0].Code, "sorted by code")
}

func TestAPI_GetAudit(t *testing.T) {
	// GIVEN: A submitted request
	// WHEN: Querying the audit trail by request
	// THEN: The submit transition is there; the hold mutation carries snapshots

	fx := newTestAPI(t)

	w := fx.do(t, "POST", "/api/employees/emp-100/requests", submitBody(), "emp-100", "employee")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeBody[api.RequestDTO](t, w).ID

	w = fx.do(t, "GET", "/api/audit?request_id="+id, nil, "hr-1", "hr_staff")
	require.Equal(t, http.StatusOK, w.Code)
	events := decodeBody[[]api.AuditEventDTO](t, w)
	require.Len(t, events, 1)
	assert.Equal(t, "submit", events[0].Event)

	w = fx.do(t, "GET", "/api/audit?kind=ledger_mutation", nil, "hr-1", "hr_staff")
	require.Equal(t, http.StatusOK, w.Code)
	events = decodeBody[[]api.AuditEventDTO](t, w)
	require.Len(t, events, 1)
	assert.Equal(t, "hold", events[0].Op)
	require.NotNil(t, events[0].After)
	assert.Equal(t, 3.0, events[0].After.Held)
}

// =============================================================================
// ADMIN TESTS
// =============================================================================

func TestAPI_TriggerRollover_SingleEmployee(t *testing.T) {
	fx := newTestAPI(t)

	w := fx.do(t, "POST", "/api/admin/rollover",
		api.RolloverDTO{Year: 2027, EmployeeID: "emp-100"}, "hr-1", "hr_staff")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	result := decodeBody[api.RolloverResultDTO](t, w)
	assert.Equal(t, 2027, result.Year)
	assert.Equal(t, 1, result.Provisioned)
	assert.Len(t, result.Balances, 4, "one row per catalog type")

	w = fx.do(t, "GET", "/api/employees/emp-100/balances", nil, "emp-100", "employee")
	balances := decodeBody[[]api.BalanceDTO](t, w)
	assert.Len(t, balances, 5, "the seeded 2026 row plus four 2027 rows")
}

func TestAPI_SeedEmployee_ThenSubmit(t *testing.T) {
	// GIVEN: A directory entry seeded over the API
	// WHEN: That employee is provisioned and submits
	// THEN: The request lands against the seeded reporting chain

	fx := newTestAPI(t)

	w := fx.do(t, "POST", "/api/admin/employees",
		api.SeedEmployeeDTO{ID: "emp-300", Supervisor: "sup-3", Department: "Sales", Active: true},
		"hr-1", "hr_staff")
	require.Equal(t, http.StatusCreated, w.Code)

	w = fx.do(t, "POST", "/api/admin/rollover",
		api.RolloverDTO{Year: 2026, EmployeeID: "emp-300"}, "hr-1", "hr_staff")
	require.Equal(t, http.StatusOK, w.Code)

	w = fx.do(t, "POST", "/api/employees/emp-300/requests", submitBody(), "emp-300", "employee")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	dto := decodeBody[api.RequestDTO](t, w)
	assert.Equal(t, "sup-3", dto.SupervisorID)
	assert.Equal(t, "Sales", dto.Department)
}

func TestAPI_Healthz(t *testing.T) {
	fx := newTestAPI(t)
	w := fx.do(t, "GET", "/healthz", nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
