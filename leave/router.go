/*
router.go - Role-based authorization for workflow events

PURPOSE:
  The engine's transition table answers "is this event legal from this
  state"; the router answers "may THIS actor fire it". Keeping the two
  apart means the state machine stays a pure shape while authority rules
  evolve independently.

AUTHORITY RULES:
  - Submit/Cancel belong to the requesting employee; HR staff and HR
    managers may act as proxy (e.g. phoned-in cancellations).
  - The supervisor step is bound to the supervisor frozen on the request
    at submission. A different supervisor needs the delegation permission.
  - The HR manager step is bound to the role, not a person.
  - Processing is an HR staff action (or explicit process permission),
    since it is the step that turns an approval into a payroll fact.

SEE ALSO:
  - engine.go: Consults the router after the transition-table check
  - types.go: Role and Permission variants
*/
package leave

// ApprovalRouter decides who may fire which workflow event on a request.
type ApprovalRouter struct{}

func NewApprovalRouter() *ApprovalRouter {
	return &ApprovalRouter{}
}

// Authorize returns nil if actor may fire ev on req, or a ForbiddenError.
// It assumes the engine has already verified the event is legal from the
// request's current state.
func (ar *ApprovalRouter) Authorize(req *LeaveRequest, ev Event, actor Actor) error {
	switch ev {
	case EventSubmit, EventCancel:
		if actor.ID == ActorID(req.EmployeeID) {
			return nil
		}
		if actor.Role == RoleHRStaff || actor.Role == RoleHRManager {
			return nil
		}
		return ar.forbid(req, ev, actor, RoleEmployee)

	case EventSupervisorApprove, EventSupervisorReject:
		if actor.ID == ActorID(req.SupervisorID) {
			return nil
		}
		if actor.Role == RoleSupervisor && actor.Has(PermDelegateApproval) {
			return nil
		}
		return ar.forbid(req, ev, actor, RoleSupervisor)

	case EventManagerApprove, EventManagerReject:
		if actor.Role == RoleHRManager {
			return nil
		}
		return ar.forbid(req, ev, actor, RoleHRManager)

	case EventProcess:
		if actor.Role == RoleHRStaff || actor.Has(PermProcessLeave) {
			return nil
		}
		return ar.forbid(req, ev, actor, RoleHRStaff)
	}

	return &TransitionError{RequestID: req.ID, From: req.State, Event: ev}
}

// NextApprover reports whose action the request is waiting on: the required
// role, and the specific employee when the step is person-bound (the frozen
// supervisor). ok is false when the request is not waiting on anyone.
func (ar *ApprovalRouter) NextApprover(req *LeaveRequest) (role Role, who *EmployeeID, ok bool) {
	switch req.State {
	case StatePendingSupervisor:
		sup := req.SupervisorID
		return RoleSupervisor, &sup, true
	case StatePendingHRManager:
		return RoleHRManager, nil, true
	case StateApproved:
		return RoleHRStaff, nil, true
	}
	return "", nil, false
}

func (ar *ApprovalRouter) forbid(req *LeaveRequest, ev Event, actor Actor, required Role) error {
	return &ForbiddenError{RequestID: req.ID, Event: ev, Actor: actor, Required: required}
}
