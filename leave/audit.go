/*
audit.go - Immutable audit events for transitions and ledger mutations

PURPOSE:
  Every workflow transition and every ledger mutation emits one immutable
  event to the Recorder. Ledger mutation events carry before/after snapshots
  of all four counters so any balance can be explained after the fact.

FAILURE POLICY:
  The recorder is fire-and-append: a failure to record never rolls back the
  underlying transition (the business operation already committed), but it
  is surfaced through the alert hook as a degraded-mode condition.

SEE ALSO:
  - engine.go: Emits events after each committed transition
  - ledger.go: Builds counter snapshots for mutation events
*/
package leave

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

type AuditKind string

const (
	AuditStateTransition AuditKind = "state_transition"
	AuditLedgerMutation  AuditKind = "ledger_mutation"
)

// LedgerOp names the ledger mutation recorded by an audit event.
type LedgerOp string

const (
	OpHold      LedgerOp = "hold"
	OpCommit    LedgerOp = "commit"
	OpRelease   LedgerOp = "release"
	OpProvision LedgerOp = "provision"
)

// BalanceCounters is a point-in-time snapshot of one ledger row's counters.
type BalanceCounters struct {
	Earned         Days
	CarriedForward Days
	Used           Days
	Held           Days
}

// AuditEvent is one immutable audit record.
type AuditEvent struct {
	ID        string
	Kind      AuditKind
	At        time.Time
	ActorID   ActorID
	ActorRole Role

	// Workflow context (state transitions)
	RequestID RequestID
	From      State
	To        State
	Event     Event
	Comment   string

	// Ledger context (mutations)
	Key    BalanceKey
	Op     LedgerOp
	HoldID HoldID
	Amount Days
	Before BalanceCounters
	After  BalanceCounters
}

// Recorder receives audit events. Implementations must treat events as
// append-only; there is no update or delete.
type Recorder interface {
	Record(ctx context.Context, ev AuditEvent) error
}

// AuditFilter narrows audit queries for the viewer read model.
type AuditFilter struct {
	Kind       AuditKind
	ActorID    ActorID
	EmployeeID EmployeeID
	RequestID  RequestID
	From       time.Time
	To         time.Time
}

func (f AuditFilter) matches(ev AuditEvent) bool {
	if f.Kind != "" && ev.Kind != f.Kind {
		return false
	}
	if f.ActorID != "" && ev.ActorID != f.ActorID {
		return false
	}
	if f.EmployeeID != "" && ev.Key.EmployeeID != f.EmployeeID {
		return false
	}
	if f.RequestID != "" && ev.RequestID != f.RequestID {
		return false
	}
	if !f.From.IsZero() && ev.At.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ev.At.After(f.To) {
		return false
	}
	return true
}

// AlertFunc surfaces degraded-mode conditions (audit failures, invariant
// violations). The default implementation logs.
type AlertFunc func(format string, args ...any)

// =============================================================================
// MEMORY RECORDER - In-memory implementation (tests/dev)
// =============================================================================

type MemoryRecorder struct {
	mu     sync.RWMutex
	events []AuditEvent
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(_ context.Context, ev AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of all recorded events in order.
func (m *MemoryRecorder) Events() []AuditEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Query returns events matching the filter, in order.
func (m *MemoryRecorder) Query(_ context.Context, f AuditFilter) ([]AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AuditEvent
	for _, ev := range m.events {
		if f.matches(ev) {
			out = append(out, ev)
		}
	}
	return out, nil
}
