/*
ledger.go - Per-employee, per-leave-type, per-year balance ledger

PURPOSE:
  The ledger owns the arithmetic invariants of the whole system. Each row
  tracks four counters for one (employee, leave type, year):

    Earned          entitlement granted for the year
    CarriedForward  days rolled over from the prior year (capped by policy)
    Used            committed, permanent deductions
    Held            days reserved by pending requests

    Available = Earned + CarriedForward - Used - Held

CRITICAL INVARIANTS:
  1. Available >= 0 at all times - a hold never overdraws the row
  2. Used >= 0 and Held >= 0
  3. A hold is spent exactly once: active -> committed or active -> released
  4. Commit amounts must equal the hold amount exactly (no partial commits)

CONCURRENCY:
  Hold/commit/release on a given row are linearizable. Each mutation runs
  read-check-write inside a store transaction, guarded by the row's version
  counter; a version mismatch fails the unit with ErrConcurrentModification
  and the whole unit is retried. Two concurrent holds whose sum exceeds
  Available can therefore never both succeed.

AUDIT:
  Every mutation emits one audit event carrying before/after snapshots of
  all four counters. Audit failures never roll back the mutation; they fire
  the alert hook instead.

SEE ALSO:
  - store.go: Version-checked persistence and WithTx
  - engine.go: Drives holds/commits/releases from workflow transitions
  - rollover.go: Provisions rows at year start
*/
package leave

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// BALANCE ROW
// =============================================================================

// BalanceKey identifies one ledger row.
type BalanceKey struct {
	EmployeeID EmployeeID
	LeaveType  LeaveTypeCode
	Year       int
}

func (k BalanceKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.EmployeeID, k.LeaveType, k.Year)
}

// Balance is one ledger row. Mutated only by the Ledger; never deleted,
// only superseded by the next year's row.
type Balance struct {
	Key            BalanceKey
	Earned         Days
	CarriedForward Days
	Used           Days
	Held           Days

	// Version is the optimistic-concurrency counter maintained by the store.
	Version int64
}

// Available returns Earned + CarriedForward - Used - Held.
func (b Balance) Available() Days {
	return b.Earned.Add(b.CarriedForward).Sub(b.Used).Sub(b.Held)
}

// Counters returns the row's counter snapshot for audit events.
func (b Balance) Counters() BalanceCounters {
	return BalanceCounters{
		Earned:         b.Earned,
		CarriedForward: b.CarriedForward,
		Used:           b.Used,
		Held:           b.Held,
	}
}

// checkInvariants refuses any row that breaches the arithmetic contract.
func (b Balance) checkInvariants() error {
	if b.Used.IsNegative() || b.Held.IsNegative() || b.Available().IsNegative() {
		return fmt.Errorf("ledger row %s (used=%s held=%s available=%s): %w",
			b.Key, b.Used, b.Held, b.Available(), ErrInvariantViolation)
	}
	return nil
}

// =============================================================================
// HOLD - A reservation against a balance row
// =============================================================================

type HoldState string

const (
	HoldActive    HoldState = "active"
	HoldCommitted HoldState = "committed"
	HoldReleased  HoldState = "released"
)

// Hold reserves days against a row without yet being a permanent deduction.
// It is resolved exactly once, driven by its request's terminal transition.
type Hold struct {
	ID         HoldID
	Key        BalanceKey
	Days       Days
	State      HoldState
	RequestID  RequestID
	CreatedAt  time.Time
	ResolvedAt time.Time
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the only writer of balance rows and holds.
type Ledger struct {
	store Store
	audit Recorder

	// Alert surfaces degraded-mode conditions; defaults to log.Printf.
	Alert AlertFunc

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func NewLedger(store Store, audit Recorder) *Ledger {
	return &Ledger{
		store: store,
		audit: audit,
		Alert: log.Printf,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// GetAvailable returns the row's available days, or ErrNotFound if the row
// has not been provisioned (onboarding/rollover must create it first).
func (l *Ledger) GetAvailable(ctx context.Context, key BalanceKey) (Days, error) {
	b, err := l.store.GetBalance(ctx, key)
	if err != nil {
		return ZeroDays(), err
	}
	return b.Available(), nil
}

// Snapshot returns the full row.
func (l *Ledger) Snapshot(ctx context.Context, key BalanceKey) (Balance, error) {
	return l.store.GetBalance(ctx, key)
}

// Hold atomically verifies Available >= days and reserves them.
func (l *Ledger) Hold(ctx context.Context, key BalanceKey, days Days, requestID RequestID, actor Actor) (HoldID, error) {
	var (
		hold Hold
		ev   AuditEvent
	)
	err := retryTx(ctx, l.store, func(s Store) error {
		var err error
		hold, ev, err = l.holdIn(ctx, s, key, days, requestID, actor)
		return err
	})
	if err != nil {
		return "", err
	}
	l.emit(ctx, ev)
	return hold.ID, nil
}

// Commit converts a hold into a permanent deduction. actualDays must equal
// the held amount exactly; anything else is refused as an invariant
// violation (partial leave-taking is a known future extension point).
func (l *Ledger) Commit(ctx context.Context, holdID HoldID, actualDays Days, actor Actor) error {
	var ev AuditEvent
	err := retryTx(ctx, l.store, func(s Store) error {
		var err error
		ev, err = l.commitIn(ctx, s, holdID, actualDays, actor)
		return err
	})
	if err != nil {
		return err
	}
	l.emit(ctx, ev)
	return nil
}

// Release cancels a hold without deducting. Releasing an already-resolved
// hold fails with ErrInvalidHoldState and leaves counters unchanged.
func (l *Ledger) Release(ctx context.Context, holdID HoldID, actor Actor) error {
	var ev AuditEvent
	err := retryTx(ctx, l.store, func(s Store) error {
		var err error
		ev, err = l.releaseIn(ctx, s, holdID, actor)
		return err
	})
	if err != nil {
		return err
	}
	l.emit(ctx, ev)
	return nil
}

// =============================================================================
// TRANSACTION-SCOPED MUTATIONS
// =============================================================================
// These operate on the store handed to them (usually a transaction view) so
// the engine can compose a ledger effect with a state change in one atomic
// unit. They return the audit event for the caller to emit after commit.

func (l *Ledger) holdIn(ctx context.Context, s Store, key BalanceKey, days Days, requestID RequestID, actor Actor) (Hold, AuditEvent, error) {
	if !days.IsPositive() {
		return Hold{}, AuditEvent{}, fmt.Errorf("hold of %s days on %s: %w", days, key, ErrInvariantViolation)
	}

	b, err := s.GetBalance(ctx, key)
	if err != nil {
		return Hold{}, AuditEvent{}, err
	}
	before := b.Counters()

	if b.Available().LessThan(days) {
		return Hold{}, AuditEvent{}, &InsufficientBalanceError{
			Key:       key,
			Available: b.Available(),
			Requested: days,
		}
	}

	b.Held = b.Held.Add(days)
	if err := b.checkInvariants(); err != nil {
		return Hold{}, AuditEvent{}, err
	}
	if err := s.UpdateBalance(ctx, b); err != nil {
		return Hold{}, AuditEvent{}, err
	}

	now := l.Now()
	hold := Hold{
		ID:        HoldID(uuid.NewString()),
		Key:       key,
		Days:      days,
		State:     HoldActive,
		RequestID: requestID,
		CreatedAt: now,
	}
	if err := s.SaveHold(ctx, hold); err != nil {
		return Hold{}, AuditEvent{}, err
	}

	return hold, l.mutationEvent(OpHold, hold, days, actor, before, b.Counters()), nil
}

func (l *Ledger) commitIn(ctx context.Context, s Store, holdID HoldID, actualDays Days, actor Actor) (AuditEvent, error) {
	hold, err := s.GetHold(ctx, holdID)
	if err != nil {
		return AuditEvent{}, err
	}
	if hold.State != HoldActive {
		return AuditEvent{}, &HoldStateError{HoldID: holdID, State: hold.State}
	}
	if !actualDays.Equal(hold.Days) {
		return AuditEvent{}, fmt.Errorf("commit of %s days against hold %s for %s days: %w",
			actualDays, holdID, hold.Days, ErrInvariantViolation)
	}

	b, err := s.GetBalance(ctx, hold.Key)
	if err != nil {
		return AuditEvent{}, err
	}
	before := b.Counters()

	b.Held = b.Held.Sub(hold.Days)
	b.Used = b.Used.Add(actualDays)
	if err := b.checkInvariants(); err != nil {
		return AuditEvent{}, err
	}
	if err := s.UpdateBalance(ctx, b); err != nil {
		return AuditEvent{}, err
	}

	hold.State = HoldCommitted
	hold.ResolvedAt = l.Now()
	if err := s.SaveHold(ctx, hold); err != nil {
		return AuditEvent{}, err
	}

	return l.mutationEvent(OpCommit, hold, actualDays, actor, before, b.Counters()), nil
}

func (l *Ledger) releaseIn(ctx context.Context, s Store, holdID HoldID, actor Actor) (AuditEvent, error) {
	hold, err := s.GetHold(ctx, holdID)
	if err != nil {
		return AuditEvent{}, err
	}
	if hold.State != HoldActive {
		return AuditEvent{}, &HoldStateError{HoldID: holdID, State: hold.State}
	}

	b, err := s.GetBalance(ctx, hold.Key)
	if err != nil {
		return AuditEvent{}, err
	}
	before := b.Counters()

	b.Held = b.Held.Sub(hold.Days)
	if err := b.checkInvariants(); err != nil {
		return AuditEvent{}, err
	}
	if err := s.UpdateBalance(ctx, b); err != nil {
		return AuditEvent{}, err
	}

	hold.State = HoldReleased
	hold.ResolvedAt = l.Now()
	if err := s.SaveHold(ctx, hold); err != nil {
		return AuditEvent{}, err
	}

	return l.mutationEvent(OpRelease, hold, hold.Days, actor, before, b.Counters()), nil
}

// =============================================================================
// AUDIT HELPERS
// =============================================================================

func (l *Ledger) mutationEvent(op LedgerOp, hold Hold, amount Days, actor Actor, before, after BalanceCounters) AuditEvent {
	return AuditEvent{
		ID:        uuid.NewString(),
		Kind:      AuditLedgerMutation,
		At:        l.Now(),
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		RequestID: hold.RequestID,
		Key:       hold.Key,
		Op:        op,
		HoldID:    hold.ID,
		Amount:    amount,
		Before:    before,
		After:     after,
	}
}

// emit records audit events after the unit has committed. Failures are
// surfaced as degraded-mode alerts, never as rollbacks.
func (l *Ledger) emit(ctx context.Context, events ...AuditEvent) {
	if l.audit == nil {
		return
	}
	for _, ev := range events {
		if err := l.audit.Record(ctx, ev); err != nil {
			l.alertf("audit record failed (degraded mode): op=%s key=%s err=%v", ev.Op, ev.Key, err)
		}
	}
}

func (l *Ledger) alertf(format string, args ...any) {
	if l.Alert != nil {
		l.Alert(format, args...)
	}
}
