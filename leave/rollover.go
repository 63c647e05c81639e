/*
rollover.go - Year-end provisioning and carry-forward

PURPOSE:
  Creates next year's ledger rows: a fresh entitlement per leave type plus
  a carried-forward amount computed from the prior year's unused balance,
  capped by the type's carryover policy. Provisioning is idempotent per
  (employee, type, year): a row that already exists is left untouched, so
  the rollover job can be re-run safely after a partial failure.

CARRY-FORWARD RULE:
  carried = min(prior year Available, MaxCarryoverDays)   if allowed
  carried = 0                                             otherwise

  Days still held by in-flight requests at rollover time do NOT carry
  forward; they remain reserved on the prior year's row until the request
  resolves there.

SEE ALSO:
  - ledger.go: Row arithmetic and counters
  - api/scheduler.go: Periodic trigger for the rollover job
*/
package leave

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// Rollover provisions yearly ledger rows. Besides the Ledger it is the only
// writer of balance rows, and it only ever inserts.
type Rollover struct {
	store     Store
	catalog   Catalog
	directory Directory
	audit     Recorder

	Alert AlertFunc
	Now   func() time.Time
}

func NewRollover(store Store, catalog Catalog, directory Directory, audit Recorder) *Rollover {
	return &Rollover{
		store:     store,
		catalog:   catalog,
		directory: directory,
		audit:     audit,
		Alert:     log.Printf,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProvisionYear creates year's ledger rows for one employee, one per
// catalog type, skipping rows that already exist. Returns the rows it
// created.
func (r *Rollover) ProvisionYear(ctx context.Context, employeeID EmployeeID, year int) ([]Balance, error) {
	var (
		created []Balance
		events  []AuditEvent
	)
	err := retryTx(ctx, r.store, func(s Store) error {
		created = created[:0]
		events = events[:0]

		for _, lt := range r.catalog.List() {
			key := BalanceKey{EmployeeID: employeeID, LeaveType: lt.Code, Year: year}

			_, err := s.GetBalance(ctx, key)
			if err == nil {
				continue // already provisioned
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}

			carried := ZeroDays()
			if lt.CarryForwardAllowed {
				prior, err := s.GetBalance(ctx, BalanceKey{EmployeeID: employeeID, LeaveType: lt.Code, Year: year - 1})
				switch {
				case err == nil:
					avail := prior.Available()
					if avail.IsPositive() {
						carried = avail.Min(lt.MaxCarryoverDays)
					}
				case !errors.Is(err, ErrNotFound):
					return err
				}
			}

			b := Balance{
				Key:            key,
				Earned:         lt.AnnualEntitlementDays,
				CarriedForward: carried,
			}
			if err := s.CreateBalance(ctx, b); err != nil {
				return err
			}

			created = append(created, b)
			events = append(events, AuditEvent{
				ID:     uuid.NewString(),
				Kind:   AuditLedgerMutation,
				At:     r.Now(),
				Key:    key,
				Op:     OpProvision,
				Amount: b.Earned.Add(b.CarriedForward),
				After:  b.Counters(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.emit(ctx, events...)
	return created, nil
}

// ProvisionAll runs ProvisionYear for every active employee in the
// directory. It keeps going past per-employee failures and returns the
// number of employees provisioned along with the first error encountered.
func (r *Rollover) ProvisionAll(ctx context.Context, year int) (int, error) {
	ids, err := r.directory.Employees(ctx)
	if err != nil {
		return 0, err
	}

	var (
		done     int
		firstErr error
	)
	for _, id := range ids {
		active, err := r.directory.IsActive(ctx, id)
		if err != nil || !active {
			continue
		}
		if _, err := r.ProvisionYear(ctx, id, year); err != nil {
			r.alertf("rollover failed for employee %s year %d: %v", id, year, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		done++
	}
	return done, firstErr
}

func (r *Rollover) emit(ctx context.Context, events ...AuditEvent) {
	if r.audit == nil {
		return
	}
	for _, ev := range events {
		if err := r.audit.Record(ctx, ev); err != nil {
			r.alertf("audit record failed (degraded mode): op=%s key=%s err=%v", ev.Op, ev.Key, err)
		}
	}
}

func (r *Rollover) alertf(format string, args ...any) {
	if r.Alert != nil {
		r.Alert(format, args...)
	}
}
