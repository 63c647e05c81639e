/*
store.go - Persistence interface for ledger rows, holds, and requests

PURPOSE:
  Defines the interface between the workflow/ledger logic and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory
  storage; the engine only ever talks to this interface.

ATOMIC UNITS:
  Every workflow transition (state change + ledger effect + transition log)
  executes inside WithTx. Either the whole unit commits or none of it does;
  a ledger mutated without the state advancing is a correctness bug, not a
  degraded mode.

OPTIMISTIC CONCURRENCY:
  Balance rows carry a version counter. UpdateBalance succeeds only when
  the caller's version matches the stored one (and then increments it);
  otherwise it fails with ErrConcurrentModification and the ledger retries
  the whole unit. This is what makes concurrent holds on the same row
  linearizable without a long-lived row lock.

IMPLEMENTATIONS:
  - store/memory.go: In-memory, for tests and development
  - store/sqlite (top-level): Production SQLite

SEE ALSO:
  - ledger.go: The only writer of balance rows and holds
  - engine.go: The only writer of requests
*/
package leave

import "context"

// Store handles persistence for the leave core.
type Store interface {
	// --- Balance rows ---

	// GetBalance returns the ledger row for key, or ErrNotFound.
	GetBalance(ctx context.Context, key BalanceKey) (Balance, error)

	// CreateBalance inserts a new ledger row at version 1. Fails if a row
	// for the key already exists.
	CreateBalance(ctx context.Context, b Balance) error

	// UpdateBalance writes b only if the stored version equals b.Version,
	// then increments the version. Fails with ErrConcurrentModification on
	// a version mismatch, ErrNotFound if the row does not exist.
	UpdateBalance(ctx context.Context, b Balance) error

	// ListBalances returns all ledger rows for an employee, ordered by
	// leave type then year.
	ListBalances(ctx context.Context, employeeID EmployeeID) ([]Balance, error)

	// --- Holds ---

	// GetHold returns a hold by ID, or ErrNotFound.
	GetHold(ctx context.Context, id HoldID) (Hold, error)

	// SaveHold inserts or updates a hold record.
	SaveHold(ctx context.Context, h Hold) error

	// --- Requests ---

	// GetRequest returns a request with its full transition log, or
	// ErrNotFound.
	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)

	// SaveRequest upserts the request row and appends any transitions not
	// yet persisted. Existing transition rows are never modified.
	SaveRequest(ctx context.Context, r *LeaveRequest) error

	// ListRequests returns requests matching the filter, newest first.
	ListRequests(ctx context.Context, f RequestFilter) ([]*LeaveRequest, error)

	// ListOverlapping returns non-terminal requests for the employee whose
	// date range intersects r.
	ListOverlapping(ctx context.Context, employeeID EmployeeID, r DateRange) ([]*LeaveRequest, error)

	// --- Transactions ---

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back; otherwise it is committed. The Store
	// passed to fn must not be retained after fn returns.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// maxTxRetries bounds optimistic-concurrency retries per operation.
const maxTxRetries = 5

// retryTx reruns a transactional unit while it fails with
// ErrConcurrentModification, up to maxTxRetries attempts.
func retryTx(ctx context.Context, s Store, fn func(Store) error) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.WithTx(ctx, fn)
		if !IsRetryable(err) {
			return err
		}
	}
	return err
}
