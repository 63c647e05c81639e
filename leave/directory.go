/*
directory.go - Employee directory collaborator

PURPOSE:
  The workflow needs three facts about an employee at submission time: who
  their supervisor is, whether they are active, and which department they
  belong to (for list filtering). The directory is an external collaborator;
  the engine resolves the supervisor ONCE at submission and freezes it on
  the request, so later org changes never retroactively change an in-flight
  request's approver.

SEE ALSO:
  - engine.go: Calls the directory only during Submit
*/
package leave

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Directory resolves reporting-chain and status facts about employees.
type Directory interface {
	// Supervisor returns the employee's direct supervisor, or ErrNotFound
	// if the employee is unknown or has no supervisor on record.
	Supervisor(ctx context.Context, id EmployeeID) (EmployeeID, error)

	// IsActive reports whether the employee is currently employed.
	IsActive(ctx context.Context, id EmployeeID) (bool, error)

	// Department returns the employee's department name (may be empty).
	Department(ctx context.Context, id EmployeeID) (string, error)

	// Employees returns all known employee IDs, ordered.
	Employees(ctx context.Context) ([]EmployeeID, error)
}

// =============================================================================
// STATIC DIRECTORY - In-memory implementation (tests, dev, small deployments)
// =============================================================================

// EmployeeRecord is one directory entry.
type EmployeeRecord struct {
	ID         EmployeeID
	Supervisor EmployeeID
	Department string
	Active     bool
}

type StaticDirectory struct {
	mu      sync.RWMutex
	records map[EmployeeID]EmployeeRecord
}

func NewStaticDirectory(records ...EmployeeRecord) *StaticDirectory {
	d := &StaticDirectory{records: make(map[EmployeeID]EmployeeRecord, len(records))}
	for _, r := range records {
		d.records[r.ID] = r
	}
	return d
}

// Add inserts or replaces a directory entry.
func (d *StaticDirectory) Add(r EmployeeRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[r.ID] = r
}

func (d *StaticDirectory) Supervisor(_ context.Context, id EmployeeID) (EmployeeID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[id]
	if !ok {
		return "", fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	if r.Supervisor == "" {
		return "", fmt.Errorf("employee %s has no supervisor: %w", id, ErrNotFound)
	}
	return r.Supervisor, nil
}

func (d *StaticDirectory) IsActive(_ context.Context, id EmployeeID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[id]
	if !ok {
		return false, fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	return r.Active, nil
}

func (d *StaticDirectory) Department(_ context.Context, id EmployeeID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[id]
	if !ok {
		return "", fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	return r.Department, nil
}

func (d *StaticDirectory) Employees(_ context.Context) ([]EmployeeID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]EmployeeID, 0, len(d.records))
	for id := range d.records {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
