// Package store provides leave.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	balances map[leave.BalanceKey]leave.Balance
	holds    map[leave.HoldID]leave.Hold
	requests map[leave.RequestID]*leave.LeaveRequest
	order    []leave.RequestID // creation order, for newest-first listing
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[leave.BalanceKey]leave.Balance),
		holds:    make(map[leave.HoldID]leave.Hold),
		requests: make(map[leave.RequestID]*leave.LeaveRequest),
	}
}

// --- Balance rows ---

func (m *Memory) GetBalance(_ context.Context, key leave.BalanceKey) (leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBalanceLocked(key)
}

func (m *Memory) CreateBalance(_ context.Context, b leave.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createBalanceLocked(b)
}

func (m *Memory) UpdateBalance(_ context.Context, b leave.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateBalanceLocked(b)
}

func (m *Memory) ListBalances(_ context.Context, employeeID leave.EmployeeID) ([]leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listBalancesLocked(employeeID)
}

func (m *Memory) getBalanceLocked(key leave.BalanceKey) (leave.Balance, error) {
	b, ok := m.balances[key]
	if !ok {
		return leave.Balance{}, fmt.Errorf("balance %s: %w", key, leave.ErrNotFound)
	}
	return b, nil
}

func (m *Memory) createBalanceLocked(b leave.Balance) error {
	if _, exists := m.balances[b.Key]; exists {
		return fmt.Errorf("balance %s already exists", b.Key)
	}
	b.Version = 1
	m.balances[b.Key] = b
	return nil
}

func (m *Memory) updateBalanceLocked(b leave.Balance) error {
	cur, ok := m.balances[b.Key]
	if !ok {
		return fmt.Errorf("balance %s: %w", b.Key, leave.ErrNotFound)
	}
	if cur.Version != b.Version {
		return fmt.Errorf("balance %s version %d (have %d): %w",
			b.Key, b.Version, cur.Version, leave.ErrConcurrentModification)
	}
	b.Version++
	m.balances[b.Key] = b
	return nil
}

func (m *Memory) listBalancesLocked(employeeID leave.EmployeeID) ([]leave.Balance, error) {
	var out []leave.Balance
	for _, b := range m.balances {
		if b.Key.EmployeeID == employeeID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.LeaveType != out[j].Key.LeaveType {
			return out[i].Key.LeaveType < out[j].Key.LeaveType
		}
		return out[i].Key.Year < out[j].Key.Year
	})
	return out, nil
}

// --- Holds ---

func (m *Memory) GetHold(_ context.Context, id leave.HoldID) (leave.Hold, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getHoldLocked(id)
}

func (m *Memory) SaveHold(_ context.Context, h leave.Hold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holds[h.ID] = h
	return nil
}

func (m *Memory) getHoldLocked(id leave.HoldID) (leave.Hold, error) {
	h, ok := m.holds[id]
	if !ok {
		return leave.Hold{}, fmt.Errorf("hold %s: %w", id, leave.ErrNotFound)
	}
	return h, nil
}

// --- Requests ---

func (m *Memory) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRequestLocked(id)
}

func (m *Memory) SaveRequest(_ context.Context, r *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveRequestLocked(r)
	return nil
}

func (m *Memory) ListRequests(_ context.Context, f leave.RequestFilter) ([]*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRequestsLocked(f)
}

func (m *Memory) ListOverlapping(_ context.Context, employeeID leave.EmployeeID, r leave.DateRange) ([]*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listOverlappingLocked(employeeID, r)
}

func (m *Memory) getRequestLocked(id leave.RequestID) (*leave.LeaveRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, leave.ErrNotFound)
	}
	return r.Clone(), nil
}

func (m *Memory) saveRequestLocked(r *leave.LeaveRequest) {
	if _, exists := m.requests[r.ID]; !exists {
		m.order = append(m.order, r.ID)
	}
	m.requests[r.ID] = r.Clone()
}

func (m *Memory) listRequestsLocked(f leave.RequestFilter) ([]*leave.LeaveRequest, error) {
	var out []*leave.LeaveRequest
	for i := len(m.order) - 1; i >= 0; i-- {
		r := m.requests[m.order[i]]
		if f.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *Memory) listOverlappingLocked(employeeID leave.EmployeeID, rng leave.DateRange) ([]*leave.LeaveRequest, error) {
	var out []*leave.LeaveRequest
	for i := len(m.order) - 1; i >= 0; i-- {
		r := m.requests[m.order[i]]
		if r.EmployeeID != employeeID || r.State.IsTerminal() {
			continue
		}
		if r.Dates.Overlaps(rng) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// --- Transactions ---

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()

	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	balances map[leave.BalanceKey]leave.Balance
	holds    map[leave.HoldID]leave.Hold
	requests map[leave.RequestID]*leave.LeaveRequest
	order    []leave.RequestID
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		balances: make(map[leave.BalanceKey]leave.Balance, len(m.balances)),
		holds:    make(map[leave.HoldID]leave.Hold, len(m.holds)),
		requests: make(map[leave.RequestID]*leave.LeaveRequest, len(m.requests)),
		order:    append([]leave.RequestID{}, m.order...),
	}
	for k, v := range m.balances {
		s.balances[k] = v
	}
	for k, v := range m.holds {
		s.holds[k] = v
	}
	for k, v := range m.requests {
		s.requests[k] = v.Clone()
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.balances = s.balances
	m.holds = s.holds
	m.requests = s.requests
	m.order = s.order
}

// txMemoryView operates on the parent while the parent's lock is held by
// WithTx. It must never take the lock itself.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetBalance(_ context.Context, key leave.BalanceKey) (leave.Balance, error) {
	return tv.parent.getBalanceLocked(key)
}

func (tv *txMemoryView) CreateBalance(_ context.Context, b leave.Balance) error {
	return tv.parent.createBalanceLocked(b)
}

func (tv *txMemoryView) UpdateBalance(_ context.Context, b leave.Balance) error {
	return tv.parent.updateBalanceLocked(b)
}

func (tv *txMemoryView) ListBalances(_ context.Context, employeeID leave.EmployeeID) ([]leave.Balance, error) {
	return tv.parent.listBalancesLocked(employeeID)
}

func (tv *txMemoryView) GetHold(_ context.Context, id leave.HoldID) (leave.Hold, error) {
	return tv.parent.getHoldLocked(id)
}

func (tv *txMemoryView) SaveHold(_ context.Context, h leave.Hold) error {
	tv.parent.holds[h.ID] = h
	return nil
}

func (tv *txMemoryView) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	return tv.parent.getRequestLocked(id)
}

func (tv *txMemoryView) SaveRequest(_ context.Context, r *leave.LeaveRequest) error {
	tv.parent.saveRequestLocked(r)
	return nil
}

func (tv *txMemoryView) ListRequests(_ context.Context, f leave.RequestFilter) ([]*leave.LeaveRequest, error) {
	return tv.parent.listRequestsLocked(f)
}

func (tv *txMemoryView) ListOverlapping(_ context.Context, employeeID leave.EmployeeID, r leave.DateRange) ([]*leave.LeaveRequest, error) {
	return tv.parent.listOverlappingLocked(employeeID, r)
}

// WithTx on a view joins the enclosing transaction.
func (tv *txMemoryView) WithTx(_ context.Context, fn func(leave.Store) error) error {
	return fn(tv)
}
