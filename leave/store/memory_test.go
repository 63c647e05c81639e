package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testKey = leave.BalanceKey{EmployeeID: "emp-1", LeaveType: "VL", Year: 2026}

func seedRow(t *testing.T, m *store.Memory) {
	t.Helper()
	require.NoError(t, m.CreateBalance(context.Background(), leave.Balance{
		Key:    testKey,
		Earned: leave.DaysFromInt(15),
	}))
}

func testRequest(id leave.RequestID, emp leave.EmployeeID, startDay, endDay int, state leave.State) *leave.LeaveRequest {
	return &leave.LeaveRequest{
		ID:         id,
		EmployeeID: emp,
		LeaveType:  "VL",
		Dates: leave.NewDateRange(
			time.Date(2026, time.June, startDay, 0, 0, 0, 0, time.UTC),
			time.Date(2026, time.June, endDay, 0, 0, 0, 0, time.UTC),
		),
		DaysRequested: leave.DaysFromInt(endDay - startDay + 1),
		State:         state,
	}
}

// =============================================================================
// VERSIONING TESTS
// =============================================================================

func TestMemory_CreateBalance_StartsAtVersionOne(t *testing.T) {
	m := store.NewMemory()
	seedRow(t, m)

	b, err := m.GetBalance(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.Version)
}

func TestMemory_CreateBalance_DuplicateRejected(t *testing.T) {
	m := store.NewMemory()
	seedRow(t, m)

	err := m.CreateBalance(context.Background(), leave.Balance{Key: testKey})
	assert.Error(t, err)
}

func TestMemory_UpdateBalance_StaleVersion_Conflicts(t *testing.T) {
	// GIVEN: Two readers of the same row
	// WHEN: Both write back their copy
	// THEN: The second write fails with a retryable conflict

	m := store.NewMemory()
	ctx := context.Background()
	seedRow(t, m)

	a, err := m.GetBalance(ctx, testKey)
	require.NoError(t, err)
	b, err := m.GetBalance(ctx, testKey)
	require.NoError(t, err)

	a.Used = leave.DaysFromInt(1)
	require.NoError(t, m.UpdateBalance(ctx, a))

	b.Used = leave.DaysFromInt(2)
	err = m.UpdateBalance(ctx, b)
	assert.ErrorIs(t, err, leave.ErrConcurrentModification)

	cur, err := m.GetBalance(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, cur.Used.Equal(leave.DaysFromInt(1)), "first writer wins")
	assert.Equal(t, int64(2), cur.Version)
}

func TestMemory_UpdateBalance_MissingRow_NotFound(t *testing.T) {
	m := store.NewMemory()
	err := m.UpdateBalance(context.Background(), leave.Balance{Key: testKey, Version: 1})
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestMemory_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that mutates a row, saves a hold, and then fails
	// WHEN: It returns an error
	// THEN: Every mutation inside it is undone

	m := store.NewMemory()
	ctx := context.Background()
	seedRow(t, m)

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(s leave.Store) error {
		b, err := s.GetBalance(ctx, testKey)
		if err != nil {
			return err
		}
		b.Held = leave.DaysFromInt(5)
		if err := s.UpdateBalance(ctx, b); err != nil {
			return err
		}
		if err := s.SaveHold(ctx, leave.Hold{ID: "h-1", Key: testKey, Days: leave.DaysFromInt(5), State: leave.HoldActive}); err != nil {
			return err
		}
		if err := s.SaveRequest(ctx, testRequest("r-1", "emp-1", 10, 12, leave.StatePendingSupervisor)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	b, err := m.GetBalance(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, b.Held.IsZero(), "balance mutation must roll back")
	assert.Equal(t, int64(1), b.Version)

	_, err = m.GetHold(ctx, "h-1")
	assert.ErrorIs(t, err, leave.ErrNotFound, "hold must roll back")

	_, err = m.GetRequest(ctx, "r-1")
	assert.ErrorIs(t, err, leave.ErrNotFound, "request must roll back")
}

func TestMemory_WithTx_CommitsOnSuccess(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	seedRow(t, m)

	err := m.WithTx(ctx, func(s leave.Store) error {
		b, err := s.GetBalance(ctx, testKey)
		if err != nil {
			return err
		}
		b.Held = leave.DaysFromInt(3)
		return s.UpdateBalance(ctx, b)
	})
	require.NoError(t, err)

	b, err := m.GetBalance(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, b.Held.Equal(leave.DaysFromInt(3)))
}

func TestMemory_WithTx_NestedJoinsEnclosing(t *testing.T) {
	// GIVEN: A transaction opening another transaction inside itself
	// WHEN: The outer one fails after the inner committed its work
	// THEN: Everything rolls back together

	m := store.NewMemory()
	ctx := context.Background()
	seedRow(t, m)

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(s leave.Store) error {
		if err := s.WithTx(ctx, func(inner leave.Store) error {
			b, err := inner.GetBalance(ctx, testKey)
			if err != nil {
				return err
			}
			b.Used = leave.DaysFromInt(4)
			return inner.UpdateBalance(ctx, b)
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	b, err := m.GetBalance(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, b.Used.IsZero())
}

// =============================================================================
// REQUEST QUERY TESTS
// =============================================================================

func TestMemory_SaveRequest_CloneIsolation(t *testing.T) {
	// GIVEN: A saved request
	// WHEN: The caller mutates its copy afterwards
	// THEN: The stored version is unaffected

	m := store.NewMemory()
	ctx := context.Background()

	r := testRequest("r-1", "emp-1", 10, 12, leave.StatePendingSupervisor)
	require.NoError(t, m.SaveRequest(ctx, r))
	r.State = leave.StateCancelled

	got, err := m.GetRequest(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatePendingSupervisor, got.State)
}

func TestMemory_ListRequests_NewestFirst(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveRequest(ctx, testRequest("r-1", "emp-1", 1, 2, leave.StatePendingSupervisor)))
	require.NoError(t, m.SaveRequest(ctx, testRequest("r-2", "emp-1", 5, 6, leave.StatePendingSupervisor)))
	require.NoError(t, m.SaveRequest(ctx, testRequest("r-3", "emp-2", 8, 9, leave.StatePendingSupervisor)))

	all, err := m.ListRequests(ctx, leave.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, leave.RequestID("r-3"), all[0].ID)
	assert.Equal(t, leave.RequestID("r-1"), all[2].ID)

	mine, err := m.ListRequests(ctx, leave.RequestFilter{EmployeeID: "emp-2"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, leave.RequestID("r-3"), mine[0].ID)
}

func TestMemory_ListOverlapping_IgnoresTerminalAndOthers(t *testing.T) {
	// GIVEN: Overlapping requests in live, terminal, and foreign states
	// WHEN: Checking a range for conflicts
	// THEN: Only the live request of the same employee is reported

	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveRequest(ctx, testRequest("live", "emp-1", 10, 12, leave.StatePendingSupervisor)))
	require.NoError(t, m.SaveRequest(ctx, testRequest("done", "emp-1", 10, 12, leave.StateRejected)))
	require.NoError(t, m.SaveRequest(ctx, testRequest("other", "emp-2", 10, 12, leave.StatePendingSupervisor)))
	require.NoError(t, m.SaveRequest(ctx, testRequest("apart", "emp-1", 20, 22, leave.StatePendingSupervisor)))

	rng := leave.NewDateRange(
		time.Date(2026, time.June, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.June, 14, 0, 0, 0, 0, time.UTC),
	)
	hits, err := m.ListOverlapping(ctx, "emp-1", rng)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, leave.RequestID("live"), hits[0].ID)
}
