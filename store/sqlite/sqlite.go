/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements leave.Store and leave.Recorder using SQLite. In production, the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  leave.Store:    Balance rows, holds, requests, transactions
  leave.Recorder: Append-only audit trail

KEY TABLES:
  leave_balances:      One row per (employee, leave type, year) with the four
                       counters and an optimistic version
  holds:               Balance reservations, resolved exactly once
  leave_requests:      Request rows (current state)
  request_transitions: Append-only per-request transition log
  audit_events:        Append-only audit trail

OPTIMISTIC CONCURRENCY:
  UpdateBalance compiles to a single conditional UPDATE:

    UPDATE leave_balances SET ..., version = version + 1
    WHERE employee_id = ? AND leave_type = ? AND year = ? AND version = ?

  Zero rows affected means another writer got there first; the caller sees
  ErrConcurrentModification and the ledger retries the whole unit.

APPEND-ONLY ENFORCEMENT:
  request_transitions and audit_events are never UPDATEd or DELETEd.
  SaveRequest inserts transitions with INSERT OR IGNORE keyed on
  (request_id, seq) so re-saving a request never rewrites history.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := leave.NewLedger(store, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/leave-engine/leave"
)

const (
	dateFormat = "2006-01-02"
	timeFormat = time.RFC3339Nano
)

// Store implements leave.Store and leave.Recorder using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Balance ledger rows: one per (employee, leave type, year)
	CREATE TABLE IF NOT EXISTS leave_balances (
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		year INTEGER NOT NULL,
		earned TEXT NOT NULL,
		carried_forward TEXT NOT NULL,
		used TEXT NOT NULL,
		held TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, leave_type, year)
	);

	-- Balance reservations, resolved exactly once
	CREATE TABLE IF NOT EXISTS holds (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		year INTEGER NOT NULL,
		days TEXT NOT NULL,
		state TEXT NOT NULL,
		request_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		resolved_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_holds_request
		ON holds(request_id);

	-- Leave requests (current state; history in request_transitions)
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days_requested TEXT NOT NULL,
		reason TEXT,
		state TEXT NOT NULL,
		supervisor_id TEXT NOT NULL,
		department TEXT,
		hold_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON leave_requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_state
		ON leave_requests(state);
	CREATE INDEX IF NOT EXISTS idx_requests_department
		ON leave_requests(department);

	-- Hot path: overlap checks scan one employee's non-terminal requests
	CREATE INDEX IF NOT EXISTS idx_requests_employee_dates
		ON leave_requests(employee_id, start_date, end_date);

	-- Append-only transition log
	CREATE TABLE IF NOT EXISTS request_transitions (
		request_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		event TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		at TEXT NOT NULL,
		comment TEXT,
		PRIMARY KEY (request_id, seq)
	);

	-- Append-only audit trail
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		at TEXT NOT NULL,
		actor_id TEXT,
		actor_role TEXT,
		request_id TEXT,
		from_state TEXT,
		to_state TEXT,
		event TEXT,
		comment TEXT,
		employee_id TEXT,
		leave_type TEXT,
		year INTEGER,
		op TEXT,
		hold_id TEXT,
		amount TEXT,
		before_json TEXT,
		after_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_request
		ON audit_events(request_id);
	CREATE INDEX IF NOT EXISTS idx_audit_employee
		ON audit_events(employee_id);
	CREATE INDEX IF NOT EXISTS idx_audit_at
		ON audit_events(at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier abstracts *sql.DB and *sql.Tx so the same statement helpers serve
// both direct calls and WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// BALANCE ROWS (leave.Store interface)
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, key leave.BalanceKey) (leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBalance(ctx, s.db, key)
}

func (s *Store) CreateBalance(ctx context.Context, b leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createBalance(ctx, s.db, b)
}

func (s *Store) UpdateBalance(ctx context.Context, b leave.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateBalance(ctx, s.db, b)
}

func (s *Store) ListBalances(ctx context.Context, employeeID leave.EmployeeID) ([]leave.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBalances(ctx, s.db, employeeID)
}

func getBalance(ctx context.Context, q querier, key leave.BalanceKey) (leave.Balance, error) {
	var (
		b                            leave.Balance
		earned, carried, used, held string
	)
	err := q.QueryRowContext(ctx,
		`SELECT earned, carried_forward, used, held, version
		 FROM leave_balances
		 WHERE employee_id = ? AND leave_type = ? AND year = ?`,
		key.EmployeeID, key.LeaveType, key.Year,
	).Scan(&earned, &carried, &used, &held, &b.Version)

	if err == sql.ErrNoRows {
		return leave.Balance{}, fmt.Errorf("balance %s: %w", key, leave.ErrNotFound)
	}
	if err != nil {
		return leave.Balance{}, fmt.Errorf("failed to query balance: %w", err)
	}

	b.Key = key
	b.Earned = leave.MustParseDays(earned)
	b.CarriedForward = leave.MustParseDays(carried)
	b.Used = leave.MustParseDays(used)
	b.Held = leave.MustParseDays(held)
	return b, nil
}

func createBalance(ctx context.Context, q querier, b leave.Balance) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO leave_balances
		 (employee_id, leave_type, year, earned, carried_forward, used, held, version, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		b.Key.EmployeeID, b.Key.LeaveType, b.Key.Year,
		b.Earned.String(), b.CarriedForward.String(), b.Used.String(), b.Held.String(),
		time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("balance %s already exists", b.Key)
		}
		return fmt.Errorf("failed to create balance: %w", err)
	}
	return nil
}

func updateBalance(ctx context.Context, q querier, b leave.Balance) error {
	res, err := q.ExecContext(ctx,
		`UPDATE leave_balances
		 SET earned = ?, carried_forward = ?, used = ?, held = ?,
		     version = version + 1, updated_at = ?
		 WHERE employee_id = ? AND leave_type = ? AND year = ? AND version = ?`,
		b.Earned.String(), b.CarriedForward.String(), b.Used.String(), b.Held.String(),
		time.Now().UTC().Format(timeFormat),
		b.Key.EmployeeID, b.Key.LeaveType, b.Key.Year, b.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a vanished row from a lost race.
		var one int
		err := q.QueryRowContext(ctx,
			`SELECT 1 FROM leave_balances WHERE employee_id = ? AND leave_type = ? AND year = ?`,
			b.Key.EmployeeID, b.Key.LeaveType, b.Key.Year,
		).Scan(&one)
		if err == sql.ErrNoRows {
			return fmt.Errorf("balance %s: %w", b.Key, leave.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("balance %s version %d: %w", b.Key, b.Version, leave.ErrConcurrentModification)
	}
	return nil
}

func listBalances(ctx context.Context, q querier, employeeID leave.EmployeeID) ([]leave.Balance, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT leave_type, year, earned, carried_forward, used, held, version
		 FROM leave_balances
		 WHERE employee_id = ?
		 ORDER BY leave_type, year`,
		employeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var out []leave.Balance
	for rows.Next() {
		var (
			b                            leave.Balance
			earned, carried, used, held string
		)
		if err := rows.Scan(&b.Key.LeaveType, &b.Key.Year, &earned, &carried, &used, &held, &b.Version); err != nil {
			return nil, err
		}
		b.Key.EmployeeID = employeeID
		b.Earned = leave.MustParseDays(earned)
		b.CarriedForward = leave.MustParseDays(carried)
		b.Used = leave.MustParseDays(used)
		b.Held = leave.MustParseDays(held)
		out = append(out, b)
	}
	return out, rows.Err()
}

// =============================================================================
// HOLDS
// =============================================================================

func (s *Store) GetHold(ctx context.Context, id leave.HoldID) (leave.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getHold(ctx, s.db, id)
}

func (s *Store) SaveHold(ctx context.Context, h leave.Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveHold(ctx, s.db, h)
}

func getHold(ctx context.Context, q querier, id leave.HoldID) (leave.Hold, error) {
	var (
		h          leave.Hold
		days       string
		createdAt  string
		resolvedAt sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, employee_id, leave_type, year, days, state, request_id, created_at, resolved_at
		 FROM holds WHERE id = ?`,
		id,
	).Scan(&h.ID, &h.Key.EmployeeID, &h.Key.LeaveType, &h.Key.Year,
		&days, &h.State, &h.RequestID, &createdAt, &resolvedAt)

	if err == sql.ErrNoRows {
		return leave.Hold{}, fmt.Errorf("hold %s: %w", id, leave.ErrNotFound)
	}
	if err != nil {
		return leave.Hold{}, fmt.Errorf("failed to query hold: %w", err)
	}

	h.Days = leave.MustParseDays(days)
	h.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	if resolvedAt.Valid {
		h.ResolvedAt, _ = time.Parse(timeFormat, resolvedAt.String)
	}
	return h, nil
}

func saveHold(ctx context.Context, q querier, h leave.Hold) error {
	var resolvedAt *string
	if !h.ResolvedAt.IsZero() {
		t := h.ResolvedAt.Format(timeFormat)
		resolvedAt = &t
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO holds (id, employee_id, leave_type, year, days, state, request_id, created_at, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			resolved_at = excluded.resolved_at`,
		h.ID, h.Key.EmployeeID, h.Key.LeaveType, h.Key.Year,
		h.Days.String(), h.State, h.RequestID,
		h.CreatedAt.Format(timeFormat), resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save hold: %w", err)
	}
	return nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

func (s *Store) SaveRequest(ctx context.Context, r *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveRequest(ctx, s.db, r)
}

func (s *Store) ListRequests(ctx context.Context, f leave.RequestFilter) ([]*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRequests(ctx, s.db, f)
}

func (s *Store) ListOverlapping(ctx context.Context, employeeID leave.EmployeeID, r leave.DateRange) ([]*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOverlapping(ctx, s.db, employeeID, r)
}

const requestColumns = `id, employee_id, leave_type, start_date, end_date, days_requested,
	reason, state, supervisor_id, department, hold_id, created_at, updated_at`

func getRequest(ctx context.Context, q querier, id leave.RequestID) (*leave.LeaveRequest, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)

	r, err := scanRequestRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("request %s: %w", id, leave.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query request: %w", err)
	}

	if err := loadTransitions(ctx, q, r); err != nil {
		return nil, err
	}
	return r, nil
}

func saveRequest(ctx context.Context, q querier, r *leave.LeaveRequest) error {
	var holdID *string
	if r.HoldID != "" {
		h := string(r.HoldID)
		holdID = &h
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO leave_requests
		 (`+requestColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			hold_id = excluded.hold_id,
			updated_at = excluded.updated_at`,
		r.ID, r.EmployeeID, r.LeaveType,
		r.Dates.Start.Format(dateFormat), r.Dates.End.Format(dateFormat),
		r.DaysRequested.String(), r.Reason, r.State,
		r.SupervisorID, r.Department, holdID,
		r.CreatedAt.Format(timeFormat), r.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}

	// Append-only: re-saving never rewrites history.
	for _, tr := range r.Transitions {
		_, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO request_transitions
			 (request_id, seq, from_state, to_state, event, actor_id, actor_role, at, comment)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, tr.Seq, tr.From, tr.To, tr.Event,
			tr.ActorID, tr.ActorRole, tr.At.Format(timeFormat), tr.Comment,
		)
		if err != nil {
			return fmt.Errorf("failed to save transition: %w", err)
		}
	}
	return nil
}

func listRequests(ctx context.Context, q querier, f leave.RequestFilter) ([]*leave.LeaveRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	var (
		clauses []string
		args    []any
	)
	if f.EmployeeID != "" {
		clauses = append(clauses, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.Department != "" {
		clauses = append(clauses, "department = ?")
		args = append(args, f.Department)
	}
	if len(f.States) > 0 {
		ph := make([]string, len(f.States))
		for i, st := range f.States {
			ph[i] = "?"
			args = append(args, st)
		}
		clauses = append(clauses, "state IN ("+strings.Join(ph, ", ")+")")
	}
	if f.Range != nil {
		clauses = append(clauses, "start_date <= ? AND end_date >= ?")
		args = append(args, f.Range.End.Format(dateFormat), f.Range.Start.Format(dateFormat))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	return queryRequests(ctx, q, query, args...)
}

func listOverlapping(ctx context.Context, q querier, employeeID leave.EmployeeID, r leave.DateRange) ([]*leave.LeaveRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM leave_requests
		WHERE employee_id = ?
		  AND state NOT IN (?, ?, ?)
		  AND start_date <= ? AND end_date >= ?
		ORDER BY created_at DESC`

	return queryRequests(ctx, q, query,
		employeeID,
		leave.StateProcessed, leave.StateRejected, leave.StateCancelled,
		r.End.Format(dateFormat), r.Start.Format(dateFormat),
	)
}

func queryRequests(ctx context.Context, q querier, query string, args ...any) ([]*leave.LeaveRequest, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}

	var out []*leave.LeaveRequest
	for rows.Next() {
		r, err := scanRequestRow(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, r := range out {
		if err := loadTransitions(ctx, q, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanRequestRow(scan func(dest ...any) error) (*leave.LeaveRequest, error) {
	var (
		r                             leave.LeaveRequest
		startDate, endDate, days      string
		reason, department            sql.NullString
		holdID                        sql.NullString
		createdAt, updatedAt          string
	)
	err := scan(
		&r.ID, &r.EmployeeID, &r.LeaveType, &startDate, &endDate, &days,
		&reason, &r.State, &r.SupervisorID, &department, &holdID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	start, _ := time.Parse(dateFormat, startDate)
	end, _ := time.Parse(dateFormat, endDate)
	r.Dates = leave.NewDateRange(start, end)
	r.DaysRequested = leave.MustParseDays(days)
	r.Reason = reason.String
	r.Department = department.String
	r.HoldID = leave.HoldID(holdID.String)
	r.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	r.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &r, nil
}

func loadTransitions(ctx context.Context, q querier, r *leave.LeaveRequest) error {
	rows, err := q.QueryContext(ctx,
		`SELECT seq, from_state, to_state, event, actor_id, actor_role, at, comment
		 FROM request_transitions
		 WHERE request_id = ?
		 ORDER BY seq ASC`,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tr      leave.StateTransition
			at      string
			comment sql.NullString
		)
		if err := rows.Scan(&tr.Seq, &tr.From, &tr.To, &tr.Event, &tr.ActorID, &tr.ActorRole, &at, &comment); err != nil {
			return err
		}
		tr.At, _ = time.Parse(timeFormat, at)
		tr.Comment = comment.String
		r.Transitions = append(r.Transitions, tr)
	}
	return rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every operation against the open transaction. WithTx on a
// txStore joins the enclosing transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetBalance(ctx context.Context, key leave.BalanceKey) (leave.Balance, error) {
	return getBalance(ctx, ts.tx, key)
}

func (ts *txStore) CreateBalance(ctx context.Context, b leave.Balance) error {
	return createBalance(ctx, ts.tx, b)
}

func (ts *txStore) UpdateBalance(ctx context.Context, b leave.Balance) error {
	return updateBalance(ctx, ts.tx, b)
}

func (ts *txStore) ListBalances(ctx context.Context, employeeID leave.EmployeeID) ([]leave.Balance, error) {
	return listBalances(ctx, ts.tx, employeeID)
}

func (ts *txStore) GetHold(ctx context.Context, id leave.HoldID) (leave.Hold, error) {
	return getHold(ctx, ts.tx, id)
}

func (ts *txStore) SaveHold(ctx context.Context, h leave.Hold) error {
	return saveHold(ctx, ts.tx, h)
}

func (ts *txStore) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	return getRequest(ctx, ts.tx, id)
}

func (ts *txStore) SaveRequest(ctx context.Context, r *leave.LeaveRequest) error {
	return saveRequest(ctx, ts.tx, r)
}

func (ts *txStore) ListRequests(ctx context.Context, f leave.RequestFilter) ([]*leave.LeaveRequest, error) {
	return listRequests(ctx, ts.tx, f)
}

func (ts *txStore) ListOverlapping(ctx context.Context, employeeID leave.EmployeeID, r leave.DateRange) ([]*leave.LeaveRequest, error) {
	return listOverlapping(ctx, ts.tx, employeeID, r)
}

func (ts *txStore) WithTx(_ context.Context, fn func(leave.Store) error) error {
	return fn(ts)
}

// =============================================================================
// AUDIT TRAIL (leave.Recorder interface)
// =============================================================================

// Record appends one audit event. Events are never updated or deleted.
func (s *Store) Record(ctx context.Context, ev leave.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	beforeJSON, _ := json.Marshal(ev.Before)
	afterJSON, _ := json.Marshal(ev.After)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events
		 (id, kind, at, actor_id, actor_role, request_id, from_state, to_state, event, comment,
		  employee_id, leave_type, year, op, hold_id, amount, before_json, after_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Kind, ev.At.Format(timeFormat),
		ev.ActorID, ev.ActorRole,
		ev.RequestID, ev.From, ev.To, ev.Event, ev.Comment,
		ev.Key.EmployeeID, ev.Key.LeaveType, ev.Key.Year,
		ev.Op, ev.HoldID, ev.Amount.String(),
		string(beforeJSON), string(afterJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// QueryAudit returns audit events matching the filter, oldest first.
func (s *Store) QueryAudit(ctx context.Context, f leave.AuditFilter) ([]leave.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, kind, at, actor_id, actor_role, request_id, from_state, to_state,
		event, comment, employee_id, leave_type, year, op, hold_id, amount, before_json, after_json
		FROM audit_events`
	var (
		clauses []string
		args    []any
	)
	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.ActorID != "" {
		clauses = append(clauses, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.EmployeeID != "" {
		clauses = append(clauses, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.RequestID != "" {
		clauses = append(clauses, "request_id = ?")
		args = append(args, f.RequestID)
	}
	if !f.From.IsZero() {
		clauses = append(clauses, "at >= ?")
		args = append(args, f.From.Format(timeFormat))
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "at <= ?")
		args = append(args, f.To.Format(timeFormat))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var out []leave.AuditEvent
	for rows.Next() {
		var (
			ev                    leave.AuditEvent
			at, amount            string
			actorID, actorRole    sql.NullString
			requestID, fromS, toS sql.NullString
			event, comment        sql.NullString
			employeeID, leaveType sql.NullString
			year                  sql.NullInt64
			op, holdID            sql.NullString
			beforeJSON, afterJSON sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.Kind, &at, &actorID, &actorRole,
			&requestID, &fromS, &toS, &event, &comment,
			&employeeID, &leaveType, &year, &op, &holdID, &amount,
			&beforeJSON, &afterJSON); err != nil {
			return nil, err
		}

		ev.At, _ = time.Parse(timeFormat, at)
		ev.ActorID = leave.ActorID(actorID.String)
		ev.ActorRole = leave.Role(actorRole.String)
		ev.RequestID = leave.RequestID(requestID.String)
		ev.From = leave.State(fromS.String)
		ev.To = leave.State(toS.String)
		ev.Event = leave.Event(event.String)
		ev.Comment = comment.String
		ev.Key = leave.BalanceKey{
			EmployeeID: leave.EmployeeID(employeeID.String),
			LeaveType:  leave.LeaveTypeCode(leaveType.String),
			Year:       int(year.Int64),
		}
		ev.Op = leave.LedgerOp(op.String)
		ev.HoldID = leave.HoldID(holdID.String)
		ev.Amount = leave.MustParseDays(amount)
		if beforeJSON.Valid {
			json.Unmarshal([]byte(beforeJSON.String), &ev.Before)
		}
		if afterJSON.Valid {
			json.Unmarshal([]byte(afterJSON.String), &ev.After)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"audit_events", "request_transitions", "leave_requests", "holds", "leave_balances"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
