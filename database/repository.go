package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"prodmon/engine"
)

// Store lifecycle states. All CRUD requires StateReady; everything
// else answers ErrNotReady instead of touching the substrate.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// ErrNotReady is returned by every repository operation while the
// store is not in StateReady. Callers treat it as a recoverable
// condition and fall back to draft-only persistence.
var ErrNotReady = errors.New("session store is not ready")

// Repository is the durable CRUD surface over production sessions and
// their slot collections.
type Repository struct {
	db    *DB
	mu    sync.Mutex
	state State
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// State reports the current lifecycle state.
func (r *Repository) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Init creates the schema and moves the store to ready. A failed
// attempt lands in StateFailed; calling Init again re-attempts.
func (r *Repository) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = StateInitializing
	if err := r.createSchema(); err != nil {
		r.state = StateFailed
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	if err := r.db.Snapshot(); err != nil {
		r.state = StateFailed
		return err
	}
	r.state = StateReady
	return nil
}

func (r *Repository) createSchema() error {
	content, err := readSchema()
	if err != nil {
		return err
	}
	// Split by semicolon to handle multiple statements
	for _, stmt := range strings.Split(string(content), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := r.db.Session.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w\nStatement: %s", err, stmt)
		}
	}
	return nil
}

func readSchema() ([]byte, error) {
	// Working directory is the app root in production and the package
	// directory under `go test`.
	for _, path := range []string{"database/schema.sql", "schema.sql", "../database/schema.sql"} {
		if content, err := os.ReadFile(path); err == nil {
			return content, nil
		}
	}
	return nil, fmt.Errorf("failed to read schema.sql")
}

func (r *Repository) requireReady() error {
	if r.state != StateReady {
		return fmt.Errorf("%w (state: %s)", ErrNotReady, r.state)
	}
	return nil
}

// SaveSession inserts the session when it has no identity yet, or
// updates the existing row. Slots are never diffed: an update deletes
// every stored slot for the session and re-inserts the current
// sequence in full. Returns the session identity.
func (r *Repository) SaveSession(s *ProductionSession) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireReady(); err != nil {
		return 0, err
	}

	tx, err := r.db.Session.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	id := s.ID

	if id != 0 {
		res, err := tx.Exec(`
			UPDATE production_sessions SET
				line = ?, date = ?, plan_target = ?, achievement_factor = ?,
				required_manpower = ?, actual_manpower = ?, start_time = ?,
				end_time = ?, break_time = ?, total_time_hours = ?,
				working_time_hours = ?, hourly_target = ?, tact_time = ?,
				updated_at = ?
			WHERE id = ?`,
			s.Line, s.Date, s.PlanTarget, s.AchievementFactor,
			s.RequiredManpower, s.ActualManpower, s.StartTime,
			s.EndTime, s.BreakTime, s.Metrics.TotalTimeHours,
			s.Metrics.WorkingTimeHours, s.Metrics.HourlyTarget, s.Metrics.TactTime,
			now, id,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to update session %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return 0, fmt.Errorf("session %d does not exist", id)
		}

		if _, err := tx.Exec("DELETE FROM time_slots WHERE session_id = ?", id); err != nil {
			return 0, fmt.Errorf("failed to clear slots for session %d: %w", id, err)
		}
	} else {
		res, err := tx.Exec(`
			INSERT INTO production_sessions (
				line, date, plan_target, achievement_factor, required_manpower,
				actual_manpower, start_time, end_time, break_time,
				total_time_hours, working_time_hours, hourly_target, tact_time,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.Line, s.Date, s.PlanTarget, s.AchievementFactor, s.RequiredManpower,
			s.ActualManpower, s.StartTime, s.EndTime, s.BreakTime,
			s.Metrics.TotalTimeHours, s.Metrics.WorkingTimeHours,
			s.Metrics.HourlyTarget, s.Metrics.TactTime,
			now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert session: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read new session id: %w", err)
		}
	}

	stmt, err := tx.Prepare(`
		INSERT INTO time_slots (
			session_id, time_slot, working_time, plan, plan_cumulative,
			actual, variance, productivity_rate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare slot insert: %w", err)
	}
	defer stmt.Close()

	for i, slot := range s.TimeSlots {
		_, err := stmt.Exec(
			id, slot.TimeSlot, slot.WorkingTime, slot.Plan, slot.PlanCumulative,
			slot.Actual, slot.Variance, slot.ProductivityRate,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert slot %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session save: %w", err)
	}

	if err := r.db.Snapshot(); err != nil {
		return 0, err
	}
	return id, nil
}

// GetSessions lists saved sessions, most recent production date first
// (ties broken by creation time), each with its full slot sequence in
// original insertion order.
func (r *Repository) GetSessions(limit int) ([]ProductionSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireReady(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Session.Query(`
		SELECT id, line, date, plan_target, achievement_factor,
		       required_manpower, actual_manpower, start_time, end_time,
		       break_time, total_time_hours, working_time_hours,
		       hourly_target, tact_time, created_at, updated_at
		FROM production_sessions
		ORDER BY date DESC, created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []ProductionSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sessions {
		slots, err := r.sessionSlots(sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].TimeSlots = slots
	}
	return sessions, nil
}

// GetSession fetches one session with its slots. Returns sql.ErrNoRows
// when the identity is unknown.
func (r *Repository) GetSession(id int64) (*ProductionSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireReady(); err != nil {
		return nil, err
	}

	row := r.db.Session.QueryRow(`
		SELECT id, line, date, plan_target, achievement_factor,
		       required_manpower, actual_manpower, start_time, end_time,
		       break_time, total_time_hours, working_time_hours,
		       hourly_target, tact_time, created_at, updated_at
		FROM production_sessions WHERE id = ?`, id)

	s, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	slots, err := r.sessionSlots(s.ID)
	if err != nil {
		return nil, err
	}
	s.TimeSlots = slots
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (ProductionSession, error) {
	var s ProductionSession
	err := row.Scan(
		&s.ID, &s.Line, &s.Date, &s.PlanTarget, &s.AchievementFactor,
		&s.RequiredManpower, &s.ActualManpower, &s.StartTime, &s.EndTime,
		&s.BreakTime, &s.Metrics.TotalTimeHours, &s.Metrics.WorkingTimeHours,
		&s.Metrics.HourlyTarget, &s.Metrics.TactTime, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return s, err
		}
		return s, fmt.Errorf("failed to scan session: %w", err)
	}
	// The metrics snapshot carries the input copies it was computed from.
	s.Metrics.PlanTarget = s.PlanTarget
	s.Metrics.AchievementFactor = s.AchievementFactor
	s.Metrics.RequiredManpower = s.RequiredManpower
	s.Metrics.ActualManpower = s.ActualManpower
	return s, nil
}

func (r *Repository) sessionSlots(sessionID int64) ([]engine.TimeSlot, error) {
	rows, err := r.db.Session.Query(`
		SELECT id, time_slot, working_time, plan, plan_cumulative,
		       actual, variance, productivity_rate
		FROM time_slots
		WHERE session_id = ?
		ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var slots []engine.TimeSlot
	for rows.Next() {
		var slot engine.TimeSlot
		var rowID int64
		if err := rows.Scan(
			&rowID, &slot.TimeSlot, &slot.WorkingTime, &slot.Plan,
			&slot.PlanCumulative, &slot.Actual, &slot.Variance,
			&slot.ProductivityRate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slot.ID = strconv.FormatInt(rowID, 10)
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// DeleteSession removes a session and, via the cascade, all of its
// slots. Deleting an unknown identity is not an error; it reports
// false and removes nothing.
func (r *Repository) DeleteSession(id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireReady(); err != nil {
		return false, err
	}

	res, err := r.db.Session.Exec("DELETE FROM production_sessions WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session %d: %w", id, err)
	}
	n, _ := res.RowsAffected()

	if err := r.db.Snapshot(); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Export returns the whole database as a portable byte image.
func (r *Repository) Export() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireReady(); err != nil {
		return nil, err
	}
	return r.db.Serialize()
}

// Import replaces the database with the given image.
func (r *Repository) Import(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireReady(); err != nil {
		return err
	}
	if err := r.db.Restore(data); err != nil {
		r.state = StateFailed
		return err
	}
	return nil
}

// Clear drops all stored sessions and slots and re-creates the schema.
func (r *Repository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireReady(); err != nil {
		return err
	}

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS time_slots",
		"DROP TABLE IF EXISTS production_sessions",
	} {
		if _, err := r.db.Session.Exec(stmt); err != nil {
			r.state = StateFailed
			return fmt.Errorf("failed to clear database: %w", err)
		}
	}
	if err := r.createSchema(); err != nil {
		r.state = StateFailed
		return err
	}
	return r.db.Snapshot()
}

// Counts reports the stored row counts for the health endpoint.
func (r *Repository) Counts() (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireReady(); err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, table := range []string{"production_sessions", "time_slots"} {
		var n int64
		if err := r.db.Session.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			counts[table] = 0
			continue
		}
		counts[table] = n
	}
	return counts, nil
}
