// Package workspace owns the single in-memory editing session: shift
// inputs, derived metrics, the hourly table and its summary. There is
// one writer; every mutation recomputes the derived state synchronously
// before the mutator returns.
package workspace

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"prodmon/config"
	"prodmon/database"
	"prodmon/engine"
)

// Workspace is the explicitly-owned editing session handle threaded to
// the API layer and the persistence triggers.
type Workspace struct {
	mu               sync.Mutex
	input            engine.ShiftInput
	metrics          *engine.Metrics
	slots            []engine.TimeSlot
	summary          engine.Summary
	currentSessionID int64
	defaults         config.FormDefaults
}

// Snapshot is a consistent copy of the workspace state.
type Snapshot struct {
	Input     engine.ShiftInput `json:"input"`
	Metrics   *engine.Metrics   `json:"metrics"`
	TimeSlots []engine.TimeSlot `json:"time_slots"`
	Summary   engine.Summary    `json:"summary"`
	SessionID int64             `json:"session_id,omitempty"`
}

// New creates a blank workspace dated today.
func New(defaults config.FormDefaults) *Workspace {
	return &Workspace{
		input:    engine.ShiftInput{Date: today()},
		defaults: defaults,
	}
}

func today() string {
	return time.Now().Format("2006-01-02")
}

// Snapshot returns a consistent copy of the current state.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workspace) snapshotLocked() Snapshot {
	snap := Snapshot{
		Input:     w.input,
		TimeSlots: append([]engine.TimeSlot(nil), w.slots...),
		Summary:   w.summary,
		SessionID: w.currentSessionID,
	}
	if w.metrics != nil {
		m := *w.metrics
		snap.Metrics = &m
	}
	return snap
}

// metric-feeding form fields, keyed by their wire names.
var metricFields = map[string]bool{
	"plan_target":        true,
	"achievement_factor": true,
	"required_manpower":  true,
	"actual_manpower":    true,
	"start_time":         true,
	"end_time":           true,
	"break_time":         true,
}

// SetField sets one form field by wire name. String values for numeric
// fields are parsed with the zero-on-failure default. Fields that feed
// the metrics trigger a recompute; incomplete clock times leave the
// prior metrics untouched. Unknown field names report false.
func (w *Workspace) SetField(field string, value interface{}) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.setFieldLocked(field, value) {
		return false
	}
	if metricFields[field] {
		w.recomputeLocked()
	}
	return true
}

// SetFields applies a bulk field update, then recomputes once.
func (w *Workspace) SetFields(fields map[string]interface{}) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	any := false
	for field, value := range fields {
		if w.setFieldLocked(field, value) {
			any = true
		}
	}
	if any {
		w.recomputeLocked()
	}
	return any
}

func (w *Workspace) setFieldLocked(field string, value interface{}) bool {
	switch field {
	case "line":
		w.input.Line = asString(value)
	case "date":
		w.input.Date = asString(value)
	case "start_time":
		w.input.StartTime = asString(value)
	case "end_time":
		w.input.EndTime = asString(value)
	case "plan_target":
		w.input.PlanTarget = asNumber(value)
	case "achievement_factor":
		w.input.AchievementFactor = asNumber(value)
	case "required_manpower":
		w.input.RequiredManpower = asNumber(value)
	case "actual_manpower":
		w.input.ActualManpower = asNumber(value)
	case "break_time":
		w.input.BreakTime = asNumber(value)
	default:
		return false
	}
	return true
}

// recomputeLocked runs the full derivation pass: metrics first (kept
// as-is when the clock times are incomplete), then every slot and the
// summary.
func (w *Workspace) recomputeLocked() {
	if m, ok := engine.ComputeMetrics(w.input); ok {
		w.metrics = &m
	}
	if w.metrics == nil {
		return
	}
	w.slots, w.summary = engine.RecomputeSlots(*w.metrics, w.slots)
}

// Recalculate forces a full recompute of metrics, slots and summary.
func (w *Workspace) Recalculate() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recomputeLocked()
	return w.snapshotLocked()
}

// AddSlot appends a fully zeroed slot with a fresh identifier to the
// end of the sequence and recomputes.
func (w *Workspace) AddSlot() engine.TimeSlot {
	w.mu.Lock()
	defer w.mu.Unlock()

	slot := engine.TimeSlot{ID: uuid.NewString()}
	w.slots = append(w.slots, slot)
	w.recomputeLocked()
	return w.slots[len(w.slots)-1]
}

// RemoveLastSlot removes the final slot. Only the last slot can be
// removed; an empty table is a no-op reporting false.
func (w *Workspace) RemoveLastSlot() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.slots) == 0 {
		return false
	}
	w.slots = w.slots[:len(w.slots)-1]
	w.recomputeLocked()
	return true
}

// UpdateSlot edits one user-entered slot field (time_slot,
// working_time or actual) and recomputes. An unknown slot id or field
// reports false without changing anything.
func (w *Workspace) UpdateSlot(id, field string, value interface{}) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.slots {
		if w.slots[i].ID != id {
			continue
		}
		switch field {
		case "time_slot":
			w.slots[i].TimeSlot = asString(value)
		case "working_time":
			w.slots[i].WorkingTime = asNumber(value)
		case "actual":
			w.slots[i].Actual = asNumber(value)
		default:
			return false
		}
		w.recomputeLocked()
		return true
	}
	return false
}

// Reset restores the configured form defaults, clears the table and
// detaches from any loaded session.
func (w *Workspace) Reset() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	d := w.defaults
	w.input = engine.ShiftInput{
		Date:              today(),
		PlanTarget:        d.PlanTarget,
		AchievementFactor: d.AchievementFactor,
		RequiredManpower:  d.RequiredManpower,
		ActualManpower:    d.ActualManpower,
		StartTime:         d.StartTime,
		EndTime:           d.EndTime,
		BreakTime:         d.BreakTime,
	}
	w.metrics = nil
	w.slots = nil
	w.summary = engine.Summary{}
	w.currentSessionID = 0
	return w.snapshotLocked()
}

// SetDefaults swaps the defaults applied on the next Reset.
func (w *Workspace) SetDefaults(d config.FormDefaults) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.defaults = d
}

// LoadSession installs a stored session verbatim. Stored figures are
// authoritative: nothing is recomputed, only the summary is rebuilt
// from the persisted slot figures.
func (w *Workspace) LoadSession(s *database.ProductionSession) Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.input = s.ShiftInput
	m := s.Metrics
	w.metrics = &m
	w.slots = append([]engine.TimeSlot(nil), s.TimeSlots...)
	w.summary = engine.SummaryOf(w.slots)
	w.currentSessionID = s.ID
	return w.snapshotLocked()
}

// QuickFillFrom prefills the form from yesterday's session, or from
// the most recent one when yesterday has none. The date stays today
// and the slot structure is copied with zeroed actuals, ready for a
// new day's data. Returns the session used, or nil when none exist.
func (w *Workspace) QuickFillFrom(sessions []database.ProductionSession, now time.Time) *database.ProductionSession {
	if len(sessions) == 0 {
		return nil
	}

	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")
	src := &sessions[0]
	for i := range sessions {
		if sessions[i].Date == yesterday {
			src = &sessions[i]
			break
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.input = src.ShiftInput
	w.input.Date = now.Format("2006-01-02")
	w.currentSessionID = 0

	w.slots = make([]engine.TimeSlot, len(src.TimeSlots))
	for i, slot := range src.TimeSlots {
		slot.ID = uuid.NewString()
		slot.Actual = 0
		slot.Variance = 0
		slot.ProductivityRate = 0
		w.slots[i] = slot
	}

	w.metrics = nil
	w.recomputeLocked()
	return src
}

// ApplyTemplate prefills the form fields from a named template.
// Templates carry no date, so the current date stays.
func (w *Workspace) ApplyTemplate(in engine.ShiftInput) Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.input.Date
	w.input = in
	w.input.Date = date
	w.recomputeLocked()
	return w.snapshotLocked()
}

// SessionForSave shapes the current state into a persistable session.
// Reports false when the state is not saveable yet: a line, a date,
// computed metrics and at least one slot are required.
func (w *Workspace) SessionForSave() (database.ProductionSession, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.input.Line == "" || w.input.Date == "" || w.metrics == nil || len(w.slots) == 0 {
		return database.ProductionSession{}, false
	}
	return database.ProductionSession{
		ID:         w.currentSessionID,
		ShiftInput: w.input,
		Metrics:    *w.metrics,
		TimeSlots:  append([]engine.TimeSlot(nil), w.slots...),
	}, true
}

// SetCurrentSessionID attaches the workspace to a stored identity
// after a successful first save.
func (w *Workspace) SetCurrentSessionID(id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentSessionID = id
}

// CurrentSessionID reports the attached session identity, zero when
// the workspace is unsaved.
func (w *Workspace) CurrentSessionID() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentSessionID
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// asNumber accepts the JSON shapes a form value arrives in. Malformed
// strings become zero, the documented default.
func asNumber(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		return engine.ParseNumber(n)
	default:
		return 0
	}
}
