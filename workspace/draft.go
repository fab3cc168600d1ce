package workspace

import (
	"encoding/json"
	"fmt"
	"time"

	"prodmon/engine"
	"prodmon/kvstore"
)

// DraftKey is the key-value slot holding the auto-saved form draft.
const DraftKey = "production_draft"

// Draft is a timestamped snapshot of the form fields. Only the shift
// inputs are drafted; the hourly table is not.
type Draft struct {
	Timestamp string            `json:"timestamp"`
	Data      engine.ShiftInput `json:"data"`
}

// SaveDraft persists the current form fields when there is anything
// worth keeping. Reports false for an empty form.
func (w *Workspace) SaveDraft(kv *kvstore.Store) (bool, error) {
	if kv == nil {
		return false, fmt.Errorf("no key-value store available")
	}

	w.mu.Lock()
	input := w.input
	empty := input.Line == "" && input.PlanTarget <= 0 && len(w.slots) == 0
	w.mu.Unlock()

	if empty {
		return false, nil
	}

	draft := Draft{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      input,
	}
	data, err := json.Marshal(draft)
	if err != nil {
		return false, fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := kv.Set(DraftKey, data); err != nil {
		return false, fmt.Errorf("failed to save draft: %w", err)
	}
	return true, nil
}

// LoadDraft fetches the auto-saved draft, but only when it was written
// today; a stale draft is reported as absent.
func LoadDraft(kv *kvstore.Store, now time.Time) (*Draft, bool, error) {
	if kv == nil {
		return nil, false, fmt.Errorf("no key-value store available")
	}

	data, found, err := kv.Get(DraftKey)
	if err != nil || !found {
		return nil, false, err
	}

	var draft Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, false, fmt.Errorf("failed to parse draft: %w", err)
	}

	saved, err := time.Parse(time.RFC3339, draft.Timestamp)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse draft timestamp: %w", err)
	}
	if saved.Local().Format("2006-01-02") != now.Format("2006-01-02") {
		return nil, false, nil
	}
	return &draft, true, nil
}

// RestoreDraft installs the drafted form fields and recomputes.
func (w *Workspace) RestoreDraft(d *Draft) Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.input = d.Data
	w.recomputeLocked()
	return w.snapshotLocked()
}
