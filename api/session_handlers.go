package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"prodmon/database"
	"prodmon/templates"
	"prodmon/workspace"
)

// SaveSession persists the current workspace state as a new session or
// as an update of the one it was loaded from. When the store is not
// ready the draft path keeps the user's typing and the response says
// so instead of failing hard.
func (h *Handler) SaveSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ws.SessionForSave()
	if !ok {
		respondError(w, http.StatusBadRequest, "line, date, metrics and at least one slot are required before saving")
		return
	}

	id, err := h.repo.SaveSession(&session)
	if err != nil {
		draftSaved := false
		if saved, derr := h.ws.SaveDraft(h.kv); derr == nil {
			draftSaved = saved
		}
		status := http.StatusInternalServerError
		if errors.Is(err, database.ErrNotReady) {
			status = http.StatusServiceUnavailable
		}
		respondJSON(w, status, map[string]interface{}{
			"error":       fmt.Sprintf("failed to save session: %v", err),
			"draft_saved": draftSaved,
		})
		return
	}

	updated := session.ID != 0
	h.ws.SetCurrentSessionID(id)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"id":      id,
		"updated": updated,
	})
}

// ListSessions lists saved sessions, most recent first, with optional
// line/date/substring filters applied on top of the store query.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.Sessions.ListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	sessions, err := h.repo.GetSessions(limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	lineFilter := r.URL.Query().Get("line")
	dateFilter := r.URL.Query().Get("date")
	search := strings.ToLower(r.URL.Query().Get("q"))

	filtered := make([]database.ProductionSession, 0, len(sessions))
	for _, s := range sessions {
		if lineFilter != "" && s.Line != lineFilter {
			continue
		}
		if dateFilter != "" && s.Date != dateFilter {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(s.Line), search) {
			continue
		}
		filtered = append(filtered, s)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": filtered,
		"count":    len(filtered),
	})
}

// LoadSession installs a stored session into the workspace. The stored
// figures are authoritative; nothing is recomputed.
func (h *Handler) LoadSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := h.repo.GetSession(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.ws.LoadSession(session))
}

// DeleteSession removes a session and its slots
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	deleted, err := h.repo.DeleteSession(id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if h.ws.CurrentSessionID() == id {
		h.ws.SetCurrentSessionID(0)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"deleted": deleted,
	})
}

// QuickFill prefills the form from yesterday's session (or the most
// recent one) and rebuilds its slot structure with zeroed actuals.
func (h *Handler) QuickFill(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repo.GetSessions(h.cfg.Sessions.QuickFillScan)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	src := h.ws.QuickFillFrom(sessions, time.Now())
	if src == nil {
		respondError(w, http.StatusNotFound, "no previous sessions found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"filled_from": map[string]interface{}{"id": src.ID, "line": src.Line, "date": src.Date},
		"state":       h.ws.Snapshot(),
	})
}

// ListTemplates returns all saved form templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.tmpl.List()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Sprintf("failed to list templates: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"templates": list,
		"count":     len(list),
	})
}

// SaveTemplate snapshots the current form fields under a name
func (h *Handler) SaveTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	t := templates.Template{
		Name:       req.Name,
		ShiftInput: h.ws.Snapshot().Input,
	}
	if err := h.tmpl.Save(t); err != nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Sprintf("failed to save template: %v", err))
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "success", "name": req.Name})
}

// ApplyTemplate prefills the form from a saved template
func (h *Handler) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	t, found, err := h.tmpl.Get(name)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Sprintf("failed to load template: %v", err))
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "template not found")
		return
	}
	respondJSON(w, http.StatusOK, h.ws.ApplyTemplate(t.ShiftInput))
}

// DeleteTemplate removes a saved template
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.tmpl.Delete(mux.Vars(r)["name"]); err != nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Sprintf("failed to delete template: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// GetDraft returns today's auto-saved draft, if any
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	draft, found, err := workspace.LoadDraft(h.kv, time.Now())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Sprintf("failed to load draft: %v", err))
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "no draft from today")
		return
	}
	respondJSON(w, http.StatusOK, draft)
}

// SaveDraft persists the form fields immediately
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	saved, err := h.ws.SaveDraft(h.kv)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Sprintf("failed to save draft: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "saved": saved})
}

// RestoreDraft installs today's draft into the workspace
func (h *Handler) RestoreDraft(w http.ResponseWriter, r *http.Request) {
	draft, found, err := workspace.LoadDraft(h.kv, time.Now())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Sprintf("failed to load draft: %v", err))
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "no draft from today")
		return
	}
	respondJSON(w, http.StatusOK, h.ws.RestoreDraft(draft))
}

// ExportDatabase streams the whole session database as a binary image
func (h *Handler) ExportDatabase(w http.ResponseWriter, r *http.Request) {
	data, err := h.repo.Export()
	if err != nil {
		respondStoreError(w, err)
		return
	}

	filename := fmt.Sprintf("production_sessions_%s.db", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// ImportDatabase replaces the session database with an uploaded image
func (h *Handler) ImportDatabase(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil || len(data) == 0 {
		respondError(w, http.StatusBadRequest, "database image is required")
		return
	}

	if err := h.repo.Import(data); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// ClearDatabase drops all stored sessions
func (h *Handler) ClearDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Clear(); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// respondStoreError maps session store failures onto 503 when the
// store is unavailable and 500 otherwise.
func respondStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, database.ErrNotReady) {
		status = http.StatusServiceUnavailable
	}
	respondError(w, status, err.Error())
}
