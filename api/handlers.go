package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"prodmon/config"
	"prodmon/database"
	"prodmon/jobs"
	"prodmon/kvstore"
	"prodmon/templates"
	"prodmon/workspace"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	ws   *workspace.Workspace
	repo *database.Repository
	tmpl *templates.Store
	kv   *kvstore.Store
	cfg  *config.Config
	pool *jobs.WorkerPool
}

// NewHandler creates a new handler instance
func NewHandler(ws *workspace.Workspace, repo *database.Repository, tmpl *templates.Store, kv *kvstore.Store, cfg *config.Config, pool *jobs.WorkerPool) *Handler {
	return &Handler{
		ws:   ws,
		repo: repo,
		tmpl: tmpl,
		kv:   kv,
		cfg:  cfg,
		pool: pool,
	}
}

// HealthCheck returns API health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	kvStatus := "ok"
	if h.kv == nil {
		kvStatus = "unavailable"
		status = "degraded"
	} else if err := h.kv.Ping(); err != nil {
		kvStatus = "unreachable"
		status = "degraded"
	}

	storeState := h.repo.State().String()
	if storeState != "ready" {
		status = "degraded"
	}

	stats, err := h.repo.Counts()
	if err != nil {
		stats = map[string]int64{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        status,
		"kv_store":      kvStatus,
		"session_store": storeState,
		"stats":         stats,
	})
}

// GetWorkspace returns the current editing state
func (h *Handler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ws.Snapshot())
}

// fieldUpdate is a single {field, value} form edit
type fieldUpdate struct {
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

// UpdateFields applies one or many form field edits. The body is
// either {"field": ..., "value": ...} or {"fields": {name: value}}.
func (h *Handler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	var req struct {
		fieldUpdate
		Fields map[string]interface{} `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case len(req.Fields) > 0:
		if !h.ws.SetFields(req.Fields) {
			respondError(w, http.StatusBadRequest, "no known fields in update")
			return
		}
	case req.Field != "":
		if !h.ws.SetField(req.Field, req.Value) {
			respondError(w, http.StatusBadRequest, "unknown field: "+req.Field)
			return
		}
	default:
		respondError(w, http.StatusBadRequest, "field or fields is required")
		return
	}

	respondJSON(w, http.StatusOK, h.ws.Snapshot())
}

// AddSlot appends a zeroed row to the hourly table
func (h *Handler) AddSlot(w http.ResponseWriter, r *http.Request) {
	slot := h.ws.AddSlot()
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"slot":  slot,
		"state": h.ws.Snapshot(),
	})
}

// RemoveLastSlot removes the final row of the hourly table
func (h *Handler) RemoveLastSlot(w http.ResponseWriter, r *http.Request) {
	if !h.ws.RemoveLastSlot() {
		respondError(w, http.StatusConflict, "no slots to remove")
		return
	}
	respondJSON(w, http.StatusOK, h.ws.Snapshot())
}

// UpdateSlot edits a user-entered field of one slot
func (h *Handler) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req fieldUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Field == "" {
		respondError(w, http.StatusBadRequest, "field is required")
		return
	}

	if !h.ws.UpdateSlot(id, req.Field, req.Value) {
		respondError(w, http.StatusNotFound, "unknown slot or field")
		return
	}
	respondJSON(w, http.StatusOK, h.ws.Snapshot())
}

// Recalculate forces a full metrics and table recompute
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ws.Recalculate())
}

// ResetWorkspace restores the configured form defaults
func (h *Handler) ResetWorkspace(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ws.Reset())
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// ConfigUpdateRequest represents the body for config updates
type ConfigUpdateRequest struct {
	FormDefaults *config.FormDefaults   `json:"form_defaults"`
	Autosave     *config.AutosaveConfig `json:"autosave"`
}

// GetConfig returns the current configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cfg)
}

// UpdateConfig updates configuration settings
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.FormDefaults != nil {
		if err := h.cfg.UpdateFormDefaults(*req.FormDefaults); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update form defaults")
			return
		}
		h.ws.SetDefaults(*req.FormDefaults)
	}

	if req.Autosave != nil {
		if err := h.cfg.UpdateAutosave(*req.Autosave); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update autosave settings")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
