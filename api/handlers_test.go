package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodmon/config"
	"prodmon/database"
	"prodmon/jobs"
	"prodmon/kvstore"
	"prodmon/templates"
	"prodmon/workspace"
)

func testConfig() *config.Config {
	return &config.Config{
		Sessions: config.SessionsConfig{ListLimit: 50, QuickFillScan: 30},
		FormDefaults: config.FormDefaults{
			PlanTarget:        103,
			AchievementFactor: 1.35,
			RequiredManpower:  16.33,
			ActualManpower:    16.33,
			StartTime:         "06:00",
			EndTime:           "18:00",
			BreakTime:         1.42,
		},
	}
}

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	kv, err := kvstore.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	db, err := database.Initialize(kv)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	repo := database.NewRepository(db)
	require.NoError(t, repo.Init())

	cfg := testConfig()
	ws := workspace.New(cfg.FormDefaults)
	tmpl := templates.NewStore(kv)

	pool := jobs.NewWorkerPool(2)
	t.Cleanup(pool.Stop)

	return SetupRouter(NewHandler(ws, repo, tmpl, kv, cfg, pool))
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// fillWorkspace drives the form to a saveable state through the API.
func fillWorkspace(t *testing.T, router *mux.Router) []string {
	t.Helper()

	rec := doJSON(t, router, "PUT", "/api/workspace/fields", map[string]interface{}{
		"fields": map[string]interface{}{
			"line":               "SMT-1",
			"date":               "2026-08-31",
			"plan_target":        103,
			"achievement_factor": 1.35,
			"required_manpower":  16.33,
			"actual_manpower":    16.33,
			"start_time":         "06:00",
			"end_time":           "18:00",
			"break_time":         1.42,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ids []string
	for _, actual := range []float64{10, 9} {
		rec = doJSON(t, router, "POST", "/api/workspace/slots", nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		slot := decode(t, rec)["slot"].(map[string]interface{})
		id := slot["id"].(string)
		ids = append(ids, id)

		rec = doJSON(t, router, "PUT", "/api/workspace/slots/"+id,
			map[string]interface{}{"field": "working_time", "value": 1})
		require.Equal(t, http.StatusOK, rec.Code)
		rec = doJSON(t, router, "PUT", "/api/workspace/slots/"+id,
			map[string]interface{}{"field": "actual", "value": actual})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	return ids
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ready", body["session_store"])
}

func TestWorkspaceEditingFlow(t *testing.T) {
	router := newTestRouter(t)
	fillWorkspace(t, router)

	rec := doJSON(t, router, "GET", "/api/workspace", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)

	metrics := body["metrics"].(map[string]interface{})
	assert.InDelta(t, 10.58, metrics["working_time_hours"].(float64), 1e-9)

	slots := body["time_slots"].([]interface{})
	require.Len(t, slots, 2)
	second := slots[1].(map[string]interface{})
	assert.InDelta(t, -10.4707, second["variance"].(float64), 1e-3)

	summary := body["summary"].(map[string]interface{})
	assert.InDelta(t, 19.0, summary["total_actual"].(float64), 1e-9)

	// Remove the last row, then try again on the now shorter table.
	rec = doJSON(t, router, "DELETE", "/api/workspace/slots/last", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, "DELETE", "/api/workspace/slots/last", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, "DELETE", "/api/workspace/slots/last", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateUnknownField(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "PUT", "/api/workspace/fields",
		map[string]interface{}{"field": "bogus", "value": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionPersistenceFlow(t *testing.T) {
	router := newTestRouter(t)
	fillWorkspace(t, router)

	// First save inserts.
	rec := doJSON(t, router, "POST", "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	id := int64(body["id"].(float64))
	assert.False(t, body["updated"].(bool))
	assert.Greater(t, id, int64(0))

	// Second save of the same workspace updates.
	rec = doJSON(t, router, "POST", "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.True(t, body["updated"].(bool))
	assert.Equal(t, id, int64(body["id"].(float64)))

	rec = doJSON(t, router, "GET", "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, 1.0, body["count"].(float64))

	// Filters.
	rec = doJSON(t, router, "GET", "/api/sessions?line=SMT-1", nil)
	assert.Equal(t, 1.0, decode(t, rec)["count"].(float64))
	rec = doJSON(t, router, "GET", "/api/sessions?line=OTHER", nil)
	assert.Equal(t, 0.0, decode(t, rec)["count"].(float64))
	rec = doJSON(t, router, "GET", "/api/sessions?q=smt", nil)
	assert.Equal(t, 1.0, decode(t, rec)["count"].(float64))
	rec = doJSON(t, router, "GET", "/api/sessions?date=2026-08-31", nil)
	assert.Equal(t, 1.0, decode(t, rec)["count"].(float64))

	// Reset, then load the stored session back.
	rec = doJSON(t, router, "POST", "/api/workspace/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", fmt.Sprintf("/api/sessions/%d/load", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, float64(id), body["session_id"].(float64))
	slots := body["time_slots"].([]interface{})
	require.Len(t, slots, 2)

	// Delete cascades and detaches the workspace.
	rec = doJSON(t, router, "DELETE", fmt.Sprintf("/api/sessions/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec)["deleted"].(bool))

	rec = doJSON(t, router, "DELETE", fmt.Sprintf("/api/sessions/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode(t, rec)["deleted"].(bool))

	rec = doJSON(t, router, "POST", fmt.Sprintf("/api/sessions/%d/load", id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveSessionRequiresCompleteForm(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuickFillEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/workspace/quickfill", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no sessions yet")

	fillWorkspace(t, router)
	rec = doJSON(t, router, "POST", "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", "/api/workspace/quickfill", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	state := body["state"].(map[string]interface{})
	slots := state["time_slots"].([]interface{})
	require.Len(t, slots, 2)
	for _, raw := range slots {
		slot := raw.(map[string]interface{})
		assert.Equal(t, 0.0, slot["actual"].(float64))
	}
}

func TestDraftEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, "GET", "/api/draft", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	fillWorkspace(t, router)
	rec = doJSON(t, router, "POST", "/api/draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec)["saved"].(bool))

	rec = doJSON(t, router, "GET", "/api/draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	draft := decode(t, rec)
	data := draft["data"].(map[string]interface{})
	assert.Equal(t, "SMT-1", data["line"])

	rec = doJSON(t, router, "POST", "/api/workspace/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", "/api/draft/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode(t, rec)
	input := state["input"].(map[string]interface{})
	assert.Equal(t, "SMT-1", input["line"])
}

func TestTemplateEndpoints(t *testing.T) {
	router := newTestRouter(t)
	fillWorkspace(t, router)

	rec := doJSON(t, router, "POST", "/api/templates", map[string]string{"name": "Day Shift"})
	require.Equal(t, http.StatusCreated, rec.Code)

	applyPath := "/api/templates/" + url.PathEscape("Day Shift") + "/apply"
	deletePath := "/api/templates/" + url.PathEscape("Day Shift")

	rec = doJSON(t, router, "GET", "/api/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["count"].(float64))

	// Reset, apply: the template prefills everything but the date.
	rec = doJSON(t, router, "POST", "/api/workspace/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", applyPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode(t, rec)
	input := state["input"].(map[string]interface{})
	assert.Equal(t, "SMT-1", input["line"])
	assert.NotEqual(t, "2026-08-31", input["date"], "apply keeps the current date")

	rec = doJSON(t, router, "DELETE", deletePath, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "POST", applyPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, "POST", "/api/templates", map[string]string{"name": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDatabaseAdminEndpoints(t *testing.T) {
	router := newTestRouter(t)
	fillWorkspace(t, router)
	rec := doJSON(t, router, "POST", "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "GET", "/api/db/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	image := rec.Body.Bytes()
	require.NotEmpty(t, image)

	rec = doJSON(t, router, "POST", "/api/db/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, "GET", "/api/sessions", nil)
	assert.Equal(t, 0.0, decode(t, rec)["count"].(float64))

	req := httptest.NewRequest("POST", "/api/db/import", bytes.NewReader(image))
	importRec := httptest.NewRecorder()
	router.ServeHTTP(importRec, req)
	require.Equal(t, http.StatusOK, importRec.Code)

	rec = doJSON(t, router, "GET", "/api/sessions", nil)
	assert.Equal(t, 1.0, decode(t, rec)["count"].(float64))
}

func TestSessionChartsExport(t *testing.T) {
	router := newTestRouter(t)
	fillWorkspace(t, router)
	rec := doJSON(t, router, "POST", "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id := int64(decode(t, rec)["id"].(float64))

	rec = doJSON(t, router, "GET", fmt.Sprintf("/api/sessions/%d/charts", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())

	rec = doJSON(t, router, "GET", "/api/charts/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
}
