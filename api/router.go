package api

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/api/health", h.HealthCheck).Methods("GET")

	// Workspace: the single in-memory editing session
	wsRouter := r.PathPrefix("/api/workspace").Subrouter()
	wsRouter.HandleFunc("", h.GetWorkspace).Methods("GET")
	wsRouter.HandleFunc("/fields", h.UpdateFields).Methods("PUT")
	wsRouter.HandleFunc("/slots", h.AddSlot).Methods("POST")
	wsRouter.HandleFunc("/slots/last", h.RemoveLastSlot).Methods("DELETE")
	wsRouter.HandleFunc("/slots/{id}", h.UpdateSlot).Methods("PUT")
	wsRouter.HandleFunc("/recalculate", h.Recalculate).Methods("POST")
	wsRouter.HandleFunc("/reset", h.ResetWorkspace).Methods("POST")
	wsRouter.HandleFunc("/quickfill", h.QuickFill).Methods("POST")

	// Sessions: durable CRUD
	r.HandleFunc("/api/sessions", h.SaveSession).Methods("POST")
	r.HandleFunc("/api/sessions", h.ListSessions).Methods("GET")
	r.HandleFunc("/api/sessions/{id}/load", h.LoadSession).Methods("POST")
	r.HandleFunc("/api/sessions/{id}/charts", h.ExportSessionCharts).Methods("GET")
	r.HandleFunc("/api/sessions/{id}", h.DeleteSession).Methods("DELETE")
	r.HandleFunc("/api/charts/export", h.ExportAllCharts).Methods("GET")

	// Templates
	r.HandleFunc("/api/templates", h.ListTemplates).Methods("GET")
	r.HandleFunc("/api/templates", h.SaveTemplate).Methods("POST")
	r.HandleFunc("/api/templates/{name}/apply", h.ApplyTemplate).Methods("POST")
	r.HandleFunc("/api/templates/{name}", h.DeleteTemplate).Methods("DELETE")

	// Draft
	r.HandleFunc("/api/draft", h.GetDraft).Methods("GET")
	r.HandleFunc("/api/draft", h.SaveDraft).Methods("POST")
	r.HandleFunc("/api/draft/restore", h.RestoreDraft).Methods("POST")

	// Database administration
	r.HandleFunc("/api/db/export", h.ExportDatabase).Methods("GET")
	r.HandleFunc("/api/db/import", h.ImportDatabase).Methods("POST")
	r.HandleFunc("/api/db/clear", h.ClearDatabase).Methods("POST")

	// Config Management
	r.HandleFunc("/api/config", h.GetConfig).Methods("GET")
	r.HandleFunc("/api/config", h.UpdateConfig).Methods("PUT")

	return r
}

// CORSMiddleware adds CORS headers
func CORSMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		)(next)
	}
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			// Log request
			println(
				time.Now().Format("2006-01-02 15:04:05"),
				r.Method,
				r.RequestURI,
				wrapped.statusCode,
				duration.String(),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
