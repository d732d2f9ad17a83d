package handlers

import (
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"filltrip/internal/auth"
	"filltrip/internal/database"
	"filltrip/internal/geocoding"
)

// TemplateSet holds base templates and page templates separately
type TemplateSet struct {
	Base  *template.Template
	Pages map[string]string
	Funcs template.FuncMap
}

// Handler provides common handler utilities and dependencies
type Handler struct {
	DB          database.DataStore
	Auth        *auth.Service
	Geocoder    geocoding.Geocoder
	Planners    *PlannerRegistry
	Templates   *TemplateSet
	Log         *zap.Logger
	CookieName  string
	SearchLimit int
	MinQueryLen int
	// SecureCookies marks the session cookie Secure; off for the local desktop shell
	SecureCookies bool
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// isHTMX checks if the request is an htmx request
func (h *Handler) isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeFormError renders an inline alert for htmx forms, JSON otherwise
func (h *Handler) writeFormError(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	if h.isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="alert alert-error">%s</div>`, html.EscapeString(message))
		return
	}
	h.writeError(w, status, code, message, details)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleUnauthorized handles 401 errors
func (h *Handler) handleUnauthorized(w http.ResponseWriter) {
	h.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Please log in to continue.", nil)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	h.Log.Error("internal error", zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// renderTemplate renders an HTML template
func (h *Handler) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	// Always clone to avoid "cannot Clone after executed" error
	tmpl, err := h.Templates.Base.Clone()
	if err != nil {
		h.Log.Error("template clone failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if pageContent, ok := h.Templates.Pages[name]; ok {
		// The page defines "content"; layout.html pulls it in
		if _, err = tmpl.New(name).Parse(pageContent); err != nil {
			h.Log.Error("template parse failed", zap.String("template", name), zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
			h.Log.Error("template execute failed", zap.String("template", name), zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		h.Log.Error("template partial failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// renderError renders an error response (JSON for API, HTML for htmx)
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if h.isHTMX(r) {
		h.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		h.writeFormError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
		return
	}
	h.handleInternalError(w, err)
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "connected"

	if err := h.DB.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		dbStatus = "error"
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"version":  "1.0.0",
		"database": dbStatus,
		"planners": h.Planners.Len(),
	})
}
