package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/blockedby/spending-stats/internal/web"
)

// errorResponse is the JSON error body of the write endpoint.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON serialises v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_ = err // Client disconnected
	}
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

// renderPage renders a full page into a buffer first so a template failure
// can still become a clean 500.
func renderPage(w http.ResponseWriter, r *http.Request, templates *web.TemplateEngine, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := templates.Render(&buf, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("render page")
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		_ = err // Client disconnected
	}
}

func renderError(w http.ResponseWriter, r *http.Request, templates *web.TemplateEngine, status int, msg string) {
	renderPage(w, r, templates, status, "error", map[string]interface{}{"Message": msg})
}
