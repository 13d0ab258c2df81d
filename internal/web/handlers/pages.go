package handlers

import (
	"net/http"

	"github.com/blockedby/spending-stats/internal/web"
)

// PagesHandler handles HTML page requests
type PagesHandler struct {
	templates *web.TemplateEngine
}

// NewPagesHandler creates a new pages handler
func NewPagesHandler(templates *web.TemplateEngine) *PagesHandler {
	return &PagesHandler{templates: templates}
}

// Index renders the landing page
func (h *PagesHandler) Index(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, h.templates, http.StatusOK, "index", nil)
}
