package handler

import "net/http"

// HomeHandler serves the landing page and the health check.
type HomeHandler struct {
	pages    *Renderer
	sessions interface{ Len() int }
}

// NewHomeHandler creates a HomeHandler. sessions reports the number of live
// browser sessions for the health check.
func NewHomeHandler(pages *Renderer, sessions interface{ Len() int }) *HomeHandler {
	return &HomeHandler{pages: pages, sessions: sessions}
}

// HandleHome renders the landing page.
//
// HTTP: GET /
func (h *HomeHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, r, http.StatusOK, pageHome, view{Title: "Home"})
}

// HandleHealth reports liveness.
//
// HTTP: GET /healthz
func (h *HomeHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	})
}
