package handlers

import (
	"net/http"
)

// PageData contains common data for all pages
type PageData struct {
	Title      string
	ActivePage string
	User       interface{}
	Flash      string
}

// HandleIndexPage handles GET /
func (h *Handler) HandleIndexPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if _, err := h.Auth.CurrentUser(r.Context(), h.sessionToken(r)); err == nil {
		http.Redirect(w, r, "/map", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleLoginPage handles GET /login
func (h *Handler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Auth.CurrentUser(r.Context(), h.sessionToken(r)); err == nil {
		http.Redirect(w, r, "/map", http.StatusSeeOther)
		return
	}

	data := PageData{Title: "Log in", ActivePage: "login"}
	if r.URL.Query().Get("registered") != "" {
		data.Flash = "Account created. You can log in now."
	}
	h.renderTemplate(w, "login.html", data)
}

// HandleSignupPage handles GET /signup
func (h *Handler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, "signup.html", PageData{Title: "Sign up", ActivePage: "signup"})
}

// HandleMapPage handles GET /map
func (h *Handler) HandleMapPage(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, "map.html", map[string]interface{}{
		"Title":       "Plan a trip",
		"ActivePage":  "map",
		"User":        UserFrom(r.Context()),
		"MinQueryLen": h.MinQueryLen,
	})
}
