package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"filltrip/internal/auth"
	"filltrip/internal/models"
)

type contextKey int

const (
	userKey contextKey = iota
	tokenKey
)

func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.Contains(ct, "application/x-www-form-urlencoded") || strings.Contains(ct, "multipart/form-data")
}

// UserFrom returns the authenticated user stored by RequireUser
func UserFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

func (h *Handler) sessionToken(r *http.Request) string {
	c, err := r.Cookie(h.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, s *models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirect sends htmx clients an HX-Redirect and browsers a 303
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, to string) {
	if h.isHTMX(r) {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// RequireUser rejects requests without a valid session. API paths get a 401,
// pages are redirected to /login.
func (h *Handler) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := h.sessionToken(r)
		user, err := h.Auth.CurrentUser(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthenticated) {
				h.Log.Error("session lookup failed", zap.Error(err))
			}
			if token != "" {
				h.clearSessionCookie(w)
			}
			if strings.HasPrefix(r.URL.Path, "/api/") {
				h.handleUnauthorized(w)
				return
			}
			h.redirect(w, r, "/login")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, tokenKey, token)
		next(w, r.WithContext(ctx))
	}
}

// HandleSignup handles POST /api/v1/auth/signup
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest

	if isFormRequest(r) {
		if err := r.ParseForm(); err != nil {
			h.handleValidationError(w, "Invalid form data")
			return
		}
		req.FullName = r.FormValue("fullName")
		req.Username = r.FormValue("username")
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
		req.ConfirmPassword = r.FormValue("confirmPassword")
		req.ConfirmRequired = true
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}

	user, err := h.Auth.Signup(r.Context(), req)
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		h.Log.Debug("signup rejected", zap.Any("fields", verr.Fields))
		h.writeFormError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", firstFieldMessage(verr), verr.Fields)
		return
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, auth.ErrUsernameTaken):
		h.writeFormError(w, r, http.StatusConflict, "CONFLICT", err.Error(), nil)
		return
	case err != nil:
		h.renderError(w, r, err)
		return
	}

	if h.isHTMX(r) {
		h.redirect(w, r, "/login?registered=1")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

// firstFieldMessage picks a stable message to show above the form
func firstFieldMessage(verr *auth.ValidationError) string {
	for _, field := range []string{"fullName", "username", "email", "password", "confirmPassword"} {
		if msg, ok := verr.Fields[field]; ok {
			return msg
		}
	}
	return "Please check the form and try again."
}

// HandleLogin handles POST /api/v1/auth/login
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if isFormRequest(r) {
		if err := r.ParseForm(); err != nil {
			h.handleValidationError(w, "Invalid form data")
			return
		}
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		h.writeFormError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password are required", nil)
		return
	}

	session, user, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.writeFormError(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error(), nil)
		return
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.setSessionCookie(w, session)

	if h.isHTMX(r) {
		h.redirect(w, r, "/map")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

// HandleLogout handles POST /api/v1/auth/logout
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := h.sessionToken(r)
	if token != "" {
		h.Planners.Delete(token)
		if err := h.Auth.Logout(r.Context(), token); err != nil {
			h.Log.Warn("logout failed", zap.Error(err))
		}
	}
	h.clearSessionCookie(w)

	if h.isHTMX(r) {
		h.redirect(w, r, "/login")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleMe handles GET /api/v1/auth/me
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    UserFrom(r.Context()),
	})
}
