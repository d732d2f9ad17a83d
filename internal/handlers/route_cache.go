package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// HandleClearRouteCache handles DELETE /api/v1/route-cache
func (h *Handler) HandleClearRouteCache(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.RouteCache().Clear(r.Context()); err != nil {
		h.handleInternalError(w, err)
		return
	}

	user := UserFrom(r.Context())
	h.Log.Info("route cache cleared", zap.Int64("user_id", user.ID))
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
