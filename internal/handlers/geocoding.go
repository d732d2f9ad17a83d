package handlers

import (
	"net/http"
	"unicode/utf8"

	"go.uber.org/zap"

	"filltrip/internal/models"
)

// HandleAddressSearch handles GET /api/v1/address-search. It is a stateless
// lookup for clients that drive search themselves.
func (h *Handler) HandleAddressSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("address")

	if utf8.RuneCountInString(query) < h.MinQueryLen {
		if h.isHTMX(r) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			return
		}
		h.writeJSON(w, http.StatusOK, []models.PlaceCandidate{})
		return
	}

	results, err := h.Geocoder.Search(r.Context(), query, h.SearchLimit)
	if err != nil {
		h.Log.Warn("address search failed", zap.String("query", query), zap.Error(err))
		results = []models.PlaceCandidate{}
	}

	h.Log.Debug("address search", zap.String("query", query), zap.Int("results", len(results)))

	if h.isHTMX(r) {
		h.renderTemplate(w, "address_suggestions.html", results)
		return
	}

	h.writeJSON(w, http.StatusOK, results)
}
