package handlers

import (
	"log"
	"net/http"

	"itinerary-optimizer/internal/geocoding"
)

// HandlePlaceSearch handles GET /api/v1/places/search
func (h *Handler) HandlePlaceSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	log.Printf("[HTTP] GET /api/v1/places/search: query=%s", query)

	if len(query) < 3 {
		log.Printf("[HTTP] GET /api/v1/places/search: query too short, returning empty list")
		h.writeJSON(w, http.StatusOK, []geocoding.Place{})
		return
	}

	results, err := h.Geocoder.Search(r.Context(), query, 5)
	if err != nil {
		log.Printf("[ERROR] Failed to search places: query=%s err=%v", query, err)
		h.handleGeocodingError(w, err)
		return
	}

	log.Printf("[HTTP] GET /api/v1/places/search: query=%s results_count=%d", query, len(results))
	h.writeJSON(w, http.StatusOK, results)
}
