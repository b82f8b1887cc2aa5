package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"itinerary-optimizer/internal/cache"
	"itinerary-optimizer/internal/database"
	"itinerary-optimizer/internal/enrich"
	"itinerary-optimizer/internal/geocoding"
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/optimizer"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 4 << 20

// Handler provides common handler utilities and dependencies
type Handler struct {
	DB        database.DataStore
	Geocoder  geocoding.Geocoder
	Optimizer *optimizer.Optimizer
	Enricher  *enrich.Enricher
	Cache     *cache.ResultCache // nil when redis is not configured
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

// decodeJSON decodes a bounded request body into v
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleStructuralError handles 422 errors for malformed itineraries
func (h *Handler) handleStructuralError(w http.ResponseWriter, err error) {
	var serr *optimizer.StructuralError
	if errors.As(err, &serr) {
		var details interface{}
		if serr.DayNumber > 0 {
			details = map[string]interface{}{"day_number": serr.DayNumber}
		}
		h.writeError(w, http.StatusUnprocessableEntity, "INVALID_ITINERARY", serr.Reason, details)
		return
	}
	h.writeError(w, http.StatusUnprocessableEntity, "INVALID_ITINERARY", err.Error(), nil)
}

// handleGeocodingError handles 422 errors for geocoding failures
func (h *Handler) handleGeocodingError(w http.ResponseWriter, err error) {
	h.writeError(w, http.StatusUnprocessableEntity, "GEOCODING_FAILED", err.Error(), nil)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	log.Printf("[ERROR] Internal error: %v", err)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// checkNotFound checks if an error is a not found error
func (h *Handler) checkNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

// checkStructure validates an itinerary body and writes the error response.
// It reports whether the handler may continue.
func (h *Handler) checkStructure(w http.ResponseWriter, route string, it *models.Itinerary) bool {
	if err := optimizer.CheckStructure(it); err != nil {
		log.Printf("[HTTP] %s: invalid itinerary err=%v", route, err)
		h.handleStructuralError(w, err)
		return false
	}
	return true
}

// queryInt parses an integer query parameter, falling back to def when absent or invalid
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
