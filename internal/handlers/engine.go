package handlers

import (
	"errors"
	"log"
	"net/http"

	"itinerary-optimizer/internal/balancing"
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/optimizer"
	"itinerary-optimizer/internal/sequencing"
)

// ItineraryResponse carries a rewritten itinerary and the stats of the step that produced it
type ItineraryResponse struct {
	Itinerary *models.Itinerary `json:"itinerary"`
	Stats     interface{}       `json:"stats"`
}

// ApplySuggestionsRequest represents the request for applying balance suggestions
type ApplySuggestionsRequest struct {
	Itinerary   *models.Itinerary      `json:"itinerary"`
	Suggestions []balancing.Suggestion `json:"suggestions"`
}

// SequenceRequest represents the request for ordering one day
type SequenceRequest struct {
	Activities []models.Activity  `json:"activities"`
	Options    sequencing.Options `json:"options"`
}

// decodeItinerary reads and structurally checks an itinerary body
func (h *Handler) decodeItinerary(w http.ResponseWriter, r *http.Request, route string) (*models.Itinerary, bool) {
	var it models.Itinerary
	if err := h.decodeJSON(w, r, &it); err != nil {
		log.Printf("[HTTP] %s: invalid_json err=%v", route, err)
		h.handleValidationError(w, "Invalid request body")
		return nil, false
	}
	if !h.checkStructure(w, route, &it) {
		return nil, false
	}
	return &it, true
}

// HandleOptimize handles POST /api/v1/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	const route = "POST /api/v1/optimize"
	it, ok := h.decodeItinerary(w, r, route)
	if !ok {
		return
	}

	log.Printf("[HTTP] %s: itinerary=%s days=%d activities=%d", route, it.ID, len(it.Days), it.ActivityCount())

	res, err := h.Optimizer.Optimize(r.Context(), it)
	if err != nil {
		var serr *optimizer.StructuralError
		if errors.As(err, &serr) {
			h.handleStructuralError(w, err)
			return
		}
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] %s: state=%s success=%v warnings=%d", route, res.State, res.Success, len(res.Warnings))
	h.writeJSON(w, http.StatusOK, res)
}

// HandleAssign handles POST /api/v1/assign
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	const route = "POST /api/v1/assign"
	it, ok := h.decodeItinerary(w, r, route)
	if !ok {
		return
	}

	out, stats := h.Optimizer.AssignActivitiesOptimally(it)
	log.Printf("[HTTP] %s: moved=%d", route, stats.Moved)
	h.writeJSON(w, http.StatusOK, ItineraryResponse{Itinerary: out, Stats: stats})
}

// HandleBalance handles POST /api/v1/balance
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	const route = "POST /api/v1/balance"
	it, ok := h.decodeItinerary(w, r, route)
	if !ok {
		return
	}

	report := h.Optimizer.Balance(it)
	log.Printf("[HTTP] %s: score=%.1f suggestions=%d", route, report.Score, len(report.Suggestions))
	h.writeJSON(w, http.StatusOK, report)
}

// HandleApplySuggestions handles POST /api/v1/balance/apply
func (h *Handler) HandleApplySuggestions(w http.ResponseWriter, r *http.Request) {
	const route = "POST /api/v1/balance/apply"
	var req ApplySuggestionsRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		log.Printf("[HTTP] %s: invalid_json err=%v", route, err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	if !h.checkStructure(w, route, req.Itinerary) {
		return
	}
	if len(req.Suggestions) == 0 {
		h.handleValidationError(w, "At least one suggestion is required")
		return
	}

	out, result := h.Optimizer.ApplySuggestions(req.Itinerary, req.Suggestions)
	log.Printf("[HTTP] %s: applied=%d skipped=%d failed=%d", route, result.Applied, result.Skipped, result.Failed)
	h.writeJSON(w, http.StatusOK, ItineraryResponse{Itinerary: out, Stats: result})
}

// HandleSequence handles POST /api/v1/sequence
func (h *Handler) HandleSequence(w http.ResponseWriter, r *http.Request) {
	const route = "POST /api/v1/sequence"
	var req SequenceRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		log.Printf("[HTTP] %s: invalid_json err=%v", route, err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	if req.Options.Mode != "" {
		if _, err := sequencing.ParseMode(string(req.Options.Mode)); err != nil {
			h.handleValidationError(w, err.Error())
			return
		}
	}
	for i := range req.Activities {
		req.Activities[i].Normalize()
	}

	res := h.Optimizer.Sequence(req.Activities, req.Options)
	log.Printf("[HTTP] %s: mode=%s activities=%d optimized=%v", route, res.Mode, len(res.Activities), res.WasOptimized)
	h.writeJSON(w, http.StatusOK, res)
}

// HandleValidate handles POST /api/v1/validate
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	const route = "POST /api/v1/validate"
	it, ok := h.decodeItinerary(w, r, route)
	if !ok {
		return
	}

	it.Normalize()
	report := h.Optimizer.ValidateDistances(it)
	log.Printf("[HTTP] %s: valid=%v errors=%d", route, report.Valid, report.ErrorCount())
	h.writeJSON(w, http.StatusOK, report)
}

// HandleCorrectMixedDays handles POST /api/v1/mixed-days/correct
func (h *Handler) HandleCorrectMixedDays(w http.ResponseWriter, r *http.Request) {
	const route = "POST /api/v1/mixed-days/correct"
	it, ok := h.decodeItinerary(w, r, route)
	if !ok {
		return
	}

	out, stats := h.Optimizer.CorrectMixedDays(it)
	log.Printf("[HTTP] %s: mixed=%d relocated=%d", route, stats.MixedDays, stats.Relocated)
	h.writeJSON(w, http.StatusOK, ItineraryResponse{Itinerary: out, Stats: stats})
}

// HandleAnalyzeContext handles POST /api/v1/context
func (h *Handler) HandleAnalyzeContext(w http.ResponseWriter, r *http.Request) {
	const route = "POST /api/v1/context"
	it, ok := h.decodeItinerary(w, r, route)
	if !ok {
		return
	}

	it.Normalize()
	tc := h.Optimizer.AnalyzeContext(it)
	log.Printf("[HTTP] %s: segments=%d transitions=%d", route, len(tc.Segments), len(tc.Transitions))
	h.writeJSON(w, http.StatusOK, tc)
}
