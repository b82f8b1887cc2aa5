package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"itinerary-optimizer/internal/cache"
	"itinerary-optimizer/internal/enrich"
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/optimizer"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	defaultRunLimit  = 20
)

// ItineraryListResponse represents the response for listing itineraries
type ItineraryListResponse struct {
	Itineraries []models.ItinerarySummary `json:"itineraries"`
	Total       int                       `json:"total"`
}

// EnrichResponse represents the response of an enrichment pass
type EnrichResponse struct {
	Itinerary *models.Itinerary `json:"itinerary"`
	Stats     enrich.Stats      `json:"stats"`
}

// OptimizeRunResponse represents the response of optimizing a stored itinerary
type OptimizeRunResponse struct {
	RunID   string            `json:"run_id"`
	Cached  bool              `json:"cached"`
	Applied bool              `json:"applied"`
	Result  *optimizer.Result `json:"result"`
}

// RunListResponse represents the response for listing optimization runs
type RunListResponse struct {
	Runs []models.OptimizationRun `json:"runs"`
}

// HandleListItineraries handles GET /api/v1/itineraries
func (h *Handler) HandleListItineraries(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	if limit == 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(r, "offset", 0)

	list, total, err := h.DB.Itineraries().List(r.Context(), limit, offset)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] GET /api/v1/itineraries: limit=%d offset=%d total=%d", limit, offset, total)
	h.writeJSON(w, http.StatusOK, ItineraryListResponse{Itineraries: list, Total: total})
}

// HandleCreateItinerary handles POST /api/v1/itineraries
func (h *Handler) HandleCreateItinerary(w http.ResponseWriter, r *http.Request) {
	const route = "POST /api/v1/itineraries"
	it, ok := h.decodeItinerary(w, r, route)
	if !ok {
		return
	}

	saved, err := h.DB.Itineraries().Save(r.Context(), it)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] %s: created id=%s days=%d activities=%d", route, saved.ID, len(saved.Days), saved.ActivityCount())
	h.writeJSON(w, http.StatusCreated, saved)
}

// loadItinerary fetches the itinerary named by the {id} route parameter and
// writes a 404 when it does not exist
func (h *Handler) loadItinerary(w http.ResponseWriter, r *http.Request) (*models.Itinerary, bool) {
	id := chi.URLParam(r, "id")
	it, err := h.DB.Itineraries().GetByID(r.Context(), id)
	if err != nil {
		h.handleInternalError(w, err)
		return nil, false
	}
	if it == nil {
		log.Printf("[HTTP] %s %s: itinerary id=%s not found", r.Method, r.URL.Path, id)
		h.handleNotFound(w, "Itinerary not found")
		return nil, false
	}
	return it, true
}

// HandleGetItinerary handles GET /api/v1/itineraries/{id}
func (h *Handler) HandleGetItinerary(w http.ResponseWriter, r *http.Request) {
	it, ok := h.loadItinerary(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, it)
}

// HandleDeleteItinerary handles DELETE /api/v1/itineraries/{id}
func (h *Handler) HandleDeleteItinerary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.DB.Itineraries().Delete(r.Context(), id); err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Itinerary not found")
			return
		}
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] DELETE /api/v1/itineraries/%s: deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleEnrichItinerary handles POST /api/v1/itineraries/{id}/enrich
func (h *Handler) HandleEnrichItinerary(w http.ResponseWriter, r *http.Request) {
	it, ok := h.loadItinerary(w, r)
	if !ok {
		return
	}

	out, stats, err := h.Enricher.Enrich(r.Context(), it)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	if stats.Geocoded+stats.CacheHits > 0 {
		if out, err = h.DB.Itineraries().Save(r.Context(), out); err != nil {
			h.handleInternalError(w, err)
			return
		}
	}

	log.Printf("[HTTP] POST /api/v1/itineraries/%s/enrich: candidates=%d geocoded=%d cache_hits=%d failed=%d",
		it.ID, stats.Candidates, stats.Geocoded, stats.CacheHits, stats.Failed)
	h.writeJSON(w, http.StatusOK, EnrichResponse{Itinerary: out, Stats: stats})
}

// HandleOptimizeItinerary handles POST /api/v1/itineraries/{id}/optimize.
// Results are cached by fingerprint when redis is configured. Every call is
// recorded as a run; ?apply=true stores a successful result over the itinerary.
func (h *Handler) HandleOptimizeItinerary(w http.ResponseWriter, r *http.Request) {
	it, ok := h.loadItinerary(w, r)
	if !ok {
		return
	}
	route := "POST /api/v1/itineraries/" + it.ID + "/optimize"
	ctx := r.Context()

	fingerprint, err := cache.Fingerprint(it, h.Optimizer.Options())
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	var res *optimizer.Result
	cached := false
	if h.Cache != nil {
		if res, err = h.Cache.Get(ctx, fingerprint); err != nil {
			log.Printf("[CACHE] Result cache read failed: fingerprint=%s err=%v", fingerprint, err)
			res = nil
		}
		cached = res != nil
	}

	if res == nil {
		res, err = h.Optimizer.Optimize(ctx, it)
		if err != nil {
			var serr *optimizer.StructuralError
			if errors.As(err, &serr) {
				h.handleStructuralError(w, err)
				return
			}
			h.handleInternalError(w, err)
			return
		}
		if h.Cache != nil && res.State == optimizer.StateDone {
			if err := h.Cache.Set(ctx, fingerprint, res); err != nil {
				log.Printf("[CACHE] Result cache write failed: fingerprint=%s err=%v", fingerprint, err)
			}
		}
	}

	payload, err := json.Marshal(res)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	residual := 0
	if res.Validation != nil {
		residual = res.Validation.ErrorCount()
	}
	run, err := h.DB.Runs().Create(ctx, &models.OptimizationRun{
		ItineraryID:    it.ID,
		Fingerprint:    fingerprint,
		State:          string(res.State),
		Success:        res.Success,
		ResidualErrors: residual,
		WarningCount:   len(res.Warnings),
		Result:         payload,
	})
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	applied := false
	if r.URL.Query().Get("apply") == "true" && res.Success && res.Itinerary != nil {
		optimized := res.Itinerary.Clone()
		optimized.ID = it.ID
		optimized.CreatedAt = it.CreatedAt
		if _, err := h.DB.Itineraries().Save(ctx, optimized); err != nil {
			h.handleInternalError(w, err)
			return
		}
		applied = true
	}

	log.Printf("[HTTP] %s: run=%s state=%s success=%v cached=%v applied=%v", route, run.ID, res.State, res.Success, cached, applied)
	h.writeJSON(w, http.StatusOK, OptimizeRunResponse{RunID: run.ID, Cached: cached, Applied: applied, Result: res})
}

// HandleListRuns handles GET /api/v1/itineraries/{id}/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	it, ok := h.loadItinerary(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultRunLimit)
	if limit == 0 || limit > maxListLimit {
		limit = defaultRunLimit
	}

	runs, err := h.DB.Runs().ListByItinerary(r.Context(), it.ID, limit)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// HandleGetRun handles GET /api/v1/runs/{runID}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	run, err := h.DB.Runs().GetByID(r.Context(), id)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}
	if run == nil {
		h.handleNotFound(w, "Run not found")
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}
