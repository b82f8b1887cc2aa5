package handlers

import "net/http"

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "connected"
	cacheStatus := "disabled"

	if err := h.DB.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		dbStatus = "error"
	}

	if h.Cache != nil {
		cacheStatus = "connected"
		if err := h.Cache.Ping(r.Context()); err != nil {
			status = "degraded"
			cacheStatus = "error"
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"version":  "1.0.0",
		"database": dbStatus,
		"cache":    cacheStatus,
	})
}
