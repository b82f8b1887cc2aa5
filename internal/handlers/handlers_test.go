package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-optimizer/internal/balancing"
	"itinerary-optimizer/internal/cache"
	"itinerary-optimizer/internal/enrich"
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/optimizer"
	"itinerary-optimizer/internal/planning"
	"itinerary-optimizer/internal/sequencing"
	"itinerary-optimizer/internal/sqlite"
	tu "itinerary-optimizer/internal/testutil"
	"itinerary-optimizer/internal/validation"
)

func setupTestHandler(t *testing.T) (*Handler, *tu.MockGeocoder) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), sqlite.DefaultDBFileName))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	geo := tu.NewMockGeocoder()
	return &Handler{
		DB:        store,
		Geocoder:  geo,
		Optimizer: optimizer.New(nil, nil, optimizer.Options{}),
		Enricher:  enrich.New(geo, store.GeocodeCache(), nil, 2),
	}, geo
}

func withCache(t *testing.T, h *Handler) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	h.Cache = cache.NewResultCache(client, time.Hour)
	return mr
}

func tokyoTrip() *models.Itinerary {
	return tu.Itinerary([]models.Day{
		tu.Day(1, tu.Activities("d1", 5, tu.TokyoShinjuku)...),
		tu.Day(2, tu.Activities("d2", 4, tu.TokyoShibuya)...),
		tu.Day(3, tu.Activities("d3", 2, tu.TokyoShinjuku)...),
		tu.Day(4, tu.Activities("d4", 4, tu.TokyoShibuya)...),
		tu.Day(5, tu.Activities("d5", 3, tu.TokyoShinjuku)...),
	}, tu.Lodging("h-tokyo", "Tokyo", tu.TokyoShinjuku))
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withURLParams attaches chi route parameters to a request
func withURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func createItinerary(t *testing.T, h *Handler, it *models.Itinerary) *models.Itinerary {
	t.Helper()
	w := httptest.NewRecorder()
	h.HandleCreateItinerary(w, jsonRequest(t, "POST", "/api/v1/itineraries", it))
	require.Equal(t, http.StatusCreated, w.Code)

	var saved models.Itinerary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&saved))
	return &saved
}

func TestHandleOptimize(t *testing.T) {
	h, _ := setupTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleOptimize(w, jsonRequest(t, "POST", "/api/v1/optimize", tokyoTrip()))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var res optimizer.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.True(t, res.Success)
	assert.Equal(t, optimizer.StateDone, res.State)
	require.NotNil(t, res.Itinerary)
	assert.Equal(t, 18, res.Itinerary.ActivityCount())
	assert.Zero(t, tu.CountActivities(res.Itinerary, 5))
}

func TestHandleOptimizeInvalidJSON(t *testing.T) {
	h, _ := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/api/v1/optimize", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	h.HandleOptimize(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Error.Code)
}

func TestHandleOptimizeStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		it   *models.Itinerary
	}{
		{"no days", tu.Itinerary(nil)},
		{"duplicate ids", tu.Itinerary([]models.Day{
			tu.Day(1, tu.Activity("x", "A", tu.At(35.69, 139.70))),
			tu.Day(2, tu.Activity("x", "B", tu.At(35.69, 139.70))),
		})},
		{"days out of order", tu.Itinerary([]models.Day{tu.Day(2), tu.Day(1)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupTestHandler(t)
			w := httptest.NewRecorder()
			h.HandleOptimize(w, jsonRequest(t, "POST", "/api/v1/optimize", tt.it))

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, "INVALID_ITINERARY", decodeError(t, w).Error.Code)
		})
	}
}

func TestHandleAssign(t *testing.T) {
	h, _ := setupTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleAssign(w, jsonRequest(t, "POST", "/api/v1/assign", tokyoTrip()))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Itinerary *models.Itinerary        `json:"itinerary"`
		Stats     planning.AssignmentStats `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 18, resp.Stats.Total)
	assert.Equal(t, 18, resp.Itinerary.ActivityCount())
}

func TestHandleBalance(t *testing.T) {
	h, _ := setupTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleBalance(w, jsonRequest(t, "POST", "/api/v1/balance", tokyoTrip()))
	require.Equal(t, http.StatusOK, w.Code)

	var report balancing.Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.Len(t, report.Loads, 5)
	assert.GreaterOrEqual(t, report.Score, 0.0)
	assert.LessOrEqual(t, report.Score, 100.0)
}

func TestHandleApplySuggestions(t *testing.T) {
	h, _ := setupTestHandler(t)

	body := ApplySuggestionsRequest{
		Itinerary: tokyoTrip(),
		Suggestions: []balancing.Suggestion{{
			ID:         "s1",
			Type:       balancing.SuggestReduceOverload,
			Priority:   balancing.PriorityHigh,
			ActivityID: "d1-5",
			FromDay:    1,
			ToDay:      3,
		}},
	}

	w := httptest.NewRecorder()
	h.HandleApplySuggestions(w, jsonRequest(t, "POST", "/api/v1/balance/apply", body))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Itinerary *models.Itinerary     `json:"itinerary"`
		Stats     balancing.ApplyResult `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Stats.Applied)
	assert.Equal(t, 4, tu.CountActivities(resp.Itinerary, 1))
	assert.Equal(t, 3, tu.CountActivities(resp.Itinerary, 3))
}

func TestHandleApplySuggestionsRequiresSuggestions(t *testing.T) {
	h, _ := setupTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleApplySuggestions(w, jsonRequest(t, "POST", "/api/v1/balance/apply", ApplySuggestionsRequest{Itinerary: tokyoTrip()}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSequence(t *testing.T) {
	h, _ := setupTestHandler(t)

	body := SequenceRequest{
		Activities: []models.Activity{
			tu.Activity("far", "Far", tu.Near(tu.TokyoShinjuku, 3)),
			tu.Activity("near", "Near", tu.Near(tu.TokyoShinjuku, 0.5)),
			tu.Activity("mid", "Mid", tu.Near(tu.TokyoShinjuku, 1.5)),
		},
		Options: sequencing.Options{Mode: sequencing.ModeGeography, StartPoint: &tu.TokyoShinjuku},
	}

	w := httptest.NewRecorder()
	h.HandleSequence(w, jsonRequest(t, "POST", "/api/v1/sequence", body))
	require.Equal(t, http.StatusOK, w.Code)

	var res sequencing.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	require.Len(t, res.Activities, 3)
	assert.Equal(t, "near", res.Activities[0].ID)
	assert.Equal(t, "mid", res.Activities[1].ID)
	assert.Equal(t, "far", res.Activities[2].ID)
}

func TestHandleSequenceUnknownMode(t *testing.T) {
	h, _ := setupTestHandler(t)

	body := SequenceRequest{Options: sequencing.Options{Mode: "random"}}
	w := httptest.NewRecorder()
	h.HandleSequence(w, jsonRequest(t, "POST", "/api/v1/sequence", body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleValidate(t *testing.T) {
	h, _ := setupTestHandler(t)

	// a Kyoto stop in the middle of a Tokyo day
	it := tu.Itinerary([]models.Day{
		tu.Day(1, tu.Activity("k1", "Kinkaku-ji", tu.At(35.0394, 135.7292))),
		tu.Day(2,
			tu.Activity("t1", "Tocho", tu.Near(tu.TokyoShinjuku, 0)),
			tu.Activity("k2", "Gion", tu.Near(tu.KyotoGion, 0)),
			tu.Activity("t2", "Omoide Yokocho", tu.Near(tu.TokyoShinjuku, 0.3)),
		),
	})

	w := httptest.NewRecorder()
	h.HandleValidate(w, jsonRequest(t, "POST", "/api/v1/validate", it))
	require.Equal(t, http.StatusOK, w.Code)

	var report validation.Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.False(t, report.Valid)
	assert.Contains(t, report.AffectedDays(), 2)
}

func TestHandleCorrectMixedDays(t *testing.T) {
	h, _ := setupTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleCorrectMixedDays(w, jsonRequest(t, "POST", "/api/v1/mixed-days/correct", tokyoTrip()))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Itinerary *models.Itinerary      `json:"itinerary"`
		Stats     planning.MixedDayStats `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Zero(t, resp.Stats.MixedDays)
	assert.Equal(t, 18, resp.Itinerary.ActivityCount())
}

func TestHandleAnalyzeContext(t *testing.T) {
	h, _ := setupTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleAnalyzeContext(w, jsonRequest(t, "POST", "/api/v1/context", tokyoTrip()))
	require.Equal(t, http.StatusOK, w.Code)

	var tc planning.TripContext
	require.NoError(t, json.NewDecoder(w.Body).Decode(&tc))
	require.Len(t, tc.Segments, 1)
	assert.Empty(t, tc.Transitions)
}

func TestItineraryCRUD(t *testing.T) {
	h, _ := setupTestHandler(t)

	saved := createItinerary(t, h, tokyoTrip())
	require.NotEmpty(t, saved.ID)

	w := httptest.NewRecorder()
	h.HandleGetItinerary(w, withURLParams(httptest.NewRequest("GET", "/api/v1/itineraries/"+saved.ID, nil), "id", saved.ID))
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Itinerary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, 18, got.ActivityCount())

	w = httptest.NewRecorder()
	h.HandleListItineraries(w, httptest.NewRequest("GET", "/api/v1/itineraries?limit=10", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list ItineraryListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Itineraries, 1)
	assert.Equal(t, 5, list.Itineraries[0].Days)

	w = httptest.NewRecorder()
	h.HandleDeleteItinerary(w, withURLParams(httptest.NewRequest("DELETE", "/api/v1/itineraries/"+saved.ID, nil), "id", saved.ID))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	h.HandleDeleteItinerary(w, withURLParams(httptest.NewRequest("DELETE", "/api/v1/itineraries/"+saved.ID, nil), "id", saved.ID))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetItineraryNotFound(t *testing.T) {
	h, _ := setupTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleGetItinerary(w, withURLParams(httptest.NewRequest("GET", "/api/v1/itineraries/missing", nil), "id", "missing"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Error.Code)
}

func TestHandleCreateItineraryInvalid(t *testing.T) {
	h, _ := setupTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleCreateItinerary(w, jsonRequest(t, "POST", "/api/v1/itineraries", tu.Itinerary(nil)))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleEnrichItinerary(t *testing.T) {
	h, geo := setupTestHandler(t)

	it := tokyoTrip()
	it.Days[1].Activities = append(it.Days[1].Activities, models.Activity{ID: "sensoji", Title: "Senso-ji", Area: "Asakusa", DurationMinutes: 60})
	saved := createItinerary(t, h, it)
	geo.SetPlace("Senso-ji, Asakusa, Tokyo", tu.TokyoAsakusa, "Tokyo")

	w := httptest.NewRecorder()
	h.HandleEnrichItinerary(w, withURLParams(httptest.NewRequest("POST", "/api/v1/itineraries/"+saved.ID+"/enrich", nil), "id", saved.ID))
	require.Equal(t, http.StatusOK, w.Code)

	var resp EnrichResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Stats.Geocoded)

	stored, err := h.DB.Itineraries().GetByID(context.Background(), saved.ID)
	require.NoError(t, err)
	_, idx, ok := stored.FindActivity("sensoji")
	require.True(t, ok)
	assert.NotNil(t, stored.Days[1].Activities[idx].Coords, "enriched coordinates are persisted")

	cached, err := h.DB.GeocodeCache().Get(context.Background(), "senso-ji, asakusa, tokyo")
	require.NoError(t, err)
	assert.NotNil(t, cached)
}

func TestHandleOptimizeItineraryCachesAndRecordsRuns(t *testing.T) {
	h, _ := setupTestHandler(t)
	withCache(t, h)
	saved := createItinerary(t, h, tokyoTrip())

	optimize := func(target string) OptimizeRunResponse {
		w := httptest.NewRecorder()
		h.HandleOptimizeItinerary(w, withURLParams(httptest.NewRequest("POST", target, nil), "id", saved.ID))
		require.Equal(t, http.StatusOK, w.Code)
		var resp OptimizeRunResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		return resp
	}

	first := optimize("/api/v1/itineraries/" + saved.ID + "/optimize")
	assert.False(t, first.Cached)
	assert.False(t, first.Applied)
	assert.True(t, first.Result.Success)

	second := optimize("/api/v1/itineraries/" + saved.ID + "/optimize")
	assert.True(t, second.Cached, "unchanged itinerary is served from the cache")
	assert.NotEqual(t, first.RunID, second.RunID)

	third := optimize("/api/v1/itineraries/" + saved.ID + "/optimize?apply=true")
	assert.True(t, third.Applied)

	stored, err := h.DB.Itineraries().GetByID(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Zero(t, tu.CountActivities(stored, 5), "applied result replaces the stored itinerary")

	w := httptest.NewRecorder()
	h.HandleListRuns(w, withURLParams(httptest.NewRequest("GET", "/api/v1/itineraries/"+saved.ID+"/runs", nil), "id", saved.ID))
	require.Equal(t, http.StatusOK, w.Code)
	var runs RunListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&runs))
	assert.Len(t, runs.Runs, 3)

	w = httptest.NewRecorder()
	h.HandleGetRun(w, withURLParams(httptest.NewRequest("GET", "/api/v1/runs/"+first.RunID, nil), "runID", first.RunID))
	require.Equal(t, http.StatusOK, w.Code)
	var run models.OptimizationRun
	require.NoError(t, json.NewDecoder(w.Body).Decode(&run))
	assert.Equal(t, "done", run.State)
	assert.NotEmpty(t, run.Result)
}

func TestHandleOptimizeItineraryWithoutCache(t *testing.T) {
	h, _ := setupTestHandler(t)
	saved := createItinerary(t, h, tokyoTrip())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.HandleOptimizeItinerary(w, withURLParams(httptest.NewRequest("POST", "/api/v1/itineraries/"+saved.ID+"/optimize", nil), "id", saved.ID))
		require.Equal(t, http.StatusOK, w.Code)
		var resp OptimizeRunResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.False(t, resp.Cached)
	}
}

func TestHandleListRunsNotFound(t *testing.T) {
	h, _ := setupTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleListRuns(w, withURLParams(httptest.NewRequest("GET", "/api/v1/itineraries/missing/runs", nil), "id", "missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.HandleGetRun(w, withURLParams(httptest.NewRequest("GET", "/api/v1/runs/missing", nil), "runID", "missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleHealthCheck(t *testing.T) {
	h, _ := setupTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleHealthCheck(w, httptest.NewRequest("GET", "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "connected", resp["database"])
	assert.Equal(t, "disabled", resp["cache"])

	mr := withCache(t, h)
	w = httptest.NewRecorder()
	h.HandleHealthCheck(w, httptest.NewRequest("GET", "/api/v1/health", nil))
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "connected", resp["cache"])

	mr.Close()
	w = httptest.NewRecorder()
	h.HandleHealthCheck(w, httptest.NewRequest("GET", "/api/v1/health", nil))
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp["status"])
	assert.Equal(t, "error", resp["cache"])
}

func TestHandlePlaceSearch(t *testing.T) {
	h, geo := setupTestHandler(t)
	geo.SetPlace("Kiyomizu-dera", models.Coordinates{Lat: 34.9949, Lng: 135.7850}, "Kyoto")

	w := httptest.NewRecorder()
	h.HandlePlaceSearch(w, httptest.NewRequest("GET", "/api/v1/places/search?q=ab", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
	assert.Zero(t, geo.CallCount())

	w = httptest.NewRecorder()
	h.HandlePlaceSearch(w, httptest.NewRequest("GET", "/api/v1/places/search?q=Kiyomizu-dera", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var places []map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&places))
	assert.Len(t, places, 1)
}
