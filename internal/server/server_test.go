package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinerary-optimizer/internal/config"
	"itinerary-optimizer/internal/enrich"
	"itinerary-optimizer/internal/handlers"
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/optimizer"
	"itinerary-optimizer/internal/sqlite"
	tu "itinerary-optimizer/internal/testutil"
)

func newTestAPI(t *testing.T, requestsPerMinute int) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), sqlite.DefaultDBFileName))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	geo := tu.NewMockGeocoder()
	h := &handlers.Handler{
		DB:        store,
		Geocoder:  geo,
		Optimizer: optimizer.New(nil, nil, optimizer.Options{}),
		Enricher:  enrich.New(geo, store.GeocodeCache(), nil, 2),
	}

	srv := httptest.NewServer(NewRouter(h, requestsPerMinute))
	t.Cleanup(srv.Close)
	return srv
}

func sampleTrip() *models.Itinerary {
	return tu.Itinerary([]models.Day{
		tu.Day(1, tu.Activities("a", 2, tu.TokyoShinjuku)...),
		tu.Day(2, tu.Activities("b", 4, tu.TokyoShibuya)...),
		tu.Day(3, tu.Activities("c", 4, tu.TokyoShinjuku)...),
		tu.Day(4, tu.Activities("d", 1, tu.TokyoShibuya)...),
	}, tu.Lodging("h-tokyo", "Tokyo", tu.TokyoShinjuku))
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouterHealth(t *testing.T) {
	srv := newTestAPI(t, 0)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}

func TestRouterOptimize(t *testing.T) {
	srv := newTestAPI(t, 0)

	resp := postJSON(t, srv.URL+"/api/v1/optimize", sampleTrip())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res optimizer.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, optimizer.StateDone, res.State)
	assert.Equal(t, 11, res.Itinerary.ActivityCount())
}

func TestRouterItineraryLifecycle(t *testing.T) {
	srv := newTestAPI(t, 0)

	resp := postJSON(t, srv.URL+"/api/v1/itineraries", sampleTrip())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var saved models.Itinerary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))

	get, err := http.Get(srv.URL + "/api/v1/itineraries/" + saved.ID)
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)

	opt := postJSON(t, srv.URL+"/api/v1/itineraries/"+saved.ID+"/optimize", nil)
	require.Equal(t, http.StatusOK, opt.StatusCode)
	var run handlers.OptimizeRunResponse
	require.NoError(t, json.NewDecoder(opt.Body).Decode(&run))
	require.NotEmpty(t, run.RunID)

	runs, err := http.Get(srv.URL + "/api/v1/itineraries/" + saved.ID + "/runs")
	require.NoError(t, err)
	defer runs.Body.Close()
	var list handlers.RunListResponse
	require.NoError(t, json.NewDecoder(runs.Body).Decode(&list))
	assert.Len(t, list.Runs, 1)

	one, err := http.Get(srv.URL + "/api/v1/runs/" + run.RunID)
	require.NoError(t, err)
	defer one.Body.Close()
	assert.Equal(t, http.StatusOK, one.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/itineraries/"+saved.ID, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)
}

func TestRouterMethodNotAllowed(t *testing.T) {
	srv := newTestAPI(t, 0)

	resp, err := http.Get(srv.URL + "/api/v1/optimize")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRouterCORSAllowsLocalhost(t *testing.T) {
	srv := newTestAPI(t, 0)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouterCORSRejectsForeignOrigin(t *testing.T) {
	srv := newTestAPI(t, 0)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/optimize", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouterRateLimit(t *testing.T) {
	srv := newTestAPI(t, 3)

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		resp, err := http.Get(srv.URL + "/api/v1/health")
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}

	assert.Equal(t, []int{200, 200, 200}, codes[:3])
	assert.Equal(t, http.StatusTooManyRequests, codes[4])
}

func TestServerStartAndShutdown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := &config.Config{
		ServerAddr:          "127.0.0.1:0",
		DBPath:              filepath.Join(t.TempDir(), "server.db"),
		RedisURL:            "redis://" + mr.Addr(),
		CacheTTL:            time.Minute,
		NominatimURL:        "http://127.0.0.1:1",
		GeocoderConcurrency: 1,
		Optimizer:           optimizer.DefaultOptions(),
	}

	s, err := New(context.Background(), cfg)
	require.NoError(t, err)

	addr, err := s.Start()
	require.NoError(t, err)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/health", addr))
	require.NoError(t, err)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "connected", health["cache"])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}

func TestServerNewBadRedis(t *testing.T) {
	cfg := &config.Config{
		ServerAddr: "127.0.0.1:0",
		DBPath:     filepath.Join(t.TempDir(), "server.db"),
		RedisURL:   "://bad",
	}

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
