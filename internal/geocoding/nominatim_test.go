package geocoding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestGeocoder(baseURL string, rps float64, maxAttempts int) *nominatimGeocoder {
	return &nominatimGeocoder{
		baseURL:    baseURL,
		userAgent:  "ItineraryOptimizer/1.0",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		retry: RetryPolicy{
			MaxAttempts:    maxAttempts,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			Multiplier:     2,
		},
	}
}

func writePlaces(w http.ResponseWriter, places ...nominatimResponse) {
	w.Header().Set("Content-Type", "application/json")
	if places == nil {
		places = []nominatimResponse{}
	}
	json.NewEncoder(w).Encode(places)
}

func TestNominatimGeocodeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/search")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "1", r.URL.Query().Get("addressdetails"))
		assert.Equal(t, "Fushimi Inari, Kyoto", r.URL.Query().Get("q"))

		writePlaces(w, nominatimResponse{
			Lat:         "34.9671",
			Lon:         "135.7727",
			DisplayName: "Fushimi Inari Taisha, Kyoto, Japan",
			Address:     &nominatimAddress{City: "Kyoto"},
		})
	}))
	defer server.Close()

	place, err := newTestGeocoder(server.URL, 1000, 1).Geocode(context.Background(), "Fushimi Inari, Kyoto")

	require.NoError(t, err)
	require.NotNil(t, place)
	assert.Equal(t, 34.9671, place.Coords.Lat)
	assert.Equal(t, 135.7727, place.Coords.Lng)
	assert.Equal(t, "Kyoto", place.City)
	assert.Equal(t, "Fushimi Inari Taisha, Kyoto, Japan", place.DisplayName)
}

func TestNominatimGeocodeTownFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePlaces(w, nominatimResponse{Lat: "35.2324", Lon: "139.1069", DisplayName: "Hakone", Address: &nominatimAddress{Town: "Hakone"}})
	}))
	defer server.Close()

	place, err := newTestGeocoder(server.URL, 1000, 1).Geocode(context.Background(), "Hakone")
	require.NoError(t, err)
	assert.Equal(t, "Hakone", place.City)
}

func TestNominatimGeocodeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePlaces(w)
	}))
	defer server.Close()

	place, err := newTestGeocoder(server.URL, 1000, 1).Geocode(context.Background(), "Nonexistent Place")

	require.Error(t, err)
	assert.Nil(t, place)

	geocodingErr, ok := err.(*ErrGeocodingFailed)
	require.True(t, ok)
	assert.Contains(t, geocodingErr.Reason, "no results found")
	assert.False(t, geocodingErr.Temporary)
}

func TestNominatimGeocodeHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	place, err := newTestGeocoder(server.URL, 1000, 1).Geocode(context.Background(), "Test Address")

	require.Error(t, err)
	assert.Nil(t, place)

	geocodingErr, ok := err.(*ErrGeocodingFailed)
	require.True(t, ok)
	assert.Contains(t, geocodingErr.Reason, "HTTP 500")
	assert.True(t, geocodingErr.Temporary)
}

func TestNominatimGeocodeInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	place, err := newTestGeocoder(server.URL, 1000, 1).Geocode(context.Background(), "Test Address")

	require.Error(t, err)
	assert.Nil(t, place)
}

func TestNominatimGeocodeInvalidLatLon(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePlaces(w, nominatimResponse{Lat: "invalid", Lon: "135.7727", DisplayName: "Test"})
	}))
	defer server.Close()

	place, err := newTestGeocoder(server.URL, 1000, 1).Geocode(context.Background(), "Test Address")

	require.Error(t, err)
	assert.Nil(t, place)

	geocodingErr, ok := err.(*ErrGeocodingFailed)
	require.True(t, ok)
	assert.Contains(t, geocodingErr.Reason, "invalid latitude")
}

func TestNominatimGeocodeRateLimiting(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		writePlaces(w, nominatimResponse{Lat: "35.0", Lon: "135.7", DisplayName: "Test"})
	}))
	defer server.Close()

	geocoder := newTestGeocoder(server.URL, 20, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := geocoder.Geocode(context.Background(), "Test")
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	// 20 rps with a burst of one: two waits of 50ms
	assert.True(t, elapsed >= 90*time.Millisecond, "Rate limiting not working")
	assert.Equal(t, 3, requestCount)
}

func TestNominatimGeocodeWithRetrySuccess(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		if attemptCount < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writePlaces(w, nominatimResponse{Lat: "35.0116", Lon: "135.7681", DisplayName: "Kyoto"})
	}))
	defer server.Close()

	place, err := newTestGeocoder(server.URL, 1000, 3).GeocodeWithRetry(context.Background(), "Kyoto")

	require.NoError(t, err)
	require.NotNil(t, place)
	assert.Equal(t, 35.0116, place.Coords.Lat)
	assert.Equal(t, 2, attemptCount)
}

func TestNominatimGeocodeWithRetryAllFail(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	place, err := newTestGeocoder(server.URL, 1000, 3).GeocodeWithRetry(context.Background(), "Test")

	require.Error(t, err)
	assert.Nil(t, place)
	assert.Equal(t, 3, attemptCount)
}

func TestNominatimGeocodeWithRetryStopsOnFinalError(t *testing.T) {
	attemptCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount++
		writePlaces(w)
	}))
	defer server.Close()

	_, err := newTestGeocoder(server.URL, 1000, 3).GeocodeWithRetry(context.Background(), "Nowhere")

	require.Error(t, err)
	assert.Equal(t, 1, attemptCount)
}

func TestNominatimGeocodeContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		writePlaces(w, nominatimResponse{Lat: "35.0", Lon: "135.7", DisplayName: "Test"})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	place, err := newTestGeocoder(server.URL, 1000, 1).Geocode(ctx, "Test")

	require.Error(t, err)
	assert.Nil(t, place)
}

func TestNominatimGeocodeUserAgent(t *testing.T) {
	userAgentReceived := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgentReceived = r.Header.Get("User-Agent")
		writePlaces(w, nominatimResponse{Lat: "35.0", Lon: "135.7", DisplayName: "Test"})
	}))
	defer server.Close()

	_, err := newTestGeocoder(server.URL, 1000, 1).Geocode(context.Background(), "Test")

	require.NoError(t, err)
	assert.Equal(t, "ItineraryOptimizer/1.0", userAgentReceived)
}

func TestNominatimSearchSkipsInvalidResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writePlaces(w,
			nominatimResponse{Lat: "35.0394", Lon: "135.7292", DisplayName: "Kinkaku-ji"},
			nominatimResponse{Lat: "bad", Lon: "135.7", DisplayName: "Broken"},
			nominatimResponse{Lat: "35.0270", Lon: "135.7982", DisplayName: "Ginkaku-ji"},
		)
	}))
	defer server.Close()

	places, err := newTestGeocoder(server.URL, 1000, 1).Search(context.Background(), "temple kyoto", 5)

	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Kinkaku-ji", places[0].DisplayName)
	assert.Equal(t, "Ginkaku-ji", places[1].DisplayName)
}

func TestNewNominatimGeocoderDefaults(t *testing.T) {
	g := NewNominatimGeocoder(Config{}).(*nominatimGeocoder)
	assert.Equal(t, "https://nominatim.openstreetmap.org", g.baseURL)
	assert.Equal(t, rate.Limit(1), g.limiter.Limit())
	assert.Equal(t, 3, g.retry.MaxAttempts)
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Duration(0), p.Backoff(0))
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(4))
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(context.Canceled))
	assert.False(t, Retryable(&ErrGeocodingFailed{Reason: "no results found"}))
	assert.True(t, Retryable(&ErrGeocodingFailed{Reason: "HTTP 503", Temporary: true}))
}
