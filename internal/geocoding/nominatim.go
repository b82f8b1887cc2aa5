package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"itinerary-optimizer/internal/models"
)

// Place is a search hit for an activity or address
type Place struct {
	Coords      models.Coordinates `json:"coords"`
	DisplayName string             `json:"display_name"`
	City        string             `json:"city,omitempty"`
}

// Geocoder resolves free-text places to coordinates
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Place, error)
	GeocodeWithRetry(ctx context.Context, query string) (*Place, error)
	Search(ctx context.Context, query string, limit int) ([]Place, error)
}

// ErrGeocodingFailed is returned when a query cannot be geocoded. Temporary
// failures (transport errors, 429 and 5xx responses) may be retried.
type ErrGeocodingFailed struct {
	Query     string
	Reason    string
	Temporary bool
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for %q: %s", e.Query, e.Reason)
}

// Config configures the Nominatim client
type Config struct {
	BaseURL           string
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
	Retry             RetryPolicy
}

// DefaultConfig follows the public Nominatim usage policy of one request per second
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://nominatim.openstreetmap.org",
		UserAgent:         "ItineraryOptimizer/1.0",
		RequestsPerSecond: 1,
		Timeout:           10 * time.Second,
		Retry:             DefaultRetryPolicy(),
	}
}

type nominatimGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryPolicy
}

type nominatimAddress struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
}

type nominatimResponse struct {
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name"`
	Address     *nominatimAddress `json:"address,omitempty"`
}

// NewNominatimGeocoder creates a rate limited Nominatim client
func NewNominatimGeocoder(cfg Config) Geocoder {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	return &nominatimGeocoder{
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retry:      cfg.Retry,
	}
}

func (g *nominatimGeocoder) Geocode(ctx context.Context, query string) (*Place, error) {
	results, err := g.search(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		log.Printf("[ERROR] No geocoding results found: query=%s", query)
		return nil, &ErrGeocodingFailed{Query: query, Reason: "no results found"}
	}

	place, err := results[0].toPlace()
	if err != nil {
		log.Printf("[ERROR] Invalid coordinates in geocoding response: query=%s err=%v", query, err)
		return nil, &ErrGeocodingFailed{Query: query, Reason: err.Error()}
	}
	log.Printf("[GEOCODING] Response: query=%s lat=%.6f lng=%.6f display_name=%s",
		query, place.Coords.Lat, place.Coords.Lng, place.DisplayName)
	return &place, nil
}

func (g *nominatimGeocoder) GeocodeWithRetry(ctx context.Context, query string) (*Place, error) {
	var place *Place
	err := g.retry.Do(ctx, "query="+query, func(ctx context.Context) error {
		var err error
		place, err = g.Geocode(ctx, query)
		return err
	})
	if err != nil {
		log.Printf("[ERROR] Geocoding failed: query=%s err=%v", query, err)
		return nil, err
	}
	return place, nil
}

func (g *nominatimGeocoder) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	results, err := g.search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		place, err := r.toPlace()
		if err != nil {
			log.Printf("[ERROR] Skipping search result: query=%s err=%v", query, err)
			continue
		}
		places = append(places, place)
	}
	log.Printf("[GEOCODING] Search response: query=%s results_count=%d", query, len(places))
	return places, nil
}

func (g *nominatimGeocoder) search(ctx context.Context, query string, limit int) ([]nominatimResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))
	queryURL := g.baseURL + "/search?" + params.Encode()
	log.Printf("[GEOCODING] Request: query=%s url=%s", query, queryURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrGeocodingFailed{Query: query, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[ERROR] Geocoding API request failed: query=%s err=%v", query, err)
		return nil, &ErrGeocodingFailed{Query: query, Reason: err.Error(), Temporary: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("[ERROR] Geocoding API error: query=%s status=%d body=%s", query, resp.StatusCode, string(body))
		return nil, &ErrGeocodingFailed{
			Query:     query,
			Reason:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
			Temporary: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		log.Printf("[ERROR] Failed to decode geocoding response: query=%s err=%v", query, err)
		return nil, &ErrGeocodingFailed{Query: query, Reason: err.Error()}
	}
	return results, nil
}

func (r nominatimResponse) toPlace() (Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("invalid latitude %q", r.Lat)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("invalid longitude %q", r.Lon)
	}
	coords := models.Coordinates{Lat: lat, Lng: lng}
	if !coords.IsValid() {
		return Place{}, fmt.Errorf("coordinates out of range: %.6f,%.6f", lat, lng)
	}

	place := Place{Coords: coords, DisplayName: r.DisplayName}
	if r.Address != nil {
		switch {
		case r.Address.City != "":
			place.City = r.Address.City
		case r.Address.Town != "":
			place.City = r.Address.Town
		default:
			place.City = r.Address.Village
		}
	}
	return place, nil
}
