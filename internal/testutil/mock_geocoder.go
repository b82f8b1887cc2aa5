package testutil

import (
	"context"
	"sync"

	"itinerary-optimizer/internal/geocoding"
	"itinerary-optimizer/internal/models"
)

// MockGeocoder is a deterministic in-memory geocoder. Queries without a
// registered place fail with a final (non-retryable) error.
type MockGeocoder struct {
	mu     sync.Mutex
	Places map[string]geocoding.Place
	Errors map[string]error
	Calls  []string
}

func NewMockGeocoder() *MockGeocoder {
	return &MockGeocoder{
		Places: make(map[string]geocoding.Place),
		Errors: make(map[string]error),
		Calls:  []string{},
	}
}

// SetPlace registers the answer for a query
func (m *MockGeocoder) SetPlace(query string, c models.Coordinates, city string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Places[query] = geocoding.Place{Coords: c, DisplayName: query, City: city}
}

// SetError makes a query fail with err
func (m *MockGeocoder) SetError(query string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[query] = err
}

// CallCount returns how many lookups reached the geocoder
func (m *MockGeocoder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockGeocoder) Geocode(ctx context.Context, query string) (*geocoding.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, query)

	if err, ok := m.Errors[query]; ok {
		return nil, err
	}
	place, ok := m.Places[query]
	if !ok {
		return nil, &geocoding.ErrGeocodingFailed{Query: query, Reason: "no results found"}
	}
	return &place, nil
}

func (m *MockGeocoder) GeocodeWithRetry(ctx context.Context, query string) (*geocoding.Place, error) {
	return m.Geocode(ctx, query)
}

func (m *MockGeocoder) Search(ctx context.Context, query string, limit int) ([]geocoding.Place, error) {
	place, err := m.Geocode(ctx, query)
	if err != nil {
		return []geocoding.Place{}, nil
	}
	return []geocoding.Place{*place}, nil
}

// MemoryGeocodeCache is an in-memory geocode cache repository
type MemoryGeocodeCache struct {
	mu      sync.Mutex
	Entries map[string]models.GeocodeCacheEntry
}

func NewMemoryGeocodeCache() *MemoryGeocodeCache {
	return &MemoryGeocodeCache{Entries: make(map[string]models.GeocodeCacheEntry)}
}

func (c *MemoryGeocodeCache) Get(ctx context.Context, query string) (*models.GeocodeCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.Entries[query]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (c *MemoryGeocodeCache) Set(ctx context.Context, entry *models.GeocodeCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Entries[entry.Query] = *entry
	return nil
}

func (c *MemoryGeocodeCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Entries = make(map[string]models.GeocodeCacheEntry)
	return nil
}
