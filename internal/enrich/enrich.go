// Package enrich fills in missing activity coordinates by geocoding them
// before an itinerary is optimized.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"itinerary-optimizer/internal/cities"
	"itinerary-optimizer/internal/database"
	"itinerary-optimizer/internal/geocoding"
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/planning"
)

const DefaultConcurrency = 4

// Failure records an activity that could not be geocoded
type Failure struct {
	ActivityID string `json:"activity_id"`
	DayNumber  int    `json:"day_number"`
	Query      string `json:"query"`
	Reason     string `json:"reason"`
}

// Stats summarises one enrichment pass
type Stats struct {
	Candidates int       `json:"candidates"`
	CacheHits  int       `json:"cache_hits"`
	Geocoded   int       `json:"geocoded"`
	Failed     int       `json:"failed"`
	Failures   []Failure `json:"failures"`
}

// Enricher geocodes activities that lack coordinates
type Enricher struct {
	geocoder    geocoding.Geocoder
	cache       database.GeocodeCacheRepository
	resolver    *cities.Resolver
	concurrency int
}

// New creates an enricher. cache may be nil; a nil resolver uses the built-in catalog.
func New(geocoder geocoding.Geocoder, cache database.GeocodeCacheRepository, resolver *cities.Resolver, concurrency int) *Enricher {
	if resolver == nil {
		resolver = cities.NewResolver(nil)
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Enricher{geocoder: geocoder, cache: cache, resolver: resolver, concurrency: concurrency}
}

type job struct {
	day, index int
	query      string
}

// Enrich returns a copy of it with coordinates filled in where a lookup
// succeeded. Lookup failures are reported in Stats and never abort the pass;
// only context cancellation is returned as an error.
func (e *Enricher) Enrich(ctx context.Context, it *models.Itinerary) (*models.Itinerary, Stats, error) {
	start := time.Now()
	out := it.Clone()
	out.Normalize()

	stats := Stats{Failures: []Failure{}}
	cityOf := planning.EffectiveCities(out, e.resolver)

	var jobs []job
	for d := range out.Days {
		for i := range out.Days[d].Activities {
			a := &out.Days[d].Activities[i]
			if a.HasCoords() {
				continue
			}
			city := a.City
			if city == "" {
				city = cityOf[out.Days[d].Number]
			}
			jobs = append(jobs, job{day: d, index: i, query: Query(a, city)})
		}
	}
	stats.Candidates = len(jobs)
	if len(jobs) == 0 {
		return out, stats, nil
	}

	log.Printf("[ENRICH] Starting: itinerary=%s candidates=%d concurrency=%d", out.ID, len(jobs), e.concurrency)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, j := range jobs {
		g.Go(func() error {
			place, cached, err := e.lookup(gctx, j.query)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				a := &out.Days[j.day].Activities[j.index]
				mu.Lock()
				stats.Failed++
				stats.Failures = append(stats.Failures, Failure{
					ActivityID: a.ID,
					DayNumber:  out.Days[j.day].Number,
					Query:      j.query,
					Reason:     err.Error(),
				})
				mu.Unlock()
				log.Printf("[ENRICH] Lookup failed: activity=%s query=%q error=%v", a.ID, j.query, err)
				return nil
			}

			e.apply(&out.Days[j.day].Activities[j.index], place)

			mu.Lock()
			if cached {
				stats.CacheHits++
			} else {
				stats.Geocoded++
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, stats, fmt.Errorf("enrichment cancelled: %w", err)
	}

	log.Printf("[ENRICH] Complete: itinerary=%s geocoded=%d cache_hits=%d failed=%d elapsed=%v",
		out.ID, stats.Geocoded, stats.CacheHits, stats.Failed, time.Since(start))
	return out, stats, nil
}

// lookup consults the cache before the geocoder. Cache errors are logged and
// treated as misses.
func (e *Enricher) lookup(ctx context.Context, query string) (*geocoding.Place, bool, error) {
	key := cities.Fold(query)

	if e.cache != nil {
		entry, err := e.cache.Get(ctx, key)
		if err != nil {
			log.Printf("[CACHE] Geocode cache read failed: query=%q error=%v", key, err)
		} else if entry != nil {
			return &geocoding.Place{Coords: entry.Coords, DisplayName: entry.DisplayName, City: entry.City}, true, nil
		}
	}

	place, err := e.geocoder.GeocodeWithRetry(ctx, query)
	if err != nil {
		return nil, false, err
	}

	if e.cache != nil {
		entry := &models.GeocodeCacheEntry{Query: key, Coords: place.Coords, DisplayName: place.DisplayName, City: place.City}
		if err := e.cache.Set(ctx, entry); err != nil {
			log.Printf("[CACHE] Geocode cache write failed: query=%q error=%v", key, err)
		}
	}
	return place, false, nil
}

// apply copies a geocoded place onto an activity. The city tag is only set
// when the activity has none and the place is in a catalog city.
func (e *Enricher) apply(a *models.Activity, place *geocoding.Place) {
	c := models.Coordinates{
		Lat: models.RoundCoordinate(place.Coords.Lat),
		Lng: models.RoundCoordinate(place.Coords.Lng),
	}
	a.Coords = &c

	if a.City != "" || place.City == "" {
		return
	}
	name := e.resolver.Normalize(place.City)
	if _, ok := e.resolver.Catalog().City(name); ok {
		a.City = name
	}
}

// Query builds the free-text geocoding query for an activity
func Query(a *models.Activity, city string) string {
	parts := []string{a.DisplayName()}
	if area := strings.TrimSpace(a.Area); area != "" {
		parts = append(parts, area)
	}
	if city = strings.TrimSpace(city); city != "" {
		parts = append(parts, city)
	}
	return strings.Join(parts, ", ")
}
