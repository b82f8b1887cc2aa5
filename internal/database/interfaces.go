package database

import (
	"context"

	"itinerary-optimizer/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Itineraries() ItineraryRepository
	Runs() RunRepository
	GeocodeCache() GeocodeCacheRepository
}

// ItineraryRepository handles itinerary persistence
type ItineraryRepository interface {
	List(ctx context.Context, limit, offset int) ([]models.ItinerarySummary, int, error)
	GetByID(ctx context.Context, id string) (*models.Itinerary, error)
	Save(ctx context.Context, it *models.Itinerary) (*models.Itinerary, error)
	Delete(ctx context.Context, id string) error
}

// RunRepository handles optimization run history
type RunRepository interface {
	Create(ctx context.Context, run *models.OptimizationRun) (*models.OptimizationRun, error)
	GetByID(ctx context.Context, id string) (*models.OptimizationRun, error)
	ListByItinerary(ctx context.Context, itineraryID string, limit int) ([]models.OptimizationRun, error)
}

// GeocodeCacheRepository handles place lookup cache persistence
type GeocodeCacheRepository interface {
	Get(ctx context.Context, query string) (*models.GeocodeCacheEntry, error)
	Set(ctx context.Context, entry *models.GeocodeCacheEntry) error
	Clear(ctx context.Context) error
}
