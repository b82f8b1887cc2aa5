package models

import (
	"encoding/json"
	"time"
)

// ItinerarySummary is the list view of a stored itinerary
type ItinerarySummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Days       int       `json:"days"`
	Activities int       `json:"activities"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OptimizationRun is a persisted optimization result
type OptimizationRun struct {
	ID             string          `json:"id"`
	ItineraryID    string          `json:"itinerary_id"`
	Fingerprint    string          `json:"fingerprint"`
	State          string          `json:"state"`
	Success        bool            `json:"success"`
	ResidualErrors int             `json:"residual_errors"`
	WarningCount   int             `json:"warning_count"`
	Result         json.RawMessage `json:"result,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// GeocodeCacheEntry is a cached place lookup
type GeocodeCacheEntry struct {
	Query       string      `json:"query"`
	Coords      Coordinates `json:"coords"`
	DisplayName string      `json:"display_name"`
	City        string      `json:"city,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
