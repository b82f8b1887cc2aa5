package distance

import (
	"log"

	"github.com/golang/geo/s2"

	"itinerary-optimizer/internal/models"
)

// EarthRadiusKm is the mean earth radius used for great-circle distances
const EarthRadiusKm = 6371.0

// Distance returns the haversine great-circle distance between two points in km.
// Missing or invalid coordinates yield 0 and a logged warning, never an error.
func Distance(a, b *models.Coordinates) float64 {
	if a == nil || b == nil || !a.IsValid() || !b.IsValid() {
		log.Printf("[GEO] Distance requested with missing or invalid coordinates: a=%v b=%v", a, b)
		return 0
	}
	return Between(*a, *b)
}

// Between returns the great-circle distance in km between two valid points
func Between(a, b models.Coordinates) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// ActivityDistance returns the distance between two activities, 0 when either lacks coordinates
func ActivityDistance(a, b *models.Activity) float64 {
	if !a.HasCoords() || !b.HasCoords() {
		return 0
	}
	return Between(*a.Coords, *b.Coords)
}

// Centroid returns the arithmetic mean of the given points.
// The second return value is false when no points were provided.
func Centroid(points []models.Coordinates) (models.Coordinates, bool) {
	if len(points) == 0 {
		return models.Coordinates{}, false
	}
	var lat, lng float64
	for _, p := range points {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(points))
	return models.Coordinates{Lat: lat / n, Lng: lng / n}, true
}
