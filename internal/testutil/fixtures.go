package testutil

import (
	"fmt"
	"time"

	"itinerary-optimizer/internal/models"
)

// Reference points used across tests
var (
	TokyoShinjuku = models.Coordinates{Lat: 35.6900, Lng: 139.7000}
	TokyoAsakusa  = models.Coordinates{Lat: 35.7148, Lng: 139.7967}
	TokyoShibuya  = models.Coordinates{Lat: 35.6595, Lng: 139.7005}
	KyotoStation  = models.Coordinates{Lat: 34.9858, Lng: 135.7588}
	KyotoGion     = models.Coordinates{Lat: 35.0037, Lng: 135.7788}
	OsakaNamba    = models.Coordinates{Lat: 34.6655, Lng: 135.5011}
)

// TripStart is the date of day 1 in fixture itineraries
var TripStart = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

// At returns a pointer to the given coordinates
func At(lat, lng float64) *models.Coordinates {
	return &models.Coordinates{Lat: lat, Lng: lng}
}

// Near offsets a point north by roughly km kilometres
func Near(c models.Coordinates, km float64) *models.Coordinates {
	return &models.Coordinates{Lat: c.Lat + km/111.195, Lng: c.Lng}
}

// Activity builds a 60-minute activity at the given point
func Activity(id, title string, c *models.Coordinates) models.Activity {
	return models.Activity{ID: id, Title: title, Coords: c, DurationMinutes: 60}
}

// Activities builds n numbered activities around a point, each ~0.2 km apart
func Activities(prefix string, n int, c models.Coordinates) []models.Activity {
	out := make([]models.Activity, n)
	for i := range out {
		out[i] = Activity(fmt.Sprintf("%s-%d", prefix, i+1), fmt.Sprintf("%s stop %d", prefix, i+1), Near(c, 0.2*float64(i)))
	}
	return out
}

// Day builds a dated day holding the given activities
func Day(number int, acts ...models.Activity) models.Day {
	return models.Day{Number: number, Date: TripStart.AddDate(0, 0, number-1), Activities: acts}
}

// Lodging builds a lodging in a city
func Lodging(id, city string, c models.Coordinates) models.Lodging {
	return models.Lodging{ID: id, Name: city + " hotel", City: city, Coords: c}
}

// Itinerary builds an itinerary from days and lodgings
func Itinerary(days []models.Day, lodgings ...models.Lodging) *models.Itinerary {
	return &models.Itinerary{ID: "trip-1", Title: "Test trip", Days: days, Lodgings: lodgings}
}

// EmptyDays builds n empty days numbered from 1
func EmptyDays(n int) []models.Day {
	days := make([]models.Day, n)
	for i := range days {
		days[i] = Day(i + 1)
	}
	return days
}

// CountActivities returns the number of activities on a day, -1 if the day is missing
func CountActivities(it *models.Itinerary, number int) int {
	d := it.DayByNumber(number)
	if d == nil {
		return -1
	}
	return len(d.Activities)
}
