package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultDurationMinutes is applied to activities that arrive without a duration
const DefaultDurationMinutes = 60

// Coordinates represents a geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsValid reports whether the point is a usable WGS84 coordinate.
// The 0,0 point is treated as a missing value.
func (c Coordinates) IsValid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return false
	}
	return !(c.Lat == 0 && c.Lng == 0)
}

// RoundCoordinate rounds a coordinate to 5 decimal places (~1m precision)
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// TimeOfDay is a wall-clock time expressed in minutes since midnight
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hours and minutes
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses an "HH:MM" string between 00:00 and 23:59
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return NewTimeOfDay(h, m), nil
}

// Add returns the time shifted by the given number of minutes
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TransportEstimate describes the transfer from one activity to the next
type TransportEstimate struct {
	Minutes    int     `json:"minutes"`
	Mode       string  `json:"mode"`
	Cost       float64 `json:"cost"`
	DistanceKm float64 `json:"distance_km"`
}

// Activity is a single plannable item owned by exactly one day
type Activity struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	Name            string             `json:"name,omitempty"`
	City            string             `json:"city,omitempty"`
	Coords          *Coordinates       `json:"coords,omitempty"`
	Category        ActivityCategory   `json:"category,omitempty"`
	SubCategory     string             `json:"sub_category,omitempty"`
	Description     string             `json:"description,omitempty"`
	DurationMinutes int                `json:"duration_minutes"`
	Cost            float64            `json:"cost"`
	StartTime       *TimeOfDay         `json:"start_time,omitempty"`
	Popularity      int                `json:"popularity"`
	Area            string             `json:"area,omitempty"`
	OverLimit       bool               `json:"over_limit,omitempty"`
	TransportToNext *TransportEstimate `json:"transport_to_next,omitempty"`
}

// Normalize applies defaults and collapses the display-name fallback chain.
// It is called once when an itinerary enters the engine.
func (a *Activity) Normalize() {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		a.Title = strings.TrimSpace(a.Name)
	}
	if a.Title == "" {
		a.Title = "Untitled activity"
	}
	if a.DurationMinutes <= 0 {
		a.DurationMinutes = DefaultDurationMinutes
	}
	if a.Cost < 0 {
		a.Cost = 0
	}
	if a.Popularity < 0 {
		a.Popularity = 0
	}
	if a.Popularity > 100 {
		a.Popularity = 100
	}
	if a.Category == "" {
		a.Category = CategoryFromText(a.Title + " " + a.SubCategory + " " + a.Description)
	}
	if a.Coords != nil && !a.Coords.IsValid() {
		a.Coords = nil
	}
}

// DisplayName returns the human readable name of the activity
func (a *Activity) DisplayName() string {
	if a.Title != "" {
		return a.Title
	}
	if a.Name != "" {
		return a.Name
	}
	return "Untitled activity"
}

// HasCoords reports whether the activity carries usable coordinates
func (a *Activity) HasCoords() bool {
	return a.Coords != nil && a.Coords.IsValid()
}

// SearchText returns the lowercase text used for keyword matching
func (a *Activity) SearchText() string {
	return strings.ToLower(strings.Join([]string{a.Title, a.Name, a.Description, a.Area, a.SubCategory}, " "))
}

// Clone returns a deep copy of the activity
func (a Activity) Clone() Activity {
	out := a
	if a.Coords != nil {
		c := *a.Coords
		out.Coords = &c
	}
	if a.StartTime != nil {
		t := *a.StartTime
		out.StartTime = &t
	}
	if a.TransportToNext != nil {
		tr := *a.TransportToNext
		out.TransportToNext = &tr
	}
	return out
}

// Day is one calendar day of the trip; activity order is visiting order
type Day struct {
	Number     int        `json:"number"`
	Date       time.Time  `json:"date"`
	Activities []Activity `json:"activities"`
	Location   string     `json:"location,omitempty"`
}

// ActivityIDs returns the ids of the day's activities in order
func (d *Day) ActivityIDs() []string {
	ids := make([]string, len(d.Activities))
	for i := range d.Activities {
		ids[i] = d.Activities[i].ID
	}
	return ids
}

// Lodging is the base accommodation used for a run of days
type Lodging struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Address    string      `json:"address,omitempty"`
	Coords     Coordinates `json:"coords"`
	City       string      `json:"city"`
	SegmentKey string      `json:"segment_key,omitempty"`
}

// GetCoords returns the coordinates of the lodging
func (l *Lodging) GetCoords() Coordinates {
	return l.Coords
}
