package balancing

import (
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/sequencing"
)

// LoadLevel buckets a day's load score
type LoadLevel string

const (
	LevelEmpty      LoadLevel = "empty"
	LevelLow        LoadLevel = "low"
	LevelLight      LoadLevel = "light"
	LevelBalanced   LoadLevel = "balanced"
	LevelHeavy      LoadLevel = "heavy"
	LevelOverloaded LoadLevel = "overloaded"
)

// FactorScores holds the five partial scores of a day
type FactorScores struct {
	Count     int `json:"count"`     // 0-30
	Duration  int `json:"duration"`  // 0-25
	Transport int `json:"transport"` // 0-20
	Cost      int `json:"cost"`      // 0-15
	Zones     int `json:"zones"`     // 0-10
}

// Total sums the partial scores
func (f FactorScores) Total() int {
	return f.Count + f.Duration + f.Transport + f.Cost + f.Zones
}

// DayLoad is the scored load of one day
type DayLoad struct {
	DayNumber        int          `json:"day_number"`
	City             string       `json:"city,omitempty"`
	Score            int          `json:"score"`
	Level            LoadLevel    `json:"level"`
	Factors          FactorScores `json:"factors"`
	ActivityCount    int          `json:"activity_count"`
	DurationMinutes  int          `json:"duration_minutes"`
	TransportMinutes int          `json:"transport_minutes"`
	Cost             float64      `json:"cost"`
	Zones            int          `json:"zones"`
}

// ScoreDay computes the 0-100 load of a day
func (b *Balancer) ScoreDay(day *models.Day) DayLoad {
	city := b.resolver.ResolveDay(day).City
	load := DayLoad{
		DayNumber:     day.Number,
		City:          city,
		ActivityCount: len(day.Activities),
	}
	for i := range day.Activities {
		load.DurationMinutes += day.Activities[i].DurationMinutes
		load.Cost += day.Activities[i].Cost
	}
	load.TransportMinutes = sequencing.ComputeStats(day.Activities).TravelMinutes
	load.Zones = b.clusterer.ZoneCount(day.Activities, city)

	load.Factors = FactorScores{
		Count:     countScore(load.ActivityCount),
		Duration:  durationScore(load.ActivityCount, load.DurationMinutes),
		Transport: transportScore(load.ActivityCount, load.TransportMinutes),
		Cost:      costScore(load.Cost),
		Zones:     zoneScore(load.Zones),
	}
	load.Score = load.Factors.Total()
	load.Level = levelFor(load.ActivityCount, load.Score)
	return load
}

func countScore(n int) int {
	switch {
	case n == 0:
		return 0
	case n <= 2:
		return 10
	case n <= 4:
		return 18
	case n <= 6:
		return 25
	default:
		return 30
	}
}

func durationScore(n, minutes int) int {
	switch {
	case n == 0:
		return 0
	case minutes < 120:
		return 5
	case minutes < 240:
		return 10
	case minutes < 360:
		return 15
	case minutes < 480:
		return 20
	default:
		return 25
	}
}

func transportScore(n, minutes int) int {
	switch {
	case n == 0:
		return 0
	case minutes < 30:
		return 5
	case minutes < 60:
		return 10
	case minutes < 90:
		return 15
	default:
		return 20
	}
}

func costScore(cost float64) int {
	switch {
	case cost <= 0:
		return 0
	case cost < 3000:
		return 5
	case cost < 8000:
		return 10
	default:
		return 15
	}
}

func zoneScore(zones int) int {
	switch {
	case zones <= 0:
		return 0
	case zones == 1:
		return 2
	case zones == 2:
		return 5
	case zones == 3:
		return 8
	default:
		return 10
	}
}

func levelFor(n, score int) LoadLevel {
	switch {
	case n == 0:
		return LevelEmpty
	case score < 25:
		return LevelLow
	case score < 45:
		return LevelLight
	case score < 70:
		return LevelBalanced
	case score < 85:
		return LevelHeavy
	default:
		return LevelOverloaded
	}
}
