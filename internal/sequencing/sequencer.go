package sequencing

import (
	"fmt"
	"log"
	"sort"

	"itinerary-optimizer/internal/distance"
	"itinerary-optimizer/internal/models"
)

// Mode selects the ordering strategy
type Mode string

const (
	ModeTime      Mode = "time"      // chronological
	ModeGeography Mode = "geography" // nearest-neighbor tour
	ModeBalanced  Mode = "balanced"  // nearest-neighbor inside 3-hour windows
)

// ParseMode validates a mode string; empty selects balanced
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeBalanced, nil
	case ModeTime, ModeGeography, ModeBalanced:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown sequencing mode %q", s)
}

const (
	// DefaultBufferMinutes is added after every transfer
	DefaultBufferMinutes = 10
	// WindowMinutes is the width of a balanced-mode time window
	WindowMinutes = 180
)

// DefaultDayStart is used when neither the caller nor the first activity supplies a time
var DefaultDayStart = models.NewTimeOfDay(9, 0)

// Options controls a sequencing run
type Options struct {
	Mode       Mode                `json:"mode"`
	StartPoint *models.Coordinates `json:"start_point,omitempty"`
	StartTime  *models.TimeOfDay   `json:"start_time,omitempty"`
}

// Stats summarises the transfers of an ordered list
type Stats struct {
	TravelMinutes int     `json:"travel_minutes"`
	Cost          float64 `json:"cost"`
	DistanceKm    float64 `json:"distance_km"`
}

// Sub returns s minus o
func (s Stats) Sub(o Stats) Stats {
	return Stats{
		TravelMinutes: s.TravelMinutes - o.TravelMinutes,
		Cost:          s.Cost - o.Cost,
		DistanceKm:    s.DistanceKm - o.DistanceKm,
	}
}

// Add returns s plus o
func (s Stats) Add(o Stats) Stats {
	return Stats{
		TravelMinutes: s.TravelMinutes + o.TravelMinutes,
		Cost:          s.Cost + o.Cost,
		DistanceKm:    s.DistanceKm + o.DistanceKm,
	}
}

// Result is the outcome of sequencing one day
type Result struct {
	Activities   []models.Activity `json:"activities"`
	WasOptimized bool              `json:"was_optimized"`
	Mode         Mode              `json:"mode"`
	Original     Stats             `json:"original"`
	Optimized    Stats             `json:"optimized"`
	Savings      Stats             `json:"savings"`
}

// Sequencer orders a day's activities and recomputes their timings
type Sequencer struct {
	bufferMinutes int
}

// NewSequencer creates a sequencer with the given transfer buffer
func NewSequencer(bufferMinutes int) *Sequencer {
	if bufferMinutes < 0 {
		bufferMinutes = DefaultBufferMinutes
	}
	return &Sequencer{bufferMinutes: bufferMinutes}
}

// Sequence orders activities according to opts.Mode. Without opts.StartTime the
// day keeps the earliest start time of its input. The input slice is not modified.
func (s *Sequencer) Sequence(activities []models.Activity, opts Options) Result {
	mode := opts.Mode
	if mode == "" {
		mode = ModeBalanced
	}

	input := cloneAll(activities)
	if countWithCoords(input) < 2 {
		return Result{Activities: input, WasOptimized: false, Mode: mode}
	}

	original := ComputeStats(input)

	var ordered []models.Activity
	switch mode {
	case ModeTime:
		ordered = sortChronologically(input)
	case ModeGeography:
		ordered = nearestNeighbor(input, opts.StartPoint)
	default:
		ordered = s.balanced(input, opts.StartPoint)
	}

	start := opts.StartTime
	if start == nil {
		start = earliestStart(input)
	}
	ordered = s.RecalculateTimings(ordered, start)
	optimized := ComputeStats(ordered)

	log.Printf("[SEQUENCE] mode=%s activities=%d distance=%.1fkm->%.1fkm travel=%dmin->%dmin",
		mode, len(ordered), original.DistanceKm, optimized.DistanceKm, original.TravelMinutes, optimized.TravelMinutes)

	return Result{
		Activities:   ordered,
		WasOptimized: true,
		Mode:         mode,
		Original:     original,
		Optimized:    optimized,
		Savings:      original.Sub(optimized),
	}
}

// RecalculateTimings walks the list assigning start times and transfer estimates.
// It starts from startTime, else the first activity's own time, else 09:00.
func (s *Sequencer) RecalculateTimings(activities []models.Activity, startTime *models.TimeOfDay) []models.Activity {
	out := cloneAll(activities)
	if len(out) == 0 {
		return out
	}

	current := DefaultDayStart
	switch {
	case startTime != nil:
		current = *startTime
	case out[0].StartTime != nil:
		current = *out[0].StartTime
	}

	for i := range out {
		t := current
		out[i].StartTime = &t
		duration := out[i].DurationMinutes
		if duration <= 0 {
			duration = models.DefaultDurationMinutes
		}
		current = current.Add(duration)

		if i == len(out)-1 {
			out[i].TransportToNext = nil
			break
		}
		est := distance.TransportEstimateFor(distance.ActivityDistance(&out[i], &out[i+1]))
		out[i].TransportToNext = &est
		current = current.Add(est.Minutes + s.bufferMinutes)
	}
	return out
}

// earliestStart returns the earliest scheduled start among the activities, nil when none is scheduled
func earliestStart(activities []models.Activity) *models.TimeOfDay {
	var first *models.TimeOfDay
	for i := range activities {
		t := activities[i].StartTime
		if t != nil && (first == nil || *t < *first) {
			v := *t
			first = &v
		}
	}
	return first
}

// ComputeStats sums transfers between consecutive coordinate-bearing activities
func ComputeStats(activities []models.Activity) Stats {
	var st Stats
	var prev *models.Activity
	for i := range activities {
		if !activities[i].HasCoords() {
			continue
		}
		if prev != nil {
			d := distance.Between(*prev.Coords, *activities[i].Coords)
			est := distance.TransportEstimateFor(d)
			st.DistanceKm += d
			st.TravelMinutes += est.Minutes
			st.Cost += est.Cost
		}
		prev = &activities[i]
	}
	return st
}

// sortChronologically orders scheduled activities by start time; unscheduled
// activities follow in their input order
func sortChronologically(activities []models.Activity) []models.Activity {
	var scheduled, unscheduled []models.Activity
	for _, a := range activities {
		if a.StartTime != nil {
			scheduled = append(scheduled, a)
		} else {
			unscheduled = append(unscheduled, a)
		}
	}
	sort.SliceStable(scheduled, func(i, j int) bool {
		return *scheduled[i].StartTime < *scheduled[j].StartTime
	})
	return append(scheduled, unscheduled...)
}

// nearestNeighbor builds a tour from start (or the first activity), always
// visiting the nearest unvisited activity. Ties keep input order. Activities
// without coordinates are appended at the end.
func nearestNeighbor(activities []models.Activity, start *models.Coordinates) []models.Activity {
	var located, unlocated []models.Activity
	for _, a := range activities {
		if a.HasCoords() {
			located = append(located, a)
		} else {
			unlocated = append(unlocated, a)
		}
	}
	if len(located) == 0 {
		return append(located, unlocated...)
	}

	ordered := make([]models.Activity, 0, len(activities))
	visited := make([]bool, len(located))

	var current models.Coordinates
	if start != nil && start.IsValid() {
		current = *start
	} else {
		ordered = append(ordered, located[0])
		visited[0] = true
		current = *located[0].Coords
	}

	for len(ordered) < len(located) {
		best := -1
		bestDist := 0.0
		for i := range located {
			if visited[i] {
				continue
			}
			d := distance.Between(current, *located[i].Coords)
			if best < 0 || d < bestDist {
				best = i
				bestDist = d
			}
		}
		visited[best] = true
		ordered = append(ordered, located[best])
		current = *located[best].Coords
	}

	return append(ordered, unlocated...)
}

// balanced sorts chronologically, buckets into 3-hour windows and runs
// nearest-neighbor inside each window, carrying the position across windows
func (s *Sequencer) balanced(activities []models.Activity, start *models.Coordinates) []models.Activity {
	chrono := sortChronologically(activities)

	var windows [][]models.Activity
	var first, nominal models.TimeOfDay
	for i, a := range chrono {
		switch {
		case a.StartTime != nil:
			nominal = *a.StartTime
		case i == 0:
			nominal = DefaultDayStart
		}
		if i == 0 {
			first = nominal
		}
		idx := int(nominal-first) / WindowMinutes
		if idx < 0 {
			idx = 0
		}
		for len(windows) <= idx {
			windows = append(windows, nil)
		}
		windows[idx] = append(windows[idx], a)

		nominal = nominal.Add(a.DurationMinutes)
	}

	out := make([]models.Activity, 0, len(activities))
	position := start
	for _, w := range windows {
		if len(w) == 0 {
			continue
		}
		ordered := nearestNeighbor(w, position)
		out = append(out, ordered...)
		for i := len(ordered) - 1; i >= 0; i-- {
			if ordered[i].HasCoords() {
				c := *ordered[i].Coords
				position = &c
				break
			}
		}
	}
	return out
}

func countWithCoords(activities []models.Activity) int {
	n := 0
	for i := range activities {
		if activities[i].HasCoords() {
			n++
		}
	}
	return n
}

func cloneAll(activities []models.Activity) []models.Activity {
	out := make([]models.Activity, len(activities))
	for i := range activities {
		out[i] = activities[i].Clone()
	}
	return out
}
