package planning

import (
	"log"
	"math"

	"itinerary-optimizer/internal/cities"
	"itinerary-optimizer/internal/distance"
	"itinerary-optimizer/internal/lodging"
	"itinerary-optimizer/internal/models"
)

// DefaultPriorityRadiusKm is the distance under which an activity is committed
// to its nearest lodging's day in the priority pass
const DefaultPriorityRadiusKm = 1.0

const tieEpsilonKm = 1e-9

// AssignmentStats summarises one assignment run
type AssignmentStats struct {
	Total      int `json:"total"`
	Priority   int `json:"priority"`    // committed in the priority pass
	Nearest    int `json:"nearest"`     // placed by the remainder scan
	KeptInDay  int `json:"kept_in_day"` // no coordinates, left on their original day
	Unassigned int `json:"unassigned"`  // no lodging anywhere, parked on day 1
	Moved      int `json:"moved"`       // ended on a different day than they started
}

// Assigner places every activity of a trip on the day whose lodging is nearest
type Assigner struct {
	resolver         *cities.Resolver
	lookup           lodging.Lookup
	priorityRadiusKm float64
}

// NewAssigner creates an assigner; a non-positive radius selects the default
func NewAssigner(resolver *cities.Resolver, lookup lodging.Lookup, priorityRadiusKm float64) *Assigner {
	if priorityRadiusKm <= 0 {
		priorityRadiusKm = DefaultPriorityRadiusKm
	}
	return &Assigner{resolver: resolver, lookup: lookup, priorityRadiusKm: priorityRadiusKm}
}

type pooled struct {
	act      models.Activity
	original int
	assigned int
}

// Assign strips all activities from their days and re-distributes them in two
// greedy passes. Every input activity ends on exactly one day.
func (a *Assigner) Assign(it *models.Itinerary) (*models.Itinerary, AssignmentStats) {
	out := it.Clone()
	stats := AssignmentStats{}
	if len(out.Days) == 0 {
		return out, stats
	}

	lodgings := dayLodgings(out, a.resolver, a.lookup)
	firstDay := out.Days[0].Number

	var pool []*pooled
	for i := range out.Days {
		for _, act := range out.Days[i].Activities {
			pool = append(pool, &pooled{act: act, original: out.Days[i].Number})
		}
	}
	stats.Total = len(pool)

	log.Printf("[ASSIGN] Starting assignment: activities=%d days=%d lodgings=%d radius=%.2fkm",
		len(pool), len(out.Days), len(lodgings), a.priorityRadiusKm)

	load := make(map[int]int)

	// Priority pass
	for _, p := range pool {
		if !p.act.HasCoords() {
			continue
		}
		day, km := a.nearestDay(out, lodgings, p, load)
		if day != 0 && km < a.priorityRadiusKm {
			p.assigned = day
			load[day]++
			stats.Priority++
		}
	}

	// Remainder pass
	for _, p := range pool {
		if p.assigned != 0 {
			continue
		}
		if !p.act.HasCoords() {
			p.assigned = p.original
			if out.DayByNumber(p.assigned) == nil {
				p.assigned = firstDay
			}
			load[p.assigned]++
			stats.KeptInDay++
			continue
		}
		day, _ := a.nearestDay(out, lodgings, p, load)
		if day == 0 {
			p.assigned = firstDay
			load[firstDay]++
			stats.Unassigned++
			log.Printf("[ASSIGN] No lodging resolvable for activity=%s, parked on day %d", p.act.ID, firstDay)
			continue
		}
		p.assigned = day
		load[day]++
		stats.Nearest++
	}

	for i := range out.Days {
		out.Days[i].Activities = nil
	}
	for _, p := range pool {
		day := out.DayByNumber(p.assigned)
		day.Activities = append(day.Activities, p.act)
		if p.assigned != p.original {
			stats.Moved++
		}
	}

	log.Printf("[ASSIGN] Done: priority=%d nearest=%d kept=%d unassigned=%d moved=%d",
		stats.Priority, stats.Nearest, stats.KeptInDay, stats.Unassigned, stats.Moved)

	return out, stats
}

// nearestDay scans every day's lodging. Equally near days prefer the
// activity's original day, then the least-loaded day, then the lowest number.
func (a *Assigner) nearestDay(it *models.Itinerary, lodgings map[int]*models.Lodging, p *pooled, load map[int]int) (int, float64) {
	best := 0
	bestKm := math.Inf(1)
	for i := range it.Days {
		number := it.Days[i].Number
		l, ok := lodgings[number]
		if !ok {
			continue
		}
		km := distance.Between(*p.act.Coords, l.Coords)
		switch {
		case best == 0 || km < bestKm-tieEpsilonKm:
			best, bestKm = number, km
		case math.Abs(km-bestKm) <= tieEpsilonKm && a.preferOnTie(number, best, p.original, load):
			best = number
		}
	}
	return best, bestKm
}

func (a *Assigner) preferOnTie(candidate, current, original int, load map[int]int) bool {
	if current == original {
		return false
	}
	if candidate == original {
		return true
	}
	if load[candidate] != load[current] {
		return load[candidate] < load[current]
	}
	return candidate < current
}
