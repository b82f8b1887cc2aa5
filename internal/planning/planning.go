// Package planning holds the day-level heuristics of the engine: assigning
// activities to days, first/last day rules, trip context and mixed-day repair.
// Every operation works on a deep copy and returns the transformed itinerary.
package planning

import (
	"itinerary-optimizer/internal/cities"
	"itinerary-optimizer/internal/lodging"
	"itinerary-optimizer/internal/models"
)

// Default caps applied to the first and last day
const (
	DefaultDay1Cap    = 3
	DefaultLastDayCap = 2
)

// EffectiveCities resolves the dominant city of every day. Days without a
// resolvable city inherit the city of the run they sit in: the previous known
// city, or the next one for leading unknown days.
func EffectiveCities(it *models.Itinerary, resolver *cities.Resolver) map[int]string {
	out := make(map[int]string, len(it.Days))
	current := ""
	var pending []int
	for i := range it.Days {
		number := it.Days[i].Number
		city := resolver.ResolveDay(&it.Days[i]).City
		if city == "" {
			city = current
		}
		if city == "" {
			pending = append(pending, number)
			continue
		}
		for _, p := range pending {
			out[p] = city
		}
		pending = nil
		out[number] = city
		current = city
	}
	for _, p := range pending {
		out[p] = ""
	}
	return out
}

// dayLodgings returns the lodging of every day that has one with usable coordinates
func dayLodgings(it *models.Itinerary, resolver *cities.Resolver, lookup lodging.Lookup) map[int]*models.Lodging {
	out := make(map[int]*models.Lodging)
	for number, city := range EffectiveCities(it, resolver) {
		if city == "" {
			continue
		}
		l := lookup.LodgingForCity(it, city, number)
		if l == nil || !l.Coords.IsValid() {
			continue
		}
		out[number] = l
	}
	return out
}

// leastLoaded picks the candidate day with the fewest activities; ties go to the lowest number.
// It returns 0 when there is no candidate.
func leastLoaded(it *models.Itinerary, candidates []int) int {
	best := 0
	bestCount := 0
	for _, number := range candidates {
		day := it.DayByNumber(number)
		if day == nil {
			continue
		}
		n := len(day.Activities)
		if best == 0 || n < bestCount || (n == bestCount && number < best) {
			best = number
			bestCount = n
		}
	}
	return best
}

func interiorNumbers(it *models.Itinerary) []int {
	var out []int
	for _, d := range it.InteriorDays() {
		out = append(out, d.Number)
	}
	return out
}

// relocationTargets lists days that may receive a relocated activity: never
// the source, never the departure day when interior days exist, and day 1
// only while it is below its cap.
func relocationTargets(it *models.Itinerary, source int, day1Cap int, keep func(number int) bool) []int {
	var out []int
	first := 0
	if len(it.Days) > 0 {
		first = it.Days[0].Number
	}
	hasInterior := len(it.Days) >= 3
	for i := range it.Days {
		d := &it.Days[i]
		if d.Number == source {
			continue
		}
		if hasInterior && d.Number == it.LastDayNumber() {
			continue
		}
		if d.Number == first && hasInterior && len(d.Activities) >= day1Cap {
			continue
		}
		if keep != nil && !keep(d.Number) {
			continue
		}
		out = append(out, d.Number)
	}
	return out
}

func lodgingCoords(l *models.Lodging) *models.Coordinates {
	if l == nil || !l.Coords.IsValid() {
		return nil
	}
	c := l.Coords
	return &c
}
