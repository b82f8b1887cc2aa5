package planning

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"itinerary-optimizer/internal/cities"
	"itinerary-optimizer/internal/clustering"
	"itinerary-optimizer/internal/distance"
	"itinerary-optimizer/internal/lodging"
	"itinerary-optimizer/internal/models"
)

// jetlagKeywords mark activities that are too demanding for an arrival day
var jetlagKeywords = []string{
	"onsen", "hot spring", "sento",
	"hiking", "hike", "trek", "trail", "climb", "summit",
	"nightlife", "bar hopping", "pub crawl", "nightclub", "club night",
	"intensive", "marathon", "full-day", "full day", "all-day",
}

var jetlagCategories = map[models.ActivityCategory]bool{
	models.CategoryOnsen:     true,
	models.CategoryHiking:    true,
	models.CategoryNightlife: true,
}

// IsJetlagUnfriendly reports whether an activity should not be scheduled on arrival day
func IsJetlagUnfriendly(a *models.Activity) bool {
	if jetlagCategories[a.Category] {
		return true
	}
	text := cities.Fold(a.Title + " " + a.Name + " " + a.SubCategory + " " + a.Description)
	for _, kw := range jetlagKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// PhaseReport counts what the phase rules changed
type PhaseReport struct {
	LastDayRelocated int      `json:"last_day_relocated"`
	JetlagRelocated  int      `json:"jetlag_relocated"`
	Day1Overflow     int      `json:"day1_overflow"`
	LastDayOverflow  int      `json:"last_day_overflow"`
	Warnings         []string `json:"warnings,omitempty"`
}

// PhaseRules applies the arrival day and departure day constraints
type PhaseRules struct {
	resolver   *cities.Resolver
	lookup     lodging.Lookup
	day1Cap    int
	lastDayCap int
}

// NewPhaseRules creates the rule set; non-positive caps select the defaults
func NewPhaseRules(resolver *cities.Resolver, lookup lodging.Lookup, day1Cap, lastDayCap int) *PhaseRules {
	if day1Cap <= 0 {
		day1Cap = DefaultDay1Cap
	}
	if lastDayCap <= 0 {
		lastDayCap = DefaultLastDayCap
	}
	return &PhaseRules{resolver: resolver, lookup: lookup, day1Cap: day1Cap, lastDayCap: lastDayCap}
}

// Apply empties the departure day, filters and caps the arrival day and caps
// the departure day when its activities had nowhere else to go
func (p *PhaseRules) Apply(it *models.Itinerary) (*models.Itinerary, PhaseReport) {
	out := it.Clone()
	report := PhaseReport{}

	if len(out.Days) < 2 {
		report.Warnings = append(report.Warnings, "single-day itinerary: phase rules skipped")
		return out, report
	}

	lodgings := dayLodgings(out, p.resolver, p.lookup)
	first := out.Days[0].Number
	last := out.LastDayNumber()
	interior := interiorNumbers(out)

	// Departure day
	lastDay := out.DayByNumber(last)
	if len(interior) > 0 {
		for _, id := range lastDay.ActivityIDs() {
			target := leastLoaded(out, interior)
			out.MoveActivity(id, last, target)
			report.LastDayRelocated++
		}
	} else if len(lastDay.Activities) > p.lastDayCap {
		keep := rankByProximity(lastDay.Activities, lodgingCoords(lodgings[last]))
		for _, a := range keep[p.lastDayCap:] {
			out.MoveActivity(a.ID, last, first)
			report.LastDayOverflow++
		}
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("no interior day: %d departure-day activities moved to day %d", report.LastDayOverflow, first))
	}

	// Arrival day
	day1 := out.DayByNumber(first)
	for _, a := range append([]models.Activity(nil), day1.Activities...) {
		if !IsJetlagUnfriendly(&a) {
			continue
		}
		if len(interior) == 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%q is demanding for an arrival day but no interior day can take it", a.DisplayName()))
			continue
		}
		out.MoveActivity(a.ID, first, leastLoaded(out, interior))
		report.JetlagRelocated++
	}

	day1 = out.DayByNumber(first)
	if len(day1.Activities) > p.day1Cap {
		if len(interior) == 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("day %d holds %d activities but no interior day can take the overflow", first, len(day1.Activities)))
		} else {
			ranked := rankByIconic(day1.Activities, lodgingCoords(lodgings[first]))
			for _, a := range ranked[p.day1Cap:] {
				out.MoveActivity(a.ID, first, leastLoaded(out, interior))
				report.Day1Overflow++
			}
		}
	}

	for _, w := range report.Warnings {
		log.Printf("[PHASE] %s", w)
	}
	log.Printf("[PHASE] Applied: last_day_relocated=%d jetlag=%d day1_overflow=%d last_day_overflow=%d",
		report.LastDayRelocated, report.JetlagRelocated, report.Day1Overflow, report.LastDayOverflow)

	return out, report
}

// rankByIconic orders activities by iconic score, breaking ties by proximity to
// the reference point and then by input order
func rankByIconic(activities []models.Activity, ref *models.Coordinates) []models.Activity {
	ranked := append([]models.Activity(nil), activities...)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := clustering.IconicScore(&ranked[i]), clustering.IconicScore(&ranked[j])
		if si != sj {
			return si > sj
		}
		return proximity(&ranked[i], ref) < proximity(&ranked[j], ref)
	})
	return ranked
}

// rankByProximity orders activities nearest first; activities without
// coordinates or without a reference point keep input order at the end
func rankByProximity(activities []models.Activity, ref *models.Coordinates) []models.Activity {
	ranked := append([]models.Activity(nil), activities...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return proximity(&ranked[i], ref) < proximity(&ranked[j], ref)
	})
	return ranked
}

func proximity(a *models.Activity, ref *models.Coordinates) float64 {
	if ref == nil || !a.HasCoords() {
		return math.Inf(1)
	}
	return distance.Between(*a.Coords, *ref)
}
