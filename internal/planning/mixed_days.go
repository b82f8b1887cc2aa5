package planning

import (
	"fmt"
	"log"

	"itinerary-optimizer/internal/cities"
	"itinerary-optimizer/internal/lodging"
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/sequencing"
)

// UnresolvableRelocation records a minority-city activity that had no day of its own city to go to
type UnresolvableRelocation struct {
	ActivityID string `json:"activity_id"`
	Title      string `json:"title"`
	City       string `json:"city"`
	DayNumber  int    `json:"day_number"`
	DayCity    string `json:"day_city"`
}

func (u UnresolvableRelocation) String() string {
	return fmt.Sprintf("%q (%s) stays on day %d (%s): no %s day available", u.Title, u.City, u.DayNumber, u.DayCity, u.City)
}

// MixedDayStats summarises one correction run
type MixedDayStats struct {
	MixedDays    int                      `json:"mixed_days"`
	Relocated    int                      `json:"relocated"`
	Unresolvable []UnresolvableRelocation `json:"unresolvable,omitempty"`
	ChangedDays  []int                    `json:"changed_days,omitempty"`
}

// MixedDayCorrector moves minority-city activities out of mixed days
type MixedDayCorrector struct {
	resolver  *cities.Resolver
	lookup    lodging.Lookup
	sequencer *sequencing.Sequencer
	day1Cap   int
	locked    map[int]bool
}

// NewMixedDayCorrector creates a corrector
func NewMixedDayCorrector(resolver *cities.Resolver, lookup lodging.Lookup, sequencer *sequencing.Sequencer, day1Cap int) *MixedDayCorrector {
	if day1Cap <= 0 {
		day1Cap = DefaultDay1Cap
	}
	return &MixedDayCorrector{resolver: resolver, lookup: lookup, sequencer: sequencer, day1Cap: day1Cap}
}

// WithLockedDays returns a corrector that leaves the given days untouched:
// their activities stay and nothing is moved onto them
func (c *MixedDayCorrector) WithLockedDays(days map[int]bool) *MixedDayCorrector {
	cp := *c
	cp.locked = days
	return &cp
}

// Correct relocates every activity whose city differs from its day's dominant
// city to the least-loaded other day of that city, then re-sequences every day
// whose membership changed. Day cities are resolved once before any move.
func (c *MixedDayCorrector) Correct(it *models.Itinerary) (*models.Itinerary, MixedDayStats) {
	out := it.Clone()
	stats := MixedDayStats{}

	resolved := c.resolver.ResolveDays(out)
	changed := make(map[int]bool)

	for i := range out.Days {
		number := out.Days[i].Number
		dc := resolved[number]
		if !dc.Mixed || dc.City == "" || c.locked[number] {
			continue
		}
		stats.MixedDays++

		for _, act := range append([]models.Activity(nil), out.Days[i].Activities...) {
			city := c.resolver.ResolveActivity(&act)
			if city == "" || city == dc.City {
				continue
			}
			targets := relocationTargets(out, number, c.day1Cap, func(n int) bool {
				return resolved[n].City == city && !c.locked[n]
			})
			target := leastLoaded(out, targets)
			if target == 0 {
				u := UnresolvableRelocation{
					ActivityID: act.ID,
					Title:      act.DisplayName(),
					City:       city,
					DayNumber:  number,
					DayCity:    dc.City,
				}
				stats.Unresolvable = append(stats.Unresolvable, u)
				log.Printf("[MIXED] %s", u)
				continue
			}
			out.MoveActivity(act.ID, number, target)
			stats.Relocated++
			changed[number] = true
			changed[target] = true
		}
	}

	for i := range out.Days {
		number := out.Days[i].Number
		if !changed[number] {
			continue
		}
		stats.ChangedDays = append(stats.ChangedDays, number)
		c.resequence(out, &out.Days[i], resolved[number].City)
	}

	log.Printf("[MIXED] Corrected: mixed_days=%d relocated=%d unresolvable=%d changed_days=%v",
		stats.MixedDays, stats.Relocated, len(stats.Unresolvable), stats.ChangedDays)
	return out, stats
}

func (c *MixedDayCorrector) resequence(it *models.Itinerary, day *models.Day, city string) {
	var start *models.Coordinates
	if city != "" {
		start = lodgingCoords(c.lookup.LodgingForCity(it, city, day.Number))
	}
	res := c.sequencer.Sequence(day.Activities, sequencing.Options{Mode: sequencing.ModeBalanced, StartPoint: start})
	day.Activities = res.Activities
}
