package planning

import (
	"fmt"
	"log"

	"itinerary-optimizer/internal/cities"
	"itinerary-optimizer/internal/distance"
	"itinerary-optimizer/internal/lodging"
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/sequencing"
)

// PhaseName is a narrative phase of the trip
type PhaseName string

const (
	PhaseArrival     PhaseName = "arrival"
	PhaseExploration PhaseName = "exploration"
	PhaseDeepDive    PhaseName = "deepDive"
	PhaseClosure     PhaseName = "closure"
	PhaseDeparture   PhaseName = "departure"
)

// Intensity is the pacing tier of a phase
type Intensity string

const (
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityIntense  Intensity = "intense"
)

// PriorityFactors bias which activities suit a phase. They are informational.
type PriorityFactors struct {
	Emblematic float64 `json:"emblematic"`
	Authentic  float64 `json:"authentic"`
	Convenient float64 `json:"convenient"`
}

// TripPhase groups the days that share a narrative phase
type TripPhase struct {
	Name          PhaseName       `json:"name"`
	Days          []int           `json:"days"`
	Intensity     Intensity       `json:"intensity"`
	MaxActivities int             `json:"max_activities"`
	Priorities    PriorityFactors `json:"priorities"`
}

type phaseProfile struct {
	intensity     Intensity
	maxActivities int
	priorities    PriorityFactors
}

var phaseProfiles = map[PhaseName]phaseProfile{
	PhaseArrival:     {IntensityLight, 3, PriorityFactors{Emblematic: 0.5, Authentic: 0.1, Convenient: 0.4}},
	PhaseExploration: {IntensityModerate, 5, PriorityFactors{Emblematic: 0.5, Authentic: 0.3, Convenient: 0.2}},
	PhaseDeepDive:    {IntensityIntense, 6, PriorityFactors{Emblematic: 0.2, Authentic: 0.6, Convenient: 0.2}},
	PhaseClosure:     {IntensityModerate, 4, PriorityFactors{Emblematic: 0.3, Authentic: 0.4, Convenient: 0.3}},
	PhaseDeparture:   {IntensityLight, 2, PriorityFactors{Emblematic: 0.2, Authentic: 0.1, Convenient: 0.7}},
}

// PhaseCap returns the maximum activities per day for a phase
func PhaseCap(name PhaseName) int {
	return phaseProfiles[name].maxActivities
}

// PhaseForPosition maps a day index to its phase. Interior days are bucketed
// by relative position: up to 30% exploration, up to 70% deep dive, then closure.
func PhaseForPosition(index, total int) PhaseName {
	switch {
	case index == 0:
		return PhaseArrival
	case index == total-1:
		return PhaseDeparture
	}
	pos := float64(index) / float64(total-1)
	switch {
	case pos <= 0.3:
		return PhaseExploration
	case pos <= 0.7:
		return PhaseDeepDive
	default:
		return PhaseClosure
	}
}

// CitySegment is a maximal run of consecutive days in the same city
type CitySegment struct {
	City     string `json:"city"`
	StartDay int    `json:"start_day"`
	EndDay   int    `json:"end_day"`
	Days     []int  `json:"days"`
}

// Contains reports whether the day falls inside the segment
func (s CitySegment) Contains(number int) bool {
	return number >= s.StartDay && number <= s.EndDay
}

// Transition marks the first day of a segment that follows another segment
type Transition struct {
	DayNumber int    `json:"day_number"`
	FromCity  string `json:"from_city"`
	ToCity    string `json:"to_city"`
}

// TripContext is the segment and phase view of an itinerary
type TripContext struct {
	Segments    []CitySegment          `json:"segments"`
	Phases      []TripPhase            `json:"phases"`
	DayPhases   map[int]PhaseName      `json:"day_phases"`
	Transitions []Transition           `json:"transitions"`
	DayCities   map[int]cities.DayCity `json:"day_cities"`
}

// SegmentFor returns the segment containing the day
func (c *TripContext) SegmentFor(number int) (CitySegment, bool) {
	for _, s := range c.Segments {
		if s.Contains(number) {
			return s, true
		}
	}
	return CitySegment{}, false
}

// LodgingRanges converts the segments into ranges for segment-key assignment
func (c *TripContext) LodgingRanges() []lodging.Range {
	out := make([]lodging.Range, 0, len(c.Segments))
	for _, s := range c.Segments {
		out = append(out, lodging.Range{City: s.City, StartDay: s.StartDay, EndDay: s.EndDay})
	}
	return out
}

// AnalyzeContext segments the trip by city and assigns positional phases
func AnalyzeContext(it *models.Itinerary, resolver *cities.Resolver) TripContext {
	tc := TripContext{
		DayPhases: make(map[int]PhaseName, len(it.Days)),
		DayCities: resolver.ResolveDays(it),
	}
	effective := EffectiveCities(it, resolver)

	for i := range it.Days {
		number := it.Days[i].Number
		city := effective[number]
		n := len(tc.Segments)
		if n > 0 && tc.Segments[n-1].City == city {
			tc.Segments[n-1].EndDay = number
			tc.Segments[n-1].Days = append(tc.Segments[n-1].Days, number)
			continue
		}
		if n > 0 {
			tc.Transitions = append(tc.Transitions, Transition{
				DayNumber: number,
				FromCity:  tc.Segments[n-1].City,
				ToCity:    city,
			})
		}
		tc.Segments = append(tc.Segments, CitySegment{City: city, StartDay: number, EndDay: number, Days: []int{number}})
	}

	index := make(map[PhaseName]int)
	for i := range it.Days {
		name := PhaseForPosition(i, len(it.Days))
		tc.DayPhases[it.Days[i].Number] = name
		if at, ok := index[name]; ok {
			tc.Phases[at].Days = append(tc.Phases[at].Days, it.Days[i].Number)
			continue
		}
		profile := phaseProfiles[name]
		index[name] = len(tc.Phases)
		tc.Phases = append(tc.Phases, TripPhase{
			Name:          name,
			Days:          []int{it.Days[i].Number},
			Intensity:     profile.intensity,
			MaxActivities: profile.maxActivities,
			Priorities:    profile.priorities,
		})
	}

	log.Printf("[CONTEXT] Analyzed trip: days=%d segments=%d transitions=%d",
		len(it.Days), len(tc.Segments), len(tc.Transitions))
	return tc
}

// Transition day caps and block start times
const (
	PreTransitionCap  = 2
	PostTransitionCap = 1
)

var (
	MorningBlockStart = models.NewTimeOfDay(9, 0)
	EveningBlockStart = models.NewTimeOfDay(17, 0)
)

// SplitReport describes the outcome of splitting one transition day
type SplitReport struct {
	DayNumber int      `json:"day_number"`
	Pre       []string `json:"pre"`
	Post      []string `json:"post"`
	Relocated int      `json:"relocated"`
	Warnings  []string `json:"warnings,omitempty"`
}

// TransitionSplitter splits transition days into a morning block in the
// outgoing city and an evening block in the incoming city
type TransitionSplitter struct {
	resolver  *cities.Resolver
	lookup    lodging.Lookup
	sequencer *sequencing.Sequencer
	day1Cap   int
}

// NewTransitionSplitter creates a splitter
func NewTransitionSplitter(resolver *cities.Resolver, lookup lodging.Lookup, sequencer *sequencing.Sequencer, day1Cap int) *TransitionSplitter {
	if day1Cap <= 0 {
		day1Cap = DefaultDay1Cap
	}
	return &TransitionSplitter{resolver: resolver, lookup: lookup, sequencer: sequencer, day1Cap: day1Cap}
}

// SplitAll splits every transition day of the context
func (s *TransitionSplitter) SplitAll(it *models.Itinerary, tc TripContext) (*models.Itinerary, []SplitReport) {
	out := it.Clone()
	var reports []SplitReport
	for _, tr := range tc.Transitions {
		var r SplitReport
		out, r = s.SplitTransitionDay(out, tc, tr)
		reports = append(reports, r)
	}
	return out, reports
}

// SplitTransitionDay buckets the day's activities by the nearer of the outgoing
// and incoming lodgings, caps each bucket, relocates the overflow into the
// matching segment and re-times the morning and evening blocks
func (s *TransitionSplitter) SplitTransitionDay(it *models.Itinerary, tc TripContext, tr Transition) (*models.Itinerary, SplitReport) {
	out := it.Clone()
	report := SplitReport{DayNumber: tr.DayNumber}

	day := out.DayByNumber(tr.DayNumber)
	if day == nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("transition day %d not found", tr.DayNumber))
		return out, report
	}
	if len(day.Activities) == 0 {
		return out, report
	}

	outgoing := lodgingCoords(s.lookup.LodgingForCity(out, tr.FromCity, tr.DayNumber-1))
	incoming := lodgingCoords(s.lookup.LodgingForCity(out, tr.ToCity, tr.DayNumber))

	var pre, post []models.Activity
	for _, a := range day.Activities {
		if s.isPreTransition(&a, tr, outgoing, incoming) {
			pre = append(pre, a)
		} else {
			post = append(post, a)
		}
	}
	pre = rankByProximity(pre, outgoing)
	post = rankByProximity(post, incoming)

	fromSeg, _ := segmentEndingBefore(tc, tr.DayNumber)
	toSeg, _ := tc.SegmentFor(tr.DayNumber)

	pre = s.relocateOverflow(out, &report, pre, PreTransitionCap, tr.DayNumber, fromSeg)
	post = s.relocateOverflow(out, &report, post, PostTransitionCap, tr.DayNumber, toSeg)

	morning := MorningBlockStart
	evening := EveningBlockStart
	pre = s.sequencer.RecalculateTimings(pre, &morning)
	post = s.sequencer.RecalculateTimings(post, &evening)

	day = out.DayByNumber(tr.DayNumber)
	day.Activities = append(pre, post...)
	for _, a := range pre {
		report.Pre = append(report.Pre, a.ID)
	}
	for _, a := range post {
		report.Post = append(report.Post, a.ID)
	}

	for _, w := range report.Warnings {
		log.Printf("[CONTEXT] %s", w)
	}
	log.Printf("[CONTEXT] Split transition day %d (%s -> %s): pre=%d post=%d relocated=%d",
		tr.DayNumber, tr.FromCity, tr.ToCity, len(report.Pre), len(report.Post), report.Relocated)
	return out, report
}

func (s *TransitionSplitter) isPreTransition(a *models.Activity, tr Transition, outgoing, incoming *models.Coordinates) bool {
	if a.HasCoords() && outgoing != nil && incoming != nil {
		return distance.Between(*a.Coords, *outgoing) < distance.Between(*a.Coords, *incoming)
	}
	city := s.resolver.ResolveActivity(a)
	return city != "" && city == tr.FromCity
}

// relocateOverflow keeps the first limit activities and moves the rest to the
// least-loaded other day of seg; activities with nowhere to go stay with a warning
func (s *TransitionSplitter) relocateOverflow(it *models.Itinerary, report *SplitReport, bucket []models.Activity, limit, source int, seg CitySegment) []models.Activity {
	if len(bucket) <= limit {
		return bucket
	}
	kept := bucket[:limit:limit]
	for _, a := range bucket[limit:] {
		targets := relocationTargets(it, source, s.day1Cap, seg.Contains)
		target := leastLoaded(it, targets)
		if target == 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%q stays on transition day %d: no other %s day available", a.DisplayName(), source, seg.City))
			kept = append(kept, a)
			continue
		}
		dest := it.DayByNumber(target)
		dest.Activities = append(dest.Activities, a)
		report.Relocated++
	}
	return kept
}

func segmentEndingBefore(tc TripContext, number int) (CitySegment, bool) {
	for _, seg := range tc.Segments {
		if seg.EndDay == number-1 {
			return seg, true
		}
	}
	return CitySegment{}, false
}

// CapReport describes phase cap enforcement
type CapReport struct {
	Relocated int      `json:"relocated"`
	Warnings  []string `json:"warnings,omitempty"`
}

// EnforcePhaseCaps moves the least iconic activities off interior days that
// exceed their phase's cap. Targets are interior days below their own cap,
// preferring days in the same city. Locked days are neither sources nor targets.
func EnforcePhaseCaps(it *models.Itinerary, tc TripContext, locked map[int]bool) (*models.Itinerary, CapReport) {
	out := it.Clone()
	report := CapReport{}

	var interior []int
	for _, number := range interiorNumbers(out) {
		if !locked[number] {
			interior = append(interior, number)
		}
	}
	for _, number := range interior {
		day := out.DayByNumber(number)
		limit := PhaseCap(tc.DayPhases[number])
		if limit <= 0 || len(day.Activities) <= limit {
			continue
		}

		ranked := rankByIconic(day.Activities, nil)
		for _, a := range ranked[limit:] {
			target := capTarget(out, tc, interior, number)
			if target == 0 {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("day %d exceeds its %s cap of %d and no day has room", number, tc.DayPhases[number], limit))
				break
			}
			out.MoveActivity(a.ID, number, target)
			report.Relocated++
		}
	}

	for _, w := range report.Warnings {
		log.Printf("[ENERGY] %s", w)
	}
	log.Printf("[ENERGY] Phase caps enforced: relocated=%d", report.Relocated)
	return out, report
}

func capTarget(it *models.Itinerary, tc TripContext, interior []int, source int) int {
	srcSeg, _ := tc.SegmentFor(source)
	var same, other []int
	for _, number := range interior {
		if number == source {
			continue
		}
		if len(it.DayByNumber(number).Activities) >= PhaseCap(tc.DayPhases[number]) {
			continue
		}
		seg, _ := tc.SegmentFor(number)
		if seg.City != "" && seg.City == srcSeg.City {
			same = append(same, number)
		} else {
			other = append(other, number)
		}
	}
	if target := leastLoaded(it, same); target != 0 {
		return target
	}
	return leastLoaded(it, other)
}
