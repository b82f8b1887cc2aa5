package balancing

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"itinerary-optimizer/internal/distance"
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/sequencing"
)

// SuggestionType names the kind of corrective move
type SuggestionType string

const (
	SuggestRemoveDuplicate SuggestionType = "remove-duplicate"
	SuggestMoveOverLimit   SuggestionType = "move-over-limit"
	SuggestFillEmptyDay    SuggestionType = "fill-empty-day"
	SuggestReduceOverload  SuggestionType = "reduce-overload"
	SuggestReorderRoute    SuggestionType = "reorder-route"
	SuggestEqualizeCost    SuggestionType = "equalize-cost"
)

// Priority orders suggestions; critical first
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns 0 for critical up to 3 for low
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Suggestion is one re-appliable corrective move
type Suggestion struct {
	ID            string         `json:"id"`
	Type          SuggestionType `json:"type"`
	Priority      Priority       `json:"priority"`
	ActivityID    string         `json:"activity_id,omitempty"`
	ActivityTitle string         `json:"activity_title,omitempty"`
	FromDay       int            `json:"from_day"`
	ToDay         int            `json:"to_day,omitempty"`
	Description   string         `json:"description"`
	Reason        string         `json:"reason"`
}

// SortSuggestions orders suggestions by priority, keeping generation order within a priority
func SortSuggestions(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Priority.Rank() < s[j].Priority.Rank()
	})
}

// GenerateSuggestions builds the prioritized list of corrective moves. Moves
// are simulated on a working copy so later rules see the effect of earlier ones.
func (b *Balancer) GenerateSuggestions(it *models.Itinerary) []Suggestion {
	work := it.Clone()
	cityOf := b.dayCities(it)

	var out []Suggestion
	out = append(out, b.duplicateSuggestions(work)...)
	out = append(out, b.overLimitSuggestions(work, cityOf)...)
	out = append(out, b.fillEmptySuggestions(work, cityOf)...)
	out = append(out, b.overloadSuggestions(work, cityOf)...)
	out = append(out, b.reorderSuggestions(work, cityOf)...)
	out = append(out, b.costSuggestions(work, cityOf)...)

	SortSuggestions(out)
	return out
}

func newSuggestion(t SuggestionType, p Priority, act *models.Activity, from, to int) Suggestion {
	s := Suggestion{
		ID:       uuid.NewString(),
		Type:     t,
		Priority: p,
		FromDay:  from,
		ToDay:    to,
	}
	if act != nil {
		s.ActivityID = act.ID
		s.ActivityTitle = act.DisplayName()
	}
	return s
}

func (b *Balancer) duplicateSuggestions(work *models.Itinerary) []Suggestion {
	var out []Suggestion
	firstSeen := make(map[string]int)
	for i := range work.Days {
		day := &work.Days[i]
		for _, act := range append([]models.Activity(nil), day.Activities...) {
			key := NormalizeTitle(act.DisplayName())
			if key == "" {
				continue
			}
			seenDay, ok := firstSeen[key]
			if !ok {
				firstSeen[key] = day.Number
				continue
			}
			if seenDay == day.Number {
				continue
			}
			s := newSuggestion(SuggestRemoveDuplicate, PriorityHigh, &act, day.Number, 0)
			s.Description = fmt.Sprintf("Remove %q from day %d", act.DisplayName(), day.Number)
			s.Reason = fmt.Sprintf("Already planned on day %d", seenDay)
			out = append(out, s)
			work.RemoveActivity(day.Number, act.ID)
		}
	}
	return out
}

func (b *Balancer) overLimitSuggestions(work *models.Itinerary, cityOf map[int]string) []Suggestion {
	var out []Suggestion
	for i := range work.Days {
		source := work.Days[i].Number
		if b.isLocked(source) {
			continue
		}
		for _, act := range append([]models.Activity(nil), work.Days[i].Activities...) {
			if !act.OverLimit {
				continue
			}
			candidates := b.candidateDays(work, source, func(d *models.Day) bool {
				return (len(work.Days) < 3 || work.IsInterior(d.Number)) && !hasOverLimit(d)
			})
			target := pickDay(work, candidates, sameCity(cityOf, cityOf[source]), fewestActivities)
			if target == 0 {
				continue
			}
			s := newSuggestion(SuggestMoveOverLimit, PriorityCritical, &act, source, target)
			s.Description = fmt.Sprintf("Move %q from day %d to day %d", act.DisplayName(), source, target)
			s.Reason = fmt.Sprintf("Does not fit the time window of day %d", source)
			out = append(out, s)
			work.MoveActivity(act.ID, source, target)
			if moved := lastActivity(work, target); moved != nil {
				moved.OverLimit = false
			}
		}
	}
	return out
}

func (b *Balancer) fillEmptySuggestions(work *models.Itinerary, cityOf map[int]string) []Suggestion {
	var out []Suggestion
	for _, target := range b.FindImbalances(work).Empty {
		for count(work, target) < b.cfg.MinActivities {
			donor := b.pickDonor(work, target, cityOf)
			if donor == 0 {
				break
			}
			acts := work.DayByNumber(donor).Activities
			act := acts[isolatedActivity(acts)]
			s := newSuggestion(SuggestFillEmptyDay, PriorityHigh, &act, donor, target)
			s.Description = fmt.Sprintf("Move %q from day %d to day %d", act.DisplayName(), donor, target)
			s.Reason = fmt.Sprintf("Day %d has no activities; day %d has %d", target, donor, len(acts))
			out = append(out, s)
			work.MoveActivity(act.ID, donor, target)
		}
	}
	return out
}

// pickDonor chooses the most loaded interior day that can spare an activity,
// preferring donors in the target's city and donors with at least the minimum load
func (b *Balancer) pickDonor(work *models.Itinerary, target int, cityOf map[int]string) int {
	need := count(work, target) + 1
	for _, floor := range []int{b.cfg.MinActivities, 1} {
		candidates := b.candidateDays(work, target, func(d *models.Day) bool {
			return work.IsInterior(d.Number) && len(d.Activities) >= floor && len(d.Activities) > need
		})
		if donor := pickDay(work, candidates, sameCity(cityOf, cityOf[target]), mostActivities); donor != 0 {
			return donor
		}
	}
	return 0
}

func (b *Balancer) overloadSuggestions(work *models.Itinerary, cityOf map[int]string) []Suggestion {
	var out []Suggestion
	for _, source := range b.FindImbalances(work).Overloaded {
		for count(work, source) > b.cfg.MaxActivities {
			target := b.pickRelief(work, source, cityOf)
			if target == 0 {
				break
			}
			acts := work.DayByNumber(source).Activities
			act := acts[isolatedActivity(acts)]
			s := newSuggestion(SuggestReduceOverload, PriorityMedium, &act, source, target)
			s.Description = fmt.Sprintf("Move %q from day %d to day %d", act.DisplayName(), source, target)
			s.Reason = fmt.Sprintf("Day %d has %d activities, above the maximum of %d", source, len(acts), b.cfg.MaxActivities)
			out = append(out, s)
			work.MoveActivity(act.ID, source, target)
		}
	}
	return out
}

// pickRelief chooses an interior day to take load off an overloaded one:
// under-threshold days first, then any day still below the maximum
func (b *Balancer) pickRelief(work *models.Itinerary, source int, cityOf map[int]string) int {
	for _, limit := range []int{b.cfg.MinActivities, b.cfg.MaxActivities} {
		candidates := b.candidateDays(work, source, func(d *models.Day) bool {
			return work.IsInterior(d.Number) && len(d.Activities) < limit
		})
		if target := pickDay(work, candidates, sameCity(cityOf, cityOf[source]), fewestActivities); target != 0 {
			return target
		}
	}
	return 0
}

func (b *Balancer) reorderSuggestions(work *models.Itinerary, cityOf map[int]string) []Suggestion {
	var out []Suggestion
	for i := range work.Days {
		day := &work.Days[i]
		if b.isLocked(day.Number) {
			continue
		}
		hop := maxHopKm(day.Activities)
		zones := b.clusterer.ZoneCount(day.Activities, cityOf[day.Number])
		longHops := len(day.Activities) > 3 && hop > distance.LocalTrainBandKm
		if !longHops && zones <= 2 {
			continue
		}

		res := b.sequencer.Sequence(day.Activities, sequencing.Options{
			Mode:       sequencing.ModeBalanced,
			StartPoint: b.lodgingStart(work, day.Number, cityOf[day.Number]),
		})
		if !res.WasOptimized || sameOrder(day.Activities, res.Activities) {
			continue
		}

		s := newSuggestion(SuggestReorderRoute, PriorityMedium, nil, day.Number, day.Number)
		s.Description = fmt.Sprintf("Reorder the route of day %d", day.Number)
		if longHops {
			s.Reason = fmt.Sprintf("Longest transfer is %.1f km", hop)
		} else {
			s.Reason = fmt.Sprintf("Activities span %d zones", zones)
		}
		out = append(out, s)
		day.Activities = res.Activities
	}
	return out
}

func (b *Balancer) costSuggestions(work *models.Itinerary, cityOf map[int]string) []Suggestion {
	interior := work.InteriorDays()
	if len(interior) < 2 {
		return nil
	}
	total := 0.0
	for _, d := range interior {
		total += dayCost(d)
	}
	mean := total / float64(len(interior))
	if mean <= 0 {
		return nil
	}

	var out []Suggestion
	for _, d := range interior {
		source := d.Number
		if b.isLocked(source) || dayCost(work.DayByNumber(source)) <= 1.5*mean {
			continue
		}
		acts := work.DayByNumber(source).Activities
		idx := mostExpensive(acts)
		if idx < 0 {
			continue
		}
		candidates := b.candidateDays(work, source, func(o *models.Day) bool {
			return work.IsInterior(o.Number) && dayCost(o) < 0.7*mean
		})
		target := pickDay(work, candidates, sameCity(cityOf, cityOf[source]), func(a, c *models.Day) bool {
			return dayCost(a) < dayCost(c)
		})
		if target == 0 {
			continue
		}
		act := acts[idx]
		s := newSuggestion(SuggestEqualizeCost, PriorityLow, &act, source, target)
		s.Description = fmt.Sprintf("Move %q from day %d to day %d", act.DisplayName(), source, target)
		s.Reason = fmt.Sprintf("Day %d costs %.0f against a trip average of %.0f", source, dayCost(work.DayByNumber(source)), mean)
		out = append(out, s)
		work.MoveActivity(act.ID, source, target)
	}
	return out
}

// candidateDays lists days other than source that pass keep. Locked days never
// take part and the departure day never receives moves when interior days exist.
func (b *Balancer) candidateDays(work *models.Itinerary, source int, keep func(d *models.Day) bool) []int {
	var out []int
	hasInterior := len(work.Days) >= 3
	for i := range work.Days {
		d := &work.Days[i]
		if d.Number == source || b.isLocked(d.Number) || (hasInterior && d.Number == work.LastDayNumber()) {
			continue
		}
		if keep(d) {
			out = append(out, d.Number)
		}
	}
	return out
}

// pickDay returns the best candidate by less, considering preferred days first.
// Ties go to the lowest day number.
func pickDay(work *models.Itinerary, candidates []int, preferred func(int) bool, less func(a, b *models.Day) bool) int {
	best := func(filter func(int) bool) int {
		pick := 0
		for _, n := range candidates {
			if !filter(n) {
				continue
			}
			if pick == 0 || less(work.DayByNumber(n), work.DayByNumber(pick)) {
				pick = n
			}
		}
		return pick
	}
	if n := best(preferred); n != 0 {
		return n
	}
	return best(func(int) bool { return true })
}

func sameCity(cityOf map[int]string, city string) func(int) bool {
	return func(n int) bool { return city != "" && cityOf[n] == city }
}

func fewestActivities(a, b *models.Day) bool { return len(a.Activities) < len(b.Activities) }
func mostActivities(a, b *models.Day) bool   { return len(a.Activities) > len(b.Activities) }

func count(it *models.Itinerary, number int) int {
	if d := it.DayByNumber(number); d != nil {
		return len(d.Activities)
	}
	return 0
}

func hasOverLimit(d *models.Day) bool {
	for i := range d.Activities {
		if d.Activities[i].OverLimit {
			return true
		}
	}
	return false
}

func lastActivity(it *models.Itinerary, number int) *models.Activity {
	d := it.DayByNumber(number)
	if d == nil || len(d.Activities) == 0 {
		return nil
	}
	return &d.Activities[len(d.Activities)-1]
}

func maxHopKm(acts []models.Activity) float64 {
	longest := 0.0
	var prev *models.Activity
	for i := range acts {
		if !acts[i].HasCoords() {
			continue
		}
		if prev != nil {
			if km := distance.Between(*prev.Coords, *acts[i].Coords); km > longest {
				longest = km
			}
		}
		prev = &acts[i]
	}
	return longest
}

func sameOrder(a, b []models.Activity) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
