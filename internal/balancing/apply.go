package balancing

import (
	"errors"
	"fmt"
	"log"

	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/sequencing"
)

// ErrNoChange is returned when applying a suggestion leaves the itinerary structurally unchanged
var ErrNoChange = errors.New("suggestion produces no change")

// ApplyFailure describes a suggestion that could not be applied
type ApplyFailure struct {
	SuggestionID string         `json:"suggestion_id"`
	Type         SuggestionType `json:"type"`
	Reason       string         `json:"reason"`
}

func (e *ApplyFailure) Error() string {
	return fmt.Sprintf("cannot apply %s suggestion %s: %s", e.Type, e.SuggestionID, e.Reason)
}

// ApplyResult counts the outcome of a batch
type ApplyResult struct {
	Applied  int            `json:"applied"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
	Failures []ApplyFailure `json:"failures,omitempty"`
}

// ApplySuggestion applies one suggestion to a copy of the itinerary. The
// activity is located by id, so a stale source day is tolerated. Days whose
// membership changes are re-sequenced.
func (b *Balancer) ApplySuggestion(it *models.Itinerary, s Suggestion) (*models.Itinerary, error) {
	out := it.Clone()
	before := StructuralHash(out)

	fail := func(format string, args ...any) error {
		return &ApplyFailure{SuggestionID: s.ID, Type: s.Type, Reason: fmt.Sprintf(format, args...)}
	}

	switch s.Type {
	case SuggestRemoveDuplicate:
		from, idx, ok := out.FindActivity(s.ActivityID)
		if !ok {
			return it, fail("activity %s no longer exists", s.ActivityID)
		}
		key := NormalizeTitle(out.DayByNumber(from).Activities[idx].DisplayName())
		if !hasCopyElsewhere(out, key, s.ActivityID) {
			return it, fail("activity %s is no longer duplicated", s.ActivityID)
		}
		out.RemoveActivity(from, s.ActivityID)
		b.reschedule(out, from)

	case SuggestReorderRoute:
		if out.DayByNumber(s.FromDay) == nil {
			return it, fail("day %d not found", s.FromDay)
		}
		if b.isLocked(s.FromDay) {
			return it, fail("day %d is locked", s.FromDay)
		}
		b.reschedule(out, s.FromDay)

	case SuggestMoveOverLimit, SuggestFillEmptyDay, SuggestReduceOverload, SuggestEqualizeCost:
		from, _, ok := out.FindActivity(s.ActivityID)
		if !ok {
			return it, fail("activity %s no longer exists", s.ActivityID)
		}
		if out.DayByNumber(s.ToDay) == nil {
			return it, fail("target day %d not found", s.ToDay)
		}
		if from == s.ToDay {
			return it, ErrNoChange
		}
		if b.isLocked(from) || b.isLocked(s.ToDay) {
			return it, fail("cannot move between day %d and day %d: locked", from, s.ToDay)
		}
		out.MoveActivity(s.ActivityID, from, s.ToDay)
		if s.Type == SuggestMoveOverLimit {
			if moved := lastActivity(out, s.ToDay); moved != nil {
				moved.OverLimit = false
			}
		}
		b.reschedule(out, from)
		b.reschedule(out, s.ToDay)

	default:
		return it, fail("unknown suggestion type")
	}

	if StructuralHash(out) == before {
		return it, ErrNoChange
	}
	return out, nil
}

// ApplyAll applies suggestions in priority order. No-ops are skipped and
// failures are counted; neither stops the batch.
func (b *Balancer) ApplyAll(it *models.Itinerary, suggestions []Suggestion) (*models.Itinerary, ApplyResult) {
	ordered := append([]Suggestion(nil), suggestions...)
	SortSuggestions(ordered)

	current := it.Clone()
	result := ApplyResult{}
	for _, s := range ordered {
		next, err := b.ApplySuggestion(current, s)
		var failure *ApplyFailure
		switch {
		case err == nil:
			current = next
			result.Applied++
		case errors.Is(err, ErrNoChange):
			result.Skipped++
		case errors.As(err, &failure):
			result.Failed++
			result.Failures = append(result.Failures, *failure)
			log.Printf("[BALANCE] %v", failure)
		}
	}

	log.Printf("[BALANCE] Applied suggestions: applied=%d skipped=%d failed=%d",
		result.Applied, result.Skipped, result.Failed)
	return current, result
}

// reschedule re-sequences a day from its lodging and recomputes its timings.
// Locked days keep their order and times.
func (b *Balancer) reschedule(it *models.Itinerary, number int) {
	day := it.DayByNumber(number)
	if day == nil || len(day.Activities) == 0 || b.isLocked(number) {
		return
	}
	city := b.dayCities(it)[number]
	res := b.sequencer.Sequence(day.Activities, sequencing.Options{
		Mode:       sequencing.ModeBalanced,
		StartPoint: b.lodgingStart(it, number, city),
	})
	if res.WasOptimized {
		day.Activities = res.Activities
		return
	}
	day.Activities = b.sequencer.RecalculateTimings(day.Activities, nil)
}

func (b *Balancer) lodgingStart(it *models.Itinerary, number int, city string) *models.Coordinates {
	if city == "" {
		return nil
	}
	l := b.lookup.LodgingForCity(it, city, number)
	if l == nil || !l.Coords.IsValid() {
		return nil
	}
	c := l.Coords
	return &c
}

func hasCopyElsewhere(it *models.Itinerary, key, id string) bool {
	for i := range it.Days {
		for j := range it.Days[i].Activities {
			a := &it.Days[i].Activities[j]
			if a.ID != id && NormalizeTitle(a.DisplayName()) == key {
				return true
			}
		}
	}
	return false
}
