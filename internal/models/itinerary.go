package models

import "time"

// Itinerary is the full multi-day trip handled by the engine
type Itinerary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Days      []Day     `json:"days"`
	Lodgings  []Lodging `json:"lodgings,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Clone returns a deep copy so callers can diff the old and new itinerary
func (it *Itinerary) Clone() *Itinerary {
	if it == nil {
		return nil
	}
	out := *it
	out.Days = make([]Day, len(it.Days))
	for i, d := range it.Days {
		nd := d
		if d.Activities != nil {
			nd.Activities = make([]Activity, len(d.Activities))
			for j, a := range d.Activities {
				nd.Activities[j] = a.Clone()
			}
		}
		out.Days[i] = nd
	}
	if it.Lodgings != nil {
		out.Lodgings = make([]Lodging, len(it.Lodgings))
		copy(out.Lodgings, it.Lodgings)
	}
	return &out
}

// Normalize normalizes every activity of the itinerary
func (it *Itinerary) Normalize() {
	for i := range it.Days {
		for j := range it.Days[i].Activities {
			it.Days[i].Activities[j].Normalize()
		}
	}
}

// ActivityCount returns the total number of activities across all days
func (it *Itinerary) ActivityCount() int {
	n := 0
	for i := range it.Days {
		n += len(it.Days[i].Activities)
	}
	return n
}

// LastDayNumber returns the number of the final day, or 0 for an empty trip
func (it *Itinerary) LastDayNumber() int {
	if len(it.Days) == 0 {
		return 0
	}
	return it.Days[len(it.Days)-1].Number
}

// DayByNumber returns the day with the given number
func (it *Itinerary) DayByNumber(number int) *Day {
	for i := range it.Days {
		if it.Days[i].Number == number {
			return &it.Days[i]
		}
	}
	return nil
}

// IsInterior reports whether the day is neither the first nor the last day
func (it *Itinerary) IsInterior(number int) bool {
	if len(it.Days) < 3 {
		return false
	}
	return number != it.Days[0].Number && number != it.LastDayNumber()
}

// InteriorDays returns pointers to every interior day in order
func (it *Itinerary) InteriorDays() []*Day {
	var out []*Day
	for i := range it.Days {
		if it.IsInterior(it.Days[i].Number) {
			out = append(out, &it.Days[i])
		}
	}
	return out
}

// FindActivity locates an activity by id, returning its day number and index
func (it *Itinerary) FindActivity(id string) (dayNumber int, index int, ok bool) {
	for i := range it.Days {
		for j := range it.Days[i].Activities {
			if it.Days[i].Activities[j].ID == id {
				return it.Days[i].Number, j, true
			}
		}
	}
	return 0, -1, false
}

// RemoveActivity detaches the activity from the given day and returns it
func (it *Itinerary) RemoveActivity(dayNumber int, id string) (Activity, bool) {
	day := it.DayByNumber(dayNumber)
	if day == nil {
		return Activity{}, false
	}
	for j := range day.Activities {
		if day.Activities[j].ID == id {
			act := day.Activities[j]
			day.Activities = append(day.Activities[:j:j], day.Activities[j+1:]...)
			return act, true
		}
	}
	return Activity{}, false
}

// MoveActivity transfers ownership of an activity between two days.
// The activity is appended to the end of the destination day.
func (it *Itinerary) MoveActivity(id string, fromDay, toDay int) bool {
	if fromDay == toDay {
		return false
	}
	dest := it.DayByNumber(toDay)
	if dest == nil {
		return false
	}
	act, ok := it.RemoveActivity(fromDay, id)
	if !ok {
		return false
	}
	dest = it.DayByNumber(toDay)
	dest.Activities = append(dest.Activities, act)
	return true
}

// AllActivityIDs returns every activity id in day order
func (it *Itinerary) AllActivityIDs() []string {
	ids := make([]string, 0, it.ActivityCount())
	for i := range it.Days {
		ids = append(ids, it.Days[i].ActivityIDs()...)
	}
	return ids
}
