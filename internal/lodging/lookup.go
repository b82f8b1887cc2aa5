package lodging

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"itinerary-optimizer/internal/cities"
	"itinerary-optimizer/internal/models"
)

// Lookup resolves the base lodging of a city for a given day
type Lookup interface {
	LodgingForCity(it *models.Itinerary, city string, dayNumber int) *models.Lodging
}

// ErrDuplicateSegmentKey is returned when two lodgings share a segment key
type ErrDuplicateSegmentKey struct {
	Key string
}

func (e *ErrDuplicateSegmentKey) Error() string {
	return fmt.Sprintf("duplicate lodging segment key: %s", e.Key)
}

// Segment is a parsed `{city}:{startDay}-{endDay}` key
type Segment struct {
	City     string
	StartDay int
	EndDay   int
}

// SegmentKey formats the key used for multi-visit lodgings
func SegmentKey(city string, startDay, endDay int) string {
	return fmt.Sprintf("%s:%d-%d", city, startDay, endDay)
}

// ParseSegmentKey parses a segment key; ok is false for malformed keys
func ParseSegmentKey(key string) (Segment, bool) {
	idx := strings.LastIndex(key, ":")
	if idx <= 0 {
		return Segment{}, false
	}
	bounds := strings.SplitN(key[idx+1:], "-", 2)
	if len(bounds) != 2 {
		return Segment{}, false
	}
	start, err := strconv.Atoi(bounds[0])
	if err != nil {
		return Segment{}, false
	}
	end, err := strconv.Atoi(bounds[1])
	if err != nil || end < start {
		return Segment{}, false
	}
	return Segment{City: key[:idx], StartDay: start, EndDay: end}, true
}

// Directory is the default Lookup backed by the itinerary's own lodgings.
// A day-range segment for the city wins over a plain city match.
type Directory struct {
	resolver *cities.Resolver
}

// NewDirectory creates a lodging directory
func NewDirectory(resolver *cities.Resolver) *Directory {
	return &Directory{resolver: resolver}
}

func (d *Directory) LodgingForCity(it *models.Itinerary, city string, dayNumber int) *models.Lodging {
	if it == nil || city == "" {
		return nil
	}

	for i := range it.Lodgings {
		l := &it.Lodgings[i]
		if l.SegmentKey == "" {
			continue
		}
		seg, ok := ParseSegmentKey(l.SegmentKey)
		if !ok {
			log.Printf("[LODGING] Ignoring malformed segment key: lodging=%s key=%s", l.ID, l.SegmentKey)
			continue
		}
		if d.resolver.SameCity(seg.City, city) && dayNumber >= seg.StartDay && dayNumber <= seg.EndDay {
			return l
		}
	}

	for i := range it.Lodgings {
		if d.resolver.SameCity(it.Lodgings[i].City, city) {
			return &it.Lodgings[i]
		}
	}
	return nil
}

// ValidateSegmentKeys checks that no two lodgings share a segment key
func ValidateSegmentKeys(lodgings []models.Lodging) error {
	seen := make(map[string]bool)
	for _, l := range lodgings {
		if l.SegmentKey == "" {
			continue
		}
		if seen[l.SegmentKey] {
			return &ErrDuplicateSegmentKey{Key: l.SegmentKey}
		}
		seen[l.SegmentKey] = true
	}
	return nil
}

// Range is a run of consecutive days spent in one city
type Range struct {
	City     string
	StartDay int
	EndDay   int
}

// AssignSegmentKeys gives lodgings of cities visited in more than one range a
// segment key. The n-th lodging of a city (in slice order) is bound to the n-th
// range of that city. Cities visited once keep plain city lookup.
func AssignSegmentKeys(lodgings []models.Lodging, ranges []Range, resolver *cities.Resolver) []models.Lodging {
	out := make([]models.Lodging, len(lodgings))
	copy(out, lodgings)

	byCity := make(map[string][]Range)
	for _, r := range ranges {
		if r.City == "" {
			continue
		}
		city := resolver.Normalize(r.City)
		byCity[city] = append(byCity[city], r)
	}

	used := make(map[string]int)
	for i := range out {
		city := resolver.Normalize(out[i].City)
		visits := byCity[city]
		if len(visits) < 2 || out[i].SegmentKey != "" {
			continue
		}
		n := used[city]
		if n >= len(visits) {
			continue
		}
		out[i].SegmentKey = SegmentKey(city, visits[n].StartDay, visits[n].EndDay)
		used[city] = n + 1
	}
	return out
}
