package cities

import (
	"strings"

	"itinerary-optimizer/internal/models"
)

// Confidence buckets the share of a day's activities that agree on the dominant city
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// CityCount is one entry of a day's per-city breakdown
type CityCount struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}

// DayCity is the resolved city of a day. An empty City means unknown;
// callers must not substitute a default city for it.
type DayCity struct {
	DayNumber  int         `json:"day_number"`
	City       string      `json:"city"`
	Confidence Confidence  `json:"confidence"`
	Ratio      float64     `json:"ratio"`
	Mixed      bool        `json:"mixed"`
	Explicit   bool        `json:"explicit"`
	Breakdown  []CityCount `json:"breakdown"`
	Resolved   int         `json:"resolved"`
	Total      int         `json:"total"`
}

// Known reports whether the day resolved to a city
func (d DayCity) Known() bool {
	return d.City != ""
}

// Resolver infers cities for activities and days from the catalog
type Resolver struct {
	catalog *Catalog
	aliases map[string]string
}

// NewResolver builds a resolver; the alias table is built once here
func NewResolver(catalog *Catalog) *Resolver {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	aliases := make(map[string]string)
	for _, c := range catalog.Cities {
		aliases[Fold(c.Name)] = c.Name
		for _, alias := range c.Aliases {
			aliases[Fold(alias)] = c.Name
		}
	}
	return &Resolver{catalog: catalog, aliases: aliases}
}

// Catalog returns the catalog backing this resolver
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Normalize maps a free-form city tag to its canonical name.
// Tags that are not in the catalog are title-cased and returned as-is.
func (r *Resolver) Normalize(tag string) string {
	folded := Fold(tag)
	if folded == "" {
		return ""
	}
	if name, ok := r.aliases[folded]; ok {
		return name
	}
	for _, suffix := range []string{"-shi", " city", "-to", " prefecture", "-ken", "-fu"} {
		if trimmed := strings.TrimSuffix(folded, suffix); trimmed != folded {
			if name, ok := r.aliases[trimmed]; ok {
				return name
			}
		}
	}
	return canonicalUnknown(tag)
}

// SameCity reports whether two city tags refer to the same city
func (r *Resolver) SameCity(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return r.Normalize(a) == r.Normalize(b)
}

// ResolveActivity returns the city of an activity or "" when it cannot be inferred.
// Priority: explicit tag, keyword match, bounding box.
func (r *Resolver) ResolveActivity(a *models.Activity) string {
	if a == nil {
		return ""
	}
	if city := r.Normalize(a.City); city != "" {
		return city
	}
	if city := r.matchKeywords(a); city != "" {
		return city
	}
	if a.HasCoords() {
		return r.CityAt(*a.Coords)
	}
	return ""
}

func (r *Resolver) matchKeywords(a *models.Activity) string {
	text := Fold(strings.Join([]string{a.Title, a.Name, a.Description, a.Area}, " "))
	if text == "" {
		return ""
	}
	best := ""
	bestLen := 0
	for _, c := range r.catalog.Cities {
		for _, kw := range c.Keywords {
			if len(kw) > bestLen && containsWord(text, kw) {
				best = c.Name
				bestLen = len(kw)
			}
		}
	}
	return best
}

// CityAt returns the first catalog city whose bounding box contains the point
func (r *Resolver) CityAt(c models.Coordinates) string {
	for _, city := range r.catalog.Cities {
		if city.Box.Contains(c) {
			return city.Name
		}
	}
	return ""
}

// ResolveDay tallies the cities of a day's activities.
// An explicit day location wins with high confidence.
func (r *Resolver) ResolveDay(d *models.Day) DayCity {
	result := DayCity{DayNumber: d.Number, Total: len(d.Activities), Confidence: ConfidenceNone}

	counts := make(map[string]int)
	var order []string
	for i := range d.Activities {
		city := r.ResolveActivity(&d.Activities[i])
		if city == "" {
			continue
		}
		if _, seen := counts[city]; !seen {
			order = append(order, city)
		}
		counts[city]++
		result.Resolved++
	}

	result.Breakdown = make([]CityCount, 0, len(order))
	dominant := ""
	for _, city := range order {
		result.Breakdown = append(result.Breakdown, CityCount{City: city, Count: counts[city]})
		if dominant == "" || counts[city] > counts[dominant] {
			dominant = city
		}
	}
	result.Mixed = len(order) >= 2

	if explicit := r.Normalize(d.Location); explicit != "" {
		result.City = explicit
		result.Confidence = ConfidenceHigh
		result.Explicit = true
		result.Ratio = 1
		return result
	}

	if dominant == "" {
		return result
	}

	result.City = dominant
	result.Ratio = float64(counts[dominant]) / float64(len(d.Activities))
	switch {
	case result.Ratio >= 0.8:
		result.Confidence = ConfidenceHigh
	case result.Ratio >= 0.6:
		result.Confidence = ConfidenceMedium
	default:
		result.Confidence = ConfidenceLow
	}
	return result
}

// ResolveDays resolves every day of the itinerary keyed by day number
func (r *Resolver) ResolveDays(it *models.Itinerary) map[int]DayCity {
	out := make(map[int]DayCity, len(it.Days))
	for i := range it.Days {
		out[it.Days[i].Number] = r.ResolveDay(&it.Days[i])
	}
	return out
}

// Coverage returns how many activities resolve to any city, out of the total
func (r *Resolver) Coverage(it *models.Itinerary) (resolved, total int) {
	for i := range it.Days {
		for j := range it.Days[i].Activities {
			total++
			if r.ResolveActivity(&it.Days[i].Activities[j]) != "" {
				resolved++
			}
		}
	}
	return resolved, total
}
