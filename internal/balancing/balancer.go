// Package balancing scores day loads and produces re-appliable corrective moves
// between days: duplicate removal, empty-day filling, overload shrinking,
// route reordering and cost equalization.
package balancing

import (
	"log"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"itinerary-optimizer/internal/cities"
	"itinerary-optimizer/internal/clustering"
	"itinerary-optimizer/internal/distance"
	"itinerary-optimizer/internal/lodging"
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/planning"
	"itinerary-optimizer/internal/sequencing"
)

// Default activity thresholds for interior days
const (
	DefaultMinActivities = 4
	DefaultMaxActivities = 6
)

// Config holds the tunable balancer thresholds
type Config struct {
	MinActivities int
	MaxActivities int
}

func (c Config) withDefaults() Config {
	if c.MinActivities <= 0 {
		c.MinActivities = DefaultMinActivities
	}
	if c.MaxActivities <= 0 {
		c.MaxActivities = DefaultMaxActivities
	}
	if c.MaxActivities < c.MinActivities {
		c.MaxActivities = c.MinActivities
	}
	return c
}

// Balancer evaluates and evens out the load of a trip's days
type Balancer struct {
	resolver  *cities.Resolver
	clusterer *clustering.Clusterer
	lookup    lodging.Lookup
	sequencer *sequencing.Sequencer
	cfg       Config
	locked    map[int]bool
}

// NewBalancer creates a balancer
func NewBalancer(resolver *cities.Resolver, lookup lodging.Lookup, sequencer *sequencing.Sequencer, cfg Config) *Balancer {
	return &Balancer{
		resolver:  resolver,
		clusterer: clustering.NewClusterer(resolver),
		lookup:    lookup,
		sequencer: sequencer,
		cfg:       cfg.withDefaults(),
	}
}

// WithLockedDays returns a balancer that never moves activities onto or off
// the given days and leaves their timings alone. Duplicates may still be
// removed from them.
func (b *Balancer) WithLockedDays(days map[int]bool) *Balancer {
	c := *b
	c.locked = days
	return &c
}

func (b *Balancer) isLocked(number int) bool {
	return b.locked[number]
}

// Imbalances classifies interior days by activity count
type Imbalances struct {
	Empty      []int `json:"empty"`
	Light      []int `json:"light"`
	Balanced   []int `json:"balanced"`
	Overloaded []int `json:"overloaded"`
}

// HasIssues reports whether any interior day is empty or overloaded
func (im Imbalances) HasIssues() bool {
	return len(im.Empty) > 0 || len(im.Overloaded) > 0
}

// FindImbalances buckets interior days using the min/max thresholds
func (b *Balancer) FindImbalances(it *models.Itinerary) Imbalances {
	im := Imbalances{}
	for _, day := range it.InteriorDays() {
		if b.isLocked(day.Number) {
			continue
		}
		n := len(day.Activities)
		switch {
		case n == 0:
			im.Empty = append(im.Empty, day.Number)
		case n < b.cfg.MinActivities:
			im.Light = append(im.Light, day.Number)
		case n > b.cfg.MaxActivities:
			im.Overloaded = append(im.Overloaded, day.Number)
		default:
			im.Balanced = append(im.Balanced, day.Number)
		}
	}
	return im
}

// Report is the result of a balance evaluation
type Report struct {
	Loads       []DayLoad    `json:"loads"`
	Imbalances  Imbalances   `json:"imbalances"`
	Suggestions []Suggestion `json:"suggestions"`
	Score       float64      `json:"score"` // 0-100, 100 when interior loads are even
}

// Balance scores every day, classifies the interior days and generates suggestions
func (b *Balancer) Balance(it *models.Itinerary) Report {
	report := Report{
		Imbalances:  b.FindImbalances(it),
		Suggestions: b.GenerateSuggestions(it),
	}
	for i := range it.Days {
		report.Loads = append(report.Loads, b.ScoreDay(&it.Days[i]))
	}
	report.Score = b.evenness(it, report.Loads)

	log.Printf("[BALANCE] Evaluated: days=%d empty=%d overloaded=%d suggestions=%d score=%.0f",
		len(it.Days), len(report.Imbalances.Empty), len(report.Imbalances.Overloaded), len(report.Suggestions), report.Score)
	return report
}

func (b *Balancer) evenness(it *models.Itinerary, loads []DayLoad) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, l := range loads {
		if !it.IsInterior(l.DayNumber) || b.isLocked(l.DayNumber) {
			continue
		}
		lo = math.Min(lo, float64(l.Score))
		hi = math.Max(hi, float64(l.Score))
	}
	if math.IsInf(lo, 1) {
		return 100
	}
	return math.Max(0, 100-(hi-lo))
}

// StructuralHash fingerprints the day to activity-id assignment, order included
func StructuralHash(it *models.Itinerary) uint64 {
	h := xxhash.New()
	for i := range it.Days {
		_, _ = h.WriteString(strconv.Itoa(it.Days[i].Number))
		_, _ = h.WriteString(":")
		for j := range it.Days[i].Activities {
			_, _ = h.WriteString(it.Days[i].Activities[j].ID)
			_, _ = h.WriteString(",")
		}
		_, _ = h.WriteString(";")
	}
	return h.Sum64()
}

// NormalizeTitle folds case and diacritics and drops punctuation so that
// "Kinkaku-ji" and "kinkakuji" compare equal
func NormalizeTitle(title string) string {
	folded := cities.Fold(title)
	var sb strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// isolatedActivity returns the index of the activity with the greatest average
// distance to its day-mates; without coordinates the last activity is chosen
func isolatedActivity(acts []models.Activity) int {
	if len(acts) == 0 {
		return -1
	}
	best := len(acts) - 1
	bestAvg := -1.0
	for i := range acts {
		if !acts[i].HasCoords() {
			continue
		}
		sum, n := 0.0, 0
		for j := range acts {
			if i == j || !acts[j].HasCoords() {
				continue
			}
			sum += distance.Between(*acts[i].Coords, *acts[j].Coords)
			n++
		}
		if n == 0 {
			continue
		}
		if avg := sum / float64(n); avg > bestAvg {
			best, bestAvg = i, avg
		}
	}
	return best
}

// mostExpensive returns the index of the costliest activity, -1 for an empty or free day
func mostExpensive(acts []models.Activity) int {
	best := -1
	for i := range acts {
		if acts[i].Cost <= 0 {
			continue
		}
		if best < 0 || acts[i].Cost > acts[best].Cost {
			best = i
		}
	}
	return best
}

func dayCost(d *models.Day) float64 {
	total := 0.0
	for i := range d.Activities {
		total += d.Activities[i].Cost
	}
	return total
}

// dayCities returns the inherited dominant city of every day
func (b *Balancer) dayCities(it *models.Itinerary) map[int]string {
	return planning.EffectiveCities(it, b.resolver)
}
