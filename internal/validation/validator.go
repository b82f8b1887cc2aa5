package validation

import (
	"fmt"
	"log"

	"itinerary-optimizer/internal/distance"
	"itinerary-optimizer/internal/models"
)

// Severity of a distance issue
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityWarning  Severity = "warning"
)

// DistanceIssue is one suspicious hop between consecutive activities of a day
type DistanceIssue struct {
	DayNumber  int                    `json:"day_number"`
	FromID     string                 `json:"from_id"`
	FromTitle  string                 `json:"from_title"`
	ToID       string                 `json:"to_id"`
	ToTitle    string                 `json:"to_title"`
	DistanceKm float64                `json:"distance_km"`
	Band       distance.TransportBand `json:"band"`
	Severity   Severity               `json:"severity"`
	Message    string                 `json:"message"`
}

// DayReport holds the issues of one day
type DayReport struct {
	DayNumber int             `json:"day_number"`
	Errors    []DistanceIssue `json:"errors"`
	Warnings  []DistanceIssue `json:"warnings"`
}

// Report is the result of validating a whole itinerary
type Report struct {
	Valid         bool        `json:"valid"`
	Days          []DayReport `json:"days"`
	CriticalCount int         `json:"critical_count"`
	HighCount     int         `json:"high_count"`
	WarningCount  int         `json:"warning_count"`
	CheckedPairs  int         `json:"checked_pairs"`
}

// ErrorCount returns the number of critical and high issues
func (r Report) ErrorCount() int {
	return r.CriticalCount + r.HighCount
}

// AffectedDays returns the numbers of days carrying critical or high issues
func (r Report) AffectedDays() []int {
	var out []int
	for _, d := range r.Days {
		if len(d.Errors) > 0 {
			out = append(out, d.DayNumber)
		}
	}
	return out
}

// ValidateDistances classifies every hop between consecutive coordinate-bearing
// activities of each day. It never modifies the itinerary.
func ValidateDistances(it *models.Itinerary) Report {
	return ValidateWithTransfers(it, nil)
}

// ValidateWithTransfers is ValidateDistances where each listed day may carry
// one intercity transfer. The first critical hop of such a day is reported as
// a warning.
func ValidateWithTransfers(it *models.Itinerary, transferDays map[int]bool) Report {
	report := Report{}
	for i := range it.Days {
		day := &it.Days[i]
		dr := DayReport{DayNumber: day.Number, Errors: []DistanceIssue{}, Warnings: []DistanceIssue{}}
		transfer := transferDays[day.Number]

		var prev *models.Activity
		for j := range day.Activities {
			cur := &day.Activities[j]
			if !cur.HasCoords() {
				continue
			}
			if prev != nil {
				report.CheckedPairs++
				if issue, ok := classify(day.Number, prev, cur); ok {
					if transfer && issue.Severity == SeverityCritical {
						issue.Severity = SeverityWarning
						issue.Message = fmt.Sprintf("Planned %.0f km transfer between %q and %q", issue.DistanceKm, issue.FromTitle, issue.ToTitle)
						transfer = false
					}
					switch issue.Severity {
					case SeverityCritical:
						report.CriticalCount++
						dr.Errors = append(dr.Errors, issue)
					case SeverityHigh:
						report.HighCount++
						dr.Errors = append(dr.Errors, issue)
					default:
						report.WarningCount++
						dr.Warnings = append(dr.Warnings, issue)
					}
				}
			}
			prev = cur
		}
		report.Days = append(report.Days, dr)
	}
	report.Valid = report.ErrorCount() == 0

	log.Printf("[VALIDATE] Checked %d hops: critical=%d high=%d warnings=%d valid=%v",
		report.CheckedPairs, report.CriticalCount, report.HighCount, report.WarningCount, report.Valid)
	return report
}

func classify(dayNumber int, from, to *models.Activity) (DistanceIssue, bool) {
	km := distance.Between(*from.Coords, *to.Coords)
	issue := DistanceIssue{
		DayNumber:  dayNumber,
		FromID:     from.ID,
		FromTitle:  from.DisplayName(),
		ToID:       to.ID,
		ToTitle:    to.DisplayName(),
		DistanceKm: km,
		Band:       distance.ClassifyHop(km),
	}
	switch {
	case km > distance.ShinkansenBandKm:
		issue.Severity = SeverityCritical
		issue.Message = fmt.Sprintf("Same-day jump of %.0f km between %q and %q: a city-change activity is scheduled within one day",
			km, issue.FromTitle, issue.ToTitle)
	case km > distance.SubwayBandKm:
		issue.Severity = SeverityHigh
		issue.Message = fmt.Sprintf("%.1f km between %q and %q needs an express train", km, issue.FromTitle, issue.ToTitle)
	case km > distance.LocalTrainBandKm:
		issue.Severity = SeverityWarning
		issue.Message = fmt.Sprintf("%.1f km between %q and %q needs the subway", km, issue.FromTitle, issue.ToTitle)
	default:
		return DistanceIssue{}, false
	}
	return issue, true
}
