package optimizer

import (
	"fmt"
	"log"
	"time"

	"itinerary-optimizer/internal/lodging"
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/planning"
	"itinerary-optimizer/internal/sequencing"
	"itinerary-optimizer/internal/validation"
)

// pipeline holds the state of one optimization pass. The working itinerary
// is replaced by each stage's output.
type pipeline struct {
	o              *Optimizer
	work           *models.Itinerary
	tc             planning.TripContext
	transitionDays map[int]bool
	note           string
	result         *Result
}

func (p *pipeline) step(state State, fn func() bool) bool {
	start := time.Now()
	p.result.State = state
	ok := fn()
	elapsed := time.Since(start)
	p.result.Trace = append(p.result.Trace, StageTrace{State: state, DurationMs: elapsed.Milliseconds(), Note: p.note})
	p.note = ""
	log.Printf("[TIMING] %s: %v", state, elapsed)
	return ok
}

func (p *pipeline) warn(msg string) {
	p.result.Warnings = append(p.result.Warnings, msg)
	log.Printf("[OPTIMIZER] Warning: %s", msg)
}

func (p *pipeline) healthCheck() bool {
	m := &p.result.Metrics
	m.Days = len(p.work.Days)
	m.Activities = p.work.ActivityCount()
	for i := range p.work.Days {
		for j := range p.work.Days[i].Activities {
			if !p.work.Days[i].Activities[j].HasCoords() {
				m.MissingCoords++
			}
		}
	}
	if m.MissingCoords > 0 {
		log.Printf("[DATA] %d of %d activities have no coordinates", m.MissingCoords, m.Activities)
		p.warn(fmt.Sprintf("%d activities have no coordinates and keep their day", m.MissingCoords))
	}

	resolved, total := p.o.resolver.Coverage(p.work)
	if total == 0 {
		m.CityCoverage = 1
		p.warn("itinerary has no activities")
		return true
	}
	m.CityCoverage = float64(resolved) / float64(total)
	p.note = fmt.Sprintf("coverage %.0f%%", m.CityCoverage*100)
	if m.CityCoverage < p.o.opts.MinCityCoverage {
		log.Printf("[DATA] City coverage too low: resolved=%d total=%d", resolved, total)
		p.result.Errors = append(p.result.Errors,
			fmt.Sprintf("only %d of %d activities resolve to a known city (%.0f%%, need %.0f%%)",
				resolved, total, m.CityCoverage*100, p.o.opts.MinCityCoverage*100))
		return false
	}
	if resolved < total {
		log.Printf("[DATA] %d activities resolve to no city", total-resolved)
		p.warn(fmt.Sprintf("%d activities resolve to no known city", total-resolved))
	}
	return true
}

func (p *pipeline) analyzeContext() bool {
	p.tc = planning.AnalyzeContext(p.work, p.o.resolver)
	keyed := lodging.AssignSegmentKeys(p.work.Lodgings, p.tc.LodgingRanges(), p.o.resolver)
	if err := lodging.ValidateSegmentKeys(keyed); err != nil {
		p.warn(fmt.Sprintf("keeping lodging segment keys as given: %v", err))
	} else {
		p.work.Lodgings = keyed
	}

	unknown := 0
	for _, dc := range p.tc.DayCities {
		if !dc.Known() && dc.Total > 0 {
			unknown++
		}
	}
	if unknown > 0 {
		p.warn(fmt.Sprintf("%d days have no resolvable city and follow their neighbours", unknown))
	}

	p.result.Metrics.Segments = len(p.tc.Segments)
	p.result.Metrics.Transitions = len(p.tc.Transitions)
	p.note = fmt.Sprintf("%d segments, %d transitions", len(p.tc.Segments), len(p.tc.Transitions))
	return true
}

func (p *pipeline) cluster() bool {
	work, stats := p.o.assigner.Assign(p.work)
	p.work = work
	p.result.Metrics.Assignment = stats
	if stats.Unassigned > 0 {
		p.warn(fmt.Sprintf("%d activities could not be matched to a lodging and were placed on day 1", stats.Unassigned))
	}

	cityOf := planning.EffectiveCities(p.work, p.o.resolver)
	zones := 0
	for i := range p.work.Days {
		day := &p.work.Days[i]
		if len(day.Activities) == 0 {
			continue
		}
		zones += p.o.clusterer.ZoneCount(day.Activities, cityOf[day.Number])
	}
	p.result.Metrics.Zones = zones
	p.note = fmt.Sprintf("%d moved, %d zones", stats.Moved, zones)
	return true
}

func (p *pipeline) applyPhases() bool {
	work, report := p.o.phases.Apply(p.work)
	p.work = work
	p.result.Metrics.Phases = report
	for _, w := range report.Warnings {
		p.warn(w)
	}
	p.note = fmt.Sprintf("last day %d, jetlag %d, day 1 overflow %d",
		report.LastDayRelocated, report.JetlagRelocated, report.Day1Overflow)
	return true
}

func (p *pipeline) splitTransitions() bool {
	p.tc = planning.AnalyzeContext(p.work, p.o.resolver)
	work, reports := p.o.splitter.SplitAll(p.work, p.tc)
	p.work = work

	p.transitionDays = make(map[int]bool, len(reports))
	for _, r := range reports {
		p.transitionDays[r.DayNumber] = true
		p.result.Metrics.TransitionMove += r.Relocated
		for _, w := range r.Warnings {
			p.warn(w)
		}
	}
	p.note = fmt.Sprintf("%d transition days", len(reports))
	return true
}

// balance evens out day loads. Split transition days are locked so their
// morning and evening blocks survive.
func (p *pipeline) balance() bool {
	balancer := p.o.balancer.WithLockedDays(p.transitionDays)
	report := balancer.Balance(p.work)
	work, applied := balancer.ApplyAll(p.work, report.Suggestions)
	p.work = work
	p.result.Metrics.Balance = applied
	p.result.Metrics.BalanceScore = balancer.Balance(p.work).Score
	for _, f := range applied.Failures {
		p.warn(f.Error())
	}
	p.note = fmt.Sprintf("%d of %d suggestions applied", applied.Applied, len(report.Suggestions))
	return true
}

func (p *pipeline) enforceCaps() bool {
	p.tc = planning.AnalyzeContext(p.work, p.o.resolver)
	work, report := planning.EnforcePhaseCaps(p.work, p.tc, p.transitionDays)
	p.work = work
	p.result.Metrics.CapRelocations = report.Relocated
	for _, w := range report.Warnings {
		p.warn(w)
	}
	p.note = fmt.Sprintf("%d relocated", report.Relocated)
	return true
}

// sequenceRoutes orders every day from its lodging. Transition days keep the
// morning and evening blocks set by the splitter.
func (p *pipeline) sequenceRoutes() bool {
	m := &p.result.Metrics
	cityOf := planning.EffectiveCities(p.work, p.o.resolver)
	for i := range p.work.Days {
		day := &p.work.Days[i]
		if len(day.Activities) == 0 || p.transitionDays[day.Number] {
			continue
		}
		res := p.o.sequencer.Sequence(day.Activities, sequencing.Options{
			Mode:       p.o.opts.SequenceMode,
			StartPoint: p.o.lodgingCoords(p.work, cityOf[day.Number], day.Number),
		})
		if !res.WasOptimized {
			day.Activities = p.o.sequencer.RecalculateTimings(day.Activities, nil)
			continue
		}
		day.Activities = res.Activities
		m.SequencedDays++
		m.Savings = m.Savings.Add(res.Savings)
	}
	p.note = fmt.Sprintf("%d days sequenced, %d min saved", m.SequencedDays, m.Savings.TravelMinutes)
	return true
}

func (p *pipeline) validate() bool {
	report := validation.ValidateWithTransfers(p.work, p.transitionDays)
	p.result.Validation = &report
	p.note = fmt.Sprintf("critical=%d high=%d warnings=%d", report.CriticalCount, report.HighCount, report.WarningCount)
	return true
}

// correct runs the mixed-day corrector once and validates again. Residual
// errors are left for the caller.
func (p *pipeline) correct() bool {
	work, stats := p.o.corrector.WithLockedDays(p.transitionDays).Correct(p.work)
	p.work = work
	p.result.Metrics.Correction = &stats
	for _, u := range stats.Unresolvable {
		p.warn(u.String())
	}

	report := validation.ValidateWithTransfers(p.work, p.transitionDays)
	p.result.Validation = &report
	p.note = fmt.Sprintf("%d relocated, %d errors remain", stats.Relocated, report.ErrorCount())
	return true
}

func (p *pipeline) finish(start time.Time) {
	p.result.Itinerary = p.work
	if p.result.State == StateDone {
		tc := planning.AnalyzeContext(p.work, p.o.resolver)
		p.result.Context = &tc
	}
	elapsed := time.Since(start)
	p.result.Metrics.DurationMs = elapsed.Milliseconds()

	log.Printf("[OPTIMIZER] Complete: itinerary=%s state=%s success=%v warnings=%d errors=%d",
		p.work.ID, p.result.State, p.result.Success, len(p.result.Warnings), len(p.result.Errors))
	log.Printf("[TIMING] TOTAL: %v", elapsed)
}

func (o *Optimizer) lodgingCoords(it *models.Itinerary, city string, dayNumber int) *models.Coordinates {
	if city == "" {
		return nil
	}
	l := o.lookup.LodgingForCity(it, city, dayNumber)
	if l == nil || !l.Coords.IsValid() {
		return nil
	}
	c := l.Coords
	return &c
}
