// Package optimizer runs the full itinerary optimization pipeline: city
// analysis, day assignment, phase rules, transition splitting, load
// balancing, pacing caps, route sequencing and a single validate/correct pass.
package optimizer

import (
	"context"
	"fmt"
	"log"
	"time"

	"itinerary-optimizer/internal/balancing"
	"itinerary-optimizer/internal/cities"
	"itinerary-optimizer/internal/clustering"
	"itinerary-optimizer/internal/lodging"
	"itinerary-optimizer/internal/models"
	"itinerary-optimizer/internal/planning"
	"itinerary-optimizer/internal/sequencing"
	"itinerary-optimizer/internal/validation"
)

// State is a stage of the optimization state machine
type State string

const (
	StateHealthCheck     State = "health_check"
	StateContextAnalysis State = "context_analysis"
	StateClustering      State = "clustering"
	StatePhaseAssignment State = "phase_assignment"
	StateTransitionSplit State = "transition_split"
	StateZoneContinuity  State = "zone_continuity"
	StateEnergyCheck     State = "energy_check"
	StateRouteSequencing State = "route_sequencing"
	StateValidate        State = "validate"
	StateCorrectionLoop  State = "correction_loop"
	StateDone            State = "done"
	StateAborted         State = "aborted"
)

// DefaultMinCityCoverage is the share of activities that must resolve to a
// city for the pipeline to run
const DefaultMinCityCoverage = 0.5

// Options tunes the pipeline. Zero values take the defaults.
type Options struct {
	PriorityRadiusKm float64         `json:"priority_radius_km"`
	MinActivities    int             `json:"min_activities"`
	MaxActivities    int             `json:"max_activities"`
	Day1Cap          int             `json:"day1_cap"`
	LastDayCap       int             `json:"last_day_cap"`
	BufferMinutes    int             `json:"buffer_minutes"`
	MinCityCoverage  float64         `json:"min_city_coverage"`
	SequenceMode     sequencing.Mode `json:"sequence_mode"`
}

// DefaultOptions returns the stock thresholds
func DefaultOptions() Options {
	return Options{
		PriorityRadiusKm: planning.DefaultPriorityRadiusKm,
		MinActivities:    balancing.DefaultMinActivities,
		MaxActivities:    balancing.DefaultMaxActivities,
		Day1Cap:          planning.DefaultDay1Cap,
		LastDayCap:       planning.DefaultLastDayCap,
		BufferMinutes:    sequencing.DefaultBufferMinutes,
		MinCityCoverage:  DefaultMinCityCoverage,
		SequenceMode:     sequencing.ModeBalanced,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PriorityRadiusKm <= 0 {
		o.PriorityRadiusKm = def.PriorityRadiusKm
	}
	if o.MinActivities <= 0 {
		o.MinActivities = def.MinActivities
	}
	if o.MaxActivities <= 0 {
		o.MaxActivities = def.MaxActivities
	}
	if o.Day1Cap <= 0 {
		o.Day1Cap = def.Day1Cap
	}
	if o.LastDayCap <= 0 {
		o.LastDayCap = def.LastDayCap
	}
	if o.BufferMinutes <= 0 {
		o.BufferMinutes = def.BufferMinutes
	}
	if o.MinCityCoverage <= 0 {
		o.MinCityCoverage = def.MinCityCoverage
	}
	if o.SequenceMode == "" {
		o.SequenceMode = def.SequenceMode
	}
	return o
}

// StructuralError is returned when the itinerary shape is invalid. Nothing is
// modified when it is returned.
type StructuralError struct {
	Reason    string
	DayNumber int
}

func (e *StructuralError) Error() string {
	if e.DayNumber > 0 {
		return fmt.Sprintf("invalid itinerary: day %d: %s", e.DayNumber, e.Reason)
	}
	return fmt.Sprintf("invalid itinerary: %s", e.Reason)
}

// StageTrace records one visited state
type StageTrace struct {
	State      State  `json:"state"`
	DurationMs int64  `json:"duration_ms"`
	Note       string `json:"note,omitempty"`
}

// Metrics summarizes what each stage did
type Metrics struct {
	Days           int                      `json:"days"`
	Activities     int                      `json:"activities"`
	CityCoverage   float64                  `json:"city_coverage"`
	MissingCoords  int                      `json:"missing_coords"`
	Segments       int                      `json:"segments"`
	Transitions    int                      `json:"transitions"`
	Zones          int                      `json:"zones"`
	Assignment     planning.AssignmentStats `json:"assignment"`
	Phases         planning.PhaseReport     `json:"phases"`
	TransitionMove int                      `json:"transition_moves"`
	Balance        balancing.ApplyResult    `json:"balance"`
	BalanceScore   float64                  `json:"balance_score"`
	CapRelocations int                      `json:"cap_relocations"`
	SequencedDays  int                      `json:"sequenced_days"`
	Savings        sequencing.Stats         `json:"savings"`
	Correction     *planning.MixedDayStats  `json:"correction,omitempty"`
	ResidualErrors int                      `json:"residual_errors"`
	DurationMs     int64                    `json:"duration_ms"`
}

// Result is the outcome of a full optimization pass
type Result struct {
	Success    bool                  `json:"success"`
	State      State                 `json:"state"`
	Itinerary  *models.Itinerary     `json:"itinerary"`
	Context    *planning.TripContext `json:"context,omitempty"`
	Validation *validation.Report    `json:"validation,omitempty"`
	Metrics    Metrics               `json:"metrics"`
	Warnings   []string              `json:"warnings"`
	Errors     []string              `json:"errors"`
	Trace      []StageTrace          `json:"trace"`
}

// Optimizer wires the engine components together
type Optimizer struct {
	opts      Options
	resolver  *cities.Resolver
	lookup    lodging.Lookup
	clusterer *clustering.Clusterer
	sequencer *sequencing.Sequencer
	assigner  *planning.Assigner
	phases    *planning.PhaseRules
	splitter  *planning.TransitionSplitter
	balancer  *balancing.Balancer
	corrector *planning.MixedDayCorrector
}

// New creates an optimizer. A nil resolver uses the default city catalog and a
// nil lookup reads lodgings from the itinerary itself.
func New(resolver *cities.Resolver, lookup lodging.Lookup, opts Options) *Optimizer {
	opts = opts.withDefaults()
	if resolver == nil {
		resolver = cities.NewResolver(nil)
	}
	if lookup == nil {
		lookup = lodging.NewDirectory(resolver)
	}
	seq := sequencing.NewSequencer(opts.BufferMinutes)
	balancer := balancing.NewBalancer(resolver, lookup, seq, balancing.Config{
		MinActivities: opts.MinActivities,
		MaxActivities: opts.MaxActivities,
	})
	return &Optimizer{
		opts:      opts,
		resolver:  resolver,
		lookup:    lookup,
		clusterer: clustering.NewClusterer(resolver),
		sequencer: seq,
		assigner:  planning.NewAssigner(resolver, lookup, opts.PriorityRadiusKm),
		phases:    planning.NewPhaseRules(resolver, lookup, opts.Day1Cap, opts.LastDayCap),
		splitter:  planning.NewTransitionSplitter(resolver, lookup, seq, opts.Day1Cap),
		balancer:  balancer,
		corrector: planning.NewMixedDayCorrector(resolver, lookup, seq, opts.Day1Cap),
	}
}

// Options returns the effective options
func (o *Optimizer) Options() Options {
	return o.opts
}

// Optimize runs the pipeline on a private copy of the itinerary. A structural
// problem returns a *StructuralError. Low city coverage and residual distance
// errors are reported through Result.Success instead.
func (o *Optimizer) Optimize(ctx context.Context, it *models.Itinerary) (*Result, error) {
	totalStart := time.Now()
	if err := CheckStructure(it); err != nil {
		log.Printf("[OPTIMIZER] Aborted: %v", err)
		return nil, err
	}

	work := it.Clone()
	work.Normalize()
	run := &pipeline{
		o:      o,
		work:   work,
		result: &Result{State: StateHealthCheck, Warnings: []string{}, Errors: []string{}},
	}

	log.Printf("[OPTIMIZER] Starting: itinerary=%s days=%d activities=%d mode=%s",
		work.ID, len(work.Days), work.ActivityCount(), o.opts.SequenceMode)

	stages := []struct {
		state State
		fn    func() bool
	}{
		{StateHealthCheck, run.healthCheck},
		{StateContextAnalysis, run.analyzeContext},
		{StateClustering, run.cluster},
		{StatePhaseAssignment, run.applyPhases},
		{StateTransitionSplit, run.splitTransitions},
		{StateZoneContinuity, run.balance},
		{StateEnergyCheck, run.enforceCaps},
		{StateRouteSequencing, run.sequenceRoutes},
		{StateValidate, run.validate},
	}
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("optimization cancelled before %s: %w", stage.state, err)
		}
		if !run.step(stage.state, stage.fn) {
			run.result.State = StateAborted
			run.finish(totalStart)
			return run.result, nil
		}
	}

	if !run.result.Validation.Valid {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("optimization cancelled before %s: %w", StateCorrectionLoop, err)
		}
		run.step(StateCorrectionLoop, run.correct)
	}

	run.result.State = StateDone
	run.result.Success = run.result.Validation.Valid
	run.result.Metrics.ResidualErrors = run.result.Validation.ErrorCount()
	if !run.result.Success {
		run.result.Errors = append(run.result.Errors,
			fmt.Sprintf("%d distance errors remain after correction on days %v",
				run.result.Validation.ErrorCount(), run.result.Validation.AffectedDays()))
	}
	run.finish(totalStart)
	return run.result, nil
}

// CheckStructure verifies the itinerary shape: at least one day, days numbered
// 1..N in order, unique non-empty activity ids and unique lodging segment keys.
func CheckStructure(it *models.Itinerary) error {
	if it == nil {
		return &StructuralError{Reason: "itinerary is missing"}
	}
	if len(it.Days) == 0 {
		return &StructuralError{Reason: "itinerary has no days"}
	}

	seen := make(map[string]int)
	for i := range it.Days {
		d := &it.Days[i]
		if d.Number != i+1 {
			return &StructuralError{Reason: fmt.Sprintf("days must be numbered 1..%d in order (day at position %d is %d)", len(it.Days), i+1, d.Number), DayNumber: d.Number}
		}
		for j := range d.Activities {
			id := d.Activities[j].ID
			if id == "" {
				return &StructuralError{Reason: fmt.Sprintf("activity %d has no id", j), DayNumber: d.Number}
			}
			if owner, dup := seen[id]; dup {
				return &StructuralError{Reason: fmt.Sprintf("activity %s is also scheduled on day %d", id, owner), DayNumber: d.Number}
			}
			seen[id] = d.Number
		}
	}

	if err := lodging.ValidateSegmentKeys(it.Lodgings); err != nil {
		return &StructuralError{Reason: err.Error()}
	}
	return nil
}

// AssignActivitiesOptimally redistributes activities to the days whose lodging is nearest
func (o *Optimizer) AssignActivitiesOptimally(it *models.Itinerary) (*models.Itinerary, planning.AssignmentStats) {
	work := it.Clone()
	work.Normalize()
	return o.assigner.Assign(work)
}

// Balance scores the days and returns the balancing suggestions
func (o *Optimizer) Balance(it *models.Itinerary) balancing.Report {
	work := it.Clone()
	work.Normalize()
	return o.balancer.Balance(work)
}

// ApplySuggestions applies suggestions in priority order
func (o *Optimizer) ApplySuggestions(it *models.Itinerary, suggestions []balancing.Suggestion) (*models.Itinerary, balancing.ApplyResult) {
	return o.balancer.ApplyAll(it, suggestions)
}

// Sequence orders the activities of one day
func (o *Optimizer) Sequence(activities []models.Activity, opts sequencing.Options) sequencing.Result {
	if opts.Mode == "" {
		opts.Mode = o.opts.SequenceMode
	}
	return o.sequencer.Sequence(activities, opts)
}

// ValidateDistances reports suspicious same-day hops
func (o *Optimizer) ValidateDistances(it *models.Itinerary) validation.Report {
	return validation.ValidateDistances(it)
}

// CorrectMixedDays moves activities of minority cities to days in their city
func (o *Optimizer) CorrectMixedDays(it *models.Itinerary) (*models.Itinerary, planning.MixedDayStats) {
	work := it.Clone()
	work.Normalize()
	return o.corrector.Correct(work)
}

// AnalyzeContext returns the segment and phase view of the itinerary
func (o *Optimizer) AnalyzeContext(it *models.Itinerary) planning.TripContext {
	return planning.AnalyzeContext(it, o.resolver)
}
