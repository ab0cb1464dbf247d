package model_selection

import (
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/gridcv/core/model"
	"github.com/YuminosukeSato/gridcv/metrics"
	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

// FailurePolicy decides what a failed trial does to the search.
type FailurePolicy int

const (
	// Abort stops dispatching trials and fails the search with the first
	// trial failure.
	Abort FailurePolicy = iota
	// Continue records the failure and aggregates over the remaining folds.
	Continue
)

func (p FailurePolicy) String() string {
	if p == Continue {
		return "continue"
	}
	return "abort"
}

// ParseFailurePolicy accepts "abort" and "continue".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(s) {
	case "abort", "":
		return Abort, nil
	case "continue":
		return Continue, nil
	default:
		return Abort, errors.NewValidationError("failure_policy", "must be abort or continue", s)
	}
}

// Trial phases reported in TrialFailedError.
const (
	PhaseBuild   = "build"
	PhaseFit     = "fit"
	PhasePredict = "predict_proba"
	PhaseScore   = "score"
)

// TrialResult is the outcome of fitting and scoring one Configuration on one
// fold. Err is nil for a valid trial.
type TrialResult struct {
	ConfigIndex   int
	Config        Configuration
	Fold          int
	Score         float64
	FitDuration   time.Duration
	ScoreDuration time.Duration
	Err           error
}

// OK reports whether the trial produced a score.
func (t TrialResult) OK() bool { return t.Err == nil }

// Status classifies an aggregate by how many folds contributed.
type Status int

const (
	Complete Status = iota
	Partial
	Invalid
)

func (s Status) String() string {
	switch s {
	case Partial:
		return "partial"
	case Invalid:
		return "invalid"
	default:
		return "complete"
	}
}

// AggregatedResult summarizes all folds of one Configuration.
type AggregatedResult struct {
	Index  int
	Config Configuration

	// MeanScore and StdScore (population) cover the valid folds only; both
	// are zero when no fold is valid.
	MeanScore float64
	StdScore  float64

	ValidFolds int
	TotalFolds int

	// FoldScores holds the valid scores in fold order.
	FoldScores []float64

	// Trials holds every fold's trial in fold order.
	Trials []TrialResult

	MeanFitTime time.Duration

	// Rank is 1 for the best configuration and 0 for invalid ones.
	Rank int
}

// Status is Complete when every fold scored, Invalid when none did.
func (a AggregatedResult) Status() Status {
	switch {
	case a.ValidFolds == 0:
		return Invalid
	case a.ValidFolds < a.TotalFolds:
		return Partial
	default:
		return Complete
	}
}

// Eligible reports whether the configuration may be selected as best, i.e.
// at least one fold scored. Partial results rank after every complete one.
func (a AggregatedResult) Eligible() bool {
	return a.ValidFolds > 0
}

// Failures returns the errors of the failed folds.
func (a AggregatedResult) Failures() []error {
	var errs []error
	for _, t := range a.Trials {
		if t.Err != nil {
			errs = append(errs, t.Err)
		}
	}
	return errs
}

func aggregate(index int, cfg Configuration, trials []TrialResult) AggregatedResult {
	agg := AggregatedResult{
		Index:      index,
		Config:     cfg,
		TotalFolds: len(trials),
		Trials:     trials,
	}
	var fit time.Duration
	for _, t := range trials {
		if t.OK() {
			agg.FoldScores = append(agg.FoldScores, t.Score)
			fit += t.FitDuration
		}
	}
	agg.ValidFolds = len(agg.FoldScores)
	if agg.ValidFolds > 0 {
		agg.MeanScore, agg.StdScore = stat.PopMeanStdDev(agg.FoldScores, nil)
		agg.MeanFitTime = fit / time.Duration(agg.ValidFolds)
	}
	return agg
}

// rank assigns ranks to eligible results and returns the index of the best,
// or -1 when none is eligible. Complete results come before partial ones;
// within a status the mean decides and ties keep enumeration order.
func rank(results []AggregatedResult, dir metrics.Direction) int {
	var order []int
	for i := range results {
		results[i].Rank = 0
		if results[i].Eligible() {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := results[order[a]], results[order[b]]
		if sa, sb := ra.Status(), rb.Status(); sa != sb {
			return sa < sb
		}
		return dir.Better(ra.MeanScore, rb.MeanScore)
	})
	for r, i := range order {
		results[i].Rank = r + 1
	}
	if len(order) == 0 {
		return -1
	}
	return order[0]
}

// SearchOutcome is the result of a completed grid search.
type SearchOutcome struct {
	// Best is the top-ranked eligible configuration.
	Best AggregatedResult

	// Results holds every configuration in enumeration order.
	Results []AggregatedResult

	Policy     FailurePolicy
	Direction  metrics.Direction
	Scorer     string
	NFolds     int
	Stratified bool
	Seed       uint64

	Trials       int
	FailedTrials int
	Duration     time.Duration

	// BestEstimator is the best configuration refit on the whole dataset,
	// set only when refit is enabled.
	BestEstimator model.Classifier
}

// BestParams returns the parameters of the best configuration.
func (o *SearchOutcome) BestParams() map[string]interface{} {
	return o.Best.Config.Params()
}

// Ranked returns eligible results by rank followed by ineligible ones in
// enumeration order.
func (o *SearchOutcome) Ranked() []AggregatedResult {
	out := append([]AggregatedResult(nil), o.Results...)
	sort.SliceStable(out, func(a, b int) bool {
		return RankedBefore(out[a].Rank, out[b].Rank)
	})
	return out
}

// RankedBefore orders ranks ascending with rank 0 (not eligible) last. Use it
// with a stable sort to keep enumeration order among unranked results.
func RankedBefore(a, b int) bool {
	switch {
	case a == 0:
		return false
	case b == 0:
		return true
	default:
		return a < b
	}
}
