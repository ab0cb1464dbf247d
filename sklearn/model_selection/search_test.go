package model_selection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/gridcv/core/model"
	"github.com/YuminosukeSato/gridcv/metrics"
	"github.com/YuminosukeSato/gridcv/pkg/errors"
	"github.com/YuminosukeSato/gridcv/pkg/log"
)

func quietLogger() log.Logger {
	l, _ := log.NewTestLogger(log.LevelError)
	return l
}

func TestGridSearchEvaluatesEveryConfiguration(t *testing.T) {
	ds := stubDataset(60)
	grid := Grid{
		"alpha": {0.1, 1.0, 10.0},
		"tag":   {"a", "b"},
	}
	search := NewGridSearchCV(stubFactory, grid, metrics.LogLoss{},
		WithNFolds(4), WithSeed(3), WithWorkers(3), WithLogger(quietLogger()))

	outcome, err := search.Fit(context.Background(), ds)
	require.NoError(t, err)

	require.Len(t, outcome.Results, 6)
	assert.Equal(t, 24, outcome.Trials)
	assert.Equal(t, 0, outcome.FailedTrials)
	assert.Equal(t, Abort, outcome.Policy)
	assert.Equal(t, metrics.Minimize, outcome.Direction)
	assert.Equal(t, "log_loss", outcome.Scorer)
	assert.Equal(t, 4, outcome.NFolds)

	for i, r := range outcome.Results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, Complete, r.Status())
		assert.Equal(t, 4, r.ValidFolds)
		assert.Equal(t, 4, r.TotalFolds)
		require.Len(t, r.Trials, 4)
		for k, tr := range r.Trials {
			assert.Equal(t, k, tr.Fold)
			assert.Equal(t, i, tr.ConfigIndex)
			assert.True(t, tr.OK())
		}

		mean, std := stat.PopMeanStdDev(r.FoldScores, nil)
		assert.InDelta(t, mean, r.MeanScore, 1e-12)
		assert.InDelta(t, std, r.StdScore, 1e-12)
		assert.LessOrEqual(t, outcome.Best.MeanScore, r.MeanScore)
	}
	assert.Equal(t, 1, outcome.Best.Rank)
	assert.Equal(t, outcome.Best.Config.Key(), outcome.Ranked()[0].Config.Key())
}

func TestGridSearchTieGoesToFirstConfiguration(t *testing.T) {
	// "tag" does not change the model, so both configurations score the same.
	grid := Grid{"tag": {"z", "a"}}
	outcome, err := NewGridSearchCV(stubFactory, grid, metrics.LogLoss{},
		WithNFolds(3), WithLogger(quietLogger())).Fit(context.Background(), stubDataset(30))
	require.NoError(t, err)
	assert.Equal(t, outcome.Results[0].MeanScore, outcome.Results[1].MeanScore)
	assert.Equal(t, "tag=z", outcome.Best.Config.Key())
	assert.Equal(t, 0, outcome.Best.Index)
}

func TestGridSearchDirectionOverride(t *testing.T) {
	grid := Grid{"alpha": {0.01, 1000.0}}
	ds := stubDataset(40)

	minimized, err := NewGridSearchCV(stubFactory, grid, metrics.LogLoss{},
		WithLogger(quietLogger())).Fit(context.Background(), ds)
	require.NoError(t, err)
	maximized, err := NewGridSearchCV(stubFactory, grid, metrics.LogLoss{},
		WithDirection(metrics.Maximize), WithLogger(quietLogger())).Fit(context.Background(), ds)
	require.NoError(t, err)

	assert.NotEqual(t, minimized.Best.Config.Key(), maximized.Best.Config.Key())
	assert.Equal(t, metrics.Maximize, maximized.Direction)
	for _, r := range maximized.Results {
		assert.GreaterOrEqual(t, maximized.Best.MeanScore, r.MeanScore)
	}
}

func TestGridSearchContinuePolicyMarksPartial(t *testing.T) {
	grid := Grid{"fail_without_row0": {false, true}}
	search := NewGridSearchCV(stubFactory, grid, metrics.LogLoss{},
		WithNFolds(5), WithFailurePolicy(Continue), WithLogger(quietLogger()))

	outcome, err := search.Fit(context.Background(), stubDataset(50))
	require.NoError(t, err)

	healthy, failing := outcome.Results[0], outcome.Results[1]
	assert.Equal(t, Complete, healthy.Status())
	assert.Equal(t, Partial, failing.Status())
	assert.Equal(t, 4, failing.ValidFolds)
	assert.Equal(t, 5, failing.TotalFolds)
	assert.Len(t, failing.FoldScores, 4)
	assert.True(t, failing.Eligible())
	assert.Equal(t, 1, healthy.Rank)
	assert.Equal(t, 2, failing.Rank)

	mean, std := stat.PopMeanStdDev(failing.FoldScores, nil)
	assert.InDelta(t, mean, failing.MeanScore, 1e-12)
	assert.InDelta(t, std, failing.StdScore, 1e-12)

	require.Len(t, failing.Failures(), 1)
	var tf *errors.TrialFailedError
	require.True(t, errors.As(failing.Failures()[0], &tf))
	assert.Equal(t, PhaseFit, tf.Phase)
	assert.Equal(t, "fail_without_row0=true", tf.Config)
	assert.Equal(t, 1, tf.ConfigIndex)

	assert.Equal(t, Continue, outcome.Policy)
	assert.Equal(t, 1, outcome.FailedTrials)
	assert.Equal(t, healthy.Config.Key(), outcome.Best.Config.Key())
	assert.Equal(t, []string{"fail_without_row0=false", "fail_without_row0=true"},
		[]string{outcome.Ranked()[0].Config.Key(), outcome.Ranked()[1].Config.Key()})
}

func TestGridSearchAbortPolicyFails(t *testing.T) {
	grid := Grid{"fail_without_row0": {false, true}}
	search := NewGridSearchCV(stubFactory, grid, metrics.LogLoss{},
		WithNFolds(5), WithFailurePolicy(Abort), WithWorkers(2), WithLogger(quietLogger()))

	outcome, err := search.Fit(context.Background(), stubDataset(50))
	require.Error(t, err)
	assert.Nil(t, outcome)

	var sf *errors.SearchFailedError
	require.True(t, errors.As(err, &sf))
	assert.Equal(t, "abort", sf.Policy)

	var tf *errors.TrialFailedError
	require.True(t, errors.As(err, &tf))
	assert.Equal(t, 1, tf.ConfigIndex)
	assert.Contains(t, err.Error(), "row 0 missing")
}

func TestGridSearchContinueSelectsPartialBest(t *testing.T) {
	grid := Grid{"fail_without_row0": {true}}
	search := NewGridSearchCV(stubFactory, grid, metrics.LogLoss{},
		WithNFolds(5), WithFailurePolicy(Continue), WithRefit(true), WithLogger(quietLogger()))

	outcome, err := search.Fit(context.Background(), stubDataset(50))
	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)

	best := outcome.Best
	assert.Equal(t, Partial, best.Status())
	assert.Equal(t, 4, best.ValidFolds)
	assert.Equal(t, 5, best.TotalFolds)
	assert.Equal(t, 1, best.Rank)
	assert.Len(t, best.Failures(), 1)
	assert.Equal(t, 1, outcome.FailedTrials)
	assert.NotNil(t, outcome.BestEstimator)
}

func TestRankCompleteBeforePartial(t *testing.T) {
	results := []AggregatedResult{
		{Index: 0, MeanScore: 0.2, ValidFolds: 3, TotalFolds: 5},
		{Index: 1, MeanScore: 0.5, ValidFolds: 5, TotalFolds: 5},
		{Index: 2, MeanScore: 0.1, ValidFolds: 0, TotalFolds: 5},
		{Index: 3, MeanScore: 0.4, ValidFolds: 5, TotalFolds: 5},
		{Index: 4, MeanScore: 0.1, ValidFolds: 4, TotalFolds: 5},
	}

	tests := []struct {
		name  string
		dir   metrics.Direction
		best  int
		ranks []int
	}{
		{"minimize", metrics.Minimize, 3, []int{4, 2, 0, 1, 3}},
		{"maximize", metrics.Maximize, 1, []int{3, 1, 0, 2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := append([]AggregatedResult(nil), results...)
			assert.Equal(t, tt.best, rank(rs, tt.dir))
			got := make([]int, len(rs))
			for i, r := range rs {
				got[i] = r.Rank
			}
			assert.Equal(t, tt.ranks, got)
		})
	}

	none := []AggregatedResult{{ValidFolds: 0, TotalFolds: 3}}
	assert.Equal(t, -1, rank(none, metrics.Minimize))
}

func TestRankedBefore(t *testing.T) {
	assert.True(t, RankedBefore(1, 2))
	assert.False(t, RankedBefore(2, 1))
	assert.True(t, RankedBefore(3, 0))
	assert.False(t, RankedBefore(0, 3))
	assert.False(t, RankedBefore(0, 0))
}

// A class with one member is missing from the training rows of the fold that
// validates it, so that fold cannot be scored.
func TestGridSearchSingletonClassFailsOneFold(t *testing.T) {
	ds := stubDataset(30)
	for i := range ds.Y {
		ds.Y[i] = i % 2
	}
	ds.Y[7] = 2

	search := NewGridSearchCV(stubFactory, Grid{"alpha": {1.0}}, metrics.LogLoss{},
		WithNFolds(3), WithStratified(true), WithSeed(11),
		WithFailurePolicy(Continue), WithLogger(quietLogger()))
	outcome, err := search.Fit(context.Background(), ds)
	require.NoError(t, err)

	r := outcome.Best
	assert.Equal(t, Partial, r.Status())
	assert.Equal(t, 2, r.ValidFolds)
	require.Len(t, r.Failures(), 1)

	var tf *errors.TrialFailedError
	require.True(t, errors.As(r.Failures()[0], &tf))
	assert.Equal(t, PhaseScore, tf.Phase)
	var lm *errors.LabelClassMismatchError
	require.True(t, errors.As(r.Failures()[0], &lm))
	assert.Equal(t, 2, lm.Label)
	assert.Equal(t, []int{0, 1}, lm.Classes)
}

func TestGridSearchNoEligibleConfiguration(t *testing.T) {
	grid := Grid{"fail": {true}, "alpha": {1.0, 2.0}}
	search := NewGridSearchCV(stubFactory, grid, metrics.LogLoss{},
		WithNFolds(3), WithFailurePolicy(Continue), WithLogger(quietLogger()))

	_, err := search.Fit(context.Background(), stubDataset(30))
	var sf *errors.SearchFailedError
	require.True(t, errors.As(err, &sf))
	assert.Equal(t, "continue", sf.Policy)
	assert.ErrorIs(t, err, errors.ErrNoEligibleConfiguration)
}

func TestGridSearchRecoversPanics(t *testing.T) {
	grid := Grid{"panic": {false, true}}
	search := NewGridSearchCV(stubFactory, grid, metrics.LogLoss{},
		WithNFolds(3), WithFailurePolicy(Continue), WithLogger(quietLogger()))

	outcome, err := search.Fit(context.Background(), stubDataset(30))
	require.NoError(t, err)

	exploded := outcome.Results[1]
	assert.Equal(t, Invalid, exploded.Status())
	assert.Equal(t, 0.0, exploded.MeanScore)
	for _, f := range exploded.Failures() {
		var pe *errors.PanicError
		require.True(t, errors.As(f, &pe))
		assert.Equal(t, "stub model exploded", pe.PanicValue)
	}
}

func TestGridSearchTrialTimeout(t *testing.T) {
	tests := []struct {
		name    string
		factory model.Factory
		grid    Grid
	}{
		{
			name:    "context aware model",
			factory: stubFactory,
			grid:    Grid{"sleep_ms": {0, 5000}, "honor_context": {true}},
		},
		{
			name:    "plain model",
			factory: plainFactory,
			grid:    Grid{"sleep_ms": {0, 300}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			search := NewGridSearchCV(tt.factory, tt.grid, metrics.LogLoss{},
				WithNFolds(2),
				WithTrialTimeout(50*time.Millisecond),
				WithFailurePolicy(Continue),
				WithWorkers(4),
				WithLogger(quietLogger()))

			start := time.Now()
			outcome, err := search.Fit(context.Background(), stubDataset(20))
			require.NoError(t, err)
			assert.Less(t, time.Since(start), 5*time.Second)

			slow := outcome.Results[1]
			assert.Equal(t, Invalid, slow.Status())
			for _, f := range slow.Failures() {
				assert.ErrorIs(t, f, context.DeadlineExceeded)
				var tf *errors.TrialFailedError
				require.True(t, errors.As(f, &tf))
			}
			assert.Equal(t, 0, outcome.Best.Index)
		})
	}
}

func TestGridSearchTimeoutUnderAbort(t *testing.T) {
	search := NewGridSearchCV(stubFactory, Grid{"sleep_ms": {5000}, "honor_context": {true}}, metrics.LogLoss{},
		WithNFolds(2), WithTrialTimeout(20*time.Millisecond), WithLogger(quietLogger()))

	_, err := search.Fit(context.Background(), stubDataset(20))
	var sf *errors.SearchFailedError
	require.True(t, errors.As(err, &sf))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGridSearchCancelled(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewGridSearchCV(stubFactory, Grid{"alpha": {1.0}}, metrics.LogLoss{},
			WithLogger(quietLogger())).Fit(ctx, stubDataset(30))
		var sf *errors.SearchFailedError
		require.True(t, errors.As(err, &sf))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("during search", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var builds int
		factory := func(params map[string]interface{}) (model.Classifier, error) {
			builds++
			if builds == 2 {
				cancel()
			}
			return stubFactory(params)
		}
		grid := Grid{"alpha": {0.5, 1.0, 2.0, 4.0}}
		_, err := NewGridSearchCV(factory, grid, metrics.LogLoss{},
			WithNFolds(5), WithWorkers(1), WithLogger(quietLogger())).Fit(ctx, stubDataset(30))

		assert.ErrorIs(t, err, context.Canceled)
		// One worker: at most the trial queued during the cancel runs after it.
		assert.LessOrEqual(t, builds, 3)
	})
}

func TestGridSearchRejectsBeforeAnyTrial(t *testing.T) {
	tests := []struct {
		name  string
		grid  Grid
		folds int
		check func(t *testing.T, err error)
	}{
		{
			name:  "invalid grid",
			grid:  Grid{"alpha": {}},
			folds: 3,
			check: func(t *testing.T, err error) {
				var ge *errors.InvalidGridError
				assert.True(t, errors.As(err, &ge))
			},
		},
		{
			name:  "too many folds",
			grid:  Grid{"alpha": {1.0}},
			folds: 31,
			check: func(t *testing.T, err error) {
				var fe *errors.InvalidFoldCountError
				assert.True(t, errors.As(err, &fe))
			},
		},
		{
			name:  "one fold",
			grid:  Grid{"alpha": {1.0}},
			folds: 1,
			check: func(t *testing.T, err error) {
				var fe *errors.InvalidFoldCountError
				assert.True(t, errors.As(err, &fe))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			factory := func(params map[string]interface{}) (model.Classifier, error) {
				calls++
				return stubFactory(params)
			}
			_, err := NewGridSearchCV(factory, tt.grid, metrics.LogLoss{},
				WithNFolds(tt.folds), WithLogger(quietLogger())).Fit(context.Background(), stubDataset(30))
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, 0, calls)
		})
	}
}

func TestGridSearchIdempotentAndWorkerIndependent(t *testing.T) {
	ds := stubDataset(45)
	grid := Grid{"alpha": {0.1, 0.5, 2.0}, "tag": {"x", "y"}}

	run := func(workers int) *SearchOutcome {
		outcome, err := NewGridSearchCV(stubFactory, grid, metrics.LogLoss{},
			WithNFolds(5), WithSeed(9), WithWorkers(workers), WithLogger(quietLogger())).
			Fit(context.Background(), ds)
		require.NoError(t, err)
		return outcome
	}

	type summary struct {
		Key        string
		Mean, Std  float64
		ValidFolds int
		Rank       int
		Scores     []float64
	}
	summarize := func(o *SearchOutcome) []summary {
		out := make([]summary, len(o.Results))
		for i, r := range o.Results {
			out[i] = summary{r.Config.Key(), r.MeanScore, r.StdScore, r.ValidFolds, r.Rank, r.FoldScores}
		}
		return out
	}

	first := run(1)
	assert.Equal(t, summarize(first), summarize(run(1)))
	assert.Equal(t, summarize(first), summarize(run(8)))
}

func TestGridSearchDoesNotMutateDataset(t *testing.T) {
	ds := stubDataset(30)
	X := mat.DenseCopyOf(ds.X)
	y := append([]int(nil), ds.Y...)

	_, err := NewGridSearchCV(stubFactory, Grid{"alpha": {1.0, 3.0}}, metrics.AccuracyScorer{},
		WithNFolds(3), WithRefit(true), WithLogger(quietLogger())).Fit(context.Background(), ds)
	require.NoError(t, err)

	assert.True(t, mat.Equal(X, ds.X))
	assert.Equal(t, y, ds.Y)
}

func TestGridSearchRefit(t *testing.T) {
	ds := stubDataset(30)
	outcome, err := NewGridSearchCV(stubFactory, Grid{"alpha": {1.0, 3.0}}, metrics.LogLoss{},
		WithNFolds(3), WithRefit(true), WithLogger(quietLogger())).Fit(context.Background(), ds)
	require.NoError(t, err)

	require.NotNil(t, outcome.BestEstimator)
	assert.Equal(t, []int{0, 1, 2}, outcome.BestEstimator.Classes())
	proba, err := outcome.BestEstimator.PredictProba(ds.X)
	require.NoError(t, err)
	r, c := proba.Dims()
	assert.Equal(t, 30, r)
	assert.Equal(t, 3, c)

	withoutRefit, err := NewGridSearchCV(stubFactory, Grid{"alpha": {1.0}}, metrics.LogLoss{},
		WithNFolds(3), WithLogger(quietLogger())).Fit(context.Background(), ds)
	require.NoError(t, err)
	assert.Nil(t, withoutRefit.BestEstimator)
}

func TestGridSearchLogs(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	_, err := NewGridSearchCV(stubFactory, Grid{"alpha": {1.0, 2.0}}, metrics.LogLoss{},
		WithNFolds(3), WithLogger(logger)).Fit(context.Background(), stubDataset(30))
	require.NoError(t, err)

	assert.Equal(t, 1, logger.CountMessage("Search started"))
	assert.Equal(t, 6, logger.CountMessage("Trial finished"))
	assert.Equal(t, 2, logger.CountMessage("Configuration aggregated"))
	assert.Equal(t, 1, logger.CountMessage("Best configuration selected"))
	assert.True(t, logger.ContainsField(log.ComponentKey, "model_selection"))
	assert.True(t, logger.ContainsField(log.TrialsKey, 6.0))
}

func TestGridSearchNilArguments(t *testing.T) {
	ds := stubDataset(10)
	_, err := NewGridSearchCV(nil, Grid{"alpha": {1.0}}, metrics.LogLoss{}, WithLogger(quietLogger())).Fit(context.Background(), ds)
	assert.Error(t, err)
	_, err = NewGridSearchCV(stubFactory, Grid{"alpha": {1.0}}, nil, WithLogger(quietLogger())).Fit(context.Background(), ds)
	assert.Error(t, err)
	_, err = NewGridSearchCV(stubFactory, Grid{"alpha": {1.0}}, metrics.LogLoss{}, WithLogger(quietLogger())).Fit(context.Background(), nil)
	assert.Error(t, err)
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy("continue")
	require.NoError(t, err)
	assert.Equal(t, Continue, p)
	p, err = ParseFailurePolicy("ABORT")
	require.NoError(t, err)
	assert.Equal(t, Abort, p)
	_, err = ParseFailurePolicy("retry")
	assert.Error(t, err)
}
