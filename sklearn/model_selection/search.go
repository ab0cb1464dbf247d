// Package model_selection implements k-fold cross-validated grid search over
// hyperparameter configurations.
//
// Example:
//
//	grid := model_selection.Grid{"learning_rate": {0.01, 0.1, 0.3}}
//	search := model_selection.NewGridSearchCV(ensemble.Factory, grid, metrics.LogLoss{},
//	    model_selection.WithNFolds(10),
//	    model_selection.WithStratified(true),
//	    model_selection.WithFailurePolicy(model_selection.Continue),
//	)
//	outcome, err := search.Fit(ctx, ds)
package model_selection

import (
	"context"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gridcv/core/model"
	"github.com/YuminosukeSato/gridcv/core/parallel"
	"github.com/YuminosukeSato/gridcv/dataset"
	"github.com/YuminosukeSato/gridcv/metrics"
	"github.com/YuminosukeSato/gridcv/pkg/errors"
	"github.com/YuminosukeSato/gridcv/pkg/log"
)

// GridSearchCV cross-validates every configuration of a Grid and selects the
// best one.
type GridSearchCV struct {
	factory model.Factory
	grid    Grid
	scorer  metrics.Scorer

	nFolds     int
	stratified bool
	seed       uint64
	splitter   Splitter

	direction    metrics.Direction
	directionSet bool

	policy  FailurePolicy
	timeout time.Duration
	workers int
	refit   bool
	logger  log.Logger
}

// Option configures a GridSearchCV.
type Option func(*GridSearchCV)

// WithNFolds sets the fold count K. Default 5.
func WithNFolds(k int) Option {
	return func(g *GridSearchCV) { g.nFolds = k }
}

// WithStratified toggles per-class stratification of folds. Default true.
func WithStratified(stratified bool) Option {
	return func(g *GridSearchCV) { g.stratified = stratified }
}

// WithSeed sets the seed of the fold shuffle.
func WithSeed(seed uint64) Option {
	return func(g *GridSearchCV) { g.seed = seed }
}

// WithSplitter replaces the built-in KFold/StratifiedKFold. The fold count
// then comes from the splitter.
func WithSplitter(s Splitter) Option {
	return func(g *GridSearchCV) { g.splitter = s }
}

// WithDirection overrides the scorer's own direction.
func WithDirection(d metrics.Direction) Option {
	return func(g *GridSearchCV) {
		g.direction = d
		g.directionSet = true
	}
}

// WithFailurePolicy sets how trial failures are handled. Default Abort.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(g *GridSearchCV) { g.policy = p }
}

// WithTrialTimeout bounds each (configuration, fold) trial. Zero disables it.
func WithTrialTimeout(d time.Duration) Option {
	return func(g *GridSearchCV) { g.timeout = d }
}

// WithWorkers bounds the number of concurrent trials. Zero or less means
// runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(g *GridSearchCV) { g.workers = n }
}

// WithRefit fits the best configuration on the whole dataset after the search.
func WithRefit(refit bool) Option {
	return func(g *GridSearchCV) { g.refit = refit }
}

// WithLogger sets the logger; default is log.GetLogger().
func WithLogger(l log.Logger) Option {
	return func(g *GridSearchCV) { g.logger = l }
}

// NewGridSearchCV creates a grid search.
func NewGridSearchCV(factory model.Factory, grid Grid, scorer metrics.Scorer, opts ...Option) *GridSearchCV {
	g := &GridSearchCV{
		factory:    factory,
		grid:       grid,
		scorer:     scorer,
		nFolds:     5,
		stratified: true,
		policy:     Abort,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.GetLogger()
	}
	if !g.directionSet && scorer != nil {
		g.direction = scorer.Direction()
	}
	return g
}

// foldData is a fold materialized once and shared read-only by all trials.
type foldData struct {
	trainX *mat.Dense
	trainY *mat.VecDense
	valX   *mat.Dense
	valY   []int
}

type trialOutput struct {
	score     float64
	fitTime   time.Duration
	scoreTime time.Duration
	phase     string
	err       error
}

// Fit runs the search over ds. ds is not modified.
//
// Grid and fold-count problems are returned before any trial runs. A failed
// trial under Abort, a cancelled ctx, or a search in which no configuration
// scored on every fold returns a SearchFailedError.
func (g *GridSearchCV) Fit(ctx context.Context, ds *dataset.Dataset) (*SearchOutcome, error) {
	if g.factory == nil {
		return nil, errors.NewValueError("GridSearchCV.Fit", "nil model factory")
	}
	if g.scorer == nil {
		return nil, errors.NewValueError("GridSearchCV.Fit", "nil scorer")
	}
	if ds == nil {
		return nil, errors.NewModelError("GridSearchCV.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	configs, err := g.grid.Enumerate()
	if err != nil {
		return nil, err
	}
	splitter := g.splitter
	if splitter == nil {
		splitter = NewSplitter(g.nFolds, g.stratified, g.seed)
	}
	folds, err := splitter.Split(ds.Y)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	nFolds := len(folds)
	nTrials := len(configs) * nFolds
	logger := g.logger.With(
		log.ComponentKey, "model_selection",
		log.ScorerKey, g.scorer.Name(),
	)
	logger.Info("Search started",
		log.ConfigsKey, len(configs),
		log.FoldsKey, nFolds,
		log.TrialsKey, nTrials,
		log.PolicyKey, g.policy.String(),
		log.WorkersKey, g.workers,
		log.SamplesKey, ds.NSamples(),
	)

	data := make([]foldData, nFolds)
	for k, f := range folds {
		train := ds.Subset(f.TrainIndices)
		val := ds.Subset(f.ValidationIndices)
		data[k] = foldData{
			trainX: train.X,
			trainY: train.LabelVector(),
			valX:   val.X,
			valY:   val.Y,
		}
	}

	// Slot table indexed [config][fold]; each trial writes only its own slot.
	slots := make([][]TrialResult, len(configs))
	for i := range slots {
		slots[i] = make([]TrialResult, nFolds)
	}
	results := make([]AggregatedResult, len(configs))
	remaining := make([]int, len(configs))
	for i := range remaining {
		remaining[i] = nFolds
	}

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()

	var (
		mu          sync.Mutex
		failed      int
		firstFailed = -1
		firstErr    error
	)

	runTrial := func(t int) {
		ci, fold := t/nFolds, t%nFolds
		cfg := configs[ci]
		out := g.runTrial(ctx, cfg, &data[fold])

		res := TrialResult{
			ConfigIndex:   ci,
			Config:        cfg,
			Fold:          fold,
			Score:         out.score,
			FitDuration:   out.fitTime,
			ScoreDuration: out.scoreTime,
		}
		if out.err != nil {
			res.Err = errors.NewTrialFailedError(cfg.Key(), ci, fold, out.phase, out.err)
			logger.Warn("Trial failed", res.Err,
				log.ConfigKey, cfg.Key(),
				log.FoldKey, fold,
				log.PhaseKey, out.phase,
			)
		} else {
			logger.Debug("Trial finished",
				log.ConfigKey, cfg.Key(),
				log.FoldKey, fold,
				log.ScoreKey, out.score,
				log.DurationMsKey, out.fitTime.Milliseconds(),
			)
		}
		slots[ci][fold] = res

		mu.Lock()
		if res.Err != nil {
			failed++
			if firstFailed < 0 || t < firstFailed {
				firstFailed, firstErr = t, res.Err
			}
			if g.policy == Abort {
				stopDispatch()
			}
		}
		remaining[ci]--
		done := remaining[ci] == 0
		mu.Unlock()

		if done {
			results[ci] = aggregate(ci, cfg, slots[ci])
			logger.Debug("Configuration aggregated",
				log.ConfigKey, cfg.Key(),
				log.ScoreKey, results[ci].MeanScore,
				log.StdKey, results[ci].StdScore,
				"valid_folds", results[ci].ValidFolds,
			)
		}
	}

	dispatched := parallel.ForEach(dispatchCtx, nTrials, g.workers, runTrial)

	if firstErr != nil && g.policy == Abort {
		logger.Error("Search aborted", firstErr, log.TrialsKey, dispatched)
		return nil, errors.NewSearchFailedError(g.policy.String(), "trial failed", firstErr)
	}
	if dispatched < nTrials {
		cause := ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		logger.Warn("Search cancelled", log.TrialsKey, dispatched)
		return nil, errors.NewSearchFailedError(g.policy.String(), "search cancelled", cause)
	}

	best := rank(results, g.direction)
	if best < 0 {
		logger.Error("Search failed", errors.ErrNoEligibleConfiguration, log.FailedKey, failed)
		return nil, errors.NewSearchFailedError(g.policy.String(), "no configuration is eligible", errors.ErrNoEligibleConfiguration)
	}

	outcome := &SearchOutcome{
		Best:         results[best],
		Results:      results,
		Policy:       g.policy,
		Direction:    g.direction,
		Scorer:       g.scorer.Name(),
		NFolds:       nFolds,
		Stratified:   g.stratified,
		Seed:         g.seed,
		Trials:       nTrials,
		FailedTrials: failed,
	}
	logger.Info("Best configuration selected",
		log.BestKey, outcome.Best.Config.Key(),
		log.ScoreKey, outcome.Best.MeanScore,
		log.StdKey, outcome.Best.StdScore,
		log.FailedKey, failed,
	)
	if outcome.Best.Status() == Partial {
		logger.Warn("Best configuration scored on a subset of folds",
			log.BestKey, outcome.Best.Config.Key(),
			"valid_folds", outcome.Best.ValidFolds,
			log.FoldsKey, nFolds,
		)
	}

	if g.refit {
		m, err := g.factory(outcome.Best.Config.Params())
		if err != nil {
			return nil, errors.Wrap(err, "refit best configuration")
		}
		err = errors.SafeExecute("refit", func() error {
			return model.FitWithContext(ctx, m, ds.X, ds.LabelVector())
		})
		if err != nil {
			return nil, errors.Wrap(err, "refit best configuration")
		}
		outcome.BestEstimator = m
		logger.Info("Best configuration refit", log.OperationKey, log.OperationRefit, log.SamplesKey, ds.NSamples())
	}

	outcome.Duration = time.Since(start)
	return outcome, nil
}

// runTrial evaluates one configuration on one fold under the trial timeout.
// In-flight trials are not cancelled with the parent context; they finish or
// hit their own deadline.
func (g *GridSearchCV) runTrial(parent context.Context, cfg Configuration, fd *foldData) trialOutput {
	ctx := context.WithoutCancel(parent)
	if g.timeout <= 0 {
		return g.evaluate(ctx, cfg, fd)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan trialOutput, 1)
	go func() {
		done <- g.evaluate(ctx, cfg, fd)
	}()
	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		// The model keeps running in its goroutine until it returns; a
		// ContextFitter returns promptly.
		return trialOutput{phase: PhaseFit, err: ctx.Err()}
	}
}

func (g *GridSearchCV) evaluate(ctx context.Context, cfg Configuration, fd *foldData) trialOutput {
	out := trialOutput{phase: PhaseBuild}
	out.err = errors.SafeExecute("trial "+cfg.Key(), func() error {
		m, err := g.factory(cfg.Params())
		if err != nil {
			return err
		}

		out.phase = PhaseFit
		fitStart := time.Now()
		if err := model.FitWithContext(ctx, m, fd.trainX, fd.trainY); err != nil {
			return err
		}
		out.fitTime = time.Since(fitStart)

		out.phase = PhasePredict
		scoreStart := time.Now()
		proba, err := m.PredictProba(fd.valX)
		if err != nil {
			return err
		}

		out.phase = PhaseScore
		score, err := g.scorer.Score(fd.valY, proba, m.Classes())
		if err != nil {
			return err
		}
		if err := errors.CheckScalar(g.scorer.Name(), score, 0); err != nil {
			return err
		}
		out.score = score
		out.scoreTime = time.Since(scoreStart)
		return nil
	})
	return out
}
