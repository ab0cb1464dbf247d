// Package ensemble provides a multiclass gradient boosting classifier built
// from depth-limited regression trees.
//
// Each boosting round fits one tree per class to the Newton step of the
// softmax cross-entropy, and adds it to the raw scores scaled by the learning
// rate. Leaf values are -G/(H+lambda).
//
// Example:
//
//	clf := ensemble.NewGradientBoostingClassifier(
//	    ensemble.WithLearningRate(0.1),
//	    ensemble.WithNEstimators(100),
//	)
//	if err := clf.Fit(X, y); err != nil {
//	    return err
//	}
//	proba, _ := clf.PredictProba(Xtest)
package ensemble

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gridcv/core/model"
	"github.com/YuminosukeSato/gridcv/pkg/errors"
	"github.com/YuminosukeSato/gridcv/pkg/log"
)

const modelName = "GradientBoostingClassifier"

var paramMapper = model.NewParameterMapper(modelName).
	Add("learning_rate", 0.1, "eta", "shrinkage_rate").
	Add("n_estimators", 100, "num_iterations", "num_boost_round", "num_trees").
	Add("max_depth", 3).
	Add("min_samples_leaf", 20, "min_data_in_leaf", "min_child_samples").
	Add("reg_lambda", 1.0, "lambda_l2", "lambda").
	Add("reg_alpha", 0.0, "lambda_l1", "alpha").
	Add("subsample", 1.0, "bagging_fraction").
	Add("random_state", 0, "seed")

// Parameters returns the parameter names, aliases and defaults accepted by
// Factory.
func Parameters() *model.ParameterMapper {
	return paramMapper
}

// GradientBoostingClassifier is a softmax gradient boosted tree classifier.
// Exported fields make it gob-encodable with model.SaveModel.
type GradientBoostingClassifier struct {
	State *model.StateManager

	LearningRate   float64
	NEstimators    int
	MaxDepth       int
	MinSamplesLeaf int
	RegLambda      float64
	RegAlpha       float64
	Subsample      float64
	RandomState    uint64

	ClassLabels []int
	InitScores  []float64
	Trees       [][]Tree // [round][class]

	// LossHistory is the training log loss after each round.
	LossHistory []float64
}

// Option configures a GradientBoostingClassifier.
type Option func(*GradientBoostingClassifier)

// WithLearningRate sets the shrinkage applied to every tree.
func WithLearningRate(lr float64) Option {
	return func(g *GradientBoostingClassifier) { g.LearningRate = lr }
}

// WithNEstimators sets the number of boosting rounds.
func WithNEstimators(n int) Option {
	return func(g *GradientBoostingClassifier) { g.NEstimators = n }
}

// WithMaxDepth sets the maximum tree depth.
func WithMaxDepth(d int) Option {
	return func(g *GradientBoostingClassifier) { g.MaxDepth = d }
}

// WithMinSamplesLeaf sets the minimum number of rows per leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(g *GradientBoostingClassifier) { g.MinSamplesLeaf = n }
}

// WithRegLambda sets the L2 penalty on leaf values.
func WithRegLambda(l float64) Option {
	return func(g *GradientBoostingClassifier) { g.RegLambda = l }
}

// WithSubsample sets the row fraction drawn for each round.
func WithSubsample(f float64) Option {
	return func(g *GradientBoostingClassifier) { g.Subsample = f }
}

// WithRandomState seeds the row subsampling.
func WithRandomState(seed uint64) Option {
	return func(g *GradientBoostingClassifier) { g.RandomState = seed }
}

// NewGradientBoostingClassifier creates a classifier with the default
// parameters of Parameters().
func NewGradientBoostingClassifier(opts ...Option) *GradientBoostingClassifier {
	g := &GradientBoostingClassifier{
		State:          model.NewStateManager(),
		LearningRate:   0.1,
		NEstimators:    100,
		MaxDepth:       3,
		MinSamplesLeaf: 20,
		RegLambda:      1.0,
		Subsample:      1.0,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Factory builds an unfitted classifier from grid parameters. Aliases are
// accepted; unknown names and invalid values are errors.
func Factory(params map[string]interface{}) (model.Classifier, error) {
	resolved, err := paramMapper.Resolve(params)
	if err != nil {
		return nil, err
	}
	g := NewGradientBoostingClassifier()
	if err := g.SetParams(resolved); err != nil {
		return nil, err
	}
	return g, nil
}

// Fit trains the classifier. y holds zero-based class indices in a column.
func (g *GradientBoostingClassifier) Fit(X, y mat.Matrix) error {
	return g.FitContext(context.Background(), X, y)
}

// FitContext trains the classifier, checking ctx before every round. On
// cancellation ctx.Err() is returned unwrapped and the model stays unfitted.
func (g *GradientBoostingClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if g.State == nil {
		g.State = model.NewStateManager()
	}
	g.State.Reset()
	if err := g.validate(); err != nil {
		return err
	}

	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError(modelName+".Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return errors.NewDimensionError(modelName+".Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError(modelName+".Fit", "y must be a column vector")
	}

	classes, target := encodeTargets(y)
	nClasses := len(classes)
	if nClasses < 2 {
		return errors.NewValueError(modelName+".Fit", "training data must contain at least 2 classes")
	}

	rows := make([][]float64, nSamples)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}
	cols := make([][]float64, nFeatures)
	for f := range cols {
		cols[f] = mat.Col(nil, f, X)
	}

	base := make([]float64, nClasses)
	for _, k := range target {
		base[k]++
	}
	for k := range base {
		base[k] = math.Log(base[k] / float64(nSamples))
	}

	raw := make([]float64, nSamples*nClasses)
	for i := 0; i < nSamples; i++ {
		copy(raw[i*nClasses:(i+1)*nClasses], base)
	}

	builder := newTreeBuilder(cols, g.MaxDepth, g.MinSamplesLeaf, regularization{lambdaL1: g.RegAlpha, lambdaL2: g.RegLambda})
	sampler := rowSampler{fraction: g.Subsample, seed: g.RandomState}

	prob := make([]float64, nSamples*nClasses)
	grad := make([]float64, nSamples)
	hess := make([]float64, nSamples)
	trees := make([][]Tree, 0, g.NEstimators)
	losses := make([]float64, 0, g.NEstimators)

	for m := 0; m < g.NEstimators; m++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := 0; i < nSamples; i++ {
			softmax(prob[i*nClasses:(i+1)*nClasses], raw[i*nClasses:(i+1)*nClasses])
		}

		sample := sampler.sample(nSamples, m)
		round := make([]Tree, nClasses)
		for k := 0; k < nClasses; k++ {
			for i := 0; i < nSamples; i++ {
				p := prob[i*nClasses+k]
				t := 0.0
				if target[i] == k {
					t = 1
				}
				grad[i] = p - t
				hess[i] = math.Max(p*(1-p), 1e-16)
			}
			round[k] = builder.build(sample, grad, hess)
		}

		loss := 0.0
		for i := 0; i < nSamples; i++ {
			s := raw[i*nClasses : (i+1)*nClasses]
			for k := range round {
				s[k] += g.LearningRate * round[k].predict(rows[i])
			}
			loss += floats.LogSumExp(s) - s[target[i]]
		}
		loss /= float64(nSamples)
		if err := errors.CheckScalar(modelName+".Fit", loss, m); err != nil {
			return err
		}

		trees = append(trees, round)
		losses = append(losses, loss)
	}

	g.ClassLabels = classes
	g.InitScores = base
	g.Trees = trees
	g.LossHistory = losses
	g.State.MarkFitted(nFeatures, nSamples, nClasses)

	logger := log.GetLogger()
	if logger.Enabled(ctx, log.LevelDebug) {
		logger.Debug("Model fitted",
			log.ModelNameKey, modelName,
			log.OperationKey, log.OperationFit,
			log.SamplesKey, nSamples,
			log.FeaturesKey, nFeatures,
			log.ClassesKey, nClasses,
			log.IterationKey, len(trees),
			log.LossKey, losses[len(losses)-1],
		)
	}
	return nil
}

// PredictProba returns one column per class in Classes() order.
func (g *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := g.State.Check(modelName, "PredictProba", c); err != nil {
		return nil, err
	}

	nClasses := len(g.ClassLabels)
	out := mat.NewDense(r, nClasses, nil)
	row := make([]float64, c)
	scores := make([]float64, nClasses)
	p := make([]float64, nClasses)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		g.rawScores(scores, row)
		softmax(p, scores)
		out.SetRow(i, p)
	}
	return out, nil
}

// Predict returns the most probable class label of every row as a column.
func (g *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := g.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, _ := proba.Dims()
	out := mat.NewVecDense(r, nil)
	dense := proba.(*mat.Dense)
	for i := 0; i < r; i++ {
		out.SetVec(i, float64(g.ClassLabels[floats.MaxIdx(dense.RawRowView(i))]))
	}
	return out, nil
}

// Classes returns the class labels seen during Fit in ascending order.
func (g *GradientBoostingClassifier) Classes() []int {
	return append([]int(nil), g.ClassLabels...)
}

// GetParams returns the hyperparameters under their canonical names.
func (g *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"learning_rate":    g.LearningRate,
		"n_estimators":     g.NEstimators,
		"max_depth":        g.MaxDepth,
		"min_samples_leaf": g.MinSamplesLeaf,
		"reg_lambda":       g.RegLambda,
		"reg_alpha":        g.RegAlpha,
		"subsample":        g.Subsample,
		"random_state":     int(g.RandomState),
	}
}

// SetParams sets hyperparameters by canonical name or alias.
func (g *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		name, ok := paramMapper.Canonical(key)
		if !ok {
			return errors.NewValidationError(key, "unknown parameter for "+modelName, value)
		}
		if err := g.set(name, value); err != nil {
			return err
		}
	}
	return g.validate()
}

func (g *GradientBoostingClassifier) set(name string, value interface{}) error {
	var err error
	switch name {
	case "learning_rate":
		g.LearningRate, err = model.AsFloat(name, value)
	case "n_estimators":
		g.NEstimators, err = model.AsInt(name, value)
	case "max_depth":
		g.MaxDepth, err = model.AsInt(name, value)
	case "min_samples_leaf":
		g.MinSamplesLeaf, err = model.AsInt(name, value)
	case "reg_lambda":
		g.RegLambda, err = model.AsFloat(name, value)
	case "reg_alpha":
		g.RegAlpha, err = model.AsFloat(name, value)
	case "subsample":
		g.Subsample, err = model.AsFloat(name, value)
	case "random_state":
		var seed int
		seed, err = model.AsInt(name, value)
		if err == nil && seed < 0 {
			return errors.NewValidationError(name, "must be non-negative", value)
		}
		g.RandomState = uint64(seed)
	}
	return err
}

func (g *GradientBoostingClassifier) validate() error {
	switch {
	case g.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", g.LearningRate)
	case g.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be at least 1", g.NEstimators)
	case g.MaxDepth < 1:
		return errors.NewValidationError("max_depth", "must be at least 1", g.MaxDepth)
	case g.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", g.MinSamplesLeaf)
	case g.RegLambda < 0:
		return errors.NewValidationError("reg_lambda", "must be non-negative", g.RegLambda)
	case g.RegAlpha < 0:
		return errors.NewValidationError("reg_alpha", "must be non-negative", g.RegAlpha)
	case g.Subsample <= 0 || g.Subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", g.Subsample)
	}
	return nil
}

func (g *GradientBoostingClassifier) rawScores(dst, row []float64) {
	copy(dst, g.InitScores)
	for _, round := range g.Trees {
		for k := range round {
			dst[k] += g.LearningRate * round[k].predict(row)
		}
	}
}

// encodeTargets maps the labels of y to positions in the sorted class list.
func encodeTargets(y mat.Matrix) (classes []int, target []int) {
	n, _ := y.Dims()
	seen := make(map[int]bool)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		labels[i] = int(y.At(i, 0))
		seen[labels[i]] = true
	}
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	pos := make(map[int]int, len(classes))
	for k, c := range classes {
		pos[c] = k
	}
	target = make([]int, n)
	for i, l := range labels {
		target[i] = pos[l]
	}
	return classes, target
}

// softmax writes the normalized exponentials of s into dst.
func softmax(dst, s []float64) {
	lse := floats.LogSumExp(s)
	for k, v := range s {
		dst[k] = math.Exp(v - lse)
	}
}
