package linear_model

import (
	"context"
	"encoding/gob"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gridcv/core/model"
	"github.com/YuminosukeSato/gridcv/pkg/errors"
	"github.com/YuminosukeSato/gridcv/pkg/log"
	"github.com/YuminosukeSato/gridcv/preprocessing"
)

const modelName = "LogisticRegression"

func init() {
	// Scaler is an interface field; gob needs the concrete types.
	gob.Register(&preprocessing.StandardScaler{})
	gob.Register(&preprocessing.MinMaxScaler{})
}

var paramMapper = model.NewParameterMapper(modelName).
	Add("learning_rate", 0.5, "eta").
	Add("max_iter", 200, "n_iter").
	Add("C", 1.0, "c").
	Add("tol", 1e-4).
	Add("fit_intercept", true).
	Add("scaler", "standard")

// Parameters returns the parameter names, aliases and defaults accepted by
// Factory.
func Parameters() *model.ParameterMapper {
	return paramMapper
}

// LogisticRegression is multinomial (softmax) logistic regression trained by
// full-batch gradient descent on the L2-penalized mean cross-entropy.
// Features are scaled internally by ScalerName before training.
type LogisticRegression struct {
	State *model.StateManager

	// Hyperparameters
	C            float64 // Inverse regularization strength
	LearningRate float64
	MaxIter      int
	Tol          float64 // Stop when the largest gradient entry is below Tol
	FitIntercept bool
	ScalerName   string // "standard", "minmax" or "none"

	// Model parameters
	Scaler      model.Transformer
	Coef        *mat.Dense // n_classes x n_features, in scaled feature space
	Intercept   []float64
	ClassLabels []int
	NIter       int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		State:        model.NewStateManager(),
		C:            1.0,
		LearningRate: 0.5,
		MaxIter:      200,
		Tol:          1e-4,
		FitIntercept: true,
		ScalerName:   "standard",
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLRLearningRate sets the gradient descent step size
func WithLRLearningRate(eta float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.LearningRate = eta }
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.FitIntercept = fit }
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.MaxIter = maxIter }
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.Tol = tol }
}

// WithLRScaler selects the feature scaler
func WithLRScaler(name string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.ScalerName = name }
}

// Factory builds an unfitted LogisticRegression from grid parameters.
func Factory(params map[string]interface{}) (model.Classifier, error) {
	resolved, err := paramMapper.Resolve(params)
	if err != nil {
		return nil, err
	}
	lr := NewLogisticRegression()
	if err := lr.SetParams(resolved); err != nil {
		return nil, err
	}
	return lr, nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	return lr.FitContext(context.Background(), X, y)
}

// FitContext trains the model, checking ctx every iteration.
func (lr *LogisticRegression) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if lr.State == nil {
		lr.State = model.NewStateManager()
	}
	lr.State.Reset()
	if err := lr.validate(); err != nil {
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

	classes, target := extractClasses(y)
	nClasses := len(classes)
	if nClasses < 2 {
		return errors.NewValueError(modelName+".Fit", "training data must contain at least 2 classes")
	}

	scaler, err := preprocessing.NewScaler(lr.ScalerName)
	if err != nil {
		return err
	}
	Xs := X
	if scaler != nil {
		if Xs, err = scaler.FitTransform(X); err != nil {
			return errors.Wrap(err, "scale features")
		}
	}

	coef, intercept, nIter, converged, err := lr.fitMultinomial(ctx, Xs, target, nClasses)
	if err != nil {
		return err
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning(modelName, nIter, "increase max_iter or learning_rate"))
	}

	lr.Scaler = scaler
	lr.Coef = coef
	lr.Intercept = intercept
	lr.ClassLabels = classes
	lr.NIter = nIter
	lr.State.MarkFitted(nFeatures, nSamples, nClasses)

	log.GetLogger().Debug("Model fitted",
		log.ModelNameKey, modelName,
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, nClasses,
		log.IterationKey, nIter,
	)
	return nil
}

// fitMultinomial minimizes mean cross-entropy + ||W||^2 / (2 C n).
//
// The step is capped at 1/L, L being the Lipschitz bound of the cross-entropy
// gradient, and the L2 term is applied as a proximal shrink, so any C > 0 is
// stable.
func (lr *LogisticRegression) fitMultinomial(ctx context.Context, X mat.Matrix, target []int, nClasses int) (*mat.Dense, []float64, int, bool, error) {
	nSamples, nFeatures := X.Dims()
	n := float64(nSamples)
	lambda := 1.0 / (lr.C * n)
	eta := math.Min(lr.LearningRate, 1/lipschitz(X, lr.FitIntercept))
	shrink := 1 / (1 + eta*lambda)

	W := mat.NewDense(nClasses, nFeatures, nil)
	b := make([]float64, nClasses)

	Z := mat.NewDense(nSamples, nClasses, nil)
	D := mat.NewDense(nSamples, nClasses, nil)
	gradW := mat.NewDense(nClasses, nFeatures, nil)
	gradB := make([]float64, nClasses)

	for iter := 0; iter < lr.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, iter, false, err
		}

		// D = softmax(X W^T + b) - Y
		Z.Mul(X, W.T())
		for i := 0; i < nSamples; i++ {
			row := Z.RawRowView(i)
			floats.Add(row, b)
			lse := floats.LogSumExp(row)
			d := D.RawRowView(i)
			for k, z := range row {
				d[k] = math.Exp(z - lse)
			}
			d[target[i]]--
		}

		// gradW holds the cross-entropy part only; the penalty is added
		// for the stopping test.
		gradW.Mul(D.T(), X)
		gradW.Scale(1/n, gradW)
		for k := range gradB {
			gradB[k] = 0
			if lr.FitIntercept {
				gradB[k] = floats.Sum(mat.Col(nil, k, D)) / n
			}
		}
		full := scaled(lambda, W)
		full.Add(full, gradW)
		maxGrad := math.Max(floats.Norm(full.RawMatrix().Data, math.Inf(1)), floats.Norm(gradB, math.Inf(1)))
		if maxGrad < lr.Tol {
			return W, b, iter, true, nil
		}

		W.Sub(W, scaled(eta, gradW))
		W.Scale(shrink, W)
		floats.AddScaled(b, -eta, gradB)
		if err := errors.CheckNumericalStability(modelName+".Fit", W.RawMatrix().Data, iter); err != nil {
			return nil, nil, iter, false, err
		}
	}
	return W, b, lr.MaxIter, false, nil
}

// lipschitz bounds the curvature of the mean softmax cross-entropy:
// the logit Hessian is at most 1/2, times the largest squared row norm
// (plus 1 for the intercept column).
func lipschitz(X mat.Matrix, intercept bool) float64 {
	r, c := X.Dims()
	row := make([]float64, c)
	maxNorm := 0.0
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		maxNorm = math.Max(maxNorm, floats.Dot(row, row))
	}
	if intercept {
		maxNorm++
	}
	return math.Max(maxNorm/2, 1e-12)
}

func scaled(f float64, m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(f, m)
	return &out
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, _ := proba.Dims()
	dense := proba.(*mat.Dense)
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		out.SetVec(i, float64(lr.ClassLabels[floats.MaxIdx(dense.RawRowView(i))]))
	}
	return out, nil
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := lr.State.Check(modelName, "PredictProba", c); err != nil {
		return nil, err
	}

	Xs := X
	if lr.Scaler != nil {
		var err error
		if Xs, err = lr.Scaler.Transform(X); err != nil {
			return nil, err
		}
	}

	probas := mat.NewDense(r, len(lr.ClassLabels), nil)
	probas.Mul(Xs, lr.Coef.T())
	for i := 0; i < r; i++ {
		row := probas.RawRowView(i)
		if lr.FitIntercept {
			floats.Add(row, lr.Intercept)
		}
		lse := floats.LogSumExp(row)
		for k, z := range row {
			row[k] = math.Exp(z - lse)
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// Classes returns the class labels seen during Fit in ascending order.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.ClassLabels...)
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             lr.C,
		"learning_rate": lr.LearningRate,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
		"fit_intercept": lr.FitIntercept,
		"scaler":        lr.ScalerName,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		name, ok := paramMapper.Canonical(key)
		if !ok {
			return errors.NewValidationError(key, "unknown parameter for "+modelName, value)
		}
		var err error
		switch name {
		case "C":
			lr.C, err = model.AsFloat(name, value)
		case "learning_rate":
			lr.LearningRate, err = model.AsFloat(name, value)
		case "max_iter":
			lr.MaxIter, err = model.AsInt(name, value)
		case "tol":
			lr.Tol, err = model.AsFloat(name, value)
		case "fit_intercept":
			lr.FitIntercept, err = model.AsBool(name, value)
		case "scaler":
			s, ok := value.(string)
			if !ok {
				return errors.NewValidationError(name, "must be a string", value)
			}
			lr.ScalerName = s
		}
		if err != nil {
			return err
		}
	}
	return lr.validate()
}

func (lr *LogisticRegression) validate() error {
	switch {
	case lr.C <= 0:
		return errors.NewValidationError("C", "must be positive", lr.C)
	case lr.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", lr.LearningRate)
	case lr.MaxIter < 1:
		return errors.NewValidationError("max_iter", "must be at least 1", lr.MaxIter)
	case lr.Tol < 0:
		return errors.NewValidationError("tol", "must be non-negative", lr.Tol)
	}
	if _, err := preprocessing.NewScaler(lr.ScalerName); err != nil {
		return err
	}
	return nil
}

// extractClasses identifies unique class labels and maps each row to its
// class position.
func extractClasses(y mat.Matrix) ([]int, []int) {
	rows, _ := y.Dims()
	labels := make([]int, rows)
	seen := make(map[int]bool)
	for i := 0; i < rows; i++ {
		labels[i] = int(y.At(i, 0))
		seen[labels[i]] = true
	}

	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	pos := make(map[int]int, len(classes))
	for k, c := range classes {
		pos[c] = k
	}
	target := make([]int, rows)
	for i, l := range labels {
		target[i] = pos[l]
	}
	return classes, target
}
