package metrics

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

// Direction tells whether a lower or a higher score is better.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

func (d Direction) String() string {
	if d == Maximize {
		return "maximize"
	}
	return "minimize"
}

// ParseDirection accepts "minimize"/"min" and "maximize"/"max".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "minimize", "min":
		return Minimize, nil
	case "maximize", "max":
		return Maximize, nil
	default:
		return Minimize, errors.NewValidationError("direction", "must be minimize or maximize", s)
	}
}

// Better reports whether a is strictly better than b.
func (d Direction) Better(a, b float64) bool {
	if d == Maximize {
		return a > b
	}
	return a < b
}

// Scorer turns true labels and predicted class probabilities into a scalar.
//
// proba has one row per label and one column per entry of classes, in the
// same order. A label missing from classes is a LabelClassMismatchError.
type Scorer interface {
	Name() string
	Direction() Direction
	Score(yTrue []int, proba mat.Matrix, classes []int) (float64, error)
}

// trueColumns maps every row to the proba column of its true label.
func trueColumns(op string, yTrue []int, proba mat.Matrix, classes []int) ([]int, error) {
	if len(yTrue) == 0 || proba == nil {
		return nil, errors.NewValueError(op, "empty input")
	}
	r, c := proba.Dims()
	if r != len(yTrue) {
		return nil, errors.NewDimensionError(op, len(yTrue), r, 0)
	}
	if c != len(classes) {
		return nil, errors.NewDimensionError(op, len(classes), c, 1)
	}

	col := make(map[int]int, len(classes))
	for k, cls := range classes {
		col[cls] = k
	}
	out := make([]int, len(yTrue))
	for i, label := range yTrue {
		k, ok := col[label]
		if !ok {
			return nil, errors.NewLabelClassMismatchError(i, label, classes)
		}
		out[i] = k
	}
	return out, nil
}

// LogLoss is the multiclass cross-entropy, mean of -ln(clip(p_true, ε, 1-ε)).
// Probabilities are clipped but not renormalized.
type LogLoss struct{}

func (LogLoss) Name() string         { return "log_loss" }
func (LogLoss) Direction() Direction { return Minimize }

func (s LogLoss) Score(yTrue []int, proba mat.Matrix, classes []int) (float64, error) {
	cols, err := trueColumns("LogLoss", yTrue, proba, classes)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i, k := range cols {
		p := errors.ClipValue(proba.At(i, k), LogLossEpsilon, 1-LogLossEpsilon)
		sum -= math.Log(p)
	}
	loss := sum / float64(len(cols))
	if err := errors.CheckScalar("log_loss", loss, 0); err != nil {
		return 0, err
	}
	return loss, nil
}

// AccuracyScorer is the fraction of rows whose argmax class equals the label.
// Ties in a row go to the lowest column.
type AccuracyScorer struct{}

func (AccuracyScorer) Name() string         { return "accuracy" }
func (AccuracyScorer) Direction() Direction { return Maximize }

func (s AccuracyScorer) Score(yTrue []int, proba mat.Matrix, classes []int) (float64, error) {
	cols, err := trueColumns("Accuracy", yTrue, proba, classes)
	if err != nil {
		return 0, err
	}
	row := make([]float64, len(classes))
	correct := 0
	for i, k := range cols {
		mat.Row(row, i, proba)
		if floats.MaxIdx(row) == k {
			correct++
		}
	}
	return float64(correct) / float64(len(cols)), nil
}

// ErrorRate is 1 - accuracy, minimized.
type ErrorRate struct{}

func (ErrorRate) Name() string         { return "error_rate" }
func (ErrorRate) Direction() Direction { return Minimize }

func (ErrorRate) Score(yTrue []int, proba mat.Matrix, classes []int) (float64, error) {
	acc, err := AccuracyScorer{}.Score(yTrue, proba, classes)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// ROCAUC is the one-vs-rest ROC AUC averaged over the classes present in
// yTrue. With two classes it is the AUC of the second column.
type ROCAUC struct{}

func (ROCAUC) Name() string         { return "roc_auc" }
func (ROCAUC) Direction() Direction { return Maximize }

func (ROCAUC) Score(yTrue []int, proba mat.Matrix, classes []int) (float64, error) {
	cols, err := trueColumns("ROCAUC", yTrue, proba, classes)
	if err != nil {
		return 0, err
	}
	n := len(cols)
	score := func(k int) (float64, error) {
		t := mat.NewVecDense(n, nil)
		p := mat.NewVecDense(n, nil)
		for i, c := range cols {
			if c == k {
				t.SetVec(i, 1)
			}
			p.SetVec(i, proba.At(i, k))
		}
		return AUC(t, p)
	}
	if len(classes) == 2 {
		return score(1)
	}

	present := make(map[int]bool, len(classes))
	for _, k := range cols {
		present[k] = true
	}
	var sum float64
	for k := range classes {
		if !present[k] {
			continue
		}
		auc, err := score(k)
		if err != nil {
			return 0, err
		}
		sum += auc
	}
	return sum / float64(len(present)), nil
}

var scorers = map[string]Scorer{
	LogLoss{}.Name():        LogLoss{},
	AccuracyScorer{}.Name(): AccuracyScorer{},
	ErrorRate{}.Name():      ErrorRate{},
	ROCAUC{}.Name():         ROCAUC{},
}

// NewScorer looks up a scorer by name.
func NewScorer(name string) (Scorer, error) {
	s, ok := scorers[name]
	if !ok {
		return nil, errors.NewValidationError("scoring", "must be one of "+strings.Join(ScorerNames(), ", "), name)
	}
	return s, nil
}

// ScorerNames lists the registered scorer names in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for name := range scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
