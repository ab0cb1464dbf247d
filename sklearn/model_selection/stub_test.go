package model_selection

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gridcv/core/model"
	"github.com/YuminosukeSato/gridcv/dataset"
	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

// priorClassifier predicts smoothed training-class frequencies for every
// row. Its knobs let tests provoke failures deterministically.
type priorClassifier struct {
	alpha float64

	// failWithoutRow0 fails Fit when row 0 (feature value 0) is not in the
	// training data, i.e. on exactly one fold.
	failWithoutRow0 bool
	failAlways      bool
	panicOnFit      bool
	sleep           time.Duration
	honorContext    bool

	classes []int
	proba   []float64
}

var stubBuilds atomic.Int64

func stubFactory(params map[string]interface{}) (model.Classifier, error) {
	stubBuilds.Add(1)
	c := &priorClassifier{alpha: 1}
	for name, v := range params {
		switch name {
		case "alpha":
			f, err := model.AsFloat(name, v)
			if err != nil {
				return nil, err
			}
			c.alpha = f
		case "fail_without_row0":
			c.failWithoutRow0 = v.(bool)
		case "fail":
			c.failAlways = v.(bool)
		case "panic":
			c.panicOnFit = v.(bool)
		case "sleep_ms":
			c.sleep = time.Duration(v.(int)) * time.Millisecond
		case "honor_context":
			c.honorContext = v.(bool)
		case "tag":
		default:
			return nil, errors.NewValidationError(name, "unknown parameter", v)
		}
	}
	return c, nil
}

func (c *priorClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if c.honorContext && c.sleep > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.sleep):
		}
	}
	return c.fit(X, y)
}

func (c *priorClassifier) Fit(X, y mat.Matrix) error {
	if c.sleep > 0 {
		time.Sleep(c.sleep)
	}
	return c.fit(X, y)
}

func (c *priorClassifier) fit(X, y mat.Matrix) error {
	if c.panicOnFit {
		panic("stub model exploded")
	}
	if c.failAlways {
		return errors.New("stub model refuses to fit")
	}
	r, _ := X.Dims()
	if c.failWithoutRow0 {
		found := false
		for i := 0; i < r; i++ {
			if X.At(i, 0) == 0 {
				found = true
				break
			}
		}
		if !found {
			return errors.New("row 0 missing from training data")
		}
	}

	counts := map[int]float64{}
	for i := 0; i < r; i++ {
		counts[int(y.At(i, 0))]++
	}
	c.classes = c.classes[:0]
	for cls := range counts {
		c.classes = append(c.classes, cls)
	}
	sort.Ints(c.classes)
	c.proba = make([]float64, len(c.classes))
	denom := float64(r) + c.alpha*float64(len(c.classes))
	for k, cls := range c.classes {
		c.proba[k] = (counts[cls] + c.alpha) / denom
	}
	return nil
}

func (c *priorClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, len(c.classes), nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, c.proba)
	}
	return out, nil
}

func (c *priorClassifier) Classes() []int { return c.classes }

// plainClassifier hides FitContext so the engine's own timeout path is used.
type plainClassifier struct{ m *priorClassifier }

func (p plainClassifier) Fit(X, y mat.Matrix) error { return p.m.Fit(X, y) }

func (p plainClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) { return p.m.PredictProba(X) }

func (p plainClassifier) Classes() []int { return p.m.Classes() }

func plainFactory(params map[string]interface{}) (model.Classifier, error) {
	m, err := stubFactory(params)
	if err != nil {
		return nil, err
	}
	return plainClassifier{m.(*priorClassifier)}, nil
}

// stubDataset has an imbalanced label column and feature 0 equal to the row
// index.
func stubDataset(n int) *dataset.Dataset {
	X := mat.NewDense(n, 2, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%7))
		switch {
		case i%5 == 0:
			y[i] = 2
		case i%2 == 0:
			y[i] = 1
		default:
			y[i] = 0
		}
	}
	return &dataset.Dataset{X: X, Y: y}
}
