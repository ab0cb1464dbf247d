package report

import (
	"github.com/YuminosukeSato/gridcv/pkg/errors"
	"github.com/YuminosukeSato/gridcv/sklearn/model_selection"
)

// Point is one configuration on a validation curve.
type Point struct {
	X          interface{}
	Mean       float64
	Std        float64
	ValidFolds int
	TotalFolds int
}

// Valid reports whether at least one fold scored.
func (p Point) Valid() bool { return p.ValidFolds > 0 }

// Curve is the validation curve of one combination of the parameters other
// than the x parameter.
type Curve struct {
	// Name is the key of the fixed parameters, e.g. "max_depth=3"; for a
	// single-parameter grid it is the x parameter itself.
	Name   string
	Points []Point
}

// Series groups results into one curve per combination of the non-x
// parameters. Curves appear in the order their first configuration was
// enumerated, and points keep grid order.
func Series(results []model_selection.AggregatedResult, xParam string) ([]Curve, error) {
	var curves []Curve
	index := make(map[string]int)
	for _, r := range results {
		x, ok := r.Config.Get(xParam)
		if !ok {
			return nil, errors.NewValidationError("x_param", "not a grid parameter of "+r.Config.String(), xParam)
		}
		name := r.Config.Without(xParam).Key()
		if name == "" {
			name = xParam
		}
		i, seen := index[name]
		if !seen {
			i = len(curves)
			index[name] = i
			curves = append(curves, Curve{Name: name})
		}
		curves[i].Points = append(curves[i].Points, Point{
			X:          x,
			Mean:       r.MeanScore,
			Std:        r.StdScore,
			ValidFolds: r.ValidFolds,
			TotalFolds: r.TotalFolds,
		})
	}
	return curves, nil
}
