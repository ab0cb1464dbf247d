// Package dataset holds the in-memory feature matrix and label column that a
// grid search cross-validates over, plus loaders that produce one.
package dataset

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

// Dataset is a feature matrix with a parallel column of dense zero-based
// class indices. A search never mutates it.
type Dataset struct {
	X *mat.Dense
	Y []int

	// ClassNames maps class index to the original label; optional.
	ClassNames []string

	// FeatureNames labels the columns of X; optional.
	FeatureNames []string
}

// New builds a Dataset and validates it.
func New(X *mat.Dense, y []int) (*Dataset, error) {
	ds := &Dataset{X: X, Y: y}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// NSamples returns the number of rows.
func (d *Dataset) NSamples() int {
	return len(d.Y)
}

// NFeatures returns the number of columns of X.
func (d *Dataset) NFeatures() int {
	if d.X == nil {
		return 0
	}
	_, c := d.X.Dims()
	return c
}

// NClasses returns len(ClassNames) when names are known, otherwise one more
// than the largest label.
func (d *Dataset) NClasses() int {
	if len(d.ClassNames) > 0 {
		return len(d.ClassNames)
	}
	maxLabel := -1
	for _, v := range d.Y {
		if v > maxLabel {
			maxLabel = v
		}
	}
	return maxLabel + 1
}

// ClassCounts returns the number of rows per class index.
func (d *Dataset) ClassCounts() []int {
	counts := make([]int, d.NClasses())
	for _, v := range d.Y {
		counts[v]++
	}
	return counts
}

// Validate checks shape agreement and that every label is a valid class index.
func (d *Dataset) Validate() error {
	if d.X == nil || len(d.Y) == 0 {
		return errors.NewModelError("Dataset.Validate", "empty data", errors.ErrEmptyData)
	}
	r, c := d.X.Dims()
	if r != len(d.Y) {
		return errors.NewDimensionError("Dataset.Validate", r, len(d.Y), 0)
	}
	if len(d.FeatureNames) > 0 && len(d.FeatureNames) != c {
		return errors.NewDimensionError("Dataset.Validate", c, len(d.FeatureNames), 1)
	}
	for i, v := range d.Y {
		if v < 0 {
			return errors.NewValidationError("y", "labels must be non-negative class indices", i)
		}
		if len(d.ClassNames) > 0 && v >= len(d.ClassNames) {
			return errors.NewValidationError("y", "label exceeds the number of class names", v)
		}
	}
	return nil
}

// Subset copies the given rows, in order, into a new Dataset sharing the
// class and feature names.
func (d *Dataset) Subset(indices []int) *Dataset {
	if len(indices) == 0 {
		return &Dataset{ClassNames: d.ClassNames, FeatureNames: d.FeatureNames}
	}
	X := mat.NewDense(len(indices), d.NFeatures(), nil)
	y := make([]int, len(indices))
	for k, i := range indices {
		X.SetRow(k, d.X.RawRowView(i))
		y[k] = d.Y[i]
	}
	return &Dataset{X: X, Y: y, ClassNames: d.ClassNames, FeatureNames: d.FeatureNames}
}

// LabelVector returns Y as a float column vector for model.Fitter.
func (d *Dataset) LabelVector() *mat.VecDense {
	data := make([]float64, len(d.Y))
	for i, v := range d.Y {
		data[i] = float64(v)
	}
	return mat.NewVecDense(len(data), data)
}
