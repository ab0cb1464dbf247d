package dataset

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

// ClassificationOptions configures MakeClassification.
type ClassificationOptions struct {
	NSamples  int
	NFeatures int
	NClasses  int

	// ClassSep scales the distance between class centers.
	ClassSep float64

	// Noise is the standard deviation of the Gaussian noise around each center.
	Noise float64

	Seed uint64
}

// DefaultClassificationOptions returns a 300 x 4, three-class problem with
// overlapping classes.
func DefaultClassificationOptions() ClassificationOptions {
	return ClassificationOptions{
		NSamples:  300,
		NFeatures: 4,
		NClasses:  3,
		ClassSep:  1.5,
		Noise:     1.0,
		Seed:      42,
	}
}

// MakeClassification generates Gaussian blobs, one per class, around centers
// drawn uniformly from [-ClassSep, ClassSep] per feature. Labels are assigned
// round robin so classes are balanced, and rows are shuffled. The same
// options always produce the same Dataset.
func MakeClassification(opts ClassificationOptions) (*Dataset, error) {
	if opts.NSamples < opts.NClasses || opts.NClasses < 2 {
		return nil, errors.NewValidationError("n_classes", "need 2 <= n_classes <= n_samples", opts.NClasses)
	}
	if opts.NFeatures < 1 {
		return nil, errors.NewValidationError("n_features", "must be positive", opts.NFeatures)
	}
	if opts.Noise < 0 {
		return nil, errors.NewValidationError("noise", "must be non-negative", opts.Noise)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))

	centers := make([][]float64, opts.NClasses)
	for c := range centers {
		centers[c] = make([]float64, opts.NFeatures)
		for j := range centers[c] {
			centers[c][j] = opts.ClassSep * (2*rng.Float64() - 1)
		}
	}

	order := rng.Perm(opts.NSamples)
	X := mat.NewDense(opts.NSamples, opts.NFeatures, nil)
	y := make([]int, opts.NSamples)
	for k, i := range order {
		c := k % opts.NClasses
		y[i] = c
		for j := 0; j < opts.NFeatures; j++ {
			X.Set(i, j, centers[c][j]+opts.Noise*rng.NormFloat64())
		}
	}

	classNames := make([]string, opts.NClasses)
	for c := range classNames {
		classNames[c] = fmt.Sprintf("class_%d", c)
	}
	featureNames := make([]string, opts.NFeatures)
	for j := range featureNames {
		featureNames[j] = fmt.Sprintf("f%d", j)
	}

	return &Dataset{X: X, Y: y, ClassNames: classNames, FeatureNames: featureNames}, nil
}
