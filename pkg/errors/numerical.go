package errors

import (
	"math"
)

// maxReported bounds the offending values kept on a NumericalInstabilityError.
const maxReported = 5

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CheckNumericalStability returns a NumericalInstabilityError listing the
// first non-finite entries of values, or nil when all are finite. Only the
// offending entries are kept so a large weight matrix does not end up in logs.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	var bad []float64
	for _, v := range values {
		if finite(v) {
			continue
		}
		bad = append(bad, v)
		if len(bad) == maxReported {
			break
		}
	}
	if bad == nil {
		return nil
	}
	return NewNumericalInstabilityError(operation, bad, iteration)
}

// CheckScalar is CheckNumericalStability for one value: a score, a loss.
func CheckScalar(operation string, value float64, iteration int) error {
	if finite(value) {
		return nil
	}
	return NewNumericalInstabilityError(operation, []float64{value}, iteration)
}

// ClipValue clamps value into [lo, hi]. NaN passes through unchanged so a
// following CheckScalar still sees it.
func ClipValue(value, lo, hi float64) float64 {
	return math.Min(math.Max(value, lo), hi)
}
