package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

func vec(v ...float64) *mat.VecDense {
	if len(v) == 0 {
		return nil
	}
	return mat.NewVecDense(len(v), v)
}

func TestAUC(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []float64
		yPred []float64
		want  float64
	}{
		{"perfect ranking", []float64{0, 0, 0, 1, 1, 1}, []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9}, 1},
		{"inverted ranking", []float64{0, 0, 0, 1, 1, 1}, []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1}, 0},
		{"all tied", []float64{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5}, 0.5},
		{"one discordant pair", []float64{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8}, 0.75},
		{"partial tie counts half", []float64{0, 1, 1}, []float64{0.4, 0.4, 0.9}, 0.75},
		{"positives only", []float64{1, 1, 1}, []float64{0.1, 0.4, 0.8}, 0.5},
		{"negatives only", []float64{0, 0, 0}, []float64{0.1, 0.4, 0.8}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(vec(tt.yTrue...), vec(tt.yPred...))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestAUCInvariantToMonotoneTransform(t *testing.T) {
	y := vec(0, 1, 0, 1, 1, 0, 1, 0)
	p := []float64{0.2, 0.6, 0.55, 0.9, 0.3, 0.1, 0.7, 0.4}
	logit := make([]float64, len(p))
	for i, v := range p {
		logit[i] = math.Log(v / (1 - v))
	}
	a, err := AUC(y, vec(p...))
	require.NoError(t, err)
	b, err := AUC(y, vec(logit...))
	require.NoError(t, err)
	assert.InDelta(t, a, b, 1e-12)
}

func TestAUCMatrix(t *testing.T) {
	yTrue := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	yPred := mat.NewDense(4, 2, []float64{
		0.1, 0.9,
		0.4, 0.6,
		0.35, 0.65,
		0.8, 0.2,
	})
	got, err := AUCMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-12)

	_, err = AUCMatrix(nil, yPred)
	assert.Error(t, err)
	_, err = AUCMatrix(&mat.Dense{}, yPred)
	assert.Error(t, err)
}

func TestBinaryLogLoss(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []float64
		yPred []float64
		want  float64
	}{
		{"confident and right", []float64{1, 0}, []float64{1, 0}, -math.Log(1 - LogLossEpsilon)},
		{"uniform", []float64{1, 0, 1, 0}, []float64{0.5, 0.5, 0.5, 0.5}, math.Ln2},
		{"mixed", []float64{1, 0}, []float64{0.8, 0.4}, -(math.Log(0.8) + math.Log(0.6)) / 2},
		{"confident and wrong is clipped", []float64{1}, []float64{0}, -math.Log(LogLossEpsilon)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BinaryLogLoss(vec(tt.yTrue...), vec(tt.yPred...))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.False(t, math.IsInf(got, 0))
		})
	}
}

func TestAccuracyAndError(t *testing.T) {
	yTrue := vec(0, 1, 2, 2, 1)
	yPred := vec(0, 2, 2, 2, 0)

	acc, err := Accuracy(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, acc, 1e-12)

	e, err := ClassificationError(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, e, 1e-12)
}

func TestClassificationMetricErrors(t *testing.T) {
	type metric func(yTrue, yPred *mat.VecDense) (float64, error)
	metrics := map[string]metric{
		"AUC":                 AUC,
		"BinaryLogLoss":       BinaryLogLoss,
		"Accuracy":            Accuracy,
		"ClassificationError": ClassificationError,
	}
	for name, fn := range metrics {
		t.Run(name, func(t *testing.T) {
			_, err := fn(nil, nil)
			var ve *errors.ValueError
			assert.True(t, errors.As(err, &ve), "empty input")

			_, err = fn(vec(0, 1), vec(0.5))
			var de *errors.DimensionError
			assert.True(t, errors.As(err, &de), "length mismatch")
		})
	}

	for _, fn := range []metric{AUC, BinaryLogLoss} {
		_, err := fn(vec(0, 0.5, 1), vec(0.1, 0.5, 0.9))
		assert.Error(t, err, "non-binary labels")
	}
}

func BenchmarkAUC(b *testing.B) {
	const n = 10000
	yTrue := mat.NewVecDense(n, nil)
	yPred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yTrue.SetVec(i, float64(i%2))
		yPred.SetVec(i, float64((i*7919)%n)/n)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = AUC(yTrue, yPred)
	}
}

func BenchmarkBinaryLogLoss(b *testing.B) {
	const n = 10000
	yTrue := mat.NewVecDense(n, nil)
	yPred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yTrue.SetVec(i, float64(i%2))
		yPred.SetVec(i, 0.1+0.8*float64(i%10)/10)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = BinaryLogLoss(yTrue, yPred)
	}
}
