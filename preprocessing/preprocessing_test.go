package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	s := NewStandardScalerDefault()
	Xs, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, 1.118033988749895, s.Scale[0], 1e-12)
	// Constant column keeps a unit scale.
	assert.Equal(t, 1.0, s.Scale[1])
	assert.InDelta(t, -1.3416407864998738, Xs.At(0, 0), 1e-12)
	assert.Equal(t, 0.0, Xs.At(2, 1))

	back, err := s.InverseTransform(Xs)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))

	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
	assert.Contains(t, s.String(), "n_features=2")
}

func TestStandardScalerNotFitted(t *testing.T) {
	_, err := NewStandardScalerDefault().Transform(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 5,
		5, 5,
		10, 5,
	})
	m := NewMinMaxScaler([2]float64{-1, 1})
	Xs, err := m.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, -1.0, Xs.At(0, 0))
	assert.Equal(t, 0.0, Xs.At(1, 0))
	assert.Equal(t, 1.0, Xs.At(2, 0))
	assert.Equal(t, -1.0, Xs.At(1, 1))

	bad := NewMinMaxScaler([2]float64{1, 1})
	assert.Error(t, bad.Fit(X))
}

func TestNewScaler(t *testing.T) {
	tests := []struct {
		name    string
		wantNil bool
		wantErr bool
	}{
		{"standard", false, false},
		{"minmax", false, false},
		{"none", true, false},
		{"robust", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScaler(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNil, s == nil)
		})
	}
}

func TestLabelEncoder(t *testing.T) {
	e := NewLabelEncoder()
	y, err := e.FitTransform([]string{"virginica", "setosa", "versicolor", "setosa"})
	require.NoError(t, err)
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, e.Classes)
	assert.Equal(t, []int{2, 0, 1, 0}, y)

	names, err := e.InverseTransform([]int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"versicolor", "virginica"}, names)

	_, err = e.Transform([]string{"unknown"})
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	_, err = e.InverseTransform([]int{3})
	assert.Error(t, err)

	_, err = NewLabelEncoder().Transform([]string{"a"})
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	assert.Error(t, NewLabelEncoder().Fit(nil))
}
