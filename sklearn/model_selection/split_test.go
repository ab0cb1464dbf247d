package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

func labels(n int, f func(i int) int) []int {
	y := make([]int, n)
	for i := range y {
		y[i] = f(i)
	}
	return y
}

// assertPartition checks that validation sets are pairwise disjoint, cover
// every row exactly once, and that train is the complement of validation.
func assertPartition(t *testing.T, n int, folds []Fold) {
	t.Helper()
	seen := make([]int, n)
	for k, f := range folds {
		inVal := make(map[int]bool, len(f.ValidationIndices))
		for _, idx := range f.ValidationIndices {
			seen[idx]++
			inVal[idx] = true
		}
		assert.Equal(t, n, len(f.TrainIndices)+len(f.ValidationIndices), "fold %d size", k)
		for _, idx := range f.TrainIndices {
			assert.False(t, inVal[idx], "fold %d: train index %d in validation", k, idx)
		}
		assert.IsIncreasing(t, f.TrainIndices)
	}
	for i, c := range seen {
		assert.Equal(t, 1, c, "row %d coverage", i)
	}
}

func TestKFold(t *testing.T) {
	t.Run("Basic KFold split", func(t *testing.T) {
		y := labels(100, func(i int) int { return i % 2 })

		kf := NewKFold(5, false, 42)
		assert.Equal(t, 5, kf.GetNSplits())

		folds, err := kf.Split(y)
		require.NoError(t, err)
		require.Len(t, folds, 5)
		for i, fold := range folds {
			assert.Equal(t, 80, len(fold.TrainIndices), "Fold %d train size", i)
			assert.Equal(t, 20, len(fold.ValidationIndices), "Fold %d validation size", i)
		}
		assertPartition(t, 100, folds)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, folds[0].ValidationIndices[:5])
	})

	t.Run("KFold with shuffle", func(t *testing.T) {
		y := labels(50, func(i int) int { return 0 })

		plain, err := NewKFold(5, false, 42).Split(y)
		require.NoError(t, err)
		shuffled, err := NewKFold(5, true, 42).Split(y)
		require.NoError(t, err)

		assert.NotEqual(t, plain[0].ValidationIndices, shuffled[0].ValidationIndices)
		assertPartition(t, 50, shuffled)
	})

	t.Run("Uneven split", func(t *testing.T) {
		// 23 samples with 5 folds: 3 folds with 5 samples, 2 folds with 4 samples
		folds, err := NewKFold(5, false, 42).Split(make([]int, 23))
		require.NoError(t, err)

		sizes := make([]int, 5)
		for i, fold := range folds {
			sizes[i] = len(fold.ValidationIndices)
		}
		assert.Equal(t, []int{5, 5, 5, 4, 4}, sizes)
	})
}

func TestStratifiedKFold(t *testing.T) {
	t.Run("Binary classification stratification", func(t *testing.T) {
		// 70% class 0, 30% class 1
		y := labels(100, func(i int) int {
			if i < 70 {
				return 0
			}
			return 1
		})

		folds, err := NewStratifiedKFold(5, false, 42).Split(y)
		require.NoError(t, err)
		assertPartition(t, 100, folds)

		for i, fold := range folds {
			counts := map[int]int{}
			for _, idx := range fold.ValidationIndices {
				counts[y[idx]]++
			}
			assert.Equal(t, 14, counts[0], "Fold %d class 0 count", i)
			assert.Equal(t, 6, counts[1], "Fold %d class 1 count", i)
		}
	})

	t.Run("Uneven classes stay within one row", func(t *testing.T) {
		// 17 / 11 / 4 rows over 5 folds.
		y := labels(32, func(i int) int {
			switch {
			case i < 17:
				return 0
			case i < 28:
				return 1
			default:
				return 2
			}
		})
		totals := map[int]int{0: 17, 1: 11, 2: 4}

		folds, err := NewStratifiedKFold(5, true, 7).Split(y)
		require.NoError(t, err)
		assertPartition(t, 32, folds)

		minSize, maxSize := 32, 0
		for i, fold := range folds {
			counts := map[int]int{}
			for _, idx := range fold.ValidationIndices {
				counts[y[idx]]++
			}
			for c, n := range totals {
				assert.GreaterOrEqual(t, counts[c], n/5, "fold %d class %d", i, c)
				assert.LessOrEqual(t, counts[c], (n+4)/5, "fold %d class %d", i, c)
			}
			minSize = min(minSize, len(fold.ValidationIndices))
			maxSize = max(maxSize, len(fold.ValidationIndices))
		}
		assert.LessOrEqual(t, maxSize-minSize, 1)
	})
}

func TestSplitPartitionProperty(t *testing.T) {
	const n = 13
	y := labels(n, func(i int) int { return i % 3 })
	for k := 2; k <= n; k++ {
		for _, s := range []Splitter{NewKFold(k, true, 3), NewStratifiedKFold(k, true, 3)} {
			folds, err := s.Split(y)
			require.NoError(t, err, "k=%d", k)
			require.Len(t, folds, k)
			assertPartition(t, n, folds)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	y := labels(60, func(i int) int { return (i * 7) % 4 })
	for _, mk := range []func(seed uint64) Splitter{
		func(seed uint64) Splitter { return NewKFold(6, true, seed) },
		func(seed uint64) Splitter { return NewStratifiedKFold(6, true, seed) },
	} {
		a, err := mk(11).Split(y)
		require.NoError(t, err)
		b, err := mk(11).Split(y)
		require.NoError(t, err)
		assert.Equal(t, a, b)

		c, err := mk(12).Split(y)
		require.NoError(t, err)
		assert.NotEqual(t, a, c)
	}
}

func TestSplitInvalidFoldCount(t *testing.T) {
	tests := []struct {
		name string
		k    int
		n    int
	}{
		{"one fold", 1, 10},
		{"zero folds", 0, 10},
		{"more folds than rows", 11, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range []Splitter{NewKFold(tt.k, false, 0), NewStratifiedKFold(tt.k, false, 0)} {
				_, err := s.Split(make([]int, tt.n))
				var fe *errors.InvalidFoldCountError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, tt.k, fe.NFolds)
				assert.Equal(t, tt.n, fe.NSamples)
			}
		})
	}
}

func BenchmarkStratifiedKFold(b *testing.B) {
	y := labels(10000, func(i int) int { return i % 5 })
	s := NewStratifiedKFold(10, true, 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Split(y)
	}
}
