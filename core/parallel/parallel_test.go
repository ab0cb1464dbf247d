package parallel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryItem(t *testing.T) {
	for _, items := range []int{0, 1, 7, 1000} {
		seen := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, c := range seen {
			assert.Equal(t, int32(1), c, "item %d of %d", i, items)
		}
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, int32(1), calls)
}

func TestForEachRunsAll(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		workers int
	}{
		{"single worker", 25, 1},
		{"more workers than items", 3, 16},
		{"default workers", 50, 0},
		{"empty", 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make([]int32, tt.n)
			got := ForEach(context.Background(), tt.n, tt.workers, func(i int) {
				atomic.AddInt32(&seen[i], 1)
			})
			assert.Equal(t, tt.n, got)
			for i, c := range seen {
				assert.Equal(t, int32(1), c, "index %d", i)
			}
		})
	}
}

func TestForEachBoundsConcurrency(t *testing.T) {
	var active, peak int32
	ForEach(context.Background(), 40, 3, func(i int) {
		cur := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		atomic.AddInt32(&active, -1)
	})
	assert.LessOrEqual(t, peak, int32(3))
}

func TestForEachStopsDispatchOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var ran []int

	got := ForEach(ctx, 100, 1, func(i int) {
		mu.Lock()
		ran = append(ran, i)
		mu.Unlock()
		if i == 4 {
			cancel()
		}
	})

	// With one worker the sixth index can at most be handed over while the
	// fifth is running.
	assert.LessOrEqual(t, got, 6)
	assert.Equal(t, got, len(ran))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ran[:5])
}

func TestForEachCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := ForEach(ctx, 10, 2, func(i int) {
		t.Errorf("index %d should not run", i)
	})
	assert.Equal(t, 0, got)
}
