package parallel

import (
	"context"
	"runtime"
	"sync"
)

// Parallelize divides the specified total number (items) according to the number of CPU cores,
// and executes the specified function (fn) in parallel for each range (start, end)
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// Ceiling division so every item lands in a chunk.
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of items exceeds the threshold
// If below threshold, normal sequential processing is performed
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// DefaultWorkers is the pool size used when the caller asks for zero workers.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// ForEach runs fn(i) for i in [0, n) on a bounded pool of workers that pull
// the next index from a shared queue. Indices are handed out in ascending
// order. Once ctx is done no further index is dispatched; indices already
// handed to a worker run to completion. ForEach returns after every
// dispatched call has returned, and reports how many indices were dispatched.
//
// fn must not panic; callers wrap their work with errors.SafeExecute.
func ForEach(ctx context.Context, n, workers int, fn func(i int)) int {
	if n <= 0 {
		return 0
	}
	if workers < 1 {
		workers = DefaultWorkers()
	}
	if workers > n {
		workers = n
	}

	queue := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				fn(i)
			}
		}()
	}

	dispatched := 0
dispatch:
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- i:
			dispatched++
		}
	}
	close(queue)
	wg.Wait()
	return dispatched
}
