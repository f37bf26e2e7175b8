// Package workpool runs per-row work over a fixed pool of goroutines.
package workpool

import(
	"runtime"
	"sync"
	"sync/atomic"
)

// A ProgressFunc is told how many rows are done, out of how many. It is
// informational only, and may be called from any of the workers.
type ProgressFunc func(done, total int)

// Rows calls fn(y) once for every y in [0, height), using a pool of
// nWorkers goroutines (runtime.NumCPU() if nWorkers <= 0). Rows are
// handed out over a channel; fn must only write to data it owns for row
// y, so no locking is needed. Returns once every row is done.
func Rows(height, nWorkers int, fn func(y int), progress ProgressFunc) {
	if height <= 0 {
		return
	}
	if nWorkers <= 0 {
		nWorkers = runtime.NumCPU()
	}
	if nWorkers > height {
		nWorkers = height
	}

	var wg sync.WaitGroup
	var nDone int64
	jobsChan := make(chan int, height)

	// Kick off worker pool
	for i:=0; i<nWorkers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			for y := range jobsChan {
				fn(y)
				done := atomic.AddInt64(&nDone, 1)
				if progress != nil {
					progress(int(done), height)
				}
			}
		}()
	}

	// Feed in jobs
	for y:=0; y<height; y++ {
		jobsChan<- y
	}

	close(jobsChan)
	wg.Wait()
}

// EveryN wraps a ProgressFunc so that it only fires every n rows, and on the last one.
func EveryN(n int, f ProgressFunc) ProgressFunc {
	if f == nil || n <= 1 {
		return f
	}
	return func(done, total int) {
		if done % n == 0 || done == total {
			f(done, total)
		}
	}
}
