// Package parallel splits index ranges across goroutines.
package parallel

import (
	"runtime"
	"sync"

	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Workers resolves a requested worker count. Values <= 0 mean one worker
// per CPU. The result never exceeds items (and is at least 1).
func Workers(requested, items int) int {
	n := requested
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > items {
		n = items
	}
	if n < 1 {
		n = 1
	}
	return n
}

// chunks calls emit for each contiguous [start, end) range.
func chunks(items, workers int, emit func(start, end int)) {
	chunkSize := (items + workers - 1) / workers
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, items)
		// 担当範囲がなければスキップ
		if start >= end {
			continue
		}
		emit(start, end)
	}
}

// ParallelizeN divides items into one contiguous range per worker and runs
// fn on each range concurrently. workers <= 0 means one per CPU core.
func ParallelizeN(items, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	workers = Workers(workers, items)
	if workers == 1 {
		fn(0, items)
		return
	}

	var wg sync.WaitGroup
	chunks(items, workers, func(s, e int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(s, e)
		}()
	})
	wg.Wait()
}

// ParallelizeWithThreshold runs fn on the calling goroutine when items <=
// threshold and falls back to ParallelizeN otherwise.
func ParallelizeWithThreshold(items, threshold, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}
	ParallelizeN(items, workers, fn)
}

// ParallelizeErr runs fn over contiguous ranges and returns the first error.
// A panic inside fn is converted into a PanicError for op instead of
// crashing the process.
func ParallelizeErr(op string, items, workers int, fn func(start, end int) error) error {
	if items == 0 {
		return nil
	}
	workers = Workers(workers, items)

	var g errgroup.Group
	chunks(items, workers, func(s, e int) {
		g.Go(func() (err error) {
			defer errors.Recover(&err, op)
			return fn(s, e)
		})
	})
	return g.Wait()
}
