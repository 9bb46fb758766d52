// Package parallel fans index ranges out to goroutines for the forest, one
// contiguous block of trees or rows per worker.
package parallel

import (
	"runtime"
	"sync"
)

// Jobs resolves an n_jobs setting against the amount of work: values <= 0
// mean one worker per CPU, and there are never more workers than items.
func Jobs(nJobs, items int) int {
	if nJobs <= 0 {
		nJobs = runtime.NumCPU()
	}
	return max(min(nJobs, items), 1)
}

// For splits [0, items) into Jobs(nJobs, items) blocks of near-equal size and
// calls fn once per block, concurrently. It returns when every call has.
func For(items, nJobs int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	workers := Jobs(nJobs, items)
	if workers == 1 {
		fn(0, items)
		return
	}

	size, extra := items/workers, items%workers
	var wg sync.WaitGroup
	for w, start := 0, 0; w < workers; w++ {
		end := start + size
		if w < extra {
			end++
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
		start = end
	}
	wg.Wait()
}
