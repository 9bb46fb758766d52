package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestJobs(t *testing.T) {
	cpus := runtime.NumCPU()
	tests := []struct {
		name         string
		nJobs, items int
		want         int
	}{
		{"explicit", 4, 100, 4},
		{"capped by items", 8, 3, 3},
		{"all cores", -1, 10_000, min(cpus, 10_000)},
		{"zero means all cores", 0, 10_000, min(cpus, 10_000)},
		{"no items", 4, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Jobs(tt.nJobs, tt.items); got != tt.want {
				t.Errorf("Jobs(%d, %d) = %d, want %d", tt.nJobs, tt.items, got, tt.want)
			}
		})
	}
}

func TestForCoversEveryIndexOnce(t *testing.T) {
	tests := []struct {
		name         string
		items, nJobs int
		blocks       int
	}{
		{"empty", 0, 4, 0},
		{"fewer trees than workers", 3, 8, 3},
		{"uneven blocks", 10, 3, 3},
		{"single worker", 7, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := make([]int32, tt.items)
			var (
				mu    sync.Mutex
				sizes []int
			)
			For(tt.items, tt.nJobs, func(start, end int) {
				mu.Lock()
				sizes = append(sizes, end-start)
				mu.Unlock()
				for i := start; i < end; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
			})
			for i, h := range hits {
				if h != 1 {
					t.Errorf("index %d visited %d times", i, h)
				}
			}
			if len(sizes) != tt.blocks {
				t.Fatalf("%d blocks, want %d", len(sizes), tt.blocks)
			}
			for _, s := range sizes {
				if s < tt.items/max(tt.blocks, 1) || s > tt.items/max(tt.blocks, 1)+1 {
					t.Errorf("unbalanced block sizes %v", sizes)
				}
			}
		})
	}
}
