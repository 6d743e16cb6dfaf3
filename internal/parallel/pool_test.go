package parallel

import (
	"sync/atomic"
	"testing"
)

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}

	pool.ExecuteAll(work)

	if got := counter.Load(); got != 100 {
		t.Errorf("executed %d work items, want 100", got)
	}
}

func TestWorkerPool_DefaultWorkers(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	if pool.Workers() <= 0 {
		t.Errorf("Workers() = %d, want > 0", pool.Workers())
	}
}

func TestWorkerPool_CloseIsIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close() // must not panic or hang

	if pool.IsRunning() {
		t.Error("pool reports running after Close")
	}
}

func TestWorkerPool_ExecuteAllAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	var counter atomic.Int64
	pool.ExecuteAll([]func(){func() { counter.Add(1) }})

	if counter.Load() != 0 {
		t.Error("work executed on closed pool")
	}
}

func TestWorkerPool_ManyMoreItemsThanWorkers(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	var counter atomic.Int64
	work := make([]func(), 1000)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}
	pool.ExecuteAll(work)

	if got := counter.Load(); got != 1000 {
		t.Errorf("executed %d work items, want 1000", got)
	}
}

func TestFor_CoversRangeExactlyOnce(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	tests := []struct {
		name  string
		n     int
		grain int
	}{
		{"empty", 0, 8},
		{"single chunk", 5, 8},
		{"exact chunks", 64, 16},
		{"ragged tail", 100, 16},
		{"tiny grain raised", 1000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := make([]atomic.Int32, tt.n)
			For(pool, tt.n, tt.grain, func(start, end int) {
				if start < 0 || end > tt.n || start > end {
					t.Errorf("chunk [%d,%d) out of range [0,%d)", start, end, tt.n)
				}
				for i := start; i < end; i++ {
					hits[i].Add(1)
				}
			})
			for i := range hits {
				if got := hits[i].Load(); got != 1 {
					t.Fatalf("index %d visited %d times, want 1", i, got)
				}
			}
		})
	}
}

func TestFor_NilPoolRunsInline(t *testing.T) {
	visited := 0
	For(nil, 100, 8, func(start, end int) {
		visited += end - start
	})
	if visited != 100 {
		t.Errorf("visited %d indices, want 100", visited)
	}
}
