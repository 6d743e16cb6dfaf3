package parallel

// minGrain is the smallest chunk of iterations handed to one worker.
// Very small chunks spend more time on queue traffic than on work.
const minGrain = 8

// For splits the half-open range [0, n) into chunks and runs fn on each
// chunk through the pool, blocking until every chunk has finished. Chunks
// never overlap, so fn may write to disjoint output regions without
// locking.
//
// grain is the preferred chunk size; values below the internal minimum are
// raised. When the range is too small to keep more than one worker busy,
// fn runs inline on the calling goroutine.
func For(p *WorkerPool, n, grain int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if grain < minGrain {
		grain = minGrain
	}
	if p == nil || !p.IsRunning() || n <= grain {
		fn(0, n)
		return
	}

	chunks := (n + grain - 1) / grain
	work := make([]func(), 0, chunks)
	for start := 0; start < n; start += grain {
		end := start + grain
		if end > n {
			end = n
		}
		s, e := start, end
		work = append(work, func() { fn(s, e) })
	}
	p.ExecuteAll(work)
}
