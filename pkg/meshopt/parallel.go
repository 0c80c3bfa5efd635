package meshopt

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the element count below which passes stay on the
// calling goroutine.
const parallelThreshold = 1 << 15

// shards splits [0, n) into contiguous ranges, one per worker.
func shards(n int) [][2]int {
	workers := runtime.GOMAXPROCS(0)
	if n < parallelThreshold || workers <= 1 {
		return [][2]int{{0, n}}
	}
	chunk := (n + workers - 1) / workers
	out := make([][2]int, 0, workers)
	for lo := 0; lo < n; lo += chunk {
		out = append(out, [2]int{lo, min(lo+chunk, n)})
	}
	return out
}

// parallelFor runs fn over every shard of [0, n). Shards write disjoint
// ranges; callers merge shard results sequentially afterwards.
func parallelFor(n int, fn func(shard, lo, hi int)) {
	parts := shards(n)
	if len(parts) == 1 {
		fn(0, 0, n)
		return
	}
	var g errgroup.Group
	for i, p := range parts {
		g.Go(func() error {
			fn(i, p[0], p[1])
			return nil
		})
	}
	_ = g.Wait()
}
