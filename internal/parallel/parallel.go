// Package parallel provides the data-parallel dispatch used by the build and
// query passes: a bounded parallel-for over independent index ranges.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultGrain is the default number of work items handled by one task.
const DefaultGrain = 1024

// Runner dispatches parallel-for loops. The zero value uses GOMAXPROCS
// workers and DefaultGrain.
type Runner struct {
	// Workers bounds the number of concurrently running tasks.
	// If <= 0, runtime.GOMAXPROCS(0) is used.
	Workers int

	// Grain is the number of consecutive work items per task.
	// If <= 0, DefaultGrain is used.
	Grain int
}

func (r Runner) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (r Runner) grain() int {
	if r.Grain > 0 {
		return r.Grain
	}
	return DefaultGrain
}

// For calls fn(lo, hi) for consecutive, disjoint ranges covering [0, n).
// Ranges run concurrently; For returns once all of them have finished.
// Small loops run inline on the calling goroutine.
func (r Runner) For(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	grain := r.grain()
	workers := r.workers()
	if workers == 1 || n <= grain {
		fn(0, n)
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += grain {
		hi := min(lo+grain, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

// ForEach calls fn(i) for every i in [0, n) using For.
func (r Runner) ForEach(n int, fn func(i int)) {
	r.For(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			fn(i)
		}
	})
}

// ForErr is like For but stops scheduling new ranges after the first error
// and returns it.
func (r Runner) ForErr(n int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	grain := r.grain()
	workers := r.workers()
	if workers == 1 || n <= grain {
		return fn(0, n)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += grain {
		hi := min(lo+grain, n)
		g.Go(func() error {
			return fn(lo, hi)
		})
	}
	return g.Wait()
}
