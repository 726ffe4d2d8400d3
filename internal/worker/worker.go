// Package worker provides a small semaphore-backed pool for dispatching
// independent splitter jobs across goroutines, sized to the host's CPU count
// unless overridden.
package worker

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Permits returns the number of concurrent workers to use: requested if
// positive, otherwise runtime.NumCPU().
func Permits(requested int) int {
	if requested > 0 {
		return requested
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// Job is one unit of work dispatched to the pool; index is the job's
// position in the caller's input slice, used for error attribution.
type Job func(ctx context.Context, index int) error

// Run executes jobs across up to permits goroutines, returning the first
// error encountered. Once a job fails, the group's context is canceled so
// outstanding jobs can stop early.
func Run(ctx context.Context, permits int, jobs []Job) error {
	if len(jobs) == 0 {
		return nil
	}

	g, runCtx := errgroup.WithContext(ctx)
	g.SetLimit(Permits(permits))

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			return job(runCtx, i)
		})
	}

	return g.Wait()
}
