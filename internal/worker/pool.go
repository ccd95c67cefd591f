// Package worker provides a small bounded pool for the daemon's CPU/IO-bound
// background work (embedding calls, LLM calls inside merge evaluation)
// without ever sharing a single *sql.DB handle across goroutines — each task
// pulls its own connection from the pool that database/sql already manages.
package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of background work. It receives the pool's context,
// which is cancelled if the group's context is cancelled or an earlier
// task in the same Run call returned an error.
type Task func(ctx context.Context) error

// Pool bounds the number of tasks running concurrently.
type Pool struct {
	concurrency int
}

// New returns a Pool that runs at most concurrency tasks at once. A
// non-positive concurrency defaults to 1 (sequential).
func New(concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{concurrency: concurrency}
}

// Run executes every task, bounded by the pool's concurrency limit, and
// returns the first error encountered (if any), cancelling the remaining
// tasks' context. Tasks already running are not forcibly killed; they are
// expected to respect ctx cancellation themselves.
func (p *Pool) Run(ctx context.Context, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			return task(gctx)
		})
	}
	return g.Wait()
}

// RunBestEffort runs every task like Run, but never short-circuits on
// error: every task runs to completion and all errors are returned in
// task order (nil entries for tasks that succeeded). Used by daemon loops
// where one failing item (e.g. one thread's decay) must not block the
// others, per the degrade-don't-cascade policy.
func (p *Pool) RunBestEffort(ctx context.Context, tasks ...Task) []error {
	errs := make([]error, len(tasks))
	if len(tasks) == 0 {
		return errs
	}
	sem := make(chan struct{}, p.concurrency)
	done := make(chan struct{})

	for i, task := range tasks {
		i, task := i, task
		sem <- struct{}{}
		go func() {
			defer func() {
				<-sem
				done <- struct{}{}
			}()
			errs[i] = task(ctx)
		}()
	}

	for range tasks {
		<-done
	}
	return errs
}
