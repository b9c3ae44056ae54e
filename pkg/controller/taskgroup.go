package controller

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TaskGroup collects a batch of independent operations and runs them
// concurrently. It is the only concurrency primitive in the controller:
// discovery, pairing, per-slot and per-tank transfers all fan out through
// one of these. A group is not safe for concurrent Enqueue; batches are
// built by the single control thread and RunAll is its only suspension
// point.
type TaskGroup struct {
	tasks []func(context.Context) error
}

// NewTaskGroup creates an empty task group.
func NewTaskGroup() *TaskGroup {
	return &TaskGroup{}
}

// Enqueue appends an operation to the pending batch.
func (g *TaskGroup) Enqueue(fn func(context.Context) error) {
	g.tasks = append(g.tasks, fn)
}

// Size reports the number of pending operations.
func (g *TaskGroup) Size() int {
	return len(g.tasks)
}

// RunAll executes every enqueued operation concurrently, waits for all of
// them to finish, and clears the batch. The first error is returned;
// operations already started complete their side effects regardless.
func (g *TaskGroup) RunAll(ctx context.Context) error {
	if len(g.tasks) == 0 {
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, task := range g.tasks {
		eg.Go(func() error {
			return task(ctx)
		})
	}
	g.tasks = nil

	return eg.Wait()
}
