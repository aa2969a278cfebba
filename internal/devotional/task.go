package devotional

import (
	"context"
	"fmt"
)

// Task is a supervised background job. Its completion is observable through Done
// and its context is cancelled by Cancel or when the parent context ends.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// StartTask runs fn in a new goroutine with a context derived from parent.
// A panic in fn is recovered and reported through Err.
func StartTask(parent context.Context, fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		t.err = fn(ctx)
	}()

	return t
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task's result once Done is closed, and nil before that.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Finished reports whether the task has completed.
func (t *Task) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Cancel cancels the task's context. It does not wait for the task to return.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
