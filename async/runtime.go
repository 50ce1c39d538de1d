// Package async implements the engine's cooperative coroutine scheduler: a
// single-threaded executor that advances suspended protocol coroutines
// against a logical clock supplied by the caller on every entry point. The
// runtime never reads a real clock; all time is injected, which makes it
// fully deterministic given its inputs.
package async

import (
	"errors"
	"time"
)

// Errors returned by Runtime and Future operations.
var (
	// ErrFutureCancelled is the error observed by a Future whose coroutine
	// was cancelled before completion (or never existed).
	ErrFutureCancelled = errors.New("async: future cancelled")
)

// Step is the outcome of one coroutine resumption.
type Step struct {
	// Wake, when Done is false, reschedules the coroutine no earlier than
	// now+Wake. A nil Wake means the coroutine is ready again on the very
	// next tick.
	Wake *time.Duration

	// Done, when true, completes the coroutine; Result/Err hold the
	// outcome and the coroutine is retired from the pollable set.
	Done bool

	Result any
	Err    error
}

// Resumer is a restartable computation: a coroutine. Each call to Resume
// represents one resumption opportunity; the scheduler owns the decision of
// when to call it again, based on the returned Step.
type Resumer func(now time.Time) Step

// pendingTask is the scheduler's bookkeeping for one live, not-yet-complete
// coroutine.
type pendingTask struct {
	resume      Resumer
	deadline    time.Time
	hasDeadline bool // false means runnable immediately
}

func (t *pendingTask) runnable(now time.Time) bool {
	if !t.hasDeadline {
		return true
	}
	return !now.Before(t.deadline)
}

// completedTask is the retained outcome of a coroutine that has finished.
// Future.Result may read it any number of times; it is reclaimed only when
// the Future is cancelled.
type completedTask struct {
	result any
	err    error
}

// Runtime is the single-threaded cooperative scheduler described in the
// package doc. Poll(now) must be called repeatedly ("while poll(now) {}")
// by the owner (normally an EventQueue) to run every runnable coroutine to
// quiescence at a given instant.
type Runtime struct {
	tasks     map[uint64]*pendingTask
	completed map[uint64]completedTask
	// order preserves spawn order; it may contain ids no longer present in
	// tasks (cancelled/completed/reclaimed), which are skipped.
	order  []uint64
	nextID uint64
}

// NewRuntime constructs an empty Runtime.
func NewRuntime() *Runtime {
	return &Runtime{
		tasks:     make(map[uint64]*pendingTask),
		completed: make(map[uint64]completedTask),
	}
}

// spawn registers r and returns its task id, in insertion order relative to
// every other live task.
func (rt *Runtime) spawn(r Resumer) uint64 {
	id := rt.nextID
	rt.nextID++
	rt.tasks[id] = &pendingTask{resume: r}
	rt.order = append(rt.order, id)
	return id
}

// cancel drops the coroutine identified by id, whether pending or already
// completed. Its next resume opportunity (if any) is skipped and its
// storage reclaimed. Cancelling an already-reclaimed or unknown id is a
// no-op.
func (rt *Runtime) cancel(id uint64) {
	delete(rt.tasks, id)
	delete(rt.completed, id)
	rt.maybeCompact()
}

// maybeCompact drops order entries that no longer map to a live task, the
// same amortized cleanup strategy as registry.go's ring-buffer compaction:
// cheap incremental, not eager, removal.
func (rt *Runtime) maybeCompact() {
	if len(rt.order) < 256 || (len(rt.tasks)+len(rt.completed))*4 > len(rt.order) {
		return
	}
	fresh := rt.order[:0:0]
	for _, id := range rt.order {
		if _, ok := rt.tasks[id]; ok {
			fresh = append(fresh, id)
		}
	}
	rt.order = fresh
}

// Poll advances every coroutine whose deadline has elapsed at least once,
// in insertion order among those runnable at now. It returns true whenever
// it did useful work; the caller should loop `for rt.Poll(now) {}` to reach
// quiescence (no coroutine runnable at now).
func (rt *Runtime) Poll(now time.Time) bool {
	didWork := false

	for _, id := range rt.order {
		t, ok := rt.tasks[id]
		if !ok || !t.runnable(now) {
			continue
		}

		step := t.resume(now)
		didWork = true

		if step.Done {
			delete(rt.tasks, id)
			rt.completed[id] = completedTask{result: step.Result, err: step.Err}
			continue
		}

		if step.Wake == nil {
			t.hasDeadline = false
		} else {
			t.hasDeadline = true
			t.deadline = now.Add(*step.Wake)
		}
	}

	return didWork
}

// RunToQuiescence repeatedly polls until no coroutine is runnable at now.
func (rt *Runtime) RunToQuiescence(now time.Time) {
	for rt.Poll(now) {
	}
}

// Pending reports the number of live (not yet complete) coroutines.
func (rt *Runtime) Pending() int {
	return len(rt.tasks)
}
