package async

import "time"

// Future is a handle to a coroutine's eventual result, returned by Spawn.
// The scheduler owns the live coroutine; the spawner holds only this
// lightweight, typed view onto its completion slot.
type Future[T any] struct {
	rt *Runtime
	id uint64
}

// TypedResumer is the per-resumption contract for a coroutine spawned via
// Spawn: it either reports a wake-up delay (done=false) or a typed result
// or failure (done=true).
type TypedResumer[T any] func(now time.Time) (wake *time.Duration, result T, err error, done bool)

// Spawn registers a typed coroutine with rt and returns a handle to its
// eventual result.
func Spawn[T any](rt *Runtime, r TypedResumer[T]) *Future[T] {
	id := rt.spawn(func(now time.Time) Step {
		wake, result, err, done := r(now)
		return Step{Wake: wake, Done: done, Result: result, Err: err}
	})
	return &Future[T]{rt: rt, id: id}
}

// Result reports the coroutine's outcome. ready is false while the
// coroutine is still pending. Once ready, exactly one of result/err is
// meaningful, following ordinary Go convention. Calling Result after the
// coroutine was cancelled (or for an unknown id) reports ErrFutureCancelled.
func (f *Future[T]) Result() (result T, err error, ready bool) {
	if c, ok := f.rt.completed[f.id]; ok {
		if c.err != nil {
			return result, c.err, true
		}
		typed, _ := c.result.(T)
		return typed, nil, true
	}
	if _, stillPending := f.rt.tasks[f.id]; stillPending {
		return result, nil, false
	}
	return result, ErrFutureCancelled, true
}

// Cancel drops the coroutine, whether pending or already completed. A
// subsequent Result reports ErrFutureCancelled.
func (f *Future[T]) Cancel() {
	f.rt.cancel(f.id)
}
