package async_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/nip/async"
)

func TestEventQueue_PeekThenPollReturnSameEvent(t *testing.T) {
	rt := async.NewRuntime()
	q := async.NewEventQueue(rt)

	want := &async.TransmitEvent{Frame: []byte{1, 2, 3}}
	async.Spawn(rt, func(now time.Time) (*time.Duration, struct{}, error, bool) {
		q.Emit(want)
		return nil, struct{}{}, nil, true
	})

	now := epoch()
	peeked, ok := q.Peek(now)
	require.True(t, ok)
	assert.Same(t, want, peeked)

	polled, ok := q.Poll(now)
	require.True(t, ok)
	assert.Same(t, want, polled)

	_, ok = q.Peek(now)
	assert.False(t, ok)
}

func TestEventQueue_FIFOOrderAcrossCoroutines(t *testing.T) {
	rt := async.NewRuntime()
	q := async.NewEventQueue(rt)

	evA := &async.TransmitEvent{Frame: []byte("a")}
	evB := &async.TransmitEvent{Frame: []byte("b")}

	async.Spawn(rt, func(now time.Time) (*time.Duration, struct{}, error, bool) {
		q.Emit(evA)
		return nil, struct{}{}, nil, true
	})
	async.Spawn(rt, func(now time.Time) (*time.Duration, struct{}, error, bool) {
		q.Emit(evB)
		return nil, struct{}{}, nil, true
	})

	now := epoch()
	first, ok := q.Poll(now)
	require.True(t, ok)
	assert.Same(t, evA, first)

	second, ok := q.Poll(now)
	require.True(t, ok)
	assert.Same(t, evB, second)

	_, ok = q.Poll(now)
	assert.False(t, ok)
}

func TestEventQueue_DropAdvancesExactlyOne(t *testing.T) {
	rt := async.NewRuntime()
	q := async.NewEventQueue(rt)

	evA := &async.TransmitEvent{Frame: []byte("a")}
	evB := &async.TransmitEvent{Frame: []byte("b")}
	async.Spawn(rt, func(now time.Time) (*time.Duration, struct{}, error, bool) {
		q.Emit(evA)
		q.Emit(evB)
		return nil, struct{}{}, nil, true
	})

	now := epoch()
	require.True(t, q.Drop(now))

	next, ok := q.Peek(now)
	require.True(t, ok)
	assert.Same(t, evB, next)
}

func TestEventQueue_EmptyReturnsFalse(t *testing.T) {
	rt := async.NewRuntime()
	q := async.NewEventQueue(rt)

	_, ok := q.Peek(epoch())
	assert.False(t, ok)
	assert.False(t, q.Drop(epoch()))
}
