package simcore

import "sync/atomic"

// cacheLinePad absorbs false sharing between the push and pop indices of
// a FixedQueue, the way _examples/hayabusa-cloud-lfq/spsc.go pads its
// cached head/tail fields; a bare two-field struct would otherwise let
// producer and consumer cores fight over the same cache line.
type cacheLinePad [56]byte

// FixedQueue is a bounded single-producer single-consumer ring buffer.
// Size must be a positive integer; usable capacity is Size-1. All
// producer-side methods must be called from a single producer goroutine,
// all consumer-side methods from a single (possibly different) consumer
// goroutine; no method is safe to call concurrently with another call to
// the same side.
type FixedQueue[T any] struct {
	buffer []T
	size   uint64

	pushIndex atomic.Uint64
	_         cacheLinePad
	popIndex  atomic.Uint64
	_         cacheLinePad
}

// NewFixedQueue allocates a FixedQueue with usable capacity size-1.
func NewFixedQueue[T any](size int) *FixedQueue[T] {
	if size < 2 {
		panic("simcore: FixedQueue size must be at least 2")
	}
	return &FixedQueue[T]{buffer: make([]T, size), size: uint64(size)}
}

func spaceBetween(size, push, pop uint64) uint64 {
	if pop <= push {
		pop += size
	}
	return pop - push - 1
}

func availableBetween(size, push, pop uint64) uint64 {
	if push < pop {
		push += size
	}
	return push - pop
}

// Space reports how many elements can currently be pushed. Must be
// synchronized with other Push-side calls.
func (q *FixedQueue[T]) Space() int {
	push := q.pushIndex.Load()
	pop := q.popIndex.Load()
	return int(spaceBetween(q.size, push, pop))
}

// Available reports how many elements can currently be popped. Must be
// synchronized with other Pop-side calls.
func (q *FixedQueue[T]) Available() int {
	pop := q.popIndex.Load()
	push := q.pushIndex.Load()
	return int(availableBetween(q.size, push, pop))
}

// Clear drops every currently queued element. Consumer-side only; must
// not run concurrently with Pop.
func (q *FixedQueue[T]) Clear() {
	push := q.pushIndex.Load()
	q.popIndex.Store(push)
}

// TryPush appends v if there is space, reporting whether it did.
func (q *FixedQueue[T]) TryPush(v T) bool {
	if q.Space() == 0 {
		return false
	}
	push := q.pushIndex.Load()
	q.buffer[push] = v
	push++
	if push == q.size {
		push = 0
	}
	q.pushIndex.Store(push)
	return true
}

// TryPop removes and returns the front element, reporting whether there was one.
func (q *FixedQueue[T]) TryPop() (v T, ok bool) {
	if q.Available() == 0 {
		return v, false
	}
	pop := q.popIndex.Load()
	v = q.buffer[pop]
	pop++
	if pop == q.size {
		pop = 0
	}
	q.popIndex.Store(pop)
	return v, true
}

// Push appends every element of vs. Caller must have verified Space() >=
// len(vs) first.
func (q *FixedQueue[T]) Push(vs []T) {
	push := q.pushIndex.Load()
	for _, v := range vs {
		q.buffer[push] = v
		push++
		if push == q.size {
			push = 0
		}
	}
	q.pushIndex.Store(push)
}

// Pop removes n elements into out (len(out) == n), copying their
// values into out in FIFO order. Caller must have verified Available() >= n.
func (q *FixedQueue[T]) Pop(out []T) {
	pop := q.popIndex.Load()
	for i := range out {
		out[i] = q.buffer[pop]
		pop++
		if pop == q.size {
			pop = 0
		}
	}
	q.popIndex.Store(pop)
}

// Peek copies up to len(out) queued elements starting at the front
// without removing them, returning the number copied.
func (q *FixedQueue[T]) Peek(out []T) int {
	n := q.Available()
	if n > len(out) {
		n = len(out)
	}
	pop := q.popIndex.Load()
	for i := 0; i < n; i++ {
		out[i] = q.buffer[pop]
		pop++
		if pop == q.size {
			pop = 0
		}
	}
	return n
}

// PopAndTestProducerNeedsSignal removes n front elements (already
// observed via Available/Peek) and reports whether the producer, which
// may be sleeping on a full queue, needs to be woken: true iff space
// transitioned from empty to nonempty.
func (q *FixedQueue[T]) PopAndTestProducerNeedsSignal(n int) bool {
	pop := q.popIndex.Load()
	pop = (pop + uint64(n)) % q.size
	q.popIndex.Store(pop)
	return spaceBetween(q.size, q.pushIndex.Load(), pop) <= uint64(n)
}

// EmplaceAndTestConsumerNeedsSignal pushes v (caller must have verified
// space) and reports whether the consumer, which may be sleeping on an
// empty queue, needs to be woken: true iff available transitioned from 0 to 1.
func (q *FixedQueue[T]) EmplaceAndTestConsumerNeedsSignal(v T) bool {
	push := q.pushIndex.Load()
	q.buffer[push] = v
	push++
	if push == q.size {
		push = 0
	}
	q.pushIndex.Store(push)
	return availableBetween(q.size, push, q.popIndex.Load()) <= 1
}
