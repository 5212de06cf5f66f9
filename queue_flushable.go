package simcore

import (
	"math"
	"sync/atomic"
)

const noMarker = math.MaxUint64

// FlushableQueue is a bounded single-producer single-consumer byte ring
// buffer with an additional end-of-stream marker and a flush marker,
// used as the backpressured pipe between a file-reading goroutine and
// the simulation goroutine. Size must be at least 2; usable capacity is
// Size-1.
type FlushableQueue struct {
	buffer []byte
	size   uint64

	pushIndex  atomic.Uint64
	popIndex   atomic.Uint64
	endIndex   atomic.Uint64
	flushIndex atomic.Uint64
}

// NewFlushableQueue allocates a FlushableQueue with usable capacity size-1.
func NewFlushableQueue(size int) *FlushableQueue {
	if size < 2 {
		panic("simcore: FlushableQueue size must be at least 2")
	}
	q := &FlushableQueue{buffer: make([]byte, size), size: uint64(size)}
	q.endIndex.Store(noMarker)
	q.flushIndex.Store(noMarker)
	return q
}

// Space reports how many bytes can currently be pushed. Producer-side only.
func (q *FlushableQueue) Space() int {
	return int(spaceBetween(q.size, q.pushIndex.Load(), q.popIndex.Load()))
}

// Available reports how many bytes can currently be popped. Consumer-side only.
func (q *FlushableQueue) Available() int {
	return int(availableBetween(q.size, q.pushIndex.Load(), q.popIndex.Load()))
}

// Clear drops every queued byte and clears both markers. Consumer-side only.
func (q *FlushableQueue) Clear() {
	push := q.pushIndex.Load()
	q.popIndex.Store(push)
	q.endIndex.Store(noMarker)
	q.flushIndex.Store(noMarker)
}

// End marks the current push position as the end of the stream.
// Producer-side only.
func (q *FlushableQueue) End() {
	q.endIndex.Store(q.pushIndex.Load())
}

// Ended reports whether the consumer has reached the end marker.
// Consumer-side only.
func (q *FlushableQueue) Ended() bool {
	return q.endIndex.Load() == q.popIndex.Load()
}

// Flush marks the current push position as a flush target. Must be
// called immediately after End(). Producer-side only.
func (q *FlushableQueue) Flush() {
	q.flushIndex.Store(q.pushIndex.Load())
}

// Discard advances the pop index to the flush marker if one is pending,
// reporting whether it did. Consumer-side only.
func (q *FlushableQueue) Discard() bool {
	flush := q.flushIndex.Load()
	push := q.pushIndex.Load()
	pop := q.popIndex.Load()
	if pop == flush || flush == noMarker || availableBetween(q.size, push, pop) < availableBetween(q.size, flush, pop) {
		return false
	}
	q.popIndex.Store(flush)
	return true
}

func (q *FlushableQueue) clearMarkersAt(pos uint64) {
	if q.endIndex.Load() == pos {
		q.endIndex.Store(noMarker)
	}
	if q.flushIndex.Load() == pos {
		q.flushIndex.Store(noMarker)
	}
}

// TryPush appends b if there is space, reporting whether it did. Any
// push lands on (and thereby clears) a pending end/flush marker at the
// new push position.
func (q *FlushableQueue) TryPush(b byte) bool {
	if q.Space() == 0 {
		return false
	}
	push := q.pushIndex.Load()
	q.buffer[push] = b
	push++
	if push == q.size {
		push = 0
	}
	q.clearMarkersAt(push)
	q.pushIndex.Store(push)
	return true
}

// Push appends every byte of bs. Caller must have verified Space() >= len(bs).
func (q *FlushableQueue) Push(bs []byte) {
	push := q.pushIndex.Load()
	for _, b := range bs {
		q.buffer[push] = b
		push++
		if push == q.size {
			push = 0
		}
		q.clearMarkersAt(push)
	}
	q.pushIndex.Store(push)
}

// TryPop removes and returns the front byte, reporting whether there was one.
func (q *FlushableQueue) TryPop() (byte, bool) {
	if q.Available() == 0 {
		return 0, false
	}
	pop := q.popIndex.Load()
	b := q.buffer[pop]
	pop++
	if pop == q.size {
		pop = 0
	}
	q.popIndex.Store(pop)
	return b, true
}

// Peek copies up to len(out) queued bytes starting at the front without
// removing them, returning the number copied.
func (q *FlushableQueue) Peek(out []byte) int {
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

// Pop discards n elements from the front. Caller must have verified
// Available() >= n.
func (q *FlushableQueue) Pop(n int) {
	pop := q.popIndex.Load()
	pop = (pop + uint64(n)) % q.size
	q.popIndex.Store(pop)
}

// PopAndTestProducerNeedsSignal discards one element (caller must have
// verified Available() >= 1, typically via Peek) and reports whether the
// producer, which may be sleeping on a full queue, needs to be woken:
// true iff space transitioned from empty to nonempty.
func (q *FlushableQueue) PopAndTestProducerNeedsSignal() bool {
	pop := q.popIndex.Load()
	pop++
	if pop == q.size {
		pop = 0
	}
	q.popIndex.Store(pop)
	return spaceBetween(q.size, q.pushIndex.Load(), pop) <= 1
}
