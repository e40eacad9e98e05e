// Package queue provides an unbounded, blocking FIFO shared between the
// accept loop and the worker pool.
package queue

import "sync"

const minCapacity = 16

// Queue is a thread-safe deque backed by a growable ring buffer. Pop blocks
// while the queue is empty; producers never block.
type Queue[T any] struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	buf      []T
	head     int // index of the first item
	size     int
	closed   bool
}

// New returns an empty, open queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{buf: make([]T, minCapacity)}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends item at the tail and wakes every waiting consumer.
// Pushing to a closed queue is a no-op that reports false.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.grow()
	q.buf[(q.head+q.size)%len(q.buf)] = item
	q.size++
	q.nonEmpty.Broadcast()
	return true
}

// PushFront inserts item at the head.
func (q *Queue[T]) PushFront(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.grow()
	q.head = (q.head - 1 + len(q.buf)) % len(q.buf)
	q.buf[q.head] = item
	q.size++
	q.nonEmpty.Broadcast()
	return true
}

// Pop removes and returns the head, waiting until one is available.
// ok is false only once the queue has been closed and drained.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.size == 0 {
		if q.closed {
			return item, false
		}
		q.nonEmpty.Wait()
	}
	item = q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return item, true
}

// PopBack removes and returns the tail, waiting like Pop.
func (q *Queue[T]) PopBack() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.size == 0 {
		if q.closed {
			return item, false
		}
		q.nonEmpty.Wait()
	}
	i := (q.head + q.size - 1) % len(q.buf)
	item = q.buf[i]
	var zero T
	q.buf[i] = zero
	q.size--
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Close stops accepting items. Consumers keep draining what is left and then
// see ok == false.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.nonEmpty.Broadcast()
}

// grow doubles the ring when full, unrolling it so head lands at 0.
// Caller holds mu.
func (q *Queue[T]) grow() {
	if q.size < len(q.buf) {
		return
	}
	next := make([]T, len(q.buf)*2)
	n := copy(next, q.buf[q.head:])
	copy(next[n:], q.buf[:q.head])
	q.buf = next
	q.head = 0
}
