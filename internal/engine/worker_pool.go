package engine

import (
	"context"
	"sync"

	"github.com/gyaneshwarpardhi/atmsvr/internal/queue"
)

// workerPool is a fixed-size goroutine pool consuming an unbounded queue.
type workerPool[T any] struct {
	queue   *queue.Queue[T]
	process func(ctx context.Context, worker int, t T)
	wg      sync.WaitGroup
}

// newWorkerPool creates and starts a pool with n goroutines popping from q.
func newWorkerPool[T any](ctx context.Context, n int, q *queue.Queue[T], fn func(context.Context, int, T)) *workerPool[T] {
	p := &workerPool[T]{
		queue:   q,
		process: fn,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
	return p
}

// run pops until the queue is closed and drained. Items already popped are
// always processed, so their connections get closed.
func (p *workerPool[T]) run(ctx context.Context, id int) {
	for {
		item, ok := p.queue.Pop()
		if !ok {
			return
		}
		p.process(ctx, id, item)
	}
}

// Submit enqueues a job; it never blocks and fails only after Drain.
func (p *workerPool[T]) Submit(t T) bool {
	return p.queue.Push(t)
}

// Drain closes the queue and waits for all workers to finish what is queued.
func (p *workerPool[T]) Drain() {
	p.queue.Close()
	p.wg.Wait()
}

// QueueLen returns how many jobs are currently queued.
func (p *workerPool[T]) QueueLen() int {
	return p.queue.Len()
}
