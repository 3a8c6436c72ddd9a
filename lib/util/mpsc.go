package util

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// link is one element of the queue's singly linked list.
type link[T any] struct {
	item *T
	at   time.Time
	next atomic.Pointer[link[T]]
}

// Queued is what the consumer receives: the pushed item and how long it
// waited in the queue before being handed out.
type Queued[T any] struct {
	Item *T
	Wait time.Duration
}

// MPSC is an unbounded multi-producer single-consumer queue. Producers append
// to a linked list with compare-and-swap; a single drain goroutine forwards
// items, in append order, to the channel returned by Recv.
//
// Items pushed by one goroutine are delivered in push order. Items pushed
// concurrently by different goroutines are delivered in the order their
// appends succeeded.
type MPSC[T any] struct {
	head   atomic.Pointer[link[T]]
	tail   atomic.Pointer[link[T]]
	out    chan Queued[T]
	done   chan struct{}
	closed atomic.Bool
	size   atomic.Int64

	// gate is read-held by an append and write-held by Close, so no append
	// can land after drain saw the queue closed and empty
	gate sync.RWMutex

	mu   sync.Mutex
	cond *sync.Cond
}

// NewMPSC creates a queue and starts its drain goroutine. The goroutine ends
// after Close once every pending item has been received.
func NewMPSC[T any]() *MPSC[T] {
	dummy := &link[T]{}
	q := &MPSC[T]{
		out:  make(chan Queued[T]),
		done: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(dummy)
	q.tail.Store(dummy)

	go q.drain()
	return q
}

// Push appends item. It returns false if item is nil or the queue is closed.
//
// Thread-safety: safe for any number of concurrent producers.
func (q *MPSC[T]) Push(item *T) bool {
	if item == nil {
		return false
	}
	q.gate.RLock()
	defer q.gate.RUnlock()
	if q.closed.Load() {
		return false
	}

	l := &link[T]{item: item, at: time.Now()}
	var spins uint8
	for {
		last := q.tail.Load()
		next := last.next.Load()
		if next != nil {
			// another producer appended but has not moved tail yet
			q.tail.CompareAndSwap(last, next)
		} else if last.next.CompareAndSwap(nil, l) {
			q.tail.CompareAndSwap(last, l)
			q.size.Add(1)
			q.mu.Lock()
			q.cond.Signal()
			q.mu.Unlock()
			return true
		}

		// exponential backoff under contention
		if spins < 8 {
			spins++
			for i := 0; i < 1<<spins; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

func (q *MPSC[T]) drain() {
	defer close(q.done)
	defer close(q.out)

	for {
		moved := false
		for {
			first := q.head.Load()
			l := first.next.Load()
			if l == nil {
				break
			}
			moved = true
			q.head.Store(l)
			q.size.Add(-1)
			q.out <- Queued[T]{Item: l.item, Wait: time.Since(l.at)}
			l.item = nil
		}

		if moved {
			continue
		}
		if q.closed.Load() && q.head.Load().next.Load() == nil {
			return
		}

		q.mu.Lock()
		if q.head.Load().next.Load() == nil && !q.closed.Load() {
			q.cond.Wait()
		}
		q.mu.Unlock()
	}
}

// Recv returns the channel the consumer reads from. It is closed after Close
// once the queue has been drained.
func (q *MPSC[T]) Recv() <-chan Queued[T] {
	return q.out
}

// Close rejects further pushes. Pending items are still delivered.
func (q *MPSC[T]) Close() {
	q.gate.Lock()
	q.closed.Store(true)
	q.gate.Unlock()
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// Done is closed when the drain goroutine has exited.
func (q *MPSC[T]) Done() <-chan struct{} {
	return q.done
}

// IsClosed reports whether Close was called.
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of items appended but not yet handed to the consumer.
func (q *MPSC[T]) Len() int {
	return int(q.size.Load())
}
