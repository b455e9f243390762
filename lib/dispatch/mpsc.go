package dispatch

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node is a single element of the intake list
type node[T interface{}] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// MPSC is a lock-free multi-producer single-consumer queue.
// Producers append to a linked list with atomic operations, a single
// consumer goroutine moves the values to the channel returned by Recv.
//
// Ordering: values pushed by one goroutine are received in the order they
// were pushed. Values pushed concurrently by different goroutines are
// received in the order their Push calls linearized.
type MPSC[T interface{}] struct {
	head     atomic.Pointer[node[T]]
	tail     atomic.Pointer[node[T]]
	out      chan *T
	consumer sync.WaitGroup
	closed   atomic.Bool
	pushing  atomic.Int64 // producers between the closed check and the append

	// idle consumer waits on cond
	mu   sync.Mutex
	cond *sync.Cond
}

// NewMPSC creates a new queue and starts its consumer goroutine.
func NewMPSC[T interface{}]() *MPSC[T] {
	sentinel := &node[T]{}

	q := &MPSC[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.consume()

	return q
}

// Push appends a value to the queue.
// Returns false if the value is nil or the queue is closed. A value for which
// Push returned true is always delivered, even if Close is called concurrently.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *MPSC[T]) Push(value *T) bool {
	if value == nil {
		return false
	}

	q.pushing.Add(1)
	defer q.pushing.Add(-1)
	if q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}

	var backoff uint8 = 0
	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// a failed CAS means another producer already advanced the tail
				q.tail.CompareAndSwap(tailNode, newNode)
				q.wake()
				return true
			}
		} else {
			// help a producer that appended but has not moved the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// spin a little at low contention, yield at high contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// wake signals the consumer. The signal is sent while holding mu, since the
// consumer checks for new nodes and starts waiting under the same lock.
func (q *MPSC[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// consume moves values from the list to the out channel until the queue is
// closed and empty
func (q *MPSC[T]) consume() {
	defer q.consumer.Done()
	defer close(q.out)

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			hasItems = true

			value := next.value
			q.head.Store(next)
			q.out <- value

			// the node is the new sentinel, drop the reference for the gc
			next.value = nil
		}

		if !hasItems && q.closed.Load() {
			// a push that passed the closed check before Close is still delivered
			if q.pushing.Load() == 0 && q.head.Load().next.Load() == nil {
				return
			}
			runtime.Gosched()
			continue
		}

		if !hasItems {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// Recv returns the channel values are delivered on.
// The channel is closed after Close once every pushed value was delivered.
func (q *MPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close rejects further pushes. Values already in the queue are still delivered.
func (q *MPSC[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// IsClosed returns true if the queue is closed.
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns an approximate count of the values waiting in the queue.
// This is O(n) and should only be used for debugging.
func (q *MPSC[T]) Len() int {
	count := 0
	current := q.head.Load()
	for {
		next := current.next.Load()
		if next == nil {
			break
		}
		count++
		current = next
	}
	return count
}
