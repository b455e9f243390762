package dispatch

import (
	"context"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/semaphore"
	"runtime"
	"sync/atomic"
)

var log = logger.GetLogger("dispatch")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures a Queue
type Options struct {
	Name           string // Name used in log output
	MaxConcurrency int    // Max. number of concurrent tasks (<= 0 = runtime.NumCPU())
}

// DefaultOptions returns the default queue options
func DefaultOptions() *Options {
	return &Options{
		Name:           "queue",
		MaxConcurrency: runtime.NumCPU(),
	}
}

// --------------------------------------------------------------------------
// Queue
// --------------------------------------------------------------------------

// task is a scheduled function. Barrier tasks run exclusively.
type task struct {
	fn      func()
	barrier bool
}

// Queue is a concurrent dispatch queue with barrier support.
//
// Tasks are admitted strictly in the order they were submitted. Concurrent
// tasks run in parallel on their own goroutines (bounded by MaxConcurrency).
// A barrier task starts only after every task admitted before it finished,
// and no task admitted after it starts before the barrier finished.
type Queue struct {
	name      string
	intake    *MPSC[task]
	slots     *semaphore.Weighted
	maxSlots  int64
	done      chan struct{}
	scheduled atomic.Uint64
}

// NewQueue creates a new queue with the given options (optional) and starts
// its dispatcher goroutine. The queue must be closed with Close to stop the
// dispatcher.
func NewQueue(opts *Options) *Queue {
	if opts == nil {
		opts = DefaultOptions()
	}

	maxSlots := int64(opts.MaxConcurrency)
	if maxSlots <= 0 {
		maxSlots = int64(runtime.NumCPU())
	}

	q := &Queue{
		name:     opts.Name,
		intake:   NewMPSC[task](),
		slots:    semaphore.NewWeighted(maxSlots),
		maxSlots: maxSlots,
		done:     make(chan struct{}),
	}

	go q.dispatch()

	log.Debugf("queue %s started (max concurrency %d)", q.name, maxSlots)

	return q
}

// Async schedules fn to run concurrently with other non-barrier tasks.
// Returns false if the queue is closed, fn will not run in that case.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Queue) Async(fn func()) bool {
	return q.submit(&task{fn: fn})
}

// AsyncBarrier schedules fn to run exclusively.
// Returns false if the queue is closed, fn will not run in that case.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *Queue) AsyncBarrier(fn func()) bool {
	return q.submit(&task{fn: fn, barrier: true})
}

func (q *Queue) submit(t *task) bool {
	if t.fn == nil {
		return false
	}
	if !q.intake.Push(t) {
		return false
	}
	q.scheduled.Add(1)
	return true
}

// Close rejects new tasks. Tasks that were already accepted still run.
func (q *Queue) Close() {
	q.intake.Close()
}

// Done returns a channel that is closed once the queue was closed and every
// accepted task finished.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Scheduled returns the number of tasks accepted so far.
func (q *Queue) Scheduled() uint64 {
	return q.scheduled.Load()
}

// dispatch admits tasks in order. A concurrent task takes one slot, a barrier
// takes all slots, so it waits for every running task and blocks later ones.
func (q *Queue) dispatch() {
	defer close(q.done)

	// Acquire only fails if the context is done
	ctx := context.Background()

	for t := range q.intake.Recv() {
		weight := int64(1)
		if t.barrier {
			weight = q.maxSlots
		}

		_ = q.slots.Acquire(ctx, weight)
		go func(fn func(), weight int64) {
			defer q.slots.Release(weight)
			fn()
		}(t.fn, weight)
	}

	// wait for the last running tasks
	_ = q.slots.Acquire(ctx, q.maxSlots)
	q.slots.Release(q.maxSlots)

	log.Debugf("queue %s drained after %d tasks", q.name, q.scheduled.Load())
}
