package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("Timeout after %s", d)
	}
}

func TestQueueRunsAllTasks(t *testing.T) {
	q := NewQueue(nil)
	defer q.Close()

	var wg sync.WaitGroup
	var count atomic.Int64
	for i := 0; i < 100; i++ {
		wg.Add(1)
		if !q.Async(func() {
			defer wg.Done()
			count.Add(1)
		}) {
			t.Fatalf("Async failed on an open queue")
		}
	}
	waitTimeout(t, &wg, 2*time.Second)

	if count.Load() != 100 {
		t.Errorf("Expected 100 tasks to run, got %d", count.Load())
	}
	if q.Scheduled() != 100 {
		t.Errorf("Expected 100 scheduled tasks, got %d", q.Scheduled())
	}
}

// TestQueueConcurrentTasksRunInParallel only passes if two concurrent tasks overlap
func TestQueueConcurrentTasksRunInParallel(t *testing.T) {
	q := NewQueue(&Options{Name: "parallel", MaxConcurrency: 2})
	defer q.Close()

	aStarted := make(chan struct{})
	bStarted := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	q.Async(func() {
		defer wg.Done()
		close(aStarted)
		<-bStarted
	})
	q.Async(func() {
		defer wg.Done()
		close(bStarted)
		<-aStarted
	})

	waitTimeout(t, &wg, 2*time.Second)
}

func TestQueueBarrierWaitsForEarlierTasks(t *testing.T) {
	q := NewQueue(nil)
	defer q.Close()

	var finished atomic.Int64
	for i := 0; i < 4; i++ {
		q.Async(func() {
			time.Sleep(20 * time.Millisecond)
			finished.Add(1)
		})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	q.AsyncBarrier(func() {
		defer wg.Done()
		if finished.Load() != 4 {
			t.Errorf("Barrier started before earlier tasks finished (%d/4)", finished.Load())
		}
	})
	waitTimeout(t, &wg, 2*time.Second)
}

func TestQueueBarrierIsExclusive(t *testing.T) {
	q := NewQueue(&Options{Name: "exclusive", MaxConcurrency: 8})
	defer q.Close()

	var active atomic.Int64
	var inBarrier atomic.Bool

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		if i%10 == 0 {
			q.AsyncBarrier(func() {
				defer wg.Done()
				inBarrier.Store(true)
				if n := active.Load(); n != 0 {
					t.Errorf("Barrier running next to %d tasks", n)
				}
				time.Sleep(time.Millisecond)
				inBarrier.Store(false)
			})
			continue
		}
		q.Async(func() {
			defer wg.Done()
			active.Add(1)
			if inBarrier.Load() {
				t.Errorf("Task running next to a barrier")
			}
			time.Sleep(100 * time.Microsecond)
			active.Add(-1)
		})
	}
	waitTimeout(t, &wg, 5*time.Second)
}

func TestQueueBarriersKeepSubmissionOrder(t *testing.T) {
	q := NewQueue(nil)
	defer q.Close()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		i := i
		q.AsyncBarrier(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	waitTimeout(t, &wg, 2*time.Second)

	for i, v := range order {
		if v != i {
			t.Fatalf("Expected barrier %d at position %d, got %d", i, i, v)
		}
	}
}

func TestQueueTaskAfterBarrierSeesWrite(t *testing.T) {
	q := NewQueue(nil)
	defer q.Close()

	value := 0
	var wg sync.WaitGroup
	wg.Add(2)
	q.AsyncBarrier(func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		value = 1
	})
	q.Async(func() {
		defer wg.Done()
		if value != 1 {
			t.Errorf("Task admitted after a barrier did not see its write")
		}
	})
	waitTimeout(t, &wg, 2*time.Second)
}

func TestQueueClose(t *testing.T) {
	q := NewQueue(nil)

	var count atomic.Int64
	for i := 0; i < 10; i++ {
		q.Async(func() {
			time.Sleep(time.Millisecond)
			count.Add(1)
		})
	}
	q.AsyncBarrier(func() { count.Add(1) })
	q.Close()

	if q.Async(func() { count.Add(100) }) {
		t.Errorf("Async should fail on a closed queue")
	}
	if q.AsyncBarrier(func() { count.Add(100) }) {
		t.Errorf("AsyncBarrier should fail on a closed queue")
	}

	select {
	case <-q.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Queue did not drain after Close")
	}

	if count.Load() != 11 {
		t.Errorf("Expected 11 accepted tasks to run, got %d", count.Load())
	}
}

func TestQueueRejectsNilTask(t *testing.T) {
	q := NewQueue(nil)
	defer q.Close()

	if q.Async(nil) || q.AsyncBarrier(nil) {
		t.Errorf("nil tasks should be rejected")
	}
}
