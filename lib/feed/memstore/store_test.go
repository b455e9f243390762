package memstore

import (
	"context"
	"github.com/ValentinKolb/feedstore/lib/common"
	"github.com/ValentinKolb/feedstore/lib/feed"
	feedtesting "github.com/ValentinKolb/feedstore/lib/feed/testing"
	"runtime"
	"testing"
	"time"
)

func Test(t *testing.T) {
	feedtesting.RunFeedStoreTests(t, "InMemoryFeedStore", func() feed.IFeedStore {
		return New(nil)
	})
	feedtesting.RunFeedStoreTests(t, "InMemoryFeedStore(SingleReader)", func() feed.IFeedStore {
		return New(&common.StoreConfig{Name: "single", MaxConcurrentReads: 1, LogLevel: "info"})
	})
}

func Benchmark(b *testing.B) {
	feedtesting.RunFeedStoreBenchmarks(b, "InMemoryFeedStore", func() feed.IFeedStore {
		return New(nil)
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func ctxWithTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func expectDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Store was not drained after the last release")
	}
}

// --------------------------------------------------------------------------
// Lifetime
// --------------------------------------------------------------------------

func TestRetainSharesState(t *testing.T) {
	first := New(nil)
	second := first.Retain()
	if second == nil {
		t.Fatalf("Retain on a live handle returned nil")
	}
	defer second.Release()

	items := feedtesting.UniqueFeed()
	timestamp := time.Now()
	if err := feed.InsertContext(ctxWithTimeout(t), first, items, timestamp); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	first.Release()

	result, err := feed.RetrieveContext(ctxWithTimeout(t), second)
	if err != nil {
		t.Fatalf("Retrieve through the retained handle failed: %v", err)
	}
	if !result.IsFound() || !result.Feed.Timestamp.Equal(timestamp) {
		t.Errorf("Expected the retained handle to see the insert, got %s", result)
	}

	select {
	case <-second.Done():
		t.Errorf("Store destroyed while a handle is still retained")
	default:
	}
}

func TestRetainOnReleasedHandle(t *testing.T) {
	s := New(nil)
	s.Release()

	if r := s.Retain(); r != nil {
		r.Release()
		t.Errorf("Retain on a released handle should return nil")
	}
	expectDone(t, s.Done())
}

func TestReleaseIsIdempotentPerHandle(t *testing.T) {
	first := New(nil)
	second := first.Retain()
	defer second.Release()

	first.Release()
	first.Release()

	if err := feed.DeleteContext(ctxWithTimeout(t), second); err != nil {
		t.Errorf("Expected the store to stay alive, delete failed: %v", err)
	}
}

func TestDoneAfterLastRelease(t *testing.T) {
	s := New(nil)
	other := s.Retain()

	s.Insert(feedtesting.UniqueFeed(), time.Now(), nil)
	s.Retrieve(nil)
	s.Release()

	select {
	case <-s.Done():
		t.Fatalf("Store destroyed before the last release")
	case <-time.After(10 * time.Millisecond):
	}

	other.Release()
	expectDone(t, other.Done())
}

// TestUnreachableHandleIsReleased checks that dropping the last handle without
// Release destroys the store once the garbage collector ran.
func TestUnreachableHandleIsReleased(t *testing.T) {
	done := func() <-chan struct{} {
		s := New(nil)
		s.Insert(feedtesting.UniqueFeed(), time.Now(), nil)
		return s.Done()
	}()

	deadline := time.After(5 * time.Second)
	for {
		runtime.GC()
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatalf("Unreachable store was not destroyed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// --------------------------------------------------------------------------
// Serialization
// --------------------------------------------------------------------------

func TestRetrieveWaitsForInFlightInsert(t *testing.T) {
	s := New(nil)
	defer s.Release()

	gate := make(chan struct{})
	items := feedtesting.UniqueFeed()
	timestamp := time.Now()
	s.Insert(items, timestamp, func(error) { <-gate })

	results := make(chan feed.RetrievalResult, 1)
	s.Retrieve(func(result feed.RetrievalResult) { results <- result })

	select {
	case result := <-results:
		t.Fatalf("Retrieve completed while an insert was in flight: %s", result)
	case <-time.After(20 * time.Millisecond):
	}

	close(gate)

	select {
	case result := <-results:
		if !result.IsFound() || !result.Feed.Timestamp.Equal(timestamp) {
			t.Errorf("Expected the retrieve to see the insert, got %s", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Retrieve did not complete after the insert finished")
	}
}

// TestRetrievalsRunConcurrently only passes if two retrieve completions overlap
func TestRetrievalsRunConcurrently(t *testing.T) {
	s := New(&common.StoreConfig{Name: "parallel", MaxConcurrentReads: 2, LogLevel: "info"})
	defer s.Release()

	aStarted := make(chan struct{})
	bStarted := make(chan struct{})
	finished := make(chan struct{}, 2)

	s.Retrieve(func(feed.RetrievalResult) {
		close(aStarted)
		<-bStarted
		finished <- struct{}{}
	})
	s.Retrieve(func(feed.RetrievalResult) {
		close(bStarted)
		<-aStarted
		finished <- struct{}{}
	})

	for i := 0; i < 2; i++ {
		select {
		case <-finished:
		case <-time.After(2 * time.Second):
			t.Fatalf("Retrievals did not run concurrently")
		}
	}
}

func TestNilCompletionsAreAllowed(t *testing.T) {
	s := New(nil)
	defer s.Release()

	s.Insert(feedtesting.UniqueFeed(), time.Now(), nil)
	s.DeleteCachedFeed(nil)
	s.Retrieve(nil)

	result, err := feed.RetrieveContext(ctxWithTimeout(t), s)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if !result.IsEmpty() {
		t.Errorf("Expected empty result, got %s", result)
	}
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

func TestMetricsCountDeliveredAndDropped(t *testing.T) {
	delivered := retrievalsDelivered.Get()
	dropped := insertionsDropped.Get()

	s := New(nil)
	if _, err := feed.RetrieveContext(ctxWithTimeout(t), s); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	s.Release()
	s.Insert(feedtesting.UniqueFeed(), time.Now(), nil)

	if got := retrievalsDelivered.Get(); got < delivered+1 {
		t.Errorf("Expected at least %d delivered retrievals, got %d", delivered+1, got)
	}
	if got := insertionsDropped.Get(); got < dropped+1 {
		t.Errorf("Expected at least %d dropped insertions, got %d", dropped+1, got)
	}
}

func TestName(t *testing.T) {
	s := New(&common.StoreConfig{Name: "timeline"})
	defer s.Release()

	if s.Name() != "timeline" {
		t.Errorf("Expected name timeline, got %s", s.Name())
	}
}
