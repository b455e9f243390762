package testing

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/feedstore/lib/feed"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// StoreFactory is a function that creates a new instance of an IFeedStore implementation
type StoreFactory func() feed.IFeedStore

const (
	// how long to wait for a completion that must be called
	deliveryTimeout = 2 * time.Second
	// how long to wait for a completion that must never be called
	silenceTimeout = 100 * time.Millisecond
)

// RunFeedStoreTests runs a comprehensive test suite for an IFeedStore implementation.
// Tests that depend on the store lifetime are skipped if the store does not implement feed.Releaser.
func RunFeedStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Retrieve/DeliversEmptyOnEmptyCache", func(t *testing.T) {
			testRetrieveDeliversEmptyOnEmptyCache(t, factory())
		})

		t.Run("Retrieve/HasNoSideEffectsOnEmptyCache", func(t *testing.T) {
			testRetrieveHasNoSideEffectsOnEmptyCache(t, factory())
		})

		t.Run("Retrieve/DeliversFoundValuesOnNonEmptyCache", func(t *testing.T) {
			testRetrieveDeliversFoundValuesOnNonEmptyCache(t, factory())
		})

		t.Run("Retrieve/HasNoSideEffectsOnNonEmptyCache", func(t *testing.T) {
			testRetrieveHasNoSideEffectsOnNonEmptyCache(t, factory())
		})

		t.Run("Retrieve/DeliversFoundEmptyFeed", func(t *testing.T) {
			testRetrieveDeliversFoundEmptyFeed(t, factory())
		})

		t.Run("Retrieve/ReturnsCopies", func(t *testing.T) {
			testRetrieveReturnsCopies(t, factory())
		})

		t.Run("Insert/DeliversNoErrorOnEmptyCache", func(t *testing.T) {
			testInsertDeliversNoErrorOnEmptyCache(t, factory())
		})

		t.Run("Insert/DeliversNoErrorOnNonEmptyCache", func(t *testing.T) {
			testInsertDeliversNoErrorOnNonEmptyCache(t, factory())
		})

		t.Run("Insert/OverridesPreviouslyInsertedCacheValues", func(t *testing.T) {
			testInsertOverridesPreviouslyInsertedCacheValues(t, factory())
		})

		t.Run("Delete/DeliversNoErrorOnEmptyCache", func(t *testing.T) {
			testDeleteDeliversNoErrorOnEmptyCache(t, factory())
		})

		t.Run("Delete/HasNoSideEffectsOnEmptyCache", func(t *testing.T) {
			testDeleteHasNoSideEffectsOnEmptyCache(t, factory())
		})

		t.Run("Delete/DeliversNoErrorOnNonEmptyCache", func(t *testing.T) {
			testDeleteDeliversNoErrorOnNonEmptyCache(t, factory())
		})

		t.Run("Delete/EmptiesPreviouslyInsertedCache", func(t *testing.T) {
			testDeleteEmptiesPreviouslyInsertedCache(t, factory())
		})

		t.Run("SideEffects/RunSerially", func(t *testing.T) {
			testSideEffectsRunSerially(t, factory())
		})

		t.Run("SideEffects/KeepProgramOrderUnderLoad", func(t *testing.T) {
			testSideEffectsKeepProgramOrderUnderLoad(t, factory())
		})

		t.Run("Concurrency/ReadersSeeConsistentFeed", func(t *testing.T) {
			testReadersSeeConsistentFeed(t, factory())
		})

		t.Run("Release/RetrieveDoesNotDeliverAfterRelease", func(t *testing.T) {
			testDoesNotDeliverAfterRelease(t, factory(), func(sut feed.IFeedStore, called chan<- string) {
				sut.Retrieve(func(result feed.RetrievalResult) { called <- "retrieve: " + result.String() })
			})
		})

		t.Run("Release/InsertDoesNotDeliverAfterRelease", func(t *testing.T) {
			testDoesNotDeliverAfterRelease(t, factory(), func(sut feed.IFeedStore, called chan<- string) {
				sut.Insert(UniqueFeed(), time.Now(), func(error) { called <- "insert" })
			})
		})

		t.Run("Release/DeleteDoesNotDeliverAfterRelease", func(t *testing.T) {
			testDoesNotDeliverAfterRelease(t, factory(), func(sut feed.IFeedStore, called chan<- string) {
				sut.DeleteCachedFeed(func(error) { called <- "delete" })
			})
		})

		t.Run("Release/OperationsOnReleasedStoreAreDropped", func(t *testing.T) {
			testOperationsOnReleasedStoreAreDropped(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// UniqueFeed returns a feed of two items with random ids
func UniqueFeed() []feed.FeedItem {
	return []feed.FeedItem{
		feed.NewFeedItem("a description", "a location", "https://a-url.com"),
		feed.NewFeedItem("", "", "https://another-url.com"),
	}
}

// release releases the store if it is bound to owning references
func release(sut feed.IFeedStore) {
	if r, ok := sut.(feed.Releaser); ok {
		r.Release()
	}
}

// requireReleaser skips the test if the store does not implement feed.Releaser
func requireReleaser(t testing.TB, sut feed.IFeedStore) feed.Releaser {
	r, ok := sut.(feed.Releaser)
	if !ok {
		t.Skip()
	}
	return r
}

func retrieve(t testing.TB, sut feed.IFeedStore) feed.RetrievalResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	result, err := feed.RetrieveContext(ctx, sut)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	return result
}

func insert(t testing.TB, sut feed.IFeedStore, items []feed.FeedItem, timestamp time.Time) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	err := feed.InsertContext(ctx, sut, items, timestamp)
	if err == context.DeadlineExceeded {
		t.Fatalf("Insert did not complete in time")
	}
	return err
}

func deleteCache(t testing.TB, sut feed.IFeedStore) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	err := feed.DeleteContext(ctx, sut)
	if err == context.DeadlineExceeded {
		t.Fatalf("Delete did not complete in time")
	}
	return err
}

// expectEmpty fails the test if the store does not deliver an empty result
func expectEmpty(t testing.TB, sut feed.IFeedStore) {
	t.Helper()
	if result := retrieve(t, sut); !result.IsEmpty() {
		t.Errorf("Expected empty result, got %s", result)
	}
}

// expectFound fails the test if the store does not deliver exactly the given items and timestamp
func expectFound(t testing.TB, sut feed.IFeedStore, items []feed.FeedItem, timestamp time.Time) {
	t.Helper()
	result := retrieve(t, sut)
	if !result.IsFound() {
		t.Errorf("Expected found result with %d items, got %s", len(items), result)
		return
	}
	if !slices.Equal(result.Feed.Items, items) {
		t.Errorf("Expected items %v, got %v", items, result.Feed.Items)
	}
	if !result.Feed.Timestamp.Equal(timestamp) {
		t.Errorf("Expected timestamp %s, got %s", timestamp, result.Feed.Timestamp)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testRetrieveDeliversEmptyOnEmptyCache(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	expectEmpty(t, sut)
}

func testRetrieveHasNoSideEffectsOnEmptyCache(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	expectEmpty(t, sut)
	expectEmpty(t, sut)
}

func testRetrieveDeliversFoundValuesOnNonEmptyCache(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	items := UniqueFeed()
	timestamp := time.Now()

	if err := insert(t, sut, items, timestamp); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	expectFound(t, sut, items, timestamp)
}

func testRetrieveHasNoSideEffectsOnNonEmptyCache(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	items := UniqueFeed()
	timestamp := time.Now()

	if err := insert(t, sut, items, timestamp); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	expectFound(t, sut, items, timestamp)
	expectFound(t, sut, items, timestamp)
}

func testRetrieveDeliversFoundEmptyFeed(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	timestamp := time.Unix(0, 0)

	if err := insert(t, sut, []feed.FeedItem{}, timestamp); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	expectFound(t, sut, []feed.FeedItem{}, timestamp)

	if err := insert(t, sut, nil, timestamp.Add(time.Hour)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	expectFound(t, sut, nil, timestamp.Add(time.Hour))
}

func testRetrieveReturnsCopies(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	items := UniqueFeed()
	expected := slices.Clone(items)
	timestamp := time.Now()

	if err := insert(t, sut, items, timestamp); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// modify the inserted slice after the insert
	items[0].URL = "https://modified-after-insert.com"
	expectFound(t, sut, expected, timestamp)

	// modify a retrieved slice
	result := retrieve(t, sut)
	if !result.IsFound() || len(result.Feed.Items) == 0 {
		t.Fatalf("Expected found result, got %s", result)
	}
	result.Feed.Items[0].URL = "https://modified-after-retrieve.com"
	expectFound(t, sut, expected, timestamp)
}

func testInsertDeliversNoErrorOnEmptyCache(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	if err := insert(t, sut, UniqueFeed(), time.Now()); err != nil {
		t.Errorf("Expected to insert cache successfully, got %v", err)
	}
}

func testInsertDeliversNoErrorOnNonEmptyCache(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	if err := insert(t, sut, UniqueFeed(), time.Now()); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := insert(t, sut, UniqueFeed(), time.Now()); err != nil {
		t.Errorf("Expected to override cache successfully, got %v", err)
	}
}

func testInsertOverridesPreviouslyInsertedCacheValues(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	if err := insert(t, sut, UniqueFeed(), time.Now()); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	latestItems := UniqueFeed()[:1]
	latestTimestamp := time.Now().Add(time.Minute)
	if err := insert(t, sut, latestItems, latestTimestamp); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	expectFound(t, sut, latestItems, latestTimestamp)
}

func testDeleteDeliversNoErrorOnEmptyCache(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	if err := deleteCache(t, sut); err != nil {
		t.Errorf("Expected empty cache deletion to succeed, got %v", err)
	}
}

func testDeleteHasNoSideEffectsOnEmptyCache(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	if err := deleteCache(t, sut); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	expectEmpty(t, sut)

	if err := deleteCache(t, sut); err != nil {
		t.Errorf("Expected repeated deletion to succeed, got %v", err)
	}
	expectEmpty(t, sut)
}

func testDeleteDeliversNoErrorOnNonEmptyCache(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	if err := insert(t, sut, UniqueFeed(), time.Now()); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := deleteCache(t, sut); err != nil {
		t.Errorf("Expected non-empty cache deletion to succeed, got %v", err)
	}
}

func testDeleteEmptiesPreviouslyInsertedCache(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	if err := insert(t, sut, UniqueFeed(), time.Now()); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := deleteCache(t, sut); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	expectEmpty(t, sut)
}

// testSideEffectsRunSerially issues insert, delete, insert without waiting in
// between. The completions must arrive in that order and the last insert must win.
func testSideEffectsRunSerially(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	var (
		mu    sync.Mutex
		order []string
		wg    sync.WaitGroup
	)
	record := func(op string) {
		mu.Lock()
		order = append(order, op)
		mu.Unlock()
		wg.Done()
	}

	latestItems := UniqueFeed()
	latestTimestamp := time.Now()

	wg.Add(3)
	sut.Insert(UniqueFeed(), time.Now().Add(-time.Hour), func(error) { record("insert 1") })
	sut.DeleteCachedFeed(func(error) { record("delete") })
	sut.Insert(latestItems, latestTimestamp, func(error) { record("insert 2") })

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(deliveryTimeout):
		t.Fatalf("Side effects did not complete in time")
	}

	expected := []string{"insert 1", "delete", "insert 2"}
	if !slices.Equal(order, expected) {
		t.Errorf("Expected side effects to run serially in order %v, got %v", expected, order)
	}
	expectFound(t, sut, latestItems, latestTimestamp)
}

// testSideEffectsKeepProgramOrderUnderLoad interleaves many mutations with
// reads from other goroutines. The final state must reflect the last mutation.
func testSideEffectsKeepProgramOrderUnderLoad(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					sut.Retrieve(nil)
					time.Sleep(50 * time.Microsecond)
				}
			}
		}()
	}

	base := time.Unix(1_700_000_000, 0)
	var last []feed.FeedItem
	for i := 0; i < 200; i++ {
		switch i % 3 {
		case 0, 2:
			last = []feed.FeedItem{feed.NewFeedItem(fmt.Sprintf("item %d", i), "", "https://a-url.com")}
			sut.Insert(last, base.Add(time.Duration(i)*time.Second), nil)
		case 1:
			sut.DeleteCachedFeed(nil)
		}
	}
	// 199 % 3 == 1, finish with a known insert
	sut.Insert(last, base.Add(time.Hour), nil)

	close(stop)
	readers.Wait()

	expectFound(t, sut, last, base.Add(time.Hour))
}

// testReadersSeeConsistentFeed checks that a reader never sees items of one
// insert together with the timestamp of another.
func testReadersSeeConsistentFeed(t *testing.T, sut feed.IFeedStore) {
	defer release(sut)

	base := time.Unix(1_700_000_000, 0)
	feedFor := func(i int) ([]feed.FeedItem, time.Time) {
		items := make([]feed.FeedItem, 1+i%5)
		for j := range items {
			items[j] = feed.FeedItem{Description: fmt.Sprintf("%d", i), URL: "https://a-url.com"}
		}
		return items, base.Add(time.Duration(i) * time.Second)
	}

	const writes = 200
	const readers = 4

	var inconsistent, failed atomic.Int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			items, ts := feedFor(i)
			sut.Insert(items, ts, nil)
		}
	}()

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
				result, err := feed.RetrieveContext(ctx, sut)
				cancel()
				if err != nil {
					failed.Add(1)
					continue
				}
				if !result.IsFound() {
					continue
				}
				n := int(result.Feed.Timestamp.Sub(base) / time.Second)
				items, ts := feedFor(n)
				if !ts.Equal(result.Feed.Timestamp) || !slices.Equal(items, result.Feed.Items) {
					inconsistent.Add(1)
				}
			}
		}()
	}

	wg.Wait()

	if n := failed.Load(); n > 0 {
		t.Errorf("%d retrievals failed", n)
	}
	if n := inconsistent.Load(); n > 0 {
		t.Errorf("Readers observed %d inconsistent feeds", n)
	}
}

// testDoesNotDeliverAfterRelease holds the store busy with an insert whose
// completion blocks, schedules the operation under test behind it, releases
// the store and then unblocks it. The operation must never call its completion.
func testDoesNotDeliverAfterRelease(t *testing.T, sut feed.IFeedStore, schedule func(sut feed.IFeedStore, called chan<- string)) {
	r := requireReleaser(t, sut)

	gate := make(chan struct{})
	sut.Insert(UniqueFeed(), time.Now(), func(error) { <-gate })

	called := make(chan string, 1)
	schedule(sut, called)

	r.Release()
	close(gate)

	select {
	case op := <-called:
		t.Errorf("Expected no completion after the store was released, got %s", op)
	case <-time.After(silenceTimeout):
	}
}

func testOperationsOnReleasedStoreAreDropped(t *testing.T, sut feed.IFeedStore) {
	r := requireReleaser(t, sut)
	r.Release()

	called := make(chan string, 3)
	sut.Retrieve(func(feed.RetrievalResult) { called <- "retrieve" })
	sut.Insert(UniqueFeed(), time.Now(), func(error) { called <- "insert" })
	sut.DeleteCachedFeed(func(error) { called <- "delete" })

	select {
	case op := <-called:
		t.Errorf("Expected no completion on a released store, got %s", op)
	case <-time.After(silenceTimeout):
	}
}
