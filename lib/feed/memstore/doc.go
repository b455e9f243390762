// Package memstore implements a volatile, in-memory feed store based on the
// feed.IFeedStore interface. The store holds at most one cached feed (items
// plus timestamp). Data is not persisted between process restarts.
//
// Key Features:
//   - Asynchronous retrieve/insert/delete with completion callbacks
//   - Reads run in parallel, inserts and deletes run exclusively
//   - Mutations issued in program order take effect in that order
//   - Completions are never called after the store was destroyed
//
// Implementation Details:
//
//   - Serialization: Every operation is submitted to a dispatch.Queue.
//     Retrievals are concurrent tasks, inserts and deletes are barrier tasks.
//     The queue admits tasks in submission order, so a barrier waits for all
//     earlier reads and holds back all later ones. This gives read-after-write
//     visibility for completed writes and keeps mutations in program order.
//
//   - Atomic Pair: The cached feed is stored behind a single pointer guarded by
//     a reader-biased RW mutex (xsync.RBMutex). Readers see the old or the new
//     pair, never a mix. Items are copied on insert and on retrieve, callers
//     never share the stored slice.
//
//   - Lifetime: A Store value is an owning handle. Retain creates another
//     handle, Release drops one. Once no owner is left the store is destroyed:
//     the liveness flag is cleared under the mutex, the queue is closed and
//     every operation still waiting in it runs to its liveness check and
//     returns silently. Operations capture only the shared core, never a
//     handle, so a scheduled operation does not keep the store alive. A handle
//     that becomes unreachable without Release is released by a runtime
//     cleanup, the Go counterpart of a weak self reference.
//
// Thread Safety:
//
//	All methods are thread-safe. Completions run on queue worker goroutines,
//	never on the calling goroutine.
//
// Usage Example:
//
//	store := memstore.New(nil)
//	defer store.Release()
//
//	store.Insert(items, time.Now(), func(err error) {
//	    // err is always nil for the in-memory store
//	})
//
//	store.Retrieve(func(result feed.RetrievalResult) {
//	    if result.IsFound() {
//	        // use result.Feed.Items, result.Feed.Timestamp
//	    }
//	})
//
// Keep a handle reachable (e.g. with a deferred Release) while waiting for
// results. A handle that is no longer referenced may be collected at any
// time, which destroys the store and drops the pending completions.
//
// Metrics:
//
//	The package registers feedstore_operations_total{op,outcome} counters and
//	the feedstore_live_stores gauge with the default VictoriaMetrics set.
package memstore
