// Package feed defines the contract for stores that cache a single feed on the
// client side: one collection of feed items plus the time at which it was stored.
//
// Key Components:
//
//   - IFeedStore Interface: The asynchronous retrieve/insert/delete contract.
//     Every operation returns immediately and reports its result through a
//     completion that runs on a worker goroutine. Completions are called
//     exactly once, or never if the store was destroyed before the operation
//     delivered its result. A missing completion is not an error and is never
//     reported as one.
//
//   - Results: RetrievalResult distinguishes the empty, found and failure
//     variants. Insert and delete completions receive an error that is nil on
//     success. The failure variants are reserved for failable backends; the
//     in-memory store never produces them.
//
//   - Releaser: Stores whose lifetime is bound to owning references implement
//     Release. After the last owner released the store, scheduled operations
//     are dropped silently.
//
//   - Error System: Error wraps a RetCode and a message, the same way the
//     key-value stores report typed errors.
//
// Implementations:
//
//	- In-Memory Store (memstore): a volatile, concurrency-safe store that
//	  serializes mutations against each other while reads run in parallel.
//	  Available in the "github.com/ValentinKolb/feedstore/lib/feed/memstore" package.
//
// Any implementation can be validated with the conformance suite in the
// "github.com/ValentinKolb/feedstore/lib/feed/testing" package.
package feed
