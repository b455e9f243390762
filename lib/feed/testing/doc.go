// Package testing provides standardised tests and benchmarks for feed store
// implementations that satisfy the feed.IFeedStore interface.
//
// The package contains:
//   - testing: A conformance suite for the retrieve/insert/delete contract,
//     the serial ordering of side effects and the release behaviour
//   - benchmark: Performance tests for the common store operations
//
// Tests about the store lifetime only run if the store implements
// feed.Releaser, they are skipped otherwise.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() feed.IFeedStore {
//		return NewMyFeedStore()
//	}
//
//	// Running the standard test suite
//	feedtesting.RunFeedStoreTests(t, "MyFeedStore", factory)
//
//	// Running performance benchmarks
//	feedtesting.RunFeedStoreBenchmarks(b, "MyFeedStore", factory)
package testing
