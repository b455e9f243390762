package testing

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/feedstore/lib/feed"
	"testing"
	"time"
)

// RunFeedStoreBenchmarks runs all benchmarks for an IFeedStore implementation.
// Every benchmarked operation waits for its completion.
func RunFeedStoreBenchmarks(b *testing.B, name string, factory StoreFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Retrieve(empty)", func(b *testing.B) {
			benchmarkRetrieve(b, factory(), 0)
		})

		b.Run("Retrieve", func(b *testing.B) {
			benchmarkRetrieve(b, factory(), 10)
		})

		b.Run("RetrieveLargeFeed", func(b *testing.B) {
			benchmarkRetrieve(b, factory(), 1000)
		})

		b.Run("RetrieveParallel", func(b *testing.B) {
			benchmarkRetrieveParallel(b, factory())
		})

		b.Run("Insert", func(b *testing.B) {
			benchmarkInsert(b, factory())
		})

		b.Run("Delete", func(b *testing.B) {
			benchmarkDelete(b, factory())
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// FeedOfSize returns a feed with n items
func FeedOfSize(n int) []feed.FeedItem {
	items := make([]feed.FeedItem, n)
	for i := range items {
		items[i] = feed.NewFeedItem(fmt.Sprintf("description %d", i), "", fmt.Sprintf("https://a-url.com/%d", i))
	}
	return items
}

func mustInsert(b *testing.B, sut feed.IFeedStore, items []feed.FeedItem) {
	if err := feed.InsertContext(context.Background(), sut, items, time.Now()); err != nil {
		b.Fatalf("Insert failed: %v", err)
	}
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkRetrieve(b *testing.B, sut feed.IFeedStore, size int) {
	defer release(sut)

	if size > 0 {
		mustInsert(b, sut, FeedOfSize(size))
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = feed.RetrieveContext(ctx, sut)
	}
}

func benchmarkRetrieveParallel(b *testing.B, sut feed.IFeedStore) {
	defer release(sut)

	mustInsert(b, sut, FeedOfSize(10))
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = feed.RetrieveContext(ctx, sut)
		}
	})
}

func benchmarkInsert(b *testing.B, sut feed.IFeedStore) {
	defer release(sut)

	items := FeedOfSize(10)
	ctx := context.Background()
	now := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = feed.InsertContext(ctx, sut, items, now)
	}
}

func benchmarkDelete(b *testing.B, sut feed.IFeedStore) {
	defer release(sut)

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = feed.DeleteContext(ctx, sut)
	}
}

// benchmarkMixedUsage runs 90% retrievals, 8% inserts and 2% deletes in parallel
func benchmarkMixedUsage(b *testing.B, sut feed.IFeedStore) {
	defer release(sut)

	items := FeedOfSize(10)
	mustInsert(b, sut, items)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			switch i % 50 {
			case 0:
				_ = feed.DeleteContext(ctx, sut)
			case 1, 2, 3, 4:
				_ = feed.InsertContext(ctx, sut, items, time.Now())
			default:
				_, _ = feed.RetrieveContext(ctx, sut)
			}
			i++
		}
	})
}
