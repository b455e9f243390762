package feed

import (
	"context"
	"time"
)

// --------------------------------------------------------------------------
// Blocking helpers
// --------------------------------------------------------------------------

// RetrieveContext calls store.Retrieve and waits for the result.
// If ctx is done before the completion was called (e.g. because the store was
// destroyed), ctx.Err() is returned.
func RetrieveContext(ctx context.Context, store IFeedStore) (RetrievalResult, error) {
	results := make(chan RetrievalResult, 1)
	store.Retrieve(func(result RetrievalResult) {
		results <- result
	})

	select {
	case result := <-results:
		return result, result.Err
	case <-ctx.Done():
		return RetrievalResult{}, ctx.Err()
	}
}

// InsertContext calls store.Insert and waits for the result.
// If ctx is done before the completion was called, ctx.Err() is returned.
func InsertContext(ctx context.Context, store IFeedStore, items []FeedItem, timestamp time.Time) error {
	errs := make(chan error, 1)
	store.Insert(items, timestamp, func(err error) {
		errs <- err
	})
	return wait(ctx, errs)
}

// DeleteContext calls store.DeleteCachedFeed and waits for the result.
// If ctx is done before the completion was called, ctx.Err() is returned.
func DeleteContext(ctx context.Context, store IFeedStore) error {
	errs := make(chan error, 1)
	store.DeleteCachedFeed(func(err error) {
		errs <- err
	})
	return wait(ctx, errs)
}

func wait(ctx context.Context, errs <-chan error) error {
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
