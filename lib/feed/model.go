package feed

import (
	"fmt"
	"github.com/google/uuid"
	"time"
)

// FeedItem describes a single image of the feed.
// The store treats it as an opaque value and never inspects its fields.
type FeedItem struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	URL         string    `json:"url"`
}

// NewFeedItem creates a feed item with a random id.
func NewFeedItem(description, location, url string) FeedItem {
	return FeedItem{
		ID:          uuid.New(),
		Description: description,
		Location:    location,
		URL:         url,
	}
}

// CachedFeed is the pair a store holds: the feed items and the time they were stored.
type CachedFeed struct {
	Items     []FeedItem `json:"items"`
	Timestamp time.Time  `json:"timestamp"`
}

// Copy returns a deep copy of the cached feed, so that callers never share
// the backing array of Items with the store.
func (c CachedFeed) Copy() CachedFeed {
	items := make([]FeedItem, len(c.Items))
	copy(items, c.Items)
	return CachedFeed{
		Items:     items,
		Timestamp: c.Timestamp,
	}
}

// --------------------------------------------------------------------------
// Results
// --------------------------------------------------------------------------

// RetrievalResult is the result of a Retrieve call. It is one of:
//
//   - empty:   Feed == nil, Err == nil
//   - found:   Feed != nil, Err == nil
//   - failure: Err != nil (reserved for failable backends)
type RetrievalResult struct {
	Feed *CachedFeed
	Err  error
}

// Empty creates an empty retrieval result.
func Empty() RetrievalResult {
	return RetrievalResult{}
}

// Found creates a retrieval result holding the given items and timestamp.
func Found(items []FeedItem, timestamp time.Time) RetrievalResult {
	return RetrievalResult{Feed: &CachedFeed{Items: items, Timestamp: timestamp}}
}

// Failure creates a failed retrieval result.
func Failure(err error) RetrievalResult {
	return RetrievalResult{Err: err}
}

// IsEmpty reports whether the result is the empty variant.
func (r RetrievalResult) IsEmpty() bool {
	return r.Err == nil && r.Feed == nil
}

// IsFound reports whether the result is the found variant.
func (r RetrievalResult) IsFound() bool {
	return r.Err == nil && r.Feed != nil
}

func (r RetrievalResult) String() string {
	switch {
	case r.Err != nil:
		return "failure(" + r.Err.Error() + ")"
	case r.Feed == nil:
		return "empty"
	default:
		return fmt.Sprintf("found(%d items, %s)", len(r.Feed.Items), r.Feed.Timestamp.Format(time.RFC3339Nano))
	}
}
