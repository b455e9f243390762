package feed

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Completion Types
// --------------------------------------------------------------------------

// RetrievalCompletion receives the result of a Retrieve call.
type RetrievalCompletion func(result RetrievalResult)

// InsertionCompletion receives the result of an Insert call. A nil error means success.
type InsertionCompletion func(err error)

// DeletionCompletion receives the result of a DeleteCachedFeed call. A nil error means success.
type DeletionCompletion func(err error)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IFeedStore is the interface for a store that caches a single feed.
// All operations are asynchronous: they return immediately and deliver their
// result through the completion, which is called on a worker goroutine.
// A completion is called exactly once, or never if the store was destroyed
// before the operation could deliver its result.
type IFeedStore interface {
	// Retrieve delivers the cached feed, or an empty result if nothing is cached.
	Retrieve(completion RetrievalCompletion)
	// Insert replaces the cached feed with the given items and timestamp.
	// The old feed is overwritten, never merged.
	Insert(items []FeedItem, timestamp time.Time, completion InsertionCompletion)
	// DeleteCachedFeed removes the cached feed. Deleting an empty cache is a success.
	DeleteCachedFeed(completion DeletionCompletion)
}

// Releaser is implemented by stores whose lifetime is bound to owning references.
// Release drops one owning reference. Once no owner remains, the store is
// destroyed and pending completions are never called.
type Releaser interface {
	Release()
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("FeedStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess       RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                // 1: Operation failed due to an internal (backend) error.
	RetCStoreReleased                // 2: The store was released. Never delivered through a completion.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCStoreReleased:
		return "StoreReleased"
	default:
		return "Unknown"
	}
}
