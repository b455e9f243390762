package memstore

import (
	"github.com/ValentinKolb/feedstore/lib/common"
	"github.com/ValentinKolb/feedstore/lib/dispatch"
	"github.com/ValentinKolb/feedstore/lib/feed"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"runtime"
	"sync/atomic"
	"time"
)

var log = logger.GetLogger("feedstore")

var (
	_ feed.IFeedStore = (*Store)(nil)
	_ feed.Releaser   = (*Store)(nil)
)

// storeCore is the state shared by all handles of one store.
// Scheduled operations only ever capture the core, never a handle, so they
// do not extend the lifetime of the store.
type storeCore struct {
	name  string
	queue *dispatch.Queue

	// mu guards cached and the transitions of alive
	mu     *xsync.RBMutex
	cached *feed.CachedFeed

	alive atomic.Bool
	refs  atomic.Int64
}

// Store is an owning handle to an in-memory feed store.
// Additional handles to the same store are created with Retain. The store is
// destroyed when the last handle was released, either explicitly with Release
// or by the garbage collector once the handle became unreachable.
type Store struct {
	core     *storeCore
	released atomic.Bool
	cleanup  runtime.Cleanup
}

// New creates a new, empty in-memory feed store with the given configuration (optional).
// The returned handle holds the first owning reference.
func New(conf *common.StoreConfig) *Store {
	if conf == nil {
		conf = common.DefaultStoreConfig()
	}

	c := &storeCore{
		name: conf.Name,
		queue: dispatch.NewQueue(&dispatch.Options{
			Name:           conf.Name,
			MaxConcurrency: conf.MaxConcurrentReads,
		}),
		mu: xsync.NewRBMutex(),
	}
	c.alive.Store(true)
	c.refs.Store(1)
	liveStores.Add(1)

	log.Debugf("store %s created", c.name)

	return c.newHandle()
}

// newHandle wraps a reference the caller already added to refs.
func (c *storeCore) newHandle() *Store {
	s := &Store{core: c}
	s.cleanup = runtime.AddCleanup(s, func(core *storeCore) {
		log.Debugf("unreachable handle of store %s collected", core.name)
		core.release()
	}, c)
	return s
}

// --------------------------------------------------------------------------
// Lifetime
// --------------------------------------------------------------------------

// Retain creates a new owning handle to the same store. Operations issued
// through any handle pass through the same serialization point.
// Returns nil if this handle was already released.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Store) Retain() *Store {
	if s.released.Load() {
		return nil
	}
	c := s.core
	for {
		n := c.refs.Load()
		if n <= 0 {
			return nil
		}
		if c.refs.CompareAndSwap(n, n+1) {
			return c.newHandle()
		}
	}
}

// Release drops the owning reference of this handle. Calling Release more
// than once has no effect. When the last reference was released the store is
// destroyed: scheduled operations that did not deliver their result yet are
// dropped without calling their completion.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Store) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	s.cleanup.Stop()
	s.core.release()
}

// Done returns a channel that is closed once the store was destroyed and
// every operation scheduled before that finished.
func (s *Store) Done() <-chan struct{} {
	return s.core.queue.Done()
}

// Name returns the configured name of the store.
func (s *Store) Name() string {
	return s.core.name
}

func (c *storeCore) release() {
	if c.refs.Add(-1) == 0 {
		c.destroy()
	}
}

// destroy marks the store as dead, drops the cached feed and closes the queue.
// Operations still in the queue run, observe that the store is dead and
// return without calling their completion.
func (c *storeCore) destroy() {
	c.mu.Lock()
	c.alive.Store(false)
	c.cached = nil
	c.mu.Unlock()

	c.queue.Close()
	liveStores.Add(-1)

	log.Debugf("store %s destroyed, pending operations are dropped", c.name)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see feed/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Retrieve(completion feed.RetrievalCompletion) {
	c := s.core
	if s.released.Load() || !c.queue.Async(func() { c.retrieve(completion) }) {
		retrievalsDropped.Inc()
	}
}

func (s *Store) Insert(items []feed.FeedItem, timestamp time.Time, completion feed.InsertionCompletion) {
	c := s.core
	cached := feed.CachedFeed{Items: items, Timestamp: timestamp}.Copy()
	if s.released.Load() || !c.queue.AsyncBarrier(func() { c.insert(cached, completion) }) {
		insertionsDropped.Inc()
	}
}

func (s *Store) DeleteCachedFeed(completion feed.DeletionCompletion) {
	c := s.core
	if s.released.Load() || !c.queue.AsyncBarrier(func() { c.delete(completion) }) {
		deletionsDropped.Inc()
	}
}

// --------------------------------------------------------------------------
// Operations (run on the queue)
// --------------------------------------------------------------------------

// retrieve runs as a concurrent task.
func (c *storeCore) retrieve(completion feed.RetrievalCompletion) {
	t := c.mu.RLock()
	alive := c.alive.Load()
	result := feed.Empty()
	if alive && c.cached != nil {
		cached := c.cached.Copy()
		result = feed.RetrievalResult{Feed: &cached}
	}
	c.mu.RUnlock(t)

	if !alive || !c.alive.Load() {
		retrievalsDropped.Inc()
		return
	}
	retrievalsDelivered.Inc()
	if completion != nil {
		completion(result)
	}
}

// insert runs as a barrier task.
func (c *storeCore) insert(cached feed.CachedFeed, completion feed.InsertionCompletion) {
	c.mu.Lock()
	alive := c.alive.Load()
	if alive {
		c.cached = &cached
	}
	c.mu.Unlock()

	if !alive || !c.alive.Load() {
		insertionsDropped.Inc()
		return
	}
	insertionsDelivered.Inc()
	if completion != nil {
		completion(nil)
	}
}

// delete runs as a barrier task.
func (c *storeCore) delete(completion feed.DeletionCompletion) {
	c.mu.Lock()
	alive := c.alive.Load()
	c.cached = nil
	c.mu.Unlock()

	if !alive || !c.alive.Load() {
		deletionsDropped.Inc()
		return
	}
	deletionsDelivered.Inc()
	if completion != nil {
		completion(nil)
	}
}
