package memstore

import (
	"github.com/VictoriaMetrics/metrics"
	"sync/atomic"
)

// liveStores counts the stores that were created and not destroyed yet
var liveStores atomic.Int64

// Counters for the operations of all in-memory stores of the process.
// "delivered" means the completion was called, "dropped" means the store was
// destroyed (or the handle released) before the result could be delivered.
var (
	retrievalsDelivered = metrics.NewCounter(`feedstore_operations_total{op="retrieve",outcome="delivered"}`)
	retrievalsDropped   = metrics.NewCounter(`feedstore_operations_total{op="retrieve",outcome="dropped"}`)
	insertionsDelivered = metrics.NewCounter(`feedstore_operations_total{op="insert",outcome="delivered"}`)
	insertionsDropped   = metrics.NewCounter(`feedstore_operations_total{op="insert",outcome="dropped"}`)
	deletionsDelivered  = metrics.NewCounter(`feedstore_operations_total{op="delete",outcome="delivered"}`)
	deletionsDropped    = metrics.NewCounter(`feedstore_operations_total{op="delete",outcome="dropped"}`)

	_ = metrics.NewGauge(`feedstore_live_stores`, func() float64 {
		return float64(liveStores.Load())
	})
)

// LiveStores returns the number of in-memory stores that are not destroyed yet.
func LiveStores() int64 {
	return liveStores.Load()
}
