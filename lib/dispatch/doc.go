// Package dispatch provides a concurrent dispatch queue with barrier support
// and the lock-free multi-producer single-consumer queue it uses for intake.
//
// Queue:
//
//	Tasks are submitted with Async (concurrent) or AsyncBarrier (exclusive)
//	and admitted by a single dispatcher goroutine in submission order.
//	Concurrent tasks fan out on their own goroutines, limited by a weighted
//	semaphore. A barrier acquires every slot of the semaphore, so it starts
//	after all earlier tasks finished and holds back every later task until
//	it is done. This is the classic single-writer/multiple-reader discipline
//	expressed as a task queue:
//
//	  q := dispatch.NewQueue(nil)
//	  defer q.Close()
//
//	  q.Async(func() { /* read */ })
//	  q.AsyncBarrier(func() { /* write */ })
//
// MPSC:
//
//   - Lock-Free: producers append with atomic compare-and-swap
//   - Unbounded Size: limited only by available memory
//   - Single Consumer: values are delivered on the channel returned by Recv
//   - Per-Producer FIFO: values pushed by one goroutine keep their order
//
// Thread Safety:
//
//	Async, AsyncBarrier, Close and Push can be called from any goroutine.
package dispatch
