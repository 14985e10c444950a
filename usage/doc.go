// Package usage records which cache keys are read and written.
//
// Every hit and every write produces an Event. The Emitter converts events to
// flat DataPoints (ordered string blobs plus the cache key as index) and hands
// them to a Sink on a background goroutine. Emit never blocks and never
// reports errors to the request path; when the queue is full the event is
// dropped and counted.
package usage
