// Package queue holds submitted job batches in submission order and lets a
// worker claim and complete them without losing track of any job.
//
// Batches are independent units of waiting, not of scheduling: all pending
// jobs from all batches share one global scan order, and a worker may claim
// jobs from several batches in one pass. A batch's Ticket resolves only once
// every one of its jobs has an outcome.
//
//	q := queue.New()
//	ticket, err := q.Submit(jobs)     // programmer errors surface here
//	res, err := ticket.Wait(ctx)      // res.Batch has one slot per job
//
// Workers inspect the pending sequence with Len and PeekAt and claim jobs
// with AcquireAt, which removes them atomically and runs the executor on
// its own goroutine. Executor failures and panics are recorded as job
// outcomes; they never leave a batch unresolved.
package queue
