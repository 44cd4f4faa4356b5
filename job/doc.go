// Package job defines the unit of outbound work: one platform API call with
// an optional ordering key, an addressing target, and optional data
// dependencies on earlier calls in the same key chain.
//
// Jobs are produced by platform job factories from rendered segments and
// consumed by the queue and worker packages. A Job is never modified after
// submission; anything derived at execution time (the resolved target, the
// finalized request) lives only inside the worker.
package job
