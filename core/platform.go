package core

import "time"

// Job is an opaque unit of work handed to a Platform. Backends never
// inspect a Job; they only decide where and when it runs.
type Job func()

// Platform is the narrow capability a scheduling backend provides.
// Every higher-level primitive in this library reduces to Job
// submissions against it.
//
// Delivery contract: a Platform never drops an accepted Job. When the
// normal path is unavailable (for example the backend was stopped), the
// Job must still be invoked exactly once, possibly degraded: on a fresh
// goroutine, or immediately instead of after the requested delay. A
// dropped Job would strand a suspended task forever.
type Platform interface {
	// SubmitMain enqueues job onto the single main context. Jobs from
	// one goroutine run in submission order, and main jobs never run
	// concurrently with each other. SubmitMain never executes job
	// synchronously on the calling goroutine and never blocks.
	SubmitMain(job Job)

	// Submit enqueues job for concurrent execution at the given
	// priority. No ordering is guaranteed relative to other
	// submissions; jobs may run in parallel.
	Submit(job Job, pri Priority)

	// SubmitAfter runs job once, no earlier than d from now, at the
	// given priority. A zero or negative d behaves like Submit. Timing
	// is best effort beyond the never-early guarantee.
	SubmitAfter(d time.Duration, job Job, pri Priority)
}
