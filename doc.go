// Package nexec provides a platform-backed structured concurrency
// runtime for Go.
//
// Computations are spawned as tasks against a Platform, a scheduler
// capability with three operations: submit to the main context, submit
// at a priority, and submit after a delay. Tasks suspend instead of
// blocking their worker: awaiting another task, a timer, or a mailbox
// reply parks the computation, and a registered waker resubmits it to
// the platform when the awaited event arrives. Each task carries one
// priority for its whole life; every resumption is submitted at it.
//
// # Quick Start
//
// The default platform materializes on first use, a started pool with
// one worker per CPU:
//
//	task := nexec.Spawn(func(ctx context.Context) (int, error) {
//		nexec.Sleep(ctx, 1)
//		return 42, nil
//	})
//	v, err := task.Await(context.Background())
//
// # Key Concepts
//
// Platform: the scheduler capability. The built-in Pool implements it
// with worker goroutines over a priority queue, a delay schedule, and
// one dedicated main loop. Anything satisfying the interface can serve
// instead, installed process-wide with Use before first access.
//
// Task and LocalTask: handles to spawned computations. Await delivers
// the result exactly once; Cancel is idempotent and stops the
// computation at its next suspension point. A LocalTask's computation
// is pinned to the main context.
//
// Main context: a single goroutine, locked to its OS thread, running
// main-pinned work one job at a time. Mailboxes drain there, and
// MainValue serializes access to values it owns through it.
//
// Mailbox: an owned value updated by submitted closures, strictly in
// submission order across all producers. Handle is fire-and-forget;
// Call waits for a reply.
//
// Delivery: a platform never drops an accepted job. The built-in pool
// keeps the promise even after Stop by running late submissions on
// fresh goroutines.
//
// # Example
//
//	import (
//		"context"
//
//		nexec "github.com/water-rs/native-executor"
//	)
//
//	func main() {
//		counter := nexec.NewMailbox(0)
//		defer counter.Close()
//
//		done := nexec.Spawn(func(ctx context.Context) (int, error) {
//			for i := 0; i < 10; i++ {
//				counter.Handle(func(n *int) { *n++ })
//			}
//			return nexec.Call(ctx, counter, func(n *int) int { return *n })
//		})
//
//		total, _ := done.Await(context.Background())
//		println(total)
//	}
package nexec
