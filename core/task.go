package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// ErrCancelled is returned by Await when the task was cancelled before
// its result could be delivered.
var ErrCancelled = errors.New("nexec: task cancelled")

// PanicError wraps a panic raised inside a spawned computation so it
// can be delivered to the handle holder as an ordinary error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("nexec: task panicked: %v", e.Value)
}

// =============================================================================
// Context Helper
// =============================================================================

type suspenderKeyType struct{}

var suspenderKey suspenderKeyType

// suspenderFrom extracts the running task's suspender from a
// computation context. It returns nil outside a spawned computation,
// which makes every await primitive fall back to a plain blocking wait.
func suspenderFrom(ctx context.Context) *suspender {
	if v := ctx.Value(suspenderKey); v != nil {
		return v.(*suspender)
	}
	return nil
}

// =============================================================================
// Suspender: token handoff between backend steps and the computation
// =============================================================================

// suspender owns the handoff between backend steps and one computation
// goroutine. The computation runs only while it holds the execution
// token; a step (the resumption callback submitted to the backend)
// delivers the token and occupies its worker until the computation
// parks again or finishes. Parking registers exactly one waker, and the
// waker submits exactly one fresh step at the task's fixed priority.
type suspender struct {
	platform Platform
	pri      Priority
	main     bool

	ctx    context.Context
	cancel context.CancelFunc

	resume chan struct{} // step -> computation: token delivery
	yield  chan struct{} // computation -> step: parked, release the worker
	done   chan struct{} // closed once the outcome is recorded

	cancelled atomic.Bool
}

func newSuspender(p Platform, pri Priority, main bool) *suspender {
	if p == nil {
		panic("nexec: spawn on a nil platform")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &suspender{
		platform: p,
		pri:      pri,
		main:     main,
		ctx:      ctx,
		cancel:   cancel,
		resume:   make(chan struct{}),
		yield:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// step blocks its worker only while the computation is actually
// running. Once the task has finished, an in-flight step returns
// immediately.
func (s *suspender) step() {
	select {
	case s.resume <- struct{}{}:
	case <-s.done:
		return
	}
	select {
	case <-s.yield:
	case <-s.done:
	}
}

func (s *suspender) submitStep() {
	if s.main {
		s.platform.SubmitMain(s.step)
	} else {
		s.platform.Submit(s.step, s.pri)
	}
}

// wake schedules the next step. Wakers call it exactly once per
// suspension, so each park produces at most one new submission.
func (s *suspender) wake() {
	if s.cancelled.Load() {
		return
	}
	select {
	case <-s.done:
	default:
		s.submitStep()
	}
}

// awaitToken blocks the computation goroutine until a step delivers the
// execution token or the task is cancelled.
func (s *suspender) awaitToken() error {
	select {
	case <-s.resume:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// park releases the current step's worker and waits for the next
// token. The caller must already have registered a waker. Await
// primitives re-check their condition in a loop after park returns.
func (s *suspender) park() error {
	select {
	case s.yield <- struct{}{}:
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
	return s.awaitToken()
}

// =============================================================================
// Task state and handles
// =============================================================================

// state is the shared outcome cell behind a task handle.
type state[T any] struct {
	s *suspender

	mu        sync.Mutex
	finished  bool
	cancelled bool
	val       T
	err       error
	waiters   []func()

	consumed atomic.Bool
}

func (st *state[T]) isFinished() bool {
	st.mu.Lock()
	f := st.finished
	st.mu.Unlock()
	return f
}

// finish records the outcome exactly once. Cancellation that happened
// first discards the produced value. The done channel closes before any
// completion waiter runs, so woken awaiters always observe a finished
// task.
func (st *state[T]) finish(v T, err error) {
	st.mu.Lock()
	st.finished = true
	if st.cancelled {
		st.err = ErrCancelled
	} else {
		st.val, st.err = v, err
	}
	waiters := st.waiters
	st.waiters = nil
	st.mu.Unlock()

	close(st.s.done)
	for _, w := range waiters {
		w()
	}
}

// addWaiter registers a completion callback, invoking it at once if the
// task already finished.
func (st *state[T]) addWaiter(w func()) {
	st.mu.Lock()
	if st.finished {
		st.mu.Unlock()
		w()
		return
	}
	st.waiters = append(st.waiters, w)
	st.mu.Unlock()
}

func (st *state[T]) deliver() (T, error) {
	if !st.consumed.CompareAndSwap(false, true) {
		panic("nexec: task result already consumed")
	}
	st.mu.Lock()
	v, err := st.val, st.err
	st.mu.Unlock()
	return v, err
}

// start spawns the computation goroutine and submits the first step.
func start[T any](p Platform, pri Priority, main bool, fn func(context.Context) (T, error)) *state[T] {
	s := newSuspender(p, pri, main)
	st := &state[T]{s: s}
	compCtx := context.WithValue(s.ctx, suspenderKey, s)

	go func() {
		if err := s.awaitToken(); err != nil {
			var zero T
			st.finish(zero, err)
			return
		}
		var (
			v   T
			err error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = &PanicError{Value: r, Stack: debug.Stack()}
				}
			}()
			v, err = fn(compCtx)
		}()
		st.finish(v, err)
	}()

	s.submitStep()
	return st
}

// handle implements the shared surface of Task and LocalTask.
type handle[T any] struct {
	st *state[T]
}

// Await blocks until the computation finishes and delivers its result.
// The result is delivered exactly once: a second Await panics. Inside a
// spawned computation, Await parks the calling task instead of holding
// its worker. Cancelling ctx abandons the wait without consuming the
// result; awaiting a cancelled task returns ErrCancelled.
func (h handle[T]) Await(ctx context.Context) (T, error) {
	st := h.st
	if s := suspenderFrom(ctx); s != nil {
		if s == st.s {
			panic("nexec: task awaiting itself")
		}
		for !st.isFinished() {
			st.addWaiter(s.wake)
			if err := s.park(); err != nil {
				var zero T
				return zero, err
			}
		}
		return st.deliver()
	}
	select {
	case <-st.s.done:
		return st.deliver()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel stops the task: no further resumption is submitted and a
// produced result is discarded. An in-flight resumption cannot be
// recalled; the computation observes cancellation at its next
// suspension point. Cancel is idempotent and safe after completion.
func (h handle[T]) Cancel() {
	st := h.st
	st.mu.Lock()
	if st.finished || st.cancelled {
		st.mu.Unlock()
		return
	}
	st.cancelled = true
	st.mu.Unlock()

	st.s.cancelled.Store(true)
	st.s.cancel()
}

// Done is closed once the task has finished, whether by success,
// failure, or cancellation unwind.
func (h handle[T]) Done() <-chan struct{} {
	return h.st.s.done
}

// Task is the handle to a spawned computation. The computation runs on
// its own goroutine, gated by the backend: between suspension points it
// occupies the worker that resumed it, and while suspended it occupies
// nothing.
type Task[T any] struct {
	handle[T]
}

// LocalTask is the handle to a computation pinned to the main context.
// It behaves exactly like Task; the distinct type documents that the
// computation closes over values that must not leave main.
type LocalTask[T any] struct {
	handle[T]
}

// =============================================================================
// Spawning
// =============================================================================

// Spawn runs fn as a concurrent task at PriorityDefault.
func Spawn[T any](p Platform, fn func(context.Context) (T, error)) *Task[T] {
	return SpawnWithPriority(p, fn, PriorityDefault)
}

// SpawnWithPriority runs fn as a concurrent task. Every resumption of
// the task is submitted at pri.
func SpawnWithPriority[T any](p Platform, fn func(context.Context) (T, error), pri Priority) *Task[T] {
	return &Task[T]{handle[T]{start(p, pri, false, fn)}}
}

// SpawnMain runs fn with every resumption scheduled onto the main
// context. Between suspension points the computation holds the main
// loop, so it is mutually exclusive with all other main work.
func SpawnMain[T any](p Platform, fn func(context.Context) (T, error)) *Task[T] {
	return &Task[T]{handle[T]{start(p, PriorityDefault, true, fn)}}
}

// SpawnLocal is SpawnMain for computations over values that must stay
// on the main context.
func SpawnLocal[T any](p Platform, fn func(context.Context) (T, error)) *LocalTask[T] {
	return &LocalTask[T]{handle[T]{start(p, PriorityDefault, true, fn)}}
}
