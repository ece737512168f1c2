package core

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
)

// ErrMailboxClosed reports a call attempted on a closed mailbox. Call
// panics with this value: the mailbox can never produce the reply.
var ErrMailboxClosed = errors.New("nexec: mailbox closed")

// Mailbox owns a value of type T and applies submitted jobs to it one
// at a time, in global submission order, on a drain task spawned at
// construction. The mailbox itself is the sending half; it can be
// shared freely across goroutines.
type Mailbox[T any] struct {
	st *mailboxState[T]
}

// mailJob pairs the queued operation with an abandon hook, run instead
// of apply when the drain task dies before reaching the job. Only call
// jobs carry one; fire-and-forget updates drop silently.
type mailJob[T any] struct {
	apply   func(*T)
	abandon func()
}

type mailboxState[T any] struct {
	mu     sync.Mutex
	jobs   []mailJob[T]
	closed bool
	wake   func()
}

// push appends a job and wakes a sleeping drain task. It reports false
// when the mailbox is closed.
func (st *mailboxState[T]) push(job mailJob[T]) bool {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return false
	}
	st.jobs = append(st.jobs, job)
	wake := st.wake
	st.wake = nil
	st.mu.Unlock()

	if wake != nil {
		wake()
	}
	return true
}

// next pops the oldest job. With nothing pending it registers wake for
// the next push and reports whether the mailbox is still open.
func (st *mailboxState[T]) next(wake func()) (func(*T), bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.jobs) > 0 {
		job := st.jobs[0].apply
		st.jobs[0] = mailJob[T]{}
		st.jobs = st.jobs[1:]
		return job, true
	}
	if st.closed {
		return nil, false
	}
	st.wake = wake
	return nil, true
}

// takePending empties the queue. Callers must have closed the mailbox
// first so no later push can slip a job in behind the drain.
func (st *mailboxState[T]) takePending() []mailJob[T] {
	st.mu.Lock()
	defer st.mu.Unlock()
	jobs := st.jobs
	st.jobs = nil
	return jobs
}

func (st *mailboxState[T]) close() func() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return nil
	}
	st.closed = true
	wake := st.wake
	st.wake = nil
	return wake
}

// NewMailbox creates a mailbox owning value and spawns its drain task
// on p's main context. The drain task applies jobs strictly FIFO across
// all producers and exits once the mailbox is closed and drained.
func NewMailbox[T any](p Platform, value T) *Mailbox[T] {
	m := &Mailbox[T]{st: &mailboxState[T]{}}
	st := m.st
	SpawnLocal(p, func(ctx context.Context) (struct{}, error) {
		// A panicking update ends the drain task. Close first so no new
		// job can be queued, then fail every job the drain never reached:
		// pending calls must hear the mailbox died, not wait forever.
		defer func() {
			m.Close()
			for _, job := range st.takePending() {
				if job.abandon != nil {
					job.abandon()
				}
			}
		}()
		s := suspenderFrom(ctx)
		for {
			job, open := st.next(s.wake)
			if job != nil {
				job(&value)
				continue
			}
			if !open {
				return struct{}{}, nil
			}
			if err := s.park(); err != nil {
				return struct{}{}, err
			}
		}
	})
	return m
}

// Handle submits a fire-and-forget update. Updates sent after Close are
// dropped silently. Handle never blocks: the queue is unbounded.
func (m *Mailbox[T]) Handle(update func(*T)) {
	m.st.push(mailJob[T]{apply: update})
}

// Close stops the mailbox. Jobs already queued still run, then the
// drain task exits. Close is idempotent.
func (m *Mailbox[T]) Close() {
	if wake := m.st.close(); wake != nil {
		wake()
	}
}

// callReply carries one reply through the single-slot channel.
type callReply[R any] struct {
	v   R
	err error
}

// callJob wraps f so a panic inside it travels back to the caller
// instead of killing the job's executor. The abandon hook reports a
// drain task that died before applying f.
func callJob[T, R any](f func(*T) R, reply chan<- callReply[R], wake func()) mailJob[T] {
	deliver := func(r callReply[R]) {
		reply <- r
		if wake != nil {
			wake()
		}
	}
	return mailJob[T]{
		apply: func(v *T) {
			var r callReply[R]
			func() {
				defer func() {
					if p := recover(); p != nil {
						r.err = &PanicError{Value: p, Stack: debug.Stack()}
					}
				}()
				r.v = f(v)
			}()
			deliver(r)
		},
		abandon: func() {
			deliver(callReply[R]{err: ErrMailboxClosed})
		},
	}
}

// awaitReply waits for the single reply, parking when the caller is a
// spawned computation.
func awaitReply[R any](ctx context.Context, s *suspender, reply <-chan callReply[R]) (R, error) {
	if s != nil {
		for {
			select {
			case r := <-reply:
				return r.v, r.err
			default:
			}
			if err := s.park(); err != nil {
				var zero R
				return zero, err
			}
		}
	}
	select {
	case r := <-reply:
		return r.v, r.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Call submits f and waits for its reply. Inside a spawned computation
// the wait parks the task. Call panics with ErrMailboxClosed when the
// reply can never arrive, whether the mailbox was already closed at
// submission or its drain task died with the job still queued. A panic
// inside f comes back as a *PanicError.
func Call[T, R any](ctx context.Context, m *Mailbox[T], f func(*T) R) (R, error) {
	reply := make(chan callReply[R], 1)
	var wake func()
	s := suspenderFrom(ctx)
	if s != nil {
		wake = s.wake
	}
	if !m.st.push(callJob(f, reply, wake)) {
		panic(ErrMailboxClosed)
	}
	v, err := awaitReply(ctx, s, reply)
	if err == ErrMailboxClosed {
		panic(ErrMailboxClosed)
	}
	return v, err
}
