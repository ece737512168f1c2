package core

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// MainLoop is the single main context: one goroutine, locked to its OS
// thread, draining an unbounded FIFO. Jobs posted from one goroutine
// run in order, and no two main jobs ever run concurrently. The
// built-in pool routes all SubmitMain traffic here.
type MainLoop struct {
	logMu sync.RWMutex
	log   zerolog.Logger

	mu      sync.Mutex
	queue   fifoQueue
	stopped bool

	wake chan struct{}

	started atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMainLoop(log zerolog.Logger) *MainLoop {
	return &MainLoop{
		log:    log,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the loop on a dedicated goroutine. Calling Start again, or
// after Run, is a no-op.
func (l *MainLoop) Start() {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	go l.run()
}

// Run donates the calling goroutine as the main context and blocks
// until Stop. Applications that must keep main-context work on their
// real main thread call Run from main instead of Start.
func (l *MainLoop) Run() {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	l.run()
}

func (l *MainLoop) run() {
	// Callers that interoperate with thread-affine native code rely on
	// the loop keeping one OS thread for its whole life.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.doneCh)

	lg := l.logger()
	lg.Debug().Msg("main loop running")
	for {
		job, ok := l.pop()
		if ok {
			l.runJob(job)
			continue
		}
		select {
		case <-l.wake:
		case <-l.stopCh:
			return
		}
	}
}

// runJob keeps the loop alive across panicking jobs: a dead main
// context would strand every main-pinned task in the process.
func (l *MainLoop) runJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			lg := l.logger()
			lg.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("main job panicked")
		}
	}()
	job()
}

func (l *MainLoop) pop() (Job, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return nil, false
	}
	return l.queue.pop()
}

// Post enqueues job for the loop. After Stop, delivery degrades to a
// fresh goroutine so the job still runs exactly once.
func (l *MainLoop) Post(job Job) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		go job()
		return
	}
	l.queue.push(job)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Len reports the number of queued main jobs.
func (l *MainLoop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.len()
}

// WaitIdle blocks until every job posted before it has run.
func (l *MainLoop) WaitIdle(ctx context.Context) error {
	idle := make(chan struct{})
	l.Post(func() { close(idle) })
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop halts the loop. Jobs still queued are delivered degraded, each
// on its own goroutine. Stop is idempotent and returns after the loop
// goroutine has exited.
func (l *MainLoop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		if l.started.Load() {
			<-l.doneCh
		}
		return
	}
	l.stopped = true
	pending := l.queue.drain()
	l.mu.Unlock()

	close(l.stopCh)
	if l.started.Load() {
		<-l.doneCh
	}

	for _, job := range pending {
		go job()
	}
	lg := l.logger()
	lg.Debug().Int("flushed", len(pending)).Msg("main loop stopped")
}

// SetLogLevel adjusts the loop's logger at runtime.
func (l *MainLoop) SetLogLevel(lvl zerolog.Level) {
	l.logMu.Lock()
	l.log = l.log.Level(lvl)
	l.logMu.Unlock()
}

func (l *MainLoop) logger() zerolog.Logger {
	l.logMu.RLock()
	defer l.logMu.RUnlock()
	return l.log
}
