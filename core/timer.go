package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a one-shot delay driven entirely by the backend's
// SubmitAfter. The delay is armed on the first Wait; after firing, Wait
// returns immediately forever. A Timer supports one waiter at a time.
type Timer struct {
	p Platform

	mu    sync.Mutex
	d     time.Duration
	armed bool

	fired  atomic.Bool
	signal chan struct{}
}

// After returns a Timer completing no earlier than d after its first
// Wait.
func After(p Platform, d time.Duration) *Timer {
	if p == nil {
		panic("nexec: timer on a nil platform")
	}
	return &Timer{p: p, d: d, signal: make(chan struct{})}
}

// AfterSecs is After with a whole-second delay.
func AfterSecs(p Platform, secs uint64) *Timer {
	return After(p, time.Duration(secs)*time.Second)
}

// arm consumes the stored duration and registers the delayed completion
// callback, once. The callback publishes completion before waking the
// waiter, so a woken waiter always observes the fired flag.
func (t *Timer) arm(wake func()) {
	t.mu.Lock()
	if t.armed {
		t.mu.Unlock()
		return
	}
	t.armed = true
	d := t.d
	t.mu.Unlock()

	t.p.SubmitAfter(d, func() {
		t.fired.Store(true)
		close(t.signal)
		if wake != nil {
			wake()
		}
	}, PriorityDefault)
}

// Fired reports whether the timer has completed.
func (t *Timer) Fired() bool {
	return t.fired.Load()
}

// Wait blocks until the timer fires. Inside a spawned computation the
// wait parks the task, releasing the worker. Wait on a fired timer
// returns nil immediately, no matter how often it is repeated.
func (t *Timer) Wait(ctx context.Context) error {
	if s := suspenderFrom(ctx); s != nil {
		for !t.fired.Load() {
			t.arm(s.wake)
			if err := s.park(); err != nil {
				return err
			}
		}
		return nil
	}
	t.arm(nil)
	select {
	case <-t.signal:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sleep pauses the calling computation for secs whole seconds. Outside
// a spawned computation it blocks the calling goroutine instead, still
// driven by the backend's delay machinery.
func Sleep(ctx context.Context, p Platform, secs uint64) error {
	return AfterSecs(p, secs).Wait(ctx)
}
