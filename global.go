package nexec

import (
	"context"
	"sync"
	"time"

	"github.com/water-rs/native-executor/core"
)

var (
	defaultMu       sync.Mutex
	defaultPlatform core.Platform
)

// Default returns the process-wide platform, constructing and starting
// the built-in pool on first access. The default lives for the rest of
// the process; it is never torn down, so handles taken from it stay
// valid everywhere.
func Default() core.Platform {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultPlatform == nil {
		p := NewPool("nexec", 0)
		p.Start()
		defaultPlatform = p
	}
	return defaultPlatform
}

// Use installs p as the process-wide platform. It must run before
// anything touches Default: once the default has materialized it stays
// reference-stable, and a late Use panics.
func Use(p core.Platform) {
	if p == nil {
		panic("nexec: Use with a nil platform")
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultPlatform != nil {
		panic("nexec: default platform already initialized")
	}
	defaultPlatform = p
}

// =============================================================================
// Facade over the default platform
// =============================================================================

// Spawn runs fn as a concurrent task on the default platform at
// PriorityDefault.
func Spawn[T any](fn func(context.Context) (T, error)) *Task[T] {
	return core.Spawn(Default(), fn)
}

// SpawnWithPriority runs fn as a concurrent task on the default
// platform; every resumption is submitted at pri.
func SpawnWithPriority[T any](fn func(context.Context) (T, error), pri Priority) *Task[T] {
	return core.SpawnWithPriority(Default(), fn, pri)
}

// SpawnMain runs fn with every resumption scheduled onto the default
// platform's main context.
func SpawnMain[T any](fn func(context.Context) (T, error)) *Task[T] {
	return core.SpawnMain(Default(), fn)
}

// SpawnLocal is SpawnMain for computations over values that must stay
// on the main context.
func SpawnLocal[T any](fn func(context.Context) (T, error)) *LocalTask[T] {
	return core.SpawnLocal(Default(), fn)
}

// After returns a Timer on the default platform completing no earlier
// than d after its first Wait.
func After(d time.Duration) *Timer {
	return core.After(Default(), d)
}

// AfterSecs is After with a whole-second delay.
func AfterSecs(secs uint64) *Timer {
	return core.AfterSecs(Default(), secs)
}

// Sleep pauses the calling computation for secs whole seconds.
func Sleep(ctx context.Context, secs uint64) error {
	return core.Sleep(ctx, Default(), secs)
}

// NewMailbox creates a mailbox on the default platform's main context.
func NewMailbox[T any](value T) *Mailbox[T] {
	return core.NewMailbox(Default(), value)
}

// Call submits f to m and waits for its reply.
func Call[T, R any](ctx context.Context, m *Mailbox[T], f func(*T) R) (R, error) {
	return core.Call(ctx, m, f)
}

// NewMainValue hands v over to the default platform's main context.
func NewMainValue[T any](v T) *MainValue[T] {
	return core.NewMainValue(Default(), v)
}

// CallMain applies f to mv's value on the main context and waits for
// the result.
func CallMain[T, R any](ctx context.Context, mv *MainValue[T], f func(*T) R) (R, error) {
	return core.CallMain(ctx, mv, f)
}
