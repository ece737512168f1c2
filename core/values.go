package core

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
)

// goid returns the current goroutine's ID, parsed from the stack
// header. Goroutines are the unit of execution identity here: a value
// confined to its creator is confined to a goroutine, and the main
// context is one dedicated goroutine.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Header line: "goroutine <id> [<state>]:".
	s := buf[len("goroutine "):n]
	i := 0
	for i < len(s) && s[i] != ' ' {
		i++
	}
	id, err := strconv.ParseUint(string(s[:i]), 10, 64)
	if err != nil {
		panic("nexec: unparsable goroutine header: " + string(buf[:n]))
	}
	return id
}

// =============================================================================
// LocalValue: goroutine-confined value
// =============================================================================

// LocalValue confines a value to the goroutine that created it. Every
// access re-checks the caller's identity; touching the value from any
// other goroutine is a contract breach and panics. A task computation
// keeps the same goroutine across all its suspensions, so a LocalValue
// created inside one stays usable for the task's whole life.
type LocalValue[T any] struct {
	owner uint64
	spent bool
	v     T
}

// NewLocalValue wraps v, bound to the calling goroutine.
func NewLocalValue[T any](v T) *LocalValue[T] {
	return &LocalValue[T]{owner: goid(), v: v}
}

func (l *LocalValue[T]) check(op string) {
	if g := goid(); g != l.owner {
		panic(fmt.Sprintf("nexec: %s of a local value on goroutine %d, owner is goroutine %d", op, g, l.owner))
	}
	if l.spent {
		panic("nexec: use of a local value after IntoInner")
	}
}

// OnOwner reports whether the calling goroutine created this value.
func (l *LocalValue[T]) OnOwner() bool {
	return goid() == l.owner
}

// Get returns the value. It panics off the owner goroutine.
func (l *LocalValue[T]) Get() T {
	l.check("read")
	return l.v
}

// Set replaces the value. It panics off the owner goroutine.
func (l *LocalValue[T]) Set(v T) {
	l.check("write")
	l.v = v
}

// Update gives f scoped exclusive access to the value.
func (l *LocalValue[T]) Update(f func(*T)) {
	l.check("update")
	f(&l.v)
}

// IntoInner moves the value out; the wrapper is unusable afterwards.
func (l *LocalValue[T]) IntoInner() T {
	l.check("consume")
	l.spent = true
	v := l.v
	var zero T
	l.v = zero
	return v
}

// =============================================================================
// OnceValue: goroutine-confined, occupied until taken
// =============================================================================

// OnceValue is a goroutine-confined container occupied until taken
// exactly once. Reading while occupied is free; Take empties it, and
// any later use, another Take included, is a contract breach.
type OnceValue[T any] struct {
	lv    LocalValue[T]
	taken bool
}

// NewOnceValue wraps v, bound to the calling goroutine.
func NewOnceValue[T any](v T) *OnceValue[T] {
	return &OnceValue[T]{lv: LocalValue[T]{owner: goid(), v: v}}
}

func (o *OnceValue[T]) occupied(op string) {
	o.lv.check(op)
	if o.taken {
		panic("nexec: once value already taken")
	}
}

// OnOwner reports whether the calling goroutine created this value.
func (o *OnceValue[T]) OnOwner() bool {
	return o.lv.OnOwner()
}

// Get returns the value while it is still occupied.
func (o *OnceValue[T]) Get() T {
	o.occupied("read")
	return o.lv.v
}

// Update gives f scoped exclusive access while the value is occupied.
func (o *OnceValue[T]) Update(f func(*T)) {
	o.occupied("update")
	f(&o.lv.v)
}

// Take empties the container and returns the value. A second Take
// panics.
func (o *OnceValue[T]) Take() T {
	o.occupied("take")
	o.taken = true
	v := o.lv.v
	var zero T
	o.lv.v = zero
	return v
}

// =============================================================================
// MainValue: value owned by the main context
// =============================================================================

// MainValue owns a value on behalf of the main context. The holder may
// be shared across goroutines; every access runs as a job on the main
// loop, which serializes it with all other main work. No affinity check
// is needed; the value is only ever touched from main jobs.
type MainValue[T any] struct {
	p Platform
	v T
}

// NewMainValue hands v over to p's main context.
func NewMainValue[T any](p Platform, v T) *MainValue[T] {
	if p == nil {
		panic("nexec: main value on a nil platform")
	}
	return &MainValue[T]{p: p, v: v}
}

// Do applies f to the value on the main context, fire-and-forget.
func (mv *MainValue[T]) Do(f func(*T)) {
	mv.p.SubmitMain(func() {
		f(&mv.v)
	})
}

// CallMain applies f to the value on the main context and waits for the
// result, parking when called from a spawned computation. A panic
// inside f comes back as a *PanicError.
func CallMain[T, R any](ctx context.Context, mv *MainValue[T], f func(*T) R) (R, error) {
	reply := make(chan callReply[R], 1)
	var wake func()
	s := suspenderFrom(ctx)
	if s != nil {
		wake = s.wake
	}
	// Main submission never drops, so the job's abandon path is unused.
	job := callJob(f, reply, wake)
	mv.p.SubmitMain(func() {
		job.apply(&mv.v)
	})
	return awaitReply(ctx, s, reply)
}
