package nexec

import "github.com/water-rs/native-executor/core"

// Re-exports from the core package. Most applications import only the
// nexec package; core stays importable for custom backends.

// Job is the unit of submission: a plain closure.
type Job = core.Job

// Platform is the scheduler capability backends implement.
type Platform = core.Platform

// Priority orders ready work; a task keeps one for its whole life.
type Priority = core.Priority

// Task is the handle to a spawned computation.
type Task[T any] = core.Task[T]

// LocalTask is the handle to a computation pinned to the main context.
type LocalTask[T any] = core.LocalTask[T]

// Timer is a one-shot delay driven by the backend.
type Timer = core.Timer

// Mailbox serializes updates to an owned value in submission order.
type Mailbox[T any] = core.Mailbox[T]

// LocalValue confines a value to the goroutine that created it.
type LocalValue[T any] = core.LocalValue[T]

// OnceValue is a goroutine-confined container taken at most once.
type OnceValue[T any] = core.OnceValue[T]

// MainValue owns a value on behalf of the main context.
type MainValue[T any] = core.MainValue[T]

// Metrics receives execution measurements from a pool.
type Metrics = core.Metrics

// PanicHandler receives panics recovered from submitted jobs.
type PanicHandler = core.PanicHandler

// LogPanicHandler is the default PanicHandler, reporting via zerolog.
type LogPanicHandler = core.LogPanicHandler

// Stats is a point-in-time snapshot of a backend.
type Stats = core.Stats

// HistoryRecord describes one executed job.
type HistoryRecord = core.HistoryRecord

// PanicError wraps a panic raised inside a spawned computation.
type PanicError = core.PanicError

// Priority constants, ascending urgency.
const (
	PriorityBackground      Priority = core.PriorityBackground
	PriorityUtility         Priority = core.PriorityUtility
	PriorityDefault         Priority = core.PriorityDefault
	PriorityUserInitiated   Priority = core.PriorityUserInitiated
	PriorityUserInteractive Priority = core.PriorityUserInteractive
)

// Sentinel errors.
var (
	ErrCancelled     = core.ErrCancelled
	ErrMailboxClosed = core.ErrMailboxClosed
)

// ParsePriority is the inverse of Priority.String, for priorities
// arriving as configuration.
func ParsePriority(s string) (Priority, error) {
	return core.ParsePriority(s)
}

// NewLocalValue wraps v, bound to the calling goroutine.
func NewLocalValue[T any](v T) *LocalValue[T] {
	return core.NewLocalValue(v)
}

// NewOnceValue wraps v, bound to the calling goroutine and occupied
// until taken.
func NewOnceValue[T any](v T) *OnceValue[T] {
	return core.NewOnceValue(v)
}
