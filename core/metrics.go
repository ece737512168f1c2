package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Metrics receives execution signals from a backend. Implementations
// must be safe for concurrent use; every hook may be called from any
// worker. NilMetrics is the zero-cost default.
type Metrics interface {
	// RecordJobDuration is called after each job with its priority and
	// run time.
	RecordJobDuration(pri Priority, d time.Duration)

	// RecordJobPanic is called with the recovered value when a
	// submitted job panics.
	RecordJobPanic(v any)

	// RecordQueueDepth is called with the ready-queue depth after each
	// admission.
	RecordQueueDepth(depth int)

	// RecordDegraded is called when a job had to be delivered outside
	// the normal path (for example after the backend stopped).
	RecordDegraded(reason string)
}

// NilMetrics discards every signal.
type NilMetrics struct{}

func (NilMetrics) RecordJobDuration(Priority, time.Duration) {}
func (NilMetrics) RecordJobPanic(any)                        {}
func (NilMetrics) RecordQueueDepth(int)                      {}
func (NilMetrics) RecordDegraded(string)                     {}

// PanicHandler decides what happens after a submitted job panics. The
// worker has already recovered when it runs; handlers must not
// re-panic.
type PanicHandler interface {
	HandlePanic(v any, stack []byte)
}

// LogPanicHandler reports panics through zerolog with the full stack.
type LogPanicHandler struct {
	Log zerolog.Logger
}

func (h LogPanicHandler) HandlePanic(v any, stack []byte) {
	h.Log.Error().
		Interface("panic", v).
		Bytes("stack", stack).
		Msg("job panicked")
}

// Stats is a point-in-time snapshot of a backend.
type Stats struct {
	Name       string
	Workers    int
	Queued     int // ready queue
	Active     int // executing on a worker
	Delayed    int // waiting in the delay schedule
	MainQueued int // waiting for the main loop
	Running    bool
}

// HistoryRecord describes one executed job.
type HistoryRecord struct {
	Priority Priority
	Queued   time.Time
	Started  time.Time
	Duration time.Duration
	Panicked bool
}

// History is a fixed-size ring of recent HistoryRecords, newest
// overwriting oldest. Safe for concurrent use.
type History struct {
	mu    sync.Mutex
	items []HistoryRecord
	head  int
	count int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 64
	}
	return &History{items: make([]HistoryRecord, capacity)}
}

func (h *History) Add(r HistoryRecord) {
	h.mu.Lock()
	h.items[h.head] = r
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
	h.mu.Unlock()
}

// Recent returns up to n records, newest first.
func (h *History) Recent(n int) []HistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 || h.count == 0 {
		return nil
	}
	if n > h.count {
		n = h.count
	}
	out := make([]HistoryRecord, 0, n)
	idx := h.head - 1
	for len(out) < n {
		if idx < 0 {
			idx += len(h.items)
		}
		out = append(out, h.items[idx])
		idx--
	}
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
