package core

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/priorityqueue"
)

// QueueEntry is one admitted job together with its scheduling metadata.
type QueueEntry struct {
	Job        Job
	Pri        Priority
	EnqueuedAt time.Time

	seq uint64
}

// byUrgency orders entries: higher priority first, then lower admission
// sequence, so equal priorities drain strictly FIFO.
func byUrgency(a, b interface{}) int {
	ea := a.(*QueueEntry)
	eb := b.(*QueueEntry)
	if ea.Pri != eb.Pri {
		return int(eb.Pri) - int(ea.Pri)
	}
	switch {
	case ea.seq < eb.seq:
		return -1
	case ea.seq > eb.seq:
		return 1
	default:
		return 0
	}
}

// RunQueue is the pool's ready queue: priority-ordered, FIFO within a
// level. Safe for concurrent use.
type RunQueue struct {
	mu  sync.Mutex
	pq  *priorityqueue.Queue
	seq uint64
}

func NewRunQueue() *RunQueue {
	return &RunQueue{pq: priorityqueue.NewWith(byUrgency)}
}

// Push admits a job at the given priority.
func (q *RunQueue) Push(job Job, pri Priority) {
	q.mu.Lock()
	q.seq++
	q.pq.Enqueue(&QueueEntry{Job: job, Pri: pri, EnqueuedAt: time.Now(), seq: q.seq})
	q.mu.Unlock()
}

// Pop removes the most urgent entry.
func (q *RunQueue) Pop() (QueueEntry, bool) {
	q.mu.Lock()
	v, ok := q.pq.Dequeue()
	q.mu.Unlock()
	if !ok {
		return QueueEntry{}, false
	}
	return *(v.(*QueueEntry)), true
}

func (q *RunQueue) Len() int {
	q.mu.Lock()
	n := q.pq.Size()
	q.mu.Unlock()
	return n
}

// fifoQueue is an unbounded FIFO used by the main loop. Callers hold
// their own lock. Popping advances a head index; compaction keeps the
// backing array from growing without bound.
type fifoQueue struct {
	items []Job
	head  int
}

const fifoCompactThreshold = 64

func (q *fifoQueue) push(j Job) {
	q.items = append(q.items, j)
}

func (q *fifoQueue) pop() (Job, bool) {
	if q.head >= len(q.items) {
		return nil, false
	}
	j := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head >= fifoCompactThreshold && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		for i := n; i < len(q.items); i++ {
			q.items[i] = nil
		}
		q.items = q.items[:n]
		q.head = 0
	}
	return j, true
}

func (q *fifoQueue) len() int {
	return len(q.items) - q.head
}

// drain empties the queue, returning everything still pending in order.
func (q *fifoQueue) drain() []Job {
	pending := append([]Job(nil), q.items[q.head:]...)
	q.items = nil
	q.head = 0
	return pending
}
