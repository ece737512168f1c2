package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// delayKey orders the schedule by due time, disambiguated by admission
// sequence so identical times keep submission order.
type delayKey struct {
	at  time.Time
	seq uint64
}

func byDueTime(a, b interface{}) int {
	ka := a.(delayKey)
	kb := b.(delayKey)
	if ka.at.Before(kb.at) {
		return -1
	}
	if ka.at.After(kb.at) {
		return 1
	}
	switch {
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

type delayEntry struct {
	job Job
	pri Priority
}

// idleWait bounds the sleep when nothing is scheduled; the wakeup
// channel cuts it short as soon as an entry arrives.
const idleWait = time.Hour

// DelaySchedule delivers jobs to a sink once their due time passes. A
// single goroutine sleeps until the earliest entry; adding an earlier
// entry re-arms the timer through the wakeup channel. Delivery is never
// early; beyond that, timing is best effort.
type DelaySchedule struct {
	sink func(Job, Priority)

	mu   sync.Mutex
	tree *redblacktree.Tree
	seq  uint64

	wakeup   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	stopped  atomic.Bool
	done     chan struct{}
}

// NewDelaySchedule creates a schedule delivering due jobs to sink.
// Start must be called before entries fire.
func NewDelaySchedule(sink func(Job, Priority)) *DelaySchedule {
	return &DelaySchedule{
		sink:   sink,
		tree:   redblacktree.NewWith(byDueTime),
		wakeup: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (d *DelaySchedule) Start() {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	go d.loop()
}

// Add schedules job to reach the sink no earlier than delay from now.
// Zero and negative delays deliver immediately, as do entries added
// after Stop; the schedule degrades rather than drops.
func (d *DelaySchedule) Add(job Job, delay time.Duration, pri Priority) {
	if delay <= 0 {
		d.sink(job, pri)
		return
	}
	at := time.Now().Add(delay)

	d.mu.Lock()
	// Checked under the lock: once Stop's flush has run, nothing may
	// slip into the tree behind it.
	if d.stopped.Load() {
		d.mu.Unlock()
		d.sink(job, pri)
		return
	}
	d.seq++
	earliest := true
	if node := d.tree.Left(); node != nil {
		earliest = at.Before(node.Key.(delayKey).at)
	}
	d.tree.Put(delayKey{at: at, seq: d.seq}, delayEntry{job: job, pri: pri})
	d.mu.Unlock()

	if earliest {
		select {
		case d.wakeup <- struct{}{}:
		default:
		}
	}
}

func (d *DelaySchedule) Len() int {
	d.mu.Lock()
	n := d.tree.Size()
	d.mu.Unlock()
	return n
}

// Stop halts the loop and flushes everything still scheduled to the
// sink; pending entries run early rather than never.
func (d *DelaySchedule) Stop() {
	d.stopped.Store(true)
	d.stopOnce.Do(func() { close(d.stop) })
	if d.started.Load() {
		<-d.done
	}

	d.mu.Lock()
	var remaining []delayEntry
	it := d.tree.Iterator()
	for it.Next() {
		remaining = append(remaining, it.Value().(delayEntry))
	}
	d.tree.Clear()
	d.mu.Unlock()

	for _, e := range remaining {
		d.sink(e.job, e.pri)
	}
}

func (d *DelaySchedule) loop() {
	defer close(d.done)

	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		d.deliverDue()

		wait := idleWait
		d.mu.Lock()
		if node := d.tree.Left(); node != nil {
			wait = time.Until(node.Key.(delayKey).at)
		}
		d.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-timer.C:
		case <-d.wakeup:
		case <-d.stop:
			return
		}
	}
}

// deliverDue pops entries whose time has passed, invoking the sink
// outside the lock.
func (d *DelaySchedule) deliverDue() {
	now := time.Now()
	for {
		d.mu.Lock()
		node := d.tree.Left()
		if node == nil {
			d.mu.Unlock()
			return
		}
		key := node.Key.(delayKey)
		if key.at.After(now) {
			d.mu.Unlock()
			return
		}
		entry := node.Value.(delayEntry)
		d.tree.Remove(key)
		d.mu.Unlock()

		d.sink(entry.job, entry.pri)
	}
}
