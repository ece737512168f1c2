package nexec

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/water-rs/native-executor/core"
)

// Pool is the built-in Platform: worker goroutines draining a priority
// run queue, one dedicated main loop, and a delay schedule feeding back
// into the queue. A stopped pool keeps honoring the delivery contract
// by running submissions degraded, each on a fresh goroutine.
type Pool struct {
	name    string
	workers int

	queue  *core.RunQueue
	signal chan struct{}
	delay  *core.DelaySchedule
	main   *core.MainLoop

	logMu sync.RWMutex
	log   zerolog.Logger

	metrics core.Metrics
	panicH  core.PanicHandler
	history *core.History

	queued atomic.Int64
	active atomic.Int64

	mu      sync.Mutex
	started bool
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

var _ core.Platform = (*Pool)(nil)

// NewPool creates a stopped pool. workers <= 0 means one per CPU.
func NewPool(name string, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		name:    name,
		workers: workers,
		queue:   core.NewRunQueue(),
		signal:  make(chan struct{}, workers*2),
		log:     zerolog.Nop(),
		metrics: core.NilMetrics{},
		history: core.NewHistory(128),
		stopCh:  make(chan struct{}),
	}
	p.main = core.NewMainLoop(p.logger())
	p.delay = core.NewDelaySchedule(p.enqueue)
	return p
}

// SetLogger replaces the pool's logger. Call it before Start; the main
// loop copies the logger when the pool is constructed.
func (p *Pool) SetLogger(log zerolog.Logger) {
	p.logMu.Lock()
	p.log = log
	p.logMu.Unlock()
	p.main.SetLogLevel(log.GetLevel())
}

// SetLogLevel adjusts the log level at runtime.
func (p *Pool) SetLogLevel(lvl zerolog.Level) {
	p.logMu.Lock()
	p.log = p.log.Level(lvl)
	p.logMu.Unlock()
	p.main.SetLogLevel(lvl)
}

// SetMetrics installs a metrics sink. Call it before Start.
func (p *Pool) SetMetrics(m core.Metrics) {
	if m == nil {
		m = core.NilMetrics{}
	}
	p.metrics = m
}

// SetPanicHandler installs a panic handler. Call it before Start; the
// default reports through the pool's logger.
func (p *Pool) SetPanicHandler(h core.PanicHandler) {
	p.panicH = h
}

// Start launches the main loop, the delay schedule, and the workers.
// A pool starts once; Start on a started or stopped pool is a no-op.
func (p *Pool) Start() {
	p.start(false)
}

// Run is Start with the calling goroutine donated as the main context.
// It blocks until Stop. Applications that must keep main-pinned work on
// their real main thread call Run from main.
func (p *Pool) Run() {
	p.start(true)
}

func (p *Pool) start(donateMain bool) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.running = true
	p.mu.Unlock()

	p.delay.Start()
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	lg := p.logger()
	lg.Info().
		Str("pool", p.name).
		Int("workers", p.workers).
		Msg("pool started")
	if donateMain {
		p.main.Run()
		return
	}
	p.main.Start()
}

// Stop halts the workers. Everything already accepted still runs:
// scheduled delays flush early and queued jobs deliver degraded.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.delay.Stop()
	close(p.stopCh)
	p.wg.Wait()

	flushed := 0
	for {
		entry, ok := p.queue.Pop()
		if !ok {
			break
		}
		p.queued.Add(-1)
		p.degrade("stopped", entry.Job)
		flushed++
	}
	p.main.Stop()
	lg := p.logger()
	lg.Info().
		Str("pool", p.name).
		Int("flushed", flushed).
		Msg("pool stopped")
}

// StopGraceful waits for the queues to drain before stopping. When ctx
// ends first, the pool stops anyway and the context error is returned.
func (p *Pool) StopGraceful(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if p.idle() {
			p.Stop()
			return nil
		}
		select {
		case <-ctx.Done():
			p.Stop()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pool) idle() bool {
	return p.queued.Load() == 0 &&
		p.active.Load() == 0 &&
		p.delay.Len() == 0 &&
		p.main.Len() == 0
}

// Name returns the pool's name.
func (p *Pool) Name() string { return p.name }

// Stats returns a point-in-time snapshot.
func (p *Pool) Stats() core.Stats {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	return core.Stats{
		Name:       p.name,
		Workers:    p.workers,
		Queued:     int(p.queued.Load()),
		Active:     int(p.active.Load()),
		Delayed:    p.delay.Len(),
		MainQueued: p.main.Len(),
		Running:    running,
	}
}

// RecentHistory returns up to n recently executed jobs, newest first.
func (p *Pool) RecentHistory(n int) []core.HistoryRecord {
	return p.history.Recent(n)
}

// =============================================================================
// Platform implementation
// =============================================================================

// Submit enqueues job for the workers at the given priority.
func (p *Pool) Submit(job core.Job, pri core.Priority) {
	p.enqueue(job, pri)
}

// SubmitMain enqueues job onto the pool's main loop.
func (p *Pool) SubmitMain(job core.Job) {
	p.main.Post(job)
}

// SubmitAfter schedules job to run no earlier than d from now.
func (p *Pool) SubmitAfter(d time.Duration, job core.Job, pri core.Priority) {
	if d <= 0 {
		p.enqueue(job, pri)
		return
	}
	p.delay.Add(job, d, pri)
}

// enqueue admits a job into the run queue, or delivers it degraded when
// the pool is not running. It is also the delay schedule's sink.
func (p *Pool) enqueue(job core.Job, pri core.Priority) {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		p.degrade("stopped", job)
		return
	}

	p.queue.Push(job, pri)
	depth := p.queued.Add(1)
	p.metrics.RecordQueueDepth(int(depth))
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// degrade delivers a job outside the normal path. The job still runs
// exactly once, on its own goroutine, with the usual panic protection.
func (p *Pool) degrade(reason string, job core.Job) {
	p.metrics.RecordDegraded(reason)
	lg := p.logger()
	lg.Warn().
		Str("pool", p.name).
		Str("reason", reason).
		Msg("degraded job delivery")
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.handlePanic(r, debug.Stack())
			}
		}()
		job()
	}()
}

// =============================================================================
// Workers
// =============================================================================

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		entry, ok := p.next()
		if !ok {
			return
		}
		p.runJob(entry)
	}
}

// next blocks until work arrives or the pool stops. Workers re-check
// the queue after every signal, so a dropped signal only means another
// worker got there first.
func (p *Pool) next() (core.QueueEntry, bool) {
	for {
		if entry, ok := p.queue.Pop(); ok {
			p.queued.Add(-1)
			return entry, true
		}
		select {
		case <-p.signal:
		case <-p.stopCh:
			return core.QueueEntry{}, false
		}
	}
}

func (p *Pool) runJob(entry core.QueueEntry) {
	p.active.Add(1)
	start := time.Now()
	panicked := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				p.handlePanic(r, debug.Stack())
			}
		}()
		entry.Job()
	}()
	d := time.Since(start)
	p.active.Add(-1)

	p.metrics.RecordJobDuration(entry.Pri, d)
	p.history.Add(core.HistoryRecord{
		Priority: entry.Pri,
		Queued:   entry.EnqueuedAt,
		Started:  start,
		Duration: d,
		Panicked: panicked,
	})
}

func (p *Pool) handlePanic(v any, stack []byte) {
	p.metrics.RecordJobPanic(v)
	if p.panicH != nil {
		p.panicH.HandlePanic(v, stack)
		return
	}
	core.LogPanicHandler{Log: p.logger()}.HandlePanic(v, stack)
}

func (p *Pool) logger() zerolog.Logger {
	p.logMu.RLock()
	defer p.logMu.RUnlock()
	return p.log
}
