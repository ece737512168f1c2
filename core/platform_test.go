package core

import (
	"sync"
	"time"
)

// testPlatform satisfies Platform for tests: Submit runs each job on a
// fresh goroutine, SubmitMain serializes jobs on one loop goroutine,
// SubmitAfter arms a wall-clock timer. It records every submission so
// tests can assert on routing and priorities.
type testPlatform struct {
	mu         sync.Mutex
	priorities []Priority
	mains      int
	delays     []time.Duration

	main chan Job
	done chan struct{}
	once sync.Once
}

var _ Platform = (*testPlatform)(nil)

func newTestPlatform() *testPlatform {
	p := &testPlatform{
		main: make(chan Job, 1024),
		done: make(chan struct{}),
	}
	go func() {
		for {
			select {
			case job := <-p.main:
				job()
			case <-p.done:
				return
			}
		}
	}()
	return p
}

func (p *testPlatform) close() {
	p.once.Do(func() { close(p.done) })
}

func (p *testPlatform) Submit(job Job, pri Priority) {
	p.mu.Lock()
	p.priorities = append(p.priorities, pri)
	p.mu.Unlock()
	go job()
}

func (p *testPlatform) SubmitMain(job Job) {
	p.mu.Lock()
	p.mains++
	p.mu.Unlock()
	select {
	case p.main <- job:
	case <-p.done:
		go job()
	}
}

func (p *testPlatform) SubmitAfter(d time.Duration, job Job, pri Priority) {
	p.mu.Lock()
	p.delays = append(p.delays, d)
	p.mu.Unlock()
	time.AfterFunc(d, func() { go job() })
}

func (p *testPlatform) submittedPriorities() []Priority {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Priority(nil), p.priorities...)
}

func (p *testPlatform) mainSubmissions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mains
}
