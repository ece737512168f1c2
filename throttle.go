package nexec

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/water-rs/native-executor/core"
)

// Throttled paces Submit traffic through a token bucket before handing
// it to the wrapped platform. Main and delayed submissions pass through
// untouched: pacing batch work must not add latency to the main
// context, and SubmitAfter callers already picked their timing.
type Throttled struct {
	p   core.Platform
	lim *rate.Limiter
}

var _ core.Platform = (*Throttled)(nil)

// Throttle wraps p so Submit traffic reaches its ready queue at most
// limit jobs per second, with bursts up to burst.
func Throttle(p core.Platform, limit rate.Limit, burst int) *Throttled {
	return &Throttled{p: p, lim: rate.NewLimiter(limit, burst)}
}

// Submit reserves a slot and forwards job, delayed by whatever the
// reservation demands. Equal delays resolve in reservation order, so
// FIFO within a priority survives the pacing.
func (t *Throttled) Submit(job core.Job, pri core.Priority) {
	r := t.lim.Reserve()
	if !r.OK() {
		// A reservation the bucket can never honor must not strand
		// the job.
		t.p.Submit(job, pri)
		return
	}
	if d := r.Delay(); d > 0 {
		t.p.SubmitAfter(d, job, pri)
		return
	}
	t.p.Submit(job, pri)
}

// SubmitMain passes through to the wrapped platform.
func (t *Throttled) SubmitMain(job core.Job) {
	t.p.SubmitMain(job)
}

// SubmitAfter passes through to the wrapped platform.
func (t *Throttled) SubmitAfter(d time.Duration, job core.Job, pri core.Priority) {
	t.p.SubmitAfter(d, job, pri)
}
