package nexec

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/water-rs/native-executor/core"
)

// Schedule yields successive run times. The schedules produced by
// robfig/cron satisfy it as-is.
type Schedule interface {
	Next(time.Time) time.Time
}

type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.every)
}

// Every returns a fixed-period schedule.
func Every(d time.Duration) Schedule {
	return intervalSchedule{every: d}
}

// Standard five-field crontab plus @hourly-style descriptors.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a schedule string.
//
// Supported forms:
//   - cron expression: "*/5 * * * *", "@hourly", "@every 55m"
//   - interval duration: "30s", "2h30m"
//
// Optional prefixes force one interpretation: "cron:*/5 * * * *",
// "interval:30s", "every:5m". Without a prefix, anything containing
// whitespace or starting with '@' parses as cron, the rest as a
// duration.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("nexec: schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(s[len("cron:"):])
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(s[len("interval:"):])
	case strings.HasPrefix(low, "every:"):
		return parseInterval(s[len("every:"):])
	}

	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	return parseInterval(s)
}

func parseCron(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("nexec: cron expression required")
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("nexec: invalid cron %q: %w", expr, err)
	}
	return sched, nil
}

func parseInterval(v string) (Schedule, error) {
	v = strings.TrimSpace(v)
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil, fmt.Errorf("nexec: invalid interval %q (use a duration like 30s or 2h30m)", v)
	}
	if d <= 0 {
		return nil, fmt.Errorf("nexec: interval must be positive, got %v", d)
	}
	return intervalSchedule{every: d}, nil
}

// RepeatHandle controls a repeating submission.
type RepeatHandle struct {
	stopped atomic.Bool
}

// Stop ends the repetition. A run already submitted still executes;
// nothing is scheduled after it. Stop is idempotent.
func (h *RepeatHandle) Stop() {
	h.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (h *RepeatHandle) Stopped() bool {
	return h.stopped.Load()
}

// Repeat runs job per sched at pri until the handle is stopped. Each
// run schedules the next from the time it finishes, so a slow job
// pushes later runs back instead of stacking them.
func Repeat(p core.Platform, sched Schedule, job core.Job, pri core.Priority) *RepeatHandle {
	h := &RepeatHandle{}
	var run func()
	run = func() {
		if h.Stopped() {
			return
		}
		job()
		if h.Stopped() {
			return
		}
		schedule(p, sched, run, pri)
	}
	schedule(p, sched, run, pri)
	return h
}

// RepeatSpec is Repeat with the schedule given in its string form.
func RepeatSpec(p core.Platform, spec string, job core.Job, pri core.Priority) (*RepeatHandle, error) {
	sched, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	return Repeat(p, sched, job, pri), nil
}

// schedule submits run for sched's next activation. A schedule with no
// next activation ends the repetition.
func schedule(p core.Platform, sched Schedule, run core.Job, pri core.Priority) {
	now := time.Now()
	next := sched.Next(now)
	if next.IsZero() {
		return
	}
	p.SubmitAfter(next.Sub(now), run, pri)
}
