package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule returns the tick schedule for a poll interval, or for expr when it
// is non-empty. expr accepts standard five-field cron syntax and descriptors
// such as "@every 45s".
func Schedule(interval time.Duration, expr string) (cron.Schedule, error) {
	if expr != "" {
		s, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
		}
		if cd, ok := s.(cron.ConstantDelaySchedule); ok {
			return Every(cd.Delay), nil
		}
		return s, nil
	}
	if interval < time.Second {
		return nil, fmt.Errorf("poll interval %s is below one second", interval)
	}
	return Every(interval), nil
}

// Every returns a schedule that fires exactly d after the time it is given.
// cron.Every truncates to whole seconds of wall-clock time, so its first
// gap can be up to a second short.
func Every(d time.Duration) cron.Schedule { return fixedDelay(d) }

type fixedDelay time.Duration

func (f fixedDelay) Next(t time.Time) time.Time { return t.Add(time.Duration(f)) }

// Poller invokes a function on every tick of a schedule. The first call
// happens at the first tick, never at Start. Ticks are anchored to Start, so
// a fixed-delay schedule fires at start+k*d regardless of how long each run
// takes; ticks missed during a long run are skipped.
type Poller struct {
	sched cron.Schedule
	run   func(context.Context)
	now   func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a stopped Poller.
func NewPoller(sched cron.Schedule, run func(context.Context)) *Poller {
	return &Poller{sched: sched, run: run, now: time.Now}
}

// Start begins ticking. Calling Start on a running Poller does nothing. The
// loop ends when ctx is done or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop cancels the pending tick and waits for the loop to exit, including a
// run in progress, which sees its context canceled. After Stop returns no
// further run starts. Stop is idempotent and safe on a Poller that was never
// started. It must not be called from inside the run function.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	next := p.sched.Next(p.now())
	for !next.IsZero() {
		timer := time.NewTimer(next.Sub(p.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}
		p.run(ctx)
		next = p.advance(next, p.now())
	}
}

// advance returns the first tick after now that follows prev. A zero time
// means the schedule has no further ticks.
func (p *Poller) advance(prev, now time.Time) time.Time {
	next := p.sched.Next(prev)
	for !next.IsZero() && !next.After(now) {
		next = p.sched.Next(next)
	}
	return next
}
