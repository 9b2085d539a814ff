// Package metronome fires a callback on whole-second boundaries.
package metronome

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"infoscreen/pkg/logx"
)

// pollStep is the granularity of the sub-second alignment poll.
const pollStep = time.Millisecond

// Metronome calls fn once per interval, each call landing on an integer
// second. Calls run on their own goroutine and are never joined unless
// wait mode is on.
type Metronome struct {
	name     string
	interval time.Duration
	fn       func(at time.Time)
	wait     bool
	clock    Clock
	log      logx.Logger

	stopped atomic.Bool
	ticks   atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
}

type Option func(*Metronome)

func WithName(name string) Option { return func(m *Metronome) { m.name = name } }

// WithWait makes each tick wait for the previous callback to return.
// Ticks are skipped while a callback overruns.
func WithWait(wait bool) Option { return func(m *Metronome) { m.wait = wait } }

func WithClock(c Clock) Option { return func(m *Metronome) { m.clock = c } }

func WithLogger(log logx.Logger) Option { return func(m *Metronome) { m.log = log } }

// New returns a stopped-until-Run metronome. interval must be a positive
// whole number of seconds.
func New(interval time.Duration, fn func(at time.Time), opts ...Option) (*Metronome, error) {
	if interval < time.Second || interval%time.Second != 0 {
		return nil, fmt.Errorf("metronome: interval must be a whole number of seconds, got %s", interval)
	}
	if fn == nil {
		return nil, fmt.Errorf("metronome: nil callback")
	}
	m := &Metronome{
		name:     "metronome",
		interval: interval,
		fn:       fn,
		wait:     true,
		clock:    SystemClock{},
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With(logx.String("comp", "metronome"), logx.String("name", m.name))
	return m, nil
}

func (m *Metronome) Interval() time.Duration { return m.interval }

// Ticks is the number of callbacks launched so far.
func (m *Metronome) Ticks() uint64 { return m.ticks.Load() }

// Stop asks Run to return. It is safe to call more than once and from any
// goroutine. A tick that has already passed its sleep may still fire once.
func (m *Metronome) Stop() {
	if m.stopped.Swap(true) {
		return
	}
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Metronome) Stopped() bool { return m.stopped.Load() }

// Run blocks until Stop is called or ctx is done.
func (m *Metronome) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	if m.stopped.Load() {
		return
	}

	m.log.Debug("metronome started", logx.Duration("interval", m.interval))
	defer m.log.Debug("metronome stopped", logx.Uint64("ticks", m.ticks.Load()))

	if m.interval%time.Minute == 0 {
		m.log.Debug("waiting for next minute")
		for m.clock.Now().Second() != 0 {
			if m.done(ctx) {
				return
			}
			m.clock.Sleep(ctx, pollStep)
		}
	}

	var prev chan struct{}
	for !m.done(ctx) {
		if prev != nil && m.wait {
			select {
			case <-prev:
			default:
				m.log.Debug("previous tick still running")
				select {
				case <-prev:
				case <-ctx.Done():
					return
				}
			}
		}

		m.clock.Sleep(ctx, m.interval-time.Second)

		now := m.clock.Now()
		target := now.Truncate(time.Second).Add(time.Second)
		m.clock.Sleep(ctx, target.Sub(now))
		for m.clock.Now().Before(target) {
			if m.done(ctx) {
				return
			}
			m.clock.Sleep(ctx, pollStep)
		}

		if m.done(ctx) {
			return
		}
		prev = make(chan struct{})
		m.ticks.Add(1)
		go m.fire(prev, target)
	}
}

func (m *Metronome) done(ctx context.Context) bool {
	return m.stopped.Load() || ctx.Err() != nil
}

func (m *Metronome) fire(done chan struct{}, at time.Time) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("tick panic", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	m.fn(at)
}
