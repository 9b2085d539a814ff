package metronome

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"infoscreen/pkg/logx"
)

// fakeClock advances instantly on Sleep.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func collect(t *testing.T, interval time.Duration, start time.Time, n int) []time.Time {
	t.Helper()
	clk := &fakeClock{now: start}
	var (
		mu  sync.Mutex
		got []time.Time
		m   *Metronome
	)
	m, err := New(interval, func(at time.Time) {
		mu.Lock()
		got = append(got, at)
		full := len(got) == n
		mu.Unlock()
		if full {
			m.Stop()
		}
	}, WithClock(clk), WithWait(true), WithLogger(logx.Nop()))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		m.Stop()
		t.Fatal("metronome did not stop")
	}
	mu.Lock()
	defer mu.Unlock()
	return append([]time.Time(nil), got...)
}

func TestMinuteIntervalAlignsToSecondZero(t *testing.T) {
	t.Parallel()
	start := time.Date(2024, 3, 1, 12, 0, 17, 250_000_000, time.UTC)
	ticks := collect(t, time.Minute, start, 3)
	if len(ticks) != 3 {
		t.Fatalf("ticks = %d, want 3", len(ticks))
	}
	for i, at := range ticks {
		if at.Second() != 0 || at.Nanosecond() != 0 {
			t.Fatalf("tick %d at %s, want second 0", i, at.Format(time.RFC3339Nano))
		}
		if i > 0 && at.Sub(ticks[i-1]) != time.Minute {
			t.Fatalf("tick spacing %s", at.Sub(ticks[i-1]))
		}
	}
}

func TestSecondIntervalLandsOnWholeSeconds(t *testing.T) {
	t.Parallel()
	start := time.Date(2024, 3, 1, 8, 30, 5, 400_000_000, time.UTC)
	ticks := collect(t, time.Second, start, 5)
	want := time.Date(2024, 3, 1, 8, 30, 6, 0, time.UTC)
	for i, at := range ticks {
		if !at.Equal(want) {
			t.Fatalf("tick %d = %s, want %s", i, at.Format(time.RFC3339Nano), want.Format(time.RFC3339Nano))
		}
		want = want.Add(time.Second)
	}
}

func TestNoWaitDoesNotJoinCallbacks(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	release := make(chan struct{})
	defer close(release)

	var calls atomic.Int32
	var m *Metronome
	m, err := New(time.Second, func(time.Time) {
		if calls.Add(1) == 5 {
			m.Stop()
		}
		<-release
	}, WithClock(clk), WithWait(false))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		m.Stop()
		t.Fatal("blocked callbacks stalled the metronome")
	}
	if m.Ticks() < 5 {
		t.Fatalf("ticks = %d, want >= 5", m.Ticks())
	}
}

func TestWaitModeJoinsOverrunningCallbacks(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	var active, peak, calls atomic.Int32
	var m *Metronome
	m, err := New(time.Second, func(time.Time) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		// overrun: the fake clock moves many ticks ahead meanwhile
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		if calls.Add(1) == 10 {
			m.Stop()
		}
	}, WithClock(clk), WithWait(true), WithLogger(logx.Nop()))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		m.Stop()
		t.Fatal("metronome did not stop")
	}
	if got := peak.Load(); got != 1 {
		t.Fatalf("peak concurrent callbacks = %d, want 1", got)
	}
	if got := m.Ticks(); got != 10 {
		t.Fatalf("ticks = %d, want 10", got)
	}
}

func TestStopIsIdempotentAndPreempts(t *testing.T) {
	t.Parallel()
	m, err := New(time.Second, func(time.Time) { t.Error("callback after stop") })
	if err != nil {
		t.Fatal(err)
	}
	m.Stop()
	m.Stop()
	m.Run(context.Background())
	if !m.Stopped() || m.Ticks() != 0 {
		t.Fatalf("stopped=%v ticks=%d", m.Stopped(), m.Ticks())
	}
}

func TestContextCancelEndsRun(t *testing.T) {
	t.Parallel()
	m, err := New(time.Minute, func(time.Time) {})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run ignored context cancellation")
	}
}

func TestNewValidatesInterval(t *testing.T) {
	t.Parallel()
	for _, d := range []time.Duration{0, 500 * time.Millisecond, 1500 * time.Millisecond} {
		if _, err := New(d, func(time.Time) {}); err == nil {
			t.Fatalf("interval %s accepted", d)
		}
	}
	if _, err := New(time.Second, nil); err == nil {
		t.Fatal("nil callback accepted")
	}
}
