package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"infoscreen/pkg/logx"
)

func TestSubmitRunsAndCallsOnDone(t *testing.T) {
	t.Parallel()
	p := New(Config{Name: "t", Workers: 2, Log: logx.Nop()})
	defer p.Terminate()

	var called atomic.Bool
	h, err := p.Submit(context.Background(), "job", func(context.Context) error { return nil }, func(h *Handle, err error) {
		if err != nil {
			t.Errorf("onDone err = %v", err)
		}
		if h.Ready() {
			t.Error("handle should not be ready inside onDone")
		}
		called.Store(true)
	})
	if err != nil {
		t.Fatal(err)
	}
	<-h.Done()
	if !called.Load() {
		t.Fatal("onDone not called before Done")
	}
	if h.Err() != nil || h.Name() != "job" {
		t.Fatalf("handle = %s err=%v", h.Name(), h.Err())
	}
}

func TestPanicBecomesError(t *testing.T) {
	t.Parallel()
	p := New(Config{Workers: 1, Log: logx.Nop()})
	defer p.Terminate()

	h, err := p.Submit(context.Background(), "boom", func(context.Context) error { panic("bad") }, nil)
	if err != nil {
		t.Fatal(err)
	}
	<-h.Done()
	if h.Err() == nil {
		t.Fatal("expected panic to surface as an error")
	}

	// Worker survives the panic.
	h2, _ := p.Submit(context.Background(), "ok", func(context.Context) error { return nil }, nil)
	select {
	case <-h2.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panic")
	}
}

func TestUnbufferedSubmitBlocksWhenSaturated(t *testing.T) {
	t.Parallel()
	p := New(Config{Workers: 1, Log: logx.Nop()})
	defer p.Terminate()

	release := make(chan struct{})
	if _, err := p.Submit(context.Background(), "busy", func(context.Context) error { <-release; return nil }, nil); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Submit(ctx, "second", func(context.Context) error { return nil }, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("submit on saturated pool = %v, want deadline exceeded", err)
	}
	close(release)
}

func TestTerminateDropsQueuedAndDetachesRunning(t *testing.T) {
	t.Parallel()
	p := New(Config{Workers: 1, Queue: 4, Log: logx.Nop()})

	started := make(chan struct{})
	release := make(chan struct{})
	running, _ := p.Submit(context.Background(), "running", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, nil)
	<-started
	queued, _ := p.Submit(context.Background(), "queued", func(context.Context) error { return nil }, nil)

	p.Terminate()
	p.Terminate()

	<-queued.Done()
	if !errors.Is(queued.Err(), ErrDropped) {
		t.Fatalf("queued err = %v, want ErrDropped", queued.Err())
	}
	if running.Ready() {
		t.Fatal("running job should not be interrupted by Terminate")
	}
	if _, err := p.Submit(context.Background(), "late", func(context.Context) error { return nil }, nil); !errors.Is(err, ErrStopped) {
		t.Fatalf("submit after terminate = %v", err)
	}

	close(release)
	<-running.Done()
	if running.Err() != nil {
		t.Fatalf("detached job err = %v", running.Err())
	}
	if running.Duration() <= 0 {
		t.Fatalf("duration = %s, want > 0", running.Duration())
	}
}

type ctxKey struct{}

func TestTerminateLeavesJobContextLive(t *testing.T) {
	t.Parallel()
	p := New(Config{Workers: 1, Log: logx.Nop()})
	submitCtx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "pass-1"))
	started := make(chan struct{})
	release := make(chan struct{})
	var sawValue atomic.Bool
	h, err := p.Submit(submitCtx, "ctx", func(ctx context.Context) error {
		sawValue.Store(ctx.Value(ctxKey{}) == "pass-1")
		close(started)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-release:
			return nil
		}
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	<-started
	if got := p.InFlight(); got != 1 {
		t.Fatalf("in flight = %d, want 1", got)
	}
	cancel()
	p.Terminate()

	select {
	case <-h.Done():
		t.Fatalf("running job was interrupted: %v", h.Err())
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-h.Done()
	if h.Err() != nil || !sawValue.Load() {
		t.Fatalf("err = %v, value seen = %v", h.Err(), sawValue.Load())
	}
	if got := p.InFlight(); got != 0 {
		t.Fatalf("in flight after finish = %d", got)
	}
}
