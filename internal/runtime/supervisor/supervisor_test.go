package supervisor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func wait(t *testing.T, s *Supervisor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestGoRecordsFirstErrorAndCancels(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))
	boom := errors.New("boom")
	s.Go("failing", func(context.Context) error { return boom })
	s.Go0("waiter", func(ctx context.Context) { <-ctx.Done() })
	wait(t, s)
	if !errors.Is(s.Err(), boom) {
		t.Fatalf("Err() = %v, want boom", s.Err())
	}
	if !strings.HasPrefix(s.Err().Error(), "failing: ") {
		t.Fatalf("error not named: %v", s.Err())
	}
	if s.Active() != 0 {
		t.Fatalf("active = %d", s.Active())
	}
}

func TestGoCapturesPanic(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("panicky", func(context.Context) error { panic("kaboom") })
	wait(t, s)
	if s.Err() == nil || !strings.Contains(s.Err().Error(), "kaboom") {
		t.Fatalf("Err() = %v", s.Err())
	}
	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].Panics != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestCancellationIsClean(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Err() != nil {
		t.Fatalf("cancellation reported as error: %v", s.Err())
	}
}

func TestGoRestartBacksOffAndGivesUp(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("flaky", RestartPolicy{MinBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond, MaxRestarts: 3},
		func(context.Context) error {
			runs.Add(1)
			return errors.New("flake")
		})
	wait(t, s)
	if got := runs.Load(); got != 4 {
		t.Fatalf("runs = %d, want 4", got)
	}
	if s.Err() == nil {
		t.Fatal("exhausted restarts did not record an error")
	}
	if snap := s.Snapshot(); snap[0].Restarts != 3 {
		t.Fatalf("restarts = %d, want 3", snap[0].Restarts)
	}
}

func TestGoRestartRecoversThenExitsCleanly(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("recovering", RestartPolicy{MinBackoff: time.Millisecond}, func(context.Context) error {
		if runs.Add(1) < 3 {
			panic("not yet")
		}
		return nil
	})
	wait(t, s)
	if runs.Load() != 3 {
		t.Fatalf("runs = %d, want 3", runs.Load())
	}
	if s.Err() != nil {
		t.Fatalf("Err() = %v", s.Err())
	}
}

func TestWaitHonoursContext(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	release := make(chan struct{})
	s.Go0("stuck", func(context.Context) { <-release })
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want deadline", err)
	}
	close(release)
	wait(t, s)
}
