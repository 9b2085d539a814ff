package systemd

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	states []string
}

func (r *recorder) notify(state string) (bool, error) {
	r.mu.Lock()
	r.states = append(r.states, state)
	r.mu.Unlock()
	return true, nil
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func TestDisabledNotifierIsSilent(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	n := &Notifier{enabled: false, notify: rec.notify}
	_ = n.Ready()
	_ = n.Stopping()
	if got := rec.all(); len(got) != 0 {
		t.Fatalf("disabled notifier sent %v", got)
	}
	if n.WatchdogInterval() != 0 {
		t.Fatal("disabled notifier reported a watchdog interval")
	}
}

func TestStates(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	n := &Notifier{enabled: true, notify: rec.notify}
	_ = n.Ready()
	_ = n.Status("3 widgets")
	_ = n.Stopping()
	want := []string{"READY=1", "STATUS=3 widgets", "STOPPING=1"}
	got := rec.all()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWatchdogHonoursHealth(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	n := &Notifier{enabled: true, notify: rec.notify}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := n.Watchdog(ctx, 10*time.Millisecond, func() bool { return false }); err != nil {
		t.Fatal(err)
	}
	if got := rec.all(); len(got) != 0 {
		t.Fatalf("unhealthy watchdog pinged: %v", got)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	if err := n.Watchdog(ctx2, 10*time.Millisecond, nil); err != nil {
		t.Fatal(err)
	}
	got := rec.all()
	if len(got) == 0 || got[0] != "WATCHDOG=1" {
		t.Fatalf("watchdog pings = %v", got)
	}
}
