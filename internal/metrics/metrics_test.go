package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"infoscreen/internal/config"
	"infoscreen/internal/eventbus"
	"infoscreen/internal/scheduler"
	"infoscreen/pkg/logx"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	b, _ := io.ReadAll(rr.Body)
	return string(b)
}

func TestObserveEvents(t *testing.T) {
	t.Parallel()
	c := NewCollector(eventbus.New(), logx.Nop())
	c.Observe(eventbus.Event{Type: scheduler.EventDraw, Data: scheduler.DrawEvent{Tier: scheduler.TierFast, Widget: "clock", Duration: 20 * time.Millisecond}})
	c.Observe(eventbus.Event{Type: scheduler.EventDraw, Data: scheduler.DrawEvent{Tier: scheduler.TierRegular, Widget: "weather", Err: "boom"}})
	c.Observe(eventbus.Event{Type: scheduler.EventTimeout, Data: scheduler.TimeoutEvent{Widget: "weather"}})
	c.Observe(eventbus.Event{Type: scheduler.EventRefresh, Data: scheduler.RefreshEvent{Mode: "partial/mono"}})
	c.Observe(eventbus.Event{Type: scheduler.EventPass, Data: scheduler.PassReport{Abandoned: []string{"weather"}}})

	srv := NewServer(config.MetricsConfig{}, c, logx.Nop())
	body := scrape(t, srv.Handler())
	for _, want := range []string{
		`infoscreen_widget_draws_total{outcome="ok",tier="fast",widget="clock"} 1`,
		`infoscreen_widget_draws_total{outcome="error",tier="regular",widget="weather"} 1`,
		`infoscreen_widget_timeouts_total{widget="weather"} 1`,
		`infoscreen_display_refreshes_total{mode="partial/mono",outcome="ok"} 1`,
		`infoscreen_regular_pass_abandoned_total 1`,
		`infoscreen_eventbus_dropped_total 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in scrape output", want)
		}
	}
}

func TestRunConsumesBus(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	c := NewCollector(bus, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	srv := NewServer(config.MetricsConfig{}, c, logx.Nop())
	deadline := time.Now().Add(5 * time.Second)
	for {
		// Run may not have subscribed yet, so keep publishing until seen.
		bus.Publish(eventbus.Event{Type: scheduler.EventSkip, Data: scheduler.SkipEvent{Tier: scheduler.TierFast, Widget: "clock"}})
		if strings.Contains(scrape(t, srv.Handler()), `infoscreen_widget_skips_total{tier="fast",widget="clock"}`) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("event never reached the collector")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv := NewServer(config.MetricsConfig{Path: "/m"}, NewCollector(eventbus.New(), logx.Nop()), logx.Nop())
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rr.Code)
	}
}

func TestPprofMountedOnlyWhenEnabled(t *testing.T) {
	t.Parallel()
	for _, enabled := range []bool{false, true} {
		srv := NewServer(config.MetricsConfig{Pprof: enabled}, NewCollector(eventbus.New(), logx.Nop()), logx.Nop())
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
		want := http.StatusNotFound
		if enabled {
			want = http.StatusOK
		}
		if rr.Code != want {
			t.Fatalf("pprof=%v status = %d, want %d", enabled, rr.Code, want)
		}
	}
}
