// Package metrics turns scheduler events into Prometheus series.
package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"infoscreen/internal/eventbus"
	"infoscreen/internal/scheduler"
	"infoscreen/pkg/logx"
)

const namespace = "infoscreen"

// Collector owns a private registry fed from the event bus.
type Collector struct {
	reg *prometheus.Registry
	bus eventbus.Bus
	log logx.Logger

	draws        *prometheus.CounterVec
	drawSeconds  *prometheus.HistogramVec
	skips        *prometheus.CounterVec
	timeouts     *prometheus.CounterVec
	refreshes    *prometheus.CounterVec
	refreshSecs  *prometheus.HistogramVec
	passSeconds  prometheus.Histogram
	passAbandons prometheus.Counter

	wg sync.WaitGroup
}

func NewCollector(bus eventbus.Bus, log logx.Logger) *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	c := &Collector{
		reg: reg,
		bus: bus,
		log: log.With(logx.String("comp", "metrics")),
		draws: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "widget_draws_total",
			Help:      "Completed widget draws by tier, widget and outcome.",
		}, []string{"tier", "widget", "outcome"}),
		drawSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "widget_draw_seconds",
			Help:      "Time from submission to completion of a widget draw.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"tier"}),
		skips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "widget_skips_total",
			Help:      "Draws skipped because the previous draw was still running.",
		}, []string{"tier", "widget"}),
		timeouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "widget_timeouts_total",
			Help:      "Regular draws abandoned at the pass deadline.",
		}, []string{"widget"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "display_refreshes_total",
			Help:      "Display refreshes by mode and outcome.",
		}, []string{"mode", "outcome"}),
		refreshSecs: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "display_refresh_seconds",
			Help:      "Time spent pushing the canvas to the display.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		passSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "regular_pass_seconds",
			Help:      "Duration of regular-tier passes.",
			Buckets:   []float64{.1, .5, 1, 5, 10, 20, 30, 40, 60},
		}),
		passAbandons: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regular_pass_abandoned_total",
			Help:      "Widgets abandoned across all regular passes.",
		}),
	}
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eventbus_dropped_total",
		Help:      "Events dropped because a subscriber fell behind.",
	}, func() float64 { return float64(bus.Dropped()) })
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Run consumes events until ctx is done.
func (c *Collector) Run(ctx context.Context) {
	ch, unsub := c.bus.Subscribe(256,
		scheduler.EventDraw,
		scheduler.EventSkip,
		scheduler.EventTimeout,
		scheduler.EventRefresh,
		scheduler.EventPass,
	)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			c.Observe(e)
		}
	}
}

// Observe applies one event.
func (c *Collector) Observe(e eventbus.Event) {
	switch d := e.Data.(type) {
	case scheduler.DrawEvent:
		outcome := "ok"
		if d.Err != "" {
			outcome = "error"
		}
		c.draws.WithLabelValues(string(d.Tier), d.Widget, outcome).Inc()
		c.drawSeconds.WithLabelValues(string(d.Tier)).Observe(d.Duration.Seconds())
	case scheduler.SkipEvent:
		c.skips.WithLabelValues(string(d.Tier), d.Widget).Inc()
	case scheduler.TimeoutEvent:
		c.timeouts.WithLabelValues(d.Widget).Inc()
	case scheduler.RefreshEvent:
		outcome := "ok"
		if d.Err != "" {
			outcome = "error"
		}
		c.refreshes.WithLabelValues(d.Mode, outcome).Inc()
		c.refreshSecs.WithLabelValues(d.Mode).Observe(d.Duration.Seconds())
	case scheduler.PassReport:
		c.passSeconds.Observe(d.Duration.Seconds())
		c.passAbandons.Add(float64(len(d.Abandoned)))
	default:
		c.log.Trace("unhandled event", logx.String("type", e.Type))
	}
}
