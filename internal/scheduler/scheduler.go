// Package scheduler keeps a set of widgets drawn and composited onto one
// shared canvas, and pushes that canvas to a display sink.
//
// Widgets are split into two tiers. Fast widgets are redrawn every second on
// a small persistent pool and are skipped while a previous draw is still
// running. Regular widgets are redrawn on minute boundaries on a fresh pool
// per pass; the pass waits for them up to a deadline and abandons the rest.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"infoscreen/internal/canvas"
	"infoscreen/internal/config"
	"infoscreen/internal/display"
	"infoscreen/internal/eventbus"
	"infoscreen/internal/layout"
	"infoscreen/internal/widget"
	"infoscreen/internal/workpool"
	"infoscreen/pkg/logx"
)

// Config sizes the tiers and describes the grid.
type Config struct {
	Rows, Cols     int
	Background     uint8
	Borders        bool
	Lines          bool
	BorderWidth    int
	BorderColor    uint8
	LinesHor       []string
	LinesVert      []string
	FastWorkers    int
	RegularWorkers int
	RegularTimeout time.Duration
	PopulateWait   time.Duration
}

// ConfigFrom resolves the layout and scheduler sections of cfg.
func ConfigFrom(cfg *config.Config) (Config, error) {
	timeout, wait, err := cfg.Scheduler.Durations()
	if err != nil {
		return Config{}, err
	}
	rows, cols := cfg.Layout.GridSize()
	fast, regular := cfg.Scheduler.Workers()
	return Config{
		Rows:           rows,
		Cols:           cols,
		Background:     cfg.Layout.BackgroundValue(),
		Borders:        cfg.Layout.BordersEnabled(),
		Lines:          cfg.Layout.Lines,
		BorderWidth:    cfg.Layout.BorderWidthValue(),
		BorderColor:    cfg.Layout.BorderColorValue(),
		LinesHor:       cfg.Layout.LinesHor,
		LinesVert:      cfg.Layout.LinesVert,
		FastWorkers:    fast,
		RegularWorkers: regular,
		RegularTimeout: timeout,
		PopulateWait:   wait,
	}, nil
}

func (c Config) withDefaults() Config {
	if c.Rows <= 0 {
		c.Rows = config.DefaultRows
	}
	if c.Cols <= 0 {
		c.Cols = config.DefaultCols
	}
	if c.FastWorkers <= 0 {
		c.FastWorkers = config.DefaultFastWorkers
	}
	if c.RegularWorkers <= 0 {
		c.RegularWorkers = config.DefaultRegularWorkers
	}
	if c.RegularTimeout <= 0 {
		c.RegularTimeout = config.DefaultRegularTimeout
	}
	if c.PopulateWait <= 0 {
		c.PopulateWait = config.DefaultPopulateWait
	}
	return c
}

type Option func(*Scheduler)

func WithLogger(log logx.Logger) Option { return func(s *Scheduler) { s.log = log } }
func WithBus(bus eventbus.Bus) Option   { return func(s *Scheduler) { s.bus = bus } }

// WithDeps sets what every widget factory receives.
func WithDeps(deps widget.Deps) Option { return func(s *Scheduler) { s.deps = deps } }

// entry is one loaded widget.
type entry struct {
	w    widget.Widget
	info widget.Info
	// busy is set while a regular draw, possibly abandoned, is running.
	busy atomic.Bool
}

// result is a completed draw waiting to be composited.
type result struct {
	name   string
	rect   image.Rectangle
	invert bool
	img    *image.Gray
}

type Scheduler struct {
	cfg      Config
	sink     display.Sink
	registry *widget.Registry
	deps     widget.Deps
	log      logx.Logger
	bus      eventbus.Bus
	throttle *logx.Throttle

	grid  layout.Grid
	decor canvas.Decor

	ctx    context.Context
	cancel context.CancelFunc

	// passCtx ends the wait of running regular passes early.
	passCtx    context.Context
	passCancel context.CancelFunc

	fastWidgets    []*entry
	regularWidgets []*entry
	fastUpdates    bool

	fastPool    *workpool.Pool
	outMu       sync.Mutex
	outstanding []*workpool.Handle

	fastMu       sync.Mutex
	fastQueue    []result
	regularMu    sync.Mutex
	regularQueue []result

	canvasMu sync.Mutex
	canvas   *image.Gray

	refreshMu   sync.Mutex
	stopping    bool // guarded by refreshMu
	fullRefresh atomic.Bool
	unloaded    atomic.Bool

	passMu sync.Mutex
	passes int
	idle   chan struct{} // closed while passes == 0
}

// New builds a scheduler drawing onto a canvas the size of sink.
func New(cfg Config, sink display.Sink, registry *widget.Registry, opts ...Option) (*Scheduler, error) {
	if sink == nil {
		return nil, errors.New("scheduler: nil display sink")
	}
	if registry == nil {
		return nil, errors.New("scheduler: nil widget registry")
	}
	cfg = cfg.withDefaults()
	grid, err := layout.NewGrid(sink.Width(), sink.Height(), cfg.Rows, cfg.Cols)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	passCtx, passCancel := context.WithCancel(ctx)
	idle := make(chan struct{})
	close(idle)
	s := &Scheduler{
		cfg:      cfg,
		sink:     sink,
		registry: registry,
		grid:     grid,
		decor: canvas.Decor{
			Borders:    cfg.Borders,
			Lines:      cfg.Lines,
			Width:      cfg.BorderWidth,
			Color:      cfg.BorderColor,
			Grid:       grid,
			Horizontal: layout.ParseLines(cfg.LinesHor),
			Vertical:   layout.ParseLines(cfg.LinesVert),
		},
		ctx:        ctx,
		cancel:     cancel,
		passCtx:    passCtx,
		passCancel: passCancel,
		idle:       idle,
		canvas:     canvas.New(sink.Width(), sink.Height(), cfg.Background),
		throttle:   logx.NewThrottle(time.Minute, 1),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(logx.String("comp", "scheduler"))
	if s.deps.Log.IsZero() {
		s.deps.Log = s.log
	}
	s.fastPool = workpool.New(workpool.Config{Name: "fast", Workers: cfg.FastWorkers, Log: s.log})
	return s, nil
}

// FastUpdates reports whether any fast widget is loaded.
func (s *Scheduler) FastUpdates() bool { return s.fastUpdates }

// TickInterval is how often RefreshDisplay should run.
func (s *Scheduler) TickInterval() time.Duration {
	if s.fastUpdates {
		return time.Second
	}
	return time.Minute
}

// Canvas returns a copy of the shared canvas.
func (s *Scheduler) Canvas() *image.Gray {
	s.canvasMu.Lock()
	defer s.canvasMu.Unlock()
	return canvas.Clone(s.canvas)
}

// Widgets lists loaded widgets, fast tier first.
func (s *Scheduler) Widgets() []widget.Info {
	out := make([]widget.Info, 0, len(s.fastWidgets)+len(s.regularWidgets))
	for _, e := range s.fastWidgets {
		out = append(out, e.info)
	}
	for _, e := range s.regularWidgets {
		out = append(out, e.info)
	}
	return out
}

// RequestFullRefresh makes the next minute push a full flashing refresh.
func (s *Scheduler) RequestFullRefresh() { s.fullRefresh.Store(true) }

// UnloadWidgets terminates the fast pool and runs every widget's cleanup.
// Cleanup failures are returned joined; callers may ignore them.
func (s *Scheduler) UnloadWidgets() error {
	if s.unloaded.Swap(true) {
		return nil
	}
	s.cancel()
	s.fastPool.Terminate()

	var errs []error
	for _, e := range append(append([]*entry(nil), s.regularWidgets...), s.fastWidgets...) {
		c, ok := e.w.(widget.Cleaner)
		if !ok {
			continue
		}
		if err := cleanup(c); err != nil {
			s.log.Debug("widget cleanup failed", logx.String("widget", e.info.Name), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", e.info.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) beginPass() {
	s.passMu.Lock()
	if s.passes == 0 {
		s.idle = make(chan struct{})
	}
	s.passes++
	s.passMu.Unlock()
}

func (s *Scheduler) endPass() {
	s.passMu.Lock()
	s.passes--
	if s.passes == 0 {
		close(s.idle)
	}
	s.passMu.Unlock()
}

// WaitPasses blocks until no background regular pass is running or ctx is
// done. Passes started later are not waited for.
func (s *Scheduler) WaitPasses(ctx context.Context) error {
	s.passMu.Lock()
	idle := s.idle
	s.passMu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopPasses prevents RefreshDisplay from starting regular passes, makes
// running passes give up their wait and waits for them to return.
// Draws still in flight are abandoned, not interrupted.
func (s *Scheduler) StopPasses(ctx context.Context) error {
	s.refreshMu.Lock()
	s.stopping = true
	s.refreshMu.Unlock()
	s.passCancel()
	return s.WaitPasses(ctx)
}

func cleanup(c widget.Cleaner) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup panic: %v", r)
		}
	}()
	return c.Cleanup()
}
