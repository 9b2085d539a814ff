package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"infoscreen/internal/config"
	"infoscreen/internal/display"
	"infoscreen/internal/eventbus"
	"infoscreen/internal/metrics"
	"infoscreen/internal/metronome"
	"infoscreen/internal/render"
	"infoscreen/internal/runtime/supervisor"
	"infoscreen/internal/scheduler"
	"infoscreen/internal/widget"
	"infoscreen/pkg/logx"
	"infoscreen/pkg/systemd"
)

type App struct {
	cfgm *config.Manager
	cfg  *config.Config

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	text *render.Renderer

	registry *widget.Registry
	sink     display.Sink
	// ownSink is false when the sink was injected and must not be closed here.
	ownSink bool

	sched     *scheduler.Scheduler
	metro     *metronome.Metronome
	cron      *cron.Cron
	collector *metrics.Collector
	server    *metrics.Server
	sd        *systemd.Notifier
	sup       *supervisor.Supervisor

	quit atomic.Bool
}

type Option func(*App)

// WithSink replaces the configured display driver.
func WithSink(s display.Sink) Option { return func(a *App) { a.sink = s } }

// WithRegistry replaces the built-in widget kinds.
func WithRegistry(r *widget.Registry) Option { return func(a *App) { a.registry = r } }

// New loads the config file and sets up logging. Nothing touches the
// display until Start or Preview.
func New(cfgPath string, opts ...Option) (*App, error) {
	cfgm := config.NewManager(cfgPath, config.WithValidator(validate))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logConfig(cfg.Logging))

	text, err := render.New(cfg.Fonts.CacheSize)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgm:    cfgm,
		cfg:     cfg,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     eventbus.New(),
		text:    text,
		ownSink: true,
		sd:      systemd.New(cfg.Systemd.Notify),
	}
	for _, o := range opts {
		o(a)
	}
	if a.sink != nil {
		a.ownSink = false
	}
	if a.registry == nil {
		a.registry = widget.DefaultRegistry()
	}
	return a, nil
}

func logConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
	}
}

// validate rejects configs the scheduler could not run with. It also gates
// hot reloads.
func validate(cfg *config.Config) error {
	if _, err := scheduler.ConfigFrom(cfg); err != nil {
		return err
	}
	if _, err := parseFullRefresh(cfg.Scheduler.FullRefresh); err != nil {
		return err
	}
	return nil
}

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// parseFullRefresh returns nil for an empty spec.
func parseFullRefresh(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	s, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("scheduler.full_refresh: %w", err)
	}
	return s, nil
}

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Bus() eventbus.Bus { return a.bus }

// Scheduler is nil before Start or Preview.
func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

// Sink is nil before Start or Preview.
func (a *App) Sink() display.Sink { return a.sink }

// Done is closed when the app context ends (fatal error, display quit or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// QuitRequested reports whether the display asked the process to stop.
func (a *App) QuitRequested() bool { return a.quit.Load() }

func (a *App) requestQuit() {
	a.quit.Store(true)
	a.log.Info("quit requested from display")
	if a.sup != nil {
		a.sup.Cancel()
	}
}

// openDisplay opens the sink, clears it and builds an empty scheduler.
func (a *App) openDisplay() error {
	if a.sink == nil {
		sink, err := display.Open(a.cfg.Display, a.log.With(logx.String("comp", "display")), a.requestQuit)
		if err != nil {
			return fmt.Errorf("open display: %w", err)
		}
		a.sink = sink
	}
	if err := a.sink.Clear(); err != nil {
		return fmt.Errorf("clear display: %w", err)
	}
	a.log.Info("connected to display",
		logx.String("driver", a.cfg.Display.Resolved().Driver),
		logx.Int("width", a.sink.Width()),
		logx.Int("height", a.sink.Height()),
	)

	scfg, err := scheduler.ConfigFrom(a.cfg)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(scfg, a.sink, a.registry,
		scheduler.WithLogger(a.logs.Logger()),
		scheduler.WithBus(a.bus),
		scheduler.WithDeps(widget.Deps{Text: a.text, Log: a.logs.Logger().With(logx.String("comp", "widget"))}),
	)
	if err != nil {
		return err
	}
	a.sched = sched
	return nil
}

// Start opens the display, loads the widgets, draws the first full frame
// and starts the refresh metronome plus the supporting loops.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	if err := a.openDisplay(); err != nil {
		return err
	}

	rep := a.sched.LoadWidgets(a.cfg.Widgets)
	for _, f := range rep.Failed {
		a.log.Warn("widget not loaded", logx.String("widget", f.Name), logx.Err(f.Err))
	}
	if rep.Loaded() == 0 {
		a.log.Warn("no widgets loaded; the display will stay blank")
	}

	tic := time.Now()
	pass := a.sched.PopulateDisplay(time.Now())
	a.log.Info("display populated",
		logx.String("pass", pass.ID),
		logx.Int("completed", len(pass.Completed)),
		logx.Int("abandoned", len(pass.Abandoned)),
		logx.Duration("took", time.Since(tic)),
	)

	metro, err := metronome.New(a.sched.TickInterval(), a.sched.RefreshDisplay,
		metronome.WithName("refreshDisplay"),
		metronome.WithWait(true),
		metronome.WithLogger(a.logs.Logger()),
	)
	if err != nil {
		return err
	}
	a.metro = metro
	a.sup.Go0("metronome", metro.Run)

	if err := a.startFullRefresh(); err != nil {
		return err
	}
	if err := a.startMetrics(); err != nil {
		return err
	}
	a.startEventLog()
	a.startConfigReload()
	a.startSystemd(rep)

	a.log.Info("app started",
		logx.Duration("tick", a.metro.Interval()),
		logx.Int("widgets", rep.Loaded()),
	)
	return nil
}

// startFullRefresh schedules the periodic anti-ghosting refresh.
func (a *App) startFullRefresh() error {
	sched, err := parseFullRefresh(a.cfg.Scheduler.FullRefresh)
	if err != nil || sched == nil {
		return err
	}
	loc, err := a.cfg.Scheduler.Location()
	if err != nil {
		return err
	}
	a.cron = cron.New(cron.WithParser(cronParser), cron.WithLocation(loc))
	a.cron.Schedule(sched, cron.FuncJob(func() {
		a.log.Debug("full refresh requested")
		a.sched.RequestFullRefresh()
	}))
	a.cron.Start()
	a.log.Info("full refresh scheduled", logx.String("spec", a.cfg.Scheduler.FullRefresh))
	return nil
}

func (a *App) startMetrics() error {
	mc := a.cfg.Metrics
	if mc == nil || !mc.Enabled {
		return nil
	}
	a.collector = metrics.NewCollector(a.bus, a.logs.Logger())
	a.sup.Go0("metrics.collector", a.collector.Run)
	a.server = metrics.NewServer(*mc, a.collector, a.logs.Logger())
	if err := a.server.Start(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// startEventLog writes scheduler events to the trace log.
func (a *App) startEventLog() {
	if !a.log.Enabled(logx.LevelTrace) {
		return
	}
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Trace("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	})
}

func (a *App) startSystemd(rep scheduler.LoadReport) {
	if err := a.sd.Ready(); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	}
	if err := a.sd.Status(fmt.Sprintf("%d fast, %d regular widgets", len(rep.Fast), len(rep.Regular))); err != nil {
		a.log.Debug("systemd status failed", logx.Err(err))
	}
	every := a.sd.WatchdogInterval()
	if every <= 0 {
		return
	}
	a.log.Info("systemd watchdog enabled", logx.Duration("interval", every))
	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		return a.sd.Watchdog(c, every, func() bool { return !a.metro.Stopped() })
	})
}

// startConfigReload follows the config file. Logging changes apply live;
// anything else is logged as needing a restart.
func (a *App) startConfigReload() {
	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))

	sub, unsub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer unsub()
		last := a.cfgm.Current()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// keep only the newest of a burst
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(last, next)
				last = next
			}
		}
	})
	a.sup.GoRestart("config.watch", supervisor.RestartPolicy{MinBackoff: time.Second, MaxBackoff: 30 * time.Second}, a.cfgm.Watch)
}

func (a *App) applyConfig(prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.logs.Apply(logConfig(next.Logging))
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
	if config.RequiresRestart(sections) {
		a.log.Warn("config change requires a restart to take effect", logx.String("changed", strings.Join(sections, ",")))
	}
}

// Stop shuts everything down in reverse start order. Each step is bounded
// so one stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if err := a.sd.Stopping(); err != nil {
		a.log.Debug("systemd notify failed", logx.Err(err))
	}

	if a.metro != nil {
		a.metro.Stop()
	}
	a.sup.Cancel()

	var errs []error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	if a.cron != nil {
		step("cron", time.Second, func(c context.Context) error {
			select {
			case <-a.cron.Stop().Done():
				return nil
			case <-c.Done():
				return c.Err()
			}
		})
	}
	if a.sched != nil {
		step("regular passes", 2*time.Second, a.sched.StopPasses)
		step("widgets", 2*time.Second, func(context.Context) error {
			if err := a.sched.UnloadWidgets(); err != nil {
				a.log.Debug("widget cleanup failed", logx.Err(err))
			}
			return nil
		})
	}
	if a.server != nil {
		step("metrics", time.Second, a.server.Stop)
	}
	step("supervisor", 2*time.Second, a.sup.Wait)
	if a.sink != nil && a.ownSink {
		step("display", time.Second, func(context.Context) error { return a.sink.Close() })
	}

	a.log.Info("stopped")
	_ = a.logs.Close()
	return errors.Join(errs...)
}

// PreviewOptions mirrors scheduler.PreviewOptions for the CLI.
type PreviewOptions = scheduler.PreviewOptions

// Preview runs one configured widget on its own, enabled or not.
func (a *App) Preview(ctx context.Context, name string, opts PreviewOptions) (scheduler.PreviewReport, error) {
	var decl *config.WidgetConfig
	for i := range a.cfg.Widgets {
		if a.cfg.Widgets[i].Name == name {
			d := a.cfg.Widgets[i]
			decl = &d
			break
		}
	}
	if decl == nil {
		return scheduler.PreviewReport{Widget: name}, fmt.Errorf("%w: %q not in config file", scheduler.ErrUnknownWidget, name)
	}
	decl.Enabled = true

	if err := a.openDisplay(); err != nil {
		return scheduler.PreviewReport{Widget: name}, err
	}
	defer func() {
		if a.ownSink {
			if err := a.sink.Close(); err != nil {
				a.log.Debug("display close failed", logx.Err(err))
			}
		}
		_ = a.logs.Close()
	}()

	rep := a.sched.LoadWidgets([]config.WidgetConfig{*decl})
	if len(rep.Failed) > 0 {
		return scheduler.PreviewReport{Widget: name}, rep.Err()
	}
	kind := "normal"
	if len(rep.Fast) > 0 {
		kind = "fast"
	}
	a.log.Info("imported widget", logx.String("widget", name), logx.String("tier", kind))
	return a.sched.Preview(ctx, name, opts)
}
