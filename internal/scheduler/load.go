package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"infoscreen/internal/config"
	"infoscreen/internal/widget"
	"infoscreen/pkg/logx"
)

// LoadError records a widget that was dropped at load time.
type LoadError struct {
	Name string
	Err  error
}

func (e LoadError) Error() string { return e.Name + ": " + e.Err.Error() }
func (e LoadError) Unwrap() error { return e.Err }

// LoadReport summarises LoadWidgets.
type LoadReport struct {
	Fast     []string
	Regular  []string
	Disabled []string
	Failed   []LoadError
}

func (r LoadReport) Loaded() int { return len(r.Fast) + len(r.Regular) }

// Err joins every per-widget failure.
func (r LoadReport) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// LoadWidgets constructs every enabled widget in declaration order. A widget
// that fails to build is left out; the rest still load.
func (s *Scheduler) LoadWidgets(decls []config.WidgetConfig) LoadReport {
	var rep LoadReport
	seen := make(map[string]bool, len(decls)+len(s.fastWidgets)+len(s.regularWidgets))
	for _, e := range s.Widgets() {
		seen[e.Name] = true
	}

	for _, d := range decls {
		name := strings.TrimSpace(d.Name)
		if !d.Enabled {
			rep.Disabled = append(rep.Disabled, name)
			continue
		}
		e, err := s.build(d, seen)
		if err != nil {
			s.log.Warn("failed to add widget", logx.String("widget", name), logx.Err(err))
			rep.Failed = append(rep.Failed, LoadError{Name: name, Err: err})
			continue
		}
		seen[name] = true
		if e.info.FastUpdate {
			s.fastWidgets = append(s.fastWidgets, e)
			rep.Fast = append(rep.Fast, name)
		} else {
			s.regularWidgets = append(s.regularWidgets, e)
			rep.Regular = append(rep.Regular, name)
		}
		s.log.Debug("widget loaded",
			logx.String("widget", name),
			logx.String("kind", d.KindName()),
			logx.String("tier", string(tierOf(e))),
			logx.Any("rect", e.info.Rect),
		)
	}
	s.fastUpdates = len(s.fastWidgets) > 0
	s.log.Info("widgets loaded",
		logx.Int("fast", len(rep.Fast)),
		logx.Int("regular", len(rep.Regular)),
		logx.Int("failed", len(rep.Failed)),
	)
	return rep
}

func (s *Scheduler) build(d config.WidgetConfig, seen map[string]bool) (e *entry, err error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: widget without a name", ErrInvalidLayout)
	}
	if seen[name] {
		return nil, ErrDuplicateWidget
	}
	kind, ok := s.registry.Lookup(d.KindName())
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWidget, d.KindName())
	}
	rect, err := s.grid.Rect(string(d.Row), string(d.Col))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}

	fast := kind.FastUpdate
	if d.FastUpdate != nil {
		fast = *d.FastUpdate
	}
	interval := d.RefreshInterval
	if interval <= 0 {
		interval = kind.RefreshInterval
	}
	if interval <= 0 {
		interval = 1
	}
	spec := widget.Spec{
		Name:            name,
		Rect:            rect,
		FastUpdate:      fast,
		RefreshInterval: interval,
		Invert:          d.Invert,
		Background:      s.cfg.Background,
		Options:         d.Options,
	}

	defer func() {
		if r := recover(); r != nil {
			e, err = nil, fmt.Errorf("construct panic: %v", r)
		}
	}()
	deps := s.deps
	deps.Log = deps.Log.With(logx.String("widget", name))
	w, err := kind.New(spec, deps)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("factory for %q returned nil", kind.Name)
	}
	return &entry{w: w, info: widget.Info{
		Name:            name,
		Rect:            rect,
		FastUpdate:      fast,
		RefreshInterval: interval,
		Invert:          d.Invert,
	}}, nil
}

func tierOf(e *entry) Tier {
	if e.info.FastUpdate {
		return TierFast
	}
	return TierRegular
}
