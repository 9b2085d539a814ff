package scheduler

import (
	"context"
	"fmt"
	"time"

	"infoscreen/internal/canvas"
	"infoscreen/internal/display"
	"infoscreen/pkg/logx"
)

// PreviewOptions controls the single-widget preview loop.
type PreviewOptions struct {
	// Loops is how many per-second redraws a fast widget gets.
	Loops int
	// Interval between loop iterations.
	Interval time.Duration
	// Settle is the pause between the first full refresh and the loop.
	Settle time.Duration
	// Now is the time source; defaults to time.Now.
	Now func() time.Time
}

// PreviewStep times one draw-and-push.
type PreviewStep struct {
	Mode    display.Mode
	Draw    time.Duration
	Refresh time.Duration
}

type PreviewReport struct {
	Widget string
	Steps  []PreviewStep
}

// Preview draws one loaded widget synchronously and pushes it with a full
// refresh. Fast widgets then get a short loop of monochrome partial
// refreshes. The widget is cleaned up afterwards.
func (s *Scheduler) Preview(ctx context.Context, name string, opts PreviewOptions) (PreviewReport, error) {
	rep := PreviewReport{Widget: name}
	if s.unloaded.Load() {
		return rep, ErrUnloaded
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	var e *entry
	for _, cand := range append(append([]*entry(nil), s.fastWidgets...), s.regularWidgets...) {
		if cand.info.Name == name {
			e = cand
			break
		}
	}
	if e == nil {
		return rep, fmt.Errorf("%w: %q is not loaded", ErrUnknownWidget, name)
	}
	log := s.log.With(logx.String("widget", name))
	defer func() {
		if err := s.UnloadWidgets(); err != nil {
			log.Debug("cleanup failed", logx.Err(err))
		}
	}()

	step := func(mode display.Mode, decorate bool) error {
		tic := time.Now()
		if err := e.w.Draw(ctx, opts.Now().Add(time.Second)); err != nil {
			return err
		}
		s.canvasMu.Lock()
		canvas.Paste(s.canvas, e.w.Canvas(), e.info.Rect, e.info.Invert, s.decor.Margin())
		s.canvasMu.Unlock()
		if decorate {
			s.PasteRegularWidgets()
		}
		toc := time.Now()
		s.push(mode)
		st := PreviewStep{Mode: mode, Draw: toc.Sub(tic), Refresh: time.Since(toc)}
		rep.Steps = append(rep.Steps, st)
		log.Info("preview step",
			logx.String("mode", mode.String()),
			logx.Duration("draw", st.Draw),
			logx.Duration("refresh", st.Refresh),
		)
		return nil
	}

	if err := step(display.Full, true); err != nil {
		return rep, err
	}
	if !e.info.FastUpdate {
		return rep, nil
	}

	if !sleepCtx(ctx, opts.Settle) {
		return rep, ctx.Err()
	}
	for i := 0; i < opts.Loops; i++ {
		tic := time.Now()
		if err := step(display.MonoPartial, false); err != nil {
			return rep, err
		}
		if !sleepCtx(ctx, opts.Interval-time.Since(tic)) {
			return rep, ctx.Err()
		}
	}
	return rep, nil
}

// sleepCtx returns false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
