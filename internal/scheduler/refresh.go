package scheduler

import (
	"time"

	"infoscreen/internal/display"
	"infoscreen/pkg/logx"
)

// RefreshDisplay is the per-tick cycle. It runs every second when fast
// widgets exist and every minute otherwise.
//
// Fast results are composited and the next second is dispatched right away.
// On the minute (or on every tick without fast widgets) regular results are
// composited too, the canvas is pushed with a greyscale partial refresh and
// the next regular pass is started in the background. Other ticks push a
// monochrome partial refresh.
func (s *Scheduler) RefreshDisplay(now time.Time) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if s.unloaded.Load() {
		return
	}

	s.PasteFastWidgets()
	s.RedrawFastWidgets(now.Add(time.Second))

	if now.Second() == 0 || !s.fastUpdates {
		s.PasteRegularWidgets()
		mode := display.GreyPartial
		if s.fullRefresh.Swap(false) {
			mode = display.FullFlash
		}
		s.push(mode)

		if s.stopping {
			return
		}
		next := now.Add(time.Minute)
		s.beginPass()
		go func() {
			defer s.endPass()
			s.RedrawRegularWidgets(next, false)
		}()
		return
	}
	s.push(display.MonoPartial)
}

// PopulateDisplay draws everything once and pushes a full refresh. It is
// meant to run before ticking starts.
func (s *Scheduler) PopulateDisplay(now time.Time) PassReport {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	start := time.Now()
	s.log.Debug("drawing regular widgets")
	rep := s.RedrawRegularWidgets(now, true)

	s.log.Debug("drawing fast widgets")
	s.RedrawFastWidgets(now.Add(time.Second))
	s.waitFast(s.cfg.PopulateWait)
	s.log.Debug("drawing all widgets done", logx.Duration("took", time.Since(start)))

	s.PasteFastWidgets()
	s.PasteRegularWidgets()
	s.push(display.FullFlash)
	return rep
}

// waitFast waits up to d for the outstanding fast draws.
func (s *Scheduler) waitFast(d time.Duration) {
	s.outMu.Lock()
	handles := append(s.outstanding[:0:0], s.outstanding...)
	s.outMu.Unlock()

	t := time.NewTimer(d)
	defer t.Stop()
	for _, h := range handles {
		select {
		case <-h.Done():
		case <-t.C:
			return
		}
	}
}

// push copies the canvas to the sink and refreshes it. Only the tick and
// bootstrap paths call it, under refreshMu.
func (s *Scheduler) push(mode display.Mode) {
	start := time.Now()
	s.canvasMu.Lock()
	err := s.sink.SetBuffer(s.canvas)
	s.canvasMu.Unlock()
	if err == nil {
		err = s.sink.Refresh(mode)
	}
	dur := time.Since(start)
	if err != nil {
		if s.throttle.Allow("refresh") {
			s.log.Error("display refresh failed", logx.String("mode", mode.String()), logx.Err(err))
		}
	} else {
		s.log.Trace("display refreshed", logx.String("mode", mode.String()), logx.Duration("took", dur))
	}
	s.publish(EventRefresh, RefreshEvent{Mode: mode.String(), Duration: dur, Err: errString(err)})
}
