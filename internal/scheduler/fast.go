package scheduler

import (
	"context"
	"image"
	"time"

	"infoscreen/internal/canvas"
	"infoscreen/internal/workpool"
	"infoscreen/pkg/logx"
)

// FastReport describes one fast-tier dispatch.
type FastReport struct {
	Submitted []string
	Skipped   []string
	// Err is ErrUnloaded when the dispatch was refused.
	Err error
}

// RedrawFastWidgets submits a draw for every fast widget that has no draw
// outstanding. Submission blocks while the pool is saturated.
func (s *Scheduler) RedrawFastWidgets(at time.Time) FastReport {
	var rep FastReport
	if s.unloaded.Load() {
		rep.Err = ErrUnloaded
		return rep
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()

	live := s.outstanding[:0]
	for _, h := range s.outstanding {
		if !h.Ready() {
			live = append(live, h)
		}
	}
	clear(s.outstanding[len(live):])
	s.outstanding = live

	for _, e := range s.fastWidgets {
		name := e.info.Name
		if s.isOutstanding(name) {
			rep.Skipped = append(rep.Skipped, name)
			if s.throttle.Allow("busy:" + name) {
				s.log.Debug("skipping widget", logx.String("widget", name), logx.Err(ErrBusy))
			}
			s.publish(EventSkip, SkipEvent{Tier: TierFast, Widget: name, Err: ErrBusy.Error()})
			continue
		}
		var snap *image.Gray
		h, err := s.fastPool.Submit(s.ctx, name, drawJob(e, at, &snap), s.fastDone(e, &snap))
		if err != nil {
			s.log.Debug("fast submit failed", logx.String("widget", name), logx.Err(err))
			continue
		}
		s.outstanding = append(s.outstanding, h)
		rep.Submitted = append(rep.Submitted, name)
	}
	return rep
}

func (s *Scheduler) isOutstanding(name string) bool {
	for _, h := range s.outstanding {
		if h.Name() == name {
			return true
		}
	}
	return false
}

// Outstanding lists fast widgets whose draw has not completed.
func (s *Scheduler) Outstanding() []string {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	out := make([]string, 0, len(s.outstanding))
	for _, h := range s.outstanding {
		if !h.Ready() {
			out = append(out, h.Name())
		}
	}
	return out
}

// drawJob draws e for at and leaves a copy of its canvas in *snap. The
// copy is what gets composited, so a later draw of the same widget cannot
// race the compositor.
func drawJob(e *entry, at time.Time, snap **image.Gray) workpool.Job {
	return func(ctx context.Context) error {
		if err := e.w.Draw(ctx, at); err != nil {
			return err
		}
		*snap = canvas.Clone(e.w.Canvas())
		return nil
	}
}

func (s *Scheduler) fastDone(e *entry, snap **image.Gray) func(*workpool.Handle, error) {
	return func(h *workpool.Handle, err error) {
		s.publish(EventDraw, DrawEvent{Tier: TierFast, Widget: e.info.Name, Duration: h.Duration(), Err: errString(err)})
		if err != nil {
			if s.throttle.Allow("fail:" + e.info.Name) {
				s.log.Warn("widget draw failed", logx.String("widget", e.info.Name), logx.Err(err))
			}
			return
		}
		s.fastMu.Lock()
		s.fastQueue = append(s.fastQueue, result{name: e.info.Name, rect: e.info.Rect, invert: e.info.Invert, img: *snap})
		s.fastMu.Unlock()
	}
}
