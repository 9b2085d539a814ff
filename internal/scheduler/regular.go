package scheduler

import (
	"context"
	"image"
	"time"

	"github.com/oklog/ulid/v2"

	"infoscreen/internal/workpool"
	"infoscreen/pkg/logx"
)

// PassReport summarises one regular-tier pass.
type PassReport struct {
	ID        string
	At        time.Time
	Due       int
	Submitted []string
	Completed []string
	Abandoned []string
	Failed    []string
	// Skipped widgets still had a draw from an earlier pass running.
	Skipped  []string
	Duration time.Duration
	// Err is ErrUnloaded when the pass was refused.
	Err error
}

type pending struct {
	e    *entry
	h    *workpool.Handle
	snap *image.Gray
}

// Due reports whether a widget with the given interval is drawn for at.
func Due(at time.Time, interval int) bool {
	if interval <= 0 {
		interval = 1
	}
	return at.Minute()%interval == 0
}

// RedrawRegularWidgets draws every regular widget due at at, or all of them
// when force is set, on a fresh pool. It waits at most RegularTimeout for the
// draws; the ones still running are abandoned and keep their previous image
// on screen. The pool is torn down before returning.
func (s *Scheduler) RedrawRegularWidgets(at time.Time, force bool) PassReport {
	start := time.Now()
	rep := PassReport{ID: ulid.Make().String(), At: at}
	log := s.log.With(logx.String("pass", rep.ID))
	if s.unloaded.Load() {
		rep.Err = ErrUnloaded
		return rep
	}

	due := make([]*entry, 0, len(s.regularWidgets))
	for _, e := range s.regularWidgets {
		if force || Due(at, e.info.RefreshInterval) {
			due = append(due, e)
		}
	}
	rep.Due = len(due)
	if len(due) == 0 {
		return rep
	}

	pool := workpool.New(workpool.Config{
		Name:    "regular",
		Workers: s.cfg.RegularWorkers,
		Queue:   len(due),
		Log:     s.log,
	})
	defer pool.Terminate()

	jobs := make([]*pending, 0, len(due))
	for _, e := range due {
		e := e // per-iteration copy (go 1.21 loop semantics)
		name := e.info.Name
		if !e.busy.CompareAndSwap(false, true) {
			rep.Skipped = append(rep.Skipped, name)
			if s.throttle.Allow("busy:" + name) {
				log.Warn("skipping widget", logx.String("widget", name), logx.Err(ErrBusy))
			}
			s.publish(EventSkip, SkipEvent{Tier: TierRegular, Widget: name, Err: ErrBusy.Error()})
			continue
		}
		p := &pending{e: e}
		h, err := pool.Submit(context.Background(), name, drawJob(e, at, &p.snap), func(h *workpool.Handle, err error) {
			e.busy.Store(false)
			s.publish(EventDraw, DrawEvent{Tier: TierRegular, Widget: e.info.Name, Duration: h.Duration(), Err: errString(err)})
		})
		if err != nil {
			e.busy.Store(false)
			rep.Failed = append(rep.Failed, name)
			log.Warn("regular submit failed", logx.String("widget", name), logx.Err(err))
			continue
		}
		p.h = h
		jobs = append(jobs, p)
		rep.Submitted = append(rep.Submitted, name)
	}

	deadline := time.NewTimer(s.cfg.RegularTimeout)
	defer deadline.Stop()
wait:
	for _, p := range jobs {
		select {
		case <-p.h.Done():
		case <-deadline.C:
			break wait
		case <-s.passCtx.Done():
			break wait
		}
	}
	stopped := s.passCtx.Err() != nil

	for _, p := range jobs {
		name := p.e.info.Name
		if !p.h.Ready() {
			rep.Abandoned = append(rep.Abandoned, name)
			if stopped {
				log.Debug("regular draw abandoned on stop", logx.String("widget", name))
				continue
			}
			log.Warn("regular worker not finished in time",
				logx.String("widget", name),
				logx.Duration("timeout", s.cfg.RegularTimeout),
				logx.Err(ErrDrawTimeout),
			)
			s.publish(EventTimeout, TimeoutEvent{Widget: name, Pass: rep.ID})
			continue
		}
		if err := p.h.Err(); err != nil {
			rep.Failed = append(rep.Failed, name)
			if s.throttle.Allow("fail:" + name) {
				log.Warn("widget draw failed", logx.String("widget", name), logx.Err(err))
			}
			continue
		}
		s.regularMu.Lock()
		s.regularQueue = append(s.regularQueue, result{name: name, rect: p.e.info.Rect, invert: p.e.info.Invert, img: p.snap})
		s.regularMu.Unlock()
		rep.Completed = append(rep.Completed, name)
	}

	rep.Duration = time.Since(start)
	log.Debug("regular pass done",
		logx.Time("at", at),
		logx.Int("due", rep.Due),
		logx.Int("completed", len(rep.Completed)),
		logx.Int("abandoned", len(rep.Abandoned)),
		logx.Int("failed", len(rep.Failed)),
		logx.Int("running", pool.InFlight()),
		logx.Duration("took", rep.Duration),
	)
	s.publish(EventPass, rep)
	return rep
}
