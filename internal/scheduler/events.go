package scheduler

import (
	"time"

	"infoscreen/internal/eventbus"
)

// Tier is the dispatch class of a widget.
type Tier string

const (
	TierFast    Tier = "fast"
	TierRegular Tier = "regular"
)

// Event types published on the bus.
const (
	EventDraw    = "widget.draw"
	EventSkip    = "widget.skip"
	EventTimeout = "widget.timeout"
	EventRefresh = "display.refresh"
	EventPass    = "regular.pass"
)

type DrawEvent struct {
	Tier     Tier
	Widget   string
	Duration time.Duration
	Err      string
}

type SkipEvent struct {
	Tier   Tier
	Widget string
	Err    string
}

type TimeoutEvent struct {
	Widget string
	Pass   string
}

type RefreshEvent struct {
	Mode     string
	Duration time.Duration
	Err      string
}

func (s *Scheduler) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
