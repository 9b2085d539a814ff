package logx

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxThrottleKeys bounds the limiter map; keys are widget names in practice.
const maxThrottleKeys = 1024

// Throttle rate-limits log lines per key.
//
// The scheduler runs once per second, so a widget that is stuck would
// otherwise produce one identical warning per tick.
type Throttle struct {
	every time.Duration
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewThrottle allows burst messages per key, refilled once every `every`.
func NewThrottle(every time.Duration, burst int) *Throttle {
	if every <= 0 {
		every = time.Minute
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{every: every, burst: burst, limiters: map[string]*rate.Limiter{}}
}

// Allow reports whether a message for key may be logged now.
// A nil Throttle allows everything.
func (t *Throttle) Allow(key string) bool {
	if t == nil {
		return true
	}
	key = strings.TrimSpace(key)
	t.mu.Lock()
	lim, ok := t.limiters[key]
	if !ok {
		if len(t.limiters) >= maxThrottleKeys {
			t.limiters = map[string]*rate.Limiter{}
		}
		lim = rate.NewLimiter(rate.Every(t.every), t.burst)
		t.limiters[key] = lim
	}
	t.mu.Unlock()
	return lim.Allow()
}
