package dodge

import (
	"sync"
	"time"
)

const DefaultUpdateInterval = 150 * time.Millisecond

// Throttle - limits how often periodic score updates go out. A death is
// never held back.
type Throttle struct {
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	last      time.Time
	lastAlive bool
	sent      bool
}

func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}

	return &Throttle{interval: interval, now: time.Now}
}

// Allow - reports whether an update with this alive flag may be sent now,
// and records it if so.
func (that *Throttle) Allow(alive bool) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	now := that.now()

	died := that.sent && that.lastAlive && !alive
	if that.sent && !died && now.Sub(that.last) < that.interval {
		return false
	}

	that.last = now
	that.lastAlive = alive
	that.sent = true

	return true
}

// Report - forwards the update unless it is throttled.
func (that *Throttle) Report(target Synchronizer, score int, alive bool) error {
	if !that.Allow(alive) {
		return nil
	}

	return target.ReportLocalUpdate(score, alive)
}

// Reset - the next update passes; used when a new round starts.
func (that *Throttle) Reset() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sent = false
}
