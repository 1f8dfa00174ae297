// Package countdown derives the remaining payment window of a transaction
// from its creation time. The derivation is pure so a timer can be recreated
// at any point (process restart, consumer re-attach) without persisted state.
package countdown

import (
	"sync"
	"time"
)

// Snapshot is the remaining time broken into display units.
type Snapshot struct {
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	Seconds int  `json:"seconds"`
	Expired bool `json:"expired"`
}

// Remaining returns how much of the payment window is left at the given time.
// The result is negative once the window has passed.
func Remaining(createdAt time.Time, window time.Duration, now time.Time) time.Duration {
	return createdAt.Add(window).Sub(now)
}

// At derives the display snapshot for a point in time.
func At(createdAt time.Time, window time.Duration, now time.Time) Snapshot {
	left := Remaining(createdAt, window, now)
	if left <= 0 {
		return Snapshot{Expired: true}
	}
	secs := int(left / time.Second)
	return Snapshot{
		Hours:   secs / 3600,
		Minutes: (secs % 3600) / 60,
		Seconds: secs % 60,
	}
}

// Timer watches one payment window and fires an expiry callback exactly once
// when it closes. Stop cancels the timer; a stopped timer never fires. The
// callback runs on the timer's own goroutine.
type Timer struct {
	createdAt time.Time
	window    time.Duration
	onExpire  func()

	expireOnce sync.Once
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewTimer builds a timer for the window opened at createdAt. Start must be
// called to begin ticking.
func NewTimer(createdAt time.Time, window time.Duration, onExpire func()) *Timer {
	return &Timer{
		createdAt: createdAt,
		window:    window,
		onExpire:  onExpire,
		stop:      make(chan struct{}),
	}
}

// Snapshot returns the current remaining time.
func (t *Timer) Snapshot() Snapshot {
	return At(t.createdAt, t.window, time.Now())
}

// Start begins the once-per-second tick loop. If the window is already closed
// the expiry callback fires immediately.
func (t *Timer) Start() {
	go t.run()
}

func (t *Timer) run() {
	// a timer stopped before this goroutine ran must never fire, even when
	// the window is already closed
	select {
	case <-t.stop:
		return
	default:
	}

	if t.check() {
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if t.check() {
				return
			}
		}
	}
}

// check fires the expiry callback when the window has closed and reports
// whether the loop should end.
func (t *Timer) check() bool {
	if Remaining(t.createdAt, t.window, time.Now()) > 0 {
		return false
	}
	t.expireOnce.Do(func() {
		if t.onExpire != nil {
			t.onExpire()
		}
	})
	return true
}

// Stop cancels the timer. Safe to call more than once and after expiry.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}
