package countdown

import (
	"sync/atomic"
	"testing"
	"time"
)

const window = 2 * time.Hour

func TestAtNearEndOfWindow(t *testing.T) {
	now := time.Now()
	createdAt := now.Add(-119 * time.Minute)

	snap := At(createdAt, window, now)
	if snap.Expired {
		t.Fatal("119 minutes in: window should still be open")
	}
	if snap.Hours != 0 || snap.Minutes != 1 || snap.Seconds != 0 {
		t.Errorf("snapshot = %+v, want 0h 1m 0s", snap)
	}
}

func TestAtPastWindow(t *testing.T) {
	now := time.Now()
	createdAt := now.Add(-121 * time.Minute)

	snap := At(createdAt, window, now)
	if !snap.Expired {
		t.Fatal("121 minutes in: window should be expired")
	}
	if snap.Hours != 0 || snap.Minutes != 0 || snap.Seconds != 0 {
		t.Errorf("expired snapshot = %+v, want zeroes", snap)
	}
}

func TestAtSplitsUnits(t *testing.T) {
	now := time.Now()
	createdAt := now.Add(-(25*time.Minute + 30*time.Second))

	snap := At(createdAt, window, now)
	if snap.Hours != 1 || snap.Minutes != 34 || snap.Seconds != 30 {
		t.Errorf("snapshot = %+v, want 1h 34m 30s", snap)
	}
}

func TestRemainingDerivationIsIdempotent(t *testing.T) {
	now := time.Now()
	createdAt := now.Add(-time.Hour)

	first := Remaining(createdAt, window, now)
	second := Remaining(createdAt, window, now)
	if first != second {
		t.Errorf("remaining differs across derivations: %v vs %v", first, second)
	}
	if first != time.Hour {
		t.Errorf("remaining = %v, want 1h", first)
	}
}

func TestTimerFiresExpiryExactlyOnce(t *testing.T) {
	var fired int32
	done := make(chan struct{})

	timer := NewTimer(time.Now().Add(-3*time.Hour), window, func() {
		atomic.AddInt32(&fired, 1)
		close(done)
	})
	timer.Start()
	defer timer.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry callback not fired for an already-closed window")
	}

	// give a second loop iteration a chance to double-fire
	time.Sleep(1500 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 1 {
		t.Errorf("expiry fired %d times, want exactly 1", n)
	}
}

func TestStopBeforeStartSuppressesClosedWindow(t *testing.T) {
	var fired int32
	timer := NewTimer(time.Now().Add(-3*time.Hour), window, func() {
		atomic.AddInt32(&fired, 1)
	})
	timer.Stop()
	timer.Start()

	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Errorf("timer stopped before starting fired %d times", n)
	}
}

func TestStoppedTimerDoesNotFire(t *testing.T) {
	var fired int32
	timer := NewTimer(time.Now(), 2*time.Second, func() {
		atomic.AddInt32(&fired, 1)
	})
	timer.Start()
	timer.Stop()
	timer.Stop() // idempotent

	time.Sleep(3 * time.Second)
	if n := atomic.LoadInt32(&fired); n != 0 {
		t.Errorf("stopped timer fired %d times", n)
	}
}
