// Package presence implements a sliding-window presence tracker.
//
// It consumes, once per fresh inference, a boolean "is the watched class
// visible this frame" signal and decides when sustained presence should
// authorize an automatic capture. Presence is accumulated as closed periods
// plus at most one open period; a trigger fires when the accumulated presence
// within the trailing window crosses a threshold fraction, subject to a
// one-window cooldown between firings.
package presence

import (
	"sync"
	"time"

	"github.com/grovesy/watchpost/internal/log"
)

// DefaultThreshold is the fraction of the window that must be covered by
// presence before a trigger fires. Requiring 80% rather than unbroken
// presence tolerates brief occlusions and missed detections without
// resetting accumulated presence, while still rejecting flicker.
const DefaultThreshold = 0.8

// WindowChoices are the watch intervals offered to the UI, in seconds.
// 0 disables automatic capture entirely.
var WindowChoices = []int{0, 5, 10, 20, 30, 60}

// Period is a closed interval during which the watched class was
// continuously detected.
type Period struct {
	Start time.Time
	End   time.Time
}

// Tracker is the sliding-window state machine. A zero window means
// NOT_WATCHING: every Observe call resets state and no trigger is possible.
type Tracker struct {
	mu sync.Mutex

	window    time.Duration
	threshold float64

	periods          []Period
	openStart        time.Time
	hasOpen          bool
	currentlyPresent bool

	lastCapture time.Time

	// OnTrigger is invoked synchronously from Observe when a trigger fires.
	OnTrigger func(now time.Time)
}

// NewTracker creates a tracker with the given window. Use window 0 to start
// disabled (manual capture only).
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		window:    window,
		threshold: DefaultThreshold,
	}
}

// Window returns the current watch window.
func (t *Tracker) Window() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window
}

// SetWindow changes the watch window and fully resets accumulated state.
// Stale periods never apply to a new interval: the very next Observe call
// behaves as if tracking just started.
func (t *Tracker) SetWindow(window time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window = window
	t.resetLocked()
}

// Reset clears all accumulated presence state, including the cooldown.
// Called when the watched class changes or detection stops.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

func (t *Tracker) resetLocked() {
	t.periods = nil
	t.hasOpen = false
	t.currentlyPresent = false
	t.lastCapture = time.Time{}
}

// Observe advances the state machine by one frame and reports whether a
// trigger fired. It must be called once per fresh inference result, never on
// stale detections.
func (t *Tracker) Observe(now time.Time, present bool) bool {
	t.mu.Lock()
	fired, callback := t.observeLocked(now, present)
	t.mu.Unlock()

	// The callback runs outside the lock so it may call back into the
	// tracker (reset, window change) without deadlocking.
	if fired && callback != nil {
		callback(now)
	}
	return fired
}

func (t *Tracker) observeLocked(now time.Time, present bool) (bool, func(time.Time)) {
	if t.window <= 0 {
		t.resetLocked()
		return false, nil
	}

	windowStart := now.Add(-t.window)

	// Presence edge transitions
	if present && !t.currentlyPresent {
		t.openStart = now
		t.hasOpen = true
	}
	if !present && t.currentlyPresent && t.hasOpen {
		t.periods = append(t.periods, Period{Start: t.openStart, End: now})
		t.hasOpen = false
	}
	t.currentlyPresent = present

	t.pruneLocked(windowStart)
	total := t.totalPresentLocked(windowStart, now)

	needed := time.Duration(t.threshold * float64(t.window))
	if total < needed {
		return false, nil
	}
	if !t.lastCapture.IsZero() && now.Sub(t.lastCapture) < t.window {
		// Cooldown: one full window between automatic captures.
		return false, nil
	}

	t.lastCapture = now

	// Re-baseline the window so a single long presence cannot re-trigger
	// every frame once the threshold is crossed. Periods ending before the
	// new window start are gone already; an open period that started before
	// it has its recorded start clamped forward.
	if t.hasOpen && t.openStart.Before(windowStart) {
		t.openStart = windowStart
	}

	log.Info("presence trigger fired",
		"window", t.window,
		"present", total,
	)

	return true, t.OnTrigger
}

// pruneLocked drops closed periods that ended before the window start.
func (t *Tracker) pruneLocked(windowStart time.Time) {
	kept := t.periods[:0]
	for _, p := range t.periods {
		if !p.End.Before(windowStart) {
			kept = append(kept, p)
		}
	}
	t.periods = kept
}

// totalPresentLocked sums the intersection of every period with the window,
// including the clipped open period.
func (t *Tracker) totalPresentLocked(windowStart, now time.Time) time.Duration {
	var total time.Duration
	for _, p := range t.periods {
		total += overlap(p.Start, p.End, windowStart, now)
	}
	if t.hasOpen {
		total += overlap(t.openStart, now, windowStart, now)
	}
	return total
}

// TotalPresent returns the accumulated presence within the trailing window
// ending at now. Intended for status reporting.
func (t *Tracker) TotalPresent(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.window <= 0 {
		return 0
	}
	return t.totalPresentLocked(now.Add(-t.window), now)
}

func overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if end.Before(start) {
		return 0
	}
	return end.Sub(start)
}
