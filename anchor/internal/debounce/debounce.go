// Package debounce provides the cancellable timer behind registry change
// notifications and hover events: scheduling again cancels and restarts the
// pending timer instead of stacking a second one.
package debounce

import (
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. System uses the runtime timers; tests use a
// ManualClock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// System is the wall clock.
var System Clock = systemClock{}

// Debouncer runs the most recently scheduled function once the window has
// elapsed without another Schedule.
type Debouncer struct {
	mu     sync.Mutex
	clock  Clock
	window time.Duration
	timer  Timer
	gen    uint64
	closed bool
}

// New creates a Debouncer. A nil clock means System.
func New(window time.Duration, clock Clock) *Debouncer {
	if clock == nil {
		clock = System
	}
	return &Debouncer{clock: clock, window: window}
}

// Window returns the debounce window.
func (d *Debouncer) Window() time.Duration { return d.window }

// Schedule cancels any pending call and schedules fn after the window.
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.window, func() { d.fire(gen, fn) })
}

// fire runs fn unless it was superseded or cancelled after the runtime
// already dequeued the timer.
func (d *Debouncer) fire(gen uint64, fn func()) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	fn()
}

// Cancel drops the pending call, if any, and reports whether there was one.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked()
}

func (d *Debouncer) cancelLocked() bool {
	d.gen++
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Close cancels the pending call; later Schedule calls are ignored.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.closed = true
}
