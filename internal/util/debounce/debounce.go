// Package debounce provides single-shot, cancellable scheduled tasks.
//
// A Debouncer holds at most one pending task. Triggering it again cancels the
// pending task and restarts the quiet window, so only the last trigger inside
// a burst ever runs.
package debounce

import (
	"sync"
	"time"
)

// Debouncer collapses bursts of triggers into one delayed call
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	armed   bool
	running int
}

// New creates a Debouncer with the given quiet window
func New(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Window returns the quiet window
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Trigger schedules fn to run once the window elapses without another
// Trigger or Cancel. Any previously pending fn is cancelled.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	gen := d.gen
	d.armed = true

	if d.window <= 0 {
		d.armed = false
		d.running++
		go d.run(fn)
		return
	}

	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		// A timer that already fired can lose the race with Stop; the
		// generation check drops it.
		if gen != d.gen || !d.armed {
			d.mu.Unlock()
			return
		}
		d.armed = false
		d.timer = nil
		d.running++
		d.mu.Unlock()

		d.run(fn)
	})
}

func (d *Debouncer) run(fn func()) {
	defer func() {
		d.mu.Lock()
		d.running--
		d.mu.Unlock()
	}()
	fn()
}

// Cancel drops the pending task, returning true if one was pending
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	wasArmed := d.armed
	d.stopLocked()
	d.gen++
	return wasArmed
}

// Pending reports whether a task is waiting for its window to elapse or
// is still running
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed || d.running > 0
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.armed = false
}
