package session

import (
	"sync"
	"time"
)

// debouncer collapses bursts of triggers into one callback after a quiet
// period. The max-wait cap bounds how long a sustained trigger stream can
// defer the callback, so a continuous typing session still saves.
type debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	maxWait  time.Duration
	fn       func()
	timer    *time.Timer
	deadline time.Time
	stopped  bool
}

func newDebouncer(delay, maxWait time.Duration, fn func()) *debouncer {
	return &debouncer{delay: delay, maxWait: maxWait, fn: fn}
}

// trigger (re)arms the debounce timer.
func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	now := time.Now()
	if d.timer == nil {
		d.deadline = now.Add(d.maxWait)
	} else {
		d.timer.Stop()
	}
	wait := d.delay
	if remaining := d.deadline.Sub(now); remaining < wait {
		wait = remaining
	}
	if wait < 0 {
		wait = 0
	}
	d.timer = time.AfterFunc(wait, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// flush runs the callback immediately when a trigger is pending.
func (d *debouncer) flush() {
	d.mu.Lock()
	pending := d.timer != nil
	if pending {
		d.timer.Stop()
		d.timer = nil
	}
	stopped := d.stopped
	d.mu.Unlock()
	if pending && !stopped {
		d.fn()
	}
}

// stop cancels any pending trigger and refuses new ones.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
