package scheduler

import (
	"sync"
	"time"
)

// Timer is a single-slot delayed callback. Arming it again replaces the
// pending callback; the callback always runs on the owning Loop.
type Timer struct {
	loop *Loop

	mu    sync.Mutex
	t     *time.Timer
	gen   uint64
	armed bool
}

func (l *Loop) NewTimer() *Timer {
	return &Timer{loop: l}
}

// Arm schedules fn after d, canceling whatever was armed before.
func (t *Timer) Arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.t != nil {
		t.t.Stop()
	}
	t.gen++
	gen := t.gen
	t.armed = true
	t.t = time.AfterFunc(d, func() {
		_ = t.loop.Post(func() {
			if !t.claim(gen) {
				return
			}
			fn()
		})
	})
}

// Cancel disarms the timer. A callback already handed to the loop is dropped.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	t.gen++
	t.armed = false
}

func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// claim reports whether gen is still the current arming and marks it fired.
func (t *Timer) claim(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return false
	}
	t.armed = false
	t.t = nil
	return true
}
