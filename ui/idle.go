package ui

import (
	"time"

	"github.com/pthm-cable/hopalong/loop"
)

// toolbarIdle is how long the pointer must rest before the toolbar hides.
const toolbarIdle = 2 * time.Second

// IdleTimer tracks how long the pointer has been still.
type IdleTimer struct {
	clock   loop.Clock
	timeout time.Duration
	last    time.Time
}

// NewIdleTimer creates a timer that starts active.
func NewIdleTimer(clock loop.Clock, timeout time.Duration) *IdleTimer {
	return &IdleTimer{clock: clock, timeout: timeout, last: clock.Now()}
}

// Touch records pointer movement.
func (t *IdleTimer) Touch() {
	t.last = t.clock.Now()
}

// Idle reports whether timeout has passed since the last Touch.
func (t *IdleTimer) Idle() bool {
	return t.clock.Now().Sub(t.last) >= t.timeout
}

// toolbarShown reports whether the toolbar is drawn this frame.
func toolbarShown(reg *OverlayRegistry, idle *IdleTimer) bool {
	return reg.Visible(OverlayToolbar) && !idle.Idle()
}
