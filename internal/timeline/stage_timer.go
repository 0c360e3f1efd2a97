package timeline

import "time"

// StageTimer bounds how long a stage may wait for the customer. Starting
// it again cancels the previous run, and the expiry callback fires at most
// once per run. A zero duration disables the timer.
//
// All methods must be called on the timeline.
type StageTimer struct {
	tl        *Timeline
	duration  time.Duration
	startedAt time.Time
	handle    *Handle
}

// NewStageTimer creates an idle timer of the given duration.
func NewStageTimer(tl *Timeline, duration time.Duration) *StageTimer {
	return &StageTimer{tl: tl, duration: duration}
}

// Start (re)arms the timer with progress reset to zero.
func (t *StageTimer) Start(onExpire func()) {
	t.Stop()
	if t.duration <= 0 {
		return
	}

	t.startedAt = t.tl.Now()
	var handle *Handle
	handle = t.tl.AfterFunc(t.duration, func() {
		if t.handle == handle {
			t.handle = nil
		}
		onExpire()
	})
	t.handle = handle
}

// Stop cancels a running timer. It reports whether one was running.
func (t *StageTimer) Stop() bool {
	h := t.handle
	t.handle = nil
	return h.Stop()
}

// Active reports whether the timer is running.
func (t *StageTimer) Active() bool {
	return t.handle != nil
}

// Duration returns the configured window.
func (t *StageTimer) Duration() time.Duration {
	return t.duration
}

// Progress returns the elapsed fraction of the window in [0, 1]; zero
// when the timer is not running.
func (t *StageTimer) Progress() float64 {
	if !t.Active() {
		return 0
	}
	elapsed := t.tl.Now().Sub(t.startedAt)
	p := float64(elapsed) / float64(t.duration)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Remaining returns the time left before expiry; zero when not running.
func (t *StageTimer) Remaining() time.Duration {
	if !t.Active() {
		return 0
	}
	left := t.duration - t.tl.Now().Sub(t.startedAt)
	if left < 0 {
		return 0
	}
	return left
}
