// Package timeline serializes everything that touches a kiosk session:
// operator calls, timer callbacks and the results of camera or
// compositor I/O all run one at a time on a single Timeline.
package timeline

import (
	"context"
	"sync"
	"time"
)

// Timeline is a single logical event thread.
type Timeline struct {
	mu    sync.Mutex
	clock Clock
	sync  bool

	queue []func()
	after []func()

	// Emitted callbacks awaiting delivery, in commit order. One caller
	// drains them at a time.
	pending    []func()
	delivering bool

	wg sync.WaitGroup
}

// New creates a Timeline whose suspended operations run on their own
// goroutines.
func New(clock Clock) *Timeline {
	if clock == nil {
		clock = RealClock{}
	}
	return &Timeline{clock: clock}
}

// NewSynchronous creates a Timeline whose suspended operations run
// inline. Their results are still delivered after the calling step
// completes, so event order matches the asynchronous Timeline.
func NewSynchronous(clock Clock) *Timeline {
	tl := New(clock)
	tl.sync = true
	return tl
}

// Clock returns the clock driving the timeline.
func (tl *Timeline) Clock() Clock {
	return tl.clock
}

// Now returns the current time of the timeline's clock.
func (tl *Timeline) Now() time.Time {
	return tl.clock.Now()
}

// Run executes f on the timeline. Work queued by f runs before Run
// releases the timeline; callbacks registered with Emit run afterwards.
// Run is not reentrant.
func (tl *Timeline) Run(f func()) {
	tl.mu.Lock()
	f()
	for len(tl.queue) > 0 {
		next := tl.queue[0]
		tl.queue = tl.queue[1:]
		next()
	}
	tl.pending = append(tl.pending, tl.after...)
	tl.after = nil
	tl.mu.Unlock()

	tl.deliver()
}

// deliver runs emitted callbacks one at a time in the order their steps
// committed. When another caller is already delivering, it picks up
// whatever this step emitted.
func (tl *Timeline) deliver() {
	tl.mu.Lock()
	if tl.delivering {
		tl.mu.Unlock()
		return
	}
	tl.delivering = true

	for len(tl.pending) > 0 {
		fn := tl.pending[0]
		tl.pending = tl.pending[1:]
		tl.mu.Unlock()
		fn()
		tl.mu.Lock()
	}
	tl.delivering = false
	tl.mu.Unlock()
}

// Emit registers f to run once the current step has released the
// timeline. Callbacks from every step are delivered one at a time in
// commit order. Listeners invoked through Emit may call back into the
// timeline; what they emit is delivered once they return. Emit must be
// called on the timeline.
func (tl *Timeline) Emit(f func()) {
	tl.after = append(tl.after, f)
}

// post queues f to run on the timeline before the current step ends.
func (tl *Timeline) post(f func()) {
	tl.queue = append(tl.queue, f)
}

// Wait blocks until every in-flight suspended operation has resumed.
func (tl *Timeline) Wait() {
	tl.wg.Wait()
}

// Handle is a cancellable callback scheduled on the timeline.
type Handle struct {
	timer   Timer
	stopped bool
	fired   bool
}

// AfterFunc schedules f to run on the timeline after d. It must be
// called on the timeline.
func (tl *Timeline) AfterFunc(d time.Duration, f func()) *Handle {
	h := &Handle{}
	h.timer = tl.clock.AfterFunc(d, func() {
		tl.Run(func() {
			if h.stopped || h.fired {
				return
			}
			h.fired = true
			f()
		})
	})
	return h
}

// Stop cancels the callback. Once Stop returns the callback will not
// run, even if its clock timer already fired. It must be called on the
// timeline and reports whether the callback was still pending.
func (h *Handle) Stop() bool {
	if h == nil || h.stopped || h.fired {
		return false
	}
	h.stopped = true
	h.timer.Stop()
	return true
}

// Suspend runs op off the timeline and hands its result to resume on the
// timeline. It must be called on the timeline.
func Suspend[T any](tl *Timeline, ctx context.Context, op func(context.Context) (T, error), resume func(T, error)) {
	if tl.sync {
		v, err := op(ctx)
		tl.post(func() { resume(v, err) })
		return
	}

	tl.wg.Add(1)
	go func() {
		defer tl.wg.Done()
		v, err := op(ctx)
		tl.Run(func() { resume(v, err) })
	}()
}
