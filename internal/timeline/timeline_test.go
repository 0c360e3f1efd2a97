package timeline

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestTimeline(t *testing.T) (*Timeline, *FakeClock) {
	t.Helper()
	clock := NewFakeClock(epoch)
	return NewSynchronous(clock), clock
}

func TestFakeClock_AdvanceOrder(t *testing.T) {
	clock := NewFakeClock(epoch)

	var fired []string
	clock.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	clock.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	clock.AfterFunc(1*time.Second, func() {
		fired = append(fired, "b")
		// Scheduled inside the window, so it fires during the same Advance
		clock.AfterFunc(time.Second, func() { fired = append(fired, "b2") })
	})
	stopped := clock.AfterFunc(2*time.Second, func() { fired = append(fired, "never") })

	if !stopped.Stop() {
		t.Fatal("Stop() = false for pending timer")
	}
	if stopped.Stop() {
		t.Error("second Stop() = true, want false")
	}

	clock.Advance(5 * time.Second)

	want := []string{"a", "b", "b2", "c"}
	if !reflect.DeepEqual(fired, want) {
		t.Errorf("fired = %v, want %v", fired, want)
	}
	if got := clock.Now(); !got.Equal(epoch.Add(5 * time.Second)) {
		t.Errorf("Now() = %v, want epoch+5s", got)
	}
	if clock.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", clock.Pending())
	}
}

func TestFakeClock_NotYetDue(t *testing.T) {
	clock := NewFakeClock(epoch)
	fired := false
	clock.AfterFunc(2*time.Second, func() { fired = true })

	clock.Advance(1999 * time.Millisecond)
	if fired {
		t.Fatal("callback fired early")
	}
	clock.Advance(time.Millisecond)
	if !fired {
		t.Fatal("callback did not fire at deadline")
	}
}

func TestTimeline_HandleStopIsSynchronous(t *testing.T) {
	tl, clock := newTestTimeline(t)

	fired := 0
	var h *Handle
	tl.Run(func() {
		h = tl.AfterFunc(time.Second, func() { fired++ })
	})

	clock.Advance(500 * time.Millisecond)
	tl.Run(func() {
		if !h.Stop() {
			t.Error("Stop() = false for pending handle")
		}
	})
	clock.Advance(time.Second)

	if fired != 0 {
		t.Errorf("stopped callback fired %d times", fired)
	}
}

func TestTimeline_EmitRunsAfterRelease(t *testing.T) {
	tl, _ := newTestTimeline(t)

	var order []string
	tl.Run(func() {
		tl.Emit(func() {
			// Reentering the timeline from a listener must not deadlock
			tl.Run(func() { order = append(order, "listener-run") })
		})
		order = append(order, "step")
	})

	want := []string{"step", "listener-run"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestTimeline_EmitOrderAcrossGoroutines(t *testing.T) {
	tl := New(NewFakeClock(epoch))

	var mu sync.Mutex
	var got []string
	record := func(s string) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		tl.Run(func() {
			tl.Emit(func() {
				close(entered)
				<-release
				record("first")
			})
		})
	}()

	<-entered
	// Commits while the first step's listener is still running
	tl.Run(func() { tl.Emit(func() { record("second") }) })
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("delivery order = %v, want %v", got, want)
	}
}

func TestTimeline_NestedEmitDeliveredAfterListener(t *testing.T) {
	tl, _ := newTestTimeline(t)

	var order []string
	tl.Run(func() {
		tl.Emit(func() {
			tl.Run(func() {
				tl.Emit(func() { order = append(order, "nested") })
			})
			order = append(order, "outer")
		})
	})

	want := []string{"outer", "nested"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestSuspend_Synchronous(t *testing.T) {
	tl, _ := newTestTimeline(t)

	var order []string
	tl.Run(func() {
		Suspend(tl, context.Background(), func(ctx context.Context) (string, error) {
			order = append(order, "op")
			return "photo.jpg", nil
		}, func(path string, err error) {
			order = append(order, "resume:"+path)
		})
		order = append(order, "after-suspend")
	})

	want := []string{"op", "after-suspend", "resume:photo.jpg"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestSuspend_Async(t *testing.T) {
	tl := New(NewFakeClock(epoch))
	errBoom := errors.New("boom")

	done := make(chan error, 1)
	tl.Run(func() {
		Suspend(tl, context.Background(), func(ctx context.Context) (int, error) {
			return 0, errBoom
		}, func(_ int, err error) {
			done <- err
		})
	})
	tl.Wait()

	select {
	case err := <-done:
		if !errors.Is(err, errBoom) {
			t.Errorf("resume error = %v, want %v", err, errBoom)
		}
	default:
		t.Fatal("resume did not run")
	}
}

func TestStageTimer_FiresOnce(t *testing.T) {
	tl, clock := newTestTimeline(t)
	timer := NewStageTimer(tl, 10*time.Second)

	fired := 0
	tl.Run(func() { timer.Start(func() { fired++ }) })

	clock.Advance(4 * time.Second)
	tl.Run(func() {
		if got := timer.Progress(); got < 0.39 || got > 0.41 {
			t.Errorf("Progress() = %v, want 0.4", got)
		}
		if got := timer.Remaining(); got != 6*time.Second {
			t.Errorf("Remaining() = %v, want 6s", got)
		}
	})

	clock.Advance(time.Minute)
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
	tl.Run(func() {
		if timer.Active() || timer.Progress() != 0 {
			t.Error("expired timer still reports activity")
		}
	})
}

func TestStageTimer_RestartCancelsPrevious(t *testing.T) {
	tl, clock := newTestTimeline(t)
	timer := NewStageTimer(tl, 10*time.Second)

	var fired []string
	tl.Run(func() { timer.Start(func() { fired = append(fired, "first") }) })
	clock.Advance(8 * time.Second)
	tl.Run(func() { timer.Start(func() { fired = append(fired, "second") }) })

	// The first window would have closed here
	clock.Advance(5 * time.Second)
	if len(fired) != 0 {
		t.Fatalf("fired = %v before second window closed", fired)
	}

	clock.Advance(5 * time.Second)
	if !reflect.DeepEqual(fired, []string{"second"}) {
		t.Errorf("fired = %v, want [second]", fired)
	}
}

func TestStageTimer_ZeroDisables(t *testing.T) {
	tl, clock := newTestTimeline(t)
	timer := NewStageTimer(tl, 0)

	fired := false
	tl.Run(func() { timer.Start(func() { fired = true }) })
	clock.Advance(time.Hour)

	if fired {
		t.Error("disabled timer fired")
	}
	if clock.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", clock.Pending())
	}
}
