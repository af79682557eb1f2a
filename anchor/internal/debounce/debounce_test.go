package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_Coalesces(t *testing.T) {
	clock := NewManualClock()
	d := New(50*time.Millisecond, clock)
	var calls, last int
	for i := 1; i <= 5; i++ {
		i := i
		d.Schedule(func() { calls++; last = i })
		clock.Advance(10 * time.Millisecond)
	}
	if calls != 0 {
		t.Fatalf("fired inside the window: %d calls", calls)
	}
	if clock.Pending() != 1 {
		t.Errorf("pending timers: got %d, want 1", clock.Pending())
	}
	clock.Advance(50 * time.Millisecond)
	if calls != 1 || last != 5 {
		t.Errorf("got %d calls (last %d), want 1 call of the last schedule", calls, last)
	}
	if d.Pending() {
		t.Error("still pending after firing")
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	clock := NewManualClock()
	d := New(50*time.Millisecond, clock)
	fired := false
	d.Schedule(func() { fired = true })
	if !d.Cancel() {
		t.Error("Cancel: want true with a pending call")
	}
	if d.Cancel() {
		t.Error("Cancel: want false with nothing pending")
	}
	clock.Advance(time.Second)
	if fired {
		t.Error("cancelled call fired")
	}
}

func TestDebouncer_Close(t *testing.T) {
	clock := NewManualClock()
	d := New(50*time.Millisecond, clock)
	fired := false
	d.Schedule(func() { fired = true })
	d.Close()
	d.Schedule(func() { fired = true })
	clock.Advance(time.Second)
	if fired {
		t.Error("call fired after Close")
	}
}

func TestDebouncer_SystemClock(t *testing.T) {
	d := New(5*time.Millisecond, nil)
	var n atomic.Int32
	done := make(chan struct{})
	d.Schedule(func() { n.Add(1) })
	d.Schedule(func() { n.Add(1); close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced call never fired")
	}
	time.Sleep(20 * time.Millisecond)
	if got := n.Load(); got != 1 {
		t.Errorf("calls: got %d, want 1", got)
	}
}
