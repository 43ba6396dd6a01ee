package countdown

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestFormat(t *testing.T) {
	tests := map[int]string{0: "0:00", 9: "0:09", 60: "1:00", 125: "2:05", -3: "0:00", 600: "10:00"}
	for in, want := range tests {
		if got := Format(in); got != want {
			t.Errorf("Format(%d): expected %s, got %s", in, want, got)
		}
	}
}

func TestNoTargetShowsDefault(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := New(clock, Config{Default: 30})
	timer.Reset(nil)
	if timer.Remaining() != 30 {
		t.Errorf("Expected default 30, got %d", timer.Remaining())
	}
	if timer.Urgent() {
		t.Errorf("Expected no urgency without a target")
	}
	clock.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)
	if timer.Remaining() != 30 {
		t.Errorf("Expected no ticking without a target, got %d", timer.Remaining())
	}
}

func TestReachesZeroAndCompletesOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := New(clock, Config{})
	var completions atomic.Int32
	timer.OnComplete(func() { completions.Add(1) })

	target := clock.Now().Add(5 * time.Second)
	timer.Reset(&target)
	if timer.Display() != "0:05" {
		t.Errorf("Expected 0:05, got %s", timer.Display())
	}

	for i := 4; i >= 0; i-- {
		clock.Advance(time.Second)
		want := i
		waitFor(t, func() bool { return timer.Remaining() == want })
	}
	waitFor(t, func() bool { return completions.Load() == 1 })
	if timer.Display() != "0:00" {
		t.Errorf("Expected 0:00, got %s", timer.Display())
	}

	clock.Advance(10 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if n := completions.Load(); n != 1 {
		t.Errorf("Expected exactly one completion, got %d", n)
	}

	timer.Reset(&target)
	if n := completions.Load(); n != 1 {
		t.Errorf("Expected re-delivered target not to complete again, got %d", n)
	}
}

func TestSingleLargeAdvanceCompletes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := New(clock, Config{})
	var completions atomic.Int32
	timer.OnComplete(func() { completions.Add(1) })

	target := clock.Now().Add(90 * time.Second)
	timer.Reset(&target)
	clock.Advance(90 * time.Second)
	waitFor(t, func() bool { return completions.Load() == 1 })
	if timer.Display() != "0:00" {
		t.Errorf("Expected 0:00, got %s", timer.Display())
	}
}

func TestUrgentThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := New(clock, Config{})

	target := clock.Now().Add(11 * time.Second)
	timer.Reset(&target)
	if timer.Urgent() {
		t.Errorf("Expected 11s not to be urgent")
	}
	clock.Advance(time.Second)
	waitFor(t, timer.Urgent)
}

func TestResetCancelsPriorTarget(t *testing.T) {
	clock := clockwork.NewFakeClock()
	timer := New(clock, Config{})
	var completions atomic.Int32
	timer.OnComplete(func() { completions.Add(1) })

	first := clock.Now().Add(2 * time.Second)
	timer.Reset(&first)
	second := clock.Now().Add(20 * time.Second)
	timer.Reset(&second)

	clock.Advance(3 * time.Second)
	waitFor(t, func() bool { return timer.Remaining() == 17 })
	if completions.Load() != 0 {
		t.Errorf("Expected superseded target not to complete")
	}
}
