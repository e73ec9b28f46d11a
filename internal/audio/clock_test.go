package audio

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced reference clock.
type fakeClock struct {
	now time.Duration
}

func (c *fakeClock) Now() time.Duration { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now += d }

func TestPlayClock_PositionWhileRunning(t *testing.T) {
	clk := &fakeClock{}
	pc := newPlayClock(clk)

	pc.Start()
	clk.advance(3 * time.Second)

	if got := pc.Position(); got != 3*time.Second {
		t.Errorf("Position() = %v, want 3s", got)
	}
}

func TestPlayClock_PauseFoldsPosition(t *testing.T) {
	clk := &fakeClock{}
	pc := newPlayClock(clk)

	pc.Start()
	clk.advance(2 * time.Second)
	got := pc.Pause()

	if got != 2*time.Second {
		t.Errorf("Pause() = %v, want 2s", got)
	}

	// Time advancing while paused must not move the position.
	clk.advance(10 * time.Second)
	if got := pc.Position(); got != 2*time.Second {
		t.Errorf("Position() while paused = %v, want 2s", got)
	}
}

func TestPlayClock_NoDriftAcrossManyCycles(t *testing.T) {
	clk := &fakeClock{}
	pc := newPlayClock(clk)

	var want time.Duration
	for i := 0; i < 50; i++ {
		pc.Start()
		clk.advance(100 * time.Millisecond)
		want += 100 * time.Millisecond
		pc.Pause()
		clk.advance(37 * time.Millisecond) // paused gaps must not count
	}

	if got := pc.Position(); got != want {
		t.Errorf("Position() after 50 play/pause cycles = %v, want %v", got, want)
	}
}

func TestPlayClock_SetOffset(t *testing.T) {
	clk := &fakeClock{}
	pc := newPlayClock(clk)

	t.Run("paused", func(t *testing.T) {
		pc.SetOffset(42 * time.Second)
		if got := pc.Position(); got != 42*time.Second {
			t.Errorf("Position() = %v, want 42s", got)
		}
	})

	t.Run("running re-snapshots", func(t *testing.T) {
		pc.Start()
		clk.advance(time.Second)
		pc.SetOffset(10 * time.Second)
		clk.advance(time.Second)
		if got := pc.Position(); got != 11*time.Second {
			t.Errorf("Position() = %v, want 11s", got)
		}
	})
}

func TestSystemClock_Monotonic(t *testing.T) {
	clk := NewSystemClock()
	a := clk.Now()
	b := clk.Now()
	if b < a {
		t.Errorf("system clock went backwards: %v then %v", a, b)
	}
}
