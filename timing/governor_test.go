package timing

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gogpu/recorder/schedule"
)

// fakeClock is a manually advanced clock. Sleep and Spin advance it.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
	spins int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Spin(deadline time.Time) {
	c.spins++
	if c.now.Before(deadline) {
		c.now = deadline
	}
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGovernor(t *testing.T, clk *fakeClock, capped bool, playback schedule.Playback) *Governor {
	t.Helper()
	g, err := NewGovernor(Config{
		FrameRate:    50,
		Playback:     playback,
		CapFrameRate: capped,
		Clock:        clk.Now,
		Sleep:        clk.Sleep,
		Spin:         clk.Spin,
		Latch:        &Latch{},
	})
	if err != nil {
		t.Fatalf("NewGovernor: %v", err)
	}
	return g
}

func TestComputeFrameInterval(t *testing.T) {
	got, err := ComputeFrameInterval(30)
	if err != nil {
		t.Fatalf("ComputeFrameInterval(30): %v", err)
	}
	if got != 1.0/30 {
		t.Errorf("ComputeFrameInterval(30) = %v, want %v", got, 1.0/30)
	}

	for _, rate := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := ComputeFrameInterval(rate); !errors.Is(err, ErrInvalidFrameRate) {
			t.Errorf("ComputeFrameInterval(%v) error = %v, want ErrInvalidFrameRate", rate, err)
		}
	}
}

func TestNewGovernorRejectsInvalidRate(t *testing.T) {
	if _, err := NewGovernor(Config{FrameRate: 0}); !errors.Is(err, ErrInvalidFrameRate) {
		t.Errorf("NewGovernor(0) error = %v", err)
	}
}

func TestCaptureDeltaTimePadding(t *testing.T) {
	clk := newFakeClock()
	g := newTestGovernor(t, clk, false, schedule.Constant)
	g.Begin()

	if got := g.CaptureDeltaTime(0); got != g.Interval()+PadEpsilon {
		t.Errorf("first delta = %v, want padded %v", got, g.Interval()+PadEpsilon)
	}
	if got := g.CaptureDeltaTime(0); got != g.Interval()+PadEpsilon {
		t.Errorf("delta before time elapses = %v, want padded", got)
	}
	if got := g.CaptureDeltaTime(0.02); got != g.Interval() {
		t.Errorf("delta after time elapsed = %v, want %v", got, g.Interval())
	}
	// Once disabled padding stays off, even if elapsed reads zero again.
	if got := g.CaptureDeltaTime(0); got != g.Interval() {
		t.Errorf("padding re-enabled: delta = %v", got)
	}
	if g.Padding() {
		t.Error("Padding() = true after disable")
	}

	g.Begin()
	if !g.Padding() {
		t.Error("Begin did not re-enable padding for a new session")
	}
}

func TestCaptureDeltaTimeVariable(t *testing.T) {
	g := newTestGovernor(t, newFakeClock(), false, schedule.Variable)
	g.Begin()
	if got := g.CaptureDeltaTime(0); got != 0 {
		t.Errorf("variable playback delta = %v, want 0", got)
	}
}

func TestCapDisabledNeverSleeps(t *testing.T) {
	for _, pb := range []schedule.Playback{schedule.Constant, schedule.Variable} {
		clk := newFakeClock()
		g := newTestGovernor(t, clk, false, pb)
		g.Begin()
		for f := int64(0); f < 10; f++ {
			if d := g.Cap(f); d != 0 {
				t.Errorf("%v: uncapped governor waited %v", pb, d)
			}
		}
		if len(clk.slept) != 0 || clk.spins != 0 {
			t.Errorf("%v: uncapped governor slept %v, spun %d", pb, clk.slept, clk.spins)
		}
	}
}

func TestCapBehindTargetNeverSleeps(t *testing.T) {
	clk := newFakeClock()
	g := newTestGovernor(t, clk, true, schedule.Variable)
	g.Begin()

	// Frame interval is 20ms; 25ms have passed before the first cap.
	clk.Advance(25 * time.Millisecond)
	if d := g.Cap(1); d != 0 {
		t.Errorf("Cap waited %v with elapsed beyond target", d)
	}
	if len(clk.slept) != 0 || clk.spins != 0 {
		t.Errorf("slept %v, spun %d", clk.slept, clk.spins)
	}
}

func TestCapHybridSleep(t *testing.T) {
	clk := newFakeClock()
	g := newTestGovernor(t, clk, true, schedule.Constant)
	g.Begin()

	clk.Advance(5 * time.Millisecond)
	d := g.Cap(1)
	if d != 15*time.Millisecond {
		t.Errorf("Cap waited %v, want 15ms", d)
	}
	if len(clk.slept) != 1 || clk.slept[0] != 12*time.Millisecond {
		t.Errorf("coarse sleeps = %v, want [12ms]", clk.slept)
	}
	if clk.spins != 1 {
		t.Errorf("spins = %d, want 1", clk.spins)
	}

	// The next frame aims at 40ms after start.
	clk.Advance(10 * time.Millisecond)
	if d := g.Cap(2); d != 10*time.Millisecond {
		t.Errorf("second Cap waited %v, want 10ms", d)
	}
}

func TestCapShortWaitSkipped(t *testing.T) {
	clk := newFakeClock()
	g := newTestGovernor(t, clk, true, schedule.Constant)
	g.Begin()

	clk.Advance(19 * time.Millisecond)
	if d := g.Cap(1); d != 0 {
		t.Errorf("Cap waited %v for a 1ms remainder", d)
	}
}

func TestCapSpinOnlyBetweenThresholdAndMargin(t *testing.T) {
	clk := newFakeClock()
	g := newTestGovernor(t, clk, true, schedule.Constant)
	g.Begin()

	// 2.5ms remain: above the threshold but below the coarse margin.
	clk.Advance(17500 * time.Microsecond)
	if d := g.Cap(1); d != 2500*time.Microsecond {
		t.Errorf("Cap waited %v, want 2.5ms", d)
	}
	if len(clk.slept) != 0 {
		t.Errorf("coarse sleep taken: %v", clk.slept)
	}
	if clk.spins != 1 {
		t.Errorf("spins = %d, want 1", clk.spins)
	}
}

func TestCapMaxSleep(t *testing.T) {
	clk := newFakeClock()
	g, err := NewGovernor(Config{
		FrameRate:    0.25,
		CapFrameRate: true,
		Clock:        clk.Now,
		Sleep:        clk.Sleep,
		Spin:         clk.Spin,
		Latch:        &Latch{},
	})
	if err != nil {
		t.Fatal(err)
	}
	g.Begin()
	if d := g.Cap(1); d != time.Second {
		t.Errorf("Cap waited %v, want capped at 1s", d)
	}
}

func TestCapResyncWhenBehind(t *testing.T) {
	clk := newFakeClock()
	g := newTestGovernor(t, clk, true, schedule.Constant)
	g.Begin()

	// 100ms behind on the first frame: resync rather than burst.
	clk.Advance(120 * time.Millisecond)
	g.Cap(1)
	if g.nextFrame != 0 {
		t.Errorf("nextFrame = %d after resync, want 0", g.nextFrame)
	}

	// Not behind by more than one interval: counter advances.
	g2 := newTestGovernor(t, newFakeClock(), true, schedule.Constant)
	g2.Begin()
	g2.cfg.Clock = func() time.Time { return g2.start.Add(30 * time.Millisecond) }
	g2.Cap(1)
	if g2.nextFrame != 1 {
		t.Errorf("nextFrame = %d, want 1", g2.nextFrame)
	}
}

func TestCapLatchSingleSleeperPerFrame(t *testing.T) {
	clk := newFakeClock()
	latch := &Latch{}
	mk := func() *Governor {
		g, err := NewGovernor(Config{
			FrameRate:    50,
			CapFrameRate: true,
			Clock:        clk.Now,
			Sleep:        clk.Sleep,
			Spin:         clk.Spin,
			Latch:        latch,
		})
		if err != nil {
			t.Fatal(err)
		}
		g.Begin()
		return g
	}
	a, b := mk(), mk()

	if d := a.Cap(7); d == 0 {
		t.Fatal("first governor did not wait")
	}
	// Rewind so that b would also need to wait; the latch must stop it.
	clk.now = a.start
	if d := b.Cap(7); d != 0 {
		t.Errorf("second governor waited %v in the same frame", d)
	}
	if d := b.Cap(8); d == 0 {
		t.Error("second governor did not wait on the next frame")
	}
}

func TestLatch(t *testing.T) {
	var l Latch
	if !l.TryAcquire(1) {
		t.Fatal("first acquire failed")
	}
	if l.TryAcquire(1) {
		t.Error("second acquire of same frame succeeded")
	}
	if !l.TryAcquire(2) {
		t.Error("acquire of next frame failed")
	}
	l.Reset()
	if !l.TryAcquire(2) {
		t.Error("acquire after Reset failed")
	}
}
