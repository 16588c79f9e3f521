package timing

import (
	"math"
	"time"

	"github.com/gogpu/recorder/schedule"
)

// Default capping parameters.
const (
	// DefaultSleepThreshold is the smallest remaining wait that triggers
	// capping at all.
	DefaultSleepThreshold = 2 * time.Millisecond

	// DefaultCoarseMargin is left to the busy-wait after the coarse sleep,
	// absorbing OS scheduler oversleep.
	DefaultCoarseMargin = 3 * time.Millisecond

	// DefaultMaxSleep bounds a single capping wait.
	DefaultMaxSleep = time.Second
)

// Config holds configuration for creating a Governor.
type Config struct {
	// FrameRate is the target frame rate. Must be positive and finite.
	FrameRate float64

	// Playback is the session playback mode.
	Playback schedule.Playback

	// CapFrameRate enables wall-clock capping of the host frame rate.
	CapFrameRate bool

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Sleep performs the coarse sleep. Defaults to time.Sleep.
	Sleep func(time.Duration)

	// Spin waits until deadline without yielding the thread. Defaults to a
	// busy loop on Clock. Replacing it trades precision for CPU time.
	Spin func(deadline time.Time)

	// Latch elects one governor per host frame. Defaults to DefaultLatch().
	Latch *Latch

	// SleepThreshold defaults to DefaultSleepThreshold.
	SleepThreshold time.Duration

	// CoarseMargin defaults to DefaultCoarseMargin.
	CoarseMargin time.Duration

	// MaxSleep defaults to DefaultMaxSleep.
	MaxSleep time.Duration
}

// Governor owns the wall-clock bookkeeping of one recording session.
//
// Governor is not safe for concurrent use; it is driven from the host's
// frame loop.
type Governor struct {
	cfg         Config
	interval    float64
	intervalDur time.Duration

	start   time.Time
	started bool

	// nextFrame is the frame count the next capping wait aims for.
	nextFrame int64

	padding bool
}

// NewGovernor validates cfg and returns a governor. It fails with
// ErrInvalidFrameRate for a non-positive, NaN or infinite frame rate.
func NewGovernor(cfg Config) (*Governor, error) {
	interval, err := ComputeFrameInterval(cfg.FrameRate)
	if err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Spin == nil {
		clock := cfg.Clock
		cfg.Spin = func(deadline time.Time) {
			for clock().Before(deadline) {
			}
		}
	}
	if cfg.Latch == nil {
		cfg.Latch = DefaultLatch()
	}
	if cfg.SleepThreshold <= 0 {
		cfg.SleepThreshold = DefaultSleepThreshold
	}
	if cfg.CoarseMargin <= 0 {
		cfg.CoarseMargin = DefaultCoarseMargin
	}
	if cfg.MaxSleep <= 0 {
		cfg.MaxSleep = DefaultMaxSleep
	}
	return &Governor{
		cfg:         cfg,
		interval:    interval,
		intervalDur: time.Duration(math.Round(interval * float64(time.Second))),
	}, nil
}

// Interval returns the nominal frame interval in seconds.
func (g *Governor) Interval() float64 { return g.interval }

// Begin marks the start of the session and re-enables padding.
func (g *Governor) Begin() {
	g.start = g.cfg.Clock()
	g.started = true
	g.nextFrame = 0
	g.padding = true
}

// Started reports whether Begin has been called.
func (g *Governor) Started() bool { return g.started }

// StartTime returns the session start recorded by Begin.
func (g *Governor) StartTime() time.Time { return g.start }

// Elapsed returns the wall-clock time since Begin in seconds.
func (g *Governor) Elapsed() float64 {
	if !g.started {
		return 0
	}
	return g.cfg.Clock().Sub(g.start).Seconds()
}

// CaptureDeltaTime returns the delta time the host should advance by for
// the next constant-rate frame. elapsed is the host's session time in
// seconds. While no time has elapsed yet PadEpsilon is added; the first call
// with elapsed > 0 disables padding for the rest of the session.
//
// Variable playback follows the wall clock and always returns 0.
func (g *Governor) CaptureDeltaTime(elapsed float64) float64 {
	if g.cfg.Playback == schedule.Variable {
		return 0
	}
	if g.padding && elapsed > 0 {
		g.padding = false
	}
	if g.padding {
		return g.interval + PadEpsilon
	}
	return g.interval
}

// Padding reports whether pad time is still applied.
func (g *Governor) Padding() bool { return g.padding }

// Cap waits, if needed, so that the host does not run faster than the
// configured frame rate. hostFrame identifies the host frame for the
// process-wide latch. It returns the time spent waiting.
//
// The wait aims at interval*(framesSinceStart+1) after Begin, capped at
// MaxSleep. Waits shorter than SleepThreshold are skipped. Longer waits
// sleep coarsely until CoarseMargin before the target and busy-wait the
// rest. A governor more than one interval behind drops its target by one
// frame instead of trying to catch up.
func (g *Governor) Cap(hostFrame int64) time.Duration {
	if !g.cfg.CapFrameRate || !g.started {
		return 0
	}

	now := g.cfg.Clock()
	elapsed := now.Sub(g.start)
	target := g.intervalDur * time.Duration(g.nextFrame+1)
	delta := target - elapsed
	if delta > g.cfg.MaxSleep {
		delta = g.cfg.MaxSleep
	}

	var waited time.Duration
	switch {
	case delta > g.cfg.SleepThreshold:
		if g.cfg.Latch.TryAcquire(hostFrame) {
			waited = g.wait(now, delta)
		}
	case delta < -g.intervalDur:
		g.nextFrame--
		slogger().Debug("timing: frame rate cap resynchronized",
			"behind", -delta, "frame", hostFrame)
	}
	g.nextFrame++
	return waited
}

// wait sleeps for the coarse part of delta and spins for the remainder.
func (g *Governor) wait(now time.Time, delta time.Duration) time.Duration {
	deadline := now.Add(delta)
	if coarse := delta - g.cfg.CoarseMargin; coarse > 0 {
		g.cfg.Sleep(coarse)
	}
	g.cfg.Spin(deadline)
	return g.cfg.Clock().Sub(now)
}
