package accumulation

import (
	"errors"
	"fmt"
	"math"
)

// Settings errors.
var (
	// ErrInvalidSamples is returned when Samples is below 1.
	ErrInvalidSamples = errors.New("accumulation: sample count must be at least 1")

	// ErrInvalidShutterInterval is returned when ShutterInterval is outside [0,1].
	ErrInvalidShutterInterval = errors.New("accumulation: shutter interval must be in [0,1]")

	// ErrInvalidShutterProfile is returned for a malformed shutter profile.
	ErrInvalidShutterProfile = errors.New("accumulation: invalid shutter profile")
)

// Settings configures multi-sample capture.
type Settings struct {
	// Samples is the number of sub-frames rendered per recorded frame.
	Samples int

	// CaptureAccumulation enables accumulation. With it off, or with
	// Samples == 1, every sub-frame is a real frame and nothing is jittered.
	CaptureAccumulation bool

	// ShutterInterval is the fraction of the frame interval the shutter is
	// open, in [0,1].
	ShutterInterval float64

	// Shutter weights sub-frames within the shutter interval.
	Shutter ShutterProfile

	// SubPixelJitter offsets the projection per sub-frame for anti-aliasing.
	SubPixelJitter bool
}

// DefaultSettings returns accumulation disabled with a fully open box
// shutter, ready to be switched on.
func DefaultSettings() Settings {
	return Settings{
		Samples:         1,
		ShutterInterval: 1,
		Shutter:         BoxShutter(),
	}
}

// Enabled reports whether sub-frames are accumulated.
func (s Settings) Enabled() bool {
	return s.CaptureAccumulation && s.Samples > 1
}

// EffectiveSamples returns the number of samples that land inside the open
// shutter: max(1, floor(Samples*ShutterInterval)). It is reported to the
// user; the sub-frame cycle always runs Samples sub-frames.
func (s Settings) EffectiveSamples() int {
	n := int(math.Floor(float64(s.Samples) * s.ShutterInterval))
	if n < 1 {
		return 1
	}
	return n
}

// Weights returns one blend weight per sub-frame, Samples in total. The
// first EffectiveSamples sub-frames share the shutter profile; the rest fall
// outside the open shutter and weigh 0.
func (s Settings) Weights() []float64 {
	n := max(s.Samples, 1)
	w := make([]float64, n)
	copy(w, s.Shutter.Weights(min(s.EffectiveSamples(), n)))
	return w
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if s.Samples < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidSamples, s.Samples)
	}
	if math.IsNaN(s.ShutterInterval) || s.ShutterInterval < 0 || s.ShutterInterval > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidShutterInterval, s.ShutterInterval)
	}
	return s.Shutter.Validate()
}
