package accumulation

import (
	"errors"
	"fmt"
	"math"
)

// ErrSizeMismatch is returned when a sub-frame does not match the
// accumulator dimensions.
var ErrSizeMismatch = errors.New("accumulation: sub-frame size mismatch")

// Accumulator blends RGBA8 sub-frames on the CPU. Each sub-frame is added
// with its shutter weight into a float32 history buffer; the frame resolves
// once the last sub-frame of the frame has been added.
type Accumulator struct {
	width, height int
	weights       []float64
	history       []float32
	resolved      []byte
	count         int
	frames        int
}

// NewAccumulator creates an accumulator for width x height RGBA8 frames
// blended from len(weights) sub-frames.
func NewAccumulator(width, height int, weights []float64) (*Accumulator, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrSizeMismatch, width, height)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: no weights", ErrInvalidSamples)
	}
	w := make([]float64, len(weights))
	copy(w, weights)
	n := width * height * 4
	return &Accumulator{
		width:    width,
		height:   height,
		weights:  w,
		history:  make([]float32, n),
		resolved: make([]byte, n),
	}, nil
}

// Samples returns the number of sub-frames per frame.
func (a *Accumulator) Samples() int { return len(a.weights) }

// Add blends one sub-frame and reports whether it completed a frame. The
// completed frame is available from Resolved until the next completion.
func (a *Accumulator) Add(rgba []byte) (bool, error) {
	if len(rgba) != len(a.history) {
		return false, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(rgba), len(a.history))
	}
	w := float32(a.weights[a.count])
	for i, v := range rgba {
		a.history[i] += float32(v) * w
	}
	a.count++
	if a.count < len(a.weights) {
		return false, nil
	}
	for i, v := range a.history {
		a.resolved[i] = uint8(math.Min(255, math.Max(0, math.Round(float64(v)))))
		a.history[i] = 0
	}
	a.count = 0
	a.frames++
	return true, nil
}

// Resolved returns the most recently completed frame. The slice is reused
// by the next completion.
func (a *Accumulator) Resolved() []byte { return a.resolved }

// Pending returns the number of sub-frames added toward the current frame.
func (a *Accumulator) Pending() int { return a.count }

// Frames returns the number of completed frames.
func (a *Accumulator) Frames() int { return a.frames }

// Reset discards the partially accumulated frame.
func (a *Accumulator) Reset() {
	clear(a.history)
	a.count = 0
}
