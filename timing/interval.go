// Package timing paces a recording session against the wall clock.
//
// It computes the nominal frame interval, applies the one-shot pad time that
// keeps constant-rate sampling on the correct side of a frame boundary, and
// optionally caps the host frame rate with a hybrid sleep and busy-wait.
package timing

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFrameRate is returned for a frame rate that is not a positive,
// finite number. It aborts session start.
var ErrInvalidFrameRate = errors.New("timing: frame rate must be positive and finite")

// PadEpsilon is added to the nominal frame interval until the first real time
// has elapsed in a session. Without it, floating point rounding of
// n*(1/rate) can land a sample just before a frame boundary and capture the
// same frame twice.
const PadEpsilon = 1e-5

// ComputeFrameInterval returns 1/rate in seconds.
func ComputeFrameInterval(rate float64) (float64, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFrameRate, rate)
	}
	return 1 / rate, nil
}
