package accumulation

import (
	"fmt"
	"math"
	"sort"
)

// ShutterKind selects how a ShutterProfile is evaluated.
type ShutterKind uint8

const (
	// ShutterRange is a trapezoid: the shutter ramps open over
	// [0, FullyOpen], stays open until BeginsClosing and ramps closed to 1.
	ShutterRange ShutterKind = iota

	// ShutterCurve is a piecewise-linear response over [0,1].
	ShutterCurve
)

// String returns the shutter kind name.
func (k ShutterKind) String() string {
	switch k {
	case ShutterRange:
		return "Range"
	case ShutterCurve:
		return "Curve"
	default:
		return fmt.Sprintf("ShutterKind(%d)", k)
	}
}

// CurveKey is one point of a shutter response curve.
type CurveKey struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// ShutterProfile describes how much light each instant of the shutter
// interval contributes.
type ShutterProfile struct {
	Kind ShutterKind `json:"kind"`

	// FullyOpen and BeginsClosing bound the fully open plateau of a Range
	// profile, both normalised to [0,1].
	FullyOpen     float64 `json:"fullyOpen"`
	BeginsClosing float64 `json:"beginsClosing"`

	// Curve keys for a Curve profile, sorted by Time.
	Curve []CurveKey `json:"curve,omitempty"`
}

// BoxShutter returns a shutter that is fully open for the whole interval.
func BoxShutter() ShutterProfile {
	return ShutterProfile{Kind: ShutterRange, FullyOpen: 0, BeginsClosing: 1}
}

// RangeShutter returns a trapezoid profile.
func RangeShutter(fullyOpen, beginsClosing float64) ShutterProfile {
	return ShutterProfile{Kind: ShutterRange, FullyOpen: fullyOpen, BeginsClosing: beginsClosing}
}

// CurveShutter returns a piecewise-linear profile. Keys are copied and
// sorted by time.
func CurveShutter(keys ...CurveKey) ShutterProfile {
	c := make([]CurveKey, len(keys))
	copy(c, keys)
	sort.Slice(c, func(i, j int) bool { return c[i].Time < c[j].Time })
	return ShutterProfile{Kind: ShutterCurve, Curve: c}
}

// Validate checks the profile bounds.
func (p ShutterProfile) Validate() error {
	switch p.Kind {
	case ShutterRange:
		if !unit(p.FullyOpen) || !unit(p.BeginsClosing) {
			return fmt.Errorf("%w: range bounds (%v, %v) outside [0,1]",
				ErrInvalidShutterProfile, p.FullyOpen, p.BeginsClosing)
		}
		if p.FullyOpen > p.BeginsClosing {
			return fmt.Errorf("%w: fully open %v after begins closing %v",
				ErrInvalidShutterProfile, p.FullyOpen, p.BeginsClosing)
		}
	case ShutterCurve:
		if len(p.Curve) == 0 {
			return fmt.Errorf("%w: empty curve", ErrInvalidShutterProfile)
		}
		for i, k := range p.Curve {
			if !unit(k.Time) || k.Value < 0 || math.IsNaN(k.Value) || math.IsInf(k.Value, 0) {
				return fmt.Errorf("%w: curve key %d (%v, %v)", ErrInvalidShutterProfile, i, k.Time, k.Value)
			}
			if i > 0 && k.Time < p.Curve[i-1].Time {
				return fmt.Errorf("%w: curve keys not sorted at %d", ErrInvalidShutterProfile, i)
			}
		}
	default:
		return fmt.Errorf("%w: kind %v", ErrInvalidShutterProfile, p.Kind)
	}
	return nil
}

func unit(v float64) bool { return v >= 0 && v <= 1 }

// Weight evaluates the shutter response at normalised time t in [0,1].
func (p ShutterProfile) Weight(t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	switch p.Kind {
	case ShutterCurve:
		return p.curveAt(t)
	default:
		switch {
		case t < p.FullyOpen:
			return t / p.FullyOpen
		case t > p.BeginsClosing:
			return (1 - t) / (1 - p.BeginsClosing)
		default:
			return 1
		}
	}
}

func (p ShutterProfile) curveAt(t float64) float64 {
	keys := p.Curve
	if len(keys) == 0 {
		return 1
	}
	if t <= keys[0].Time {
		return keys[0].Value
	}
	last := keys[len(keys)-1]
	if t >= last.Time {
		return last.Value
	}
	i := sort.Search(len(keys), func(i int) bool { return keys[i].Time >= t })
	a, b := keys[i-1], keys[i]
	span := b.Time - a.Time
	if span <= 0 {
		return b.Value
	}
	f := (t - a.Time) / span
	return a.Value + (b.Value-a.Value)*f
}

// Weights returns n per-sample weights summing to 1. Sample i is evaluated
// at the centre of its slot, (i+0.5)/n. A profile that is closed at every
// sample falls back to equal weights.
func (p ShutterProfile) Weights(n int) []float64 {
	if n < 1 {
		return nil
	}
	w := make([]float64, n)
	var sum float64
	for i := range w {
		w[i] = p.Weight((float64(i) + 0.5) / float64(n))
		sum += w[i]
	}
	if sum <= 0 {
		for i := range w {
			w[i] = 1 / float64(n)
		}
		return w
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}
