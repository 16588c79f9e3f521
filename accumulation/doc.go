// Package accumulation turns one recorded frame into several rendered
// sub-frames that the render pipeline blends together, simulating motion
// blur or converging a path-traced image.
//
// # Sub-frames and jitter
//
// With Settings.Samples = N and CaptureAccumulation on, every recorded frame
// is rendered N times. Each sub-frame i may offset the camera projection by
// a sub-pixel amount taken from a Hammersley sequence, which is
// deterministic for a given N:
//
//	x_i = radicalInverse2(i) - 0.5
//	y_i = (i + 0.5)/N - 0.5
//
// The Controller applies the offset through a Pipeline before the
// sub-frame renders and reverts it once the sub-frame is observed complete.
// End reverts anything still outstanding, even mid-frame.
//
// # Shutter
//
// The shutter profile weights each sub-frame within the shutter interval,
// either as a trapezoid (Range) or as a piecewise-linear response Curve.
package accumulation
