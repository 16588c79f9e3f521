package accumulation

import "math/bits"

// Offset is a sub-pixel jitter in pixels, each component in [-0.5, 0.5).
type Offset struct {
	X, Y float64
}

// IsZero reports whether the offset is the origin.
func (o Offset) IsZero() bool { return o.X == 0 && o.Y == 0 }

// radicalInverse2 mirrors the bits of i about the binary point.
// Every 32-bit value scaled by 2^-32 is exact in float64.
func radicalInverse2(i uint32) float64 {
	return float64(bits.Reverse32(i)) * 0x1p-32
}

// Hammersley returns the n-point Hammersley set centred on the pixel:
// x_i = radicalInverse2(i) - 0.5, y_i = (i+0.5)/n - 0.5.
func Hammersley(n int) []Offset {
	if n < 1 {
		return nil
	}
	out := make([]Offset, n)
	for i := range out {
		out[i] = Offset{
			X: radicalInverse2(uint32(i)) - 0.5,
			Y: (float64(i)+0.5)/float64(n) - 0.5,
		}
	}
	return out
}

// JitterTable caches Hammersley offsets. It is regenerated only when a
// larger sample count is requested; smaller counts reuse the prefix.
type JitterTable struct {
	offsets     []Offset
	generations int
}

// Offsets returns n offsets, growing the table when n exceeds its length.
func (t *JitterTable) Offsets(n int) []Offset {
	if n < 1 {
		return nil
	}
	if n > len(t.offsets) {
		t.offsets = Hammersley(n)
		t.generations++
	}
	return t.offsets[:n]
}

// At returns the offset for sub-frame i of an n-sample frame.
func (t *JitterTable) At(i, n int) Offset {
	offs := t.Offsets(n)
	if len(offs) == 0 {
		return Offset{}
	}
	return offs[i%n]
}

// Len returns the number of cached offsets.
func (t *JitterTable) Len() int { return len(t.offsets) }

// Generations returns how many times the table was regenerated.
func (t *JitterTable) Generations() int { return t.generations }
