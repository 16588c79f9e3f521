package accumulation

import "math"

// Matrix4 is a 4x4 projection matrix in column-major order, the layout
// graphics APIs upload directly. Element (row r, column c) is M[c*4+r]:
//
//	| M0  M4  M8  M12 |
//	| M1  M5  M9  M13 |
//	| M2  M6  M10 M14 |
//	| M3  M7  M11 M15 |
type Matrix4 [16]float64

// Identity4 returns the identity matrix.
func Identity4() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Perspective returns a right-handed perspective projection mapping depth
// to [0,1]. fovY is in radians.
func Perspective(fovY, aspect, near, far float64) Matrix4 {
	f := 1 / math.Tan(fovY/2)
	var m Matrix4
	m[0] = f / aspect
	m[5] = f
	m[10] = far / (near - far)
	m[11] = -1
	m[14] = near * far / (near - far)
	return m
}

// Orthographic returns a right-handed orthographic projection mapping depth
// to [0,1].
func Orthographic(left, right, bottom, top, near, far float64) Matrix4 {
	m := Identity4()
	m[0] = 2 / (right - left)
	m[5] = 2 / (top - bottom)
	m[10] = 1 / (near - far)
	m[12] = -(right + left) / (right - left)
	m[13] = -(top + bottom) / (top - bottom)
	m[14] = near / (near - far)
	return m
}

// At returns the element at row r, column c.
func (m Matrix4) At(r, c int) float64 { return m[c*4+r] }

// Multiply returns m * other.
func (m Matrix4) Multiply(other Matrix4) Matrix4 {
	var out Matrix4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var s float64
			for k := 0; k < 4; k++ {
				s += m[k*4+r] * other[c*4+k]
			}
			out[c*4+r] = s
		}
	}
	return out
}

// Transform applies m to the homogeneous point (x, y, z, w).
func (m Matrix4) Transform(x, y, z, w float64) (float64, float64, float64, float64) {
	return m[0]*x + m[4]*y + m[8]*z + m[12]*w,
		m[1]*x + m[5]*y + m[9]*z + m[13]*w,
		m[2]*x + m[6]*y + m[10]*z + m[14]*w,
		m[3]*x + m[7]*y + m[11]*z + m[15]*w
}

// Jitter shifts the projection by a sub-pixel offset on a width x height
// target. The shift is 2*offset/size in normalised device coordinates, which
// holds for perspective and orthographic projections alike: the x and y rows
// gain a multiple of the w row.
func (m Matrix4) Jitter(o Offset, width, height int) Matrix4 {
	if width <= 0 || height <= 0 || o.IsZero() {
		return m
	}
	sx := 2 * o.X / float64(width)
	sy := 2 * o.Y / float64(height)
	out := m
	for c := 0; c < 4; c++ {
		w := m[c*4+3]
		out[c*4] += sx * w
		out[c*4+1] += sy * w
	}
	return out
}
