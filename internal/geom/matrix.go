package geom

import "math"

// Matrix2D represents a 2D affine transformation matrix.
// Layout: [a, b, c, d, e, f] representing:
// | a  c  e |
// | b  d  f |
// | 0  0  1 |
type Matrix2D [6]float64

// Identity returns the identity matrix.
func Identity() Matrix2D {
	return Matrix2D{1, 0, 0, 1, 0, 0}
}

// Translate returns a translation matrix.
func Translate(tx, ty float64) Matrix2D {
	return Matrix2D{1, 0, 0, 1, tx, ty}
}

// Scale returns a scale matrix.
func Scale(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// Rotate returns a rotation matrix (angle in radians).
func Rotate(radians float64) Matrix2D {
	cos := math.Cos(radians)
	sin := math.Sin(radians)
	return Matrix2D{cos, sin, -sin, cos, 0, 0}
}

// Multiply multiplies this matrix by another: result = m * other
// This applies 'other' first, then 'm'.
func (m Matrix2D) Multiply(other Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*other[0] + m[2]*other[1],
		m[1]*other[0] + m[3]*other[1],
		m[0]*other[2] + m[2]*other[3],
		m[1]*other[2] + m[3]*other[3],
		m[0]*other[4] + m[2]*other[5] + m[4],
		m[1]*other[4] + m[3]*other[5] + m[5],
	}
}

// Compose multiplies the matrices left to right, so the last one is applied first.
func Compose(ms ...Matrix2D) Matrix2D {
	out := Identity()
	for _, m := range ms {
		out = out.Multiply(m)
	}
	return out
}

// Apply transforms a point.
func (m Matrix2D) Apply(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// ApplyVector transforms a direction, ignoring translation.
func (m Matrix2D) ApplyVector(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y,
		Y: m[1]*p.X + m[3]*p.Y,
	}
}

// Determinant returns the determinant of the matrix.
func (m Matrix2D) Determinant() float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Invert returns the inverse of the matrix, or Identity if not invertible.
func (m Matrix2D) Invert() Matrix2D {
	det := m.Determinant()
	if det == 0 {
		return Identity()
	}

	invDet := 1.0 / det
	return Matrix2D{
		m[3] * invDet,
		-m[1] * invDet,
		-m[2] * invDet,
		m[0] * invDet,
		(m[2]*m[5] - m[3]*m[4]) * invDet,
		(m[1]*m[4] - m[0]*m[5]) * invDet,
	}
}

// BoxMapping returns the matrix that maps box from onto box to: translate the
// centre of from to the origin, scale by the size ratio, translate to the centre of to.
// A degenerate axis on from keeps scale 1 on that axis.
func BoxMapping(from, to Box) Matrix2D {
	sx, sy := 1.0, 1.0
	if w := from.Width(); w != 0 {
		sx = to.Width() / w
	}
	if h := from.Height(); h != 0 {
		sy = to.Height() / h
	}
	cf := from.Center()
	ct := to.Center()
	return Compose(
		Translate(ct.X-cf.X, ct.Y-cf.Y),
		Translate(cf.X, cf.Y),
		Scale(sx, sy),
		Translate(-cf.X, -cf.Y),
	)
}
