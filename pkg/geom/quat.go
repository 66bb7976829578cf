package geom

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Above this dot product, Slerp falls back to normalized lerp
const slerpLinearThreshold = 0.9995

// Quat is a rotation quaternion. Every constructor and operation in this package
// returns a unit quaternion, except for Add-style raw combinations which callers
// must Normalize.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

func Identity() Quat {
	return Quat{W: 1}
}

func (q Quat) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quat {
	return Quat{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

// Mul returns q ⊗ b, which applies b first and then q.
func (q Quat) Mul(b Quat) Quat {
	return fromNumber(quat.Mul(q.number(), b.number()))
}

func (q Quat) Conj() Quat {
	return fromNumber(quat.Conj(q.number()))
}

func (q Quat) Norm() float64 {
	return quat.Abs(q.number())
}

func (q Quat) Dot(b Quat) float64 {
	return q.X*b.X + q.Y*b.Y + q.Z*b.Z + q.W*b.W
}

func (q Quat) Neg() Quat {
	return Quat{-q.X, -q.Y, -q.Z, -q.W}
}

// Normalize returns q scaled to unit length. A degenerate (zero or non-finite)
// quaternion becomes the identity.
func (q Quat) Normalize() Quat {
	n := q.Norm()
	if n < 1e-12 || !isFinite(n) {
		return Identity()
	}
	return fromNumber(quat.Scale(1/n, q.number()))
}

func (q Quat) IsFinite() bool {
	return isFinite(q.X) && isFinite(q.Y) && isFinite(q.Z) && isFinite(q.W)
}

// Rotate v by q (q v q*)
func (q Quat) Rotate(v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q.number(), p), quat.Conj(q.number()))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// SameRotation returns true if q and b represent the same rotation, to within tol.
// q and -q are the same rotation.
func (q Quat) SameRotation(b Quat, tol float64) bool {
	return math.Abs(math.Abs(q.Dot(b))-1) <= tol
}

func FromAxisAngle(axis r3.Vector, radians float64) Quat {
	axis = axis.Normalize()
	s := math.Sin(radians / 2)
	return Quat{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: math.Cos(radians / 2)}
}

// Nlerp is a component-wise lerp followed by normalization.
// It does not correct for the double cover, so callers must flip b first if needed.
func Nlerp(a, b Quat, t float64) Quat {
	return Quat{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
		W: a.W + (b.W-a.W)*t,
	}.Normalize()
}

// Slerp interpolates along the shortest arc from a (t=0) to b (t=1).
func Slerp(a, b Quat, t float64) Quat {
	dot := a.Dot(b)
	if dot < 0 {
		b = b.Neg()
		dot = -dot
	}
	if dot > slerpLinearThreshold {
		return Nlerp(a, b, t)
	}
	theta := math.Acos(dot)
	sinTheta := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sinTheta
	wb := math.Sin(t*theta) / sinTheta
	return Quat{
		X: a.X*wa + b.X*wb,
		Y: a.Y*wa + b.Y*wb,
		Z: a.Z*wa + b.Z*wb,
		W: a.W*wa + b.W*wb,
	}.Normalize()
}

// FromMatrix converts a rotation matrix into a unit quaternion.
// Branches on the largest diagonal term to keep the divisor away from zero.
func FromMatrix(m Mat3) Quat {
	var q Quat
	trace := m[0][0] + m[1][1] + m[2][2]
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q.W = 0.25 * s
		q.X = (m[2][1] - m[1][2]) / s
		q.Y = (m[0][2] - m[2][0]) / s
		q.Z = (m[1][0] - m[0][1]) / s
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := math.Sqrt(1+m[0][0]-m[1][1]-m[2][2]) * 2
		q.W = (m[2][1] - m[1][2]) / s
		q.X = 0.25 * s
		q.Y = (m[0][1] + m[1][0]) / s
		q.Z = (m[0][2] + m[2][0]) / s
	case m[1][1] > m[2][2]:
		s := math.Sqrt(1+m[1][1]-m[0][0]-m[2][2]) * 2
		q.W = (m[0][2] - m[2][0]) / s
		q.X = (m[0][1] + m[1][0]) / s
		q.Y = 0.25 * s
		q.Z = (m[1][2] + m[2][1]) / s
	default:
		s := math.Sqrt(1+m[2][2]-m[0][0]-m[1][1]) * 2
		q.W = (m[1][0] - m[0][1]) / s
		q.X = (m[0][2] + m[2][0]) / s
		q.Y = (m[1][2] + m[2][1]) / s
		q.Z = 0.25 * s
	}
	return q.Normalize()
}

// Matrix returns the rotation matrix of a unit quaternion
func (q Quat) Matrix() Mat3 {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	return Mat3{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
