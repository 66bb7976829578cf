package geom

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var ErrSingular = errors.New("Homography is singular")

// Vec2 is a 2D point in double precision
type Vec2 struct {
	X float64
	Y float64
}

// ComputeHomography returns H (with H[2][2] = 1) mapping each src[i] to dst[i]
func ComputeHomography(src, dst [4]Vec2) (Mat3, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		r := 2 * i
		a.SetRow(r, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		b.SetVec(r, x)
		a.SetRow(r+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		b.SetVec(r+1, y)
	}
	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return Mat3{}, ErrSingular
	}
	for i := 0; i < 8; i++ {
		if v := h.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return Mat3{}, ErrSingular
		}
	}
	return Mat3{
		{h.AtVec(0), h.AtVec(1), h.AtVec(2)},
		{h.AtVec(3), h.AtVec(4), h.AtVec(5)},
		{h.AtVec(6), h.AtVec(7), 1},
	}, nil
}

// ApplyHomography maps (x, y) through the homography m
func (m Mat3) ApplyHomography(x, y float64) (float64, float64) {
	w := m[2][0]*x + m[2][1]*y + m[2][2]
	return (m[0][0]*x + m[0][1]*y + m[0][2]) / w, (m[1][0]*x + m[1][1]*y + m[1][2]) / w
}
