// Package planarpose estimates the pose of a square marker from its four image corners.
// It decomposes the plane-to-image homography into a rotation and translation, and
// adds the mirrored solution that a planar target always admits.
package planarpose

import (
	"errors"
	"math"

	"github.com/cyclopcam/markertrack/pkg/geom"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

var ErrDegenerate = errors.New("Degenerate corner geometry")

// Two solutions closer than this (in radians of rotation) are considered the same
const duplicateAngle = 1e-3

// Solver is a pinhole camera plus a marker size. It has no mutable state.
type Solver struct {
	FocalPx      float64
	CX           float64 // Principal point
	CY           float64
	MarkerSizeMM float64
	model        [4]r3.Vector
}

// NewSolver creates a solver. Matches marker.SolverFactory.
func NewSolver(focalPx, cx, cy, markerSizeMM float64) marker.PoseSolver {
	h := markerSizeMM / 2
	return &Solver{
		FocalPx:      focalPx,
		CX:           cx,
		CY:           cy,
		MarkerSizeMM: markerSizeMM,
		// Same clockwise order as the image corners, in a y-down frame
		model: [4]r3.Vector{{X: -h, Y: -h}, {X: h, Y: -h}, {X: h, Y: h}, {X: -h, Y: h}},
	}
}

// Solve returns up to two solutions, lowest residual first.
// An empty result means the corners were degenerate.
func (s *Solver) Solve(corners marker.Quad) []marker.PoseSolution {
	rot, trans, err := s.homographyPose(corners)
	if err != nil {
		return nil
	}
	first := marker.PoseSolution{
		Rotation:      rot,
		TranslationMM: trans,
		Residual:      s.Residual(rot, trans, corners),
	}

	// The mirrored pose: spin 180 degrees about the line of sight, then 180 degrees
	// about the marker normal to restore the corner order.
	d := trans.Normalize()
	q := geom.Mat3{
		{2*d.X*d.X - 1, 2 * d.X * d.Y, 2 * d.X * d.Z},
		{2 * d.Y * d.X, 2*d.Y*d.Y - 1, 2 * d.Y * d.Z},
		{2 * d.Z * d.X, 2 * d.Z * d.Y, 2*d.Z*d.Z - 1},
	}
	mirrorRot := q.Mul(rot).Mul(geom.Diag(-1, -1, 1))
	if rotationAngle(rot, mirrorRot) < duplicateAngle {
		return []marker.PoseSolution{first}
	}
	second := marker.PoseSolution{
		Rotation:      mirrorRot,
		TranslationMM: trans,
		Residual:      s.Residual(mirrorRot, trans, corners),
	}
	if second.Residual < first.Residual {
		return []marker.PoseSolution{second, first}
	}
	return []marker.PoseSolution{first, second}
}

// Project a point in camera space to pixels
func (s *Solver) Project(p r3.Vector) marker.Point {
	return marker.Point{
		X: float32(s.FocalPx*p.X/p.Z + s.CX),
		Y: float32(s.FocalPx*p.Y/p.Z + s.CY),
	}
}

// ProjectMarker returns the image corners of the marker at the given pose
func (s *Solver) ProjectMarker(rot geom.Mat3, trans r3.Vector) marker.Quad {
	var q marker.Quad
	for i, m := range s.model {
		q[i] = s.Project(rot.MulVec(m).Add(trans))
	}
	return q
}

// Residual is the RMS reprojection error in pixels
func (s *Solver) Residual(rot geom.Mat3, trans r3.Vector, corners marker.Quad) float64 {
	proj := s.ProjectMarker(rot, trans)
	sum := 0.0
	for i := range corners {
		d := float64(proj[i].Distance(corners[i]))
		sum += d * d
	}
	return math.Sqrt(sum / 4)
}

func (s *Solver) homographyPose(corners marker.Quad) (geom.Mat3, r3.Vector, error) {
	if s.FocalPx <= 0 || s.MarkerSizeMM <= 0 {
		return geom.Mat3{}, r3.Vector{}, ErrDegenerate
	}
	var src, dst [4]geom.Vec2
	for i := 0; i < 4; i++ {
		src[i] = geom.Vec2{X: s.model[i].X, Y: s.model[i].Y}
		dst[i] = geom.Vec2{
			X: (float64(corners[i].X) - s.CX) / s.FocalPx,
			Y: (float64(corners[i].Y) - s.CY) / s.FocalPx,
		}
	}
	// Maps model XY (mm) to normalized image coordinates
	h, err := geom.ComputeHomography(src, dst)
	if err != nil {
		return geom.Mat3{}, r3.Vector{}, ErrDegenerate
	}

	h1 := h.Column(0)
	h2 := h.Column(1)
	h3 := h.Column(2)
	norm := (h1.Norm() + h2.Norm()) / 2
	if norm < 1e-12 {
		return geom.Mat3{}, r3.Vector{}, ErrDegenerate
	}
	lambda := 1 / norm
	// The marker must be in front of the camera
	if h3.Z*lambda < 0 {
		lambda = -lambda
	}
	r1 := h1.Mul(lambda)
	r2 := h2.Mul(lambda)
	trans := h3.Mul(lambda)
	rot, err := orthonormalize(geom.FromColumns(r1, r2, r1.Cross(r2)))
	if err != nil {
		return geom.Mat3{}, r3.Vector{}, err
	}
	return rot, trans, nil
}

// orthonormalize returns the rotation matrix closest to m
func orthonormalize(m geom.Mat3) (geom.Mat3, error) {
	d := mat.NewDense(3, 3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	})
	var svd mat.SVD
	if !svd.Factorize(d, mat.SVDFull) {
		return geom.Mat3{}, ErrDegenerate
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		// Flip the axis of the smallest singular value
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}
	var out geom.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = r.At(i, j)
		}
	}
	return out, nil
}

// Angle of the rotation that takes a to b
func rotationAngle(a, b geom.Mat3) float64 {
	d := a.Transpose().Mul(b)
	c := (d[0][0] + d[1][1] + d[2][2] - 1) / 2
	return math.Acos(math.Max(-1, math.Min(1, c)))
}
