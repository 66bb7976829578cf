package geom

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func requireQuat(t *testing.T, expect, actual Quat, tol float64) {
	t.Helper()
	require.InDelta(t, expect.X, actual.X, tol)
	require.InDelta(t, expect.Y, actual.Y, tol)
	require.InDelta(t, expect.Z, actual.Z, tol)
	require.InDelta(t, expect.W, actual.W, tol)
}

func requireVec(t *testing.T, expect, actual r3.Vector, tol float64) {
	t.Helper()
	require.InDelta(t, expect.X, actual.X, tol)
	require.InDelta(t, expect.Y, actual.Y, tol)
	require.InDelta(t, expect.Z, actual.Z, tol)
}

func TestRotate(t *testing.T) {
	q := FromAxisAngle(r3.Vector{Y: 1}, math.Pi/2)
	// +90 degrees about Y takes +X to -Z
	requireVec(t, r3.Vector{Z: -1}, q.Rotate(r3.Vector{X: 1}), 1e-12)
	requireVec(t, r3.Vector{X: 1, Y: 2, Z: 3}, Identity().Rotate(r3.Vector{X: 1, Y: 2, Z: 3}), 1e-12)
}

func TestMulOrder(t *testing.T) {
	a := FromAxisAngle(r3.Vector{Z: 1}, math.Pi/2)
	b := FromAxisAngle(r3.Vector{X: 1}, math.Pi/2)
	v := r3.Vector{Y: 1}
	// a⊗b applies b first
	requireVec(t, a.Rotate(b.Rotate(v)), a.Mul(b).Rotate(v), 1e-12)
}

func TestMatrixRoundTrip(t *testing.T) {
	axes := []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -0.3, Y: 0.8, Z: 0.1}}
	angles := []float64{0, 0.3, 1.5, math.Pi - 0.01, math.Pi, -2.2}
	for _, axis := range axes {
		for _, angle := range angles {
			q := FromAxisAngle(axis, angle)
			m := q.Matrix()
			require.InDelta(t, 1.0, m.Det(), 1e-9)
			back := FromMatrix(m)
			require.True(t, q.SameRotation(back, 1e-9), "axis %v angle %v: %v vs %v", axis, angle, q, back)
			require.InDelta(t, 1.0, back.Norm(), 1e-12)
		}
	}
}

func TestSlerpEndpoints(t *testing.T) {
	a := FromAxisAngle(r3.Vector{X: 0.2, Y: 1, Z: 0}, 0.4)
	b := FromAxisAngle(r3.Vector{X: 1, Y: 0, Z: 0.5}, 1.3)
	require.Greater(t, a.Dot(b), 0.0)
	requireQuat(t, a, Slerp(a, b, 0), 1e-9)
	requireQuat(t, b, Slerp(a, b, 1), 1e-9)
	for i := 0; i <= 20; i++ {
		q := Slerp(a, b, float64(i)/20)
		require.InDelta(t, 1.0, q.Norm(), 1e-12)
	}
}

func TestSlerpShortestPath(t *testing.T) {
	a := Identity()
	b := FromAxisAngle(r3.Vector{Z: 1}, 0.5).Neg()
	require.Less(t, a.Dot(b), 0.0)
	mid := Slerp(a, b, 0.5)
	// Halfway along the short arc is 0.25 rad, not the long way round
	require.True(t, mid.SameRotation(FromAxisAngle(r3.Vector{Z: 1}, 0.25), 1e-9))
	require.True(t, Slerp(a, b, 1).SameRotation(b, 1e-9))
}

func TestSlerpNearlyIdentical(t *testing.T) {
	a := FromAxisAngle(r3.Vector{Y: 1}, 0.1)
	b := FromAxisAngle(r3.Vector{Y: 1}, 0.1+1e-6)
	q := Slerp(a, b, 0.5)
	require.True(t, q.IsFinite())
	require.InDelta(t, 1.0, q.Norm(), 1e-12)
	require.True(t, q.SameRotation(a, 1e-9))
}

func TestNormalizeDegenerate(t *testing.T) {
	requireQuat(t, Identity(), Quat{}.Normalize(), 0)
	requireQuat(t, Identity(), Quat{X: math.NaN()}.Normalize(), 0)
	require.False(t, Quat{X: math.Inf(1)}.IsFinite())
}

func TestMat3(t *testing.T) {
	m := Mat3{{1, 2, 3}, {4, 5, 6}, {7, 8, 10}}
	require.Equal(t, m, m.Mul(IdentityMat3()))
	require.Equal(t, m, m.Transpose().Transpose())
	require.InDelta(t, -3.0, m.Det(), 1e-12)
	f := Diag(1, -1, -1)
	requireVec(t, r3.Vector{X: 1, Y: -2, Z: -3}, f.MulVec(r3.Vector{X: 1, Y: 2, Z: 3}), 0)
	require.Equal(t, r3.Vector{X: 2, Y: 5, Z: 8}, m.Column(1))
	require.Equal(t, m, FromColumns(m.Column(0), m.Column(1), m.Column(2)))
	m[1][1] = math.NaN()
	require.False(t, m.IsFinite())
}

func TestLerpVec(t *testing.T) {
	a := r3.Vector{X: 0, Y: 0, Z: 0}
	b := r3.Vector{X: 10, Y: -10, Z: 1}
	requireVec(t, r3.Vector{X: 3, Y: -3, Z: 0.3}, LerpVec(a, b, 0.3), 1e-12)
	require.False(t, IsFiniteVec(r3.Vector{Z: math.NaN()}))
}

func TestHomography(t *testing.T) {
	src := [4]Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	dst := [4]Vec2{{10, 20}, {110, 30}, {100, 140}, {5, 120}}
	h, err := ComputeHomography(src, dst)
	require.NoError(t, err)
	for i := range src {
		x, y := h.ApplyHomography(src[i].X, src[i].Y)
		require.InDelta(t, dst[i].X, x, 1e-9)
		require.InDelta(t, dst[i].Y, y, 1e-9)
	}

	// All destination points equal
	_, err = ComputeHomography(src, [4]Vec2{{1, 1}, {1, 1}, {1, 1}, {1, 1}})
	require.Error(t, err)
}
