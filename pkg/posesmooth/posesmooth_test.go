package posesmooth

import (
	"testing"

	"github.com/cyclopcam/markertrack/pkg/geom"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func est(id int, pos r3.Vector, rot geom.Quat, conf float64) Estimate {
	return Estimate{
		MarkerID: id,
		Pose:     marker.AnchorPose{Position: pos, Rotation: rot, Confidence: conf},
	}
}

func TestFirstSightingIsExact(t *testing.T) {
	s := NewSmoother(NewParams())
	rot := geom.FromAxisAngle(r3.Vector{Y: 1}, 1)
	out := s.Update([]Estimate{est(4, r3.Vector{X: 1, Y: 2, Z: 3}, rot, 0.8)}, 100)
	require.Len(t, out, 1)
	require.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, out[0].Pose.Position)
	require.True(t, out[0].Pose.Rotation.SameRotation(rot, 1e-12))
	require.Equal(t, 0.8, out[0].Pose.Confidence)
	require.EqualValues(t, 100, out[0].Pose.LastSeenAtMs)
}

func TestBlend(t *testing.T) {
	s := NewSmoother(NewParams())
	s.Update([]Estimate{est(1, r3.Vector{}, geom.Identity(), 1)}, 0)
	target := geom.FromAxisAngle(r3.Vector{Z: 1}, 1)
	out := s.Update([]Estimate{est(1, r3.Vector{X: 10}, target, 0.5)}, 50)
	require.InDelta(t, 3.0, out[0].Pose.Position.X, 1e-12)
	require.True(t, out[0].Pose.Rotation.SameRotation(geom.FromAxisAngle(r3.Vector{Z: 1}, 0.25), 1e-9))
	require.InDelta(t, 0.8, out[0].Pose.Confidence, 1e-12)
}

func TestConverges(t *testing.T) {
	s := NewSmoother(NewParams())
	s.Update([]Estimate{est(1, r3.Vector{X: -3, Y: 5}, geom.FromAxisAngle(r3.Vector{X: 1}, 2), 0.2)}, 0)
	pos := r3.Vector{X: 0.5, Y: 1.2, Z: -0.7}
	rot := geom.FromAxisAngle(r3.Vector{X: 0.3, Y: 1, Z: 0}, -0.8)
	var out []marker.TrackedMarker
	for i := 1; i <= 200; i++ {
		out = s.Update([]Estimate{est(1, pos, rot, 0.9)}, int64(i*50))
		require.InDelta(t, 1, out[0].Pose.Rotation.Norm(), 1e-9)
	}
	require.InDelta(t, pos.X, out[0].Pose.Position.X, 1e-9)
	require.InDelta(t, pos.Y, out[0].Pose.Position.Y, 1e-9)
	require.InDelta(t, pos.Z, out[0].Pose.Position.Z, 1e-9)
	require.True(t, out[0].Pose.Rotation.SameRotation(rot, 1e-9))
	require.InDelta(t, 0.9, out[0].Pose.Confidence, 1e-9)
}

func TestUnseenDecayAndStale(t *testing.T) {
	s := NewSmoother(NewParams())
	s.Update([]Estimate{est(1, r3.Vector{}, geom.Identity(), 1), est(2, r3.Vector{}, geom.Identity(), 1)}, 1000)

	out := s.Update([]Estimate{est(2, r3.Vector{}, geom.Identity(), 1)}, 1100)
	require.Len(t, out, 2)
	require.Equal(t, 1, out[0].MarkerID)
	require.InDelta(t, 0.92, out[0].Pose.Confidence, 1e-12)
	require.InDelta(t, 1.0, out[1].Pose.Confidence, 1e-12)

	// Exactly at the threshold, marker 1 still coasts
	out = s.Update(nil, 3000)
	require.Len(t, out, 2)
	require.InDelta(t, 0.92*0.92, out[0].Pose.Confidence, 1e-12)

	// One millisecond past it, marker 1 is gone, but marker 2 (last seen at 1100) remains
	out = s.Update(nil, 3001)
	require.Len(t, out, 1)
	require.Equal(t, 2, out[0].MarkerID)

	out = s.Update(nil, 1100+2001)
	require.Empty(t, out)
	require.Equal(t, 0, s.Len())
}

func TestShortestPathRotation(t *testing.T) {
	s := NewSmoother(NewParams())
	s.Update([]Estimate{est(1, r3.Vector{}, geom.Identity(), 1)}, 0)
	// Same rotation as 0.4 rad about Z, but on the other side of the double cover
	flipped := geom.FromAxisAngle(r3.Vector{Z: 1}, 0.4).Neg()
	out := s.Update([]Estimate{est(1, r3.Vector{}, flipped, 1)}, 10)
	require.True(t, out[0].Pose.Rotation.SameRotation(geom.FromAxisAngle(r3.Vector{Z: 1}, 0.1), 1e-9))
}

func TestSizeAndReset(t *testing.T) {
	s := NewSmoother(NewParams())
	e := est(9, r3.Vector{}, geom.Identity(), 1)
	e.SizeMeters = 0.1
	out := s.Update([]Estimate{e}, 0)
	require.Equal(t, 0.1, out[0].SizeMeters)
	e.SizeMeters = 0
	out = s.Update([]Estimate{e}, 10)
	require.Equal(t, 0.1, out[0].SizeMeters)
	s.Reset()
	require.Empty(t, s.Markers())
}

func TestRetain(t *testing.T) {
	s := NewSmoother(NewParams())
	s.Update([]Estimate{est(1, r3.Vector{}, geom.Identity(), 1), est(2, r3.Vector{}, geom.Identity(), 1)}, 0)
	require.Equal(t, 2, s.Len())
	s.Retain(2)
	out := s.Markers()
	require.Len(t, out, 1)
	require.Equal(t, 2, out[0].MarkerID)
}
