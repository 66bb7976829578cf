package pipeline

import (
	"math"
	"testing"

	"github.com/cyclopcam/markertrack/pkg/geom"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

// Returns one solution per call, at the next depth in the script
type scriptedSolver struct {
	depthsMM []float64
	calls    int
}

func (s *scriptedSolver) Solve(corners marker.Quad) []marker.PoseSolution {
	z := s.depthsMM[min(s.calls, len(s.depthsMM)-1)]
	s.calls++
	return []marker.PoseSolution{{Rotation: geom.IdentityMat3(), TranslationMM: r3.Vector{Z: z}}}
}

func centered(id int) marker.RawCandidate {
	return marker.RawCandidate{
		MarkerID: id,
		Corners:  marker.Quad{{X: 300, Y: 220}, {X: 340, Y: 220}, {X: 340, Y: 260}, {X: 300, Y: 260}},
	}
}

func newPipeline(solver marker.PoseSolver) *Pipeline {
	return New(NewParams(), func(focalPx, cx, cy, markerSizeMM float64) marker.PoseSolver {
		return solver
	})
}

func TestShallowPoseKeepsStreak(t *testing.T) {
	solver := &scriptedSolver{depthsMM: []float64{5, -2}}
	p := newPipeline(solver)
	frame := []marker.RawCandidate{centered(3)}

	// Not stable yet
	r := p.Process(frame, 640, 480, 0)
	require.Empty(t, r.Stable)
	require.Equal(t, 0, solver.calls)

	// Stable, and z=5mm resolves
	r = p.Process(frame, 640, 480, 50)
	require.Len(t, r.Stable, 1)
	require.Equal(t, 1, r.Resolved)
	require.Len(t, r.Markers, 1)
	require.InDelta(t, -0.005, r.Markers[0].Pose.Position.Z, 1e-12)

	// z=-2mm is rejected. The marker coasts in the smoother, and its streak is untouched.
	r = p.Process(frame, 640, 480, 100)
	require.Equal(t, 0, r.Resolved)
	require.Equal(t, 1, r.ResolveFailures)
	require.Len(t, r.Markers, 1)
	require.EqualValues(t, 50, r.Markers[0].Pose.LastSeenAtMs)
	require.Equal(t, 3, p.Streak(3))

	// Absent: the streak decays by 2 instead of vanishing
	p.Process(nil, 640, 480, 150)
	require.Equal(t, 1, p.Streak(3))
}

func TestEndToEndTiming(t *testing.T) {
	p := newPipeline(&scriptedSolver{depthsMM: []float64{500}})
	frame := []marker.RawCandidate{centered(8)}
	p.Process(frame, 640, 480, 0)
	r := p.Process(frame, 640, 480, 50)
	require.Len(t, r.Markers, 1)
	require.Equal(t, 0.1, r.Markers[0].SizeMeters)
	// Default observer sits 1.6m up
	require.InDelta(t, 1.6, r.Markers[0].Pose.Position.Y, 1e-12)

	// Marker leaves; it coasts until stale
	r = p.Process(nil, 640, 480, 2050)
	require.Len(t, r.Markers, 1)
	r = p.Process(nil, 640, 480, 2051)
	require.Empty(t, r.Markers)
}

func TestFilterStatsAndReset(t *testing.T) {
	p := newPipeline(&scriptedSolver{depthsMM: []float64{500}})
	bad := centered(600)
	r := p.Process([]marker.RawCandidate{centered(1), bad}, 640, 480, 0)
	require.Equal(t, 2, r.Filter.Input)
	require.Equal(t, 1, r.Filter.RejectedID)
	p.Process([]marker.RawCandidate{centered(1)}, 640, 480, 10)
	require.Len(t, p.Markers(), 1)

	p.SetObserver(&marker.ObserverPose{Position: r3.Vector{X: 1}, Rotation: geom.Identity()})
	p.Reset()
	require.Empty(t, p.Markers())
	require.Equal(t, 0, p.Streak(1))
	require.Equal(t, 1.0, p.Observer().Position.X)
}

func TestSingleBestOnly(t *testing.T) {
	corner := marker.RawCandidate{
		MarkerID: 2,
		Corners:  marker.Quad{{X: 20, Y: 20}, {X: 60, Y: 20}, {X: 60, Y: 60}, {X: 20, Y: 60}},
	}
	frame := []marker.RawCandidate{corner, centered(1)}

	for _, single := range []bool{false, true} {
		params := NewParams()
		params.Stability.SingleBestOnly = single
		p := New(params, func(focalPx, cx, cy, markerSizeMM float64) marker.PoseSolver {
			return &scriptedSolver{depthsMM: []float64{500}}
		})
		p.Process(frame, 640, 480, 0)
		r := p.Process(frame, 640, 480, 50)
		if single {
			// The centered marker outscores the one in the corner
			require.Len(t, r.Markers, 1)
			require.Equal(t, 1, r.Markers[0].MarkerID)
		} else {
			require.Len(t, r.Markers, 2)
			require.Equal(t, 1, r.Markers[0].MarkerID)
			require.Equal(t, 2, r.Markers[1].MarkerID)
		}
	}
}

func newSingleBestPipeline() *Pipeline {
	params := NewParams()
	params.Stability.SingleBestOnly = true
	return New(params, func(focalPx, cx, cy, markerSizeMM float64) marker.PoseSolver {
		return &scriptedSolver{depthsMM: []float64{500}}
	})
}

func TestSingleBestIgnoresNonFiniteCorners(t *testing.T) {
	nan := float32(math.NaN())
	bad := marker.RawCandidate{
		MarkerID: 5,
		Corners:  marker.Quad{{X: nan, Y: 0}, {X: 40, Y: 0}, {X: 40, Y: 40}, {X: 0, Y: 40}},
	}
	frame := []marker.RawCandidate{bad, centered(1)}
	p := newSingleBestPipeline()
	p.Process(frame, 640, 480, 0)
	r := p.Process(frame, 640, 480, 50)
	require.Equal(t, 1, r.Filter.RejectedMalformed)
	require.Len(t, r.Stable, 1)
	require.Equal(t, 1, r.Stable[0].MarkerID)
	require.Len(t, r.Markers, 1)
	require.Equal(t, 1, r.Markers[0].MarkerID)
}

func TestSingleBestSwitchDropsPreviousMarker(t *testing.T) {
	corner := marker.RawCandidate{
		MarkerID: 2,
		Corners:  marker.Quad{{X: 20, Y: 20}, {X: 60, Y: 20}, {X: 60, Y: 60}, {X: 20, Y: 60}},
	}
	p := newSingleBestPipeline()
	p.Process([]marker.RawCandidate{centered(1)}, 640, 480, 0)
	r := p.Process([]marker.RawCandidate{centered(1)}, 640, 480, 50)
	require.Len(t, r.Markers, 1)
	require.Equal(t, 1, r.Markers[0].MarkerID)

	// Marker 2 is not yet stable, so marker 1 coasts
	r = p.Process([]marker.RawCandidate{corner}, 640, 480, 100)
	require.Empty(t, r.Stable)
	require.Len(t, r.Markers, 1)
	require.Equal(t, 1, r.Markers[0].MarkerID)

	// Marker 2 resolves and replaces marker 1 immediately
	r = p.Process([]marker.RawCandidate{corner}, 640, 480, 150)
	require.Len(t, r.Markers, 1)
	require.Equal(t, 2, r.Markers[0].MarkerID)
}
