// Package posesmooth low-pass filters per-marker poses, and forgets markers that
// have not been seen for a while.
package posesmooth

import (
	"sort"

	"github.com/cyclopcam/markertrack/pkg/gen"
	"github.com/cyclopcam/markertrack/pkg/geom"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/golang/geo/r3"
)

type Params struct {
	PositionAlpha    float64 // Weight of a new position sample
	RotationAlpha    float64 // Weight of a new rotation sample
	ConfidenceAlpha  float64 // Weight of a new confidence sample
	UnseenDecay      float64 // Confidence multiplier for every frame a marker is missing
	StaleThresholdMs int64   // Markers unseen for longer than this are dropped
}

func NewParams() *Params {
	return &Params{
		PositionAlpha:    0.3,
		RotationAlpha:    0.25,
		ConfidenceAlpha:  0.4,
		UnseenDecay:      0.92,
		StaleThresholdMs: 2000,
	}
}

// Estimate is one raw world pose sample
type Estimate struct {
	MarkerID   int
	Pose       marker.AnchorPose
	SizeMeters float64
}

type smoothState struct {
	markerID     int
	position     r3.Vector
	rotation     geom.Quat
	confidence   float64
	lastSeenAtMs int64
	sizeMeters   float64
}

// Smoother is owned by a single goroutine
type Smoother struct {
	params Params
	states map[int]*smoothState
}

func NewSmoother(params *Params) *Smoother {
	return &Smoother{
		params: *params,
		states: map[int]*smoothState{},
	}
}

// Update folds in this frame's estimates, ages the markers that were not seen,
// and returns every marker that is still alive, ordered by marker ID.
func (s *Smoother) Update(estimates []Estimate, nowMs int64) []marker.TrackedMarker {
	seen := map[int]bool{}
	for _, e := range estimates {
		seen[e.MarkerID] = true
		st := s.states[e.MarkerID]
		if st == nil {
			s.states[e.MarkerID] = &smoothState{
				markerID:     e.MarkerID,
				position:     e.Pose.Position,
				rotation:     e.Pose.Rotation.Normalize(),
				confidence:   e.Pose.Confidence,
				lastSeenAtMs: nowMs,
				sizeMeters:   e.SizeMeters,
			}
			continue
		}
		st.position = geom.LerpVec(st.position, e.Pose.Position, s.params.PositionAlpha)
		st.rotation = geom.Slerp(st.rotation, e.Pose.Rotation.Normalize(), s.params.RotationAlpha)
		st.confidence = gen.Lerp(st.confidence, e.Pose.Confidence, s.params.ConfidenceAlpha)
		st.lastSeenAtMs = nowMs
		if e.SizeMeters != 0 {
			st.sizeMeters = e.SizeMeters
		}
	}

	for id, st := range s.states {
		if !seen[id] {
			st.confidence *= s.params.UnseenDecay
		}
		if nowMs-st.lastSeenAtMs > s.params.StaleThresholdMs {
			delete(s.states, id)
		}
	}

	return s.Markers()
}

// Markers returns the current smoothed markers, without updating anything
func (s *Smoother) Markers() []marker.TrackedMarker {
	out := make([]marker.TrackedMarker, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, marker.TrackedMarker{
			MarkerID: st.markerID,
			Pose: marker.AnchorPose{
				Position:     st.position,
				Rotation:     st.rotation,
				Confidence:   st.confidence,
				LastSeenAtMs: st.lastSeenAtMs,
			},
			SizeMeters: st.sizeMeters,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MarkerID < out[j].MarkerID
	})
	return out
}

// Retain forgets every marker except markerID
func (s *Smoother) Retain(markerID int) {
	for id := range s.states {
		if id != markerID {
			delete(s.states, id)
		}
	}
}

func (s *Smoother) Len() int {
	return len(s.states)
}

func (s *Smoother) Reset() {
	s.states = map[int]*smoothState{}
}
