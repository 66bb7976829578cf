package marker

import (
	"github.com/cyclopcam/markertrack/pkg/geom"
	"github.com/golang/geo/r3"
)

// RawCandidate is a quad found by a detector, before any filtering
type RawCandidate struct {
	MarkerID  int  `json:"markerID"`
	Corners   Quad `json:"corners"`
	ErrorBits int  `json:"errorBits"` // Hamming distance or parity error count of the id decode
}

// CandidateInput is the loosely typed form of a candidate that arrives from
// outside the process (eg over HTTP), where the corner count is not guaranteed.
type CandidateInput struct {
	MarkerID  int     `json:"markerID"`
	Corners   []Point `json:"corners"`
	ErrorBits int     `json:"errorBits"`
}

// ToRaw returns false if the input does not have exactly 4 finite corners
func (c CandidateInput) ToRaw() (RawCandidate, bool) {
	if len(c.Corners) != 4 {
		return RawCandidate{}, false
	}
	r := RawCandidate{MarkerID: c.MarkerID, ErrorBits: c.ErrorBits}
	copy(r.Corners[:], c.Corners)
	if !r.Corners.IsFinite() {
		return RawCandidate{}, false
	}
	return r, true
}

// ScoredCandidate is a RawCandidate that survived filtering
type ScoredCandidate struct {
	RawCandidate
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"score"`
}

// AnchorPose is a marker's believed world pose at one instant
type AnchorPose struct {
	Position     r3.Vector `json:"position"` // meters
	Rotation     geom.Quat `json:"rotation"`
	Confidence   float64   `json:"confidence"`
	LastSeenAtMs int64     `json:"lastSeenAtMs"`
}

// TrackedMarker is the output of the pipeline
type TrackedMarker struct {
	MarkerID   int        `json:"markerID"`
	Pose       AnchorPose `json:"pose"`
	SizeMeters float64    `json:"sizeMeters,omitempty"`
}

// ObserverPose is the world pose of the camera, supplied by the host each frame
type ObserverPose struct {
	Position r3.Vector `json:"position"`
	Rotation geom.Quat `json:"rotation"`
}

// PoseSolution is one answer from a planar pose solver, in the solver's camera
// frame (x right, y down, z forward).
type PoseSolution struct {
	Rotation      geom.Mat3
	TranslationMM r3.Vector
	Residual      float64
}
