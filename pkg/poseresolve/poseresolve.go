// Package poseresolve turns camera-relative solver output into world poses
package poseresolve

import (
	"math"

	"github.com/cyclopcam/markertrack/pkg/geom"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/golang/geo/r3"
)

// axisFlip converts the solver frame (x right, y down, z forward) into the
// renderer frame (x right, y up, z backward).
var axisFlip = geom.Diag(1, -1, -1)

type Params struct {
	FocalLengthPx   float64 // If zero, the image width is used
	MarkerSizeMM    float64
	MinDepthMM      float64             // Solutions this close to the camera (or behind it) are rejected
	DefaultObserver marker.ObserverPose // Used when the host supplies no observer pose
}

func NewParams() *Params {
	return &Params{
		MarkerSizeMM: 100,
		MinDepthMM:   1,
		DefaultObserver: marker.ObserverPose{
			Position: r3.Vector{X: 0, Y: 1.6, Z: 0},
			Rotation: geom.Identity(),
		},
	}
}

type solverKey struct {
	focalPx      float64
	cx, cy       float64
	markerSizeMM float64
}

// Resolver is owned by the consumer goroutine. It is not safe for concurrent use.
type Resolver struct {
	params       Params
	newSolver    marker.SolverFactory
	observer     *marker.ObserverPose
	solver       marker.PoseSolver
	solverKey    solverKey
	solverBuilds int
}

func NewResolver(params *Params, newSolver marker.SolverFactory) *Resolver {
	return &Resolver{
		params:    *params,
		newSolver: newSolver,
	}
}

// SetObserver sets the observer pose for subsequent frames. nil means the
// host is not tracking, and the default observer is used instead.
func (r *Resolver) SetObserver(observer *marker.ObserverPose) {
	if observer == nil {
		r.observer = nil
		return
	}
	o := *observer
	o.Rotation = o.Rotation.Normalize()
	r.observer = &o
}

// Observer returns the observer pose that will be composed with the next solve
func (r *Resolver) Observer() marker.ObserverPose {
	if r.observer != nil {
		return *r.observer
	}
	return r.params.DefaultObserver
}

func (r *Resolver) HasObserver() bool {
	return r.observer != nil
}

// Number of times the solver has been built. Exposed for diagnostics.
func (r *Resolver) SolverBuilds() int {
	return r.solverBuilds
}

// solverFor returns the cached solver, rebuilding it if the camera geometry changed
func (r *Resolver) solverFor(imageWidth, imageHeight int) marker.PoseSolver {
	focal := r.params.FocalLengthPx
	if focal <= 0 {
		focal = float64(imageWidth)
	}
	key := solverKey{
		focalPx:      focal,
		cx:           float64(imageWidth) / 2,
		cy:           float64(imageHeight) / 2,
		markerSizeMM: r.params.MarkerSizeMM,
	}
	if r.solver == nil || key != r.solverKey {
		r.solver = r.newSolver(key.focalPx, key.cx, key.cy, key.markerSizeMM)
		r.solverKey = key
		r.solverBuilds++
	}
	return r.solver
}

// Resolve solves the candidate's corners, and returns its world pose.
// Returns false if no solver solution is usable.
func (r *Resolver) Resolve(c marker.ScoredCandidate, imageWidth, imageHeight int, nowMs int64) (marker.AnchorPose, bool) {
	solver := r.solverFor(imageWidth, imageHeight)
	return r.ResolveSolutions(solver.Solve(c.Corners), c.Confidence, nowMs)
}

// ResolveSolutions picks the best valid solution, and composes it with the observer pose
func (r *Resolver) ResolveSolutions(solutions []marker.PoseSolution, confidence float64, nowMs int64) (marker.AnchorPose, bool) {
	best, ok := SelectSolution(solutions, r.params.MinDepthMM)
	if !ok {
		return marker.AnchorPose{}, false
	}
	relPos, relRot := ToRendererFrame(best)
	obs := r.Observer()
	pos, rot := Compose(obs, relPos, relRot)
	return marker.AnchorPose{
		Position:     pos,
		Rotation:     rot,
		Confidence:   confidence,
		LastSeenAtMs: nowMs,
	}, true
}

// SelectSolution returns the valid solution with the lowest residual.
// A solution is invalid if it has any non-finite value, or its depth is not beyond minDepthMM.
func SelectSolution(solutions []marker.PoseSolution, minDepthMM float64) (marker.PoseSolution, bool) {
	best := -1
	for i, s := range solutions {
		if !s.Rotation.IsFinite() || !geom.IsFiniteVec(s.TranslationMM) || math.IsNaN(s.Residual) {
			continue
		}
		if s.TranslationMM.Z <= minDepthMM {
			continue
		}
		if best == -1 || s.Residual < solutions[best].Residual {
			best = i
		}
	}
	if best == -1 {
		return marker.PoseSolution{}, false
	}
	return solutions[best], true
}

// ToRendererFrame converts a solver solution into a camera-relative position
// (meters) and rotation in the renderer's axis convention.
func ToRendererFrame(s marker.PoseSolution) (r3.Vector, geom.Quat) {
	rot := axisFlip.Mul(s.Rotation).Mul(axisFlip)
	pos := axisFlip.MulVec(s.TranslationMM).Mul(0.001)
	return pos, geom.FromMatrix(rot)
}

// Compose places a camera-relative pose into the world, given the observer's world pose
func Compose(observer marker.ObserverPose, relPos r3.Vector, relRot geom.Quat) (r3.Vector, geom.Quat) {
	pos := observer.Position.Add(observer.Rotation.Rotate(relPos))
	rot := observer.Rotation.Mul(relRot).Normalize()
	return pos, rot
}
