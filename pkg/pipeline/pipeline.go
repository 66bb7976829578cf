// Package pipeline chains the candidate filter, stability tracker, pose resolver
// and pose smoother into a single per-frame step.
package pipeline

import (
	"github.com/cyclopcam/markertrack/pkg/candidate"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/cyclopcam/markertrack/pkg/poseresolve"
	"github.com/cyclopcam/markertrack/pkg/posesmooth"
	"github.com/cyclopcam/markertrack/pkg/stability"
)

type Params struct {
	Candidate *candidate.Params
	Stability *stability.Params
	Resolve   *poseresolve.Params
	Smooth    *posesmooth.Params
}

func NewParams() *Params {
	return &Params{
		Candidate: candidate.NewParams(),
		Stability: stability.NewParams(),
		Resolve:   poseresolve.NewParams(),
		Smooth:    posesmooth.NewParams(),
	}
}

// FrameResult is everything the pipeline learned from one frame
type FrameResult struct {
	Markers         []marker.TrackedMarker   `json:"markers"`
	Stable          []marker.ScoredCandidate `json:"stable"`
	Resolved        int                      `json:"resolved"`        // Stable candidates that produced a pose
	ResolveFailures int                      `json:"resolveFailures"` // Stable candidates with no usable pose
	Filter          candidate.Stats          `json:"filter"`
}

// Pipeline holds all cross-frame tracking state. Only one goroutine may use it.
type Pipeline struct {
	params     Params
	tracker    *stability.Tracker
	resolver   *poseresolve.Resolver
	smoother   *posesmooth.Smoother
	sizeMeters float64
}

func New(params *Params, newSolver marker.SolverFactory) *Pipeline {
	return &Pipeline{
		params:     *params,
		tracker:    stability.NewTracker(params.Stability),
		resolver:   poseresolve.NewResolver(params.Resolve, newSolver),
		smoother:   posesmooth.NewSmoother(params.Smooth),
		sizeMeters: params.Resolve.MarkerSizeMM / 1000,
	}
}

// SetObserver sets the observer pose used for the following frames (nil = untracked)
func (p *Pipeline) SetObserver(observer *marker.ObserverPose) {
	p.resolver.SetObserver(observer)
}

func (p *Pipeline) Observer() marker.ObserverPose {
	return p.resolver.Observer()
}

// Process runs one frame's raw candidates through the pipeline
func (p *Pipeline) Process(raw []marker.RawCandidate, imageWidth, imageHeight int, nowMs int64) FrameResult {
	scored, stats := candidate.Filter(raw, imageWidth, imageHeight, p.params.Candidate)
	stable := p.tracker.Update(scored)
	estimates := make([]posesmooth.Estimate, 0, len(stable))
	failures := 0
	for _, c := range stable {
		pose, ok := p.resolver.Resolve(c, imageWidth, imageHeight, nowMs)
		if !ok {
			failures++
			continue
		}
		estimates = append(estimates, posesmooth.Estimate{
			MarkerID:   c.MarkerID,
			Pose:       pose,
			SizeMeters: p.sizeMeters,
		})
	}
	// In single marker mode a newly resolved winner replaces the previous marker
	// at once. With no resolved pose this frame, the previous marker coasts.
	if p.params.Stability.SingleBestOnly && len(estimates) == 1 {
		p.smoother.Retain(estimates[0].MarkerID)
	}
	return FrameResult{
		Markers:         p.smoother.Update(estimates, nowMs),
		Stable:          stable,
		Resolved:        len(estimates),
		ResolveFailures: failures,
		Filter:          stats,
	}
}

// Markers returns the smoothed markers as of the last Process call
func (p *Pipeline) Markers() []marker.TrackedMarker {
	return p.smoother.Markers()
}

// Streak of a marker in the stability tracker
func (p *Pipeline) Streak(markerID int) int {
	return p.tracker.Streak(markerID)
}

// Reset forgets all tracking state. The observer pose is kept.
func (p *Pipeline) Reset() {
	p.tracker.Reset()
	p.smoother.Reset()
}
