package monitor

import (
	"time"

	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/cyclopcam/markertrack/pkg/pipeline"
)

type analyzerCommandKind int

const (
	commandReset analyzerCommandKind = iota
	commandSetObserver
	commandFailed
)

type analyzerCommand struct {
	kind     analyzerCommandKind
	observer *marker.ObserverPose
}

// FrameEvent is the analysis of a single frame, sent to watchers and kept in the history
// SYNC-FRAME-EVENT
type FrameEvent struct {
	FrameID    int64                `json:"frameID"`
	Generation int64                `json:"generation"`
	TimeMs     int64                `json:"timeMs"`     // Frame capture time, in unix milliseconds
	DetectMs   float64              `json:"detectMs"`   // Time spent in Backend.Detect
	Candidates int                  `json:"candidates"` // Raw candidates from the backend
	Result     pipeline.FrameResult `json:"result"`
}

// The analyzer is the single consumer of worker results. It owns the pipeline,
// so all stability and smoothing state is mutated on this thread only.
func (m *Monitor) analyzer() {
	defer close(m.analyzerStopped)

	pipe := pipeline.New(m.options.Pipeline, m.options.SolverFactory)
	appliedGen := m.generation.Load()

	// Bring the pipeline in line with the latest Reset/Restart
	syncGeneration := func() {
		gen := m.generation.Load()
		if gen != appliedGen {
			pipe.Reset()
			appliedGen = gen
			m.publish(nil, nil)
		}
	}

	for {
		select {
		case <-m.ctx.Done():
			return
		case cmd := <-m.commandQueue:
			switch cmd.kind {
			case commandReset:
				syncGeneration()
			case commandSetObserver:
				pipe.SetObserver(cmd.observer)
			case commandFailed:
				pipe.Reset()
				m.publish(nil, nil)
			}
		case res := <-m.resultQueue:
			syncGeneration()
			if res.generation != appliedGen || m.Status() == marker.DetectorStatusFailed {
				m.counters.Stale.Add(1)
				continue
			}
			width, height := res.imageWidth, res.imageHeight
			if width <= 0 || height <= 0 {
				width, height = m.backend.ImageSize()
			}
			nowMs := res.frameTime.UnixMilli()
			result := pipe.Process(res.candidates, width, height, nowMs)
			m.counters.Decoded.Add(1)
			ev := &FrameEvent{
				FrameID:    res.frameID,
				Generation: res.generation,
				TimeMs:     nowMs,
				DetectMs:   float64(res.detectTime) / float64(time.Millisecond),
				Candidates: len(res.candidates),
				Result:     result,
			}
			m.publish(result.Markers, ev)
			m.sendToWatchers(ev)
		}
	}
}

// Publish the latest markers, and add the event to the history
func (m *Monitor) publish(markers []marker.TrackedMarker, ev *FrameEvent) {
	if markers == nil {
		markers = []marker.TrackedMarker{}
	}
	m.markersLock.Lock()
	m.markers = markers
	if ev != nil {
		m.history.Add(*ev)
	}
	m.markersLock.Unlock()
}
