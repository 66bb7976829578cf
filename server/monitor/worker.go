package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/cyclopcam/markertrack/pkg/perfstats"
)

// A frame that has been accepted for detection
type workItem struct {
	frameID    int64
	generation int64
	frame      *marker.Frame
	observer   *marker.ObserverPose
}

// The outcome of detecting one frame
type workResult struct {
	frameID    int64
	generation int64
	frameTime  time.Time
	detectTime time.Duration
	candidates []marker.RawCandidate

	// Set only for externally detected candidates. Zero means the backend's image size.
	imageWidth  int
	imageHeight int
}

// Backends that need to do expensive setup before their first detection
type starter interface {
	Start(ctx context.Context) error
}

// Run the detection worker. There is exactly one of these at a time, and
// it owns the backend while it runs.
// Any error or panic puts the monitor into the failed state, and ends the worker.
func (m *Monitor) worker(queue chan workItem, stopped chan bool) {
	defer close(stopped)
	defer func() {
		if r := recover(); r != nil {
			m.fail(fmt.Errorf("panic in detection worker: %v", r))
		}
	}()

	if s, ok := m.backend.(starter); ok {
		if err := s.Start(m.ctx); err != nil {
			m.fail(fmt.Errorf("Error starting backend: %w", err))
			return
		}
	}
	m.status.Store(int32(marker.DetectorStatusReady))

	for item := range queue {
		start := time.Now()
		candidates, err := m.backend.Detect(m.ctx, item.frame, item.observer)
		elapsed := time.Since(start)
		perfstats.UpdateMovingAverage(&m.counters.AvgDetectNS, elapsed.Nanoseconds())
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			m.fail(fmt.Errorf("Error detecting markers in frame %v: %w", item.frameID, err))
			return
		}
		frameTime := time.Now()
		if item.frame != nil && !item.frame.Time.IsZero() {
			frameTime = item.frame.Time
		}
		result := workResult{
			frameID:    item.frameID,
			generation: item.generation,
			frameTime:  frameTime,
			detectTime: elapsed,
			candidates: candidates,
		}
		// Clear busy before handing off the result, so that the next frame
		// can be accepted while the analyzer is running.
		m.busy.Store(false)
		select {
		case m.resultQueue <- result:
		case <-m.ctx.Done():
			return
		}
	}
}
