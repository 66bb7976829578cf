package monitor

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	"github.com/cyclopcam/markertrack/pkg/marker"
)

// Read frames from the source and offer them to the worker.
// A read error puts the monitor into the failed state. io.EOF just ends the reader.
func (m *Monitor) readFrames(ctx context.Context, stopped chan bool) {
	defer close(stopped)

	// Wait for the worker to leave the starting state
	for m.Status() == marker.DetectorStatusStarting {
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Millisecond):
		}
	}

	lastStats := time.Now()
	nStats := 0
	for ctx.Err() == nil && m.Status() == marker.DetectorStatusReady {
		frame, err := m.source.NextFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, io.EOF) {
				m.Log.Infof("Frame source has no more frames")
				break
			}
			m.fail(err)
			break
		}
		m.SubmitFrame(frame)

		interval := 10 * math.Pow(1.5, float64(nStats))
		interval = max(interval, 5)
		interval = min(interval, 3600)
		if time.Since(lastStats) > time.Duration(interval)*time.Second {
			nStats++
			c := m.counters.Snapshot()
			m.Log.Infof("%.0f%% of frames detected. %v dropped busy, %v throttled, %v stale. %.1f ms per detection",
				100*float64(c.Decoded)/float64(max(c.Submitted, 1)), c.DroppedBusy, c.DroppedThrottle, c.Stale, c.AvgDetectMS)
			lastStats = time.Now()
		}
	}
}
