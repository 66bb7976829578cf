package perfstats

import (
	"sync/atomic"
	"time"
)

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
}

func (a *TimeAccumulator) Reset() {
	a.Samples = 0
	a.Total = 0
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

// Update an exponential moving average of nanoseconds, stored in an atomic.
// The first sample is stored directly.
func UpdateMovingAverage(avg *atomic.Int64, sampleNS int64) {
	old := avg.Load()
	if old == 0 {
		avg.Store(sampleNS)
		return
	}
	// 1/16 weight for the new sample
	avg.Store(old + (sampleNS-old)/16)
}

// Counters for the frame pipeline. Safe for concurrent use.
type FrameCounters struct {
	Submitted       atomic.Int64 // Frames offered to the worker
	DroppedBusy     atomic.Int64 // Dropped because a decode was already in flight
	DroppedThrottle atomic.Int64 // Dropped because the detection interval had not elapsed
	DroppedNotReady atomic.Int64 // Dropped because the worker was not running
	Decoded         atomic.Int64 // Frames that produced a result
	Stale           atomic.Int64 // Results discarded because tracking was reset meanwhile
	AvgDetectNS     atomic.Int64 // Moving average of backend detection time
}

// Plain copy of FrameCounters, for JSON
type FrameCountersSnapshot struct {
	Submitted       int64   `json:"submitted"`
	DroppedBusy     int64   `json:"droppedBusy"`
	DroppedThrottle int64   `json:"droppedThrottle"`
	DroppedNotReady int64   `json:"droppedNotReady"`
	Decoded         int64   `json:"decoded"`
	Stale           int64   `json:"stale"`
	AvgDetectMS     float64 `json:"avgDetectMS"`
}

func (c *FrameCounters) Snapshot() FrameCountersSnapshot {
	return FrameCountersSnapshot{
		Submitted:       c.Submitted.Load(),
		DroppedBusy:     c.DroppedBusy.Load(),
		DroppedThrottle: c.DroppedThrottle.Load(),
		DroppedNotReady: c.DroppedNotReady.Load(),
		Decoded:         c.Decoded.Load(),
		Stale:           c.Stale.Load(),
		AvgDetectMS:     float64(c.AvgDetectNS.Load()) / 1e6,
	}
}
