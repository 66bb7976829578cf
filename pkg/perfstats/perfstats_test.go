package perfstats

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMovingAverage(t *testing.T) {
	var avg atomic.Int64
	UpdateMovingAverage(&avg, 1600)
	require.EqualValues(t, 1600, avg.Load())
	UpdateMovingAverage(&avg, 3200)
	require.EqualValues(t, 1700, avg.Load())
}

func TestTimeAccumulator(t *testing.T) {
	a := TimeAccumulator{}
	require.Equal(t, time.Duration(0), a.Average())
	a.AddSample(time.Millisecond)
	a.AddSample(3 * time.Millisecond)
	require.Equal(t, 2*time.Millisecond, a.Average())
	a.Reset()
	require.EqualValues(t, 0, a.Samples)
}

func TestCountersSnapshot(t *testing.T) {
	c := FrameCounters{}
	c.Submitted.Add(3)
	c.DroppedBusy.Add(1)
	c.AvgDetectNS.Store(2_500_000)
	s := c.Snapshot()
	require.EqualValues(t, 3, s.Submitted)
	require.EqualValues(t, 1, s.DroppedBusy)
	require.InDelta(t, 2.5, s.AvgDetectMS, 1e-9)
}
