package monitor

import (
	"context"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/cyclopcam/markertrack/server/backend"
	"github.com/cyclopcam/markertrack/server/config"
	"github.com/stretchr/testify/require"
)

// Delivers a fixed number of empty frames, then io.EOF
type countedSource struct {
	remaining int
	nextID    int64
}

func (c *countedSource) NextFrame(ctx context.Context) (*marker.Frame, error) {
	if c.remaining == 0 {
		return nil, io.EOF
	}
	c.remaining--
	c.nextID++
	time.Sleep(2 * time.Millisecond)
	return &marker.Frame{ID: c.nextID, Time: time.Now()}, nil
}

type brokenSource struct{}

func (brokenSource) NextFrame(ctx context.Context) (*marker.Frame, error) {
	return nil, errCameraGone
}

func TestFrameReaderEOF(t *testing.T) {
	m := NewMonitor(logs.NewTestingLog(t), &fakeBackend{}, &countedSource{remaining: 10}, DefaultOptions())
	defer m.Close()
	require.NoError(t, m.Start())
	require.Eventually(t, func() bool { return m.Counters().Submitted == 10 }, 5*time.Second, time.Millisecond)
	// Running out of frames is not a failure
	require.Equal(t, marker.DetectorStatusReady, m.Status())
}

func TestFrameReaderError(t *testing.T) {
	m := NewMonitor(logs.NewTestingLog(t), &fakeBackend{}, brokenSource{}, DefaultOptions())
	defer m.Close()
	require.NoError(t, m.Start())
	require.Eventually(t, func() bool { return m.Status() == marker.DetectorStatusFailed }, 5*time.Second, time.Millisecond)
}

func TestMockBackendEndToEnd(t *testing.T) {
	log := logs.NewTestingLog(t)
	cfg := config.DefaultConfig()
	cfg.Mock.MarkerIDs = []int{19, 42}
	mock, err := backend.NewMock(log, &cfg.Mock, 0)
	require.NoError(t, err)

	opt := DefaultOptions()
	opt.DetectInterval = 0
	opt.Pipeline = cfg.PipelineParams()
	m := NewMonitor(log, mock, mock, opt)
	defer m.Close()
	require.NoError(t, m.Start())

	ids := func() []int {
		r := []int{}
		for _, mk := range m.Markers() {
			r = append(r, mk.MarkerID)
		}
		sort.Ints(r)
		return r
	}
	require.Eventually(t, func() bool { return len(ids()) == 2 }, 10*time.Second, 5*time.Millisecond)
	require.Equal(t, []int{19, 42}, ids())
	for _, mk := range m.Markers() {
		require.Equal(t, 0.1, mk.SizeMeters)
		// Markers are 420 to 580mm in front of the default observer, which looks down -Z
		require.InDelta(t, -0.5, mk.Pose.Position.Z, 0.12)
		require.Greater(t, mk.Pose.Confidence, 0.5)
	}
}
