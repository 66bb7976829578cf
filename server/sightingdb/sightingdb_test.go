package sightingdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func createTestDB(t *testing.T) *SightingDB {
	db, err := Open(logs.NewTestingLog(t), filepath.Join(t.TempDir(), "sightings.sqlite"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func tracked(id int, z float64) marker.TrackedMarker {
	return marker.TrackedMarker{
		MarkerID:   id,
		SizeMeters: 0.1,
		Pose: marker.AnchorPose{
			Position:   r3.Vector{Y: 1.6, Z: z},
			Confidence: 0.9,
		},
	}
}

func TestRecorder(t *testing.T) {
	db := createTestDB(t)
	require.NotEmpty(t, db.SessionID)
	rec := NewRecorder(db)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	n, err := rec.Observe([]marker.TrackedMarker{tracked(5, -1)}, t0)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Same marker again: nothing new
	n, err = rec.Observe([]marker.TrackedMarker{tracked(5, -1.1)}, t0.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, 0, n)

	// 9 appears, 5 is lost
	n, err = rec.Observe([]marker.TrackedMarker{tracked(9, -2)}, t0.Add(2*time.Second))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 1, rec.Present())

	all, err := db.Sightings(-1, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	five, err := db.Sightings(5, 10)
	require.NoError(t, err)
	require.Len(t, five, 2)
	require.Equal(t, SightingLost, five[0].Kind)
	require.Equal(t, SightingAppeared, five[1].Kind)
	// Lost carries the last known position
	require.InDelta(t, -1.1, five[0].Z, 1e-9)
	require.Equal(t, db.SessionID, five[0].SessionID)
	require.True(t, five[1].Time.Get().Equal(t0))

	limited, err := db.Sightings(-1, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	// Appearances are written before losses within a frame
	require.Equal(t, 5, limited[0].MarkerID)
	require.Equal(t, SightingLost, limited[0].Kind)
}
