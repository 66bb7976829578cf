// Package sightingdb keeps a log of when markers appear and disappear
package sightingdb

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SightingDB struct {
	Log       logs.Log
	DB        *gorm.DB
	SessionID string
}

// Open or create a sighting DB
func Open(log logs.Log, filename string) (*SightingDB, error) {
	filename = filepath.Clean(filename)
	if err := os.MkdirAll(filepath.Dir(filename), 0770); err != nil {
		return nil, fmt.Errorf("Failed to create sighting DB path '%v': %w", filepath.Dir(filename), err)
	}
	log.Infof("Opening sighting DB at '%v'", filename)
	db, err := dbh.OpenDB(log, dbh.MakeSqliteConfig(filename), Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open sighting database %v: %w", filename, err)
	}
	return &SightingDB{
		Log:       log,
		DB:        db,
		SessionID: uuid.New().String(),
	}, nil
}

func (s *SightingDB) Close() {
	if sqlDB, err := s.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

// Add a sighting of the given marker
func (s *SightingDB) Add(kind SightingKind, m *marker.TrackedMarker, at time.Time) error {
	rec := &Sighting{
		SessionID:  s.SessionID,
		MarkerID:   m.MarkerID,
		Kind:       kind,
		Time:       dbh.MakeIntTime(at),
		X:          m.Pose.Position.X,
		Y:          m.Pose.Position.Y,
		Z:          m.Pose.Position.Z,
		Confidence: m.Pose.Confidence,
	}
	return s.DB.Create(rec).Error
}

// Sightings returns the most recent sightings, newest first.
// If markerID is negative, sightings of all markers are returned.
func (s *SightingDB) Sightings(markerID, limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.DB.Order("time DESC, id DESC").Limit(limit)
	if markerID >= 0 {
		q = q.Where("marker_id = ?", markerID)
	}
	result := []Sighting{}
	if err := q.Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// Recorder turns a stream of tracked marker lists into appeared/lost sightings.
// It is not safe for concurrent use.
type Recorder struct {
	db      *SightingDB
	present map[int]marker.TrackedMarker
}

func NewRecorder(db *SightingDB) *Recorder {
	return &Recorder{
		db:      db,
		present: map[int]marker.TrackedMarker{},
	}
}

// Observe the tracked markers of one frame.
// Returns the number of sightings written.
func (r *Recorder) Observe(markers []marker.TrackedMarker, at time.Time) (int, error) {
	seen := map[int]bool{}
	n := 0
	for i := range markers {
		m := &markers[i]
		seen[m.MarkerID] = true
		if _, ok := r.present[m.MarkerID]; !ok {
			if err := r.db.Add(SightingAppeared, m, at); err != nil {
				return n, err
			}
			n++
		}
		r.present[m.MarkerID] = *m
	}
	lost := []int{}
	for id := range r.present {
		if !seen[id] {
			lost = append(lost, id)
		}
	}
	sort.Ints(lost)
	for _, id := range lost {
		// The last known pose is the best position for a lost marker
		last := r.present[id]
		delete(r.present, id)
		if err := r.db.Add(SightingLost, &last, at); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Number of markers currently considered present
func (r *Recorder) Present() int {
	return len(r.present)
}
