package sightingdb

import "github.com/cyclopcam/dbh"

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

type SightingKind string

const (
	SightingAppeared SightingKind = "appeared" // Marker became tracked
	SightingLost     SightingKind = "lost"     // Marker went stale, or tracking was reset
)

// A marker entering or leaving the tracked set.
// Positions are in world meters.
// SYNC-SIGHTING
type Sighting struct {
	BaseModel
	SessionID  string       `json:"sessionID"` // Unique per process run
	MarkerID   int          `json:"markerID"`
	Kind       SightingKind `json:"kind"`
	Time       dbh.IntTime  `json:"time"`
	X          float64      `json:"x"`
	Y          float64      `json:"y"`
	Z          float64      `json:"z"`
	Confidence float64      `json:"confidence"`
}
