package server

import (
	"time"

	"github.com/cyclopcam/markertrack/server/sightingdb"
)

// Record markers appearing and disappearing, until the monitor is closed
func (s *Server) monitorToSightings() {
	defer close(s.sightingsStopped)
	events := s.Monitor.AddWatcher()
	defer s.Monitor.RemoveWatcher(events)

	rec := sightingdb.NewRecorder(s.Sightings)
	lastErrAt := time.Time{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	generation := s.Monitor.Generation()

	for {
		select {
		case ev := <-events:
			if _, err := rec.Observe(ev.Result.Markers, time.UnixMilli(ev.TimeMs)); err != nil {
				if time.Since(lastErrAt) > 15*time.Second {
					s.Log.Errorf("Error writing sightings: %v", err)
					lastErrAt = time.Now()
				}
			}
		case <-ticker.C:
			// A reset, restart, or failure drops every marker, which nothing else tells us about
			gen := s.Monitor.Generation()
			if gen != generation || len(s.Monitor.Markers()) == 0 {
				generation = gen
				if rec.Present() != 0 {
					rec.Observe(nil, time.Now())
				}
			}
		case <-s.Monitor.Closed():
			return
		}
	}
}
