package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cyclopcam/markertrack/pkg/gen"
	"github.com/cyclopcam/markertrack/pkg/geom"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/cyclopcam/markertrack/pkg/parity"
	"github.com/cyclopcam/markertrack/pkg/perfstats"
	"github.com/cyclopcam/markertrack/server/monitor"
	"github.com/cyclopcam/markertrack/server/sightingdb"
	"github.com/cyclopcam/www"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// SYNC-STATUS-JSON
type statusJSON struct {
	Status     marker.DetectorStatus           `json:"status"`
	Backend    string                          `json:"backend"`
	Generation int64                           `json:"generation"`
	NumMarkers int                             `json:"numMarkers"`
	Observer   *marker.ObserverPose            `json:"observer"` // null = default observer
	Counters   perfstats.FrameCountersSnapshot `json:"counters"`
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendOK(w)
}

func (s *Server) httpStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, &statusJSON{
		Status:     s.Monitor.Status(),
		Backend:    s.Backend.Name(),
		Generation: s.Monitor.Generation(),
		NumMarkers: len(s.Monitor.Markers()),
		Observer:   s.Monitor.Observer(),
		Counters:   s.Monitor.Counters(),
	})
}

func (s *Server) httpMarkers(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.Monitor.Markers())
}

func (s *Server) httpHistory(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	n := 20
	if v := www.QueryValue(r, "n"); v != "" {
		var err error
		n, err = strconv.Atoi(v)
		if err != nil || n < 1 {
			www.PanicBadRequestf("n must be a positive integer")
		}
	}
	www.SendJSON(w, s.Monitor.History(n))
}

func (s *Server) httpSightings(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.Sightings == nil {
		www.PanicBadRequestf("Sighting log is not enabled")
	}
	markerID := -1
	if v := www.QueryValue(r, "markerID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id < 0 || id > parity.MaxID {
			www.PanicBadRequestf("Invalid markerID '%v'", v)
		}
		markerID = id
	}
	limit := www.QueryInt(r, "limit")
	sightings, err := s.Sightings.Sightings(markerID, limit)
	www.Check(err)
	if sightings == nil {
		sightings = []sightingdb.Sighting{}
	}
	www.SendJSON(w, sightings)
}

// The body is an ObserverPose, or null to revert to the default observer
func (s *Server) httpSetObserver(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var pose *marker.ObserverPose
	www.ReadJSON(w, r, &pose, 64*1024)
	if pose != nil {
		if !geom.IsFiniteVec(pose.Position) || !pose.Rotation.IsFinite() {
			www.PanicBadRequestf("Observer pose must be finite")
		}
		if pose.Rotation.Norm() < 1e-9 {
			www.PanicBadRequestf("Observer rotation must not be zero")
		}
		pose.Rotation = pose.Rotation.Normalize()
	}
	s.Monitor.SetObserver(pose)
	www.SendOK(w)
}

// Candidates from a detector running outside this process
type candidatesRequestJSON struct {
	Width      int                     `json:"width"`  // 0 = backend image size
	Height     int                     `json:"height"` // 0 = backend image size
	TimeMs     int64                   `json:"timeMs"` // 0 = now
	Candidates []marker.CandidateInput `json:"candidates"`
}

type candidatesResponseJSON struct {
	Accepted  int `json:"accepted"`
	Malformed int `json:"malformed"` // Not exactly 4 finite corners
}

func (s *Server) httpSubmitCandidates(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	req := candidatesRequestJSON{}
	www.ReadJSON(w, r, &req, 1024*1024)
	if req.Width < 0 || req.Height < 0 {
		www.PanicBadRequestf("Image size must not be negative")
	}
	resp := candidatesResponseJSON{}
	raw := make([]marker.RawCandidate, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		rc, ok := c.ToRaw()
		if !ok {
			resp.Malformed++
			continue
		}
		raw = append(raw, rc)
	}
	resp.Accepted = len(raw)
	at := time.Time{}
	if req.TimeMs != 0 {
		at = time.UnixMilli(req.TimeMs)
	}
	if err := s.Monitor.SubmitCandidates(raw, req.Width, req.Height, at); err != nil {
		www.Panic(http.StatusServiceUnavailable, err.Error())
	}
	www.SendJSON(w, &resp)
}

func (s *Server) httpReset(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.Log.Infof("Tracking reset via API")
	s.Monitor.Reset()
	www.SendOK(w)
}

func (s *Server) httpRestart(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.Check(s.Monitor.Restart())
	www.SendOK(w)
}

// Stream every frame event over a websocket, until the client disconnects
func (s *Server) httpStreamMarkers(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpStreamMarkers websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	events := s.Monitor.AddWatcher()
	defer s.Monitor.RemoveWatcher(events)

	// We don't expect any messages from the client, but we must read in order to notice a close
	clientGone := make(chan bool)
	go func() {
		for {
			if _, _, err := c.NextReader(); err != nil {
				close(clientGone)
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return
		case <-s.Monitor.Closed():
			c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return
		case ev := <-events:
			// A slow client only gets the latest event
			if backlog := gen.DrainChannelIntoSlice(events); len(backlog) != 0 {
				ev = backlog[len(backlog)-1]
			}
			if err := writeEvent(c, ev); err != nil {
				s.Log.Infof("httpStreamMarkers stopping: %v", err)
				return
			}
		}
	}
}

func writeEvent(c *websocket.Conn, ev *monitor.FrameEvent) error {
	c.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.WriteJSON(ev)
}
