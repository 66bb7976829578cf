package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/markertrack/server/backend"
	"github.com/cyclopcam/markertrack/server/config"
	"github.com/cyclopcam/markertrack/server/monitor"
	"github.com/cyclopcam/markertrack/server/sightingdb"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type Server struct {
	Log       logs.Log
	Config    *config.Config
	Backend   backend.Backend
	Monitor   *monitor.Monitor
	Sightings *sightingdb.SightingDB // nil if the sighting log is disabled

	ShutdownComplete chan bool // Closed when Shutdown has finished

	signalIn         chan os.Signal
	httpServer       *http.Server
	httpRouter       *httprouter.Router
	wsUpgrader       websocket.Upgrader
	sightingsStopped chan bool
}

// Create a server from the config, and start marker detection.
// The HTTP server is not started until ListenHTTP.
func NewServer(logger logs.Log, cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	be, err := backend.New(logger, cfg)
	if err != nil {
		return nil, err
	}
	w, h := be.ImageSize()
	logger.Infof("Using %v backend, with %v x %v images", be.Name(), w, h)

	s := &Server{
		Log:              logger,
		Config:           cfg,
		Backend:          be,
		ShutdownComplete: make(chan bool),
	}

	if cfg.SightingsDB != "" {
		s.Sightings, err = sightingdb.Open(logger, cfg.SightingsDB)
		if err != nil {
			be.Close()
			return nil, err
		}
	}

	options := monitor.DefaultOptions()
	options.DetectInterval = time.Duration(cfg.Tracking.DetectIntervalMs) * time.Millisecond
	options.Pipeline = cfg.PipelineParams()
	s.Monitor = monitor.NewMonitor(logger, be, be, options)

	if s.Sightings != nil {
		s.sightingsStopped = make(chan bool)
		go s.monitorToSightings()
	}

	s.setupHttpRoutes()

	if err := s.Monitor.Start(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Handler returns the HTTP API
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// ListenHTTP serves the API on the listener until Shutdown is called
func (s *Server) ListenHTTP(ln net.Listener) error {
	s.Log.Infof("Listening on %v", ln.Addr())
	s.httpServer = &http.Server{
		Handler: s.httpRouter,
	}
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) ListenForKillSignals() {
	s.Log.Infof("ListenForKillSignals starting")
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. ListenForKillSignals will exit after shutdown", sig.String())
			s.Shutdown()
		} else {
			// Shutdown was called by something other than ourselves
			s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
		}
	}()
}

// Shutdown stops the HTTP server, and then everything else
func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
	}
	if s.httpServer != nil {
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.Log.Warnf("HTTP server shutdown error: %v", err)
		}
	}
	s.Close()
	s.Log.Infof("Shutdown complete")
	close(s.ShutdownComplete)
}

// Close the monitor and the sighting DB. The monitor closes the backend.
func (s *Server) Close() {
	s.Monitor.Close()
	if s.sightingsStopped != nil {
		<-s.sightingsStopped
		s.sightingsStopped = nil
	}
	if s.Sightings != nil {
		s.Sightings.Close()
	}
}
