// Package backend builds the frame source and detector that feed the monitor
package backend

import (
	"fmt"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/cyclopcam/markertrack/pkg/quaddetect"
	"github.com/cyclopcam/markertrack/server/capture"
	"github.com/cyclopcam/markertrack/server/config"
)

// Backend produces frames and detects marker candidates in them
type Backend interface {
	marker.Backend
	marker.FrameSource
	Name() string
}

// Build the backend described by the config
func New(log logs.Log, cfg *config.Config) (Backend, error) {
	switch cfg.Backend {
	case config.BackendMock:
		return NewMock(log, &cfg.Mock, 30)
	case config.BackendCamera:
		detector, err := NewDetector(cfg.Camera.Detector)
		if err != nil {
			return nil, err
		}
		src, err := capture.OpenFrameDir(log, cfg.Camera.FrameDir, cfg.Camera.Loop, cfg.Camera.FrameRate)
		if err != nil {
			detector.Close()
			return nil, err
		}
		return NewCamera(log, src, detector), nil
	}
	return nil, fmt.Errorf("Unknown backend '%v'", cfg.Backend)
}

// Detector is a quad detector that may hold native resources
type Detector interface {
	marker.QuadDetector
	Close()
}

type parityDetector struct {
	*quaddetect.Detector
}

func (p parityDetector) Close() {}

// NewDetector creates a quad detector by name ("parity" or "aruco")
func NewDetector(kind string) (Detector, error) {
	switch kind {
	case config.DetectorParity, "":
		return parityDetector{quaddetect.NewDetector(quaddetect.NewParams())}, nil
	case config.DetectorAruco:
		d, err := quaddetect.NewArucoDetector()
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("Unknown detector '%v'", kind)
}
