package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/cyclopcam/markertrack/pkg/pipeline"
)

const (
	BackendCamera = "camera"
	BackendMock   = "mock"

	DetectorParity = "parity"
	DetectorAruco  = "aruco"
)

type Camera struct {
	FrameDir      string  `json:"frameDir"`      // Directory of JPEG frames, played back in name order
	Loop          bool    `json:"loop"`          // Restart from the first frame after the last one
	FrameRate     float64 `json:"frameRate"`     // Frames per second delivered by the capture loop
	FocalLengthPx float64 `json:"focalLengthPx"` // 0 = image width
	Detector      string  `json:"detector"`      // "parity" or "aruco"
}

type Mock struct {
	Width     int   `json:"width"`
	Height    int   `json:"height"`
	MarkerIDs []int `json:"markerIDs"` // Markers that orbit in front of the synthetic camera
	Seed      int64 `json:"seed"`
}

type Tracking struct {
	PositionAlpha    float64 `json:"positionAlpha"`
	RotationAlpha    float64 `json:"rotationAlpha"`
	StaleThresholdMs int64   `json:"staleThresholdMs"`
	MinStreak        int     `json:"minStreak"`
	StreakDecay      int     `json:"streakDecay"`
	MinConfidence    float64 `json:"minConfidence"`
	MinDiagonalPx    float64 `json:"minDiagonalPx"`
	MinAspect        float64 `json:"minAspect"`
	DetectIntervalMs int     `json:"detectIntervalMs"` // Minimum time between detections
	SingleBestOnly   bool    `json:"singleBestOnly"`
	MarkerSizeMM     float64 `json:"markerSizeMM"`
}

type Config struct {
	Backend     string   `json:"backend"`     // "camera" or "mock"
	Listen      string   `json:"listen"`      // HTTP listen address
	SightingsDB string   `json:"sightingsDB"` // Path to the sqlite sighting log. Empty = disabled.
	Camera      Camera   `json:"camera"`
	Mock        Mock     `json:"mock"`
	Tracking    Tracking `json:"tracking"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend: BackendMock,
		Listen:  ":8090",
		Camera: Camera{
			Loop:      true,
			FrameRate: 30,
			Detector:  DetectorParity,
		},
		Mock: Mock{
			Width:     640,
			Height:    480,
			MarkerIDs: []int{19, 42},
			Seed:      1,
		},
		Tracking: Tracking{
			PositionAlpha:    0.3,
			RotationAlpha:    0.25,
			StaleThresholdMs: 2000,
			MinStreak:        2,
			StreakDecay:      2,
			MinConfidence:    0.5,
			MinDiagonalPx:    20,
			MinAspect:        0.3,
			DetectIntervalMs: 50,
			MarkerSizeMM:     100,
		},
	}
}

// LoadConfig reads a JSON config file. Fields missing from the file keep their defaults.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if filename == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid config %v: %w", filename, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	t := &c.Tracking
	if c.Backend != BackendCamera && c.Backend != BackendMock {
		return fmt.Errorf("unknown backend '%v'", c.Backend)
	}
	if c.Backend == BackendCamera && c.Camera.FrameDir == "" {
		return errors.New("camera backend needs camera.frameDir")
	}
	if c.Camera.Detector != DetectorParity && c.Camera.Detector != DetectorAruco {
		return fmt.Errorf("unknown detector '%v'", c.Camera.Detector)
	}
	if t.PositionAlpha <= 0 || t.PositionAlpha > 1 {
		return fmt.Errorf("positionAlpha must be in (0, 1], not %v", t.PositionAlpha)
	}
	if t.RotationAlpha <= 0 || t.RotationAlpha > 1 {
		return fmt.Errorf("rotationAlpha must be in (0, 1], not %v", t.RotationAlpha)
	}
	if t.StaleThresholdMs <= 0 {
		return errors.New("staleThresholdMs must be positive")
	}
	if t.MinStreak < 1 || t.StreakDecay < 1 {
		return errors.New("minStreak and streakDecay must be at least 1")
	}
	if t.MinConfidence < 0 || t.MinConfidence > 1 {
		return fmt.Errorf("minConfidence must be in [0, 1], not %v", t.MinConfidence)
	}
	if t.MinAspect < 0 || t.MinAspect > 1 {
		return fmt.Errorf("minAspect must be in [0, 1], not %v", t.MinAspect)
	}
	if t.MinDiagonalPx < 0 || t.DetectIntervalMs < 0 || t.MarkerSizeMM <= 0 {
		return errors.New("minDiagonalPx, detectIntervalMs and markerSizeMM must not be negative")
	}
	if c.Mock.Width < 32 || c.Mock.Height < 32 {
		return errors.New("mock image must be at least 32x32")
	}
	return nil
}

// PipelineParams converts the tracking options into pipeline parameters
func (c *Config) PipelineParams() *pipeline.Params {
	t := &c.Tracking
	p := pipeline.NewParams()
	p.Candidate.MinConfidence = t.MinConfidence
	p.Candidate.MinDiagonalPx = t.MinDiagonalPx
	p.Candidate.MinAspect = t.MinAspect
	p.Stability.MinStreak = t.MinStreak
	p.Stability.Decay = t.StreakDecay
	p.Stability.SingleBestOnly = t.SingleBestOnly
	p.Resolve.MarkerSizeMM = t.MarkerSizeMM
	p.Resolve.FocalLengthPx = c.Camera.FocalLengthPx
	p.Smooth.PositionAlpha = t.PositionAlpha
	p.Smooth.RotationAlpha = t.RotationAlpha
	p.Smooth.StaleThresholdMs = t.StaleThresholdMs
	return p
}
