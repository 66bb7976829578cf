package backend

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/markertrack/pkg/geom"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/cyclopcam/markertrack/pkg/markerscene"
	"github.com/cyclopcam/markertrack/pkg/parity"
	"github.com/cyclopcam/markertrack/pkg/quaddetect"
	"github.com/cyclopcam/markertrack/server/config"
	"github.com/golang/geo/r3"
)

var ErrNoMarkers = errors.New("Mock backend needs at least one marker ID")

// Mock renders a synthetic scene of markers orbiting in front of the camera,
// and runs the real detector on it. The scene is a pure function of the frame number.
type Mock struct {
	Log       logs.Log
	FrameRate float64 // Frames per second. 0 = render as fast as frames are requested.

	camera    markerscene.Camera
	palette   markerscene.Palette
	markerIDs []int
	phase     float64
	detector  *quaddetect.Detector

	lock    sync.Mutex
	frameNo int64
	lastAt  time.Time
}

func NewMock(log logs.Log, cfg *config.Mock, frameRate float64) (*Mock, error) {
	if len(cfg.MarkerIDs) == 0 {
		return nil, ErrNoMarkers
	}
	ids := []int{}
	for _, id := range cfg.MarkerIDs {
		c := parity.Canonical(id)
		if c != id {
			log.Warnf("Mock marker %v is a rotation of %v, and will be reported as %v", id, c, c)
		}
		ids = append(ids, c)
	}
	return &Mock{
		Log:       log,
		FrameRate: frameRate,
		camera: markerscene.Camera{
			Width:        cfg.Width,
			Height:       cfg.Height,
			FocalPx:      float64(cfg.Width),
			MarkerSizeMM: 100,
		},
		palette:   markerscene.DefaultPalette(),
		markerIDs: ids,
		phase:     float64(cfg.Seed%1000) * 0.01,
		detector:  quaddetect.NewDetector(quaddetect.NewParams()),
	}, nil
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) ImageSize() (width, height int) {
	return m.camera.Width, m.camera.Height
}

// Camera returns the synthetic camera
func (m *Mock) Camera() markerscene.Camera {
	return m.camera
}

// Placements returns the marker poses at the given scene time (seconds)
func (m *Mock) Placements(sceneTime float64) []markerscene.Placement {
	n := len(m.markerIDs)
	out := make([]markerscene.Placement, 0, n)
	// Keep the orbit inside the frame at the nearest depth
	rx := 0.22 * float64(m.camera.Width) * 420 / m.camera.FocalPx
	ry := 0.27 * float64(m.camera.Height) * 420 / m.camera.FocalPx
	for i, id := range m.markerIDs {
		k := float64(i)
		angle := m.phase + sceneTime*0.5 + k*2*math.Pi/float64(n)
		yaw := 0.35 * math.Sin(sceneTime*0.7+k)
		pitch := 0.25 * math.Cos(sceneTime*0.5+k)
		rot := geom.FromAxisAngle(r3.Vector{Y: 1}, yaw).Mul(geom.FromAxisAngle(r3.Vector{X: 1}, pitch))
		pos := r3.Vector{
			X: rx * math.Cos(angle),
			Y: ry * math.Sin(angle),
			Z: 500 + 80*math.Sin(sceneTime*0.3+k),
		}
		if n == 1 {
			pos.X *= 0.5
			pos.Y *= 0.5
		}
		out = append(out, markerscene.Placement{
			MarkerID:      id,
			Rotation:      rot.Matrix(),
			TranslationMM: pos,
		})
	}
	return out
}

// Render the frame for the given scene time
func (m *Mock) Render(sceneTime float64) *marker.GrayImage {
	return m.camera.Render(m.Placements(sceneTime), m.palette)
}

func (m *Mock) NextFrame(ctx context.Context) (*marker.Frame, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	rate := m.FrameRate
	if rate > 0 && !m.lastAt.IsZero() {
		wait := time.Duration(float64(time.Second)/rate) - time.Since(m.lastAt)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	if rate <= 0 {
		rate = 30
	}
	m.frameNo++
	m.lastAt = time.Now()
	return &marker.Frame{
		ID:    m.frameNo,
		Time:  m.lastAt,
		Image: m.Render(float64(m.frameNo) / rate),
	}, nil
}

func (m *Mock) Detect(ctx context.Context, frame *marker.Frame, observer *marker.ObserverPose) ([]marker.RawCandidate, error) {
	if frame == nil || frame.Image == nil {
		return nil, ErrNoImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.detector.DetectQuads(frame.Image)
}

func (m *Mock) Close() {
}
