package backend

import (
	"context"
	"errors"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/cyclopcam/markertrack/server/capture"
)

var ErrNoImage = errors.New("Frame has no image")

// Camera detects markers in captured frames
type Camera struct {
	Log      logs.Log
	source   *capture.FrameDir
	detector Detector
}

func NewCamera(log logs.Log, source *capture.FrameDir, detector Detector) *Camera {
	return &Camera{
		Log:      log,
		source:   source,
		detector: detector,
	}
}

func (c *Camera) Name() string {
	return "camera"
}

func (c *Camera) NextFrame(ctx context.Context) (*marker.Frame, error) {
	return c.source.NextFrame(ctx)
}

func (c *Camera) ImageSize() (width, height int) {
	return c.source.ImageSize()
}

// The camera backend has no use for the observer pose
func (c *Camera) Detect(ctx context.Context, frame *marker.Frame, observer *marker.ObserverPose) ([]marker.RawCandidate, error) {
	if frame == nil || frame.Image == nil {
		return nil, ErrNoImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.detector.DetectQuads(frame.Image)
}

func (c *Camera) Close() {
	c.detector.Close()
}
