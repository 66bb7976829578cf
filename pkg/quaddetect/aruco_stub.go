//go:build !gocv

package quaddetect

import "github.com/cyclopcam/markertrack/pkg/marker"

// ArucoDetector is unavailable in this build
type ArucoDetector struct{}

func NewArucoDetector() (*ArucoDetector, error) {
	return nil, ErrNoGocv
}

func (a *ArucoDetector) DetectQuads(img *marker.GrayImage) ([]marker.RawCandidate, error) {
	return nil, ErrNoGocv
}

func (a *ArucoDetector) Close() {
}
