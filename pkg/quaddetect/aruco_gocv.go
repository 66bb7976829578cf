//go:build gocv

package quaddetect

import (
	"fmt"
	"sync"

	"github.com/cyclopcam/markertrack/pkg/marker"
	"gocv.io/x/gocv"
)

// ArucoDetector finds OpenCV 4x4 ArUco markers instead of parity markers.
// It is only available when built with the 'gocv' tag.
type ArucoDetector struct {
	lock     sync.Mutex
	detector gocv.ArucoDetector
}

func NewArucoDetector() (*ArucoDetector, error) {
	dict := gocv.GetPredefinedDictionary(gocv.ArucoDict4x4_50)
	return &ArucoDetector{
		detector: gocv.NewArucoDetectorWithParams(dict, gocv.NewArucoDetectorParameters()),
	}, nil
}

func (a *ArucoDetector) DetectQuads(img *marker.GrayImage) ([]marker.RawCandidate, error) {
	pixels := img.Pixels
	if img.Stride != img.Width {
		pixels = make([]byte, img.Width*img.Height)
		for y := 0; y < img.Height; y++ {
			copy(pixels[y*img.Width:(y+1)*img.Width], img.Pixels[y*img.Stride:])
		}
	}
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8U, pixels)
	if err != nil {
		return nil, fmt.Errorf("Failed to wrap image for ArUco detection: %w", err)
	}
	defer mat.Close()

	a.lock.Lock()
	corners, ids, _ := a.detector.DetectMarkers(mat)
	a.lock.Unlock()

	out := make([]marker.RawCandidate, 0, len(ids))
	for i, id := range ids {
		if len(corners[i]) != 4 {
			continue
		}
		c := marker.RawCandidate{MarkerID: id}
		for j, p := range corners[i] {
			c.Corners[j] = marker.Point{X: p.X, Y: p.Y}
		}
		out = append(out, c)
	}
	return out, nil
}

func (a *ArucoDetector) Close() {
	a.detector.Close()
}
