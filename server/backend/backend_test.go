package backend

import (
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/markertrack/pkg/geom"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/cyclopcam/markertrack/pkg/markerscene"
	"github.com/cyclopcam/markertrack/server/config"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func candidateIDs(cands []marker.RawCandidate) []int {
	ids := []int{}
	for _, c := range cands {
		ids = append(ids, c.MarkerID)
	}
	sort.Ints(ids)
	return ids
}

func TestMockDetectsItsMarkers(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mock.MarkerIDs = []int{42, 19}
	b, err := New(logs.NewTestingLog(t), cfg)
	require.NoError(t, err)
	defer b.Close()
	mock := b.(*Mock)
	mock.FrameRate = 0
	w, h := b.ImageSize()
	require.Equal(t, 640, w)
	require.Equal(t, 480, h)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		frame, err := b.NextFrame(ctx)
		require.NoError(t, err)
		require.EqualValues(t, i+1, frame.ID)
		cands, err := b.Detect(ctx, frame, nil)
		require.NoError(t, err)
		require.Equal(t, []int{19, 42}, candidateIDs(cands))
	}
}

func TestMockIsDeterministic(t *testing.T) {
	cfg := config.DefaultConfig()
	a, err := NewMock(logs.NewTestingLog(t), &cfg.Mock, 0)
	require.NoError(t, err)
	b, err := NewMock(logs.NewTestingLog(t), &cfg.Mock, 0)
	require.NoError(t, err)
	require.Equal(t, a.Render(1.5).Pixels, b.Render(1.5).Pixels)
	require.NotEqual(t, a.Render(1.5).Pixels, a.Render(4).Pixels)
}

func TestMockErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Mock.MarkerIDs = nil
	_, err := NewMock(logs.NewTestingLog(t), &cfg.Mock, 0)
	require.ErrorIs(t, err, ErrNoMarkers)

	cfg = config.DefaultConfig()
	m, err := NewMock(logs.NewTestingLog(t), &cfg.Mock, 0)
	require.NoError(t, err)
	_, err = m.Detect(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrNoImage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Detect(ctx, &marker.Frame{Image: m.Render(0)}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func writeJPEG(t *testing.T, filename string, g *marker.GrayImage) {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+g.Width], g.Pixels[y*g.Stride:])
	}
	f, err := os.Create(filename)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
}

func TestCameraFromFrameDir(t *testing.T) {
	dir := t.TempDir()
	cam := markerscene.Camera{Width: 320, Height: 240, FocalPx: 320, MarkerSizeMM: 100}
	img := cam.Render([]markerscene.Placement{
		{MarkerID: 42, Rotation: geom.FromAxisAngle(r3.Vector{Y: 1}, 0.3).Matrix(), TranslationMM: r3.Vector{Z: 350}},
	}, markerscene.DefaultPalette())
	writeJPEG(t, filepath.Join(dir, "0001.jpg"), img)

	cfg := config.DefaultConfig()
	cfg.Backend = config.BackendCamera
	cfg.Camera.FrameDir = dir
	cfg.Camera.FrameRate = 0
	b, err := New(logs.NewTestingLog(t), cfg)
	require.NoError(t, err)
	defer b.Close()
	require.Equal(t, "camera", b.Name())
	w, h := b.ImageSize()
	require.Equal(t, 320, w)
	require.Equal(t, 240, h)

	frame, err := b.NextFrame(context.Background())
	require.NoError(t, err)
	cands, err := b.Detect(context.Background(), frame, nil)
	require.NoError(t, err)
	require.Equal(t, []int{42}, candidateIDs(cands))
	require.Equal(t, 0, cands[0].ErrorBits)
}

func TestNewDetector(t *testing.T) {
	d, err := NewDetector(config.DetectorParity)
	require.NoError(t, err)
	d.Close()
	_, err = NewDetector("hough")
	require.Error(t, err)
}
