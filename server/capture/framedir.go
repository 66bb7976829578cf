// Package capture plays back a directory of JPEG images as if they were camera frames
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/markertrack/pkg/marker"
)

var ErrNoFrames = errors.New("No JPEG files in frame directory")

// FrameDir reads *.jpg files in name order, and delivers them at a fixed rate
type FrameDir struct {
	Log       logs.Log
	Dir       string
	Loop      bool
	FrameRate float64 // 0 = deliver as fast as the caller reads

	lock   sync.Mutex
	files  []string
	next   int
	nextID int64
	width  int
	height int
	lastAt time.Time
}

// Open a frame directory. The first frame is decoded immediately, so that the image size is known.
func OpenFrameDir(log logs.Log, dir string, loop bool, frameRate float64) (*FrameDir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("Error reading frame directory %v: %w", dir, err)
	}
	files := []string{}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".jpg" || ext == ".jpeg") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoFrames, dir)
	}
	sort.Strings(files)
	first, err := ReadGrayFile(files[0])
	if err != nil {
		return nil, err
	}
	log.Infof("Frame directory %v has %v frames of %v x %v", dir, len(files), first.Width, first.Height)
	return &FrameDir{
		Log:       log,
		Dir:       dir,
		Loop:      loop,
		FrameRate: frameRate,
		files:     files,
		width:     first.Width,
		height:    first.Height,
	}, nil
}

func (f *FrameDir) ImageSize() (width, height int) {
	return f.width, f.height
}

func (f *FrameDir) NumFiles() int {
	return len(f.files)
}

// NextFrame returns io.EOF once the last file has been read, unless Loop is set.
// Frames that are a different size to the first frame are skipped.
func (f *FrameDir) NextFrame(ctx context.Context) (*marker.Frame, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.FrameRate > 0 && !f.lastAt.IsZero() {
		wait := time.Duration(float64(time.Second)/f.FrameRate) - time.Since(f.lastAt)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	for attempts := 0; attempts < len(f.files); attempts++ {
		if f.next >= len(f.files) {
			if !f.Loop {
				return nil, io.EOF
			}
			f.next = 0
		}
		filename := f.files[f.next]
		f.next++
		img, err := ReadGrayFile(filename)
		if err != nil {
			return nil, err
		}
		if img.Width != f.width || img.Height != f.height {
			f.Log.Warnf("Skipping %v, because it is %v x %v instead of %v x %v", filename, img.Width, img.Height, f.width, f.height)
			continue
		}
		f.nextID++
		f.lastAt = time.Now()
		return &marker.Frame{
			ID:    f.nextID,
			Time:  f.lastAt,
			Image: img,
		}, nil
	}
	return nil, fmt.Errorf("%w of the expected size: %v", ErrNoFrames, f.Dir)
}

// Decode a JPEG file into a gray image
func ReadGrayFile(filename string) (*marker.GrayImage, error) {
	img, err := cimg.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error decoding %v: %w", filename, err)
	}
	return ToGray(img), nil
}

// Convert a cimg image of 1, 3 or 4 channels into an 8-bit gray image.
// The weights are symmetric in the first and third channel, so RGB and BGR produce the same result.
func ToGray(img *cimg.Image) *marker.GrayImage {
	gray := marker.NewGrayImage(img.Width, img.Height)
	nchan := img.NChan()
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*img.Stride:]
		dst := gray.Pixels[y*gray.Stride : (y+1)*gray.Stride]
		if nchan < 3 {
			for x := range dst {
				dst[x] = src[x*nchan]
			}
			continue
		}
		for x := range dst {
			p := src[x*nchan : x*nchan+3]
			dst[x] = uint8((uint32(p[0]) + 2*uint32(p[1]) + uint32(p[2])) >> 2)
		}
	}
	return gray
}
