// Package quaddetect finds square markers in a grayscale image.
//
// The image is binarized against a local mean, dark pixels are grouped into
// connected blobs, and each blob's four extreme points become the corners of a
// candidate quad. Blobs nested inside another blob are skipped. Each surviving
// quad is rectified into an upright patch, and the patch is decoded with the
// parity decoder. Only quads that decode are returned.
package quaddetect

import (
	"errors"
	"math"
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
	"github.com/cyclopcam/markertrack/pkg/geom"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/cyclopcam/markertrack/pkg/parity"
)

var ErrNoGocv = errors.New("ArUco detection requires a build with the 'gocv' tag")

type Params struct {
	ThresholdRadius int     // Radius of the local mean window. 0 = 1/8 of the smaller image dimension.
	ThresholdOffset int     // A pixel is dark if it is this much below the local mean
	MinBlobSize     int     // Minimum width and height of a blob's bounding box, in pixels
	MaxBlobFraction float64 // Blobs wider or taller than this fraction of the image are ignored
	MinCornerSpread float64 // The two side corners must be at least this fraction of the diagonal away from it
	PatchSize       int     // Rectified patch size, in pixels. Should be a multiple of 6.
}

func NewParams() *Params {
	return &Params{
		ThresholdOffset: 12,
		MinBlobSize:     12,
		MaxBlobFraction: 0.9,
		MinCornerSpread: 0.2,
		PatchSize:       48,
	}
}

// Detector implements marker.QuadDetector
type Detector struct {
	params Params
}

func NewDetector(params *Params) *Detector {
	return &Detector{
		params: *params,
	}
}

// Detection is a decoded quad, with the details of its decode
type Detection struct {
	Corners marker.Quad
	Decoded parity.Decoded
}

func (d *Detector) DetectQuads(img *marker.GrayImage) ([]marker.RawCandidate, error) {
	dets := d.Detect(img)
	out := make([]marker.RawCandidate, 0, len(dets))
	for _, det := range dets {
		out = append(out, marker.RawCandidate{
			MarkerID:  det.Decoded.MarkerID,
			Corners:   det.Corners,
			ErrorBits: det.Decoded.ParityErrorCount,
		})
	}
	return out, nil
}

// Detect returns every decodable quad in the image
func (d *Detector) Detect(img *marker.GrayImage) []Detection {
	radius := d.params.ThresholdRadius
	if radius <= 0 {
		radius = max(8, min(img.Width, img.Height)/8)
	}
	dark := binarize(img, radius, d.params.ThresholdOffset)
	labels, blobs := findBlobs(dark, img.Width, img.Height)

	maxW := int(float64(img.Width) * d.params.MaxBlobFraction)
	maxH := int(float64(img.Height) * d.params.MaxBlobFraction)
	candidates := make([]*blob, 0, len(blobs))
	for _, b := range blobs {
		w, h := b.width(), b.height()
		if w < d.params.MinBlobSize || h < d.params.MinBlobSize || w > maxW || h > maxH {
			continue
		}
		candidates = append(candidates, b)
	}
	candidates = dropNested(candidates)

	patch := marker.NewGrayImage(d.params.PatchSize, d.params.PatchSize)
	patchRegion := marker.Region{X0: 0, Y0: 0, X1: d.params.PatchSize, Y1: d.params.PatchSize}
	out := []Detection{}
	for _, b := range candidates {
		corners, ok := blobCorners(b, labels, img.Width, d.params.MinCornerSpread)
		if !ok {
			continue
		}
		if !rectify(img, corners, patch) {
			continue
		}
		dec, ok := parity.Decode(patch, patchRegion)
		if !ok {
			continue
		}
		out = append(out, Detection{
			Corners: rotateCorners(corners, dec.Rotation),
			Decoded: dec,
		})
	}
	return out
}

// dropNested removes blobs whose bounding box lies inside another blob's box,
// such as the dark payload cells inside a marker's border.
func dropNested(blobs []*blob) []*blob {
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(blobs))
	for _, b := range blobs {
		fb.Add(b.minX, b.minY, b.maxX, b.maxY)
	}
	fb.Finish()

	keep := make([]*blob, 0, len(blobs))
	for i, b := range blobs {
		nested := false
		for _, j := range fb.Search(b.minX, b.minY, b.maxX, b.maxY) {
			if i != j && blobs[j].contains(b) {
				nested = true
				break
			}
		}
		if !nested {
			keep = append(keep, b)
		}
	}
	return keep
}

// blobCorners finds the four corners of a roughly quadrilateral blob, ordered
// clockwise starting from the corner nearest the top-left of the image.
func blobCorners(b *blob, labels []int32, stride int, minSpread float64) (marker.Quad, bool) {
	cx := float64(b.sumX) / float64(b.count)
	cy := float64(b.sumY) / float64(b.count)

	// Farthest pixel from the centroid is one corner, and the farthest from that is the opposite one
	var c0, c2 geom.Vec2
	best := -1.0
	b.each(labels, stride, func(x, y int) {
		d := sq(float64(x)-cx) + sq(float64(y)-cy)
		if d > best {
			best = d
			c0 = geom.Vec2{X: float64(x), Y: float64(y)}
		}
	})
	best = -1
	b.each(labels, stride, func(x, y int) {
		d := sq(float64(x)-c0.X) + sq(float64(y)-c0.Y)
		if d > best {
			best = d
			c2 = geom.Vec2{X: float64(x), Y: float64(y)}
		}
	})
	diag := math.Sqrt(best)
	if diag < 1 {
		return marker.Quad{}, false
	}

	// The remaining two corners are the pixels farthest from the diagonal, one on each side
	var c1, c3 geom.Vec2
	dmax, dmin := 0.0, 0.0
	nx, ny := -(c2.Y-c0.Y)/diag, (c2.X-c0.X)/diag
	b.each(labels, stride, func(x, y int) {
		d := (float64(x)-c0.X)*nx + (float64(y)-c0.Y)*ny
		if d > dmax {
			dmax = d
			c1 = geom.Vec2{X: float64(x), Y: float64(y)}
		}
		if d < dmin {
			dmin = d
			c3 = geom.Vec2{X: float64(x), Y: float64(y)}
		}
	})
	if dmax < minSpread*diag || -dmin < minSpread*diag {
		return marker.Quad{}, false
	}

	pts := []geom.Vec2{c0, c1, c2, c3}
	// Pixel centers sit half a pixel inside the true outline
	for i := range pts {
		dx, dy := pts[i].X-cx, pts[i].Y-cy
		l := math.Hypot(dx, dy)
		if l > 0 {
			pts[i].X += 0.5 * dx / l
			pts[i].Y += 0.5 * dy / l
		}
		pts[i].X += 0.5
		pts[i].Y += 0.5
	}
	cx += 0.5
	cy += 0.5

	// With y pointing down, increasing angle is clockwise on screen
	sort.Slice(pts, func(i, j int) bool {
		return math.Atan2(pts[i].Y-cy, pts[i].X-cx) < math.Atan2(pts[j].Y-cy, pts[j].X-cx)
	})
	start := 0
	for i := range pts {
		if pts[i].X+pts[i].Y < pts[start].X+pts[start].Y {
			start = i
		}
	}
	var q marker.Quad
	for i := 0; i < 4; i++ {
		p := pts[(start+i)%4]
		q[i] = marker.Point{X: float32(p.X), Y: float32(p.Y)}
	}
	return q, true
}

// rotateCorners relabels the corners after the payload was read with 'turns'
// clockwise quarter turns, so that corner 0 is the marker's own top-left.
func rotateCorners(q marker.Quad, turns int) marker.Quad {
	var r marker.Quad
	for i := 0; i < 4; i++ {
		r[i] = q[(i-turns+4)%4]
	}
	return r
}

// rectify samples the quad into the square patch, with corner 0 at the patch's top-left
func rectify(img *marker.GrayImage, corners marker.Quad, patch *marker.GrayImage) bool {
	s := float64(patch.Width)
	src := [4]geom.Vec2{{X: 0, Y: 0}, {X: s, Y: 0}, {X: s, Y: s}, {X: 0, Y: s}}
	var dst [4]geom.Vec2
	for i, c := range corners {
		dst[i] = geom.Vec2{X: float64(c.X), Y: float64(c.Y)}
	}
	h, err := geom.ComputeHomography(src, dst)
	if err != nil {
		return false
	}
	for py := 0; py < patch.Height; py++ {
		for px := 0; px < patch.Width; px++ {
			x, y := h.ApplyHomography(float64(px)+0.5, float64(py)+0.5)
			ix := min(max(int(x), 0), img.Width-1)
			iy := min(max(int(y), 0), img.Height-1)
			patch.Set(px, py, img.At(ix, iy))
		}
	}
	return true
}

func sq(v float64) float64 {
	return v * v
}
