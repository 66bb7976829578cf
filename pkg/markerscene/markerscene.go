// Package markerscene renders synthetic camera images of markers at known poses
package markerscene

import (
	"image"
	"sort"

	"github.com/cyclopcam/markertrack/pkg/geom"
	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/cyclopcam/markertrack/pkg/parity"
	"github.com/cyclopcam/markertrack/pkg/planarpose"
	"github.com/fogleman/gg"
	"github.com/golang/geo/r3"
)

// Camera is a pinhole camera with its principal point at the image center
type Camera struct {
	Width        int
	Height       int
	FocalPx      float64
	MarkerSizeMM float64
}

// Placement is a marker's pose in the camera frame (x right, y down, z forward)
type Placement struct {
	MarkerID      int
	Rotation      geom.Mat3
	TranslationMM r3.Vector
}

// Shades of gray used when rendering
type Palette struct {
	Background uint8
	Dark       uint8
	Light      uint8
}

func DefaultPalette() Palette {
	return Palette{Background: 200, Dark: 25, Light: 235}
}

func (c Camera) solver() *planarpose.Solver {
	return planarpose.NewSolver(c.FocalPx, float64(c.Width)/2, float64(c.Height)/2, c.MarkerSizeMM).(*planarpose.Solver)
}

// ProjectCorners returns the image corners of the placed marker, in marker order
func (c Camera) ProjectCorners(p Placement) marker.Quad {
	return c.solver().ProjectMarker(p.Rotation, p.TranslationMM)
}

// Render draws the placements, far to near, over a flat background
func (c Camera) Render(placements []Placement, pal Palette) *marker.GrayImage {
	dc := gg.NewContext(c.Width, c.Height)
	dc.SetRGB255(int(pal.Background), int(pal.Background), int(pal.Background))
	dc.Clear()

	sorted := append([]Placement(nil), placements...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TranslationMM.Z > sorted[j].TranslationMM.Z
	})

	solver := c.solver()
	half := c.MarkerSizeMM / 2
	cell := c.MarkerSizeMM / parity.GridSize
	// Image position of grid line intersection (gx, gy), for gx, gy in 0..GridSize
	project := func(p Placement, gx, gy int) (marker.Point, bool) {
		m := r3.Vector{X: -half + float64(gx)*cell, Y: -half + float64(gy)*cell}
		cam := p.Rotation.MulVec(m).Add(p.TranslationMM)
		if cam.Z <= 1 {
			return marker.Point{}, false
		}
		return solver.Project(cam), true
	}
	fillCells := func(p Placement, gx0, gy0, gx1, gy1 int) bool {
		corners := [4][2]int{{gx0, gy0}, {gx1, gy0}, {gx1, gy1}, {gx0, gy1}}
		for i, g := range corners {
			pt, ok := project(p, g[0], g[1])
			if !ok {
				dc.ClearPath()
				return false
			}
			if i == 0 {
				dc.MoveTo(float64(pt.X), float64(pt.Y))
			} else {
				dc.LineTo(float64(pt.X), float64(pt.Y))
			}
		}
		dc.ClosePath()
		dc.Fill()
		return true
	}

	for _, p := range sorted {
		dc.SetRGB255(int(pal.Dark), int(pal.Dark), int(pal.Dark))
		if !fillCells(p, 0, 0, parity.GridSize, parity.GridSize) {
			continue
		}
		payload := parity.Encode(p.MarkerID)
		dc.SetRGB255(int(pal.Light), int(pal.Light), int(pal.Light))
		for gy := 1; gy < parity.GridSize-1; gy++ {
			for gx := 1; gx < parity.GridSize-1; gx++ {
				if !parity.CellIsDark(payload, gx, gy) {
					fillCells(p, gx, gy, gx+1, gy+1)
				}
			}
		}
	}

	return toGray(dc.Image())
}

func toGray(src image.Image) *marker.GrayImage {
	b := src.Bounds()
	dst := marker.NewGrayImage(b.Dx(), b.Dy())
	if rgba, ok := src.(*image.RGBA); ok {
		for y := 0; y < dst.Height; y++ {
			row := rgba.Pix[y*rgba.Stride:]
			for x := 0; x < dst.Width; x++ {
				dst.Set(x, y, row[x*4])
			}
		}
		return dst
	}
	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			r, _, _, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			dst.Set(x, y, uint8(r>>8))
		}
	}
	return dst
}
