package marker

import (
	"math"

	"github.com/chewxy/math32"
)

// Point is a pixel coordinate
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (p Point) Distance(b Point) float32 {
	return math32.Sqrt((p.X-b.X)*(p.X-b.X) + (p.Y-b.Y)*(p.Y-b.Y))
}

// Quad is 4 corners of a marker, ordered clockwise in image space (y down).
type Quad [4]Point

func (q Quad) Center() Point {
	return Point{
		X: (q[0].X + q[1].X + q[2].X + q[3].X) / 4,
		Y: (q[0].Y + q[1].Y + q[2].Y + q[3].Y) / 4,
	}
}

// IsFinite is false if any coordinate is NaN or infinite
func (q Quad) IsFinite() bool {
	for _, p := range q {
		if math32.IsNaN(p.X) || math32.IsNaN(p.Y) || math32.IsInf(p.X, 0) || math32.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}

// Diagonal returns the longer of the two diagonals
func (q Quad) Diagonal() float32 {
	return max(q[0].Distance(q[2]), q[1].Distance(q[3]))
}

// SideLengths returns the shortest and longest side
func (q Quad) SideLengths() (shortest, longest float32) {
	shortest = math.MaxFloat32
	for i := 0; i < 4; i++ {
		d := q[i].Distance(q[(i+1)%4])
		shortest = min(shortest, d)
		longest = max(longest, d)
	}
	return
}

// Aspect is shortest side / longest side. A degenerate quad has aspect 0.
func (q Quad) Aspect() float32 {
	s, l := q.SideLengths()
	if l <= 0 {
		return 0
	}
	return s / l
}

// Bounds returns the axis-aligned bounding box of the quad
func (q Quad) Bounds() Region {
	r := Region{X0: math.MaxInt32, Y0: math.MaxInt32, X1: math.MinInt32, Y1: math.MinInt32}
	for _, p := range q {
		r.X0 = min(r.X0, int(math32.Floor(p.X)))
		r.Y0 = min(r.Y0, int(math32.Floor(p.Y)))
		r.X1 = max(r.X1, int(math32.Ceil(p.X)))
		r.Y1 = max(r.Y1, int(math32.Ceil(p.Y)))
	}
	return r
}

// Region is a pixel rectangle. X1 and Y1 are exclusive.
type Region struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

func (r Region) Width() int {
	return r.X1 - r.X0
}

func (r Region) Height() int {
	return r.Y1 - r.Y0
}

// Clip the region to an image of the given size
func (r Region) Clip(width, height int) Region {
	return Region{
		X0: max(r.X0, 0),
		Y0: max(r.Y0, 0),
		X1: min(r.X1, width),
		Y1: min(r.Y1, height),
	}
}
