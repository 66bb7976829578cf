package marker

import "time"

// GrayImage is an 8-bit single channel image
type GrayImage struct {
	Width  int
	Height int
	Stride int
	Pixels []byte
}

func NewGrayImage(width, height int) *GrayImage {
	return &GrayImage{
		Width:  width,
		Height: height,
		Stride: width,
		Pixels: make([]byte, width*height),
	}
}

func (g *GrayImage) At(x, y int) uint8 {
	return g.Pixels[y*g.Stride+x]
}

func (g *GrayImage) Set(x, y int, v uint8) {
	g.Pixels[y*g.Stride+x] = v
}

func (g *GrayImage) Fill(v uint8) {
	for y := 0; y < g.Height; y++ {
		row := g.Pixels[y*g.Stride : y*g.Stride+g.Width]
		for i := range row {
			row[i] = v
		}
	}
}

// Frame is a single captured image, tagged with a monotonically increasing ID
type Frame struct {
	ID    int64
	Time  time.Time
	Image *GrayImage
}
