package parity

import "github.com/cyclopcam/markertrack/pkg/marker"

// Render draws an axis-aligned marker with the given id into the region.
// Dark cells are painted with 'dark', light cells with 'light'.
func Render(img *marker.GrayImage, region marker.Region, id int, dark, light uint8) {
	p := Encode(id)
	w := region.Width()
	h := region.Height()
	for y := region.Y0; y < region.Y1; y++ {
		cy := (y - region.Y0) * GridSize / h
		for x := region.X0; x < region.X1; x++ {
			cx := (x - region.X0) * GridSize / w
			if CellIsDark(p, cx, cy) {
				img.Set(x, y, dark)
			} else {
				img.Set(x, y, light)
			}
		}
	}
}

// CellIsDark returns true if cell (cx, cy) of the full 6x6 marker grid is dark
func CellIsDark(p Payload, cx, cy int) bool {
	if cx == 0 || cy == 0 || cx == GridSize-1 || cy == GridSize-1 {
		return true
	}
	return p[cy-1][cx-1] == 1
}
