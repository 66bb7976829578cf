package quaddetect

import "github.com/cyclopcam/markertrack/pkg/marker"

// binarize returns a mask (1 = dark) of pixels that are more than 'offset'
// below the mean of the (2*radius+1)^2 window around them.
func binarize(img *marker.GrayImage, radius, offset int) []uint8 {
	w, h := img.Width, img.Height
	// Summed area table, with a zero row and column at the top and left
	sat := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		rowSum := int64(0)
		for x := 0; x < w; x++ {
			rowSum += int64(img.At(x, y))
			sat[(y+1)*(w+1)+x+1] = sat[y*(w+1)+x+1] + rowSum
		}
	}
	mask := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		y0 := max(y-radius, 0)
		y1 := min(y+radius+1, h)
		for x := 0; x < w; x++ {
			x0 := max(x-radius, 0)
			x1 := min(x+radius+1, w)
			sum := sat[y1*(w+1)+x1] - sat[y0*(w+1)+x1] - sat[y1*(w+1)+x0] + sat[y0*(w+1)+x0]
			n := int64((x1 - x0) * (y1 - y0))
			if int64(img.At(x, y))*n < sum-int64(offset)*n {
				mask[y*w+x] = 1
			}
		}
	}
	return mask
}
