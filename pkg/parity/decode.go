package parity

import (
	"github.com/cyclopcam/markertrack/pkg/gen"
	"github.com/cyclopcam/markertrack/pkg/marker"
)

const (
	GridSize        = 6    // Cells across the whole marker, including the border ring
	MinRegionSize   = 18   // Pixels. Smaller regions don't carry enough signal.
	MinBorderScore  = 0.78 // Fraction of border cells that must be dark
	MaxParityErrors = 1
	MinContrast     = 24 // Minimum spread of the coarse brightness samples
	thresholdSample = 8  // Coarse sample grid used for the local threshold
)

// Decoded is the result of a successful decode
type Decoded struct {
	MarkerID         int     `json:"markerID"`
	Confidence       float64 `json:"confidence"`
	BorderScore      float64 `json:"borderScore"`
	ParityErrorCount int     `json:"parityErrorCount"`
	Rotation         int     `json:"rotation"` // Clockwise quarter turns applied to the sampled payload
}

// Confidence of a decode, from its border score and parity error count
func Confidence(borderScore float64, parityErrors int) float64 {
	return gen.Clamp(0.58+borderScore*0.26-float64(parityErrors)*0.18, 0.25, 0.99)
}

// Decode samples a 6x6 bit grid from the region, and tries to read a marker id from it.
// Returns false if the region is too small, lacks contrast, has a broken border,
// or no orientation of the payload passes the parity checks.
func Decode(img *marker.GrayImage, region marker.Region) (Decoded, bool) {
	grid, ok := SampleGrid(img, region)
	if !ok {
		return Decoded{}, false
	}
	border := BorderScore(grid)
	if border < MinBorderScore {
		return Decoded{}, false
	}
	var p Payload
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			p[y][x] = grid[y+1][x+1]
		}
	}
	return DecodePayload(p, border)
}

// DecodePayload tries all 4 orientations of the payload, and returns the best.
// Ties are broken by fewest parity errors, then by lowest id, so that the result
// does not depend on the orientation of the input.
func DecodePayload(p Payload, borderScore float64) (Decoded, bool) {
	best := Decoded{}
	found := false
	for rot := 0; rot < 4; rot++ {
		id, errs := p.Check()
		if errs <= MaxParityErrors {
			d := Decoded{
				MarkerID:         id,
				Confidence:       Confidence(borderScore, errs),
				BorderScore:      borderScore,
				ParityErrorCount: errs,
				Rotation:         rot,
			}
			if !found || better(d, best) {
				best = d
				found = true
			}
		}
		p = p.Rotate()
	}
	return best, found
}

func better(a, b Decoded) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.ParityErrorCount != b.ParityErrorCount {
		return a.ParityErrorCount < b.ParityErrorCount
	}
	return a.MarkerID < b.MarkerID
}

// SampleGrid binarizes the region into a 6x6 grid of cells (1 = dark).
// Each cell is the average of the 3x3 pixels around its center, compared
// against the mean of a coarse sample of the region.
func SampleGrid(img *marker.GrayImage, region marker.Region) (grid [GridSize][GridSize]uint8, ok bool) {
	region = region.Clip(img.Width, img.Height)
	w := region.Width()
	h := region.Height()
	if w < MinRegionSize || h < MinRegionSize {
		return
	}

	sum := 0
	lo, hi := 255, 0
	for sy := 0; sy < thresholdSample; sy++ {
		y := region.Y0 + (2*sy+1)*h/(2*thresholdSample)
		for sx := 0; sx < thresholdSample; sx++ {
			x := region.X0 + (2*sx+1)*w/(2*thresholdSample)
			v := int(img.At(x, y))
			sum += v
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	if hi-lo < MinContrast {
		return
	}
	threshold := sum / (thresholdSample * thresholdSample)

	for cy := 0; cy < GridSize; cy++ {
		py := region.Y0 + (2*cy+1)*h/(2*GridSize)
		for cx := 0; cx < GridSize; cx++ {
			px := region.X0 + (2*cx+1)*w/(2*GridSize)
			if neighborhoodMean(img, region, px, py) < threshold {
				grid[cy][cx] = 1
			}
		}
	}
	ok = true
	return
}

func neighborhoodMean(img *marker.GrayImage, region marker.Region, px, py int) int {
	sum := 0
	n := 0
	for y := max(py-1, region.Y0); y <= min(py+1, region.Y1-1); y++ {
		for x := max(px-1, region.X0); x <= min(px+1, region.X1-1); x++ {
			sum += int(img.At(x, y))
			n++
		}
	}
	return sum / n
}

// BorderScore is the fraction of the outer ring of cells that are dark
func BorderScore(grid [GridSize][GridSize]uint8) float64 {
	dark := 0
	total := 0
	for y := 0; y < GridSize; y++ {
		for x := 0; x < GridSize; x++ {
			if y == 0 || y == GridSize-1 || x == 0 || x == GridSize-1 {
				dark += int(grid[y][x])
				total++
			}
		}
	}
	return float64(dark) / float64(total)
}
