package quaddetect

type blob struct {
	label      int32
	count      int
	sumX, sumY int64
	minX, minY int32
	maxX, maxY int32 // inclusive
}

func (b *blob) width() int {
	return int(b.maxX-b.minX) + 1
}

func (b *blob) height() int {
	return int(b.maxY-b.minY) + 1
}

// contains returns true if o's bounding box is inside b's, and b is the larger of the two
func (b *blob) contains(o *blob) bool {
	if b.width()*b.height() <= o.width()*o.height() {
		return false
	}
	return o.minX >= b.minX && o.maxX <= b.maxX && o.minY >= b.minY && o.maxY <= b.maxY
}

// each calls fn for every pixel of the blob
func (b *blob) each(labels []int32, stride int, fn func(x, y int)) {
	for y := int(b.minY); y <= int(b.maxY); y++ {
		for x := int(b.minX); x <= int(b.maxX); x++ {
			if labels[y*stride+x] == b.label {
				fn(x, y)
			}
		}
	}
}

// findBlobs labels the 8-connected components of the mask.
// Labels start at 1. Background pixels have label 0.
func findBlobs(mask []uint8, width, height int) ([]int32, []*blob) {
	labels := make([]int32, width*height)
	blobs := []*blob{}
	stack := []int32{}
	for start := range mask {
		if mask[start] == 0 || labels[start] != 0 {
			continue
		}
		b := &blob{
			label: int32(len(blobs) + 1),
			minX:  int32(width),
			minY:  int32(height),
			maxX:  -1,
			maxY:  -1,
		}
		labels[start] = b.label
		stack = append(stack[:0], int32(start))
		for len(stack) != 0 {
			p := int(stack[len(stack)-1])
			stack = stack[:len(stack)-1]
			x, y := int32(p%width), int32(p/width)
			b.count++
			b.sumX += int64(x)
			b.sumY += int64(y)
			b.minX = min(b.minX, x)
			b.minY = min(b.minY, y)
			b.maxX = max(b.maxX, x)
			b.maxY = max(b.maxY, y)
			for dy := int32(-1); dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= int32(height) {
					continue
				}
				for dx := int32(-1); dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= int32(width) {
						continue
					}
					np := int(ny)*width + int(nx)
					if mask[np] != 0 && labels[np] == 0 {
						labels[np] = b.label
						stack = append(stack, int32(np))
					}
				}
			}
		}
		blobs = append(blobs, b)
	}
	return labels, blobs
}
