package parity

// Payload is the inner 4x4 block of a marker. 1 = dark.
// Cells [0..2][0..2] are data bits, column 3 holds row parity, row 3 holds column
// parity, and [3][3] makes the total number of dark cells even.
type Payload [4][4]uint8

const (
	NumDataBits = 9
	MaxID       = 1<<NumDataBits - 1
)

// Encode builds a payload with correct parity for the given id (0..MaxID).
// The id is laid out row-major, most significant bit first.
func Encode(id int) Payload {
	var p Payload
	for i := 0; i < NumDataBits; i++ {
		p[i/3][i%3] = uint8(id>>(NumDataBits-1-i)) & 1
	}
	total := uint8(0)
	for r := 0; r < 3; r++ {
		p[r][3] = p[r][0] ^ p[r][1] ^ p[r][2]
		total ^= p[r][3]
	}
	for c := 0; c < 3; c++ {
		p[3][c] = p[0][c] ^ p[1][c] ^ p[2][c]
	}
	p[3][3] = total
	return p
}

// Rotate returns the payload turned 90 degrees clockwise
func (p Payload) Rotate() Payload {
	var r Payload
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			r[y][x] = p[3-x][y]
		}
	}
	return r
}

// Check reads the payload in its current orientation, and returns the id
// formed by the data bits, and the number of failed parity checks (0..7).
func (p Payload) Check() (id, parityErrors int) {
	for i := 0; i < NumDataBits; i++ {
		id = id<<1 | int(p[i/3][i%3])
	}
	all := uint8(0)
	for r := 0; r < 3; r++ {
		if p[r][0]^p[r][1]^p[r][2]^p[r][3] != 0 {
			parityErrors++
		}
	}
	for c := 0; c < 3; c++ {
		if p[0][c]^p[1][c]^p[2][c]^p[3][c] != 0 {
			parityErrors++
		}
	}
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			all ^= p[r][c]
		}
	}
	if all != 0 {
		parityErrors++
	}
	return
}

// Canonical returns the id that Decode reports for a marker printed with the given id.
// Every rotation of a valid payload also has valid parity, so the four
// orientations of a printed marker are indistinguishable, and the decoder
// settles on the smallest id of the four.
func Canonical(id int) int {
	p := Encode(id)
	best := id
	for i := 0; i < 3; i++ {
		p = p.Rotate()
		rid, _ := p.Check()
		best = min(best, rid)
	}
	return best
}

// Dictionary returns every id that survives a print-and-decode round trip unchanged.
// MaxID is excluded, because a fully dark payload has no contrast against its border.
func Dictionary() []int {
	ids := []int{}
	for id := 0; id < MaxID; id++ {
		if Canonical(id) == id {
			ids = append(ids, id)
		}
	}
	return ids
}
