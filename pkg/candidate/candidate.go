// Package candidate rejects implausible detections and scores the rest
package candidate

import (
	"math"

	"github.com/cyclopcam/markertrack/pkg/gen"
	"github.com/cyclopcam/markertrack/pkg/marker"
)

// Score weights
const (
	WeightConfidence   = 50
	WeightSize         = 30
	WeightCenteredness = 20
)

type Params struct {
	MaxMarkerID        int     // IDs outside [0, MaxMarkerID] are rejected
	MinDiagonalPx      float64 // Quads with a smaller diagonal are too small to trust
	MinAspect          float64 // Shortest side / longest side
	MinConfidence      float64
	ExactConfidence    float64 // Confidence of a candidate with zero bit errors
	OneErrorConfidence float64 // Confidence of a candidate with one corrected bit error
}

// Create a default Params object
func NewParams() *Params {
	return &Params{
		MaxMarkerID:        511,
		MinDiagonalPx:      20,
		MinAspect:          0.3,
		MinConfidence:      0.5,
		ExactConfidence:    1,
		OneErrorConfidence: 0.7,
	}
}

// Stats counts what happened to the candidates of one Filter call
type Stats struct {
	Input              int `json:"input"`
	Accepted           int `json:"accepted"`
	RejectedID         int `json:"rejectedID"`
	RejectedSize       int `json:"rejectedSize"`
	RejectedAspect     int `json:"rejectedAspect"`
	RejectedConfidence int `json:"rejectedConfidence"`
	RejectedMalformed  int `json:"rejectedMalformed"` // NaN or infinite corners
}

func (s *Stats) Add(b Stats) {
	s.Input += b.Input
	s.Accepted += b.Accepted
	s.RejectedID += b.RejectedID
	s.RejectedSize += b.RejectedSize
	s.RejectedAspect += b.RejectedAspect
	s.RejectedConfidence += b.RejectedConfidence
	s.RejectedMalformed += b.RejectedMalformed
}

// Confidence derived from the bit error distance of the id decode
func (p *Params) Confidence(errorBits int) float64 {
	switch errorBits {
	case 0:
		return p.ExactConfidence
	case 1:
		return p.OneErrorConfidence
	}
	return 0
}

// Filter drops malformed candidates and those that fail the id, size, aspect and confidence checks,
// and scores the survivors. Output order matches input order.
func Filter(raw []marker.RawCandidate, imageWidth, imageHeight int, params *Params) ([]marker.ScoredCandidate, Stats) {
	stats := Stats{Input: len(raw)}
	out := make([]marker.ScoredCandidate, 0, len(raw))
	imageDiagonal := math.Hypot(float64(imageWidth), float64(imageHeight))
	for _, c := range raw {
		if !c.Corners.IsFinite() {
			stats.RejectedMalformed++
			continue
		}
		if c.MarkerID < 0 || c.MarkerID > params.MaxMarkerID {
			stats.RejectedID++
			continue
		}
		diagonal := float64(c.Corners.Diagonal())
		if diagonal < params.MinDiagonalPx {
			stats.RejectedSize++
			continue
		}
		if float64(c.Corners.Aspect()) < params.MinAspect {
			stats.RejectedAspect++
			continue
		}
		conf := params.Confidence(c.ErrorBits)
		if conf < params.MinConfidence {
			stats.RejectedConfidence++
			continue
		}
		out = append(out, marker.ScoredCandidate{
			RawCandidate: c,
			Confidence:   conf,
			Score:        Score(conf, diagonal, c.Corners.Center(), imageWidth, imageHeight, imageDiagonal),
		})
	}
	stats.Accepted = len(out)
	return out, stats
}

// Score = confidence*50 + normalizedSize*30 + centeredness*20
func Score(confidence, diagonal float64, center marker.Point, imageWidth, imageHeight int, imageDiagonal float64) float64 {
	normalizedSize := 0.0
	if imageDiagonal > 0 {
		normalizedSize = gen.Clamp(diagonal/imageDiagonal, 0, 1)
	}
	return confidence*WeightConfidence + normalizedSize*WeightSize + Centeredness(center, imageWidth, imageHeight)*WeightCenteredness
}

// Centeredness is 1 at the image center, falling linearly with the normalized distance from it
func Centeredness(center marker.Point, imageWidth, imageHeight int) float64 {
	if imageWidth <= 0 || imageHeight <= 0 {
		return 0
	}
	nx := float64(center.X)/float64(imageWidth) - 0.5
	ny := float64(center.Y)/float64(imageHeight) - 0.5
	return gen.Clamp(1-math.Hypot(nx, ny), 0, 1)
}
