package stability

import (
	"testing"

	"github.com/cyclopcam/markertrack/pkg/marker"
	"github.com/stretchr/testify/require"
)

func cand(id int, score float64) marker.ScoredCandidate {
	return marker.ScoredCandidate{RawCandidate: marker.RawCandidate{MarkerID: id}, Confidence: 1, Score: score}
}

func ids(cands []marker.ScoredCandidate) []int {
	r := []int{}
	for _, c := range cands {
		r = append(r, c.MarkerID)
	}
	return r
}

func TestNeedsMinStreak(t *testing.T) {
	for _, minStreak := range []int{1, 2, 3, 5} {
		p := NewParams()
		p.MinStreak = minStreak
		tr := NewTracker(p)
		for frame := 1; frame <= minStreak+2; frame++ {
			out := tr.Update([]marker.ScoredCandidate{cand(7, 80)})
			if frame < minStreak {
				require.Empty(t, out, "minStreak %v frame %v", minStreak, frame)
			} else {
				require.Equal(t, []int{7}, ids(out), "minStreak %v frame %v", minStreak, frame)
			}
		}
	}
}

func TestDecayRemoves(t *testing.T) {
	tr := NewTracker(NewParams())
	tr.Update([]marker.ScoredCandidate{cand(7, 80)})
	tr.Update([]marker.ScoredCandidate{cand(7, 80)})
	require.Equal(t, 2, tr.Streak(7))

	// ceil(2/2) = 1 absent frame removes it
	out := tr.Update(nil)
	require.Empty(t, out)
	require.Equal(t, 0, tr.Streak(7))
	require.Equal(t, 0, tr.Len())

	// And it must rebuild its streak from scratch
	require.Empty(t, tr.Update([]marker.ScoredCandidate{cand(7, 80)}))
	require.Len(t, tr.Update([]marker.ScoredCandidate{cand(7, 80)}), 1)
}

func TestDecayIsGradual(t *testing.T) {
	tr := NewTracker(NewParams())
	for i := 0; i < 5; i++ {
		tr.Update([]marker.ScoredCandidate{cand(1, 80)})
	}
	require.Equal(t, 5, tr.Streak(1))
	tr.Update(nil)
	require.Equal(t, 3, tr.Streak(1))
	// Still stable on reappearance, without rebuilding the streak
	require.Len(t, tr.Update([]marker.ScoredCandidate{cand(1, 80)}), 1)
	require.Equal(t, 4, tr.Streak(1))
	tr.Update(nil)
	tr.Update(nil)
	require.Equal(t, 0, tr.Streak(1))
}

func TestStreakCap(t *testing.T) {
	p := NewParams()
	p.MaxStreak = 4
	tr := NewTracker(p)
	for i := 0; i < 100; i++ {
		tr.Update([]marker.ScoredCandidate{cand(1, 80)})
	}
	require.Equal(t, 4, tr.Streak(1))
	tr.Update(nil)
	tr.Update(nil)
	require.Equal(t, 0, tr.Len())
}

func TestMultipleMarkers(t *testing.T) {
	tr := NewTracker(NewParams())
	frame := []marker.ScoredCandidate{cand(1, 60), cand(2, 90), cand(3, 70)}
	require.Empty(t, tr.Update(frame))
	require.Equal(t, []int{1, 2, 3}, ids(tr.Update(frame)))
}

func TestSingleBestOnly(t *testing.T) {
	p := NewParams()
	p.SingleBestOnly = true
	tr := NewTracker(p)
	frame := []marker.ScoredCandidate{cand(1, 60), cand(2, 90), cand(3, 70)}
	require.Empty(t, tr.Update(frame))
	require.Equal(t, []int{2}, ids(tr.Update(frame)))

	// Streaks are still kept for the suppressed markers
	require.Equal(t, 2, tr.Streak(1))
	require.Equal(t, 2, tr.Streak(3))

	// The best one disappears, so the next best takes over immediately
	require.Equal(t, []int{3}, ids(tr.Update([]marker.ScoredCandidate{cand(1, 60), cand(3, 70)})))

	// Ties go to the lower id
	require.Equal(t, []int{1}, ids(tr.Update([]marker.ScoredCandidate{cand(3, 60), cand(1, 60)})))
}

func TestDuplicateIDs(t *testing.T) {
	tr := NewTracker(NewParams())
	frame := []marker.ScoredCandidate{cand(5, 40), cand(5, 75)}
	require.Empty(t, tr.Update(frame))
	require.Equal(t, 1, tr.Streak(5))
	out := tr.Update(frame)
	require.Len(t, out, 1)
	require.Equal(t, 75.0, out[0].Score)
}

func TestReset(t *testing.T) {
	tr := NewTracker(NewParams())
	tr.Update([]marker.ScoredCandidate{cand(1, 80)})
	tr.Reset()
	require.Equal(t, 0, tr.Len())
}
