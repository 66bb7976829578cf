// Package stability debounces marker sightings across frames
package stability

import (
	"sort"

	"github.com/cyclopcam/markertrack/pkg/marker"
)

type Params struct {
	MinStreak      int  // A marker is reported once its streak reaches this
	Decay          int  // Subtracted from the streak of every marker absent from a frame
	MaxStreak      int  // Streaks saturate here, so that a long-seen marker still expires promptly
	SingleBestOnly bool // Report only the highest scoring stable candidate per frame
}

func NewParams() *Params {
	return &Params{
		MinStreak: 2,
		Decay:     2,
		MaxStreak: 30,
	}
}

// Tracker owns the streak counters. It is not safe for concurrent use.
type Tracker struct {
	params  Params
	streaks map[int]int
}

func NewTracker(params *Params) *Tracker {
	return &Tracker{
		params:  *params,
		streaks: map[int]int{},
	}
}

// Update the streaks with this frame's candidates, and return the candidates
// that are stable enough to report.
func (t *Tracker) Update(candidates []marker.ScoredCandidate) []marker.ScoredCandidate {
	// Collapse duplicate ids, keeping the best score
	best := map[int]int{}
	for i, c := range candidates {
		if j, ok := best[c.MarkerID]; !ok || c.Score > candidates[j].Score {
			best[c.MarkerID] = i
		}
	}

	for id := range best {
		s := t.streaks[id] + 1
		if t.params.MaxStreak > 0 {
			s = min(s, t.params.MaxStreak)
		}
		t.streaks[id] = s
	}
	for id, s := range t.streaks {
		if _, seen := best[id]; seen {
			continue
		}
		s -= t.params.Decay
		if s <= 0 {
			delete(t.streaks, id)
		} else {
			t.streaks[id] = s
		}
	}

	stable := make([]marker.ScoredCandidate, 0, len(best))
	for i, c := range candidates {
		if best[c.MarkerID] == i && t.streaks[c.MarkerID] >= t.params.MinStreak {
			stable = append(stable, c)
		}
	}

	if t.params.SingleBestOnly && len(stable) > 1 {
		sort.SliceStable(stable, func(i, j int) bool {
			if stable[i].Score != stable[j].Score {
				return stable[i].Score > stable[j].Score
			}
			return stable[i].MarkerID < stable[j].MarkerID
		})
		stable = stable[:1]
	}
	return stable
}

// Streak returns the current streak of a marker (0 if untracked)
func (t *Tracker) Streak(markerID int) int {
	return t.streaks[markerID]
}

// Number of markers with a live streak
func (t *Tracker) Len() int {
	return len(t.streaks)
}

func (t *Tracker) Reset() {
	t.streaks = map[int]int{}
}

func (t *Tracker) Params() Params {
	return t.params
}
