package timeline

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackLanes_NoOverlapSingleLane(t *testing.T) {
	lanes := PackLanes([]Interval{
		{ID: "a", Start: 0, End: 1},
		{ID: "b", Start: 1, End: 2},
		{ID: "c", Start: 2.5, End: 3},
	})
	for _, l := range lanes {
		assert.Equal(t, 0, l.Lane)
	}
	assert.Equal(t, 1, LaneCount(lanes))
}

func TestPackLanes_OverlappingSplit(t *testing.T) {
	lanes := PackLanes([]Interval{
		{ID: "a", Start: 0, End: 4},
		{ID: "b", Start: 1, End: 2},
		{ID: "c", Start: 3, End: 5},
	})
	byID := laneMap(lanes)
	assert.NotEqual(t, byID["a"], byID["b"])
	assert.NotEqual(t, byID["a"], byID["c"])
}

func TestPackLanes_ShorterNestsAbove(t *testing.T) {
	// Same start: the short bookmark takes lane 0, the container lane 1.
	lanes := PackLanes([]Interval{
		{ID: "long", Start: 0, End: 10},
		{ID: "short", Start: 0, End: 1},
	})
	byID := laneMap(lanes)
	assert.Equal(t, 0, byID["short"])
	assert.Equal(t, 1, byID["long"])
}

func TestPackLanes_Deterministic(t *testing.T) {
	in := []Interval{
		{ID: "a", Start: 0, End: 3},
		{ID: "b", Start: 2, End: 5},
		{ID: "c", Start: 4, End: 6},
		{ID: "d", Start: 0, End: 6},
	}
	first := laneMap(PackLanes(in))
	// Shuffled input yields identical assignments.
	shuffled := []Interval{in[2], in[0], in[3], in[1]}
	second := laneMap(PackLanes(shuffled))
	assert.Equal(t, first, second)
}

func TestPackLanes_RandomSetsAreValidAndOptimal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(12)
		intervals := make([]Interval, n)
		for i := range intervals {
			start := rng.Float64() * 20
			intervals[i] = Interval{
				ID:    string(rune('a' + i)),
				Start: start,
				End:   start + 0.1 + rng.Float64()*6,
			}
		}
		lanes := PackLanes(intervals)
		byID := laneMap(lanes)

		// No two intervals sharing a lane overlap.
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				a, b := intervals[i], intervals[j]
				if byID[a.ID] != byID[b.ID] {
					continue
				}
				overlap := a.Start < b.End && b.Start < a.End
				require.False(t, overlap, "trial %d: %s and %s overlap in lane %d", trial, a.ID, b.ID, byID[a.ID])
			}
		}

		// Lane count equals the max number of intervals alive at any one
		// point (the interval graph's clique number).
		require.Equal(t, maxConcurrent(intervals), LaneCount(lanes), "trial %d", trial)
	}
}

func maxConcurrent(intervals []Interval) int {
	best := 0
	for _, iv := range intervals {
		n := 0
		for _, other := range intervals {
			if other.Start <= iv.Start && iv.Start < other.End {
				n++
			}
		}
		if n > best {
			best = n
		}
	}
	return best
}

func laneMap(lanes []Lane) map[string]int {
	m := make(map[string]int, len(lanes))
	for _, l := range lanes {
		m[l.ID] = l.Lane
	}
	return m
}
