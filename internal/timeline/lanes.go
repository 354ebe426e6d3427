package timeline

import "sort"

// Interval is a candidate for lane packing, usually a visible bookmark.
type Interval struct {
	ID    string
	Start float64
	End   float64
}

// PackLanes assigns each interval a lane such that no two intervals in the
// same lane overlap, using the minimum number of lanes. Greedy first-fit
// over intervals sorted by (start asc, duration asc) is optimal here:
// lane packing is minimum clique cover on an interval graph.
//
// Shorter intervals sort first on ties so small bookmarks stack above the
// larger ones that contain them. The result depends only on the input set;
// lanes are recomputed per render and never sticky.
func PackLanes(intervals []Interval) []Lane {
	ordered := make([]Interval, len(intervals))
	copy(ordered, intervals)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		di := ordered[i].End - ordered[i].Start
		dj := ordered[j].End - ordered[j].Start
		if di != dj {
			return di < dj
		}
		return ordered[i].ID < ordered[j].ID
	})

	var lastEnds []float64
	out := make([]Lane, 0, len(ordered))
	for _, iv := range ordered {
		lane := -1
		for l, end := range lastEnds {
			if end <= iv.Start {
				lane = l
				break
			}
		}
		if lane == -1 {
			lane = len(lastEnds)
			lastEnds = append(lastEnds, 0)
		}
		lastEnds[lane] = iv.End
		out = append(out, Lane{ID: iv.ID, Lane: lane})
	}
	return out
}

// Lane is one packed assignment.
type Lane struct {
	ID   string
	Lane int
}

// LaneCount returns the number of distinct lanes in a packing.
func LaneCount(lanes []Lane) int {
	max := -1
	for _, l := range lanes {
		if l.Lane > max {
			max = l.Lane
		}
	}
	return max + 1
}
