package planner

import (
	"sort"

	"github.com/sells-group/visit-planner/internal/model"
)

// RepechageResult summarizes the fallback pass.
type RepechageResult struct {
	Overflow    int
	NoGeoSignal int
	Unplaced    []ScoredCandidate
}

// Repechage places candidates the clustering pass could not. Phase 1 sends
// each located candidate to the nearest centroid among days that still have
// a free slot. Phase 2 round-robins everything else, best score first, over
// the days with free slots. Candidates left over once every day is full are
// returned as unplaced.
func (a *Allocator) Repechage(wp *weekPlan, centroids map[string]model.Coordinates, pending []ScoredCandidate) RepechageResult {
	dist := a.Distance
	if dist == nil {
		dist = HaversineKM
	}

	queue := make([]ScoredCandidate, 0, len(pending))
	seen := make(map[string]bool, len(pending))
	for _, sc := range pending {
		if wp.used[sc.Candidate.ID] || seen[sc.Candidate.ID] {
			continue
		}
		seen[sc.Candidate.ID] = true
		queue = append(queue, sc)
	}
	sortByScore(queue)

	var res RepechageResult
	var noSignal []ScoredCandidate

	// Phase 1: spillover with coordinates.
	for _, sc := range queue {
		if !sc.Candidate.HasLocation() {
			noSignal = append(noSignal, sc)
			continue
		}
		var best *dayPlan
		bestDist := 0.0
		for _, day := range wp.days {
			centroid, ok := centroids[day.key]
			if !ok || !day.accepts() {
				continue
			}
			d := dist(centroid, *sc.Candidate.Location)
			if best == nil || d < bestDist {
				best, bestDist = day, d
			}
		}
		if best == nil {
			noSignal = append(noSignal, sc)
			continue
		}
		d := bestDist
		if wp.place(best, sc.Candidate, sc.Score, &d, model.ReasonOverflow) {
			res.Overflow++
		}
	}

	// Phase 2: no coordinates or no centroid match.
	sortByScore(noSignal)
	next := 0
	for i, sc := range noSignal {
		day := nextOpenDay(wp, next)
		if day < 0 {
			res.Unplaced = append(res.Unplaced, noSignal[i:]...)
			break
		}
		if wp.place(wp.days[day], sc.Candidate, sc.Score, nil, model.ReasonNoGeoSignal) {
			res.NoGeoSignal++
		}
		next = (day + 1) % len(wp.days)
	}

	return res
}

// nextOpenDay returns the index of the first day at or after start (wrapping
// around) that accepts placements, or -1.
func nextOpenDay(wp *weekPlan, start int) int {
	n := len(wp.days)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if wp.days[idx].accepts() {
			return idx
		}
	}
	return -1
}

// sortByScore orders candidates by descending score, then id.
func sortByScore(cs []ScoredCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].Candidate.ID < cs[j].Candidate.ID
	})
}
