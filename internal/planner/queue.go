package planner

import (
	"container/heap"
	"sort"
)

// dayQueue is a day's bucket ordered nearest-first. Candidates whose
// distances fall in the same tie band are ordered by descending score.
type dayQueue struct {
	items []queueItem
}

type queueItem struct {
	entry BucketEntry
	band  int
}

// newDayQueue orders entries into tie bands: walking entries by ascending
// distance, a new band opens whenever an entry lies tieBandKM or more beyond
// the first entry of the current band. Comparing each pair by its own
// distance delta is not transitive (a~b and b~c without a~c), so the heap
// compares fixed band numbers instead; two entries under tieBandKM apart can
// therefore land in adjacent bands and be ordered by distance.
func newDayQueue(entries []BucketEntry, tieBandKM float64) *dayQueue {
	sorted := make([]BucketEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DistanceKM != sorted[j].DistanceKM {
			return sorted[i].DistanceKM < sorted[j].DistanceKM
		}
		return sorted[i].Candidate.ID < sorted[j].Candidate.ID
	})

	q := &dayQueue{items: make([]queueItem, 0, len(sorted))}
	band, bandStart := 0, 0.0
	for i, e := range sorted {
		if i == 0 {
			bandStart = e.DistanceKM
		} else if e.DistanceKM-bandStart >= tieBandKM {
			band++
			bandStart = e.DistanceKM
		}
		q.items = append(q.items, queueItem{entry: e, band: band})
	}
	heap.Init(q)
	return q
}

func (q *dayQueue) Len() int { return len(q.items) }

func (q *dayQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.band != b.band {
		return a.band < b.band
	}
	if a.entry.Score != b.entry.Score {
		return a.entry.Score > b.entry.Score
	}
	if a.entry.DistanceKM != b.entry.DistanceKM {
		return a.entry.DistanceKM < b.entry.DistanceKM
	}
	return a.entry.Candidate.ID < b.entry.Candidate.ID
}

func (q *dayQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *dayQueue) Push(x any) { q.items = append(q.items, x.(queueItem)) }

func (q *dayQueue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	q.items = old[:n-1]
	return it
}

// next removes and returns the head of the queue.
func (q *dayQueue) next() (BucketEntry, bool) {
	if q.Len() == 0 {
		return BucketEntry{}, false
	}
	return heap.Pop(q).(queueItem).entry, true
}

// drain empties the queue in priority order.
func (q *dayQueue) drain() []BucketEntry {
	var out []BucketEntry
	for {
		e, ok := q.next()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}
