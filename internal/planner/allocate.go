package planner

import (
	"time"

	"github.com/sells-group/visit-planner/internal/model"
)

// dayPlan is the mutable slot grid of one day during a single run. It is
// created from the run's snapshot and reduced into a model.Day at the end.
type dayPlan struct {
	key      string
	date     time.Time
	slots    []model.Slot
	anchors  int
	existing int
	placed   int
	locked   bool
}

func newDayPlan(date time.Time, capacity int) *dayPlan {
	slots := make([]model.Slot, capacity)
	for i := range slots {
		slots[i].Index = i
	}
	return &dayPlan{key: date.Format(model.DateLayout), date: date, slots: slots}
}

// open returns the number of free slots.
func (d *dayPlan) open() int {
	n := 0
	for _, s := range d.slots {
		if s.Empty() {
			n++
		}
	}
	return n
}

// firstEmpty returns the index of the first free slot, or -1.
func (d *dayPlan) firstEmpty() int {
	for i, s := range d.slots {
		if s.Empty() {
			return i
		}
	}
	return -1
}

// fill writes s into the first free slot. It reports false when the day is
// full.
func (d *dayPlan) fill(s model.Slot) bool {
	i := d.firstEmpty()
	if i < 0 {
		return false
	}
	s.Index = i
	d.slots[i] = s
	return true
}

// accepts reports whether discretionary placements may still go to the day.
func (d *dayPlan) accepts() bool {
	return !d.locked && d.open() > 0
}

func (d *dayPlan) toDay() model.Day {
	slots := make([]model.Slot, len(d.slots))
	copy(slots, d.slots)
	return model.Day{Date: d.date, Slots: slots}
}

// weekPlan holds the days of a run and the set of candidates already holding
// a slot. All discretionary placements go through place so that a candidate
// occupies at most one slot and no day exceeds its capacity.
type weekPlan struct {
	days  []*dayPlan
	byKey map[string]*dayPlan
	used  map[string]bool
}

func newWeekPlan(week Week, capacity int) *weekPlan {
	wp := &weekPlan{byKey: make(map[string]*dayPlan, len(week.Days)), used: make(map[string]bool)}
	for _, d := range week.Days {
		dp := newDayPlan(d, capacity)
		wp.days = append(wp.days, dp)
		wp.byKey[dp.key] = dp
	}
	return wp
}

// place puts a prospect into the day's next free slot.
func (w *weekPlan) place(day *dayPlan, c model.Candidate, score float64, dist *float64, reason model.PlacementReason) bool {
	if w.used[c.ID] || !day.accepts() {
		return false
	}
	ok := day.fill(model.Slot{
		CandidateID:          c.ID,
		Name:                 c.Name,
		Score:                score,
		DistanceToCentroidKM: dist,
		Reason:               reason,
	})
	if ok {
		w.used[c.ID] = true
		day.placed++
	}
	return ok
}

// Allocator drains day buckets into free slots.
type Allocator struct {
	TieBandKM float64
	Distance  DistanceFunc
}

// Distribute visits the days in rotation, giving each day that still has a
// free slot and a non-empty queue its best remaining candidate, until no day
// can take more. Candidates left in a queue are returned as spillover in
// queue order, day by day.
func (a *Allocator) Distribute(wp *weekPlan, buckets map[string][]BucketEntry) (int, []BucketEntry) {
	queues := make(map[string]*dayQueue, len(buckets))
	for key, entries := range buckets {
		queues[key] = newDayQueue(entries, a.TieBandKM)
	}

	placed := 0
	for {
		progressed := false
		for _, day := range wp.days {
			q := queues[day.key]
			if q == nil || !day.accepts() {
				continue
			}
			for q.Len() > 0 {
				e, _ := q.next()
				if wp.used[e.Candidate.ID] {
					continue
				}
				dist := e.DistanceKM
				if wp.place(day, e.Candidate, e.Score, &dist, e.Reason) {
					placed++
					progressed = true
				}
				break
			}
		}
		if !progressed {
			break
		}
	}

	var spill []BucketEntry
	for _, day := range wp.days {
		if q := queues[day.key]; q != nil {
			for _, e := range q.drain() {
				if !wp.used[e.Candidate.ID] {
					spill = append(spill, e)
				}
			}
		}
	}
	return placed, spill
}
