package planner

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/visit-planner/internal/model"
	"github.com/sells-group/visit-planner/pkg/geocode"
)

// monday is the start of the test week.
var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return monday.AddDate(0, 0, offset)
}

// planarKM treats coordinates as kilometer offsets on a plane so distances in
// tests are exact.
func planarKM(a, b model.Coordinates) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lng-b.Lng)
}

func at(x, y float64) *model.Coordinates {
	return &model.Coordinates{Lat: x, Lng: y}
}

func testOptions() Options {
	o := DefaultOptions()
	o.Distance = planarKM
	return o
}

func prospect(id string, tier model.PotentialTier, loc *model.Coordinates) model.Candidate {
	return model.Candidate{
		ID:             id,
		RepID:          "rep-1",
		Name:           "Prospect " + id,
		Location:       loc,
		PotentialTier:  tier,
		PipelineStatus: model.PipelineNew,
	}
}

func anchorOn(id string, loc *model.Coordinates, radius float64, days ...time.Weekday) model.Anchor {
	return model.Anchor{
		ID:             id,
		RepID:          "rep-1",
		Name:           "Anchor " + id,
		Location:       loc,
		SearchRadiusKM: radius,
		Recurrence:     model.Recurrence{Weekdays: days},
	}
}

type fakeStore struct {
	mu         sync.Mutex
	candidates []model.Candidate
	anchors    []model.Anchor
	anchorsErr error
	visits     []model.Visit
	failWrite  map[string]bool
	writes     int
}

func (f *fakeStore) ListCandidates(_ context.Context, repID string) ([]model.Candidate, error) {
	var out []model.Candidate
	for _, c := range f.candidates {
		if c.RepID == repID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAnchors(_ context.Context, repID string) ([]model.Anchor, error) {
	if f.anchorsErr != nil {
		return nil, f.anchorsErr
	}
	var out []model.Anchor
	for _, a := range f.anchors {
		if a.RepID == repID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListExistingVisits(_ context.Context, repID string, from, to time.Time) ([]model.Visit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Visit
	for _, v := range f.visits {
		if v.RepID != repID || v.Date.Before(from) || v.Date.After(to) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeStore) WriteVisit(_ context.Context, v model.Visit) (model.WriteOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite[v.CandidateID] {
		return model.WriteError, errors.New("connection reset")
	}
	for _, e := range f.visits {
		if e.RepID == v.RepID && e.CandidateID == v.CandidateID && e.Date.Equal(v.Date) {
			return model.WriteAlreadyExists, nil
		}
	}
	f.visits = append(f.visits, v)
	f.writes++
	return model.WriteOK, nil
}

type fakeGeocoder struct {
	mu     sync.Mutex
	coords map[string]model.Coordinates
	fail   map[string]bool
	calls  int
}

func (g *fakeGeocoder) GeocodeAll(_ context.Context, addrs []model.Address) []model.Geocoded {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Geocoded, len(addrs))
	for i, addr := range addrs {
		g.calls++
		if g.fail[addr.Street] {
			out[i].Err = errors.New("geocode timeout")
			continue
		}
		if c, ok := g.coords[addr.Street]; ok {
			out[i].Location = &c
		}
	}
	return out
}

// stalledProvider never answers before its context ends.
type stalledProvider struct{}

func (stalledProvider) Name() string    { return "stalled" }
func (stalledProvider) Available() bool { return true }

func (stalledProvider) Geocode(ctx context.Context, _ geocode.AddressInput) (*geocode.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// assertScheduleInvariants checks the capacity bound and that no prospect
// holds more than one slot in the week.
func assertScheduleInvariants(t *testing.T, s model.WeekSchedule, capacity int) {
	t.Helper()
	seen := make(map[string]string)
	for _, d := range s.Days {
		assert.LessOrEqual(t, d.Filled(), capacity, "day %s over capacity", d.Key())
		assert.Len(t, d.Slots, capacity)
		for _, slot := range d.Slots {
			if slot.CandidateID == "" || slot.Reason == model.ReasonAnchor {
				continue
			}
			prev, dup := seen[slot.CandidateID]
			assert.False(t, dup, "candidate %s booked on %s and %s", slot.CandidateID, prev, d.Key())
			seen[slot.CandidateID] = d.Key()
		}
	}
}

// slotsFor returns the non-empty slots of the day with the given date.
func slotsFor(s model.WeekSchedule, date time.Time) []model.Slot {
	for _, d := range s.Days {
		if d.Date.Equal(date) {
			var out []model.Slot
			for _, slot := range d.Slots {
				if !slot.Empty() {
					out = append(out, slot)
				}
			}
			return out
		}
	}
	return nil
}

// findSlot locates a candidate in the schedule.
func findSlot(s model.WeekSchedule, candidateID string) (time.Time, model.Slot, bool) {
	for _, d := range s.Days {
		for _, slot := range d.Slots {
			if slot.CandidateID == candidateID {
				return d.Date, slot, true
			}
		}
	}
	return time.Time{}, model.Slot{}, false
}
