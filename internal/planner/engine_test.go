package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visit-planner/internal/config"
	"github.com/sells-group/visit-planner/internal/model"
	"github.com/sells-group/visit-planner/pkg/geocode"
)

func newTestEngine(st *fakeStore, opts ...Option) *Engine {
	return New(st, append([]Option{WithOptions(testOptions())}, opts...)...)
}

// mondayScenario is an anchor on Monday at the origin with a 15 km radius and
// prospects at 3, 8 and 40 km, none of the highest tier.
func mondayScenario() *fakeStore {
	return &fakeStore{
		anchors: []model.Anchor{anchorOn("a1", at(0, 0), 15, time.Monday)},
		candidates: []model.Candidate{
			prospect("p40", model.TierHigh, at(40, 0)),
			prospect("p8", model.TierMedium, at(0, 8)),
			prospect("p3", model.TierLow, at(3, 0)),
		},
	}
}

func TestAnalyze_LowPotentialExample(t *testing.T) {
	st := mondayScenario()
	e := newTestEngine(st)

	res, err := e.Analyze(context.Background(), "rep-1", monday)
	require.NoError(t, err)

	require.Len(t, res.Suggestions, 1)
	s := res.Suggestions[0]
	assert.Equal(t, model.SuggestionLowPotential, s.Kind)
	assert.Equal(t, SuggestionID(monday, "a1"), s.ID)
	assert.True(t, s.Date.Equal(monday))
	require.Len(t, s.Candidates, 2)
	assert.Equal(t, "p3", s.Candidates[0].Candidate.ID)
	assert.Equal(t, "p8", s.Candidates[1].Candidate.ID)

	// Nothing is persisted by analysis.
	assert.Empty(t, st.visits)
}

func TestAnalyze_SuggestionIDsStable(t *testing.T) {
	st := mondayScenario()
	st.anchors = append(st.anchors, anchorOn("a2", at(500, 500), 5, time.Wednesday))
	e := newTestEngine(st)

	first, err := e.Analyze(context.Background(), "rep-1", monday)
	require.NoError(t, err)
	second, err := e.Analyze(context.Background(), "rep-1", day(3))
	require.NoError(t, err)

	require.Len(t, first.Suggestions, 2)
	require.Len(t, second.Suggestions, 2)
	for i := range first.Suggestions {
		assert.Equal(t, first.Suggestions[i].ID, second.Suggestions[i].ID)
	}
	assert.Equal(t, model.SuggestionNoNearby, first.Suggestions[1].Kind)
	assert.Equal(t, SuggestionID(day(2), "a2"), first.Suggestions[1].ID)
}

func TestAnalyze_FiltersDecided(t *testing.T) {
	e := newTestEngine(mondayScenario())
	res, err := e.Analyze(context.Background(), "rep-1", monday,
		model.Decision{SuggestionID: SuggestionID(monday, "a1"), Accepted: true})
	require.NoError(t, err)
	assert.Empty(t, res.Suggestions)
}

func TestAnalyze_HighestTierNeedsNoDecision(t *testing.T) {
	st := mondayScenario()
	st.candidates = append(st.candidates, prospect("top", model.TierHighest, at(1, 1)))
	res, err := newTestEngine(st).Analyze(context.Background(), "rep-1", monday)
	require.NoError(t, err)
	assert.Empty(t, res.Suggestions)
}

func TestExecute_AcceptedDecision(t *testing.T) {
	st := mondayScenario()
	e := newTestEngine(st)
	decisions := []model.Decision{{SuggestionID: SuggestionID(monday, "a1"), Accepted: true}}

	res, err := e.Execute(context.Background(), "rep-1", monday, decisions)
	require.NoError(t, err)
	assertScheduleInvariants(t, res.Schedule, 6)

	mon := slotsFor(res.Schedule, monday)
	require.Len(t, mon, 4)
	assert.Equal(t, model.ReasonAnchor, mon[0].Reason)
	assert.Equal(t, "a1", mon[0].AnchorID)
	assert.Equal(t, "p3", mon[1].CandidateID)
	assert.Equal(t, model.ReasonAnchorMatch, mon[1].Reason)
	assert.Equal(t, "p8", mon[2].CandidateID)
	// p40 is outside the gravity radius; Repêchage sends it to the only
	// centroid day with room.
	assert.Equal(t, "p40", mon[3].CandidateID)
	assert.Equal(t, model.ReasonOverflow, mon[3].Reason)

	assert.Equal(t, 3, res.PlacedCount)
	assert.Zero(t, res.UnplacedCount)
	assert.Equal(t, 3, res.Writes.Written)
	require.Len(t, res.Days, 5)
	assert.Equal(t, DaySummary{Date: monday, Capacity: 6, Anchors: 1, Placed: 3, Open: 2}, res.Days[0])
}

func TestExecute_SubsetDecisionWithholdsRest(t *testing.T) {
	st := mondayScenario()
	decisions := []model.Decision{{SuggestionID: SuggestionID(monday, "a1"), Accepted: true, CandidateIDs: []string{"p8"}}}

	res, err := newTestEngine(st).Execute(context.Background(), "rep-1", monday, decisions)
	require.NoError(t, err)

	_, _, found := findSlot(res.Schedule, "p3")
	assert.False(t, found)
	_, slot, found := findSlot(res.Schedule, "p8")
	require.True(t, found)
	assert.Equal(t, model.ReasonAnchorMatch, slot.Reason)
	assert.Equal(t, 2, res.PlacedCount)
	assert.Zero(t, res.UnplacedCount)
}

func TestExecute_MissingDecisionLocksDay(t *testing.T) {
	st := mondayScenario()
	res, err := newTestEngine(st).Execute(context.Background(), "rep-1", monday, nil)
	require.NoError(t, err)

	mon := slotsFor(res.Schedule, monday)
	require.Len(t, mon, 1)
	assert.Equal(t, model.ReasonAnchor, mon[0].Reason)
	assert.True(t, res.Days[0].Locked)

	for _, id := range []string{"p3", "p8"} {
		_, _, found := findSlot(res.Schedule, id)
		assert.False(t, found, id)
	}

	// p40 was never part of the suggestion and still gets a slot elsewhere.
	date, slot, found := findSlot(res.Schedule, "p40")
	require.True(t, found)
	assert.False(t, date.Equal(monday))
	assert.Equal(t, model.ReasonNoGeoSignal, slot.Reason)
	assert.Equal(t, 1, res.Trace.Count(StageConfirm, TraceWarn))
}

func TestExecute_NoNearbyAcknowledged(t *testing.T) {
	st := &fakeStore{
		anchors: []model.Anchor{anchorOn("a1", at(0, 0), 5, time.Monday)},
		candidates: []model.Candidate{
			prospect("c1", model.TierLow, at(10, 0)),
		},
	}
	e := newTestEngine(st)

	res, err := e.Execute(context.Background(), "rep-1", monday, nil)
	require.NoError(t, err)
	assert.True(t, res.Days[0].Locked)
	date, _, found := findSlot(res.Schedule, "c1")
	require.True(t, found)
	assert.False(t, date.Equal(monday))

	st.visits = nil
	ack := []model.Decision{{SuggestionID: SuggestionID(monday, "a1"), Accepted: true}}
	res, err = e.Execute(context.Background(), "rep-1", monday, ack)
	require.NoError(t, err)
	assert.False(t, res.Days[0].Locked)
	date, slot, found := findSlot(res.Schedule, "c1")
	require.True(t, found)
	assert.True(t, date.Equal(monday))
	assert.Equal(t, model.ReasonGravity, slot.Reason)
}

func TestExecute_RejectedCandidatesWithheld(t *testing.T) {
	st := mondayScenario()
	decisions := []model.Decision{{SuggestionID: SuggestionID(monday, "a1"), Accepted: false}}

	res, err := newTestEngine(st).Execute(context.Background(), "rep-1", monday, decisions)
	require.NoError(t, err)

	assert.False(t, res.Days[0].Locked)
	mon := slotsFor(res.Schedule, monday)
	require.Len(t, mon, 2)
	assert.Equal(t, "p40", mon[1].CandidateID)
	assert.Equal(t, 1, res.PlacedCount)
	assert.Zero(t, res.UnplacedCount)
}

func TestExecute_RepechageFillsWeek(t *testing.T) {
	st := &fakeStore{}
	for i := 0; i < 30; i++ {
		st.candidates = append(st.candidates,
			prospect(fmt.Sprintf("c%02d", i), model.TierMedium, at(float64(i*100), 0)))
	}

	res, err := newTestEngine(st).Execute(context.Background(), "rep-1", monday, nil)
	require.NoError(t, err)
	assertScheduleInvariants(t, res.Schedule, 6)

	assert.Equal(t, 30, res.PlacedCount)
	assert.Zero(t, res.UnplacedCount)
	for _, d := range res.Schedule.Days {
		assert.Equal(t, 6, d.Filled(), d.Key())
		for _, s := range d.Slots {
			assert.Equal(t, model.ReasonNoGeoSignal, s.Reason)
		}
	}
	assert.Equal(t, 30, res.Writes.Written)
}

func TestExecute_CapacityExhausted(t *testing.T) {
	st := &fakeStore{}
	for i := 0; i < 33; i++ {
		st.candidates = append(st.candidates, prospect(fmt.Sprintf("c%02d", i), model.TierLow, nil))
	}

	res, err := newTestEngine(st).Execute(context.Background(), "rep-1", monday, nil)
	require.NoError(t, err)
	assertScheduleInvariants(t, res.Schedule, 6)
	assert.Equal(t, 30, res.PlacedCount)
	assert.Equal(t, 3, res.UnplacedCount)
}

func TestExecute_NoCoordinatesIsNoGeographicSignal(t *testing.T) {
	st := &fakeStore{
		anchors: []model.Anchor{anchorOn("a1", at(0, 0), 10, time.Monday, time.Tuesday)},
		candidates: []model.Candidate{
			prospect("near", model.TierHighest, at(2, 0)),
			{
				ID:              "star",
				RepID:           "rep-1",
				Name:            "Star",
				PotentialTier:   model.TierHighest,
				Rating:          5,
				ReviewCount:     1000,
				ProjectedVolume: 1e6,
			},
		},
	}

	res, err := newTestEngine(st).Execute(context.Background(), "rep-1", monday, nil)
	require.NoError(t, err)

	_, slot, found := findSlot(res.Schedule, "star")
	require.True(t, found)
	assert.Equal(t, model.ReasonNoGeoSignal, slot.Reason)
	assert.Nil(t, slot.DistanceToCentroidKM)

	_, slot, found = findSlot(res.Schedule, "near")
	require.True(t, found)
	assert.Equal(t, model.ReasonAnchorMatch, slot.Reason)
}

func TestExecute_IdempotentRerun(t *testing.T) {
	linked := prospect("anchor-client", model.TierHigh, at(0, 0))
	anchor := anchorOn("a1", nil, 10, time.Monday, time.Thursday)
	anchor.CandidateID = linked.ID

	st := &fakeStore{
		anchors: []model.Anchor{anchor, anchorOn("a2", at(100, 0), 10, time.Wednesday)},
		candidates: []model.Candidate{
			linked,
			prospect("mon-top", model.TierHighest, at(4, 0)),
			prospect("wed-low", model.TierLow, at(103, 0)),
			prospect("between", model.TierMedium, at(50, 0)),
			prospect("lost", model.TierUnknown, nil),
		},
	}
	decisions := []model.Decision{{SuggestionID: SuggestionID(day(2), "a2"), Accepted: true}}
	e := newTestEngine(st)

	analysis, err := e.Analyze(context.Background(), "rep-1", monday)
	require.NoError(t, err)
	require.Len(t, analysis.Suggestions, 1)
	assert.Equal(t, decisions[0].SuggestionID, analysis.Suggestions[0].ID)

	first, err := e.Execute(context.Background(), "rep-1", monday, decisions)
	require.NoError(t, err)
	assertScheduleInvariants(t, first.Schedule, 6)
	assert.Positive(t, first.Writes.Written)
	written := st.writes

	second, err := e.Execute(context.Background(), "rep-1", monday, decisions)
	require.NoError(t, err)
	assertScheduleInvariants(t, second.Schedule, 6)

	assert.Zero(t, second.Writes.Written)
	assert.Equal(t, first.Writes.Written, second.Writes.Existing)
	assert.Equal(t, written, st.writes)
	assert.Zero(t, second.PlacedCount)

	// Anchor slots are untouched between runs.
	for i, d := range first.Schedule.Days {
		for j, s := range d.Slots {
			if s.Reason == model.ReasonAnchor {
				assert.Equal(t, s, second.Schedule.Days[i].Slots[j])
			}
		}
	}

	// The anchor's linked candidate is never placed as a prospect.
	for _, d := range second.Schedule.Days {
		for _, s := range d.Slots {
			if s.CandidateID == linked.ID {
				assert.Equal(t, model.ReasonAnchor, s.Reason)
			}
		}
	}
}

func TestExecute_ExistingVisitsReconciled(t *testing.T) {
	st := mondayScenario()
	st.visits = []model.Visit{
		{ID: "v1", RepID: "rep-1", CandidateID: "p3", Date: day(1)},
		{ID: "v2", RepID: "rep-1", CandidateID: "p3", Date: day(3)},
	}
	decisions := []model.Decision{{SuggestionID: SuggestionID(monday, "a1"), Accepted: true}}

	res, err := newTestEngine(st).Execute(context.Background(), "rep-1", monday, decisions)
	require.NoError(t, err)

	tue := slotsFor(res.Schedule, day(1))
	require.Len(t, tue, 1)
	assert.Equal(t, "p3", tue[0].CandidateID)
	assert.Equal(t, model.ReasonExisting, tue[0].Reason)
	assert.Empty(t, slotsFor(res.Schedule, day(3)))
	assert.Equal(t, 1, res.Days[1].Existing)

	mon := slotsFor(res.Schedule, monday)
	assert.Equal(t, "p8", mon[1].CandidateID)
	assert.Equal(t, 1, res.Writes.Existing)
}

func TestExecute_AnchorsTruncatedToCapacity(t *testing.T) {
	st := &fakeStore{
		anchors: []model.Anchor{
			anchorOn("a1", at(0, 0), 5, time.Monday),
			anchorOn("a2", at(1, 0), 5, time.Monday),
			anchorOn("a3", at(2, 0), 5, time.Monday),
		},
		candidates: []model.Candidate{prospect("c1", model.TierLow, at(1, 1))},
	}
	opts := testOptions()
	opts.SlotsPerDay = 2

	e := New(st, WithOptions(opts))
	res, err := e.Execute(context.Background(), "rep-1", monday, nil)
	require.NoError(t, err)
	assertScheduleInvariants(t, res.Schedule, 2)

	mon := slotsFor(res.Schedule, monday)
	require.Len(t, mon, 2)
	assert.Equal(t, "a1", mon[0].AnchorID)
	assert.Equal(t, "a2", mon[1].AnchorID)
	assert.Equal(t, 1, res.Trace.Count(StageAnchors, TraceWarn))

	// No proximity search runs for a day filled by anchors.
	a, err := e.Analyze(context.Background(), "rep-1", monday)
	require.NoError(t, err)
	assert.Empty(t, a.Suggestions)
}

func TestExecute_AnchorStoreDown(t *testing.T) {
	st := mondayScenario()
	st.anchorsErr = errors.New("timeout")

	res, err := newTestEngine(st).Execute(context.Background(), "rep-1", monday, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.PlacedCount)
	assert.Equal(t, 1, res.Trace.Count(StageAnchors, TraceWarn))
}

func TestExecute_GeocodesMissingCoordinates(t *testing.T) {
	st := mondayScenario()
	st.candidates = append(st.candidates,
		model.Candidate{ID: "addr-ok", RepID: "rep-1", PotentialTier: model.TierHighest, Address: model.Address{Street: "1 Main St"}},
		model.Candidate{ID: "addr-bad", RepID: "rep-1", PotentialTier: model.TierLow, Address: model.Address{Street: "2 Nowhere Rd"}},
	)
	geo := &fakeGeocoder{
		coords: map[string]model.Coordinates{"1 Main St": {Lat: 1, Lng: 1}},
		fail:   map[string]bool{"2 Nowhere Rd": true},
	}

	res, err := newTestEngine(st, WithGeocoder(geo)).Execute(context.Background(), "rep-1", monday, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, geo.calls)

	// The geocoded candidate is of the highest tier and within the anchor's
	// radius, so the pair is auto-accepted.
	date, slot, found := findSlot(res.Schedule, "addr-ok")
	require.True(t, found)
	assert.True(t, date.Equal(monday))
	assert.Equal(t, model.ReasonAnchorMatch, slot.Reason)

	_, slot, found = findSlot(res.Schedule, "addr-bad")
	require.True(t, found)
	assert.Equal(t, model.ReasonNoGeoSignal, slot.Reason)
	assert.Equal(t, 1, res.Trace.Count(StageGeocode, TraceWarn))
}

func TestAnalyze_GeocodeTimeoutIsTraced(t *testing.T) {
	st := mondayScenario()
	st.candidates = append(st.candidates,
		model.Candidate{ID: "addr-slow", RepID: "rep-1", PotentialTier: model.TierHigh, Address: model.Address{Street: "9 Slow Ln"}},
	)
	cascade := geocode.NewCascadeClient([]geocode.Provider{stalledProvider{}},
		geocode.WithAddressTimeout(10*time.Millisecond))

	res, err := newTestEngine(st, WithGeocoder(geocode.NewLocator(cascade))).
		Analyze(context.Background(), "rep-1", monday)
	require.NoError(t, err)
	require.Equal(t, 1, res.Trace.Count(StageGeocode, TraceWarn))

	var warn TraceEntry
	for _, e := range res.Trace.Entries {
		if e.Stage == StageGeocode && e.Level == TraceWarn {
			warn = e
		}
	}
	assert.Equal(t, "addr-slow", warn.Fields["candidate_id"])
	assert.Contains(t, warn.Fields["error"], "deadline exceeded")
}

func TestExecute_DiscardedAndOtherRepsIgnored(t *testing.T) {
	st := mondayScenario()
	gone := prospect("gone", model.TierHighest, at(1, 0))
	gone.PipelineStatus = model.PipelineDiscarded
	other := prospect("other", model.TierHighest, at(1, 0))
	other.RepID = "rep-2"
	st.candidates = append(st.candidates, gone, other)

	res, err := newTestEngine(st).Execute(context.Background(), "rep-1", monday,
		[]model.Decision{{SuggestionID: SuggestionID(monday, "a1"), Accepted: true}})
	require.NoError(t, err)
	for _, id := range []string{"gone", "other"} {
		_, _, found := findSlot(res.Schedule, id)
		assert.False(t, found, id)
	}
}

func TestExecute_WriteFailuresDoNotAbort(t *testing.T) {
	st := mondayScenario()
	st.failWrite = map[string]bool{"p3": true}

	res, err := newTestEngine(st).Execute(context.Background(), "rep-1", monday,
		[]model.Decision{{SuggestionID: SuggestionID(monday, "a1"), Accepted: true}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Writes.Failed)
	assert.Equal(t, 2, res.Writes.Written)
}

func TestOptionsFromConfig(t *testing.T) {
	o := OptionsFromConfig(
		config.PlannerConfig{SlotsPerDay: 8, WorkDays: 4, GravityKM: 30, TieBandKM: 1, SearchConcurrency: 3},
	)
	assert.Equal(t, 8, o.SlotsPerDay)
	assert.Equal(t, 4, o.WorkDays)
	assert.Equal(t, 30.0, o.GravityKM)
	assert.Equal(t, 1.0, o.TieBandKM)
	assert.Equal(t, 3, o.SearchConcurrency)
	assert.NotNil(t, o.Distance)
}
