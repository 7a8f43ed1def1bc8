// Package planner fills a sales rep's weekly visit calendar from recurring
// anchor clients and scored prospects.
//
// A run is a pure batch over a snapshot read at the start: anchors are
// resolved for the week, nearby prospects are looked up around each anchor,
// low-confidence anchor/day pairs are surfaced as Suggestions, and the
// remaining prospects are clustered around each day's anchor centroid,
// allocated round robin and finally placed by the Repêchage fallback. The
// analyze/execute protocol is the only state carried between calls, and the
// caller carries it.
package planner

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/visit-planner/internal/config"
	"github.com/sells-group/visit-planner/internal/model"
)

// CandidateSource lists a rep's schedulable prospects.
type CandidateSource interface {
	ListCandidates(ctx context.Context, repID string) ([]model.Candidate, error)
}

// Geocoder locates addresses in one batch. Outcomes are in input order and
// a failed lookup never fails the batch.
type Geocoder interface {
	GeocodeAll(ctx context.Context, addrs []model.Address) []model.Geocoded
}

// Store is the persistence the engine reads from and writes to.
type Store interface {
	CandidateSource
	AnchorSource
	VisitStore
}

// Options tunes a planner run.
type Options struct {
	SlotsPerDay        int
	WorkDays           int
	GravityKM          float64
	TieBandKM          float64
	SearchConcurrency int
	Score             ScoreConfig
	Distance          DistanceFunc
}

// DefaultOptions returns six slots a day, Monday to Friday, a 20 km gravity
// radius and a 2 km distance tie band.
func DefaultOptions() Options {
	return Options{
		SlotsPerDay:       6,
		WorkDays:          5,
		GravityKM:         20,
		TieBandKM:         2,
		SearchConcurrency: 10,
		Score:             DefaultScoreConfig(),
		Distance:          HaversineKM,
	}
}

// OptionsFromConfig maps loaded configuration onto Options.
func OptionsFromConfig(p config.PlannerConfig) Options {
	o := DefaultOptions()
	if p.SlotsPerDay > 0 {
		o.SlotsPerDay = p.SlotsPerDay
	}
	if p.WorkDays > 0 {
		o.WorkDays = p.WorkDays
	}
	if p.GravityKM > 0 {
		o.GravityKM = p.GravityKM
	}
	if p.TieBandKM >= 0 {
		o.TieBandKM = p.TieBandKM
	}
	if p.SearchConcurrency > 0 {
		o.SearchConcurrency = p.SearchConcurrency
	}
	o.Score = ScoreConfigFrom(p)
	return o
}

// Engine runs the analyze and execute passes.
type Engine struct {
	store    Store
	geocoder Geocoder
	finder   NearbyFinder
	travel   TravelTimer
	opts     Options
	search   *ProximitySearch
}

// Option configures the Engine.
type Option func(*Engine)

// WithGeocoder locates candidates imported without coordinates.
func WithGeocoder(g Geocoder) Option {
	return func(e *Engine) {
		e.geocoder = g
	}
}

// WithNearbyFinder replaces the great-circle proximity lookup.
func WithNearbyFinder(f NearbyFinder) Option {
	return func(e *Engine) {
		e.finder = f
	}
}

// WithTravelTimer annotates proximity hits with driving minutes.
func WithTravelTimer(t TravelTimer) Option {
	return func(e *Engine) {
		e.travel = t
	}
}

// WithOptions overrides the run options.
func WithOptions(o Options) Option {
	return func(e *Engine) {
		e.opts = o
	}
}

// New creates an Engine over the given store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, opts: DefaultOptions()}
	for _, opt := range opts {
		opt(e)
	}
	if e.opts.Distance == nil {
		e.opts.Distance = HaversineKM
	}
	if e.finder == nil {
		e.finder = GreatCircleFinder{Distance: e.opts.Distance}
	}
	e.search = NewProximitySearch(e.finder, e.travel, e.opts.SearchConcurrency)
	return e
}

// AnalyzeResult lists the Suggestions that still need a Decision. An empty
// list means execute can run without any.
type AnalyzeResult struct {
	RepID       string             `json:"rep_id"`
	WeekStart   time.Time          `json:"week_start"`
	Suggestions []model.Suggestion `json:"suggestions"`
	Trace       *Trace             `json:"trace"`
}

// DaySummary reports how one day was filled.
type DaySummary struct {
	Date     time.Time `json:"date"`
	Capacity int       `json:"capacity"`
	Anchors  int       `json:"anchors"`
	Existing int       `json:"existing"`
	Placed   int       `json:"placed"`
	Open     int       `json:"open"`
	Locked   bool      `json:"locked"`
}

// ExecuteResult is the outcome of an execute pass.
type ExecuteResult struct {
	RepID         string             `json:"rep_id"`
	WeekStart     time.Time          `json:"week_start"`
	PlacedCount   int                `json:"placed_count"`
	UnplacedCount int                `json:"unplaced_count"`
	Days          []DaySummary       `json:"days"`
	Writes        WriteStats         `json:"writes"`
	Schedule      model.WeekSchedule `json:"schedule"`
	Trace         *Trace             `json:"trace"`
}

// snapshot is the immutable input of a run.
type snapshot struct {
	repID      string
	week       Week
	candidates []model.Candidate
	byID       map[string]model.Candidate
	anchors    map[string][]model.Anchor
	existing   []model.Visit
}

// Analyze evaluates every anchor/day pair of the week and returns the
// Suggestions not covered by decisions. Nothing is persisted.
func (e *Engine) Analyze(ctx context.Context, repID string, weekStart time.Time, decisions ...model.Decision) (*AnalyzeResult, error) {
	trace := &Trace{}
	snap, err := e.loadSnapshot(ctx, repID, weekStart, trace)
	if err != nil {
		return nil, err
	}
	wp := e.buildPlan(snap, trace)
	evals := e.evaluate(ctx, snap, wp, NewBroker(decisions), trace)

	res := &AnalyzeResult{
		RepID:       repID,
		WeekStart:   snap.week.Start,
		Suggestions: []model.Suggestion{},
		Trace:       trace,
	}
	for _, ev := range evals {
		if ev.Pending() {
			res.Suggestions = append(res.Suggestions, *ev.Suggestion)
		}
	}

	zap.L().Info("planner: analyze complete",
		zap.String("rep_id", repID),
		zap.Time("week_start", snap.week.Start),
		zap.Int("suggestions", len(res.Suggestions)),
		zap.Int("geocode_failures", trace.Count(StageGeocode, TraceWarn)),
	)
	return res, nil
}

// Execute runs the full pipeline with the given decisions and persists the
// resulting placements. Pairs whose Suggestion has no decision keep their
// day's discretionary slots empty.
func (e *Engine) Execute(ctx context.Context, repID string, weekStart time.Time, decisions []model.Decision) (*ExecuteResult, error) {
	trace := &Trace{}
	snap, err := e.loadSnapshot(ctx, repID, weekStart, trace)
	if err != nil {
		return nil, err
	}
	wp := e.buildPlan(snap, trace)
	evals := e.evaluate(ctx, snap, wp, NewBroker(decisions), trace)

	accepted := make(map[string]bool)
	withheld := make(map[string]bool)
	for _, ev := range evals {
		for _, n := range ev.Accepted {
			accepted[n.Candidate.ID] = true
		}
		for _, id := range ev.Rejected {
			withheld[id] = true
		}
		if !ev.Pending() {
			continue
		}
		day := wp.byKey[ev.Date.Format(model.DateLayout)]
		day.locked = true
		for _, n := range ev.Suggestion.Candidates {
			withheld[n.Candidate.ID] = true
		}
		trace.Warn(StageConfirm, "suggestion without decision; discretionary slots left empty",
			"suggestion_id", ev.Suggestion.ID,
			"kind", string(ev.Suggestion.Kind),
			"date", day.key,
			"anchor_id", ev.Anchor.ID,
		)
	}
	for id := range accepted {
		delete(withheld, id)
	}

	scorer := NewScorer(e.opts.Score)
	scores := make(map[string]float64, len(snap.candidates))
	pool := make([]ScoredCandidate, 0, len(snap.candidates))
	for _, c := range snap.candidates {
		if wp.used[c.ID] || withheld[c.ID] {
			continue
		}
		sc := ScoredCandidate{Candidate: c, Score: scorer.Score(c)}
		scores[c.ID] = sc.Score
		pool = append(pool, sc)
	}
	sortByScore(pool)

	var approved []Approval
	for _, ev := range evals {
		key := ev.Date.Format(model.DateLayout)
		for _, n := range ev.Accepted {
			approved = append(approved, Approval{
				DateKey:    key,
				Candidate:  n.Candidate,
				Score:      scores[n.Candidate.ID],
				DistanceKM: n.DistanceKM,
			})
		}
	}

	closed := make(map[string]bool)
	dateKeys := make([]string, 0, len(wp.days))
	for _, day := range wp.days {
		dateKeys = append(dateKeys, day.key)
		if day.locked {
			closed[day.key] = true
		}
	}

	centroids := ComputeCentroids(snap.anchors)
	clusterer := &Clusterer{GravityKM: e.opts.GravityKM, Distance: e.opts.Distance}
	clusters := clusterer.Cluster(ClusterInput{
		DateKeys:  dateKeys,
		Centroids: centroids,
		Approved:  approved,
		Pool:      pool,
		Closed:    closed,
	})
	bucketed := 0
	for _, b := range clusters.Buckets {
		bucketed += len(b)
	}
	trace.Info(StageGravity, "clustered candidates",
		"centroids", len(centroids),
		"bucketed", bucketed,
		"deferred", len(clusters.Deferred),
	)

	alloc := &Allocator{TieBandKM: e.opts.TieBandKM, Distance: e.opts.Distance}
	placed, spill := alloc.Distribute(wp, clusters.Buckets)
	trace.Info(StageAllocate, "distributed buckets", "placed", placed, "spillover", len(spill))

	fallback := make([]ScoredCandidate, 0, len(spill)+len(clusters.Deferred))
	for _, s := range spill {
		fallback = append(fallback, ScoredCandidate{Candidate: s.Candidate, Score: s.Score})
	}
	fallback = append(fallback, clusters.Deferred...)
	rep := alloc.Repechage(wp, centroids, fallback)
	trace.Info(StageRepechage, "fallback placement",
		"overflow", rep.Overflow,
		"no_geographic_signal", rep.NoGeoSignal,
		"unplaced", len(rep.Unplaced),
	)

	unplaced := 0
	for _, sc := range pool {
		if !wp.used[sc.Candidate.ID] {
			unplaced++
		}
	}

	schedule := model.WeekSchedule{RepID: repID, WeekStart: snap.week.Start}
	summaries := make([]DaySummary, 0, len(wp.days))
	for _, day := range wp.days {
		schedule.Days = append(schedule.Days, day.toDay())
		summaries = append(summaries, DaySummary{
			Date:     day.date,
			Capacity: len(day.slots),
			Anchors:  day.anchors,
			Existing: day.existing,
			Placed:   day.placed,
			Open:     day.open(),
			Locked:   day.locked,
		})
	}

	writes, err := NewScheduleWriter(e.store).Write(ctx, schedule, trace)
	if err != nil {
		return nil, err
	}

	res := &ExecuteResult{
		RepID:         repID,
		WeekStart:     snap.week.Start,
		PlacedCount:   placed + rep.Overflow + rep.NoGeoSignal,
		UnplacedCount: unplaced,
		Days:          summaries,
		Writes:        writes,
		Schedule:      schedule,
		Trace:         trace,
	}

	zap.L().Info("planner: execute complete",
		zap.String("rep_id", repID),
		zap.Time("week_start", snap.week.Start),
		zap.Int("placed", res.PlacedCount),
		zap.Int("unplaced", res.UnplacedCount),
		zap.Int("written", writes.Written),
		zap.Int("existing", writes.Existing),
		zap.Int("failed", writes.Failed),
		zap.Int("geocode_failures", trace.Count(StageGeocode, TraceWarn)),
	)
	return res, nil
}

// loadSnapshot reads candidates, anchors and persisted visits for the week
// and geocodes candidates that lack coordinates.
func (e *Engine) loadSnapshot(ctx context.Context, repID string, weekStart time.Time, trace *Trace) (*snapshot, error) {
	week := NewWeek(weekStart, e.opts.WorkDays)

	all, err := e.store.ListCandidates(ctx, repID)
	if err != nil {
		return nil, eris.Wrapf(err, "planner: list candidates for rep %s", repID)
	}
	cands := make([]model.Candidate, 0, len(all))
	for _, c := range all {
		if c.PipelineStatus == model.PipelineDiscarded {
			continue
		}
		cands = append(cands, c)
	}

	existing, err := e.store.ListExistingVisits(ctx, repID, week.Start, week.End())
	if err != nil {
		return nil, eris.Wrapf(err, "planner: list existing visits for rep %s", repID)
	}

	cands = e.geocodeMissing(ctx, cands, trace)
	byID := make(map[string]model.Candidate, len(cands))
	for _, c := range cands {
		byID[c.ID] = c
	}

	anchors := NewAnchorResolver(e.store).Resolve(ctx, repID, week, trace)
	for key, list := range anchors {
		for i, a := range list {
			if a.Location == nil {
				if linked, ok := byID[a.CandidateID]; ok && linked.Location != nil {
					loc := *linked.Location
					a.Location = &loc
					list[i] = a
				}
			}
			if a.Location == nil {
				trace.Warn(StageAnchors, "anchor has no coordinates", "anchor_id", a.ID, "date", key)
			}
		}
	}

	trace.Info(StageSnapshot, "snapshot loaded",
		"week_start", week.Start.Format(model.DateLayout),
		"candidates", len(cands),
		"existing_visits", len(existing),
	)

	return &snapshot{
		repID:      repID,
		week:       week,
		candidates: cands,
		byID:       byID,
		anchors:    anchors,
		existing:   existing,
	}, nil
}

// geocodeMissing returns a copy of cands where candidates without
// coordinates but with an address have been geocoded. Failures and
// timeouts leave the candidate without coordinates and are traced.
func (e *Engine) geocodeMissing(ctx context.Context, cands []model.Candidate, trace *Trace) []model.Candidate {
	out := make([]model.Candidate, len(cands))
	copy(out, cands)
	if e.geocoder == nil {
		return out
	}

	var todo []int
	var addrs []model.Address
	for i, c := range out {
		if !c.HasLocation() && !c.Address.IsZero() {
			todo = append(todo, i)
			addrs = append(addrs, c.Address)
		}
	}
	if len(todo) == 0 {
		return out
	}

	outcomes := e.geocoder.GeocodeAll(ctx, addrs)
	located := 0
	for n, i := range todo {
		if n >= len(outcomes) {
			break
		}
		switch g := outcomes[n]; {
		case g.Err != nil:
			trace.Warn(StageGeocode, "geocode failed; candidate has no coordinates",
				"candidate_id", out[i].ID, "error", g.Err.Error())
		case g.Location != nil:
			out[i] = out[i].WithLocation(g.Location)
			located++
		}
	}
	trace.Info(StageGeocode, "geocoded candidates", "attempted", len(todo), "located", located)
	return out
}

// buildPlan lays anchors into the first slots of their days and reconciles
// visits already persisted for the week.
func (e *Engine) buildPlan(snap *snapshot, trace *Trace) *weekPlan {
	wp := newWeekPlan(snap.week, e.opts.SlotsPerDay)

	anchorCands := make(map[string]map[string]bool, len(wp.days))
	for _, day := range wp.days {
		anchors := snap.anchors[day.key]
		if len(anchors) > len(day.slots) {
			trace.Warn(StageAnchors, "more anchors than slots; extra anchors dropped",
				"date", day.key, "anchors", len(anchors), "capacity", len(day.slots))
			anchors = anchors[:len(day.slots)]
			snap.anchors[day.key] = anchors
		}
		anchorCands[day.key] = make(map[string]bool, len(anchors))
		for _, a := range anchors {
			day.fill(model.Slot{
				AnchorID:    a.ID,
				CandidateID: a.CandidateID,
				Name:        a.Name,
				Reason:      model.ReasonAnchor,
			})
			day.anchors++
			if a.CandidateID != "" {
				anchorCands[day.key][a.CandidateID] = true
				wp.used[a.CandidateID] = true
			}
		}
	}

	visits := make([]model.Visit, len(snap.existing))
	copy(visits, snap.existing)
	sort.SliceStable(visits, func(i, j int) bool {
		if !visits[i].Date.Equal(visits[j].Date) {
			return visits[i].Date.Before(visits[j].Date)
		}
		if !visits[i].CreatedAt.Equal(visits[j].CreatedAt) {
			return visits[i].CreatedAt.Before(visits[j].CreatedAt)
		}
		return visits[i].ID < visits[j].ID
	})

	seen := make(map[string]bool, len(visits))
	for _, v := range visits {
		key := v.Date.UTC().Format(model.DateLayout)
		day := wp.byKey[key]
		if day == nil || anchorCands[key][v.CandidateID] {
			continue
		}
		if seen[v.CandidateID] {
			trace.Warn(StageSnapshot, "candidate already visited this week; duplicate visit ignored",
				"candidate_id", v.CandidateID, "date", key)
			continue
		}
		seen[v.CandidateID] = true
		if !day.fill(model.Slot{
			CandidateID: v.CandidateID,
			Name:        snap.byID[v.CandidateID].Name,
			Reason:      model.ReasonExisting,
		}) {
			trace.Warn(StageSnapshot, "persisted visit exceeds day capacity",
				"candidate_id", v.CandidateID, "date", key)
			continue
		}
		day.existing++
		wp.used[v.CandidateID] = true
	}

	return wp
}

// evaluate runs ProximitySearch for every anchor/day pair and feeds the
// results to the broker, in date then anchor order.
func (e *Engine) evaluate(ctx context.Context, snap *snapshot, wp *weekPlan, broker *Broker, trace *Trace) []Evaluation {
	pool := make([]model.Candidate, 0, len(snap.candidates))
	for _, c := range snap.candidates {
		if !wp.used[c.ID] {
			pool = append(pool, c)
		}
	}

	var jobs []searchJob
	for _, day := range wp.days {
		anchors := snap.anchors[day.key]
		if len(anchors) == 0 {
			continue
		}
		limit := len(day.slots) - day.anchors
		if limit <= 0 {
			trace.Info(StageProximity, "day filled by anchors; no prospect search", "date", day.key)
			continue
		}
		for _, a := range anchors {
			jobs = append(jobs, searchJob{DateKey: day.key, Anchor: a, Limit: limit})
		}
	}

	results := e.search.SearchAll(ctx, jobs, pool)

	evals := make([]Evaluation, 0, len(jobs))
	for i, job := range jobs {
		r := results[i]
		if r.Err != nil {
			trace.Warn(StageProximity, "nearby lookup failed; treated as no nearby prospects",
				"anchor_id", job.Anchor.ID, "date", job.DateKey, "error", r.Err.Error())
		}
		day := wp.byKey[job.DateKey]
		ev := broker.Evaluate(day.date, job.Anchor, r.Hits)
		trace.Info(StageConfirm, "pair evaluated",
			"date", job.DateKey,
			"anchor_id", job.Anchor.ID,
			"state", string(ev.State),
			"nearby", len(r.Hits),
		)
		evals = append(evals, ev)
	}
	return evals
}
