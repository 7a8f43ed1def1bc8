package planner

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/visit-planner/internal/model"
)

// NearbyFinder returns the candidates of pool within radiusKM of origin,
// annotated with their distance. Order is not significant.
type NearbyFinder interface {
	Nearby(ctx context.Context, origin model.Coordinates, radiusKM float64, pool []model.Candidate) ([]model.NearbyCandidate, error)
}

// TravelTimer estimates driving minutes from origin to each destination.
// A nil entry means no estimate for that destination.
type TravelTimer interface {
	TravelMinutes(ctx context.Context, origin model.Coordinates, dests []model.Coordinates) ([]*float64, error)
}

// GreatCircleFinder is a NearbyFinder over an injected distance function.
type GreatCircleFinder struct {
	Distance DistanceFunc
}

// Nearby implements NearbyFinder.
func (f GreatCircleFinder) Nearby(_ context.Context, origin model.Coordinates, radiusKM float64, pool []model.Candidate) ([]model.NearbyCandidate, error) {
	dist := f.Distance
	if dist == nil {
		dist = HaversineKM
	}

	var out []model.NearbyCandidate
	for _, c := range pool {
		if !c.HasLocation() {
			continue
		}
		d := dist(origin, *c.Location)
		if d <= radiusKM {
			out = append(out, model.NearbyCandidate{Candidate: c, DistanceKM: d})
		}
	}
	return out, nil
}

// ProximitySearch finds the prospects around an anchor.
type ProximitySearch struct {
	finder      NearbyFinder
	travel      TravelTimer
	concurrency int
}

// NewProximitySearch creates a ProximitySearch. travel may be nil.
func NewProximitySearch(finder NearbyFinder, travel TravelTimer, concurrency int) *ProximitySearch {
	if finder == nil {
		finder = GreatCircleFinder{}
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	return &ProximitySearch{finder: finder, travel: travel, concurrency: concurrency}
}

// Search returns pool candidates within the anchor's radius, nearest first,
// capped at limit. The anchor's own candidate is never returned. An anchor
// without coordinates yields an empty result.
func (p *ProximitySearch) Search(ctx context.Context, anchor model.Anchor, pool []model.Candidate, limit int) ([]model.NearbyCandidate, error) {
	if anchor.Location == nil || limit <= 0 {
		return nil, nil
	}

	eligible := make([]model.Candidate, 0, len(pool))
	for _, c := range pool {
		if c.ID == anchor.CandidateID || !c.HasLocation() {
			continue
		}
		eligible = append(eligible, c)
	}

	hits, err := p.finder.Nearby(ctx, *anchor.Location, anchor.SearchRadiusKM, eligible)
	if err != nil {
		return nil, eris.Wrapf(err, "proximity: nearby for anchor %s", anchor.ID)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].DistanceKM != hits[j].DistanceKM {
			return hits[i].DistanceKM < hits[j].DistanceKM
		}
		return hits[i].Candidate.ID < hits[j].Candidate.ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	if p.travel != nil && len(hits) > 0 {
		dests := make([]model.Coordinates, len(hits))
		for i, h := range hits {
			dests[i] = *h.Candidate.Location
		}
		// Travel time is advisory; a failed estimate leaves the hits as they are.
		if mins, terr := p.travel.TravelMinutes(ctx, *anchor.Location, dests); terr == nil && len(mins) == len(hits) {
			for i := range hits {
				hits[i].TravelMinutes = mins[i]
			}
		}
	}

	return hits, nil
}

// searchJob is one anchor/day proximity lookup.
type searchJob struct {
	DateKey string
	Anchor  model.Anchor
	Limit   int
}

// searchResult holds the outcome of a searchJob. Err is set when the finder
// failed; the hits are then empty.
type searchResult struct {
	Hits []model.NearbyCandidate
	Err  error
}

// SearchAll runs jobs with bounded concurrency. Results are index-aligned
// with jobs; a failed lookup degrades to an empty result instead of failing
// the batch.
func (p *ProximitySearch) SearchAll(ctx context.Context, jobs []searchJob, pool []model.Candidate) []searchResult {
	results := make([]searchResult, len(jobs))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.concurrency)

	for i, job := range jobs {
		eg.Go(func() error {
			hits, err := p.Search(gCtx, job.Anchor, pool, job.Limit)
			results[i] = searchResult{Hits: hits, Err: err}
			return nil
		})
	}

	_ = eg.Wait()
	return results
}
