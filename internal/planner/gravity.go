package planner

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/visit-planner/internal/model"
)

// BucketEntry is a candidate attracted to a day, waiting for a slot.
type BucketEntry struct {
	Candidate  model.Candidate
	Score      float64
	DistanceKM float64
	Reason     model.PlacementReason
}

// Approval is a prospect confirmed for an anchor's day.
type Approval struct {
	DateKey    string
	Candidate  model.Candidate
	Score      float64
	DistanceKM float64
}

// ComputeCentroids returns, per date key, the mean coordinate of that day's
// anchors that carry coordinates. Days without any located anchor have no
// centroid.
func ComputeCentroids(anchorsByDate map[string][]model.Anchor) map[string]model.Coordinates {
	out := make(map[string]model.Coordinates, len(anchorsByDate))
	for key, anchors := range anchorsByDate {
		flat := make([]float64, 0, 2*len(anchors))
		for _, a := range anchors {
			if a.Location == nil {
				continue
			}
			flat = append(flat, a.Location.Lng, a.Location.Lat)
		}
		if len(flat) == 0 {
			continue
		}
		c := xy.MultiPointCentroid(geom.NewMultiPointFlat(geom.XY, flat))
		out[key] = model.Coordinates{Lat: c.Y(), Lng: c.X()}
	}
	return out
}

// Clusterer attracts candidates to the day whose anchor centroid is nearest.
type Clusterer struct {
	GravityKM float64
	Distance  DistanceFunc
}

// ClusterInput is the immutable input of one clustering pass.
type ClusterInput struct {
	// DateKeys lists the week's days in order.
	DateKeys  []string
	Centroids map[string]model.Coordinates
	// Approved is processed in order; the first approval of a candidate wins.
	Approved []Approval
	// Pool holds every other unplaced, scored candidate.
	Pool []ScoredCandidate
	// Closed days receive nothing.
	Closed map[string]bool
}

// ClusterResult holds per-day buckets and the candidates deferred to
// Repêchage.
type ClusterResult struct {
	Buckets  map[string][]BucketEntry
	Deferred []ScoredCandidate
}

// Cluster builds the day buckets. Confirmed anchor matches go to their day
// unconditionally. Other located candidates go to the nearest centroid of a
// day without an anchor bucket if it lies strictly within GravityKM;
// everything else is deferred.
func (c *Clusterer) Cluster(in ClusterInput) ClusterResult {
	dist := c.Distance
	if dist == nil {
		dist = HaversineKM
	}

	res := ClusterResult{Buckets: make(map[string][]BucketEntry)}
	assigned := make(map[string]bool)

	for _, ap := range in.Approved {
		if assigned[ap.Candidate.ID] || in.Closed[ap.DateKey] {
			continue
		}
		d := ap.DistanceKM
		if centroid, ok := in.Centroids[ap.DateKey]; ok && ap.Candidate.HasLocation() {
			d = dist(centroid, *ap.Candidate.Location)
		}
		res.Buckets[ap.DateKey] = append(res.Buckets[ap.DateKey], BucketEntry{
			Candidate:  ap.Candidate,
			Score:      ap.Score,
			DistanceKM: d,
			Reason:     model.ReasonAnchorMatch,
		})
		assigned[ap.Candidate.ID] = true
	}

	var targets []string
	for _, key := range in.DateKeys {
		if _, ok := in.Centroids[key]; !ok {
			continue
		}
		if in.Closed[key] || len(res.Buckets[key]) > 0 {
			continue
		}
		targets = append(targets, key)
	}

	for _, sc := range in.Pool {
		if assigned[sc.Candidate.ID] {
			continue
		}
		if !sc.Candidate.HasLocation() {
			res.Deferred = append(res.Deferred, sc)
			continue
		}

		best, bestDist := "", 0.0
		for _, key := range targets {
			d := dist(in.Centroids[key], *sc.Candidate.Location)
			if best == "" || d < bestDist {
				best, bestDist = key, d
			}
		}
		if best == "" || bestDist >= c.GravityKM {
			res.Deferred = append(res.Deferred, sc)
			continue
		}

		res.Buckets[best] = append(res.Buckets[best], BucketEntry{
			Candidate:  sc.Candidate,
			Score:      sc.Score,
			DistanceKM: bestDist,
			Reason:     model.ReasonGravity,
		})
		assigned[sc.Candidate.ID] = true
	}

	return res
}
