package planner

import (
	"math"
	"strings"

	"github.com/sells-group/visit-planner/internal/config"
	"github.com/sells-group/visit-planner/internal/model"
)

// ScoreConfig weights the composite candidate score.
type ScoreConfig struct {
	TierPoints      map[model.PotentialTier]float64
	EngagedPenalty  float64
	EngagedStatuses map[model.PipelineStatus]bool
}

// DefaultScoreConfig returns the stock tier points and engaged penalty.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		TierPoints: map[model.PotentialTier]float64{
			model.TierHighest: 100,
			model.TierHigh:    75,
			model.TierMedium:  50,
			model.TierLow:     25,
			model.TierUnknown: 10,
		},
		EngagedPenalty: 0.7,
		EngagedStatuses: map[model.PipelineStatus]bool{
			model.PipelineContacted:   true,
			model.PipelineNegotiating: true,
		},
	}
}

// ScoreConfigFrom builds a ScoreConfig from planner settings, falling back to
// the defaults for anything left unset.
func ScoreConfigFrom(c config.PlannerConfig) ScoreConfig {
	sc := DefaultScoreConfig()
	for name, pts := range c.TierPoints {
		tier := model.PotentialTier(strings.ToLower(name))
		if _, ok := sc.TierPoints[tier]; ok {
			sc.TierPoints[tier] = pts
		}
	}
	if c.EngagedPenalty > 0 {
		sc.EngagedPenalty = c.EngagedPenalty
	}
	if len(c.EngagedStatuses) > 0 {
		sc.EngagedStatuses = make(map[model.PipelineStatus]bool, len(c.EngagedStatuses))
		for _, s := range c.EngagedStatuses {
			sc.EngagedStatuses[model.PipelineStatus(strings.ToLower(s))] = true
		}
	}
	return sc
}

// Scorer computes a candidate's scheduling priority. Higher scores are
// scheduled first.
type Scorer struct {
	cfg ScoreConfig
}

// NewScorer creates a Scorer.
func NewScorer(cfg ScoreConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score returns tier points + rating×10 + min(reviews,100)×0.5 +
// min(volume/100,50), multiplied by the engaged penalty for prospects already
// in conversation. Missing or negative numbers count as zero.
func (s *Scorer) Score(c model.Candidate) float64 {
	tierPts, ok := s.cfg.TierPoints[c.PotentialTier]
	if !ok {
		tierPts = s.cfg.TierPoints[model.TierUnknown]
	}

	rating := math.Max(0, c.Rating)
	reviews := math.Min(math.Max(0, float64(c.ReviewCount)), 100)
	volume := math.Min(math.Max(0, c.ProjectedVolume)/100, 50)

	total := tierPts + rating*10 + reviews*0.5 + volume

	if s.cfg.EngagedStatuses[c.PipelineStatus] {
		total *= s.cfg.EngagedPenalty
	}
	return total
}

// ScoredCandidate pairs a candidate with its score.
type ScoredCandidate struct {
	Candidate model.Candidate
	Score     float64
}
