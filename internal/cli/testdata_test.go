package cli

import (
	"time"

	"github.com/sells-group/visit-planner/internal/model"
)

var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func lowPotential() model.Suggestion {
	mins := 12.0
	return model.Suggestion{
		ID:   "s-low",
		Kind: model.SuggestionLowPotential,
		Date: monday,
		Anchor: model.Anchor{
			ID: "a1", Name: "Harbor Clinic", SearchRadiusKM: 10,
		},
		Candidates: []model.NearbyCandidate{
			{Candidate: model.Candidate{ID: "c1", Name: "Bayside Dental", PotentialTier: model.TierHigh}, DistanceKM: 1.2, TravelMinutes: &mins},
			{Candidate: model.Candidate{ID: "c2", Name: "Pier Vet", PotentialTier: model.TierMedium}, DistanceKM: 3.4},
			{Candidate: model.Candidate{ID: "c3", PotentialTier: model.TierLow}, DistanceKM: 7.9},
		},
	}
}

func noNearby() model.Suggestion {
	return model.Suggestion{
		ID:     "s-none",
		Kind:   model.SuggestionNoNearby,
		Date:   monday.AddDate(0, 0, 2),
		Anchor: model.Anchor{ID: "a2", SearchRadiusKM: 5},
	}
}
