package planner

import (
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/visit-planner/internal/model"
)

// PairState is the confirmation state of one anchor/day pair.
type PairState string

const (
	StateUnevaluated      PairState = "UNEVALUATED"
	StateAutoAccepted     PairState = "AUTO_ACCEPTED"
	StateAwaitingDecision PairState = "AWAITING_DECISION"
	StateResolved         PairState = "RESOLVED"
)

// suggestionNamespace scopes the name-based UUIDs used as Suggestion ids.
var suggestionNamespace = uuid.MustParse("6f1c2a4e-8d3b-5e7f-9a10-2b4c6d8e0f12")

// SuggestionID derives the Suggestion id for an anchor on a date. It depends
// on nothing else, so an analyze pass and a later execute pass over the same
// week agree on it.
func SuggestionID(date time.Time, anchorID string) string {
	name := date.Format(model.DateLayout) + "|" + anchorID
	return uuid.NewSHA1(suggestionNamespace, []byte(name)).String()
}

// Evaluation is the broker's verdict for one anchor/day pair.
type Evaluation struct {
	Date       time.Time
	Anchor     model.Anchor
	State      PairState
	Suggestion *model.Suggestion
	// Accepted holds the prospects that flow into the anchor's day bucket.
	Accepted []model.NearbyCandidate
	// Rejected holds candidate ids a decision explicitly turned down.
	Rejected []string
}

// Pending reports whether the pair still waits for a human decision.
func (e Evaluation) Pending() bool {
	return e.State == StateAwaitingDecision
}

// Broker decides, per anchor/day, whether nearby prospects can be accepted
// automatically or need confirmation, and applies previously recorded
// decisions.
type Broker struct {
	decisions map[string]model.Decision
}

// NewBroker indexes decisions by suggestion id. Later duplicates win.
func NewBroker(decisions []model.Decision) *Broker {
	idx := make(map[string]model.Decision, len(decisions))
	for _, d := range decisions {
		idx[d.SuggestionID] = d
	}
	return &Broker{decisions: idx}
}

// Evaluate applies the confirmation rules to a proximity result.
func (b *Broker) Evaluate(date time.Time, anchor model.Anchor, nearby []model.NearbyCandidate) Evaluation {
	ev := Evaluation{Date: date, Anchor: anchor, State: StateUnevaluated}
	id := SuggestionID(date, anchor.ID)

	if len(nearby) == 0 {
		ev.Suggestion = &model.Suggestion{ID: id, Kind: model.SuggestionNoNearby, Date: date, Anchor: anchor}
		if _, ok := b.decisions[id]; ok {
			ev.State = StateResolved
		} else {
			ev.State = StateAwaitingDecision
		}
		return ev
	}

	for _, n := range nearby {
		if n.Candidate.PotentialTier == model.TierHighest {
			ev.State = StateAutoAccepted
			ev.Accepted = nearby
			return ev
		}
	}

	ev.Suggestion = &model.Suggestion{
		ID:         id,
		Kind:       model.SuggestionLowPotential,
		Date:       date,
		Anchor:     anchor,
		Candidates: nearby,
	}

	dec, ok := b.decisions[id]
	if !ok {
		ev.State = StateAwaitingDecision
		return ev
	}

	ev.State = StateResolved
	switch {
	case !dec.Accepted:
		for _, n := range nearby {
			ev.Rejected = append(ev.Rejected, n.Candidate.ID)
		}
	case len(dec.CandidateIDs) > 0:
		keep := make(map[string]bool, len(dec.CandidateIDs))
		for _, cid := range dec.CandidateIDs {
			keep[cid] = true
		}
		for _, n := range nearby {
			if keep[n.Candidate.ID] {
				ev.Accepted = append(ev.Accepted, n)
			} else {
				ev.Rejected = append(ev.Rejected, n.Candidate.ID)
			}
		}
	default:
		ev.Accepted = nearby
	}
	return ev
}
