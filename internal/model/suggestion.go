package model

import (
	"errors"
	"time"
)

// SuggestionKind classifies why an anchor/day pair needs a human decision.
type SuggestionKind string

const (
	// SuggestionNoNearby means no prospect lies within the anchor's radius.
	// It is informational: acknowledging it never places anyone.
	SuggestionNoNearby SuggestionKind = "NO_NEARBY"
	// SuggestionLowPotential means nearby prospects exist but none is of the
	// highest tier.
	SuggestionLowPotential SuggestionKind = "LOW_POTENTIAL"
)

// Suggestion asks the caller to confirm the prospects considered for an
// anchor on a given day.
type Suggestion struct {
	ID         string            `json:"id" yaml:"id"`
	Kind       SuggestionKind    `json:"kind" yaml:"kind"`
	Date       time.Time         `json:"date" yaml:"date"`
	Anchor     Anchor            `json:"anchor" yaml:"-"`
	Candidates []NearbyCandidate `json:"candidates" yaml:"-"`
}

// Decision is a human response to a Suggestion. An accepted decision with no
// CandidateIDs keeps every suggested candidate; rejecting them all is
// Accepted=false.
type Decision struct {
	SuggestionID string   `json:"suggestion_id" yaml:"suggestion_id"`
	Accepted     bool     `json:"accepted" yaml:"accepted"`
	CandidateIDs []string `json:"candidate_ids,omitempty" yaml:"candidate_ids,omitempty"`
}

// Validate checks a decision decoded from a client. An explicitly empty
// candidate_ids list on an accepted decision is refused, because omitting
// the list means "all" and the two would otherwise be confused.
func (d Decision) Validate() error {
	if d.SuggestionID == "" {
		return errors.New("has no suggestion_id")
	}
	if d.Accepted && d.CandidateIDs != nil && len(d.CandidateIDs) == 0 {
		return errors.New("accepts an empty candidate_ids list; set accepted to false to reject")
	}
	return nil
}
