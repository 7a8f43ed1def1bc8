package model

import (
	"strings"
)

// PotentialTier ranks a prospect's sales potential.
type PotentialTier string

const (
	TierHighest PotentialTier = "highest"
	TierHigh    PotentialTier = "high"
	TierMedium  PotentialTier = "medium"
	TierLow     PotentialTier = "low"
	TierUnknown PotentialTier = "unknown"
)

// ParseTier maps free-form sheet/database values onto a PotentialTier.
func ParseTier(s string) PotentialTier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "highest", "a+", "top", "very_high", "very high":
		return TierHighest
	case "high", "a":
		return TierHigh
	case "medium", "b":
		return TierMedium
	case "low", "c":
		return TierLow
	default:
		return TierUnknown
	}
}

// PipelineStatus is a prospect's position in the sales pipeline.
type PipelineStatus string

const (
	PipelineNew         PipelineStatus = "new"
	PipelineContacted   PipelineStatus = "contacted"
	PipelineNegotiating PipelineStatus = "negotiating"
	PipelineWon         PipelineStatus = "won"
	PipelineDiscarded   PipelineStatus = "discarded"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Geocoded is the outcome of locating one address. A nil Location with a
// nil Err means no provider matched it.
type Geocoded struct {
	Location *Coordinates
	Err      error
}

// Address is a postal address used for on-demand geocoding.
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// IsZero reports whether no address component is set.
func (a Address) IsZero() bool {
	return a.Street == "" && a.City == "" && a.State == "" && a.PostalCode == "" && a.Country == ""
}

// Candidate is a prospect eligible for discretionary scheduling.
// Candidates are read-only input to a scheduling run.
type Candidate struct {
	ID              string         `json:"id"`
	RepID           string         `json:"rep_id"`
	Name            string         `json:"name"`
	Address         Address        `json:"address"`
	Location        *Coordinates   `json:"location,omitempty"`
	PotentialTier   PotentialTier  `json:"potential_tier"`
	Rating          float64        `json:"rating"`
	ReviewCount     int            `json:"review_count"`
	ProjectedVolume float64        `json:"projected_volume"`
	PipelineStatus  PipelineStatus `json:"pipeline_status"`
}

// HasLocation reports whether the candidate carries coordinates.
func (c Candidate) HasLocation() bool {
	return c.Location != nil
}

// WithLocation returns a copy of c with the given coordinates.
func (c Candidate) WithLocation(loc *Coordinates) Candidate {
	c.Location = loc
	return c
}

// NearbyCandidate is a proximity search hit.
type NearbyCandidate struct {
	Candidate     Candidate `json:"candidate"`
	DistanceKM    float64   `json:"distance_km"`
	TravelMinutes *float64  `json:"travel_minutes,omitempty"`
}
