package model

import (
	"time"
)

// DateLayout is the canonical date key used across the planner.
const DateLayout = "2006-01-02"

// PlacementReason records why a slot holds what it holds.
type PlacementReason string

const (
	ReasonAnchor      PlacementReason = "anchor"
	ReasonExisting    PlacementReason = "existing"
	ReasonAnchorMatch PlacementReason = "anchor_match"
	ReasonGravity     PlacementReason = "gravity"
	ReasonOverflow    PlacementReason = "overflow"
	ReasonNoGeoSignal PlacementReason = "no_geographic_signal"
)

// Slot is one visit slot of a working day. An empty slot has no CandidateID
// and no AnchorID.
type Slot struct {
	Index                int             `json:"index"`
	AnchorID             string          `json:"anchor_id,omitempty"`
	CandidateID          string          `json:"candidate_id,omitempty"`
	Name                 string          `json:"name,omitempty"`
	Score                float64         `json:"score,omitempty"`
	DistanceToCentroidKM *float64        `json:"distance_to_centroid_km,omitempty"`
	Reason               PlacementReason `json:"reason,omitempty"`
}

// Empty reports whether the slot is free.
func (s Slot) Empty() bool {
	return s.AnchorID == "" && s.CandidateID == ""
}

// Day is one working day of the target week.
type Day struct {
	Date  time.Time `json:"date"`
	Slots []Slot    `json:"slots"`
}

// Key returns the day's date formatted with DateLayout.
func (d Day) Key() string {
	return d.Date.Format(DateLayout)
}

// Filled returns the number of occupied slots.
func (d Day) Filled() int {
	n := 0
	for _, s := range d.Slots {
		if !s.Empty() {
			n++
		}
	}
	return n
}

// WeekSchedule is the planner output: ordered working days of the week.
type WeekSchedule struct {
	RepID     string    `json:"rep_id"`
	WeekStart time.Time `json:"week_start"`
	Days      []Day     `json:"days"`
}

// Visit is a persisted calendar entry.
type Visit struct {
	ID          string    `json:"id"`
	RepID       string    `json:"rep_id"`
	CandidateID string    `json:"candidate_id"`
	Date        time.Time `json:"date"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// WriteOutcome is the result of one visit write.
type WriteOutcome string

const (
	WriteOK            WriteOutcome = "ok"
	WriteAlreadyExists WriteOutcome = "already_exists"
	WriteError         WriteOutcome = "error"
)
