package model

import (
	"time"
)

// Recurrence is an anchor's visit cadence. An anchor is active on a date when
// the date's weekday is in Weekdays or its day of month is in MonthDays.
type Recurrence struct {
	Weekdays  []time.Weekday `json:"weekdays,omitempty"`
	MonthDays []int          `json:"month_days,omitempty"`
}

// ActiveOn reports whether the rule selects the given date.
func (r Recurrence) ActiveOn(d time.Time) bool {
	for _, wd := range r.Weekdays {
		if d.Weekday() == wd {
			return true
		}
	}
	for _, md := range r.MonthDays {
		if d.Day() == md {
			return true
		}
	}
	return false
}

// IsZero reports whether the rule selects nothing.
func (r Recurrence) IsZero() bool {
	return len(r.Weekdays) == 0 && len(r.MonthDays) == 0
}

// Anchor is a recurring client with a fixed visit cadence. Anchors occupy the
// first slots of their days and are never moved by the planner.
type Anchor struct {
	ID             string       `json:"id"`
	RepID          string       `json:"rep_id"`
	CandidateID    string       `json:"candidate_id"`
	Name           string       `json:"name"`
	Location       *Coordinates `json:"location,omitempty"`
	SearchRadiusKM float64      `json:"search_radius_km"`
	Recurrence     Recurrence   `json:"recurrence"`
}
