package planner

import (
	"context"
	"time"

	"github.com/sells-group/visit-planner/internal/model"
)

// AnchorSource lists a rep's recurring clients with their recurrence rules.
type AnchorSource interface {
	ListAnchors(ctx context.Context, repID string) ([]model.Anchor, error)
}

// Week is the target scheduling window: consecutive working days starting on
// a Monday.
type Week struct {
	Start time.Time
	Days  []time.Time
}

// NewWeek snaps start back to its Monday (UTC midnight) and lists workDays
// consecutive days from there.
func NewWeek(start time.Time, workDays int) Week {
	d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	monday := d.AddDate(0, 0, -offset)

	days := make([]time.Time, workDays)
	for i := range days {
		days[i] = monday.AddDate(0, 0, i)
	}
	return Week{Start: monday, Days: days}
}

// End returns the last day of the week window.
func (w Week) End() time.Time {
	if len(w.Days) == 0 {
		return w.Start
	}
	return w.Days[len(w.Days)-1]
}

// AnchorResolver expands recurrence rules into the anchors active on each
// day of a week.
type AnchorResolver struct {
	src AnchorSource
}

// NewAnchorResolver creates an AnchorResolver. A nil source yields no anchors.
func NewAnchorResolver(src AnchorSource) *AnchorResolver {
	return &AnchorResolver{src: src}
}

// Resolve returns date key → anchors active that day, in source order. When
// the source is unavailable the run degrades to prospect-only scheduling and
// an empty mapping is returned.
func (r *AnchorResolver) Resolve(ctx context.Context, repID string, week Week, trace *Trace) map[string][]model.Anchor {
	out := make(map[string][]model.Anchor, len(week.Days))
	if r.src == nil {
		trace.Warn(StageAnchors, "no anchor source configured; prospect-only scheduling")
		return out
	}

	anchors, err := r.src.ListAnchors(ctx, repID)
	if err != nil {
		trace.Warn(StageAnchors, "anchor source unavailable; prospect-only scheduling", "error", err.Error())
		return out
	}

	for _, day := range week.Days {
		key := day.Format(model.DateLayout)
		for _, a := range anchors {
			if a.Recurrence.ActiveOn(day) {
				out[key] = append(out[key], a)
			}
		}
	}

	trace.Info(StageAnchors, "resolved anchors", "anchors", len(anchors), "days_with_anchors", len(out))
	return out
}
