package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/sells-group/visit-planner/internal/model"
	"github.com/sells-group/visit-planner/internal/planner"
)

// FormatSuggestion renders one suggestion as the body of a box.
func FormatSuggestion(s model.Suggestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s\n", AnchorIcon, BoldStyle.Render(anchorLabel(s.Anchor)), SubtleStyle.Render(s.Date.Format("Mon 2006-01-02")))
	fmt.Fprintf(&b, "%s\n", SubtleStyle.Render("id "+s.ID))

	if s.Kind == model.SuggestionNoNearby {
		fmt.Fprintf(&b, "%s", WarningStyle.Render(fmt.Sprintf("No prospects within %.1f km.", s.Anchor.SearchRadiusKM)))
		return b.String()
	}

	fmt.Fprintf(&b, "%s\n", WarningStyle.Render("Nearby prospects, none of the highest tier:"))
	for i, c := range s.Candidates {
		line := fmt.Sprintf("  %d. %-28s %-8s %6.1f km", i+1, truncate(candidateLabel(c.Candidate), 28), c.Candidate.PotentialTier, c.DistanceKM)
		if c.TravelMinutes != nil {
			line += fmt.Sprintf("  %4.0f min", *c.TravelMinutes)
		}
		b.WriteString(line)
		if i < len(s.Candidates)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// RenderAnalyze writes the pending suggestions of an analyze pass.
func RenderAnalyze(w io.Writer, res *planner.AnalyzeResult) error {
	header := fmt.Sprintf("Week of %s for %s", res.WeekStart.Format(model.DateLayout), res.RepID)
	if _, err := fmt.Fprintln(w, TitleStyle.Render(header)); err != nil {
		return err
	}
	if len(res.Suggestions) == 0 {
		_, err := fmt.Fprintln(w, FormatSuccess("Nothing to confirm."))
		return err
	}
	for _, s := range res.Suggestions {
		if _, err := fmt.Fprintln(w, RenderBox(string(s.Kind), FormatSuggestion(s))); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, FormatWarning(fmt.Sprintf("%d suggestion(s) awaiting a decision", len(res.Suggestions))))
	return err
}

// RenderExecute writes the per-day summary, the schedule and the trace
// warnings of an execute pass.
func RenderExecute(w io.Writer, res *planner.ExecuteResult) error {
	header := fmt.Sprintf("Week of %s for %s", res.WeekStart.Format(model.DateLayout), res.RepID)
	if _, err := fmt.Fprintln(w, TitleStyle.Render(header)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join([]string{
		TableHeaderStyle.Render("Day"), TableHeaderStyle.Render("Anchors"), TableHeaderStyle.Render("Existing"),
		TableHeaderStyle.Render("Placed"), TableHeaderStyle.Render("Open"), TableHeaderStyle.Render("Status"),
	}, "\t"))
	for _, d := range res.Days {
		status := SuccessStyle.Render("ok")
		if d.Locked {
			status = WarningStyle.Render("locked")
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n",
			d.Date.Format("Mon 01-02"), d.Anchors, d.Existing, d.Placed, d.Open, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, day := range res.Schedule.Days {
		if _, err := fmt.Fprintln(w, BoldStyle.Render(day.Date.Format("Monday 2006-01-02"))); err != nil {
			return err
		}
		for _, slot := range day.Slots {
			if _, err := fmt.Fprintln(w, "  "+formatSlot(slot)); err != nil {
				return err
			}
		}
	}

	summary := fmt.Sprintf("placed %d, unplaced %d, written %d, already present %d",
		res.PlacedCount, res.UnplacedCount, res.Writes.Written, res.Writes.Existing)
	if _, err := fmt.Fprintln(w, FormatSuccess(summary)); err != nil {
		return err
	}
	if res.Writes.Failed > 0 {
		if _, err := fmt.Fprintln(w, FormatError(fmt.Sprintf("%d visit write(s) failed", res.Writes.Failed))); err != nil {
			return err
		}
	}
	return RenderWarnings(w, res.Trace)
}

// RenderWarnings writes the warn-level trace entries.
func RenderWarnings(w io.Writer, trace *planner.Trace) error {
	if trace == nil {
		return nil
	}
	for _, e := range trace.Entries {
		if e.Level != planner.TraceWarn {
			continue
		}
		if _, err := fmt.Fprintln(w, FormatWarning(fmt.Sprintf("[%s] %s%s", e.Stage, e.Message, formatFields(e.Fields)))); err != nil {
			return err
		}
	}
	return nil
}

func formatSlot(s model.Slot) string {
	n := fmt.Sprintf("%d.", s.Index+1)
	switch {
	case s.Empty():
		return SubtleStyle.Render(n + " (open)")
	case s.Reason == model.ReasonAnchor:
		return fmt.Sprintf("%s %s %s", n, AnchorIcon, BoldStyle.Render(firstNonEmpty(s.Name, s.AnchorID)))
	default:
		line := fmt.Sprintf("%s %s %s", n, firstNonEmpty(s.Name, s.CandidateID), SubtleStyle.Render(string(s.Reason)))
		if s.DistanceToCentroidKM != nil {
			line += SubtleStyle.Render(fmt.Sprintf(" %.1f km", *s.DistanceToCentroidKM))
		}
		return line
	}
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)
	return " (" + strings.Join(parts, " ") + ")"
}

func anchorLabel(a model.Anchor) string {
	return firstNonEmpty(a.Name, a.ID)
}

func candidateLabel(c model.Candidate) string {
	return firstNonEmpty(c.Name, c.ID)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
