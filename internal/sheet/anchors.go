package sheet

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/visit-planner/internal/model"
)

var anchorAliases = map[string][]string{
	"id":               {"anchor_id"},
	"rep_id":           {"rep", "owner", "sales_rep"},
	"candidate_id":     {"client_id", "account_id"},
	"name":             {"client", "account"},
	"lat":              {"latitude"},
	"lng":              {"lon", "long", "longitude"},
	"search_radius_km": {"radius", "radius_km"},
	"weekdays":         {"days", "weekday"},
	"month_days":       {"days_of_month", "monthdays"},
}

const defaultRadiusKM = 10

// ParseAnchors converts sheet rows (header first) into anchors. Weekdays
// accept names ("mon", "Tuesday") or numbers with 0 = Sunday, separated by
// commas, semicolons or spaces.
func ParseAnchors(rows [][]string, defaultRep string) ([]model.Anchor, []RowIssue, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	cols, err := mapHeader(rows[0], anchorAliases, "id")
	if err != nil {
		return nil, nil, err
	}

	var out []model.Anchor
	var issues []RowIssue
	for i, row := range rows[1:] {
		rowNum := i + 2
		if blank(row) {
			continue
		}
		a, err := parseAnchor(cols, row, defaultRep)
		if err != nil {
			issues = append(issues, RowIssue{Row: rowNum, Reason: err.Error()})
			continue
		}
		out = append(out, a)
	}
	return out, issues, nil
}

func parseAnchor(cols columns, row []string, defaultRep string) (model.Anchor, error) {
	a := model.Anchor{
		ID:             cols.get(row, "id"),
		RepID:          cols.get(row, "rep_id"),
		CandidateID:    cols.get(row, "candidate_id"),
		Name:           cols.get(row, "name"),
		SearchRadiusKM: defaultRadiusKM,
	}
	if a.ID == "" {
		return a, eris.Errorf("missing id")
	}
	if a.RepID == "" {
		a.RepID = defaultRep
	}
	if a.RepID == "" {
		return a, eris.Errorf("missing rep_id")
	}

	loc, err := parseLocation(cols, row)
	if err != nil {
		return a, err
	}
	a.Location = loc

	radius, ok, err := cols.float(row, "search_radius_km")
	if err != nil {
		return a, err
	}
	if ok {
		if radius <= 0 {
			return a, eris.Errorf("search_radius_km must be positive")
		}
		a.SearchRadiusKM = radius
	}

	if a.Recurrence.Weekdays, err = parseWeekdays(cols.get(row, "weekdays")); err != nil {
		return a, err
	}
	if a.Recurrence.MonthDays, err = parseMonthDays(cols.get(row, "month_days")); err != nil {
		return a, err
	}
	if a.Recurrence.IsZero() {
		return a, eris.Errorf("anchor has no weekdays or month days")
	}
	return a, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func parseWeekdays(s string) ([]time.Weekday, error) {
	var out []time.Weekday
	for _, tok := range splitList(s) {
		if d, ok := weekdayNames[strings.ToLower(tok)]; ok {
			out = append(out, d)
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 || n > 6 {
			return nil, eris.Errorf("weekdays: %q is not a weekday", tok)
		}
		out = append(out, time.Weekday(n))
	}
	return out, nil
}

func parseMonthDays(s string) ([]int, error) {
	var out []int
	for _, tok := range splitList(s) {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 1 || n > 31 {
			return nil, eris.Errorf("month_days: %q is not a day of month", tok)
		}
		out = append(out, n)
	}
	return out, nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '/'
	})
}
