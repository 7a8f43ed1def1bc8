package sheet

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/visit-planner/internal/model"
)

var candidateAliases = map[string][]string{
	"id":               {"candidate_id", "prospect_id"},
	"rep_id":           {"rep", "owner", "sales_rep"},
	"name":             {"business_name", "company"},
	"street":           {"address", "street_address"},
	"city":             {},
	"state":            {"region", "province"},
	"postal_code":      {"zip", "zip_code", "postcode"},
	"country":          {},
	"lat":              {"latitude"},
	"lng":              {"lon", "long", "longitude"},
	"potential_tier":   {"tier", "potential"},
	"rating":           {"stars"},
	"review_count":     {"reviews", "reviews_count"},
	"projected_volume": {"volume", "projected_revenue"},
	"pipeline_status":  {"status", "stage"},
}

// ParseCandidates converts sheet rows (header first) into candidates. Rows
// without a rep fall back to defaultRep. Invalid rows are skipped and
// reported.
func ParseCandidates(rows [][]string, defaultRep string) ([]model.Candidate, []RowIssue, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	cols, err := mapHeader(rows[0], candidateAliases, "id")
	if err != nil {
		return nil, nil, err
	}

	var out []model.Candidate
	var issues []RowIssue
	seen := make(map[string]int)
	for i, row := range rows[1:] {
		rowNum := i + 2
		if blank(row) {
			continue
		}
		c, err := parseCandidate(cols, row, defaultRep)
		if err != nil {
			issues = append(issues, RowIssue{Row: rowNum, Reason: err.Error()})
			continue
		}
		if first, dup := seen[c.ID]; dup {
			issues = append(issues, RowIssue{Row: rowNum, Reason: fmt.Sprintf("duplicate id %s (first seen on row %d)", c.ID, first)})
			continue
		}
		seen[c.ID] = rowNum
		out = append(out, c)
	}
	return out, issues, nil
}

func parseCandidate(cols columns, row []string, defaultRep string) (model.Candidate, error) {
	c := model.Candidate{
		ID:    cols.get(row, "id"),
		RepID: cols.get(row, "rep_id"),
		Name:  cols.get(row, "name"),
		Address: model.Address{
			Street:     cols.get(row, "street"),
			City:       cols.get(row, "city"),
			State:      cols.get(row, "state"),
			PostalCode: cols.get(row, "postal_code"),
			Country:    cols.get(row, "country"),
		},
		PotentialTier:  model.ParseTier(cols.get(row, "potential_tier")),
		PipelineStatus: parseStatus(cols.get(row, "pipeline_status")),
	}
	if c.ID == "" {
		return c, eris.New("missing id")
	}
	if c.RepID == "" {
		c.RepID = defaultRep
	}
	if c.RepID == "" {
		return c, eris.New("missing rep_id")
	}

	var err error
	if c.Location, err = parseLocation(cols, row); err != nil {
		return c, err
	}
	if c.Rating, _, err = cols.float(row, "rating"); err != nil {
		return c, err
	}
	reviews, _, err := cols.float(row, "review_count")
	if err != nil {
		return c, err
	}
	c.ReviewCount = int(reviews)
	if c.ProjectedVolume, _, err = cols.float(row, "projected_volume"); err != nil {
		return c, err
	}
	return c, nil
}

// parseLocation reads the lat/lng pair. Both empty means no location.
func parseLocation(cols columns, row []string) (*model.Coordinates, error) {
	lat, hasLat, err := cols.float(row, "lat")
	if err != nil {
		return nil, err
	}
	lng, hasLng, err := cols.float(row, "lng")
	if err != nil {
		return nil, err
	}
	if !hasLat && !hasLng {
		return nil, nil
	}
	if hasLat != hasLng {
		return nil, eris.Errorf("lat and lng must both be set")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, eris.Errorf("coordinates out of range")
	}
	return &model.Coordinates{Lat: lat, Lng: lng}, nil
}

func parseStatus(s string) model.PipelineStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "contacted":
		return model.PipelineContacted
	case "negotiating", "negotiation", "proposal":
		return model.PipelineNegotiating
	case "won", "closed_won", "customer":
		return model.PipelineWon
	case "discarded", "lost", "closed_lost", "disqualified":
		return model.PipelineDiscarded
	default:
		return model.PipelineNew
	}
}
