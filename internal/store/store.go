// Package store persists candidates, anchors and planned visits.
package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/visit-planner/internal/model"
)

// Store is the persistence used by the planner, the importers and the API.
type Store interface {
	ListCandidates(ctx context.Context, repID string) ([]model.Candidate, error)
	ListAnchors(ctx context.Context, repID string) ([]model.Anchor, error)
	ListExistingVisits(ctx context.Context, repID string, from, to time.Time) ([]model.Visit, error)
	WriteVisit(ctx context.Context, visit model.Visit) (model.WriteOutcome, error)

	UpsertCandidates(ctx context.Context, candidates []model.Candidate) (int64, error)
	UpsertAnchors(ctx context.Context, anchors []model.Anchor) (int64, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const candidateColumns = `id, rep_id, name, street, city, state, postal_code, country, location,
	potential_tier, rating, review_count, projected_volume, pipeline_status`

const anchorColumns = `id, rep_id, candidate_id, name, location, search_radius_km, weekdays, month_days`

type scannable interface {
	Scan(dest ...any) error
}

func scanCandidate(row scannable) (model.Candidate, error) {
	var c model.Candidate
	var loc []byte
	var tier, status string
	err := row.Scan(&c.ID, &c.RepID, &c.Name,
		&c.Address.Street, &c.Address.City, &c.Address.State, &c.Address.PostalCode, &c.Address.Country,
		&loc, &tier, &c.Rating, &c.ReviewCount, &c.ProjectedVolume, &status)
	if err != nil {
		return c, eris.Wrap(err, "store: scan candidate")
	}
	c.PotentialTier = model.ParseTier(tier)
	c.PipelineStatus = model.PipelineStatus(status)
	if c.Location, err = decodePoint(loc); err != nil {
		return c, eris.Wrapf(err, "store: candidate %s location", c.ID)
	}
	return c, nil
}

func scanAnchor(row scannable) (model.Anchor, error) {
	var a model.Anchor
	var loc []byte
	var weekdays, monthDays string
	err := row.Scan(&a.ID, &a.RepID, &a.CandidateID, &a.Name, &loc, &a.SearchRadiusKM, &weekdays, &monthDays)
	if err != nil {
		return a, eris.Wrap(err, "store: scan anchor")
	}
	if a.Location, err = decodePoint(loc); err != nil {
		return a, eris.Wrapf(err, "store: anchor %s location", a.ID)
	}
	if a.Recurrence, err = parseRecurrence(weekdays, monthDays); err != nil {
		return a, eris.Wrapf(err, "store: anchor %s recurrence", a.ID)
	}
	return a, nil
}

// candidateRow returns the column values of c in candidateColumns order,
// followed by updated_at.
func candidateRow(c model.Candidate, now time.Time) ([]any, error) {
	loc, err := encodePoint(c.Location)
	if err != nil {
		return nil, err
	}
	status := c.PipelineStatus
	if status == "" {
		status = model.PipelineNew
	}
	tier := c.PotentialTier
	if tier == "" {
		tier = model.TierUnknown
	}
	return []any{
		c.ID, c.RepID, c.Name,
		c.Address.Street, c.Address.City, c.Address.State, c.Address.PostalCode, c.Address.Country,
		loc, string(tier), c.Rating, c.ReviewCount, c.ProjectedVolume, string(status), now,
	}, nil
}

// anchorRow returns the column values of a in anchorColumns order, followed
// by updated_at.
func anchorRow(a model.Anchor, now time.Time) ([]any, error) {
	loc, err := encodePoint(a.Location)
	if err != nil {
		return nil, err
	}
	weekdays, monthDays := formatRecurrence(a.Recurrence)
	return []any{a.ID, a.RepID, a.CandidateID, a.Name, loc, a.SearchRadiusKM, weekdays, monthDays, now}, nil
}

// formatRecurrence renders weekdays (0=Sunday) and month days as
// comma-separated lists.
func formatRecurrence(r model.Recurrence) (string, string) {
	wd := make([]string, len(r.Weekdays))
	for i, d := range r.Weekdays {
		wd[i] = strconv.Itoa(int(d))
	}
	md := make([]string, len(r.MonthDays))
	for i, d := range r.MonthDays {
		md[i] = strconv.Itoa(d)
	}
	return strings.Join(wd, ","), strings.Join(md, ",")
}

func parseRecurrence(weekdays, monthDays string) (model.Recurrence, error) {
	var r model.Recurrence
	wd, err := parseIntList(weekdays)
	if err != nil {
		return r, err
	}
	for _, d := range wd {
		if d < 0 || d > 6 {
			return r, eris.Errorf("weekday %d out of range", d)
		}
		r.Weekdays = append(r.Weekdays, time.Weekday(d))
	}
	md, err := parseIntList(monthDays)
	if err != nil {
		return r, err
	}
	for _, d := range md {
		if d < 1 || d > 31 {
			return r, eris.Errorf("month day %d out of range", d)
		}
		r.MonthDays = append(r.MonthDays, d)
	}
	return r, nil
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, eris.Wrapf(err, "parse %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}
