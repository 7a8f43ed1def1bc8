package geocode

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/visit-planner/internal/db"
)

// TigerProvider geocodes via the PostGIS TIGER geocoder extension on the
// planner database.
type TigerProvider struct {
	pool      db.Pool
	maxRating int
}

// NewTigerProvider creates a TigerProvider. Matches rated worse than
// maxRating are reported unmatched.
func NewTigerProvider(pool db.Pool, maxRating int) *TigerProvider {
	return &TigerProvider{pool: pool, maxRating: maxRating}
}

// Name implements Provider.
func (p *TigerProvider) Name() string { return "tiger" }

// Available implements Provider.
func (p *TigerProvider) Available() bool { return p.pool != nil }

// Geocode implements Provider.
func (p *TigerProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	oneLine := formatOneLine(addr)
	if oneLine == "" {
		return &Result{Matched: false, Source: "tiger"}, nil
	}

	var lat, lon float64
	var rating int
	row := p.pool.QueryRow(ctx, `
		SELECT ST_Y(geomout) AS lat, ST_X(geomout) AS lon, rating
		FROM geocode($1, 1)`,
		oneLine,
	)
	if err := row.Scan(&lat, &lon, &rating); err != nil {
		// No rows = no match (not an error).
		zap.L().Debug("tiger geocode: no match",
			zap.String("address", oneLine),
			zap.Error(err),
		)
		return &Result{Matched: false, Source: "tiger"}, nil
	}

	if rating > p.maxRating {
		zap.L().Debug("tiger geocode: rating exceeds threshold",
			zap.String("address", oneLine),
			zap.Int("rating", rating),
			zap.Int("max_rating", p.maxRating),
		)
		return &Result{Matched: false, Source: "tiger", Rating: rating}, nil
	}

	return &Result{
		Latitude:  lat,
		Longitude: lon,
		Source:    "tiger",
		Quality:   ratingToQuality(rating),
		Matched:   true,
		Rating:    rating,
	}, nil
}

// ratingToQuality maps PostGIS geocoder rating to quality taxonomy.
// Lower ratings are better: 0 = exact match.
func ratingToQuality(rating int) string {
	switch {
	case rating < 10:
		return "rooftop"
	case rating < 20:
		return "range"
	case rating < 50:
		return "centroid"
	default:
		return "approximate"
	}
}
